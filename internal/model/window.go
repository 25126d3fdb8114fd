package model

import (
	"errors"
	"time"
)

var ErrInvalidWindow = errors.New("model: window start is after end")

// TimeWindow is an immutable time span. Windows are never mutated in
// place; whenever an upstream offset changes the owning slot is rebuilt
// with a fresh window.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// NewTimeWindow builds a window and enforces Start <= End. A reversed
// window is a caller bug, not a data condition, so it fails fast.
func NewTimeWindow(start, end time.Time) (TimeWindow, error) {
	if end.Before(start) {
		return TimeWindow{}, ErrInvalidWindow
	}
	return TimeWindow{Start: start, End: end}, nil
}

func (w TimeWindow) IsZero() bool {
	return w.Start.IsZero() && w.End.IsZero()
}

func (w TimeWindow) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Overlaps reports whether the half-open candidate interval
// [start, start+durationMinutes) intersects the window.
func (w TimeWindow) Overlaps(start time.Time, durationMinutes int) bool {
	end := start.Add(time.Duration(durationMinutes) * time.Minute)
	return w.OverlapsWindow(TimeWindow{Start: start, End: end})
}

// OverlapsWindow is the symmetric window-vs-window form of Overlaps:
// a.OverlapsWindow(b) == b.OverlapsWindow(a) for all a, b.
func (w TimeWindow) OverlapsWindow(other TimeWindow) bool {
	return w.Start.Before(other.End) && other.Start.Before(w.End)
}

// Union returns the bounding window covering both w and other.
func (w TimeWindow) Union(other TimeWindow) TimeWindow {
	out := w
	if other.Start.Before(out.Start) {
		out.Start = other.Start
	}
	if other.End.After(out.End) {
		out.End = other.End
	}
	return out
}
