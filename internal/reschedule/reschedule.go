// Package reschedule validates proposed task moves against the day's
// immovable prayer windows.
package reschedule

import (
	"errors"
	"sort"
	"time"

	"yawmi/internal/model"
)

var (
	ErrMissingInstant   = errors.New("reschedule: proposed instant is required")
	ErrNegativeDuration = errors.New("reschedule: negative task duration")
)

// Verdict is the outcome of a validation. A nil Colliding slot means the
// move was accepted at SnappedAt; otherwise Colliding names the first
// prayer window hit, in display order.
type Verdict struct {
	SnappedAt time.Time
	Colliding *model.PrayerSlot
}

func (v Verdict) Accepted() bool {
	return v.Colliding == nil
}

// Snap rounds an instant onto the 15-minute grid. Minutes round to the
// nearest quarter hour, except the [53, 59] band which rounds up into
// the next hour's :00. The asymmetric top-of-hour band is deliberate and
// matches the drag surface's grid, so Snap is not plain round-half-up.
// Snap is idempotent: Snap(Snap(t)) == Snap(t).
func Snap(t time.Time) time.Time {
	hour := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
	m := t.Minute()
	if m >= 53 {
		return hour.Add(time.Hour)
	}
	nearest := ((m*2 + 15) / 30) * 15
	return hour.Add(time.Duration(nearest) * time.Minute)
}

// Validate snaps the proposed instant and tests the resulting half-open
// candidate interval against every prayer's effective window, dawn to
// night. It never mutates its inputs; on rejection the caller keeps the
// task's original time. The hot path allocates nothing beyond the
// verdict itself.
func Validate(proposed time.Time, durationMinutes int, prayers []model.PrayerSlot) (Verdict, error) {
	if proposed.IsZero() {
		return Verdict{}, ErrMissingInstant
	}
	if durationMinutes < 0 {
		return Verdict{}, ErrNegativeDuration
	}

	snapped := Snap(proposed)
	for _, p := range displayOrdered(prayers) {
		if p.Window.Overlaps(snapped, durationMinutes) {
			colliding := p
			return Verdict{SnappedAt: snapped, Colliding: &colliding}, nil
		}
	}
	return Verdict{SnappedAt: snapped}, nil
}

// displayOrdered returns the prayers sorted dawn to night without
// reordering the caller's slice. Resolver output is already ordered, in
// which case the input is returned as is.
func displayOrdered(prayers []model.PrayerSlot) []model.PrayerSlot {
	ordered := true
	for i := 1; i < len(prayers); i++ {
		if prayers[i-1].Type.OrderIndex() > prayers[i].Type.OrderIndex() {
			ordered = false
			break
		}
	}
	if ordered {
		return prayers
	}
	out := make([]model.PrayerSlot, len(prayers))
	copy(out, prayers)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Type.OrderIndex() < out[j].Type.OrderIndex()
	})
	return out
}
