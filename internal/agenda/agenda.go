// Package agenda flattens a day's prayers, voluntary slots and tasks
// into a chronological event stream and groups temporally overlapping
// items into clusters for presentation.
package agenda

import (
	"fmt"
	"sort"
	"time"

	"yawmi/internal/model"
)

// EventKind orders coincident events. A task starting at the same
// instant a prayer begins sorts ahead of the prayer so it is never
// visually absorbed behind it.
type EventKind string

const (
	EventTaskStart EventKind = "task_start"
	EventPrayer    EventKind = "prayer"
	EventVoluntary EventKind = "voluntary"
	EventTaskEnd   EventKind = "task_end"
)

func (k EventKind) priority() int {
	switch k {
	case EventTaskStart:
		return 0
	case EventPrayer:
		return 1
	case EventVoluntary:
		return 2
	case EventTaskEnd:
		return 3
	default:
		return 4
	}
}

// Event is one timed item in the flattened stream. Exactly one of
// TaskID, Prayer or RuleID identifies the source, depending on Kind.
type Event struct {
	Kind   EventKind
	At     time.Time
	Window model.TimeWindow

	TaskID string
	Prayer model.PrayerType
	RuleID string
}

// Cluster is a maximal run of events whose windows overlap the running
// cluster bound. Clusters are rebuilt on every recomputation and never
// persisted.
type Cluster struct {
	Events []Event
	Window model.TimeWindow
}

// ActiveTasks reports the ids of member tasks that have started but not
// ended at the given instant, as a pure function of cluster membership.
// A task is active over the half-open span [start, start+duration).
func (c Cluster) ActiveTasks(at time.Time) []string {
	var out []string
	for _, ev := range c.Events {
		if ev.Kind != EventTaskStart {
			continue
		}
		if ev.At.After(at) {
			continue
		}
		if ev.Window.End.After(at) {
			out = append(out, ev.TaskID)
		}
	}
	sort.Strings(out)
	return out
}

// Build clusters the day's items. The result is deterministic for
// identical inputs: no hidden randomness, no dependence on the current
// time. A task with a negative duration is a caller contract violation
// and fails fast.
func Build(prayers []model.PrayerSlot, voluntary []model.VoluntarySlot, tasks []model.Task) ([]Cluster, error) {
	events := make([]Event, 0, len(prayers)+len(voluntary)+2*len(tasks))

	for _, task := range tasks {
		if task.DurationMinutes < 0 {
			return nil, fmt.Errorf("%w: task %s", model.ErrNegativeDuration, task.ID)
		}
		window := task.Window()
		events = append(events, Event{
			Kind:   EventTaskStart,
			At:     task.StartTime,
			Window: window,
			TaskID: task.ID,
		})
		if task.DurationMinutes > 0 {
			events = append(events, Event{
				Kind:   EventTaskEnd,
				At:     window.End,
				Window: model.TimeWindow{Start: window.End, End: window.End},
				TaskID: task.ID,
			})
		}
	}
	for _, p := range prayers {
		events = append(events, Event{
			Kind:   EventPrayer,
			At:     p.Window.Start,
			Window: p.Window,
			Prayer: p.Type,
		})
	}
	for _, v := range voluntary {
		events = append(events, Event{
			Kind:   EventVoluntary,
			At:     v.SuggestedTime,
			Window: v.Window(),
			RuleID: v.RuleID,
		})
	}

	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].At.Equal(events[j].At) {
			return events[i].At.Before(events[j].At)
		}
		return events[i].Kind.priority() < events[j].Kind.priority()
	})

	var clusters []Cluster
	for _, ev := range events {
		n := len(clusters)
		// A new cluster opens only when the event's window starts
		// strictly after the running cluster's end.
		if n == 0 || ev.Window.Start.After(clusters[n-1].Window.End) {
			clusters = append(clusters, Cluster{
				Events: []Event{ev},
				Window: ev.Window,
			})
			continue
		}
		clusters[n-1].Events = append(clusters[n-1].Events, ev)
		clusters[n-1].Window = clusters[n-1].Window.Union(ev.Window)
	}
	return clusters, nil
}
