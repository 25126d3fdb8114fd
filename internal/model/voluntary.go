package model

import "time"

// VoluntarySlot is one generated nawafil suggestion for one day. Slots
// are regenerated whenever the day's prayers or the enabled-rule set
// change; only the completion and dismissal flags survive regeneration,
// re-merged by rule id.
type VoluntarySlot struct {
	RuleID          string
	SuggestedTime   time.Time
	DurationMinutes int
	Rakaat          int

	// Attachment echoes the producing rule's attachment, when any, so
	// presentation can group the slot with its prayer. It remains a
	// weak key; resolving it means looking the type up in today's
	// prayer set.
	Attachment *Attachment

	IsCompleted         bool
	IsDismissedForToday bool
}

// Window is the suggested span for clustering purposes.
func (v VoluntarySlot) Window() TimeWindow {
	return TimeWindow{
		Start: v.SuggestedTime,
		End:   v.SuggestedTime.Add(time.Duration(v.DurationMinutes) * time.Minute),
	}
}
