package model

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRuleKind       = errors.New("model: invalid nawafil rule kind")
	ErrInvalidAttachPosition = errors.New("model: invalid attachment position")
	ErrMissingAttachment     = errors.New("model: attached rule requires an attachment")
)

// RuleKind selects the timing strategy for a voluntary-prayer rule. The
// set is closed; evaluation switches over it exhaustively rather than
// dispatching through an interface.
type RuleKind string

const (
	RuleAttached         RuleKind = "attached"
	RuleLastThirdOfNight RuleKind = "last_third_of_night"
	RuleMidMorning       RuleKind = "mid_morning"
)

func (k RuleKind) IsValid() bool {
	switch k {
	case RuleAttached, RuleLastThirdOfNight, RuleMidMorning:
		return true
	default:
		return false
	}
}

// AttachPosition anchors an attached rule to one side of its prayer:
// "before" anchors at the adhan instant, "after" at the prayer's end.
type AttachPosition string

const (
	AttachBefore AttachPosition = "before"
	AttachAfter  AttachPosition = "after"
)

func (p AttachPosition) IsValid() bool {
	return p == AttachBefore || p == AttachAfter
}

// Attachment links a rule to a prayer by type only. It is a lookup key
// into the day's resolved slots, never a reference to a slot, since the
// referenced slot is regenerated independently every day.
type Attachment struct {
	Prayer        PrayerType
	Position      AttachPosition
	OffsetMinutes int
}

// NawafilRule is one declarative voluntary-prayer timing rule.
type NawafilRule struct {
	ID            string
	Kind          RuleKind
	Attach        *Attachment
	DefaultRakaat int

	// Duration resolution, tried in order: MinutesPerRakaatPair when
	// positive, then MinutesByRakaat keyed by the resolved rakaat
	// count, then the evaluator's flat fallback.
	MinutesPerRakaatPair int
	MinutesByRakaat      map[int]int
}

func (r NawafilRule) Validate() error {
	if r.ID == "" {
		return errors.New("model: nawafil rule id is required")
	}
	if !r.Kind.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidRuleKind, r.Kind)
	}
	if r.Kind == RuleAttached {
		if r.Attach == nil {
			return fmt.Errorf("%w: %s", ErrMissingAttachment, r.ID)
		}
		if !r.Attach.Prayer.IsValid() {
			return fmt.Errorf("%w: %q", ErrInvalidPrayerType, r.Attach.Prayer)
		}
		if !r.Attach.Position.IsValid() {
			return fmt.Errorf("%w: %q", ErrInvalidAttachPosition, r.Attach.Position)
		}
	}
	if r.DefaultRakaat <= 0 {
		return fmt.Errorf("model: rule %s has non-positive default rakaat %d", r.ID, r.DefaultRakaat)
	}
	return nil
}
