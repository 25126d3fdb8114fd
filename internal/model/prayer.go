package model

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidPrayerType = errors.New("model: invalid prayer type")
	ErrInvalidMethod     = errors.New("model: invalid calculation method")
)

// PrayerType identifies one of the five daily obligatory prayers.
type PrayerType string

const (
	PrayerFajr    PrayerType = "fajr"
	PrayerDhuhr   PrayerType = "dhuhr"
	PrayerAsr     PrayerType = "asr"
	PrayerMaghrib PrayerType = "maghrib"
	PrayerIsha    PrayerType = "isha"
)

// PrayerTypes lists the five prayers in display order, dawn to night.
// Collision checks and day resolution iterate in this order.
var PrayerTypes = []PrayerType{
	PrayerFajr,
	PrayerDhuhr,
	PrayerAsr,
	PrayerMaghrib,
	PrayerIsha,
}

func (p PrayerType) IsValid() bool {
	switch p {
	case PrayerFajr, PrayerDhuhr, PrayerAsr, PrayerMaghrib, PrayerIsha:
		return true
	default:
		return false
	}
}

// OrderIndex returns the display-order position of the prayer, or -1 for
// an unknown type.
func (p PrayerType) OrderIndex() int {
	for i, t := range PrayerTypes {
		if t == p {
			return i
		}
	}
	return -1
}

// CalculationMethod tags which convention produced the canonical instants.
// The core records it for lookup purposes only and never recomputes
// astronomy from it.
type CalculationMethod string

const (
	MethodMWL       CalculationMethod = "mwl"
	MethodISNA      CalculationMethod = "isna"
	MethodUmmAlQura CalculationMethod = "umm_al_qura"
	MethodEgypt     CalculationMethod = "egypt"
	MethodKarachi   CalculationMethod = "karachi"
)

func (m CalculationMethod) IsValid() bool {
	switch m {
	case MethodMWL, MethodISNA, MethodUmmAlQura, MethodEgypt, MethodKarachi:
		return true
	default:
		return false
	}
}

// PrayerSlot is one resolved prayer for one calendar day. Slots are
// created fresh per day and replaced, never mutated, when an adjustment
// or the Friday congregational substitution applies.
type PrayerSlot struct {
	Type                       PrayerType
	Method                     CalculationMethod
	CanonicalTime              time.Time
	ManualOffsetMinutes        int
	DurationMinutes            int
	BufferBeforeMinutes        int
	BufferAfterMinutes         int
	IsCongregationalSubstitute bool
	CongregationDelayMinutes   int

	// Window is the effective span including manual offset, duration
	// and buffers, derived once at resolution time.
	Window TimeWindow
}

// AdhanTime is the adjusted call-to-prayer instant, without buffers.
func (s PrayerSlot) AdhanTime() time.Time {
	return s.CanonicalTime.Add(time.Duration(s.ManualOffsetMinutes) * time.Minute)
}

// EndTime is the instant the prayer itself ends, without the trailing
// buffer.
func (s PrayerSlot) EndTime() time.Time {
	return s.AdhanTime().Add(time.Duration(s.DurationMinutes) * time.Minute)
}

func (s PrayerSlot) Validate() error {
	if !s.Type.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidPrayerType, s.Type)
	}
	if s.CanonicalTime.IsZero() {
		return errors.New("model: prayer canonical time is required")
	}
	if s.ManualOffsetMinutes < -30 || s.ManualOffsetMinutes > 30 {
		return fmt.Errorf("model: manual offset %d outside [-30, 30]", s.ManualOffsetMinutes)
	}
	if s.DurationMinutes < 0 {
		return fmt.Errorf("model: negative prayer duration %d", s.DurationMinutes)
	}
	if s.Window.End.Before(s.Window.Start) {
		return ErrInvalidWindow
	}
	return nil
}
