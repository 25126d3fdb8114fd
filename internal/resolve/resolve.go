// Package resolve turns canonical prayer instants into effective,
// buffer-padded time windows for one calendar day.
package resolve

import (
	"errors"
	"time"

	"yawmi/internal/model"
)

var ErrMissingCanonicalTime = errors.New("resolve: canonical instant is required")

const (
	// Manual adjustments are bounded; anything beyond is clamped, not
	// rejected, matching the one-minute-per-tap adjustment surface.
	MinManualOffsetMinutes = -30
	MaxManualOffsetMinutes = 30
)

// SlotConfig holds the per-prayer duration and buffer defaults.
type SlotConfig struct {
	DurationMinutes     int
	BufferBeforeMinutes int
	BufferAfterMinutes  int
}

// CongregationalConfig describes the Friday substitution for the midday
// prayer: the congregation starts later than the ordinary canonical
// midday and runs under its own duration and buffers.
type CongregationalConfig struct {
	DelayMinutes        int
	DurationMinutes     int
	BufferBeforeMinutes int
	BufferAfterMinutes  int
}

// Table is the injected configuration lookup. A nil or partial table is
// fine; absent entries fall back to built-in per-type defaults.
type Table struct {
	Slots          map[model.PrayerType]SlotConfig
	Congregational *CongregationalConfig
}

var builtinSlots = map[model.PrayerType]SlotConfig{
	model.PrayerFajr:    {DurationMinutes: 15, BufferBeforeMinutes: 5, BufferAfterMinutes: 5},
	model.PrayerDhuhr:   {DurationMinutes: 20, BufferBeforeMinutes: 5, BufferAfterMinutes: 5},
	model.PrayerAsr:     {DurationMinutes: 20, BufferBeforeMinutes: 5, BufferAfterMinutes: 5},
	model.PrayerMaghrib: {DurationMinutes: 15, BufferBeforeMinutes: 5, BufferAfterMinutes: 5},
	model.PrayerIsha:    {DurationMinutes: 25, BufferBeforeMinutes: 5, BufferAfterMinutes: 5},
}

var builtinCongregational = CongregationalConfig{
	DelayMinutes:        30,
	DurationMinutes:     45,
	BufferBeforeMinutes: 10,
	BufferAfterMinutes:  10,
}

func (t Table) slotConfig(p model.PrayerType) SlotConfig {
	if cfg, ok := t.Slots[p]; ok {
		return cfg
	}
	if cfg, ok := builtinSlots[p]; ok {
		return cfg
	}
	return SlotConfig{DurationMinutes: 15, BufferBeforeMinutes: 5, BufferAfterMinutes: 5}
}

func (t Table) congregational() CongregationalConfig {
	if t.Congregational != nil {
		return *t.Congregational
	}
	return builtinCongregational
}

// ClampOffset bounds a manual offset to [-30, 30] minutes. Out-of-range
// values are clamped silently.
func ClampOffset(minutes int) int {
	if minutes < MinManualOffsetMinutes {
		return MinManualOffsetMinutes
	}
	if minutes > MaxManualOffsetMinutes {
		return MaxManualOffsetMinutes
	}
	return minutes
}

// AdjustOffset applies a one-tap delta to a stored offset, clamping the
// result. The stored value is clamped first so a corrupt input cannot
// escape the range through repeated adjustment.
func AdjustOffset(current, delta int) int {
	return ClampOffset(ClampOffset(current) + delta)
}

// Options carries the per-slot resolution inputs.
type Options struct {
	Method              model.CalculationMethod
	ManualOffsetMinutes int

	// Congregational requests the Friday substitution. It only takes
	// effect on the midday slot; the transform is one-way for the rest
	// of the day.
	Congregational bool
}

// Slot resolves one prayer into an effective window.
func Slot(p model.PrayerType, canonical time.Time, table Table, opts Options) (model.PrayerSlot, error) {
	if canonical.IsZero() {
		return model.PrayerSlot{}, ErrMissingCanonicalTime
	}

	cfg := table.slotConfig(p)
	slot := model.PrayerSlot{
		Type:                p,
		Method:              opts.Method,
		CanonicalTime:       canonical,
		ManualOffsetMinutes: ClampOffset(opts.ManualOffsetMinutes),
		DurationMinutes:     cfg.DurationMinutes,
		BufferBeforeMinutes: cfg.BufferBeforeMinutes,
		BufferAfterMinutes:  cfg.BufferAfterMinutes,
	}

	if opts.Congregational && p == model.PrayerDhuhr {
		cong := table.congregational()
		slot.CanonicalTime = canonical.Add(time.Duration(cong.DelayMinutes) * time.Minute)
		slot.DurationMinutes = cong.DurationMinutes
		slot.BufferBeforeMinutes = cong.BufferBeforeMinutes
		slot.BufferAfterMinutes = cong.BufferAfterMinutes
		slot.IsCongregationalSubstitute = true
		slot.CongregationDelayMinutes = cong.DelayMinutes
	}

	adhan := slot.AdhanTime()
	window, err := model.NewTimeWindow(
		adhan.Add(-time.Duration(slot.BufferBeforeMinutes)*time.Minute),
		adhan.Add(time.Duration(slot.DurationMinutes+slot.BufferAfterMinutes)*time.Minute),
	)
	if err != nil {
		return model.PrayerSlot{}, err
	}
	slot.Window = window
	return slot, nil
}

// DayOptions carries the whole-day resolution inputs.
type DayOptions struct {
	Method  model.CalculationMethod
	Offsets map[model.PrayerType]int
	Friday  bool
}

// Day resolves the five prayers in display order. Types without a
// canonical instant are omitted rather than failing: a partial provider
// answer degrades the day, it does not block it.
func Day(times map[model.PrayerType]time.Time, table Table, opts DayOptions) []model.PrayerSlot {
	out := make([]model.PrayerSlot, 0, len(model.PrayerTypes))
	for _, p := range model.PrayerTypes {
		canonical, ok := times[p]
		if !ok || canonical.IsZero() {
			continue
		}
		slot, err := Slot(p, canonical, table, Options{
			Method:              opts.Method,
			ManualOffsetMinutes: opts.Offsets[p],
			Congregational:      opts.Friday,
		})
		if err != nil {
			continue
		}
		out = append(out, slot)
	}
	return out
}
