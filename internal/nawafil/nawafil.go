// Package nawafil evaluates declarative voluntary-prayer timing rules
// against a day's resolved prayer slots.
//
// Evaluation degrades silently: a rule that cannot resolve (its
// referenced prayer missing from the day's set) produces no slot and no
// error. Optional worship suggestions must never block the day's core
// schedule.
package nawafil

import (
	"time"

	"yawmi/internal/model"
)

const (
	// Mid-morning (duha) is approximated from dawn rather than from a
	// separately computed sunrise: dawn + 30 minutes stands in for
	// sunrise, and the prayer is suggested 15 minutes after that. The
	// instant is an approximation, not an astronomical value.
	sunriseApproxMinutes     = 30
	postSunriseOffsetMinutes = 15

	defaultFlatMinutes = 10
)

// Prefs carries stored per-rule user preferences.
type Prefs struct {
	Rakaat map[string]int
}

// Options bundles the injected rule set and preferences for one
// generation pass.
type Options struct {
	Rules   []model.NawafilRule
	Enabled []string
	Prefs   Prefs

	// FlatFallbackMinutes is the last-resort slot duration when a rule
	// carries neither a per-pair duration nor a rakaat table entry.
	// Zero means the built-in default.
	FlatFallbackMinutes int
}

// Generate produces one voluntary slot per enabled rule that resolves
// against the given prayers, in enabled-rule order. Completion and
// dismissal flags are always fresh here; callers re-merge prior state by
// rule id with MergeState.
func Generate(prayers []model.PrayerSlot, opts Options) []model.VoluntarySlot {
	byType := make(map[model.PrayerType]model.PrayerSlot, len(prayers))
	for _, p := range prayers {
		byType[p.Type] = p
	}
	byID := make(map[string]model.NawafilRule, len(opts.Rules))
	for _, r := range opts.Rules {
		byID[r.ID] = r
	}

	out := make([]model.VoluntarySlot, 0, len(opts.Enabled))
	for _, id := range opts.Enabled {
		rule, ok := byID[id]
		if !ok || rule.Validate() != nil {
			continue
		}
		suggested, ok := evaluate(rule, byType)
		if !ok {
			continue
		}

		rakaat := rule.DefaultRakaat
		if pref, ok := opts.Prefs.Rakaat[rule.ID]; ok && pref > 0 {
			rakaat = pref
		}

		out = append(out, model.VoluntarySlot{
			RuleID:          rule.ID,
			SuggestedTime:   suggested,
			DurationMinutes: duration(rule, rakaat, opts.FlatFallbackMinutes),
			Rakaat:          rakaat,
			Attachment:      rule.Attach,
		})
	}
	return out
}

// evaluate dispatches on the closed rule-kind set.
func evaluate(rule model.NawafilRule, byType map[model.PrayerType]model.PrayerSlot) (time.Time, bool) {
	switch rule.Kind {
	case model.RuleAttached:
		return evaluateAttached(rule, byType)
	case model.RuleLastThirdOfNight:
		return evaluateLastThird(byType)
	case model.RuleMidMorning:
		return evaluateMidMorning(byType)
	default:
		return time.Time{}, false
	}
}

// evaluateAttached anchors at the referenced prayer's adhan instant for
// "before" rules and at its end instant for "after" rules, then applies
// the rule offset.
func evaluateAttached(rule model.NawafilRule, byType map[model.PrayerType]model.PrayerSlot) (time.Time, bool) {
	prayer, ok := byType[rule.Attach.Prayer]
	if !ok {
		return time.Time{}, false
	}

	var anchor time.Time
	switch rule.Attach.Position {
	case model.AttachBefore:
		anchor = prayer.AdhanTime()
	case model.AttachAfter:
		anchor = prayer.EndTime()
	default:
		return time.Time{}, false
	}
	return anchor.Add(time.Duration(rule.Attach.OffsetMinutes) * time.Minute), true
}

// evaluateLastThird places the slot at sunset + 2/3 of the night, where
// the night runs from sunset to the following dawn. When the dawn
// instant is numerically at or before sunset, both prayers were resolved
// on the same calendar day, so dawn is first projected onto the next day
// before the night length is measured.
func evaluateLastThird(byType map[model.PrayerType]model.PrayerSlot) (time.Time, bool) {
	sunset, ok := byType[model.PrayerMaghrib]
	if !ok {
		return time.Time{}, false
	}
	dawn, ok := byType[model.PrayerFajr]
	if !ok {
		return time.Time{}, false
	}

	sunsetAt := sunset.AdhanTime()
	dawnAt := dawn.AdhanTime()
	if !dawnAt.After(sunsetAt) {
		dawnAt = dawnAt.AddDate(0, 0, 1)
	}

	night := dawnAt.Sub(sunsetAt)
	return sunsetAt.Add(night * 2 / 3), true
}

func evaluateMidMorning(byType map[model.PrayerType]model.PrayerSlot) (time.Time, bool) {
	dawn, ok := byType[model.PrayerFajr]
	if !ok {
		return time.Time{}, false
	}
	return dawn.AdhanTime().Add((sunriseApproxMinutes + postSunriseOffsetMinutes) * time.Minute), true
}

// duration resolves the slot length. Tie-break order: per-rakaat-pair
// duration, then the rakaat-indexed table, then the flat fallback.
func duration(rule model.NawafilRule, rakaat, flatFallback int) int {
	if rule.MinutesPerRakaatPair > 0 {
		pairs := (rakaat + 1) / 2
		return pairs * rule.MinutesPerRakaatPair
	}
	if minutes, ok := rule.MinutesByRakaat[rakaat]; ok && minutes > 0 {
		return minutes
	}
	if flatFallback > 0 {
		return flatFallback
	}
	return defaultFlatMinutes
}

// MergeState copies completion and dismissal flags from a prior
// generation onto freshly generated slots, matching by rule id. Slots
// without a prior counterpart keep their fresh zero state.
func MergeState(fresh, prior []model.VoluntarySlot) []model.VoluntarySlot {
	if len(prior) == 0 {
		return fresh
	}
	byID := make(map[string]model.VoluntarySlot, len(prior))
	for _, v := range prior {
		byID[v.RuleID] = v
	}
	out := make([]model.VoluntarySlot, len(fresh))
	for i, v := range fresh {
		if old, ok := byID[v.RuleID]; ok {
			v.IsCompleted = old.IsCompleted
			v.IsDismissedForToday = old.IsDismissedForToday
		}
		out[i] = v
	}
	return out
}
