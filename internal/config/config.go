// Package config loads and saves the application's YAML configuration:
// per-prayer duration and buffer tables, the Friday congregational
// override, the declarative nawafil rule set, user adjustments, and the
// static canonical-times section used by the command binary. All lookup
// tables are read-only to the scheduling core and absent entries fall
// back to built-in defaults instead of failing.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"yawmi/internal/model"
	"yawmi/internal/resolve"
)

// SlotConfig mirrors resolve.SlotConfig in YAML form.
type SlotConfig struct {
	DurationMinutes     int `yaml:"duration_minutes"`
	BufferBeforeMinutes int `yaml:"buffer_before_minutes"`
	BufferAfterMinutes  int `yaml:"buffer_after_minutes"`
}

// CongregationalConfig is the Friday midday override table.
type CongregationalConfig struct {
	DelayMinutes        int `yaml:"delay_minutes"`
	DurationMinutes     int `yaml:"duration_minutes"`
	BufferBeforeMinutes int `yaml:"buffer_before_minutes"`
	BufferAfterMinutes  int `yaml:"buffer_after_minutes"`
}

// AttachmentConfig references a prayer by name for attached rules.
type AttachmentConfig struct {
	Prayer        string `yaml:"prayer"`
	Position      string `yaml:"position"`
	OffsetMinutes int    `yaml:"offset_minutes"`
}

// RuleConfig is one declarative voluntary-prayer rule.
type RuleConfig struct {
	ID                   string            `yaml:"id"`
	Kind                 string            `yaml:"kind"`
	Attach               *AttachmentConfig `yaml:"attach,omitempty"`
	Rakaat               int               `yaml:"rakaat"`
	MinutesPerRakaatPair int               `yaml:"minutes_per_rakaat_pair,omitempty"`
	MinutesByRakaat      map[int]int       `yaml:"minutes_by_rakaat,omitempty"`
}

// TaskConfig seeds the day's task list for the command binary.
type TaskConfig struct {
	Title           string `yaml:"title"`
	Start           string `yaml:"start"` // "HH:MM"
	DurationMinutes int    `yaml:"duration_minutes"`
}

// Config is the top-level document.
type Config struct {
	// Method names the calculation convention the canonical times were
	// produced with.
	Method string `yaml:"method"`

	// LogLevel is debug, info or error.
	LogLevel string `yaml:"log_level"`

	// Rollover is a cron expression (standard five fields) for the
	// day-change recomputation, normally midnight.
	Rollover string `yaml:"rollover"`

	Prayers        map[string]SlotConfig `yaml:"prayers"`
	Congregational *CongregationalConfig `yaml:"congregational,omitempty"`

	Rules        []RuleConfig   `yaml:"rules"`
	EnabledRules []string       `yaml:"enabled_rules"`
	RakaatPrefs  map[string]int `yaml:"rakaat_prefs,omitempty"`

	// FlatNawafilMinutes is the last-resort voluntary slot duration.
	FlatNawafilMinutes int `yaml:"flat_nawafil_minutes"`

	// ManualOffsets holds the stored per-prayer adjustments in minutes.
	ManualOffsets map[string]int `yaml:"manual_offsets,omitempty"`

	// Times is the static canonical-instant provider section used by
	// the command binary ("HH:MM" per prayer). A deployment backed by a
	// live calculation service leaves it empty.
	Times map[string]string `yaml:"times,omitempty"`

	Tasks []TaskConfig `yaml:"tasks,omitempty"`
}

// DefaultRules is the stock voluntary-prayer rule set.
func DefaultRules() []RuleConfig {
	return []RuleConfig{
		{ID: "fajr-sunnah", Kind: "attached", Attach: &AttachmentConfig{Prayer: "fajr", Position: "before", OffsetMinutes: -15}, Rakaat: 2, MinutesPerRakaatPair: 5},
		{ID: "dhuhr-sunnah-before", Kind: "attached", Attach: &AttachmentConfig{Prayer: "dhuhr", Position: "before", OffsetMinutes: -20}, Rakaat: 4, MinutesPerRakaatPair: 5},
		{ID: "dhuhr-sunnah-after", Kind: "attached", Attach: &AttachmentConfig{Prayer: "dhuhr", Position: "after", OffsetMinutes: 5}, Rakaat: 2, MinutesPerRakaatPair: 5},
		{ID: "maghrib-sunnah", Kind: "attached", Attach: &AttachmentConfig{Prayer: "maghrib", Position: "after", OffsetMinutes: 5}, Rakaat: 2, MinutesPerRakaatPair: 5},
		{ID: "isha-sunnah", Kind: "attached", Attach: &AttachmentConfig{Prayer: "isha", Position: "after", OffsetMinutes: 5}, Rakaat: 2, MinutesPerRakaatPair: 5},
		{ID: "witr", Kind: "attached", Attach: &AttachmentConfig{Prayer: "isha", Position: "after", OffsetMinutes: 30}, Rakaat: 3, MinutesPerRakaatPair: 5},
		{ID: "duha", Kind: "mid_morning", Rakaat: 4, MinutesPerRakaatPair: 5},
		{ID: "qiyam", Kind: "last_third_of_night", Rakaat: 8, MinutesPerRakaatPair: 5},
	}
}

// DefaultConfig returns the in-memory defaults for a first run.
func DefaultConfig() *Config {
	cfg := &Config{
		Method:   string(model.MethodMWL),
		LogLevel: "info",
		Rollover: "0 0 * * *",
		Prayers: map[string]SlotConfig{
			"fajr":    {DurationMinutes: 15, BufferBeforeMinutes: 5, BufferAfterMinutes: 5},
			"dhuhr":   {DurationMinutes: 20, BufferBeforeMinutes: 5, BufferAfterMinutes: 5},
			"asr":     {DurationMinutes: 20, BufferBeforeMinutes: 5, BufferAfterMinutes: 5},
			"maghrib": {DurationMinutes: 15, BufferBeforeMinutes: 5, BufferAfterMinutes: 5},
			"isha":    {DurationMinutes: 25, BufferBeforeMinutes: 5, BufferAfterMinutes: 5},
		},
		Congregational: &CongregationalConfig{
			DelayMinutes:        30,
			DurationMinutes:     45,
			BufferBeforeMinutes: 10,
			BufferAfterMinutes:  10,
		},
		Rules:              DefaultRules(),
		FlatNawafilMinutes: 10,
	}
	cfg.EnabledRules = defaultEnabled(cfg.Rules)
	return cfg
}

func defaultEnabled(rules []RuleConfig) []string {
	out := make([]string, 0, len(rules))
	for _, r := range rules {
		out = append(out, r.ID)
	}
	return out
}

// Normalize fills missing or zero values so partial documents behave
// like complete ones.
func (c *Config) Normalize() {
	if !model.CalculationMethod(c.Method).IsValid() {
		c.Method = string(model.MethodMWL)
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Rollover == "" {
		c.Rollover = "0 0 * * *"
	}
	if c.Prayers == nil {
		c.Prayers = map[string]SlotConfig{}
	}
	if c.Rules == nil {
		c.Rules = DefaultRules()
	}
	if c.EnabledRules == nil {
		c.EnabledRules = defaultEnabled(c.Rules)
	}
	if c.FlatNawafilMinutes <= 0 {
		c.FlatNawafilMinutes = 10
	}
	// Stored offsets are clamped on load so resolution never sees
	// out-of-range values from a hand-edited file.
	for name, minutes := range c.ManualOffsets {
		c.ManualOffsets[name] = resolve.AdjustOffset(minutes, 0)
	}
}

// CalculationMethod returns the typed method, already normalized.
func (c *Config) CalculationMethod() model.CalculationMethod {
	m := model.CalculationMethod(c.Method)
	if !m.IsValid() {
		return model.MethodMWL
	}
	return m
}

// ResolveTable converts the prayer tables into the resolver's lookup
// form. Entries naming unknown prayers are dropped.
func (c *Config) ResolveTable() resolve.Table {
	table := resolve.Table{Slots: make(map[model.PrayerType]resolve.SlotConfig, len(c.Prayers))}
	for name, slot := range c.Prayers {
		p := model.PrayerType(name)
		if !p.IsValid() {
			continue
		}
		table.Slots[p] = resolve.SlotConfig{
			DurationMinutes:     slot.DurationMinutes,
			BufferBeforeMinutes: slot.BufferBeforeMinutes,
			BufferAfterMinutes:  slot.BufferAfterMinutes,
		}
	}
	if c.Congregational != nil {
		table.Congregational = &resolve.CongregationalConfig{
			DelayMinutes:        c.Congregational.DelayMinutes,
			DurationMinutes:     c.Congregational.DurationMinutes,
			BufferBeforeMinutes: c.Congregational.BufferBeforeMinutes,
			BufferAfterMinutes:  c.Congregational.BufferAfterMinutes,
		}
	}
	return table
}

// NawafilRules converts the rule list into model form. Rules that fail
// validation are dropped; a bad rule entry degrades, it does not fail
// the load.
func (c *Config) NawafilRules() []model.NawafilRule {
	out := make([]model.NawafilRule, 0, len(c.Rules))
	for _, r := range c.Rules {
		rule := model.NawafilRule{
			ID:                   r.ID,
			Kind:                 model.RuleKind(r.Kind),
			DefaultRakaat:        r.Rakaat,
			MinutesPerRakaatPair: r.MinutesPerRakaatPair,
			MinutesByRakaat:      r.MinutesByRakaat,
		}
		if r.Attach != nil {
			rule.Attach = &model.Attachment{
				Prayer:        model.PrayerType(r.Attach.Prayer),
				Position:      model.AttachPosition(r.Attach.Position),
				OffsetMinutes: r.Attach.OffsetMinutes,
			}
		}
		if rule.Validate() != nil {
			continue
		}
		out = append(out, rule)
	}
	return out
}

// Offsets returns the typed manual-offset map.
func (c *Config) Offsets() map[model.PrayerType]int {
	out := make(map[model.PrayerType]int, len(c.ManualOffsets))
	for name, minutes := range c.ManualOffsets {
		p := model.PrayerType(name)
		if !p.IsValid() {
			continue
		}
		out[p] = minutes
	}
	return out
}

// CanonicalTimes materializes the static times section onto the given
// date. It errors on malformed clock strings; a missing prayer entry is
// simply absent from the result.
func (c *Config) CanonicalTimes(date time.Time) (map[model.PrayerType]time.Time, error) {
	out := make(map[model.PrayerType]time.Time, len(c.Times))
	for name, raw := range c.Times {
		p := model.PrayerType(name)
		if !p.IsValid() {
			continue
		}
		clock, err := time.Parse("15:04", raw)
		if err != nil {
			return nil, fmt.Errorf("config: bad time %q for %s: %w", raw, name, err)
		}
		out[p] = time.Date(date.Year(), date.Month(), date.Day(),
			clock.Hour(), clock.Minute(), 0, 0, date.Location())
	}
	return out, nil
}

// Load reads the YAML config at path. On first run the default document
// is written with 0600 permissions and returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config: path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save writes the config atomically: temp file in the same directory,
// fsync, chmod 0600, rename.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config: path is empty")
	}
	if cfg == nil {
		return errors.New("config: config is nil")
	}
	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".yawmi-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
