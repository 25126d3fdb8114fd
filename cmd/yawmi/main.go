package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"yawmi/internal/composer"
	"yawmi/internal/config"
	"yawmi/internal/log"
	"yawmi/internal/model"
	"yawmi/internal/nawafil"
)

// configProvider serves canonical instants from the static times section
// of the config file. A deployment with a live calculation service would
// plug its own composer.TimesProvider here instead.
type configProvider struct {
	cfg *config.Config
}

func (p configProvider) Times(date time.Time) (map[model.PrayerType]time.Time, error) {
	return p.cfg.CanonicalTimes(date)
}

func main() {
	configPath := flag.String("config", "yawmi.yaml", "path to the configuration file")
	dateArg := flag.String("date", "", "day to compose (YYYY-MM-DD, default today)")
	watch := flag.Bool("watch", false, "keep running and log every schedule update")
	flag.Parse()

	if err := run(*configPath, *dateArg, *watch); err != nil {
		fmt.Fprintf(os.Stderr, "yawmi failed: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, dateArg string, watch bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log.SetLevel(log.ParseLevel(cfg.LogLevel))

	date := time.Now()
	if dateArg != "" {
		parsed, err := time.ParseInLocation("2006-01-02", dateArg, time.Local)
		if err != nil {
			return fmt.Errorf("bad -date value %q: %w", dateArg, err)
		}
		date = parsed
	}

	engine, err := composer.NewEngine(configProvider{cfg: cfg}, date, composer.Settings{
		Method:             cfg.CalculationMethod(),
		Table:              cfg.ResolveTable(),
		Rules:              cfg.NawafilRules(),
		Enabled:            cfg.EnabledRules,
		Prefs:              nawafil.Prefs{Rakaat: cfg.RakaatPrefs},
		FlatNawafilMinutes: cfg.FlatNawafilMinutes,
		Offsets:            cfg.Offsets(),
		Rollover:           cfg.Rollover,
		BufferSize:         len(cfg.Tasks) + 4,
	})
	if err != nil {
		return err
	}

	// Seed the day's tasks before starting, so the request queue holds
	// them when the loop begins.
	seeded := 0
	for _, t := range cfg.Tasks {
		clock, err := time.ParseInLocation("15:04", t.Start, date.Location())
		if err != nil {
			log.Error("skipping task with bad start time", err, "title", t.Title)
			continue
		}
		start := time.Date(date.Year(), date.Month(), date.Day(),
			clock.Hour(), clock.Minute(), 0, 0, date.Location())
		if _, err := engine.AddTask(t.Title, start, t.DurationMinutes); err != nil {
			log.Error("skipping invalid task", err, "title", t.Title)
			continue
		}
		seeded++
	}

	engine.Start()
	defer engine.Stop()

	if !watch {
		// One snapshot per processed request plus the initial one; the
		// last reflects the fully seeded day.
		var snapshot composer.Schedule
		for i := 0; i <= seeded; i++ {
			snapshot = <-engine.C()
		}
		printAgenda(snapshot)
		return nil
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	log.Info("watching schedule", "rollover", cfg.Rollover)
	for {
		select {
		case snapshot, ok := <-engine.C():
			if !ok {
				return nil
			}
			printAgenda(snapshot)
		case <-sig:
			log.Info("shutting down")
			return nil
		}
	}
}

func printAgenda(s composer.Schedule) {
	titles := make(map[string]string, len(s.Tasks))
	for _, t := range s.Tasks {
		titles[t.ID] = t.Title
	}

	log.Info("schedule",
		"date", s.Date.Format("2006-01-02"),
		"prayers", len(s.Prayers),
		"voluntary", len(s.Voluntary),
		"tasks", len(s.Tasks),
		"clusters", len(s.Clusters),
	)
	for i, c := range s.Clusters {
		log.Info("cluster",
			"n", i,
			"from", c.Window.Start.Format("15:04"),
			"to", c.Window.End.Format("15:04"),
		)
		for _, ev := range c.Events {
			switch {
			case ev.Prayer != "":
				log.Info("  prayer", "type", ev.Prayer, "at", ev.At.Format("15:04"))
			case ev.RuleID != "":
				log.Info("  nawafil", "rule", ev.RuleID, "at", ev.At.Format("15:04"))
			default:
				log.Info("  task", "title", titles[ev.TaskID], "kind", ev.Kind, "at", ev.At.Format("15:04"))
			}
		}
	}
}
