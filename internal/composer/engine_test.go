package composer

import (
	"errors"
	"testing"
	"time"

	"yawmi/internal/model"
)

type staticProvider struct {
	clocks map[model.PrayerType]int // minutes from midnight
	err    error
}

func (p staticProvider) Times(date time.Time) (map[model.PrayerType]time.Time, error) {
	if p.err != nil {
		return nil, p.err
	}
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	out := make(map[model.PrayerType]time.Time, len(p.clocks))
	for prayer, minutes := range p.clocks {
		out[prayer] = day.Add(time.Duration(minutes) * time.Minute)
	}
	return out, nil
}

func fullDayProvider() staticProvider {
	return staticProvider{clocks: map[model.PrayerType]int{
		model.PrayerFajr:    5 * 60,
		model.PrayerDhuhr:   12*60 + 30,
		model.PrayerAsr:     16 * 60,
		model.PrayerMaghrib: 18 * 60,
		model.PrayerIsha:    20 * 60,
	}}
}

// saturday avoids the Friday substitution unless a test wants it.
var saturday = time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, settings Settings) *Engine {
	t.Helper()
	if settings.BufferSize == 0 {
		settings.BufferSize = 64
	}
	if settings.Enabled == nil {
		settings.Enabled = []string{"duha"}
		settings.Rules = []model.NawafilRule{
			{ID: "duha", Kind: model.RuleMidMorning, DefaultRakaat: 4},
		}
	}
	engine, err := NewEngine(fullDayProvider(), saturday, settings)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine
}

// drain stops the engine and returns the final published snapshot.
func drain(t *testing.T, engine *Engine) Schedule {
	t.Helper()
	engine.Stop()
	var last Schedule
	seen := false
	for snapshot := range engine.C() {
		last = snapshot
		seen = true
	}
	if !seen {
		t.Fatal("engine published no snapshots")
	}
	return last
}

func TestEngineComposesInitialSchedule(t *testing.T) {
	engine := newTestEngine(t, Settings{})
	engine.Start()

	snapshot := drain(t, engine)
	if len(snapshot.Prayers) != 5 {
		t.Fatalf("expected 5 prayers, got %d", len(snapshot.Prayers))
	}
	if len(snapshot.Voluntary) != 1 || snapshot.Voluntary[0].RuleID != "duha" {
		t.Fatalf("expected the duha slot, got %+v", snapshot.Voluntary)
	}
	if len(snapshot.Clusters) == 0 {
		t.Fatal("expected clusters in initial snapshot")
	}
	for _, p := range snapshot.Prayers {
		if p.Window.End.Before(p.Window.Start) {
			t.Fatalf("%s: invalid window", p.Type)
		}
	}
}

func TestEngineRequiresProvider(t *testing.T) {
	if _, err := NewEngine(nil, saturday, Settings{}); err != ErrNilProvider {
		t.Fatalf("expected ErrNilProvider, got %v", err)
	}
}

func TestEngineRejectsBadRollover(t *testing.T) {
	_, err := NewEngine(fullDayProvider(), saturday, Settings{Rollover: "not a cron line"})
	if !errors.Is(err, ErrBadRollover) {
		t.Fatalf("expected ErrBadRollover, got %v", err)
	}
}

func TestEngineMoveTaskAcceptedSnapsToGrid(t *testing.T) {
	engine := newTestEngine(t, Settings{})
	engine.Start()

	id, err := engine.AddTask("review notes", saturday.Add(9*time.Hour), 30)
	if err != nil {
		t.Fatalf("add task: %v", err)
	}

	verdict, err := engine.MoveTask(id, saturday.Add(10*time.Hour+7*time.Minute))
	if err != nil {
		t.Fatalf("move task: %v", err)
	}
	if !verdict.Accepted() {
		t.Fatalf("expected acceptance, collided with %v", verdict.Colliding.Type)
	}
	if !verdict.SnappedAt.Equal(saturday.Add(10 * time.Hour)) {
		t.Fatalf("expected snap to 10:00, got %v", verdict.SnappedAt)
	}

	snapshot := drain(t, engine)
	if len(snapshot.Tasks) != 1 || !snapshot.Tasks[0].StartTime.Equal(verdict.SnappedAt) {
		t.Fatalf("expected task moved to snapped instant, got %+v", snapshot.Tasks)
	}
}

func TestEngineMoveTaskRejectedKeepsOriginalTime(t *testing.T) {
	engine := newTestEngine(t, Settings{})
	engine.Start()

	original := saturday.Add(9 * time.Hour)
	id, err := engine.AddTask("deep work", original, 60)
	if err != nil {
		t.Fatalf("add task: %v", err)
	}

	// Dhuhr effective window covers 12:25-12:55 under built-in defaults.
	verdict, err := engine.MoveTask(id, saturday.Add(12*time.Hour+30*time.Minute))
	if err != nil {
		t.Fatalf("move task: %v", err)
	}
	if verdict.Accepted() {
		t.Fatal("expected rejection against the midday window")
	}
	if verdict.Colliding.Type != model.PrayerDhuhr {
		t.Fatalf("expected dhuhr collision, got %s", verdict.Colliding.Type)
	}

	snapshot := drain(t, engine)
	if !snapshot.Tasks[0].StartTime.Equal(original) {
		t.Fatalf("rejected move must keep the original time, got %v", snapshot.Tasks[0].StartTime)
	}
}

func TestEngineMoveUnknownTask(t *testing.T) {
	engine := newTestEngine(t, Settings{})
	engine.Start()
	defer engine.Stop()

	if _, err := engine.MoveTask("no-such-id", saturday.Add(10*time.Hour)); err != ErrUnknownTask {
		t.Fatalf("expected ErrUnknownTask, got %v", err)
	}
}

func TestEngineAddTaskValidatesDuration(t *testing.T) {
	engine := newTestEngine(t, Settings{})
	engine.Start()
	defer engine.Stop()

	if _, err := engine.AddTask("bad", saturday.Add(9*time.Hour), -5); !errors.Is(err, model.ErrNegativeDuration) {
		t.Fatalf("expected ErrNegativeDuration, got %v", err)
	}
}

func TestEngineOffsetAdjustmentSaturates(t *testing.T) {
	engine := newTestEngine(t, Settings{})
	engine.Start()

	if err := engine.SetManualOffset(model.PrayerFajr, 25); err != nil {
		t.Fatalf("set offset: %v", err)
	}
	for i := 0; i < 15; i++ {
		if err := engine.AdjustManualOffset(model.PrayerFajr, 1); err != nil {
			t.Fatalf("adjust offset: %v", err)
		}
	}

	snapshot := drain(t, engine)
	if snapshot.Prayers[0].ManualOffsetMinutes != 30 {
		t.Fatalf("expected fajr offset saturated at 30, got %d", snapshot.Prayers[0].ManualOffsetMinutes)
	}
}

func TestEngineFridaySubstitutionOnFriday(t *testing.T) {
	engine := newTestEngine(t, Settings{})
	engine.Start()

	friday := time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC)
	if err := engine.SetDay(friday); err != nil {
		t.Fatalf("set day: %v", err)
	}

	snapshot := drain(t, engine)
	var dhuhr *model.PrayerSlot
	for i := range snapshot.Prayers {
		if snapshot.Prayers[i].Type == model.PrayerDhuhr {
			dhuhr = &snapshot.Prayers[i]
		}
	}
	if dhuhr == nil {
		t.Fatal("missing midday slot")
	}
	if !dhuhr.IsCongregationalSubstitute {
		t.Fatal("expected congregational substitution on Friday")
	}
}

func TestEngineVoluntaryStateResetsOnDayChange(t *testing.T) {
	engine := newTestEngine(t, Settings{})
	engine.Start()

	if err := engine.CompleteVoluntary("duha"); err != nil {
		t.Fatalf("complete voluntary: %v", err)
	}
	if err := engine.DismissVoluntary("duha"); err != nil {
		t.Fatalf("dismiss voluntary: %v", err)
	}

	// State must survive same-day recomputation...
	if err := engine.SetMethod(model.MethodISNA); err != nil {
		t.Fatalf("set method: %v", err)
	}
	// ...but not a day change.
	if err := engine.SetDay(saturday.AddDate(0, 0, 1)); err != nil {
		t.Fatalf("set day: %v", err)
	}

	snapshot := drain(t, engine)
	if snapshot.Voluntary[0].IsCompleted || snapshot.Voluntary[0].IsDismissedForToday {
		t.Fatalf("voluntary state must reset on day change, got %+v", snapshot.Voluntary[0])
	}
}

func TestEngineVoluntaryStateSurvivesRecompute(t *testing.T) {
	engine := newTestEngine(t, Settings{})
	engine.Start()

	if err := engine.CompleteVoluntary("duha"); err != nil {
		t.Fatalf("complete voluntary: %v", err)
	}
	if err := engine.AdjustManualOffset(model.PrayerFajr, 1); err != nil {
		t.Fatalf("adjust offset: %v", err)
	}

	snapshot := drain(t, engine)
	if !snapshot.Voluntary[0].IsCompleted {
		t.Fatal("completion must survive same-day regeneration")
	}
}

func TestEngineRejectsRequestsAfterStop(t *testing.T) {
	engine := newTestEngine(t, Settings{})
	engine.Start()
	engine.Stop()

	if err := engine.SetMethod(model.MethodEgypt); err != ErrStopped {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
	if _, err := engine.MoveTask("any", saturday.Add(9*time.Hour)); err != ErrStopped {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
}

func TestEngineProviderFailureDegrades(t *testing.T) {
	engine, err := NewEngine(staticProvider{err: errors.New("offline")}, saturday, Settings{BufferSize: 8})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	engine.Start()

	snapshot := drain(t, engine)
	if len(snapshot.Prayers) != 0 {
		t.Fatalf("expected no prayers when the provider fails, got %d", len(snapshot.Prayers))
	}
}
