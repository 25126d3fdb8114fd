// Package composer serializes the day's recomputation triggers on a
// single goroutine and owns the current schedule snapshot. The four
// trigger kinds are day change, adjustment changes, enabled-rule
// changes, and interactive task moves; every mutation runs on one
// logical timeline so consumers never observe a partial update.
package composer

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"yawmi/internal/agenda"
	"yawmi/internal/log"
	"yawmi/internal/model"
	"yawmi/internal/nawafil"
	"yawmi/internal/reschedule"
	"yawmi/internal/resolve"
)

var (
	ErrStopped     = errors.New("composer: engine stopped")
	ErrNilProvider = errors.New("composer: times provider is required")
	ErrUnknownTask = errors.New("composer: unknown task")
	ErrBadRollover = errors.New("composer: invalid rollover expression")
)

// TimesProvider supplies the canonical prayer instants for a date. The
// engine treats the answer as opaque; geographic and astronomical
// correctness belong to the provider.
type TimesProvider interface {
	Times(date time.Time) (map[model.PrayerType]time.Time, error)
}

// Schedule is one immutable snapshot of the composed day. Consumers may
// cache the latest snapshot and drop older ones freely.
type Schedule struct {
	Date      time.Time
	Prayers   []model.PrayerSlot
	Voluntary []model.VoluntarySlot
	Tasks     []model.Task
	Clusters  []agenda.Cluster
}

// Settings carries the injected configuration for an engine. All lookup
// tables stay read-only; the engine copies what it mutates.
type Settings struct {
	Method             model.CalculationMethod
	Table              resolve.Table
	Rules              []model.NawafilRule
	Enabled            []string
	Prefs              nawafil.Prefs
	FlatNawafilMinutes int
	Offsets            map[model.PrayerType]int

	// Rollover is a standard cron expression for the day-change
	// trigger. Empty disables automatic rollover (tests drive SetDay
	// directly).
	Rollover string

	// BufferSize bounds the snapshot channel; a slow consumer drops
	// snapshots rather than blocking the writer.
	BufferSize int
}

type Engine struct {
	provider TimesProvider
	rollover cron.Schedule

	mu      sync.Mutex
	started bool
	stopped bool
	dropped uint64

	requests chan func()
	out      chan Schedule
	stopCh   chan struct{}
	doneCh   chan struct{}

	// Everything below is owned by the loop goroutine once Start has
	// been called.
	date      time.Time
	method    model.CalculationMethod
	table     resolve.Table
	rules     []model.NawafilRule
	enabled   []string
	prefs     nawafil.Prefs
	flat      int
	offsets   map[model.PrayerType]int
	tasks     []model.Task
	voluntary []model.VoluntarySlot
	prayers   []model.PrayerSlot
	clusters  []agenda.Cluster
}

// NewEngine builds an engine for the given day. The provider is
// required; everything in settings has a usable zero value.
func NewEngine(provider TimesProvider, date time.Time, settings Settings) (*Engine, error) {
	if provider == nil {
		return nil, ErrNilProvider
	}

	var rollover cron.Schedule
	if settings.Rollover != "" {
		parsed, err := cron.ParseStandard(settings.Rollover)
		if err != nil {
			return nil, errors.Join(ErrBadRollover, err)
		}
		rollover = parsed
	}

	bufferSize := settings.BufferSize
	if bufferSize <= 0 {
		bufferSize = 1
	}

	offsets := make(map[model.PrayerType]int, len(settings.Offsets))
	for p, minutes := range settings.Offsets {
		offsets[p] = resolve.ClampOffset(minutes)
	}

	return &Engine{
		provider: provider,
		rollover: rollover,
		requests: make(chan func(), 64),
		out:      make(chan Schedule, bufferSize),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		date:     date,
		method:   settings.Method,
		table:    settings.Table,
		rules:    settings.Rules,
		enabled:  append([]string(nil), settings.Enabled...),
		prefs:    settings.Prefs,
		flat:     settings.FlatNawafilMinutes,
		offsets:  offsets,
	}, nil
}

// C delivers schedule snapshots. The channel closes when the engine
// stops.
func (e *Engine) C() <-chan Schedule {
	return e.out
}

func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return
	}
	e.started = true
	go e.loop()
}

func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.started || e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	close(e.stopCh)
	e.mu.Unlock()
	<-e.doneCh
}

// Dropped counts snapshots discarded because the consumer lagged.
func (e *Engine) Dropped() uint64 {
	return atomic.LoadUint64(&e.dropped)
}

// SetDay moves the engine to a new calendar date. Voluntary completion
// and dismissal state is per day and does not survive the change.
func (e *Engine) SetDay(date time.Time) error {
	return e.do(func() {
		e.date = date
		e.voluntary = nil
	})
}

// SetManualOffset stores a per-prayer adjustment, clamped to [-30, 30].
func (e *Engine) SetManualOffset(p model.PrayerType, minutes int) error {
	return e.do(func() {
		e.offsets[p] = resolve.ClampOffset(minutes)
	})
}

// AdjustManualOffset applies a one-tap delta to the stored adjustment.
func (e *Engine) AdjustManualOffset(p model.PrayerType, delta int) error {
	return e.do(func() {
		e.offsets[p] = resolve.AdjustOffset(e.offsets[p], delta)
	})
}

func (e *Engine) SetMethod(m model.CalculationMethod) error {
	return e.do(func() {
		e.method = m
	})
}

// SetEnabledRules replaces the enabled voluntary-rule set. Carry-forward
// state for rules that stay enabled survives via the rule-id merge.
func (e *Engine) SetEnabledRules(ids []string) error {
	enabled := append([]string(nil), ids...)
	return e.do(func() {
		e.enabled = enabled
	})
}

// AddTask creates a task and returns its id. Duration must not be
// negative; that is a contract violation, not a scheduling condition.
func (e *Engine) AddTask(title string, start time.Time, durationMinutes int) (string, error) {
	task := model.Task{
		ID:              uuid.NewString(),
		Title:           title,
		StartTime:       start,
		DurationMinutes: durationMinutes,
	}
	if err := task.Validate(); err != nil {
		return "", err
	}
	if err := e.do(func() {
		e.tasks = append(e.tasks, task)
	}); err != nil {
		return "", err
	}
	return task.ID, nil
}

func (e *Engine) CompleteTask(id string) error {
	return e.do(func() {
		for i := range e.tasks {
			if e.tasks[i].ID == id {
				e.tasks[i].IsCompleted = true
				return
			}
		}
	})
}

func (e *Engine) RemoveTask(id string) error {
	return e.do(func() {
		for i := range e.tasks {
			if e.tasks[i].ID == id {
				e.tasks = append(e.tasks[:i], e.tasks[i+1:]...)
				return
			}
		}
	})
}

// MoveTask validates a proposed drag target for the task. On acceptance
// the task is moved to the snapped instant; on rejection it keeps its
// original time and the verdict names the colliding prayer.
func (e *Engine) MoveTask(id string, proposed time.Time) (reschedule.Verdict, error) {
	type result struct {
		verdict reschedule.Verdict
		err     error
	}
	reply := make(chan result, 1)

	err := e.do(func() {
		idx := -1
		for i := range e.tasks {
			if e.tasks[i].ID == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			reply <- result{err: ErrUnknownTask}
			return
		}
		verdict, err := reschedule.Validate(proposed, e.tasks[idx].DurationMinutes, e.prayers)
		if err != nil {
			reply <- result{err: err}
			return
		}
		if verdict.Accepted() {
			e.tasks[idx].StartTime = verdict.SnappedAt
		}
		reply <- result{verdict: verdict}
	})
	if err != nil {
		return reschedule.Verdict{}, err
	}

	select {
	case r := <-reply:
		return r.verdict, r.err
	case <-e.doneCh:
		// The loop drains enqueued requests on stop, so the reply may
		// already be buffered; prefer it over reporting a stop.
		select {
		case r := <-reply:
			return r.verdict, r.err
		default:
			return reschedule.Verdict{}, ErrStopped
		}
	}
}

// CompleteVoluntary marks the slot generated by the rule as done for
// today. Unknown ids are ignored.
func (e *Engine) CompleteVoluntary(ruleID string) error {
	return e.do(func() {
		for i := range e.voluntary {
			if e.voluntary[i].RuleID == ruleID {
				e.voluntary[i].IsCompleted = true
				return
			}
		}
	})
}

// DismissVoluntary hides the slot for the rest of the day.
func (e *Engine) DismissVoluntary(ruleID string) error {
	return e.do(func() {
		for i := range e.voluntary {
			if e.voluntary[i].RuleID == ruleID {
				e.voluntary[i].IsDismissedForToday = true
				return
			}
		}
	})
}

// do enqueues a mutation for the loop goroutine. Every executed request
// is followed by a recompute and a published snapshot.
func (e *Engine) do(fn func()) error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return ErrStopped
	}
	e.mu.Unlock()

	select {
	case e.requests <- fn:
		return nil
	case <-e.stopCh:
		return ErrStopped
	}
}

func (e *Engine) loop() {
	defer close(e.doneCh)
	defer close(e.out)

	e.recompute()
	e.publish()

	var timer *time.Timer
	for {
		var rolloverC <-chan time.Time
		if e.rollover != nil {
			next := e.rollover.Next(time.Now())
			timer = resetTimer(timer, time.Until(next))
			rolloverC = timer.C
		}

		select {
		case fn := <-e.requests:
			fn()
			e.recompute()
			e.publish()
		case <-rolloverC:
			e.advanceDay()
			e.recompute()
			e.publish()
		case <-e.stopCh:
			stopTimer(timer)
			e.drainRequests()
			return
		}
	}
}

// drainRequests runs requests already enqueued when Stop was called, so
// a caller that enqueued before stopping still gets its effect (and its
// reply, for MoveTask) in the final snapshots.
func (e *Engine) drainRequests() {
	for {
		select {
		case fn := <-e.requests:
			fn()
			e.recompute()
			e.publish()
		default:
			return
		}
	}
}

func (e *Engine) advanceDay() {
	next := e.date.AddDate(0, 0, 1)
	log.Info("composer: day rollover", "from", e.date.Format("2006-01-02"), "to", next.Format("2006-01-02"))
	e.date = next
	e.voluntary = nil
}

// recompute rebuilds the whole snapshot from current inputs: prayers,
// then voluntary slots (with per-day state re-merged by rule id), then
// clusters.
func (e *Engine) recompute() {
	times, err := e.provider.Times(e.date)
	if err != nil {
		log.Error("composer: times provider failed", err, "date", e.date.Format("2006-01-02"))
		times = nil
	}

	e.prayers = resolve.Day(times, e.table, resolve.DayOptions{
		Method:  e.method,
		Offsets: e.offsets,
		Friday:  e.date.Weekday() == time.Friday,
	})

	fresh := nawafil.Generate(e.prayers, nawafil.Options{
		Rules:               e.rules,
		Enabled:             e.enabled,
		Prefs:               e.prefs,
		FlatFallbackMinutes: e.flat,
	})
	e.voluntary = nawafil.MergeState(fresh, e.voluntary)

	clusters, err := agenda.Build(e.prayers, e.voluntary, e.tasks)
	if err != nil {
		// Tasks are validated on entry, so this indicates a bug.
		log.Error("composer: cluster build failed", err)
		clusters = nil
	}
	e.clusters = clusters
}

func (e *Engine) publish() {
	snapshot := Schedule{
		Date:      e.date,
		Prayers:   append([]model.PrayerSlot(nil), e.prayers...),
		Voluntary: append([]model.VoluntarySlot(nil), e.voluntary...),
		Tasks:     append([]model.Task(nil), e.tasks...),
		Clusters:  append([]agenda.Cluster(nil), e.clusters...),
	}
	select {
	case e.out <- snapshot:
	default:
		atomic.AddUint64(&e.dropped, 1)
	}
}

func resetTimer(timer *time.Timer, d time.Duration) *time.Timer {
	if d < 0 {
		d = 0
	}
	if timer == nil {
		return time.NewTimer(d)
	}
	stopTimer(timer)
	timer.Reset(d)
	return timer
}

func stopTimer(timer *time.Timer) {
	if timer == nil {
		return
	}
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
}
