package trigger

import (
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"fish-feeder-backend/internal/metrics"
	"fish-feeder-backend/internal/model"
)

// MisfireGrace is how late a fire may be delivered and still be honored.
// A fire detected more than an hour after its slot (for example after the
// host was suspended overnight) is dropped rather than run at a surprising
// time. The cron loop already coalesces multiple missed slots into one
// delivery, so no extra collapsing is needed here.
const MisfireGrace = time.Hour

// Registration is a snapshot of one live trigger.
type Registration struct {
	ScheduleID string
	NextFire   time.Time
}

// Engine maintains the live recurring triggers, one per persisted schedule.
// Registrations exist only in memory; they are rebuilt from the schedule
// store on startup. The cron loop runs on its own goroutine, so Register,
// Deregister and ListActive are safe from request handlers while triggers
// are being evaluated or fired.
type Engine struct {
	mu      sync.Mutex
	cron    *cron.Cron
	entries map[string]*entry
	loc     *time.Location
	now     func() time.Time
	log     zerolog.Logger
}

type entry struct {
	cronID cron.EntryID
	sched  cron.Schedule

	runMu   sync.Mutex
	running bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the engine's time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New builds an Engine in the given location. Call Start to begin firing.
func New(log zerolog.Logger, loc *time.Location, opts ...Option) *Engine {
	if loc == nil {
		loc = time.Local
	}
	e := &Engine{
		cron:    cron.New(cron.WithLocation(loc)),
		entries: make(map[string]*entry),
		loc:     loc,
		now:     time.Now,
		log:     log,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start launches the cron loop on its own goroutine.
func (e *Engine) Start() {
	e.cron.Start()
	e.log.Info().Msg("trigger engine started")
}

// Stop stops the cron loop and blocks until in-flight fires complete.
// Already-dispatched feedings are never interrupted.
func (e *Engine) Stop() {
	<-e.cron.Stop().Done()
	e.log.Info().Msg("trigger engine stopped")
}

// Register derives a recurrence from the schedule and arms it, invoking job
// on each fire. Registering an id that is already armed replaces the old
// registration, so re-registration is idempotent. Returns the next fire
// time.
func (e *Engine) Register(schedule model.Schedule, job func()) (time.Time, error) {
	spec, err := schedule.CronSpec()
	if err != nil {
		return time.Time{}, err
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return time.Time{}, err
	}
	// ParseStandard pins the schedule to the process-local zone; fire in
	// the engine's configured location instead.
	if ss, ok := sched.(*cron.SpecSchedule); ok {
		ss.Location = e.loc
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	id := schedule.TriggerID()
	if old, ok := e.entries[id]; ok {
		e.cron.Remove(old.cronID)
		delete(e.entries, id)
	}

	ent := &entry{sched: sched}
	ent.cronID = e.cron.Schedule(sched, cron.FuncJob(func() {
		e.fire(id, ent, job, e.now())
	}))
	e.entries[id] = ent

	next := sched.Next(e.now())
	e.log.Info().
		Str("schedule_id", id).
		Str("spec", spec).
		Time("next_fire", next).
		Msg("scheduled feeding registered")
	return next, nil
}

// fire runs one trigger delivery. At most one instance per schedule runs at
// a time: an overlapping fire for the same schedule is dropped, not queued.
// Deliveries outside the misfire grace window are dropped as well.
func (e *Engine) fire(id string, ent *entry, job func(), now time.Time) {
	if late, slot := lateness(ent.sched, now); late > MisfireGrace {
		metrics.TriggerFiresSuppressed.Inc()
		e.log.Warn().
			Str("schedule_id", id).
			Time("slot", slot).
			Dur("late", late).
			Msg("missed fire outside grace window, dropping")
		return
	}

	ent.runMu.Lock()
	if ent.running {
		ent.runMu.Unlock()
		metrics.TriggerFiresSuppressed.Inc()
		e.log.Warn().Str("schedule_id", id).Msg("previous fire still running, dropping")
		return
	}
	ent.running = true
	ent.runMu.Unlock()

	defer func() {
		ent.runMu.Lock()
		ent.running = false
		ent.runMu.Unlock()
	}()

	metrics.TriggerFires.Inc()
	e.log.Info().Str("schedule_id", id).Msg("scheduled feeding fired")
	job()
}

// lateness returns how far past its most recent slot this delivery is.
func lateness(sched cron.Schedule, now time.Time) (time.Duration, time.Time) {
	// Walk forward from a bit over one period ago to find the last slot at
	// or before now. Daily schedules need at most two steps.
	probe := sched.Next(now.Add(-25 * time.Hour))
	var slot time.Time
	for !probe.After(now) {
		slot = probe
		probe = sched.Next(probe)
	}
	if slot.IsZero() {
		return 0, now
	}
	return now.Sub(slot), slot
}

// Deregister disarms the trigger for the given schedule id and reports what
// its next fire time would have been. Unknown ids return nil; removal never
// fails.
func (e *Engine) Deregister(id string) *time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, ok := e.entries[id]
	if !ok {
		return nil
	}
	next := ent.sched.Next(e.now())
	e.cron.Remove(ent.cronID)
	delete(e.entries, id)
	e.log.Info().Str("schedule_id", id).Msg("scheduled feeding deregistered")
	return &next
}

// ListActive returns a snapshot of the live triggers ordered by next fire
// time ascending.
func (e *Engine) ListActive() []Registration {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	regs := make([]Registration, 0, len(e.entries))
	for id, ent := range e.entries {
		regs = append(regs, Registration{ScheduleID: id, NextFire: ent.sched.Next(now)})
	}
	sort.Slice(regs, func(i, j int) bool {
		return regs[i].NextFire.Before(regs[j].NextFire)
	})
	return regs
}
