package feeder

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"fish-feeder-backend/internal/device"
	"fish-feeder-backend/internal/metrics"
	"fish-feeder-backend/internal/model"
	"fish-feeder-backend/internal/store"
	"fish-feeder-backend/internal/trigger"
)

// DefaultReverseAngle is the fixed anti-drift reversal applied after the
// forward turn. It is physical tuning, not a function of the feed angle:
// the motor turns reverse+feedAngle forward, then backs off by exactly this
// much.
const DefaultReverseAngle = 30.0

// ErrScheduleNotFound mirrors the store sentinel for callers that only
// import this package.
var ErrScheduleNotFound = store.ErrScheduleNotFound

// Notifier is told about completed feedings. Implemented by the push
// notification worker pool; nil disables notifications.
type Notifier interface {
	NotifyFed(feeding model.Feeding)
}

// ScheduleRuntime pairs a persisted schedule with its live trigger's next
// fire time. NextFire is nil when the schedule has no live trigger, which
// can happen if registration failed; a LoadScheduledFeedings pass repairs
// that.
type ScheduleRuntime struct {
	Schedule model.Schedule
	NextFire *time.Time
}

// Service is the feeding orchestrator. It binds the ledger, the actuator
// and the trigger engine together and owns the feeding state machine:
// requested (ledger entry, no fed time) -> dispatched (actuation running)
// -> completed (fed time written). A failed actuation leaves the entry
// permanently without a fed time; there is no retry and no failed state.
type Service struct {
	store        store.Store
	actuator     device.Actuator
	triggers     *trigger.Engine
	clock        Clock
	notifier     Notifier
	reverseAngle float64
	log          zerolog.Logger
}

// Option configures a Service.
type Option func(*Service)

func WithClock(c Clock) Option {
	return func(s *Service) { s.clock = c }
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithReverseAngle(angle float64) Option {
	return func(s *Service) { s.reverseAngle = angle }
}

// New builds the orchestrator. All collaborators are passed in explicitly;
// there are no process-wide singletons behind it.
func New(st store.Store, actuator device.Actuator, triggers *trigger.Engine, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		store:        st,
		actuator:     actuator,
		triggers:     triggers,
		clock:        SystemClock{},
		reverseAngle: DefaultReverseAngle,
		log:          log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Feed accepts a feeding request. The ledger entry is created synchronously
// before returning, so the returned feeding is proof the request was
// accepted even when actuation has not completed yet. The actuation step is
// then handed to the runner: SyncRunner blocks until the feed is done,
// AsyncRunner returns immediately.
func (s *Service) Feed(ctx context.Context, runner TaskRunner) (model.Feeding, error) {
	if runner == nil {
		runner = SyncRunner{}
	}
	feeding, err := s.store.AddFeeding(ctx, s.clock.Now())
	if err != nil {
		return model.Feeding{}, err
	}
	metrics.FeedingsRequested.Inc()
	s.log.Info().Int64("feeding_id", feeding.ID).Msg("requesting feeding")

	runner.Run(func() { s.actuate(feeding) })
	return feeding, nil
}

// actuate performs the physical feed and records completion. It uses its
// own context because the task may outlive the request that dispatched it.
func (s *Service) actuate(feeding model.Feeding) {
	ctx := context.Background()

	angle, err := s.store.FeedAngle(ctx)
	if err != nil {
		metrics.ActuationFailures.Inc()
		s.log.Error().Err(err).Int64("feeding_id", feeding.ID).Msg("could not load feed angle")
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.actuator.PulseIndicator(gctx)
	})
	g.Go(func() error {
		return s.turnAndReverse(gctx, angle)
	})
	if err := g.Wait(); err != nil {
		// The entry keeps its requested timestamp but never gets a fed
		// timestamp; the missing fed time is the failure record.
		metrics.ActuationFailures.Inc()
		s.log.Error().Err(err).Int64("feeding_id", feeding.ID).Msg("actuation failed")
		return
	}

	fed, err := s.store.RecordFed(ctx, feeding.ID, s.clock.Now())
	if err != nil {
		s.log.Error().Err(err).Int64("feeding_id", feeding.ID).Msg("could not record fed time")
		return
	}
	metrics.FeedingsCompleted.Inc()
	s.log.Info().Int64("feeding_id", fed.ID).Msg("fish were fed")

	if s.notifier != nil {
		s.notifier.NotifyFed(fed)
	}
}

// turnAndReverse turns the motor forward past the feed angle, then backs it
// off to keep excess food from drifting out of the drum.
func (s *Service) turnAndReverse(ctx context.Context, feedAngle float64) error {
	if err := s.actuator.Rotate(ctx, s.reverseAngle+feedAngle); err != nil {
		return fmt.Errorf("forward rotation: %w", err)
	}
	if err := s.actuator.Rotate(ctx, -s.reverseAngle); err != nil {
		return fmt.Errorf("reverse rotation: %w", err)
	}
	return nil
}

// ListFeedings returns the bounded recent feeding log, newest first.
func (s *Service) ListFeedings(ctx context.Context, limit int, since *time.Time) ([]model.Feeding, error) {
	return s.store.ListFeedings(ctx, limit, since)
}

// FeedAngle and SetFeedAngle expose the device settings singleton.
func (s *Service) FeedAngle(ctx context.Context) (float64, error) {
	return s.store.FeedAngle(ctx)
}

func (s *Service) SetFeedAngle(ctx context.Context, angle float64) error {
	return s.store.SetFeedAngle(ctx, angle)
}

// scheduledJob is the callback armed for every schedule. It feeds
// synchronously inside the trigger goroutine so the engine's one-instance
// guard covers the whole actuation. Manual feeds bypass this path and are
// never suppressed.
func (s *Service) scheduledJob() func() {
	return func() {
		if _, err := s.Feed(context.Background(), SyncRunner{}); err != nil {
			s.log.Error().Err(err).Msg("scheduled feeding failed")
		}
	}
}

// LoadScheduledFeedings registers every persisted schedule with the trigger
// engine. Registration replaces rather than duplicates, so this is safe to
// call repeatedly: it is both the startup path and the recovery path after
// a crash between persist and register.
func (s *Service) LoadScheduledFeedings(ctx context.Context) error {
	schedules, err := s.store.ListSchedules(ctx)
	if err != nil {
		return err
	}
	s.log.Info().Int("count", len(schedules)).Msg("loading feeding schedules")

	var errs []error
	for _, schedule := range schedules {
		if _, err := s.triggers.Register(schedule, s.scheduledJob()); err != nil {
			s.log.Error().Err(err).Int64("schedule_id", schedule.ID).Msg("could not register schedule")
			errs = append(errs, fmt.Errorf("schedule %d: %w", schedule.ID, err))
		}
	}
	return errors.Join(errs...)
}

// NextFeedingTimes projects the live trigger set to bare fire times,
// ascending.
func (s *Service) NextFeedingTimes() []time.Time {
	regs := s.triggers.ListActive()
	times := make([]time.Time, len(regs))
	for i, reg := range regs {
		times[i] = reg.NextFire
	}
	return times
}

// ListSchedulesWithRuntimes joins the persisted schedules against the live
// trigger map. Schedules are sorted by time of day so the settings view
// reads like a daily timetable, not by id or creation order.
func (s *Service) ListSchedulesWithRuntimes(ctx context.Context) ([]ScheduleRuntime, error) {
	schedules, err := s.store.ListSchedules(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(schedules, func(i, j int) bool {
		ti, tj := schedules[i].TimeOfDay, schedules[j].TimeOfDay
		if ti == nil || tj == nil {
			return tj == nil && ti != nil
		}
		return ti.Before(*tj)
	})

	nextFires := make(map[string]time.Time)
	for _, reg := range s.triggers.ListActive() {
		nextFires[reg.ScheduleID] = reg.NextFire
	}

	runtimes := make([]ScheduleRuntime, 0, len(schedules))
	for _, schedule := range schedules {
		rt := ScheduleRuntime{Schedule: schedule}
		if next, ok := nextFires[schedule.TriggerID()]; ok {
			rt.NextFire = &next
		}
		runtimes = append(runtimes, rt)
	}
	return runtimes, nil
}

// AddScheduledFeeding persists a new daily schedule and arms it. The two
// steps are not one transaction; if the process dies between them the
// schedule becomes live again on the next LoadScheduledFeedings.
func (s *Service) AddScheduledFeeding(ctx context.Context, timeOfDay model.TimeOfDay) (ScheduleRuntime, error) {
	schedule, err := s.store.AddSchedule(ctx, model.ScheduleDaily, &timeOfDay)
	if err != nil {
		return ScheduleRuntime{}, err
	}
	next, err := s.triggers.Register(schedule, s.scheduledJob())
	if err != nil {
		return ScheduleRuntime{Schedule: schedule}, fmt.Errorf("schedule persisted but not armed: %w", err)
	}
	s.log.Info().Stringer("schedule", schedule).Time("next_fire", next).Msg("added scheduled feeding")
	return ScheduleRuntime{Schedule: schedule, NextFire: &next}, nil
}

// UpdateScheduledFeeding changes a schedule's time in place and re-arms its
// trigger, replacing the old registration.
func (s *Service) UpdateScheduledFeeding(ctx context.Context, scheduleID int64, timeOfDay model.TimeOfDay) (ScheduleRuntime, error) {
	schedule, err := s.store.UpdateSchedule(ctx, scheduleID, timeOfDay)
	if err != nil {
		return ScheduleRuntime{}, err
	}
	next, err := s.triggers.Register(schedule, s.scheduledJob())
	if err != nil {
		return ScheduleRuntime{Schedule: schedule}, fmt.Errorf("schedule updated but not armed: %w", err)
	}
	return ScheduleRuntime{Schedule: schedule, NextFire: &next}, nil
}

// RemoveScheduledFeeding disarms and deletes a schedule. The trigger is
// deregistered before the row is deleted, so a delete failure still leaves
// the trigger disabled. Unknown ids return ErrScheduleNotFound with no side
// effects. An in-flight actuation already dispatched is not interrupted.
func (s *Service) RemoveScheduledFeeding(ctx context.Context, scheduleID int64) (ScheduleRuntime, error) {
	schedules, err := s.store.ListSchedules(ctx)
	if err != nil {
		return ScheduleRuntime{}, err
	}
	// Linear scan is fine at the expected scale of tens of schedules.
	for _, schedule := range schedules {
		if schedule.ID != scheduleID {
			continue
		}
		next := s.triggers.Deregister(schedule.TriggerID())
		if err := s.store.RemoveSchedule(ctx, scheduleID); err != nil {
			return ScheduleRuntime{}, err
		}
		s.log.Info().Stringer("schedule", schedule).Msg("removed scheduled feeding")
		return ScheduleRuntime{Schedule: schedule, NextFire: next}, nil
	}
	return ScheduleRuntime{}, ErrScheduleNotFound
}
