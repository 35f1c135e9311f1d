package trigger

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fish-feeder-backend/internal/model"
)

func testSchedule(t *testing.T, id int64, hhmm string) model.Schedule {
	t.Helper()
	tod, err := model.ParseTimeOfDay(hhmm)
	require.NoError(t, err)
	return model.Schedule{ID: id, Mode: model.ScheduleDaily, TimeOfDay: &tod}
}

func newTestEngine(now time.Time) *Engine {
	return New(zerolog.Nop(), time.UTC, WithClock(func() time.Time { return now }))
}

func TestRegisterReturnsNextFire(t *testing.T) {
	now := time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC)
	e := newTestEngine(now)

	next, err := e.Register(testSchedule(t, 1, "08:00"), func() {})
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC), next)
	assert.True(t, next.After(now))
	assert.LessOrEqual(t, next.Sub(now), 24*time.Hour)

	// A slot earlier in the day lands tomorrow.
	next, err = e.Register(testSchedule(t, 2, "06:30"), func() {})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 11, 6, 30, 0, 0, time.UTC), next)
	assert.LessOrEqual(t, next.Sub(now), 24*time.Hour)
}

func TestRegisterRejectsBadSchedules(t *testing.T) {
	e := newTestEngine(time.Now())

	_, err := e.Register(model.Schedule{ID: 1, Mode: model.ScheduleDaily}, func() {})
	assert.ErrorIs(t, err, model.ErrMissingTimeOfDay)

	_, err = e.Register(model.Schedule{ID: 2, Mode: model.ScheduleMode(9)}, func() {})
	assert.ErrorIs(t, err, model.ErrUnsupportedMode)

	assert.Empty(t, e.ListActive())
}

func TestRegisterReplacesExisting(t *testing.T) {
	now := time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC)
	e := newTestEngine(now)

	_, err := e.Register(testSchedule(t, 1, "08:00"), func() {})
	require.NoError(t, err)
	next, err := e.Register(testSchedule(t, 1, "09:15"), func() {})
	require.NoError(t, err)

	regs := e.ListActive()
	require.Len(t, regs, 1)
	assert.Equal(t, "1", regs[0].ScheduleID)
	assert.Equal(t, time.Date(2026, 3, 10, 9, 15, 0, 0, time.UTC), next)
	assert.Equal(t, next, regs[0].NextFire)
}

func TestDeregister(t *testing.T) {
	now := time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC)
	e := newTestEngine(now)

	_, err := e.Register(testSchedule(t, 1, "08:00"), func() {})
	require.NoError(t, err)

	next := e.Deregister("1")
	require.NotNil(t, next)
	assert.Equal(t, time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC), *next)
	assert.Empty(t, e.ListActive())

	// Unknown ids are not an error.
	assert.Nil(t, e.Deregister("1"))
	assert.Nil(t, e.Deregister("does-not-exist"))
}

func TestListActiveSortedByNextFire(t *testing.T) {
	now := time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC)
	e := newTestEngine(now)

	for id, hhmm := range map[int64]string{1: "10:00", 2: "08:00", 3: "09:00"} {
		_, err := e.Register(testSchedule(t, id, hhmm), func() {})
		require.NoError(t, err)
	}

	regs := e.ListActive()
	require.Len(t, regs, 3)
	assert.Equal(t, []string{"2", "3", "1"}, []string{regs[0].ScheduleID, regs[1].ScheduleID, regs[2].ScheduleID})
	assert.True(t, regs[0].NextFire.Before(regs[1].NextFire))
	assert.True(t, regs[1].NextFire.Before(regs[2].NextFire))
}

func TestFireHonorsMisfireGrace(t *testing.T) {
	now := time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC)
	e := newTestEngine(now)

	ran := 0
	_, err := e.Register(testSchedule(t, 1, "08:00"), func() { ran++ })
	require.NoError(t, err)
	ent := e.entries["1"]

	slot := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

	// On time.
	e.fire("1", ent, func() { ran++ }, slot)
	assert.Equal(t, 1, ran)

	// Late but inside the grace window: still honored.
	e.fire("1", ent, func() { ran++ }, slot.Add(30*time.Minute))
	assert.Equal(t, 2, ran)

	// Beyond the grace window: dropped.
	e.fire("1", ent, func() { ran++ }, slot.Add(MisfireGrace+time.Minute))
	assert.Equal(t, 2, ran)
}

func TestFireSuppressesOverlap(t *testing.T) {
	now := time.Date(2026, 3, 10, 7, 59, 0, 0, time.UTC)
	e := newTestEngine(now)

	_, err := e.Register(testSchedule(t, 1, "08:00"), func() {})
	require.NoError(t, err)
	ent := e.entries["1"]

	slot := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})

	go func() {
		e.fire("1", ent, func() {
			close(started)
			<-release
		}, slot)
		close(done)
	}()
	<-started

	// A second fire while the first feeding is still running is dropped,
	// not queued.
	overlapped := false
	e.fire("1", ent, func() { overlapped = true }, slot)
	assert.False(t, overlapped)

	close(release)
	<-done

	// Once the first run finishes, firing works again.
	ranAgain := false
	e.fire("1", ent, func() { ranAgain = true }, slot)
	assert.True(t, ranAgain)
}
