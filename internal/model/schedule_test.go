package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSchedule(t *testing.T) {
	tod, err := ParseTimeOfDay("08:00")
	require.NoError(t, err)

	t.Run("daily with time", func(t *testing.T) {
		s, err := NewSchedule(ScheduleDaily, &tod)
		require.NoError(t, err)
		assert.Equal(t, ScheduleDaily, s.Mode)
		assert.Equal(t, "08:00", s.TimeOfDay.String())
	})

	t.Run("daily without time fails", func(t *testing.T) {
		_, err := NewSchedule(ScheduleDaily, nil)
		assert.ErrorIs(t, err, ErrMissingTimeOfDay)
	})

	t.Run("unknown mode fails", func(t *testing.T) {
		_, err := NewSchedule(ScheduleMode(99), &tod)
		assert.ErrorIs(t, err, ErrUnsupportedMode)
	})
}

func TestScheduleCronSpec(t *testing.T) {
	tod := TimeOfDay{Hour: 8, Minute: 30}
	s := Schedule{ID: 7, Mode: ScheduleDaily, TimeOfDay: &tod}

	spec, err := s.CronSpec()
	require.NoError(t, err)
	assert.Equal(t, "30 8 * * *", spec)
	assert.Equal(t, "7", s.TriggerID())
	assert.Equal(t, "Daily at 08:30", s.String())

	_, err = Schedule{Mode: ScheduleDaily}.CronSpec()
	assert.ErrorIs(t, err, ErrMissingTimeOfDay)

	_, err = Schedule{Mode: ScheduleMode(2), TimeOfDay: &tod}.CronSpec()
	assert.ErrorIs(t, err, ErrUnsupportedMode)
}

func TestParseTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("23:45")
	require.NoError(t, err)
	assert.Equal(t, 23, tod.Hour)
	assert.Equal(t, 45, tod.Minute)

	_, err = ParseTimeOfDay("24:00")
	assert.Error(t, err)
	_, err = ParseTimeOfDay("8 o'clock")
	assert.Error(t, err)
}

func TestTimeOfDayNextAfter(t *testing.T) {
	tod := TimeOfDay{Hour: 8, Minute: 0}
	now := time.Date(2026, 3, 10, 7, 30, 0, 0, time.UTC)

	next := tod.NextAfter(now)
	assert.Equal(t, time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC), next)

	// After today's slot the next fire is tomorrow.
	next = tod.NextAfter(time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 3, 11, 8, 0, 0, 0, time.UTC), next)

	// Always strictly in the future and within 24 hours.
	assert.True(t, next.After(now))
	assert.LessOrEqual(t, next.Sub(now), 25*time.Hour)
}

func TestTimeOfDayRoundTrip(t *testing.T) {
	tod := TimeOfDay{Hour: 6, Minute: 5}

	v, err := tod.Value()
	require.NoError(t, err)
	assert.Equal(t, "06:05", v)

	var scanned TimeOfDay
	require.NoError(t, scanned.Scan("06:05"))
	assert.Equal(t, tod, scanned)
	require.NoError(t, scanned.Scan([]byte("18:20")))
	assert.Equal(t, TimeOfDay{Hour: 18, Minute: 20}, scanned)
	assert.Error(t, scanned.Scan(42))

	b, err := json.Marshal(tod)
	require.NoError(t, err)
	assert.Equal(t, `"06:05"`, string(b))

	var decoded TimeOfDay
	require.NoError(t, json.Unmarshal([]byte(`"07:15"`), &decoded))
	assert.Equal(t, TimeOfDay{Hour: 7, Minute: 15}, decoded)
}

func TestTimeOfDayBefore(t *testing.T) {
	assert.True(t, TimeOfDay{Hour: 7, Minute: 59}.Before(TimeOfDay{Hour: 8}))
	assert.True(t, TimeOfDay{Hour: 8, Minute: 1}.Before(TimeOfDay{Hour: 8, Minute: 2}))
	assert.False(t, TimeOfDay{Hour: 8, Minute: 2}.Before(TimeOfDay{Hour: 8, Minute: 2}))
}

func TestFeedingDisplay(t *testing.T) {
	requested := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	f := Feeding{ID: 1, TimeRequested: requested}

	assert.False(t, f.Fed())
	assert.Equal(t, "Fish feeding requested", f.MessageDisplay())
	assert.Equal(t, "2026-03-10", f.DateDisplay())
	assert.Equal(t, "08:00", f.TimeDisplay())

	fed := requested.Add(3 * time.Second)
	f.TimeFed = &fed
	assert.True(t, f.Fed())
	assert.Equal(t, "Fish were fed", f.MessageDisplay())
	assert.Equal(t, "08:00", f.TimeDisplay())
}
