package model

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrUnsupportedMode is returned for schedule modes the feeder cannot run.
	ErrUnsupportedMode = errors.New("unsupported schedule mode")
	// ErrMissingTimeOfDay is returned when a daily schedule has no time of day.
	ErrMissingTimeOfDay = errors.New("daily schedule requires a time of day")
)

// ScheduleMode selects the recurrence type of a schedule.
type ScheduleMode int

const (
	// ScheduleDaily fires once per day at the schedule's time of day.
	ScheduleDaily ScheduleMode = 1
)

func (m ScheduleMode) String() string {
	switch m {
	case ScheduleDaily:
		return "daily"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Schedule is a persisted recurring feeding definition. The schedule rows
// are the durable truth; live triggers are rebuilt from them on startup.
type Schedule struct {
	ID        int64        `gorm:"primaryKey" json:"id"`
	Mode      ScheduleMode `gorm:"not null" json:"mode"`
	TimeOfDay *TimeOfDay   `gorm:"type:text" json:"time_of_day"`
}

// NewSchedule validates the mode/time combination. A daily schedule without
// a time of day fails here rather than defaulting silently.
func NewSchedule(mode ScheduleMode, timeOfDay *TimeOfDay) (Schedule, error) {
	if mode != ScheduleDaily {
		return Schedule{}, fmt.Errorf("%w: %s", ErrUnsupportedMode, mode)
	}
	if timeOfDay == nil {
		return Schedule{}, ErrMissingTimeOfDay
	}
	return Schedule{Mode: mode, TimeOfDay: timeOfDay}, nil
}

// TriggerID is the stable key the trigger engine registers this schedule
// under: the storage primary key rendered as a string.
func (s Schedule) TriggerID() string {
	return strconv.FormatInt(s.ID, 10)
}

// CronSpec derives the cron expression for the schedule: daily schedules
// fix hour and minute and wildcard the rest.
func (s Schedule) CronSpec() (string, error) {
	switch s.Mode {
	case ScheduleDaily:
		if s.TimeOfDay == nil {
			return "", ErrMissingTimeOfDay
		}
		return fmt.Sprintf("%d %d * * *", s.TimeOfDay.Minute, s.TimeOfDay.Hour), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMode, s.Mode)
	}
}

func (s Schedule) String() string {
	if s.Mode == ScheduleDaily && s.TimeOfDay != nil {
		return fmt.Sprintf("Daily at %s", s.TimeOfDay)
	}
	return "Unsupported schedule"
}
