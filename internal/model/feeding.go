package model

import "time"

// Feeding is a single feeding log entry. TimeRequested is set when the
// feeding is accepted; TimeFed stays nil until the device has actually run.
type Feeding struct {
	ID            int64      `gorm:"primaryKey" json:"id"`
	TimeRequested time.Time  `gorm:"not null;index" json:"time_requested"`
	TimeFed       *time.Time `gorm:"index" json:"time_fed"`
}

// Fed reports whether the feeding has completed.
func (f Feeding) Fed() bool {
	return f.TimeFed != nil
}

// displayTime picks the timestamp shown in the log: the fed time once the
// feeding has run, the requested time before that.
func (f Feeding) displayTime() time.Time {
	if f.TimeFed != nil {
		return *f.TimeFed
	}
	return f.TimeRequested
}

// DateDisplay formats the log entry date for display.
func (f Feeding) DateDisplay() string {
	return f.displayTime().Format("2006-01-02")
}

// TimeDisplay formats the log entry time for display.
func (f Feeding) TimeDisplay() string {
	return f.displayTime().Format("15:04")
}

// MessageDisplay returns the human-readable log message. The state is
// derived from TimeFed presence, never stored.
func (f Feeding) MessageDisplay() string {
	if f.Fed() {
		return "Fish were fed"
	}
	return "Fish feeding requested"
}
