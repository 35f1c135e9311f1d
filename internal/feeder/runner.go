package feeder

import "time"

// Clock supplies the current time. It is injected rather than read
// globally so the feeding state machine is testable.
type Clock interface {
	Now() time.Time
}

// SystemClock is the real clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// TaskRunner decides where the actuation step of a feeding executes. The
// caller of Feed supplies one explicitly instead of flagging background
// execution with a nullable parameter.
type TaskRunner interface {
	Run(task func())
}

// SyncRunner runs the task inline, blocking the caller until actuation
// completes.
type SyncRunner struct{}

func (SyncRunner) Run(task func()) { task() }

// AsyncRunner hands the task to its own goroutine, fire-and-forget relative
// to the request.
type AsyncRunner struct{}

func (AsyncRunner) Run(task func()) { go task() }
