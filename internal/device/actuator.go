package device

import (
	"context"
	"errors"
)

// ErrMotorBusy is returned when a rotation is requested while the motor is
// already turning.
var ErrMotorBusy = errors.New("stepper motor already in use")

// Actuator drives the physical (or simulated) feeding mechanism. It owns no
// business state; both operations are purely effectful.
//
// Rotate accepts negative angles meaning reverse direction; an angle of 0
// is a no-op, not an error.
type Actuator interface {
	PulseIndicator(ctx context.Context) error
	Rotate(ctx context.Context, angleDegrees float64) error
}
