package device

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// SimulatedActuator satisfies the Actuator contract without touching
// hardware, so the whole feeding pipeline runs unmodified off-Pi and in
// tests.
type SimulatedActuator struct {
	PulseDuration  time.Duration
	RotateDuration time.Duration
	log            zerolog.Logger
}

// NewSimulated builds a simulated actuator with realistic timings.
func NewSimulated(log zerolog.Logger) *SimulatedActuator {
	return &SimulatedActuator{
		PulseDuration:  2500 * time.Millisecond,
		RotateDuration: 2 * time.Second,
		log:            log,
	}
}

func (a *SimulatedActuator) PulseIndicator(ctx context.Context) error {
	a.log.Info().Msg("simulating indicator pulse")
	return sleep(ctx, a.PulseDuration)
}

func (a *SimulatedActuator) Rotate(ctx context.Context, angleDegrees float64) error {
	if angleDegrees == 0 {
		a.log.Warn().Msg("requested 0 degree rotation")
		return nil
	}
	a.log.Info().Float64("angle", angleDegrees).Msg("simulating motor rotation")
	return sleep(ctx, a.RotateDuration)
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
