package device

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stianeikeland/go-rpio/v4"

	"fish-feeder-backend/config"
)

// halfStepSequence is the coil pattern for a 28BYJ-48 in half-step mode.
// Walking it forward turns the shaft clockwise; walking it backward turns
// counter-clockwise.
var halfStepSequence = [8][4]bool{
	{false, false, false, true},
	{false, false, true, true},
	{false, false, true, false},
	{false, true, true, false},
	{false, true, false, false},
	{true, true, false, false},
	{true, false, false, false},
	{true, false, false, true},
}

const stepsPerRevolution = 512

// GPIOActuator drives the real feeder hardware: an indicator LED and a
// stepper motor on Raspberry Pi GPIO pins.
type GPIOActuator struct {
	led       rpio.Pin
	motorPins [4]rpio.Pin
	stepDelay time.Duration
	pulse     time.Duration
	log       zerolog.Logger

	mu      sync.Mutex
	turning bool
}

// NewGPIO memory-maps the GPIO registers and configures the pins. The
// caller must Close when done.
func NewGPIO(cfg config.DeviceConfig, log zerolog.Logger) (*GPIOActuator, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("open gpio: %w", err)
	}

	a := &GPIOActuator{
		led:       rpio.Pin(cfg.LEDPin),
		stepDelay: cfg.StepDelay(),
		pulse:     time.Duration(cfg.PulseSeconds * float64(time.Second)),
		log:       log,
	}
	a.led.Output()
	a.led.Low()
	for i, pin := range cfg.MotorPins {
		a.motorPins[i] = rpio.Pin(pin)
		a.motorPins[i].Output()
		a.motorPins[i].Low()
	}
	return a, nil
}

// Close releases the GPIO mapping.
func (a *GPIOActuator) Close() error {
	a.led.Low()
	for _, pin := range a.motorPins {
		pin.Low()
	}
	return rpio.Close()
}

// PulseIndicator turns the LED on for the configured pulse duration.
func (a *GPIOActuator) PulseIndicator(ctx context.Context) error {
	a.led.High()
	defer a.led.Low()
	select {
	case <-time.After(a.pulse):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Rotate turns the motor by the given angle. Positive angles are forward,
// negative reverse. Only one rotation may run at a time.
func (a *GPIOActuator) Rotate(ctx context.Context, angleDegrees float64) error {
	if angleDegrees == 0 {
		a.log.Warn().Msg("requested 0 degree rotation")
		return nil
	}

	a.mu.Lock()
	if a.turning {
		a.mu.Unlock()
		return ErrMotorBusy
	}
	a.turning = true
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		a.turning = false
		a.mu.Unlock()
	}()

	steps := int(math.Round(math.Abs(angleDegrees) / 360 * stepsPerRevolution))
	forward := angleDegrees > 0
	a.log.Debug().Float64("angle", angleDegrees).Int("steps", steps).Msg("turning motor")

	for i := 0; i < steps; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := a.step(ctx, forward); err != nil {
			return err
		}
	}
	return nil
}

// step walks the coil sequence once in the given direction.
func (a *GPIOActuator) step(ctx context.Context, forward bool) error {
	for i := 0; i < len(halfStepSequence); i++ {
		idx := i
		if !forward {
			idx = len(halfStepSequence) - 1 - i
		}
		for p, on := range halfStepSequence[idx] {
			if on {
				a.motorPins[p].High()
			} else {
				a.motorPins[p].Low()
			}
		}
		select {
		case <-time.After(a.stepDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
