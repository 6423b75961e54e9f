package gpio

import "github.com/cjeanneret/SwerveGo/internal/debug"

// EnableLine drives the active-high enable input of the motor-controller bridge.
// Pin 0 means the robot has no enable line and every call is a no-op.
type EnableLine struct {
	gpio Driver
	pin  int
}

// NewEnableLine configures pin as an output held low (disabled).
func NewEnableLine(g Driver, pin int) (*EnableLine, error) {
	e := &EnableLine{gpio: g, pin: pin}
	if pin <= 0 {
		return e, nil
	}
	if err := g.SetupPin(pin, Output); err != nil {
		return nil, err
	}
	if err := g.WritePin(pin, Low); err != nil {
		return nil, err
	}
	return e, nil
}

// Enable raises the line; the controllers start accepting setpoints.
func (e *EnableLine) Enable() error {
	if e.pin <= 0 {
		return nil
	}
	debug.Info("Enable line (pin %d) HIGH", e.pin)
	return e.gpio.WritePin(e.pin, High)
}

// Disable drops the line; the controllers coast or brake per their configuration.
func (e *EnableLine) Disable() error {
	if e.pin <= 0 {
		return nil
	}
	debug.Info("Enable line (pin %d) LOW", e.pin)
	return e.gpio.WritePin(e.pin, Low)
}
