package bus

import (
	"github.com/cjeanneret/SwerveGo/internal/hw/actuator"
)

// Motor is a smart motor controller on the bus.
type Motor struct {
	bus *Bus
	id  int
}

// NewMotor returns the motor controller with the given device id.
func NewMotor(b *Bus, id int) *Motor {
	return &Motor{bus: b, id: id}
}

func (m *Motor) do(verb string, args ...float64) error {
	_, err := m.bus.Request(m.id, verb, args...)
	return err
}

// Configure sends every setting in one CFG frame:
// current limit, inverted, brake, P, I, D, FF, max accel, wrap min, wrap max.
func (m *Motor) Configure(cfg actuator.DeviceConfig) error {
	g := cfg.Gains
	return m.do("CFG",
		float64(cfg.CurrentLimit), flag(cfg.Inverted), flag(cfg.BrakeMode),
		g.P, g.I, g.D, g.FF, g.MaxAccel,
		cfg.Wrap.Min, cfg.Wrap.Max,
	)
}

func (m *Motor) Commit() error { return m.do("COMMIT") }

func (m *Motor) SetVelocitySetpoint(rps float64) error { return m.do("VEL", rps) }

func (m *Motor) SetPositionSetpoint(rotations float64) error { return m.do("POS", rotations) }

func (m *Motor) SetOpenLoopZero() error { return m.do("ZERO") }

func (m *Motor) Velocity() (float64, error) { return m.bus.Request(m.id, "GETVEL") }

func (m *Motor) Position() (float64, error) { return m.bus.Request(m.id, "GETPOS") }

func (m *Motor) SetPosition(rotations float64) error { return m.do("SETPOS", rotations) }

// Encoder is an absolute encoder on the bus.
type Encoder struct {
	bus *Bus
	id  int
}

// NewEncoder returns the absolute encoder with the given device id.
func NewEncoder(b *Bus, id int) *Encoder {
	return &Encoder{bus: b, id: id}
}

// Configure sets the magnet offset and the signed ±180° range.
func (e *Encoder) Configure(offsetDegrees float64) error {
	_, err := e.bus.Request(e.id, "ABSCFG", offsetDegrees)
	return err
}

func (e *Encoder) AbsolutePosition() (float64, error) {
	return e.bus.Request(e.id, "ABS")
}

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

var (
	_ actuator.Motor           = (*Motor)(nil)
	_ actuator.AbsoluteEncoder = (*Encoder)(nil)
)
