package actuator

import (
	"math"
	"time"

	"github.com/cjeanneret/SwerveGo/internal/debug"
)

// SimMotor is an ideal motor used when no bus is attached: velocity and
// position setpoints are reached instantly and the position channel
// integrates the velocity over wall-clock time.
type SimMotor struct {
	Name string

	cfg       DeviceConfig
	committed bool
	velocity  float64 // rotations per second
	position  float64 // rotations
	last      time.Time
	now       func() time.Time
}

// NewSimMotor returns a simulated motor reading time from now.
// A nil now uses time.Now.
func NewSimMotor(name string, now func() time.Time) *SimMotor {
	if now == nil {
		now = time.Now
	}
	return &SimMotor{Name: name, now: now, last: now()}
}

func (m *SimMotor) Configure(cfg DeviceConfig) error {
	debug.PrintStruct("sim "+m.Name+" config", cfg)
	m.cfg = cfg
	return nil
}

func (m *SimMotor) Commit() error {
	m.committed = true
	return nil
}

// Committed reports whether Commit was called.
func (m *SimMotor) Committed() bool { return m.committed }

// Config returns the last applied configuration.
func (m *SimMotor) Config() DeviceConfig { return m.cfg }

func (m *SimMotor) SetVelocitySetpoint(rps float64) error {
	m.advance()
	m.velocity = rps
	return nil
}

// SetPositionSetpoint moves to the target, taking the short way around
// when wrap bounds are configured.
func (m *SimMotor) SetPositionSetpoint(rotations float64) error {
	m.advance()
	m.velocity = 0
	w := m.cfg.Wrap
	if !w.Enabled() {
		m.position = rotations
		return nil
	}
	span := w.Max - w.Min
	delta := math.Remainder(rotations-m.position, span)
	m.position += delta
	return nil
}

func (m *SimMotor) SetOpenLoopZero() error {
	m.advance()
	m.velocity = 0
	return nil
}

func (m *SimMotor) Velocity() (float64, error) {
	m.advance()
	return m.velocity, nil
}

func (m *SimMotor) Position() (float64, error) {
	m.advance()
	return m.position, nil
}

func (m *SimMotor) SetPosition(rotations float64) error {
	m.advance()
	m.position = rotations
	return nil
}

func (m *SimMotor) advance() {
	t := m.now()
	m.position += m.velocity * t.Sub(m.last).Seconds()
	m.last = t
}

// SimEncoder is an absolute encoder mounted on a simulated steer axis.
// Raw is the uncorrected magnet angle in degrees.
type SimEncoder struct {
	Raw    float64
	offset float64
}

func (e *SimEncoder) Configure(offsetDegrees float64) error {
	e.offset = offsetDegrees
	return nil
}

// AbsolutePosition applies the offset and wraps into [-180, 180).
func (e *SimEncoder) AbsolutePosition() (float64, error) {
	deg := math.Mod(e.Raw+e.offset+180, 360)
	if deg < 0 {
		deg += 360
	}
	return deg - 180, nil
}
