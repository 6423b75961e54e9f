package swerve

import (
	"errors"
	"fmt"
	"math"

	"github.com/cjeanneret/SwerveGo/internal/debug"
	"github.com/cjeanneret/SwerveGo/internal/hw/actuator"
)

// DefaultDeadband is the speed below which a desired state means "stop", in m/s.
const DefaultDeadband = 0.001

// Config is everything a module needs at construction.
type Config struct {
	Name          string
	Geometry      Geometry
	Drive         actuator.DeviceConfig
	Steer         actuator.DeviceConfig // Wrap is set by New
	OffsetDegrees float64               // absolute encoder magnet offset
	Deadband      float64               // m/s, 0 = DefaultDeadband
}

// Module is the controller of one swerve module. It owns its two motors and
// its absolute encoder and keeps no state between ticks besides its
// configuration.
type Module struct {
	name     string
	drive    actuator.Motor
	steer    actuator.Motor
	cal      *Calibration
	deadband float64
}

// New configures the devices, burns their settings and aligns the steer
// encoder to the absolute encoder. Any failure matches ErrConfiguration
// and the module must not be used.
func New(cfg Config, drive, steer actuator.Motor, enc actuator.AbsoluteEncoder) (*Module, error) {
	if err := cfg.Geometry.Validate(); err != nil {
		return nil, newError(cfg.Name, "validate geometry", ErrConfiguration, err)
	}

	m := &Module{
		name:     cfg.Name,
		drive:    drive,
		steer:    steer,
		cal:      NewCalibration(cfg.Name, cfg.Geometry, drive, steer, enc),
		deadband: cfg.Deadband,
	}
	if m.deadband <= 0 {
		m.deadband = DefaultDeadband
	}

	debug.Info("Configuring module %s", cfg.Name)
	if err := enc.Configure(cfg.OffsetDegrees); err != nil {
		return nil, newError(cfg.Name, "configure absolute encoder", ErrConfiguration, err)
	}

	driveCfg := cfg.Drive
	driveCfg.Wrap = actuator.WrapBounds{}
	if err := configure(drive, driveCfg); err != nil {
		return nil, newError(cfg.Name, "configure drive motor", ErrConfiguration, err)
	}

	// The firmware wraps in raw units: ±π at the wheel is ±ratio/2 motor turns.
	steerCfg := cfg.Steer
	steerCfg.Wrap = actuator.WrapBounds{Min: m.cal.SteerRaw(-math.Pi), Max: m.cal.SteerRaw(math.Pi)}
	if err := configure(steer, steerCfg); err != nil {
		return nil, newError(cfg.Name, "configure steer motor", ErrConfiguration, err)
	}

	if err := m.cal.Reset(); err != nil {
		return nil, newError(cfg.Name, "initial position reset", ErrConfiguration, err)
	}
	return m, nil
}

func configure(motor actuator.Motor, cfg actuator.DeviceConfig) error {
	if err := motor.Configure(cfg); err != nil {
		return err
	}
	return motor.Commit()
}

// Name returns the module name used in logs and errors.
func (m *Module) Name() string {
	return m.name
}

// Calibration exposes the unit conversions of this module.
func (m *Module) Calibration() *Calibration {
	return m.cal
}

// SetDesiredState dispatches one tick of closed-loop setpoints. Below the
// dead-band the module is stopped and the steer setpoint is left where it
// was, so the wheels do not snap back to zero every time the robot halts.
func (m *Module) SetDesiredState(desired State) error {
	if math.IsNaN(desired.Speed) || math.IsInf(desired.Speed, 0) ||
		math.IsNaN(desired.Heading) || math.IsInf(desired.Heading, 0) {
		return errors.Join(
			newError(m.name, "set desired state", ErrInvalidState, fmt.Errorf("got %v", desired)),
			m.Stop(),
		)
	}
	if math.Abs(desired.Speed) < m.deadband {
		debug.Verbose("%s: %.4f m/s inside dead-band, stopping", m.name, desired.Speed)
		return m.Stop()
	}

	current, err := m.cal.Heading()
	if err != nil {
		return errors.Join(
			newError(m.name, "read steer heading", ErrActuatorCommand, err),
			m.Stop(),
		)
	}

	opt := Optimize(desired, current)
	if opt.Speed != desired.Speed {
		debug.Verbose("%s: flipped %v to %v (current %.1f°)", m.name, desired, opt, Degrees(current))
	}

	var errs []error
	debug.Setpoint(m.name, "drive", opt.Speed)
	if err := m.drive.SetVelocitySetpoint(m.cal.DriveRaw(opt.Speed)); err != nil {
		errs = append(errs, m.commandFailed("drive velocity setpoint", m.drive, err))
	}
	debug.Setpoint(m.name, "steer", opt.Heading)
	if err := m.steer.SetPositionSetpoint(m.cal.SteerRaw(opt.Heading)); err != nil {
		errs = append(errs, m.commandFailed("steer position setpoint", m.steer, err))
	}
	return errors.Join(errs...)
}

// commandFailed stops the motor whose setpoint write failed and reports both.
func (m *Module) commandFailed(op string, motor actuator.Motor, err error) error {
	if stopErr := motor.SetOpenLoopZero(); stopErr != nil {
		err = errors.Join(err, fmt.Errorf("stop after failure: %w", stopErr))
	}
	return newError(m.name, op, ErrActuatorCommand, err)
}

// Stop commands open-loop zero on both motors. Both are always attempted.
func (m *Module) Stop() error {
	debug.Live("%s: stop", m.name)
	var errs []error
	if err := m.drive.SetOpenLoopZero(); err != nil {
		errs = append(errs, newError(m.name, "stop drive", ErrActuatorCommand, err))
	}
	if err := m.steer.SetOpenLoopZero(); err != nil {
		errs = append(errs, newError(m.name, "stop steer", ErrActuatorCommand, err))
	}
	return errors.Join(errs...)
}

// State returns the measured wheel speed and heading.
func (m *Module) State() (State, error) {
	rps, err := m.drive.Velocity()
	if err != nil {
		return State{}, newError(m.name, "read drive velocity", ErrActuatorCommand, err)
	}
	heading, err := m.cal.Heading()
	if err != nil {
		return State{}, newError(m.name, "read steer position", ErrActuatorCommand, err)
	}
	return State{Speed: m.cal.DriveVelocity(rps), Heading: heading}, nil
}

// Position returns the distance driven since the last reset and the heading.
func (m *Module) Position() (Position, error) {
	rot, err := m.drive.Position()
	if err != nil {
		return Position{}, newError(m.name, "read drive position", ErrActuatorCommand, err)
	}
	heading, err := m.cal.Heading()
	if err != nil {
		return Position{}, newError(m.name, "read steer position", ErrActuatorCommand, err)
	}
	return Position{Distance: m.cal.DriveDistance(rot), Heading: heading}, nil
}

// SteerRate returns the measured steer angular velocity in rad/s.
func (m *Module) SteerRate() (float64, error) {
	rps, err := m.steer.Velocity()
	if err != nil {
		return 0, newError(m.name, "read steer velocity", ErrActuatorCommand, err)
	}
	return m.cal.SteerRate(rps), nil
}

// AbsoluteHeading reads the absolute encoder, for diagnostics.
func (m *Module) AbsoluteHeading() (float64, error) {
	return m.cal.AbsoluteHeading()
}

// ResetPosition zeroes the drive distance and re-aligns the steer encoder to
// the absolute encoder. On a sensor fault the previous reference is kept.
func (m *Module) ResetPosition() error {
	debug.Info("%s: resetting position", m.name)
	return m.cal.Reset()
}
