package swerve

import (
	"errors"

	"github.com/cjeanneret/SwerveGo/internal/hw/actuator"
)

var errBus = errors.New("bus timeout")

// motorCall is one command received by fakeMotor.
type motorCall struct {
	op    string // "configure", "commit", "velocity", "position", "zero", "seed"
	value float64
}

// fakeMotor records commands and serves programmable readings.
type fakeMotor struct {
	calls    []motorCall
	cfg      actuator.DeviceConfig
	velocity float64
	position float64

	failOn map[string]error
}

func (f *fakeMotor) record(op string, v float64) error {
	f.calls = append(f.calls, motorCall{op: op, value: v})
	return f.failOn[op]
}

func (f *fakeMotor) fail(op string, err error) {
	if f.failOn == nil {
		f.failOn = make(map[string]error)
	}
	f.failOn[op] = err
}

func (f *fakeMotor) Configure(cfg actuator.DeviceConfig) error {
	f.cfg = cfg
	return f.record("configure", 0)
}

func (f *fakeMotor) Commit() error { return f.record("commit", 0) }

func (f *fakeMotor) SetVelocitySetpoint(rps float64) error { return f.record("velocity", rps) }

func (f *fakeMotor) SetPositionSetpoint(rot float64) error { return f.record("position", rot) }

func (f *fakeMotor) SetOpenLoopZero() error { return f.record("zero", 0) }

func (f *fakeMotor) Velocity() (float64, error) {
	return f.velocity, f.failOn["read"]
}

func (f *fakeMotor) Position() (float64, error) {
	return f.position, f.failOn["read"]
}

func (f *fakeMotor) SetPosition(rot float64) error {
	if err := f.record("seed", rot); err != nil {
		return err
	}
	f.position = rot
	return nil
}

func (f *fakeMotor) ops(op string) []motorCall {
	var result []motorCall
	for _, c := range f.calls {
		if c.op == op {
			result = append(result, c)
		}
	}
	return result
}

// fakeEncoder returns a fixed angle or an error.
type fakeEncoder struct {
	degrees float64
	offset  float64
	err     error
	cfgErr  error
}

func (e *fakeEncoder) Configure(offset float64) error {
	e.offset = offset
	return e.cfgErr
}

func (e *fakeEncoder) AbsolutePosition() (float64, error) {
	return e.degrees, e.err
}

// mk4iL2 is the geometry used across tests: 4" wheel, L2 drive, 150/7 steer.
var mk4iL2 = Geometry{WheelDiameter: 0.1016, DriveGearRatio: 6.75, SteerGearRatio: 150.0 / 7.0}
