package swerve

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration means a device could not be brought up. The module
	// must not be enabled.
	ErrConfiguration = errors.New("configuration error")
	// ErrSensorFault means the absolute encoder read failed or was out of
	// range. The previous steer reference is kept.
	ErrSensorFault = errors.New("sensor fault")
	// ErrActuatorCommand means a command to a motor controller, or a reading
	// from it, failed. After a failed setpoint the actuator was told to stop
	// for this tick; the next tick retries.
	ErrActuatorCommand = errors.New("actuator command failure")
	// ErrInvalidState is returned for a desired state with a NaN or
	// infinite field. The module is stopped.
	ErrInvalidState = errors.New("invalid desired state")
)

// Error reports a failed module operation. errors.Is matches both Kind
// and the underlying cause.
type Error struct {
	Module string
	Op     string
	Kind   error
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("module %s: %s: %v: %v", e.Module, e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func newError(module, op string, kind, err error) error {
	return &Error{Module: module, Op: op, Kind: kind, Err: err}
}
