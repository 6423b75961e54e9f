package swerve

import (
	"fmt"
	"math"

	"github.com/cjeanneret/SwerveGo/internal/debug"
	"github.com/cjeanneret/SwerveGo/internal/hw/actuator"
)

// Geometry describes the wheel and the two reductions of a module.
type Geometry struct {
	WheelDiameter  float64 // m
	DriveGearRatio float64 // motor turns per wheel turn
	SteerGearRatio float64 // motor turns per steer turn
}

// DriveCoefficient is the wheel travel in meters per drive motor rotation.
func (g Geometry) DriveCoefficient() float64 {
	return math.Pi * g.WheelDiameter / g.DriveGearRatio
}

// SteerCoefficient is the steer angle in radians per steer motor rotation.
func (g Geometry) SteerCoefficient() float64 {
	return 2 * math.Pi / g.SteerGearRatio
}

// Validate checks that every ratio is usable as a divisor.
func (g Geometry) Validate() error {
	if !(g.WheelDiameter > 0) {
		return fmt.Errorf("wheel diameter must be > 0, got %g", g.WheelDiameter)
	}
	if !(g.DriveGearRatio > 0) {
		return fmt.Errorf("drive gear ratio must be > 0, got %g", g.DriveGearRatio)
	}
	if !(g.SteerGearRatio > 0) {
		return fmt.Errorf("steer gear ratio must be > 0, got %g", g.SteerGearRatio)
	}
	return nil
}

// Calibration converts between raw controller units and physical units and
// aligns the steer relative encoder to the absolute encoder.
type Calibration struct {
	module string
	drive  actuator.Motor
	steer  actuator.Motor
	enc    actuator.AbsoluteEncoder

	driveCoef float64
	steerCoef float64
}

// NewCalibration builds a calibration for the given devices. It does not
// touch the hardware.
func NewCalibration(module string, g Geometry, drive, steer actuator.Motor, enc actuator.AbsoluteEncoder) *Calibration {
	return &Calibration{
		module:    module,
		drive:     drive,
		steer:     steer,
		enc:       enc,
		driveCoef: g.DriveCoefficient(),
		steerCoef: g.SteerCoefficient(),
	}
}

// DriveVelocity converts motor rotations per second to m/s.
func (c *Calibration) DriveVelocity(rps float64) float64 {
	return rps * c.driveCoef
}

// DriveDistance converts motor rotations to meters.
func (c *Calibration) DriveDistance(rotations float64) float64 {
	return rotations * c.driveCoef
}

// DriveRaw converts meters (or m/s) to motor rotations (or rotations per second).
func (c *Calibration) DriveRaw(meters float64) float64 {
	return meters / c.driveCoef
}

// SteerAngle converts steer motor rotations to radians. The result is not
// normalized: the relative encoder counts whole turns.
func (c *Calibration) SteerAngle(rotations float64) float64 {
	return rotations * c.steerCoef
}

// SteerRate converts steer motor rotations per second to rad/s.
func (c *Calibration) SteerRate(rps float64) float64 {
	return rps * c.steerCoef
}

// SteerRaw converts radians (or rad/s) to steer motor rotations.
func (c *Calibration) SteerRaw(rad float64) float64 {
	return rad / c.steerCoef
}

// Heading reads the steer relative encoder and returns the heading in (-π, π].
func (c *Calibration) Heading() (float64, error) {
	raw, err := c.steer.Position()
	if err != nil {
		return 0, err
	}
	return NormalizeAngle(c.SteerAngle(raw)), nil
}

// AbsoluteHeading reads the absolute encoder and returns its angle in
// (-π, π]. Unreadable, non-finite or out-of-range values are sensor faults.
func (c *Calibration) AbsoluteHeading() (float64, error) {
	deg, err := c.enc.AbsolutePosition()
	if err != nil {
		return 0, newError(c.module, "read absolute encoder", ErrSensorFault, err)
	}
	if math.IsNaN(deg) || math.IsInf(deg, 0) || deg < -180 || deg >= 180 {
		return 0, newError(c.module, "read absolute encoder", ErrSensorFault,
			fmt.Errorf("angle %g out of range [-180, 180)", deg))
	}
	return NormalizeAngle(Radians(deg)), nil
}

// Reset zeroes the drive distance and seeds the steer relative encoder
// with the absolute heading. The absolute encoder is read first, so on a
// sensor fault nothing is written.
func (c *Calibration) Reset() error {
	heading, err := c.AbsoluteHeading()
	if err != nil {
		return err
	}
	debug.Verbose("%s: seeding steer encoder at %.2f° (%.4f rot)", c.module, Degrees(heading), c.SteerRaw(heading))
	if err := c.steer.SetPosition(c.SteerRaw(heading)); err != nil {
		return newError(c.module, "seed steer encoder", ErrActuatorCommand, err)
	}
	if err := c.drive.SetPosition(0); err != nil {
		return newError(c.module, "zero drive encoder", ErrActuatorCommand, err)
	}
	return nil
}
