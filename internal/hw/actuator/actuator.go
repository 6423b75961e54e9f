package actuator

// GainSet holds the closed-loop constants loaded into a motor controller.
// MaxAccel is in raw units per second squared; 0 leaves it unset.
type GainSet struct {
	P        float64
	I        float64
	D        float64
	FF       float64
	MaxAccel float64
}

// WrapBounds enables continuous-input position control in the controller
// firmware: Min and Max are the same physical position. Zero value disables it.
type WrapBounds struct {
	Min float64
	Max float64
}

// Enabled reports whether position wrapping is configured.
func (w WrapBounds) Enabled() bool {
	return w.Max > w.Min
}

// DeviceConfig is the one-time bring-up of a motor controller.
type DeviceConfig struct {
	CurrentLimit int // amps, 0 = controller default
	Inverted     bool
	BrakeMode    bool
	Gains        GainSet
	Wrap         WrapBounds
}

// Motor is a smart motor controller running its own closed loop in firmware.
// Positions are in motor rotations and velocities in motor rotations per
// second, as measured by the controller's relative encoder.
type Motor interface {
	// Configure applies cfg to the controller's volatile settings.
	Configure(cfg DeviceConfig) error
	// Commit burns the current settings to persistent memory. Idempotent.
	Commit() error

	SetVelocitySetpoint(rps float64) error
	SetPositionSetpoint(rotations float64) error
	// SetOpenLoopZero commands zero output, bypassing the closed loop.
	SetOpenLoopZero() error

	Velocity() (float64, error)
	Position() (float64, error)
	// SetPosition seeds the relative encoder.
	SetPosition(rotations float64) error
}

// AbsoluteEncoder reports a drift-free angle, already corrected by the
// magnet offset it was configured with.
type AbsoluteEncoder interface {
	Configure(offsetDegrees float64) error
	// AbsolutePosition returns degrees in [-180, 180).
	AbsolutePosition() (float64, error)
}
