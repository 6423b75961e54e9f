package swerve

import "math"

// Optimize returns the state equivalent to desired that keeps the steer
// axis within π/2 of current. A wheel driven backward at h+π moves the
// robot exactly like one driven forward at h, so when the requested
// heading is more than a quarter turn away the heading is flipped and the
// speed negated. A delta of exactly π/2 is left alone.
func Optimize(desired State, current float64) State {
	delta := NormalizeAngle(desired.Heading - current)
	if math.Abs(delta) <= math.Pi/2 {
		return State{Speed: desired.Speed, Heading: NormalizeAngle(desired.Heading)}
	}
	return State{
		Speed:   -desired.Speed,
		Heading: NormalizeAngle(desired.Heading - math.Pi),
	}
}
