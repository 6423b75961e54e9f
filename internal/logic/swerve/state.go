package swerve

import (
	"fmt"
	"math"
)

// State is a wheel velocity and orientation, desired or measured.
type State struct {
	Speed   float64 // m/s, signed
	Heading float64 // rad, (-π, π]
}

func (s State) String() string {
	return fmt.Sprintf("%.3f m/s @ %.1f°", s.Speed, Degrees(s.Heading))
}

// Position is the odometry sample of a module.
type Position struct {
	Distance float64 // m, signed by direction of travel
	Heading  float64 // rad, (-π, π]
}

// NormalizeAngle maps any angle in radians into (-π, π].
func NormalizeAngle(rad float64) float64 {
	a := math.Mod(rad, 2*math.Pi)
	if a <= -math.Pi {
		a += 2 * math.Pi
	} else if a > math.Pi {
		a -= 2 * math.Pi
	}
	return a
}

// Degrees converts radians to degrees.
func Degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

// Radians converts degrees to radians.
func Radians(deg float64) float64 {
	return deg * math.Pi / 180
}
