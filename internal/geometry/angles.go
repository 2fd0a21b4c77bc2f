// Package geometry holds the pure angle helpers used by the rig controller.
// All angles are in degrees and wrapped into (-180, 180].
package geometry

import "math"

// Point is a 2D point in screen coordinates (Y grows downward).
type Point struct {
	X float64
	Y float64
}

// Angle2D returns the angle of the vector from p1 to p2 in degrees.
// The Y axis is inverted so that "up" on screen is a positive angle:
// (0,0)->(1,0) is 0 and (0,0)->(0,-1) is 90 because screen Y points down.
func Angle2D(p1, p2 Point) float64 {
	dx := p2.X - p1.X
	// p1.Y - p2.Y rather than -(p2.Y - p1.Y): a level vector must give
	// dy = +0.0, and Atan2(-0, -1) would land on -180 instead of +180.
	dy := p1.Y - p2.Y
	return math.Atan2(dy, dx) * 180.0 / math.Pi
}

// Normalize wraps an angle into (-180, 180]. The +180 boundary is kept,
// matching what Angle2D returns for a vector pointing straight left.
func Normalize(angle float64) float64 {
	a := math.Mod(angle, 360.0)
	if a <= -180.0 {
		a += 360.0
	} else if a > 180.0 {
		a -= 360.0
	}
	return a
}

// AngleDiff returns the normalized difference a-b. It stays continuous
// across the wrap boundary, so a forearm angle relative to the upper arm
// never jumps by 360.
func AngleDiff(a, b float64) float64 {
	return Normalize(a - b)
}
