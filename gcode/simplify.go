package gcode

import (
	"math"

	"image2gcode/toolpath"
)

const epsilon = 0.00001

// Simplify drops intermediate points that lie within tolerance of the
// straight line from the last kept point to the following one. The first and
// last points are always kept.
func Simplify(points []toolpath.Point, tolerance float64) []toolpath.Point {
	if len(points) <= 2 {
		return append([]toolpath.Point(nil), points...)
	}
	if tolerance <= 0 {
		tolerance = epsilon
	}

	out := []toolpath.Point{points[0]}
	from := 0 // index of the last kept point

	for i := 2; i < len(points); i++ {
		// the points between from and i can be skipped if they all sit on
		// the line from->i; otherwise keep the one before i
		if !straight(points[from:i+1], tolerance) {
			out = append(out, points[i-1])
			from = i - 1
		}
	}

	return append(out, points[len(points)-1])
}

func straight(run []toolpath.Point, tolerance float64) bool {
	a, b := run[0], run[len(run)-1]
	for _, p := range run[1 : len(run)-1] {
		if lineDistance(a, p, b) > tolerance {
			return false
		}
	}
	return true
}

// lineDistance is the distance from p to the segment a-b.
func lineDistance(a, p, b toolpath.Point) float64 {
	dx, dy, dz := b.X-a.X, b.Y-a.Y, b.Z-a.Z
	l2 := dx*dx + dy*dy + dz*dz

	t := 0.0
	if l2 > 0 {
		t = ((p.X-a.X)*dx + (p.Y-a.Y)*dy + (p.Z-a.Z)*dz) / l2
		t = math.Max(0, math.Min(1, t))
	}

	ex := a.X + t*dx - p.X
	ey := a.Y + t*dy - p.Y
	ez := a.Z + t*dz - p.Z
	return math.Sqrt(ex*ex + ey*ey + ez*ez)
}
