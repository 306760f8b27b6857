// Package geom holds the pure 2-D math the simulation is built on: distances,
// bearings and nearest-neighbour queries over star locations. Nothing in here
// carries state.
package geom

import "math"

// Point is a location on the galaxy plane.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Distance returns the Euclidean distance between two points.
func Distance(a, b Point) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	return math.Hypot(dx, dy)
}

// DistanceSquared avoids the square root for comparison-only callers.
func DistanceSquared(a, b Point) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	return dx*dx + dy*dy
}

// Angle returns the bearing from a to b in radians.
func Angle(a, b Point) float64 {
	return math.Atan2(b.Y-a.Y, b.X-a.X)
}

// Translate moves p by dist along the given bearing.
func Translate(p Point, bearing, dist float64) Point {
	return Point{
		X: p.X + math.Cos(bearing)*dist,
		Y: p.Y + math.Sin(bearing)*dist,
	}
}

// Nearest returns the index of the candidate closest to origin, or -1 when
// candidates is empty. Ties resolve to the earliest index.
func Nearest(origin Point, candidates []Point) int {
	best := -1
	bestDist := math.Inf(1)
	for i, c := range candidates {
		if d := DistanceSquared(origin, c); d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best
}

// Furthest returns the index of the candidate furthest from origin, or -1
// when candidates is empty.
func Furthest(origin Point, candidates []Point) int {
	best := -1
	bestDist := -1.0
	for i, c := range candidates {
		if d := DistanceSquared(origin, c); d > bestDist {
			best = i
			bestDist = d
		}
	}
	return best
}

// WithinRange reports whether b lies within radius of a.
func WithinRange(a, b Point, radius float64) bool {
	return DistanceSquared(a, b) <= radius*radius
}
