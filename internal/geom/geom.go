// Package geom provides 2D point and vector math shared by the detection,
// tracking, and calibration packages. All coordinates are float64 pixels
// unless a function says otherwise.
package geom

import (
	"image"
	"math"
)

// Point is a 2D point or vector.
type Point struct {
	X float64
	Y float64
}

// NewPoint creates a Point from coordinates.
func NewPoint(x, y float64) Point {
	return Point{X: x, Y: y}
}

// NewPointFrom converts an image.Point.
func NewPointFrom(p image.Point) Point {
	return Point{X: float64(p.X), Y: float64(p.Y)}
}

// Add returns p + q.
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Norm returns the Euclidean length of p treated as a vector.
func (p Point) Norm() float64 {
	return math.Hypot(p.X, p.Y)
}

// Dot returns the dot product of p and q treated as vectors.
func (p Point) Dot(q Point) float64 {
	return p.X*q.X + p.Y*q.Y
}

// IsFinite reports whether both coordinates are finite numbers.
func (p Point) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) &&
		!math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// Distance returns the Euclidean distance between two points.
func Distance(p, q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// AngleBetween returns the angle in degrees (0-180) between two vectors.
// Vectors with magnitude below 1 are treated as directionless and yield 0,
// which keeps jitter around a standstill from reading as a direction change.
func AngleBetween(v1, v2 Point) float64 {
	mag1 := v1.Norm()
	mag2 := v2.Norm()
	if mag1 < 1.0 || mag2 < 1.0 {
		return 0.0
	}

	cos := v1.Dot(v2) / (mag1 * mag2)

	// Clamp for acos; rounding can push the ratio just past ±1.
	if cos > 1.0 {
		cos = 1.0
	} else if cos < -1.0 {
		cos = -1.0
	}

	return math.Acos(cos) * 180.0 / math.Pi
}

// Quad is a four-corner polygon, clockwise from the top-left.
type Quad struct {
	TopLeft     Point `json:"top_left"`
	TopRight    Point `json:"top_right"`
	BottomRight Point `json:"bottom_right"`
	BottomLeft  Point `json:"bottom_left"`
}

// Corners returns the corners in clockwise order.
func (q Quad) Corners() [4]Point {
	return [4]Point{q.TopLeft, q.TopRight, q.BottomRight, q.BottomLeft}
}

// Centroid returns the average of the four corners.
func (q Quad) Centroid() Point {
	return Point{
		X: (q.TopLeft.X + q.TopRight.X + q.BottomRight.X + q.BottomLeft.X) / 4,
		Y: (q.TopLeft.Y + q.TopRight.Y + q.BottomRight.Y + q.BottomLeft.Y) / 4,
	}
}

// Contains reports whether p lies inside or on the boundary of the quad,
// using the even-odd ray casting rule. The corners are subpixel floats, so
// this stays in pure float math rather than rounding to integer pixels.
func (q Quad) Contains(p Point) bool {
	corners := q.Corners()
	inside := false

	j := len(corners) - 1
	for i := 0; i < len(corners); i++ {
		a, b := corners[i], corners[j]
		if onSegment(p, a, b) {
			return true
		}
		if (a.Y > p.Y) != (b.Y > p.Y) {
			xCross := (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y) + a.X
			if p.X < xCross {
				inside = !inside
			}
		}
		j = i
	}

	return inside
}

// onSegment reports whether p lies on the segment a-b within a small tolerance.
func onSegment(p, a, b Point) bool {
	const eps = 1e-9
	cross := (b.X-a.X)*(p.Y-a.Y) - (b.Y-a.Y)*(p.X-a.X)
	if math.Abs(cross) > eps*(1+Distance(a, b)) {
		return false
	}
	dot := (p.X-a.X)*(b.X-a.X) + (p.Y-a.Y)*(b.Y-a.Y)
	if dot < -eps {
		return false
	}
	lenSq := (b.X-a.X)*(b.X-a.X) + (b.Y-a.Y)*(b.Y-a.Y)
	return dot <= lenSq+eps
}
