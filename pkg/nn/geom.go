package nn

// Package nn holds the geometry shared by the detector output and the
// keyframe editing code. Coordinates are normalized to [0,1] relative to the
// full video frame, which is how the detector emits them.

import (
	"github.com/chewxy/math32"
)

type Point struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

func (p Point) Distance(b Point) float32 {
	return math32.Sqrt((p.X-b.X)*(p.X-b.X) + (p.Y-b.Y)*(p.Y-b.Y))
}

// Rect is an axis-aligned box in normalized image coordinates.
// A valid Rect has X0 < X1 and Y0 < Y1.
type Rect struct {
	X0 float32 `json:"x_min"`
	Y0 float32 `json:"y_min"`
	X1 float32 `json:"x_max"`
	Y1 float32 `json:"y_max"`
}

func (r Rect) Width() float32 {
	return r.X1 - r.X0
}

func (r Rect) Height() float32 {
	return r.Y1 - r.Y0
}

func (r Rect) Area() float32 {
	return r.Width() * r.Height()
}

// IsEmpty returns true if the rectangle encloses no area
func (r Rect) IsEmpty() bool {
	return r.X1 <= r.X0 || r.Y1 <= r.Y0
}

func (r Rect) Intersection(b Rect) Rect {
	x0 := math32.Max(r.X0, b.X0)
	y0 := math32.Max(r.Y0, b.Y0)
	x1 := math32.Min(r.X1, b.X1)
	y1 := math32.Min(r.Y1, b.Y1)
	if x1 < x0 || y1 < y0 {
		return Rect{}
	}
	return Rect{X0: x0, Y0: y0, X1: x1, Y1: y1}
}

func (r Rect) Union(b Rect) Rect {
	return Rect{
		X0: math32.Min(r.X0, b.X0),
		Y0: math32.Min(r.Y0, b.Y0),
		X1: math32.Max(r.X1, b.X1),
		Y1: math32.Max(r.Y1, b.Y1),
	}
}

// Intersection over Union.
// Returns 0 if the boxes don't touch, and also if the union has zero area,
// so that two degenerate boxes never produce a NaN.
func (r Rect) IOU(b Rect) float32 {
	x0 := math32.Max(r.X0, b.X0)
	y0 := math32.Max(r.Y0, b.Y0)
	x1 := math32.Min(r.X1, b.X1)
	y1 := math32.Min(r.Y1, b.Y1)
	if x1 < x0 || y1 < y0 {
		return 0
	}
	intersection := (x1 - x0) * (y1 - y0)
	union := r.Area() + b.Area() - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}

func (r Rect) Center() Point {
	return Point{
		X: (r.X0 + r.X1) / 2,
		Y: (r.Y0 + r.Y1) / 2,
	}
}
