package deskpad

import (
	"math"

	"honnef.co/go/curve"
)

// Transform is the geometric state of a canvas object.
//
// Left and Top locate the object's center (center origin). Width and Height
// are the intrinsic, untransformed size; for images this is the pixel size of
// the raster the object displays. Angle, SkewX and SkewY are in degrees.
type Transform struct {
	Left, Top     float64
	Width, Height float64
	ScaleX        float64
	ScaleY        float64
	Angle         float64
	SkewX, SkewY  float64
	FlipX, FlipY  bool
	Opacity       float64
}

// NewTransform returns a transform centered at (left, top) with unit scale
// and full opacity.
func NewTransform(left, top, width, height float64) Transform {
	return Transform{
		Left:    left,
		Top:     top,
		Width:   width,
		Height:  height,
		ScaleX:  1,
		ScaleY:  1,
		Opacity: 1,
	}
}

// Scale is a per-axis scale factor. The export pipeline derives one from the
// export canvas and the interactive canvas; it is uniform up to rounding.
type Scale struct {
	X, Y float64
}

// Uniform returns the mean of both axes.
func (s Scale) Uniform() float64 { return (s.X + s.Y) / 2 }

// scales returns ScaleX and ScaleY with zero treated as 1, the way the editor
// treats unset scales.
func (t Transform) scales() (float64, float64) {
	sx, sy := t.ScaleX, t.ScaleY
	if sx == 0 {
		sx = 1
	}
	if sy == 0 {
		sy = 1
	}
	return sx, sy
}

// Footprint returns the on-canvas size of the object: Width·ScaleX by
// Height·ScaleY.
func (t Transform) Footprint() curve.Size {
	sx, sy := t.scales()
	return curve.Sz(math.Abs(t.Width*sx), math.Abs(t.Height*sy))
}

// scaled maps the transform into a canvas scaled by s: the center and the
// scale factors are multiplied, everything resolution independent is copied.
func (t Transform) scaled(s Scale) Transform {
	sx, sy := t.scales()
	out := t
	out.Left = t.Left * s.X
	out.Top = t.Top * s.Y
	out.ScaleX = sx * s.X
	out.ScaleY = sy * s.Y
	return out
}

// Affine returns the object-to-canvas transform. Object space has its origin
// at the object's center, so the intrinsic box spans ±Width/2, ±Height/2.
// The composition order is translate, rotate, scale with flips, then skew.
func (t Transform) Affine() curve.Affine {
	sx, sy := t.scales()
	if t.FlipX {
		sx = -sx
	}
	if t.FlipY {
		sy = -sy
	}
	aff := curve.Translate(curve.Vec(t.Left, t.Top)).
		Mul(curve.Rotate(radians(t.Angle))).
		Mul(curve.Scale(sx, sy))
	if t.SkewX != 0 {
		aff = aff.Mul(curve.Skew(math.Tan(radians(t.SkewX)), 0))
	}
	if t.SkewY != 0 {
		aff = aff.Mul(curve.Skew(0, math.Tan(radians(t.SkewY))))
	}
	return aff
}

// Bounds returns the axis-aligned bounding box of the transformed object.
func (t Transform) Bounds() curve.Rect {
	box := curve.Rect{X0: -t.Width / 2, Y0: -t.Height / 2, X1: t.Width / 2, Y1: t.Height / 2}
	return t.Affine().TransformRectBoundingBox(box)
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
