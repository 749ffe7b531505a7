package deskpad

import (
	"errors"
	"image/color"
	"math"

	"github.com/gogpu/gg"
	"honnef.co/go/curve"
)

// outerStrokeOffset shifts the widened stroke pass of an outer stroke.
const outerStrokeOffset = 1

// matrixOf converts a curve affine to the equivalent gg matrix.
func matrixOf(aff curve.Affine) gg.Matrix {
	return gg.Matrix{
		A: aff.N0, B: aff.N2, C: aff.N4,
		D: aff.N1, E: aff.N3, F: aff.N5,
	}
}

func opacityOf(t Transform) float64 {
	return math.Max(0, math.Min(1, t.Opacity))
}

// paintRaster draws buf so that it fills t's intrinsic box.
func paintRaster(dc *gg.Context, t Transform, buf *gg.ImageBuf) {
	op := opacityOf(t)
	// DrawImageEx treats opacity 0 as "unset".
	if op <= 0 {
		return
	}
	dc.Push()
	defer dc.Pop()
	dc.Transform(matrixOf(t.Affine()))
	dc.DrawImageEx(buf, gg.DrawImageOptions{
		X:             -t.Width / 2,
		Y:             -t.Height / 2,
		DstWidth:      t.Width,
		DstHeight:     t.Height,
		Interpolation: gg.InterpBicubic,
		Opacity:       op,
		BlendMode:     gg.BlendNormal,
	})
}

// vectorStyle is a resolved fill and stroke.
type vectorStyle struct {
	fill      color.NRGBA
	hasFill   bool
	stroke    color.NRGBA
	hasStroke bool

	strokeWidth float64
	position    StrokePosition
	dash        []float64
	dashOffset  float64
	join        gg.LineJoin

	shadow *shadowStyle
}

type shadowStyle struct {
	color  color.NRGBA
	dx, dy float64
}

// vectorDrawing is rebuilt vector content in object space.
type vectorDrawing struct {
	body *gg.Path
	// extra is filled with the fill color but never stroked (text
	// decorations).
	extra *gg.Path
	// open marks geometry that is stroked only (lines).
	open  bool
	style vectorStyle
}

func (v *vectorDrawing) paint(dc *gg.Context, t Transform) error {
	op := opacityOf(t)
	if op <= 0 {
		return nil
	}
	dc.Push()
	defer dc.Pop()
	dc.Transform(matrixOf(t.Affine()))
	if op < 1 {
		dc.PushLayer(gg.BlendNormal, op)
		defer dc.PopLayer()
	}

	var errs []error
	st := v.style
	if sh := st.shadow; sh != nil {
		dc.Push()
		dc.Translate(sh.dx, sh.dy)
		if st.hasFill {
			errs = append(errs, v.fillPass(dc, sh.color))
		}
		if st.hasStroke {
			errs = append(errs, v.strokePass(dc, sh.color, st.strokeWidth))
		}
		dc.Pop()
	}

	if st.hasStroke && st.position == StrokeOuter && !v.open {
		dc.Push()
		dc.Translate(outerStrokeOffset, outerStrokeOffset)
		errs = append(errs, v.strokePass(dc, st.stroke, st.strokeWidth*2))
		dc.Pop()
		if st.hasFill {
			errs = append(errs, v.fillPass(dc, st.fill))
		}
		return errors.Join(errs...)
	}

	if st.hasFill {
		errs = append(errs, v.fillPass(dc, st.fill))
	}
	if st.hasStroke {
		errs = append(errs, v.strokePass(dc, st.stroke, st.strokeWidth))
	}
	return errors.Join(errs...)
}

func (v *vectorDrawing) fillPass(dc *gg.Context, c color.Color) error {
	dc.SetColor(c)
	dc.SetFillRule(gg.FillRuleNonZero)
	var errs []error
	if !v.open {
		errs = append(errs, dc.FillPath(v.body))
	}
	if v.extra != nil {
		errs = append(errs, dc.FillPath(v.extra))
	}
	return errors.Join(errs...)
}

func (v *vectorDrawing) strokePass(dc *gg.Context, c color.Color, width float64) error {
	if width <= 0 {
		return nil
	}
	dc.SetColor(c)
	dc.SetLineWidth(width)
	dc.SetLineJoin(v.style.join)
	if len(v.style.dash) > 0 {
		dc.SetDash(v.style.dash...)
		dc.SetDashOffset(v.style.dashOffset)
	} else {
		dc.ClearDash()
	}
	return dc.StrokePath(v.body)
}
