package deskpad

import (
	"context"
	"errors"
	"image"
	"math"
	"testing"

	"honnef.co/go/curve"
)

// uploaded registers a w×h original and returns an image object showing its
// proxy at the given footprint width.
func uploaded(t *testing.T, reg *Registry, w, h int, left, top, footW float64) *ImageObject {
	t.Helper()
	p, err := reg.CreateProxy(context.Background(), encodePNG(t, gradientImage(w, h)))
	if err != nil {
		t.Fatalf("CreateProxy() = %v", err)
	}
	obj := NewImageObject(p.ID, p.Image, left, top)
	obj.ScaleX = footW / float64(p.Width)
	obj.ScaleY = obj.ScaleX
	return obj
}

func TestReconstructImageFootprint(t *testing.T) {
	reg := NewRegistry()
	obj := uploaded(t, reg, 400, 280, 500, 350, 500)
	s := Scale{X: 1.69, Y: 1183.0 / 700}

	el, err := Reconstructor{Registry: reg, Scale: s}.Reconstruct(obj)
	if err != nil {
		t.Fatalf("Reconstruct() = %v", err)
	}
	if el.Source != SourceOriginal {
		t.Errorf("Source = %v, want original", el.Source)
	}
	if b := el.Raster.Bounds(); b.Dx() != 400 || b.Dy() != 280 {
		t.Errorf("Raster = %v, want the 400x280 original", b)
	}

	fp := el.Footprint()
	if !near(fp.Width, 845, 0.01) || !near(fp.Height, 591.5, 0.01) {
		t.Errorf("Footprint() = %.1fx%.1f, want ≈845x591.5", fp.Width, fp.Height)
	}
	if !near(el.Transform.Left, 845, 1e-9) || !near(el.Transform.Top, 591.5, 1e-9) {
		t.Errorf("center = (%v, %v), want (845, 591.5)", el.Transform.Left, el.Transform.Top)
	}
}

func TestReconstructImageKeepsRotationAndFlip(t *testing.T) {
	reg := NewRegistry()
	obj := uploaded(t, reg, 200, 100, 50, 50, 40)
	obj.Angle, obj.FlipX, obj.Opacity = 30, true, 0.5

	el, err := Reconstructor{Registry: reg, Scale: Scale{X: 2, Y: 2}}.Reconstruct(obj)
	if err != nil {
		t.Fatal(err)
	}
	tr := el.Transform
	if tr.Angle != 30 || !tr.FlipX || tr.Opacity != 0.5 {
		t.Errorf("transform = %+v, want angle 30, flipX, opacity 0.5", tr)
	}
}

func TestReconstructImageSources(t *testing.T) {
	reg := NewRegistry()

	removed := uploaded(t, reg, 100, 100, 10, 10, 20)
	reg.Remove(removed.ImageID)

	edited := uploaded(t, reg, 100, 100, 10, 10, 20)
	edited.Raster = gradientImage(30, 20)
	edited.Edited = true

	broken := uploaded(t, reg, 100, 100, 10, 10, 20)
	reg.Register(broken.ImageID, []byte("corrupt"))

	local := NewImageObject("", gradientImage(10, 10), 5, 5)

	tests := []struct {
		name string
		obj  *ImageObject
		want Source
	}{
		{"original removed", removed, SourceFallback},
		{"edited", edited, SourceRaster},
		{"original corrupt", broken, SourceFallback},
		{"never registered", local, SourceRaster},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			el, err := Reconstructor{Registry: reg, Scale: Scale{X: 3, Y: 3}}.Reconstruct(tt.obj)
			if err != nil {
				t.Fatalf("Reconstruct() = %v", err)
			}
			if el.Source != tt.want {
				t.Errorf("Source = %v, want %v", el.Source, tt.want)
			}
			want := tt.obj.Geometry().Footprint()
			got := el.Footprint()
			if !near(got.Width, want.Width*3, 0.01) || !near(got.Height, want.Height*3, 0.01) {
				t.Errorf("Footprint() = %v, want %v scaled by 3", got, want)
			}
		})
	}
}

func TestReconstructImageMissing(t *testing.T) {
	obj := &ImageObject{ImageID: "img_nowhere", Transform: NewTransform(0, 0, 10, 10)}
	_, err := Reconstructor{Registry: NewRegistry(), Scale: Scale{X: 1, Y: 1}}.Reconstruct(obj)
	if !errors.Is(err, ErrResourceNotFound) {
		t.Errorf("Reconstruct() = %v, want ErrResourceNotFound", err)
	}
	var oe *ObjectError
	if !errors.As(err, &oe) || oe.Key != "img_nowhere" {
		t.Errorf("Reconstruct() = %v, want *ObjectError for img_nowhere", err)
	}
}

func TestReconstructShape(t *testing.T) {
	s := Scale{X: 2, Y: 2}
	tests := []struct {
		name string
		obj  *ShapeObject
		want Source
	}{
		{"rect", NewRect(10, 10, 20, 10, ShapeStyle{Fill: "#336699", Stroke: "black", StrokeWidth: 2}), SourceVector},
		{"rounded rect", NewRect(10, 10, 20, 10, ShapeStyle{Fill: "red", Radius: 4}), SourceVector},
		{"circle", NewCircle(10, 10, 5, ShapeStyle{Fill: "blue"}), SourceVector},
		{"ellipse", NewEllipse(10, 10, 5, 3, ShapeStyle{Stroke: "green", StrokeWidth: 1}), SourceVector},
		{"triangle", NewTriangle(10, 10, 8, 8, ShapeStyle{Fill: "#000"}), SourceVector},
		{"line", NewLine(0, 0, 10, 10, ShapeStyle{Stroke: "#000", StrokeWidth: 3}), SourceVector},
		{"dashed", NewRect(10, 10, 20, 10, ShapeStyle{Stroke: "#000", StrokeWidth: 1, StrokeDash: []float64{4, 2}}), SourceVector},
		{"bad fill", NewRect(10, 10, 20, 10, ShapeStyle{Fill: "not-a-color"}), SourcePrimitive},
		{"negative dash", NewRect(10, 10, 20, 10, ShapeStyle{Fill: "red", StrokeDash: []float64{-1}}), SourcePrimitive},
		{"negative radius", NewRect(10, 10, 20, 10, ShapeStyle{Fill: "red", Radius: -3}), SourcePrimitive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			el, err := Reconstructor{Scale: s}.Reconstruct(tt.obj)
			if err != nil {
				t.Fatalf("Reconstruct() = %v", err)
			}
			if el.Source != tt.want {
				t.Errorf("Source = %v, want %v", el.Source, tt.want)
			}
			if el.Kind != KindShape {
				t.Errorf("Kind = %v, want shape", el.Kind)
			}
			want := tt.obj.Footprint()
			got := el.Footprint()
			if !near(got.Width, want.Width*2, 1e-9) || !near(got.Height, want.Height*2, 1e-9) {
				t.Errorf("Footprint() = %v, want %v scaled by 2", got, want)
			}
		})
	}
}

func TestShapePrimitiveDefaults(t *testing.T) {
	obj := NewRect(0, 0, 10, 10, ShapeStyle{Fill: "bogus", Stroke: "blue", StrokeWidth: -4})
	clone, err := obj.rebuildPrimitive(Scale{X: 1, Y: 1})
	if err != nil {
		t.Fatal(err)
	}
	want := ShapeStyle{Fill: fallbackShapeFill, Stroke: "blue", StrokeWidth: fallbackShapeStrokeWidth}
	if clone.Style.Fill != want.Fill || clone.Style.Stroke != want.Stroke || clone.Style.StrokeWidth != want.StrokeWidth {
		t.Errorf("rebuildPrimitive().Style = %+v, want %+v", clone.Style, want)
	}
}

func TestReconstructShapeUnrecoverable(t *testing.T) {
	tests := []struct {
		name string
		obj  *ShapeObject
	}{
		{"polygon with two points", NewPolygon([]curve.Point{curve.Pt(0, 0), curve.Pt(1, 1)}, ShapeStyle{Fill: "red"})},
		{"line without points", &ShapeObject{Shape: ShapeLine, Transform: NewTransform(0, 0, 1, 1)}},
		{"unknown kind", &ShapeObject{Shape: ShapeKind(99), Transform: NewTransform(0, 0, 1, 1)}},
		{"non-finite transform", NewRect(math.NaN(), 0, 1, 1, ShapeStyle{Fill: "red"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Reconstructor{Scale: Scale{X: 1, Y: 1}}.Reconstruct(tt.obj)
			if !errors.Is(err, ErrClone) {
				t.Errorf("Reconstruct() = %v, want ErrClone", err)
			}
		})
	}
}

func TestReconstructText(t *testing.T) {
	st := DefaultTextStyle()
	st.FontSize = 20
	st.Stroke, st.StrokeWidth, st.StrokePosition = "#ff0000", 2, StrokeOuter
	st.Underline = true
	st.Shadow = &Shadow{Color: "rgba(0,0,0,0.5)", Distance: 4, Angle: 45}
	obj := NewText("Hello\nworld", 100, 50, st)

	el, err := Reconstructor{Scale: Scale{X: 2, Y: 2}}.Reconstruct(obj)
	if err != nil {
		t.Fatalf("Reconstruct() = %v", err)
	}
	if el.Source != SourceVector || el.Kind != KindText {
		t.Errorf("element = %v %v, want vector text", el.Kind, el.Source)
	}
	if el.Transform.Left != 200 || el.Transform.Top != 100 {
		t.Errorf("center = (%v, %v), want (200, 100)", el.Transform.Left, el.Transform.Top)
	}
	if el.Transform.ScaleX != 2 {
		t.Errorf("ScaleX = %v, want 2", el.Transform.ScaleX)
	}
	if el.Transform.Width <= 0 || el.Transform.Height <= 0 {
		t.Errorf("laid out size = %vx%v, want positive", el.Transform.Width, el.Transform.Height)
	}
}

func TestReconstructTextPrimitive(t *testing.T) {
	st := DefaultTextStyle()
	st.Fill = "#00ff00"
	st.Stroke = "nope"
	st.StrokeWidth = 1
	obj := NewText("fallback", 10, 10, st)

	el, err := Reconstructor{Scale: Scale{X: 1, Y: 1}}.Reconstruct(obj)
	if err != nil {
		t.Fatalf("Reconstruct() = %v", err)
	}
	if el.Source != SourcePrimitive {
		t.Errorf("Source = %v, want primitive", el.Source)
	}
}

func TestReconstructDoesNotMutate(t *testing.T) {
	reg := NewRegistry()
	img := uploaded(t, reg, 50, 50, 10, 10, 20)
	rect := NewRect(5, 5, 10, 10, ShapeStyle{Fill: "red", StrokeDash: []float64{1, 2}})
	before := *rect
	imgBefore := img.Transform

	r := Reconstructor{Registry: reg, Scale: Scale{X: 4, Y: 4}}
	for _, obj := range []Object{img, rect} {
		if _, err := r.Reconstruct(obj); err != nil {
			t.Fatal(err)
		}
	}
	if img.Transform != imgBefore {
		t.Errorf("image transform changed: %+v -> %+v", imgBefore, img.Transform)
	}
	if rect.Transform != before.Transform || rect.Style.Fill != before.Style.Fill {
		t.Errorf("rect changed: %+v -> %+v", before, *rect)
	}
}

func TestFitRaster(t *testing.T) {
	geo := NewTransform(100, 50, 80, 40)
	geo.ScaleX, geo.ScaleY = 2, 2
	got := fitRaster(geo, Scale{X: 1.5, Y: 1.5}, image.Rect(0, 0, 800, 400))
	if got.Width != 800 || got.Height != 400 {
		t.Errorf("fitRaster() size = %vx%v, want 800x400", got.Width, got.Height)
	}
	fp := got.Footprint()
	if !near(fp.Width, 240, 1e-9) || !near(fp.Height, 120, 1e-9) {
		t.Errorf("fitRaster() footprint = %v, want 240x120", fp)
	}
}
