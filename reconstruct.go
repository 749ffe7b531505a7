package deskpad

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/gogpu/gg"
	"honnef.co/go/curve"
)

// Source records where an element's pixels come from.
type Source uint8

const (
	// SourceOriginal is the full-resolution original from the registry.
	SourceOriginal Source = iota + 1
	// SourceRaster is the object's current raster, used by choice: the image
	// was edited after upload or was never registered.
	SourceRaster
	// SourceFallback is the current raster used because the original was
	// missing or could not be decoded.
	SourceFallback
	// SourceVector is text or a shape rebuilt from its full style.
	SourceVector
	// SourcePrimitive is text or a shape rebuilt from its primitive fields
	// after the full rebuild failed.
	SourcePrimitive
)

func (s Source) String() string {
	switch s {
	case SourceOriginal:
		return "original"
	case SourceRaster:
		return "raster"
	case SourceFallback:
		return "fallback"
	case SourceVector:
		return "vector"
	case SourcePrimitive:
		return "primitive"
	default:
		return fmt.Sprintf("Source(%d)", uint8(s))
	}
}

// Element is one reconstructed object of an export composition.
type Element struct {
	Kind       Kind
	Key        string
	Name       string
	PaintOrder int

	// Transform is the export-space geometry. For images Width and Height
	// are the pixel size of Raster.
	Transform Transform
	Source    Source

	// Raster is the image painted for image elements; nil otherwise.
	Raster image.Image

	index int
	draw  func(dc *gg.Context) error
}

// Footprint returns the export-space size of the element.
func (e *Element) Footprint() curve.Size { return e.Transform.Footprint() }

// reconstruction carries what every per-object task needs.
type reconstruction struct {
	registry *Registry
	scale    Scale
}

// Reconstructor rebuilds a single image object at export scale. The planner
// uses it for every image; it is exported for callers that compose
// elements themselves.
type Reconstructor struct {
	Registry *Registry
	Scale    Scale
}

// Reconstruct rebuilds obj at r.Scale.
func (r Reconstructor) Reconstruct(obj Object) (*Element, error) {
	return obj.reconstruct(&reconstruction{registry: r.Registry, scale: r.Scale})
}

func (o *ImageObject) reconstruct(rc *reconstruction) (*Element, error) {
	raster, source, err := o.exportRaster(rc.registry)
	if err != nil {
		return nil, objectError(o, "reconstruct", err)
	}
	t := fitRaster(o.Geometry(), rc.scale, raster.Bounds())
	buf := gg.ImageBufFromImage(raster)

	Logger().Debug("deskpad: image reconstructed",
		"key", o.Key(),
		"source", source,
		"native", fmt.Sprintf("%dx%d", raster.Bounds().Dx(), raster.Bounds().Dy()),
		"scaleX", t.ScaleX,
		"scaleY", t.ScaleY)

	return &Element{
		Kind:      KindImage,
		Key:       o.Key(),
		Name:      o.Label(),
		Transform: t,
		Source:    source,
		Raster:    raster,
		draw: func(dc *gg.Context) error {
			paintRaster(dc, t, buf)
			return nil
		},
	}, nil
}

// exportRaster picks the pixels to export: the original when the object
// still shows its upload proxy, otherwise the current raster.
func (o *ImageObject) exportRaster(reg *Registry) (image.Image, Source, error) {
	if o.Edited || o.ImageID == "" {
		if o.Raster == nil {
			return nil, 0, fmt.Errorf("%w: no raster", ErrDecode)
		}
		return o.Raster, SourceRaster, nil
	}

	img, err := loadOriginal(reg, o.ImageID)
	if err == nil {
		return img, SourceOriginal, nil
	}
	if o.Raster == nil {
		return nil, 0, err
	}
	Logger().Warn("deskpad: original unavailable, using current raster",
		"key", o.Key(),
		"notFound", errors.Is(err, ErrResourceNotFound),
		"err", err)
	return o.Raster, SourceFallback, nil
}

func loadOriginal(reg *Registry, id string) (image.Image, error) {
	if reg == nil {
		return nil, fmt.Errorf("%w: %s", ErrResourceNotFound, id)
	}
	orig, err := reg.Original(id)
	if err != nil {
		return nil, err
	}
	return orig.Decode()
}

// fitRaster maps the proxy-space geometry of an image onto a raster of a
// possibly different resolution: the on-canvas footprint is scaled by s and
// the raster is scaled to fill it.
func fitRaster(geo Transform, s Scale, bounds image.Rectangle) Transform {
	fp := geo.Footprint()
	t := geo.scaled(s)
	t.Width = float64(bounds.Dx())
	t.Height = float64(bounds.Dy())
	t.ScaleX = fp.Width * s.X / t.Width
	t.ScaleY = fp.Height * s.Y / t.Height
	return t
}

func (o *TextObject) reconstruct(rc *reconstruction) (*Element, error) {
	source := SourceVector
	clone, err := o.rebuild(rc.scale)
	if err != nil {
		Logger().Warn("deskpad: text rebuild failed, using primitive fields", "key", o.Key(), "err", err)
		source = SourcePrimitive
		if clone, err = o.rebuildPrimitive(rc.scale); err != nil {
			return nil, objectError(o, "rebuild", err)
		}
	}
	drawing, t, err := clone.drawing()
	if err != nil {
		return nil, objectError(o, "layout", err)
	}
	return &Element{
		Kind:      KindText,
		Key:       o.Key(),
		Name:      o.Label(),
		Transform: t,
		Source:    source,
		draw:      func(dc *gg.Context) error { return drawing.paint(dc, t) },
	}, nil
}

// rebuild returns a fresh text object with the transform scaled by s and
// the style copied verbatim.
func (o *TextObject) rebuild(s Scale) (*TextObject, error) {
	if err := checkTransform(o.Transform); err != nil {
		return nil, err
	}
	st := o.Style
	if st.FontSize <= 0 || !finite(st.FontSize) {
		return nil, fmt.Errorf("%w: font size %v", ErrClone, st.FontSize)
	}
	if st.LineHeight < 0 {
		return nil, fmt.Errorf("%w: line height %v", ErrClone, st.LineHeight)
	}
	if err := checkPaint(st.Fill, st.Stroke, st.StrokeWidth, st.StrokeDash); err != nil {
		return nil, err
	}
	if st.Shadow != nil {
		if _, _, err := ParseColor(st.Shadow.Color); err != nil {
			return nil, fmt.Errorf("%w: shadow: %v", ErrClone, err)
		}
		st.Shadow = &Shadow{
			Color:    st.Shadow.Color,
			Distance: st.Shadow.Distance,
			Angle:    st.Shadow.Angle,
			Blur:     st.Shadow.Blur,
		}
	}
	st.StrokeDash = append([]float64(nil), st.StrokeDash...)

	return &TextObject{
		ID:        o.ID,
		Name:      o.Name,
		Transform: o.Transform.scaled(s),
		Text:      o.Text,
		Style:     st,
	}, nil
}

// rebuildPrimitive keeps only the text, the font and a usable fill.
func (o *TextObject) rebuildPrimitive(s Scale) (*TextObject, error) {
	if err := checkTransform(o.Transform); err != nil {
		return nil, err
	}
	st := DefaultTextStyle()
	st.FontFamily = o.Style.FontFamily
	st.FontWeight = o.Style.FontWeight
	st.FontStyle = o.Style.FontStyle
	st.Align = o.Style.Align
	if o.Style.FontSize > 0 && finite(o.Style.FontSize) {
		st.FontSize = o.Style.FontSize
	}
	if _, _, err := ParseColor(o.Style.Fill); err == nil && o.Style.Fill != "" {
		st.Fill = o.Style.Fill
	}
	return &TextObject{
		ID:        o.ID,
		Name:      o.Name,
		Transform: o.Transform.scaled(s),
		Text:      o.Text,
		Style:     st,
	}, nil
}

// drawing lays the text out and resolves its paint. The returned transform
// carries the laid out size when the object had none.
func (o *TextObject) drawing() (*vectorDrawing, Transform, error) {
	st := o.Style
	layout, err := layoutText(o.Text, st, o.Width)
	if err != nil {
		return nil, Transform{}, err
	}
	t := o.Transform
	t.Width = layout.width
	t.Height = max(t.Height, layout.height)

	style, err := resolvePaint(st.Fill, st.Stroke, st.StrokeWidth, st.StrokePosition, st.StrokeDash, st.StrokeDashOffset)
	if err != nil {
		return nil, Transform{}, err
	}
	style.join = gg.LineJoinRound
	if sh := st.Shadow; sh != nil && sh.Distance != 0 {
		if c, ok, _ := ParseColor(sh.Color); ok {
			rad := radians(sh.Angle)
			style.shadow = &shadowStyle{
				color: c,
				dx:    sh.Distance * math.Cos(rad),
				dy:    sh.Distance * math.Sin(rad),
			}
		}
	}
	return &vectorDrawing{body: layout.glyphs, extra: layout.decorations, style: style}, t, nil
}

// Fallback styling for shapes rebuilt from primitive fields.
const (
	fallbackShapeFill        = "#f4a012"
	fallbackShapeStroke      = "#000"
	fallbackShapeStrokeWidth = 25
)

func (o *ShapeObject) reconstruct(rc *reconstruction) (*Element, error) {
	source := SourceVector
	clone, err := o.rebuild(rc.scale)
	if err != nil {
		Logger().Warn("deskpad: shape rebuild failed, using primitive fields", "key", o.Key(), "err", err)
		source = SourcePrimitive
		if clone, err = o.rebuildPrimitive(rc.scale); err != nil {
			return nil, objectError(o, "rebuild", err)
		}
	}
	drawing, err := clone.drawing()
	if err != nil {
		return nil, objectError(o, "rebuild", err)
	}
	t := clone.Transform
	return &Element{
		Kind:      KindShape,
		Key:       o.Key(),
		Name:      o.Label(),
		Transform: t,
		Source:    source,
		draw:      func(dc *gg.Context) error { return drawing.paint(dc, t) },
	}, nil
}

// rebuild returns a fresh shape of the same kind with the transform scaled
// by s and the style copied verbatim.
func (o *ShapeObject) rebuild(s Scale) (*ShapeObject, error) {
	if err := o.checkGeometry(); err != nil {
		return nil, err
	}
	st := o.Style
	if err := checkPaint(st.Fill, st.Stroke, st.StrokeWidth, st.StrokeDash); err != nil {
		return nil, err
	}
	if st.Radius < 0 || !finite(st.Radius) {
		return nil, fmt.Errorf("%w: corner radius %v", ErrClone, st.Radius)
	}
	st.StrokeDash = append([]float64(nil), st.StrokeDash...)
	return &ShapeObject{
		ID:        o.ID,
		Name:      o.Name,
		Shape:     o.Shape,
		Transform: o.Transform.scaled(s),
		Style:     st,
		Points:    append([]curve.Point(nil), o.Points...),
	}, nil
}

// rebuildPrimitive rebuilds the shape from its kind, transform and points,
// keeping fill, stroke and stroke width when usable and defaulting them
// otherwise.
func (o *ShapeObject) rebuildPrimitive(s Scale) (*ShapeObject, error) {
	if err := o.checkGeometry(); err != nil {
		return nil, err
	}
	st := ShapeStyle{
		Fill:        fallbackShapeFill,
		Stroke:      fallbackShapeStroke,
		StrokeWidth: fallbackShapeStrokeWidth,
	}
	if _, _, err := ParseColor(o.Style.Fill); err == nil && o.Style.Fill != "" {
		st.Fill = o.Style.Fill
	}
	if _, _, err := ParseColor(o.Style.Stroke); err == nil && o.Style.Stroke != "" {
		st.Stroke = o.Style.Stroke
	}
	if o.Style.StrokeWidth > 0 && finite(o.Style.StrokeWidth) {
		st.StrokeWidth = o.Style.StrokeWidth
	}
	return &ShapeObject{
		ID:        o.ID,
		Name:      o.Name,
		Shape:     o.Shape,
		Transform: o.Transform.scaled(s),
		Style:     st,
		Points:    append([]curve.Point(nil), o.Points...),
	}, nil
}

// checkGeometry reports geometry no rebuild can draw.
func (o *ShapeObject) checkGeometry() error {
	if err := checkTransform(o.Transform); err != nil {
		return err
	}
	need := 0
	switch o.Shape {
	case ShapeRect, ShapeCircle, ShapeEllipse, ShapeTriangle:
	case ShapeLine:
		need = 2
	case ShapePolygon:
		need = 3
	default:
		return fmt.Errorf("%w: unknown shape %v", ErrClone, o.Shape)
	}
	if len(o.Points) < need {
		return fmt.Errorf("%w: %v needs %d points, has %d", ErrClone, o.Shape, need, len(o.Points))
	}
	for _, p := range o.Points {
		if !finite(p.X) || !finite(p.Y) {
			return fmt.Errorf("%w: non-finite point", ErrClone)
		}
	}
	return nil
}

func (o *ShapeObject) drawing() (*vectorDrawing, error) {
	st := o.Style
	style, err := resolvePaint(st.Fill, st.Stroke, st.StrokeWidth, st.StrokePosition, st.StrokeDash, st.StrokeDashOffset)
	if err != nil {
		return nil, err
	}
	style.join = gg.LineJoinMiter

	w, h := o.Width, o.Height
	p := gg.NewPath()
	open := false
	switch o.Shape {
	case ShapeRect:
		if st.Radius > 0 {
			p.RoundedRectangle(-w/2, -h/2, w, h, math.Min(st.Radius, math.Min(w, h)/2))
		} else {
			p.Rectangle(-w/2, -h/2, w, h)
		}
	case ShapeCircle, ShapeEllipse:
		p.Ellipse(0, 0, w/2, h/2)
	case ShapeTriangle:
		p.MoveTo(-w/2, h/2)
		p.LineTo(0, -h/2)
		p.LineTo(w/2, h/2)
		p.Close()
	case ShapeLine:
		p.MoveTo(o.Points[0].X, o.Points[0].Y)
		p.LineTo(o.Points[1].X, o.Points[1].Y)
		open = true
	case ShapePolygon:
		p.MoveTo(o.Points[0].X, o.Points[0].Y)
		for _, pt := range o.Points[1:] {
			p.LineTo(pt.X, pt.Y)
		}
		p.Close()
	}
	return &vectorDrawing{body: p, open: open, style: style}, nil
}

// checkPaint validates colors, stroke width and dash pattern.
func checkPaint(fill, stroke string, width float64, dash []float64) error {
	if _, _, err := ParseColor(fill); err != nil {
		return fmt.Errorf("%w: fill: %v", ErrClone, err)
	}
	if _, _, err := ParseColor(stroke); err != nil {
		return fmt.Errorf("%w: stroke: %v", ErrClone, err)
	}
	if width < 0 || !finite(width) {
		return fmt.Errorf("%w: stroke width %v", ErrClone, width)
	}
	for _, d := range dash {
		if d < 0 || !finite(d) {
			return fmt.Errorf("%w: dash %v", ErrClone, dash)
		}
	}
	return nil
}

func resolvePaint(fill, stroke string, width float64, pos StrokePosition, dash []float64, offset float64) (vectorStyle, error) {
	var vs vectorStyle
	var err error
	if vs.fill, vs.hasFill, err = ParseColor(fill); err != nil {
		return vs, err
	}
	if vs.stroke, vs.hasStroke, err = ParseColor(stroke); err != nil {
		return vs, err
	}
	vs.hasStroke = vs.hasStroke && width > 0
	vs.strokeWidth = width
	vs.position = pos
	vs.dashOffset = offset
	for _, d := range dash {
		if d > 0 {
			vs.dash = dash
			break
		}
	}
	return vs, nil
}

// checkTransform rejects geometry that cannot be scaled meaningfully.
func checkTransform(t Transform) error {
	for _, v := range []float64{t.Left, t.Top, t.Width, t.Height, t.ScaleX, t.ScaleY, t.Angle, t.SkewX, t.SkewY, t.Opacity} {
		if !finite(v) {
			return fmt.Errorf("%w: non-finite transform", ErrClone)
		}
	}
	return nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
