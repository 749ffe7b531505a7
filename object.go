package deskpad

import (
	"fmt"
	"image"

	"honnef.co/go/curve"
)

// Kind identifies one of the closed set of object variants.
type Kind uint8

const (
	KindImage Kind = iota + 1
	KindText
	KindShape
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindText:
		return "text"
	case KindShape:
		return "shape"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Object is a live canvas object as seen by the export pipeline.
// The set of implementations is closed: *ImageObject, *TextObject and
// *ShapeObject. Each rebuilds itself at export scale.
type Object interface {
	// Kind reports the variant.
	Kind() Kind

	// Key is the identity used to look the object up in the layer list:
	// the image id, else the explicit id, else "<type>_<name>".
	Key() string

	// Label is a human readable name for logs and the composition.
	Label() string

	// Geometry returns the proxy-space transform.
	Geometry() Transform

	reconstruct(rc *reconstruction) (*Element, error)
}

func identityKey(id, typ, name string) string {
	if id != "" {
		return id
	}
	if name == "" {
		name = "undefined"
	}
	return typ + "_" + name
}

// ImageObject is a raster placed on the interactive canvas. While editing it
// shows a proxy; ImageID links it to the original held by the Registry.
type ImageObject struct {
	ID      string
	Name    string
	ImageID string
	Transform

	// Raster is what the editor currently displays: the proxy, or an edited
	// (for example cropped) version of it.
	Raster image.Image

	// Edited marks a raster that no longer matches the proxy assigned at
	// upload. Export then uses Raster instead of the original.
	Edited bool

	// OriginalWidth and OriginalHeight record the original's native size at
	// upload time. They are informational; export probes the registry.
	OriginalWidth, OriginalHeight int

	// AutoEnlarged is set when upload placement had to upscale the proxy to
	// fit the canvas.
	AutoEnlarged bool
}

// NewImageObject returns an image object for a registered proxy raster with
// the transform's intrinsic size taken from the raster.
func NewImageObject(imageID string, raster image.Image, left, top float64) *ImageObject {
	b := raster.Bounds()
	return &ImageObject{
		ImageID:   imageID,
		Raster:    raster,
		Transform: NewTransform(left, top, float64(b.Dx()), float64(b.Dy())),
	}
}

func (o *ImageObject) Kind() Kind { return KindImage }

func (o *ImageObject) Key() string {
	if o.ImageID != "" {
		return o.ImageID
	}
	return identityKey(o.ID, "image", o.Name)
}

func (o *ImageObject) Label() string {
	if o.Name != "" {
		return o.Name
	}
	return "unnamed"
}

func (o *ImageObject) Geometry() Transform {
	t := o.Transform
	if (t.Width == 0 || t.Height == 0) && o.Raster != nil {
		b := o.Raster.Bounds()
		t.Width, t.Height = float64(b.Dx()), float64(b.Dy())
	}
	return t
}

// TextAlign is the horizontal alignment of text lines within the text box.
type TextAlign uint8

const (
	AlignLeft TextAlign = iota
	AlignCenter
	AlignRight
)

// StrokePosition selects where a stroke is drawn relative to the outline.
type StrokePosition uint8

const (
	// StrokeCenter straddles the outline (native stroke).
	StrokeCenter StrokePosition = iota
	// StrokeOuter draws only outside the outline. It is emulated with a
	// doubled, slightly offset stroke pass beneath an unstroked fill pass.
	StrokeOuter
)

// Shadow is a drop shadow. Angle is the direction in degrees, Distance in
// object-space pixels.
type Shadow struct {
	Color    string
	Distance float64
	Angle    float64
	Blur     float64
}

// TextStyle is the visual styling of a text object. Colors use CSS syntax.
type TextStyle struct {
	FontFamily string
	FontSize   float64
	FontWeight string
	FontStyle  string

	Fill             string
	Stroke           string
	StrokeWidth      float64
	StrokePosition   StrokePosition
	StrokeDash       []float64
	StrokeDashOffset float64

	Align       TextAlign
	LineHeight  float64
	CharSpacing float64

	Underline   bool
	Linethrough bool
	Overline    bool

	Shadow *Shadow
}

// DefaultTextStyle mirrors the editor's defaults for new text.
func DefaultTextStyle() TextStyle {
	return TextStyle{
		FontFamily: "Go",
		FontSize:   40,
		Fill:       "#000000",
		LineHeight: 1.16,
	}
}

// TextObject is a block of (possibly multi-line) text.
type TextObject struct {
	ID   string
	Name string
	Transform
	Text  string
	Style TextStyle
}

// NewText returns a text object centered at (left, top).
func NewText(s string, left, top float64, style TextStyle) *TextObject {
	return &TextObject{
		Text:      s,
		Style:     style,
		Transform: NewTransform(left, top, 0, 0),
	}
}

func (o *TextObject) Kind() Kind  { return KindText }
func (o *TextObject) Key() string { return identityKey(o.ID, "text", o.Name) }

func (o *TextObject) Label() string {
	if o.Text != "" {
		return o.Text
	}
	return "text"
}

func (o *TextObject) Geometry() Transform { return o.Transform }

// ShapeKind enumerates the vector shapes the editor can create.
type ShapeKind uint8

const (
	ShapeRect ShapeKind = iota + 1
	ShapeCircle
	ShapeEllipse
	ShapeTriangle
	ShapeLine
	ShapePolygon
)

var shapeNames = map[ShapeKind]string{
	ShapeRect:     "rect",
	ShapeCircle:   "circle",
	ShapeEllipse:  "ellipse",
	ShapeTriangle: "triangle",
	ShapeLine:     "line",
	ShapePolygon:  "polygon",
}

func (k ShapeKind) String() string {
	if n, ok := shapeNames[k]; ok {
		return n
	}
	return fmt.Sprintf("ShapeKind(%d)", uint8(k))
}

// ParseShapeKind maps an editor type name to a ShapeKind.
func ParseShapeKind(s string) (ShapeKind, bool) {
	for k, n := range shapeNames {
		if n == s {
			return k, true
		}
	}
	return 0, false
}

// ShapeStyle is the visual styling of a shape.
type ShapeStyle struct {
	Fill             string
	Stroke           string
	StrokeWidth      float64
	StrokePosition   StrokePosition
	StrokeDash       []float64
	StrokeDashOffset float64
	// Radius rounds rectangle corners.
	Radius float64
}

// ShapeObject is a vector shape. Its geometry lives in object space centered
// on the origin: a rect spans ±Width/2, ±Height/2; Points (lines and
// polygons) are relative to the center.
type ShapeObject struct {
	ID    string
	Name  string
	Shape ShapeKind
	Transform
	Style  ShapeStyle
	Points []curve.Point
}

// NewRect returns a w×h rectangle centered at (left, top).
func NewRect(left, top, w, h float64, style ShapeStyle) *ShapeObject {
	return &ShapeObject{Shape: ShapeRect, Transform: NewTransform(left, top, w, h), Style: style}
}

// NewCircle returns a circle of radius r centered at (left, top).
func NewCircle(left, top, r float64, style ShapeStyle) *ShapeObject {
	return &ShapeObject{Shape: ShapeCircle, Transform: NewTransform(left, top, 2*r, 2*r), Style: style}
}

// NewEllipse returns an ellipse with radii rx, ry centered at (left, top).
func NewEllipse(left, top, rx, ry float64, style ShapeStyle) *ShapeObject {
	return &ShapeObject{Shape: ShapeEllipse, Transform: NewTransform(left, top, 2*rx, 2*ry), Style: style}
}

// NewTriangle returns an isosceles triangle with its apex at the top of a
// w×h box centered at (left, top).
func NewTriangle(left, top, w, h float64, style ShapeStyle) *ShapeObject {
	return &ShapeObject{Shape: ShapeTriangle, Transform: NewTransform(left, top, w, h), Style: style}
}

// NewLine returns a segment between two canvas points.
func NewLine(x1, y1, x2, y2 float64, style ShapeStyle) *ShapeObject {
	cx, cy := (x1+x2)/2, (y1+y2)/2
	return &ShapeObject{
		Shape:     ShapeLine,
		Transform: NewTransform(cx, cy, abs(x2-x1), abs(y2-y1)),
		Style:     style,
		Points:    []curve.Point{curve.Pt(x1-cx, y1-cy), curve.Pt(x2-cx, y2-cy)},
	}
}

// NewPolygon returns a closed polygon from canvas points. The transform is
// centered on the points' bounding box.
func NewPolygon(points []curve.Point, style ShapeStyle) *ShapeObject {
	if len(points) == 0 {
		return &ShapeObject{Shape: ShapePolygon, Transform: NewTransform(0, 0, 0, 0), Style: style}
	}
	box := curve.Rect{X0: points[0].X, Y0: points[0].Y, X1: points[0].X, Y1: points[0].Y}
	for _, p := range points[1:] {
		box = box.UnionPoint(p)
	}
	c := box.Center()
	rel := make([]curve.Point, len(points))
	for i, p := range points {
		rel[i] = curve.Pt(p.X-c.X, p.Y-c.Y)
	}
	return &ShapeObject{
		Shape:     ShapePolygon,
		Transform: NewTransform(c.X, c.Y, box.Width(), box.Height()),
		Style:     style,
		Points:    rel,
	}
}

func (o *ShapeObject) Kind() Kind  { return KindShape }
func (o *ShapeObject) Key() string { return identityKey(o.ID, o.Shape.String(), o.Name) }

func (o *ShapeObject) Label() string {
	if o.Name != "" {
		return o.Name
	}
	return o.Shape.String()
}

func (o *ShapeObject) Geometry() Transform { return o.Transform }

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
