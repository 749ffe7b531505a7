package deskpad

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"honnef.co/go/curve"
)

// Document is the JSON form of a canvas, as the editor saves it.
//
// Image objects reference their current raster by Src and, optionally, the
// raster assigned at upload by OriginalSrc; a differing pair marks the image
// as edited. Originals maps resource ids to original files.
type Document struct {
	Width     float64           `json:"width"`
	Height    float64           `json:"height"`
	Objects   []DocumentObject  `json:"objects"`
	Layers    []DocumentLayer   `json:"layers,omitempty"`
	Originals map[string]string `json:"originals,omitempty"`
}

// DocumentLayer is one layer panel entry.
type DocumentLayer struct {
	Key   string `json:"key"`
	Order int    `json:"order"`
}

// DocumentPoint is a point relative to the object's center.
type DocumentPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DocumentObject is the union of all object fields. Type selects the
// variant: "image", "text" (or "i-text", "textbox") or a shape name.
type DocumentObject struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`

	Left    float64  `json:"left"`
	Top     float64  `json:"top"`
	Width   float64  `json:"width,omitempty"`
	Height  float64  `json:"height,omitempty"`
	ScaleX  *float64 `json:"scaleX,omitempty"`
	ScaleY  *float64 `json:"scaleY,omitempty"`
	Angle   float64  `json:"angle,omitempty"`
	SkewX   float64  `json:"skewX,omitempty"`
	SkewY   float64  `json:"skewY,omitempty"`
	FlipX   bool     `json:"flipX,omitempty"`
	FlipY   bool     `json:"flipY,omitempty"`
	Opacity *float64 `json:"opacity,omitempty"`

	// Image.
	ImageID        string `json:"imageId,omitempty"`
	Src            string `json:"src,omitempty"`
	OriginalSrc    string `json:"originalSrc,omitempty"`
	Edited         bool   `json:"edited,omitempty"`
	OriginalWidth  int    `json:"originalWidth,omitempty"`
	OriginalHeight int    `json:"originalHeight,omitempty"`
	AutoEnlarged   bool   `json:"autoEnlarged,omitempty"`

	// Text.
	Text                 string  `json:"text,omitempty"`
	FontFamily           string  `json:"fontFamily,omitempty"`
	FontSize             float64 `json:"fontSize,omitempty"`
	FontWeight           string  `json:"fontWeight,omitempty"`
	FontStyle            string  `json:"fontStyle,omitempty"`
	TextAlign            string  `json:"textAlign,omitempty"`
	LineHeight           float64 `json:"lineHeight,omitempty"`
	CharSpacing          float64 `json:"charSpacing,omitempty"`
	Underline            bool    `json:"underline,omitempty"`
	Linethrough          bool    `json:"linethrough,omitempty"`
	Overline             bool    `json:"overline,omitempty"`
	ShadowColor          string  `json:"shadowColor,omitempty"`
	ShadowDistance       float64 `json:"shadowDistance,omitempty"`
	ShadowDirectionAngle float64 `json:"shadowDirectionAngle,omitempty"`
	ShadowBlur           float64 `json:"shadowBlur,omitempty"`

	// Fill and stroke, shared by text and shapes.
	Fill             string    `json:"fill,omitempty"`
	Stroke           string    `json:"stroke,omitempty"`
	StrokeWidth      float64   `json:"strokeWidth,omitempty"`
	StrokePosition   string    `json:"strokePosition,omitempty"`
	StrokeDashArray  []float64 `json:"strokeDashArray,omitempty"`
	StrokeDashOffset float64   `json:"strokeDashOffset,omitempty"`

	// Shapes.
	Radius float64         `json:"radius,omitempty"`
	RX     float64         `json:"rx,omitempty"`
	RY     float64         `json:"ry,omitempty"`
	X1     float64         `json:"x1,omitempty"`
	Y1     float64         `json:"y1,omitempty"`
	X2     float64         `json:"x2,omitempty"`
	Y2     float64         `json:"y2,omitempty"`
	Points []DocumentPoint `json:"points,omitempty"`
}

// ImageLoader returns the encoded bytes an image reference points to.
type ImageLoader func(ref string) ([]byte, error)

// DirLoader resolves data URIs inline and anything else as a file below
// dir. References cannot escape dir.
func DirLoader(dir string) ImageLoader {
	return func(ref string) ([]byte, error) {
		if strings.HasPrefix(ref, "data:") {
			_, data, err := ParseDataURI(ref)
			return data, err
		}
		if dir == "" {
			return nil, fmt.Errorf("deskpad: no image directory for %q", ref)
		}
		return os.ReadFile(filepath.Join(dir, filepath.Clean("/"+ref)))
	}
}

// ReadDocument decodes a JSON document.
func ReadDocument(r io.Reader) (*Document, error) {
	var doc Document
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("deskpad: read document: %w", err)
	}
	return &doc, nil
}

// Canvas converts the document to a canvas. Originals are registered in
// reg under their ids; rasters are loaded and decoded with load. An object
// that cannot be converted is skipped and reported in the joined error,
// which is returned together with the canvas.
func (d *Document) Canvas(load ImageLoader, reg *Registry) (*Canvas, error) {
	if load == nil {
		load = DirLoader("")
	}
	var errs []error
	if reg != nil {
		for id, ref := range d.Originals {
			data, err := load(ref)
			if err == nil {
				_, err = reg.Register(id, data)
			}
			if err != nil {
				errs = append(errs, fmt.Errorf("original %s: %w", id, err))
			}
		}
	}

	c := &Canvas{Width: d.Width, Height: d.Height}
	for i := range d.Objects {
		obj, err := d.Objects[i].object(load, reg)
		if err != nil {
			errs = append(errs, fmt.Errorf("object %d (%s): %w", i, d.Objects[i].Type, err))
			continue
		}
		c.Objects = append(c.Objects, obj)
	}
	for _, l := range d.Layers {
		c.Layers = append(c.Layers, Layer(l))
	}
	return c, errors.Join(errs...)
}

func (o *DocumentObject) transform() Transform {
	t := NewTransform(o.Left, o.Top, o.Width, o.Height)
	if o.ScaleX != nil {
		t.ScaleX = *o.ScaleX
	}
	if o.ScaleY != nil {
		t.ScaleY = *o.ScaleY
	}
	if o.Opacity != nil {
		t.Opacity = *o.Opacity
	}
	t.Angle, t.SkewX, t.SkewY = o.Angle, o.SkewX, o.SkewY
	t.FlipX, t.FlipY = o.FlipX, o.FlipY
	return t
}

func (o *DocumentObject) object(load ImageLoader, reg *Registry) (Object, error) {
	switch o.Type {
	case "image":
		return o.image(load, reg)
	case "text", "i-text", "textbox":
		return o.text(), nil
	}
	kind, ok := ParseShapeKind(o.Type)
	if !ok {
		return nil, fmt.Errorf("unknown object type %q", o.Type)
	}
	return o.shape(kind), nil
}

func (o *DocumentObject) image(load ImageLoader, reg *Registry) (*ImageObject, error) {
	img := &ImageObject{
		ID:             o.ID,
		Name:           o.Name,
		ImageID:        o.ImageID,
		Transform:      o.transform(),
		Edited:         o.Edited || (o.OriginalSrc != "" && o.OriginalSrc != o.Src),
		OriginalWidth:  o.OriginalWidth,
		OriginalHeight: o.OriginalHeight,
		AutoEnlarged:   o.AutoEnlarged,
	}
	if o.Src == "" {
		// Without a raster the object can still export from its original,
		// sized as the proxy the original would have produced.
		if img.Width == 0 || img.Height == 0 {
			if err := img.sizeFromOriginal(reg); err != nil {
				return nil, err
			}
		}
		return img, nil
	}
	data, err := load(o.Src)
	if err != nil {
		return nil, err
	}
	raster, _, err := decodeImage(data)
	if err != nil {
		return nil, err
	}
	img.Raster = raster
	if img.Width == 0 || img.Height == 0 {
		b := raster.Bounds()
		img.Width, img.Height = float64(b.Dx()), float64(b.Dy())
	}
	return img, nil
}

func (img *ImageObject) sizeFromOriginal(reg *Registry) error {
	renderer := DefaultProxyRenderer()
	w, h := img.OriginalWidth, img.OriginalHeight
	if img.ImageID != "" && reg != nil {
		renderer = reg.renderer
		if orig, err := reg.Original(img.ImageID); err == nil {
			if ow, oh, err := orig.Dimensions(); err == nil {
				w, h = ow, oh
			}
		}
	}
	if w <= 0 || h <= 0 {
		return fmt.Errorf("image %q has no src and no size", img.Key())
	}
	pw, ph := renderer.ProxySize(w, h)
	img.Width, img.Height = float64(pw), float64(ph)
	return nil
}

func (o *DocumentObject) text() *TextObject {
	st := DefaultTextStyle()
	if o.FontFamily != "" {
		st.FontFamily = o.FontFamily
	}
	if o.FontSize != 0 {
		st.FontSize = o.FontSize
	}
	if o.LineHeight != 0 {
		st.LineHeight = o.LineHeight
	}
	if o.Fill != "" {
		st.Fill = o.Fill
	}
	st.FontWeight = o.FontWeight
	st.FontStyle = o.FontStyle
	st.Stroke = o.Stroke
	st.StrokeWidth = o.StrokeWidth
	st.StrokePosition = parseStrokePosition(o.StrokePosition)
	st.StrokeDash = o.StrokeDashArray
	st.StrokeDashOffset = o.StrokeDashOffset
	st.Align = parseAlign(o.TextAlign)
	st.CharSpacing = o.CharSpacing
	st.Underline, st.Linethrough, st.Overline = o.Underline, o.Linethrough, o.Overline
	if o.ShadowColor != "" {
		st.Shadow = &Shadow{
			Color:    o.ShadowColor,
			Distance: o.ShadowDistance,
			Angle:    o.ShadowDirectionAngle,
			Blur:     o.ShadowBlur,
		}
	}
	return &TextObject{ID: o.ID, Name: o.Name, Transform: o.transform(), Text: o.Text, Style: st}
}

func (o *DocumentObject) shape(kind ShapeKind) *ShapeObject {
	t := o.transform()
	switch kind {
	case ShapeCircle:
		if o.Radius > 0 && t.Width == 0 {
			t.Width, t.Height = 2*o.Radius, 2*o.Radius
		}
	case ShapeEllipse:
		if o.RX > 0 && t.Width == 0 {
			t.Width = 2 * o.RX
		}
		if o.RY > 0 && t.Height == 0 {
			t.Height = 2 * o.RY
		}
	}

	var points []curve.Point
	for _, p := range o.Points {
		points = append(points, curve.Pt(p.X, p.Y))
	}
	if kind == ShapeLine && len(points) == 0 && (o.X1 != o.X2 || o.Y1 != o.Y2) {
		points = []curve.Point{curve.Pt(o.X1, o.Y1), curve.Pt(o.X2, o.Y2)}
	}

	radius := o.RX
	if kind == ShapeRect && o.Radius > 0 {
		radius = o.Radius
	}
	return &ShapeObject{
		ID:        o.ID,
		Name:      o.Name,
		Shape:     kind,
		Transform: t,
		Points:    points,
		Style: ShapeStyle{
			Fill:             o.Fill,
			Stroke:           o.Stroke,
			StrokeWidth:      o.StrokeWidth,
			StrokePosition:   parseStrokePosition(o.StrokePosition),
			StrokeDash:       o.StrokeDashArray,
			StrokeDashOffset: o.StrokeDashOffset,
			Radius:           radius,
		},
	}
}

func parseAlign(s string) TextAlign {
	switch strings.ToLower(s) {
	case "center":
		return AlignCenter
	case "right":
		return AlignRight
	default:
		return AlignLeft
	}
}

func parseStrokePosition(s string) StrokePosition {
	if strings.EqualFold(s, "outer") {
		return StrokeOuter
	}
	return StrokeCenter
}

// DocumentObjectFor returns the document form of obj. Image rasters are not
// embedded; src is the given reference.
func DocumentObjectFor(obj Object, src string) DocumentObject {
	t := obj.Geometry()
	sx, sy, op := t.ScaleX, t.ScaleY, t.Opacity
	d := DocumentObject{
		Left: t.Left, Top: t.Top, Width: t.Width, Height: t.Height,
		ScaleX: &sx, ScaleY: &sy, Opacity: &op,
		Angle: t.Angle, SkewX: t.SkewX, SkewY: t.SkewY,
		FlipX: t.FlipX, FlipY: t.FlipY,
	}
	switch o := obj.(type) {
	case *ImageObject:
		d.Type, d.ID, d.Name = "image", o.ID, o.Name
		d.ImageID, d.Src, d.Edited = o.ImageID, src, o.Edited
		d.OriginalWidth, d.OriginalHeight = o.OriginalWidth, o.OriginalHeight
		d.AutoEnlarged = o.AutoEnlarged
	case *TextObject:
		d.Type, d.ID, d.Name, d.Text = "text", o.ID, o.Name, o.Text
		d.FontFamily, d.FontSize = o.Style.FontFamily, o.Style.FontSize
		d.Fill, d.Stroke, d.StrokeWidth = o.Style.Fill, o.Style.Stroke, o.Style.StrokeWidth
	case *ShapeObject:
		d.Type, d.ID, d.Name = o.Shape.String(), o.ID, o.Name
		d.Fill, d.Stroke, d.StrokeWidth = o.Style.Fill, o.Style.Stroke, o.Style.StrokeWidth
		for _, p := range o.Points {
			d.Points = append(d.Points, DocumentPoint{X: p.X, Y: p.Y})
		}
	}
	return d
}
