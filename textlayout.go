package deskpad

import (
	"fmt"
	"strings"

	"github.com/gogpu/gg"
	"github.com/gogpu/gg/text"
)

// Line metrics in units of the font size, as the editor lays text out.
const (
	fontSizeMult     = 1.13
	fontSizeFraction = 0.222

	underlineOffset     = 0.10
	linethroughOffset   = -0.315
	overlineOffset      = -0.88
	decorationThickness = 1.0 / 15
)

// textLayout is a text block converted to outlines in object space: the
// block is centered on the origin.
type textLayout struct {
	glyphs      *gg.Path
	decorations *gg.Path
	width       float64
	height      float64
	lines       int
}

type shapedLine struct {
	glyphs []text.ShapedGlyph
	width  float64
}

// layoutText shapes s with st and converts every glyph to an outline.
// minWidth is the text box width; lines are aligned within the wider of it
// and the longest line.
func layoutText(s string, st TextStyle, minWidth float64) (*textLayout, error) {
	if st.FontSize <= 0 {
		return nil, fmt.Errorf("deskpad: font size %v", st.FontSize)
	}
	src, err := fontSource(resolveVariant(st.FontFamily, st.FontWeight, st.FontStyle))
	if err != nil {
		return nil, err
	}
	var opts []text.FaceOption
	if isRTL(s) {
		opts = append(opts, text.WithDirection(text.DirectionRTL))
	}
	size := st.FontSize
	face := src.Face(size, opts...)
	spacing := st.CharSpacing * size / 1000

	raw := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	lines := make([]shapedLine, len(raw))
	width := minWidth
	for i, l := range raw {
		glyphs := text.Shape(l, face)
		var w float64
		for j, g := range glyphs {
			w = max(w, g.X+g.XAdvance+spacing*float64(j))
		}
		lines[i] = shapedLine{glyphs: glyphs, width: w}
		width = max(width, w)
	}

	lineHeight := st.LineHeight
	if lineHeight <= 0 {
		lineHeight = DefaultTextStyle().LineHeight
	}
	box := size * fontSizeMult
	step := box * lineHeight
	height := box + step*float64(len(lines)-1)

	out := &textLayout{
		glyphs:      gg.NewPath(),
		decorations: gg.NewPath(),
		width:       width,
		height:      height,
		lines:       len(lines),
	}
	parsed := src.Parsed()
	extractor := text.NewOutlineExtractor()
	thickness := size * decorationThickness

	for i, l := range lines {
		baseline := -height/2 + step*float64(i) + box - size*fontSizeFraction
		var x0 float64
		switch st.Align {
		case AlignCenter:
			x0 = -l.width / 2
		case AlignRight:
			x0 = width/2 - l.width
		default:
			x0 = -width / 2
		}

		for j, g := range l.glyphs {
			outline, err := extractor.ExtractOutline(parsed, g.GID, size)
			if err != nil || outline == nil || outline.IsEmpty() {
				continue
			}
			appendOutline(out.glyphs, outline, x0+g.X+spacing*float64(j), baseline+g.Y)
		}

		if l.width == 0 {
			continue
		}
		for _, d := range []struct {
			on     bool
			offset float64
		}{
			{st.Underline, underlineOffset},
			{st.Linethrough, linethroughOffset},
			{st.Overline, overlineOffset},
		} {
			if d.on {
				out.decorations.Rectangle(x0, baseline+d.offset*size-thickness/2, l.width, thickness)
			}
		}
	}
	return out, nil
}

// appendOutline adds a glyph outline positioned at (x, y) to p. Contours
// are closed so that strokes join at the contour start.
func appendOutline(p *gg.Path, o *text.GlyphOutline, x, y float64) {
	pt := func(q text.OutlinePoint) (float64, float64) {
		return x + float64(q.X), y + float64(q.Y)
	}
	open := false
	for _, seg := range o.Segments {
		switch seg.Op {
		case text.OutlineOpMoveTo:
			if open {
				p.Close()
			}
			open = true
			p.MoveTo(pt(seg.Points[0]))
		case text.OutlineOpLineTo:
			p.LineTo(pt(seg.Points[0]))
		case text.OutlineOpQuadTo:
			cx, cy := pt(seg.Points[0])
			ex, ey := pt(seg.Points[1])
			p.QuadraticTo(cx, cy, ex, ey)
		case text.OutlineOpCubicTo:
			c1x, c1y := pt(seg.Points[0])
			c2x, c2y := pt(seg.Points[1])
			ex, ey := pt(seg.Points[2])
			p.CubicTo(c1x, c1y, c2x, c2y, ex, ey)
		}
	}
	if open {
		p.Close()
	}
}
