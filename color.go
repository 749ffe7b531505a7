package deskpad

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"

	"golang.org/x/image/colornames"
)

// ParseColor parses a CSS color: #rgb, #rgba, #rrggbb, #rrggbbaa,
// rgb(), rgba(), a CSS named color or "transparent". The second result is
// false for an empty or fully transparent color, which paints nothing.
func ParseColor(s string) (color.NRGBA, bool, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "none", "transparent":
		return color.NRGBA{}, false, nil
	}

	var c color.NRGBA
	var err error
	switch {
	case strings.HasPrefix(s, "#"):
		c, err = parseHexColor(s[1:])
	case strings.HasPrefix(s, "rgb"):
		c, err = parseFuncColor(s)
	default:
		named, ok := colornames.Map[s]
		if !ok {
			return color.NRGBA{}, false, fmt.Errorf("deskpad: unknown color %q", s)
		}
		c = color.NRGBA{R: named.R, G: named.G, B: named.B, A: named.A}
	}
	if err != nil {
		return color.NRGBA{}, false, err
	}
	return c, c.A > 0, nil
}

func parseHexColor(h string) (color.NRGBA, error) {
	expand := func(b byte) string { return string([]byte{b, b}) }
	switch len(h) {
	case 3, 4:
		var long strings.Builder
		for i := range len(h) {
			long.WriteString(expand(h[i]))
		}
		h = long.String()
	case 6, 8:
	default:
		return color.NRGBA{}, fmt.Errorf("deskpad: bad hex color #%s", h)
	}
	if len(h) == 6 {
		h += "ff"
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("deskpad: bad hex color #%s", h)
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

// parseFuncColor parses rgb(r, g, b) and rgba(r, g, b, a). Channels are
// 0-255 or percentages; alpha is 0-1 or a percentage.
func parseFuncColor(s string) (color.NRGBA, error) {
	open := strings.IndexByte(s, '(')
	if open < 0 || !strings.HasSuffix(s, ")") {
		return color.NRGBA{}, fmt.Errorf("deskpad: bad color %q", s)
	}
	args := strings.FieldsFunc(s[open+1:len(s)-1], func(r rune) bool {
		return r == ',' || r == ' ' || r == '/'
	})
	if len(args) != 3 && len(args) != 4 {
		return color.NRGBA{}, fmt.Errorf("deskpad: bad color %q", s)
	}

	var ch [4]uint8
	ch[3] = 255
	for i, a := range args {
		pct := strings.HasSuffix(a, "%")
		v, err := strconv.ParseFloat(strings.TrimSuffix(a, "%"), 64)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("deskpad: bad color %q: %w", s, err)
		}
		switch {
		case pct:
			v = v / 100 * 255
		case i == 3:
			v *= 255
		}
		ch[i] = uint8(math.Round(math.Max(0, math.Min(255, v))))
	}
	return color.NRGBA{R: ch[0], G: ch[1], B: ch[2], A: ch[3]}, nil
}
