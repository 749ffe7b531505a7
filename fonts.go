package deskpad

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/gogpu/gg/text"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/bidi"

	"github.com/gogpu/deskpad/internal/store"
)

// fontVariant selects one embedded Go font.
type fontVariant uint8

const (
	fontRegular fontVariant = iota
	fontBold
	fontItalic
	fontBoldItalic
	fontMono
)

var fontData = map[fontVariant][]byte{
	fontRegular:    goregular.TTF,
	fontBold:       gobold.TTF,
	fontItalic:     goitalic.TTF,
	fontBoldItalic: gobolditalic.TTF,
	fontMono:       gomono.TTF,
}

// Family names that map onto the monospaced face.
var monoFamilies = []string{"mono", "courier", "consolas", "menlo", "code"}

var (
	fontSources = store.New[string, *text.FontSource](store.StringHasher)
	shaperOnce  sync.Once
)

// fold case-folds s. A cases.Caser is stateful, so each call gets its own.
func fold(s string) string { return cases.Fold().String(s) }

// resolveVariant picks the embedded font for a CSS-style family, weight and
// style. Every family resolves; unknown ones use the proportional Go font.
func resolveVariant(family, weight, style string) fontVariant {
	f := fold(family)
	for _, m := range monoFamilies {
		if strings.Contains(f, m) {
			return fontMono
		}
	}
	bold := isBold(weight)
	w := fold(style)
	italic := w == "italic" || w == "oblique"
	switch {
	case bold && italic:
		return fontBoldItalic
	case bold:
		return fontBold
	case italic:
		return fontItalic
	default:
		return fontRegular
	}
}

func isBold(weight string) bool {
	w := fold(strings.TrimSpace(weight))
	switch w {
	case "bold", "bolder":
		return true
	}
	n, err := strconv.Atoi(w)
	return err == nil && n >= 600
}

// fontSource returns the shared parsed font for v.
func fontSource(v fontVariant) (*text.FontSource, error) {
	shaperOnce.Do(func() {
		text.SetShaper(text.NewGoTextShaper())
	})
	return fontSources.GetOrCreate(strconv.Itoa(int(v)), func() (*text.FontSource, error) {
		src, err := text.NewFontSource(fontData[v])
		if err != nil {
			return nil, fmt.Errorf("deskpad: load font %d: %w", v, err)
		}
		return src, nil
	})
}

// isRTL reports whether the first strongly directional rune of s is
// right-to-left.
func isRTL(s string) bool {
	for i := 0; i < len(s); {
		p, n := bidi.LookupString(s[i:])
		if n == 0 {
			break
		}
		switch p.Class() {
		case bidi.R, bidi.AL:
			return true
		case bidi.L:
			return false
		}
		i += n
	}
	return false
}
