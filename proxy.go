package deskpad

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"

	"golang.org/x/image/draw"
)

// Proxy defaults.
const (
	DefaultProxyScale   = 0.4
	DefaultProxyQuality = 80
)

// ProxyRenderer rasterizes the downscaled preview of an original.
//
// Both axes are scaled by the same factor, so the proxy keeps the original's
// aspect ratio up to one pixel of rounding.
type ProxyRenderer struct {
	// Scale is the linear downscale ratio, in (0, 1].
	Scale float64

	// Quality is the JPEG quality, 1 to 100.
	Quality int

	// Kernel resamples the original. Catmull-Rom when nil.
	Kernel draw.Interpolator
}

// DefaultProxyRenderer returns a renderer producing 40% proxies at JPEG
// quality 80.
func DefaultProxyRenderer() ProxyRenderer {
	return ProxyRenderer{Scale: DefaultProxyScale, Quality: DefaultProxyQuality, Kernel: draw.CatmullRom}
}

// ProxySize returns the proxy dimensions for an original of w×h pixels.
func (p ProxyRenderer) ProxySize(w, h int) (int, int) {
	s := p.scale()
	pw := max(1, int(math.Round(float64(w)*s)))
	ph := max(1, int(math.Round(float64(h)*s)))
	return pw, ph
}

func (p ProxyRenderer) scale() float64 {
	if p.Scale <= 0 || p.Scale > 1 {
		return DefaultProxyScale
	}
	return p.Scale
}

// Render downscales src and encodes it as JPEG. The returned proxy has no
// ID; Registry.CreateProxy assigns it.
//
// Transparent regions are flattened onto white, the export background.
func (p ProxyRenderer) Render(src image.Image) (*Proxy, error) {
	b := src.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("%w: image has no pixels", ErrDecode)
	}
	pw, ph := p.ProxySize(b.Dx(), b.Dy())

	dst := image.NewRGBA(image.Rect(0, 0, pw, ph))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	kernel := p.Kernel
	if kernel == nil {
		kernel = draw.CatmullRom
	}
	kernel.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	quality := p.Quality
	if quality < 1 || quality > 100 {
		quality = DefaultProxyQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("deskpad: encode proxy: %w", err)
	}
	data := buf.Bytes()

	// The editor shows the compressed proxy, so the raster handed back is the
	// decoded JPEG rather than dst.
	raster, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("deskpad: decode proxy: %w", err)
	}

	return &Proxy{
		Scale:          p.scale(),
		Data:           data,
		DataURI:        DataURI("image/jpeg", data),
		Width:          pw,
		Height:         ph,
		OriginalWidth:  b.Dx(),
		OriginalHeight: b.Dy(),
		Image:          raster,
	}, nil
}
