package deskpad

import (
	"context"
	"errors"
	"math"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
)

// Sizer defaults.
const (
	DefaultPixelBudget        = 2_000_000
	DefaultSafetyMargin       = 1.05
	DefaultFallbackMultiplier = 4
)

// maxProbes bounds concurrent header reads during sizing.
const maxProbes = 8

// maxDimension caps each export axis before the budget clamp.
const maxDimension = 1 << 30

// ExportSize is the output of the Sizer.
type ExportSize struct {
	Width, Height int

	// Scale maps interactive canvas coordinates to export coordinates.
	Scale Scale

	// Resolved counts image objects whose pixel size contributed.
	Resolved int

	// Clamped reports that the pixel budget reduced the size.
	Clamped bool

	// TargetWidth and TargetHeight are the sizes before the budget clamp.
	TargetWidth, TargetHeight int
}

// Pixels returns Width×Height.
func (s ExportSize) Pixels() int { return s.Width * s.Height }

// Sizer picks the export canvas size from the largest image's native size
// and the interactive canvas's aspect ratio, bounded by a pixel budget.
type Sizer struct {
	PixelBudget        int
	SafetyMargin       float64
	FallbackMultiplier float64
}

// DefaultSizer returns a sizer with a 2,000,000 px budget, 5% margin and a
// 4× fallback.
func DefaultSizer() Sizer {
	return Sizer{
		PixelBudget:        DefaultPixelBudget,
		SafetyMargin:       DefaultSafetyMargin,
		FallbackMultiplier: DefaultFallbackMultiplier,
	}
}

type probe struct {
	w, h int
	ok   bool
}

// Size computes the export size for canvas. Image dimensions are probed
// concurrently: registered originals by header, anything else by the live
// raster's pixel size. Probe failures only remove that image from the
// computation.
func (s Sizer) Size(ctx context.Context, canvas *Canvas, reg *Registry) (ExportSize, error) {
	if canvas.Width <= 0 || canvas.Height <= 0 {
		return ExportSize{}, ErrInvalidCanvas
	}

	var images []*ImageObject
	for _, obj := range canvas.Objects {
		if img, ok := obj.(*ImageObject); ok {
			images = append(images, img)
		}
	}

	probes := make([]probe, len(images))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxProbes)
	for i, img := range images {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			probes[i] = probeImage(img, reg)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ExportSize{}, err
	}

	var maxW, maxH, resolved int
	for _, p := range probes {
		if !p.ok {
			continue
		}
		resolved++
		maxW = max(maxW, p.w)
		maxH = max(maxH, p.h)
	}

	size := s.fit(canvas.Width, canvas.Height, maxW, maxH)
	size.Resolved = resolved
	size.Scale = Scale{
		X: float64(size.Width) / canvas.Width,
		Y: float64(size.Height) / canvas.Height,
	}

	Logger().Info("deskpad: export size",
		"canvas", humanize.Ftoa(canvas.Width)+"x"+humanize.Ftoa(canvas.Height),
		"images", len(images),
		"resolved", resolved,
		"width", size.Width,
		"height", size.Height,
		"pixels", humanize.Comma(int64(size.Pixels())),
		"clamped", size.Clamped)
	return size, nil
}

func probeImage(img *ImageObject, reg *Registry) probe {
	if img.ImageID != "" && reg != nil {
		orig, err := reg.Original(img.ImageID)
		if err == nil {
			w, h, err := orig.Dimensions()
			if err == nil {
				return probe{w: w, h: h, ok: true}
			}
			Logger().Warn("deskpad: dimension probe failed", "key", img.Key(), "err", err)
		} else if !errors.Is(err, ErrResourceNotFound) {
			Logger().Warn("deskpad: dimension probe failed", "key", img.Key(), "err", err)
		}
	}
	if img.Raster == nil {
		return probe{}
	}
	b := img.Raster.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return probe{}
	}
	return probe{w: b.Dx(), h: b.Dy(), ok: true}
}

// fit applies steps 3 to 6 of sizing: aspect fitting, fallback, margin and
// the budget clamp. maxW and maxH are zero when nothing resolved.
func (s Sizer) fit(cw, ch float64, maxW, maxH int) ExportSize {
	margin := s.SafetyMargin
	if margin < 1 {
		margin = DefaultSafetyMargin
	}
	mult := s.FallbackMultiplier
	if mult <= 0 {
		mult = DefaultFallbackMultiplier
	}
	budget := s.PixelBudget
	if budget <= 0 {
		budget = DefaultPixelBudget
	}

	var w, h float64
	if maxW > 0 && maxH > 0 {
		working := cw / ch
		originals := float64(maxW) / float64(maxH)
		if working > originals {
			h = float64(maxH)
			w = h * working
		} else {
			w = float64(maxW)
			h = w / working
		}
	} else {
		w, h = cw*mult, ch*mult
	}

	tw := ceilDimension(w * margin)
	th := ceilDimension(h * margin)
	size := ExportSize{Width: tw, Height: th, TargetWidth: tw, TargetHeight: th}
	if float64(tw)*float64(th) <= float64(budget) {
		return size
	}

	size.Width, size.Height = clampToBudget(tw, th, budget)
	size.Clamped = true
	return size
}

func ceilDimension(v float64) int {
	if v >= maxDimension {
		return maxDimension
	}
	return max(1, int(math.Ceil(v)))
}

// clampToBudget scales w×h uniformly so the pixel count fits budget. Among
// the roundings of the scaled size that fit, the one closest to w/h wins.
func clampToBudget(w, h, budget int) (int, int) {
	aspect := float64(w) / float64(h)
	k := math.Sqrt(float64(budget) / (float64(w) * float64(h)))
	fw := max(1, int(math.Floor(float64(w)*k)))
	fh := max(1, int(math.Floor(float64(h)*k)))
	// Extreme aspects can floor one axis to zero; the other absorbs it.
	if fw*fh > budget {
		if fw > fh {
			fw = max(1, budget/fh)
		} else {
			fh = max(1, budget/fw)
		}
	}

	bestW, bestH := fw, fh
	bestErr := math.Abs(float64(fw)/float64(fh) - aspect)
	for _, c := range [][2]int{{fw + 1, fh}, {fw, fh + 1}, {fw + 1, fh + 1}} {
		if c[0]*c[1] > budget {
			continue
		}
		e := math.Abs(float64(c[0])/float64(c[1]) - aspect)
		if e < bestErr || (e == bestErr && c[0]*c[1] > bestW*bestH) {
			bestW, bestH, bestErr = c[0], c[1], e
		}
	}
	return bestW, bestH
}
