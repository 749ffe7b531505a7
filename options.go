package deskpad

import "time"

// RegistryOption configures a Registry during creation.
//
// Example:
//
//	reg := deskpad.NewRegistry(deskpad.WithProxyRenderer(deskpad.ProxyRenderer{
//	    Scale:   0.25,
//	    Quality: 70,
//	}))
type RegistryOption func(*registryOptions)

type registryOptions struct {
	renderer ProxyRenderer
	newID    func() string
	now      func() time.Time
}

func defaultRegistryOptions() registryOptions {
	return registryOptions{
		renderer: DefaultProxyRenderer(),
		newID:    NewResourceID,
		now:      time.Now,
	}
}

// WithProxyRenderer replaces the default 40% / quality 80 proxy renderer.
func WithProxyRenderer(p ProxyRenderer) RegistryOption {
	return func(o *registryOptions) {
		o.renderer = p
	}
}

// WithIDGenerator replaces the resource id generator. Ids that collide with
// a registered original are drawn again.
func WithIDGenerator(fn func() string) RegistryOption {
	return func(o *registryOptions) {
		if fn != nil {
			o.newID = fn
		}
	}
}

// WithRegistryClock sets the clock used for Original.CreatedAt.
func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(o *registryOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// PlannerOption configures a Planner during creation.
//
// Example:
//
//	p := deskpad.NewPlanner(reg,
//	    deskpad.WithPixelBudget(4_000_000),
//	    deskpad.WithStateObserver(func(s deskpad.State) { log.Println(s) }),
//	)
type PlannerOption func(*plannerOptions)

type plannerOptions struct {
	sizer    Sizer
	quality  int
	workers  int
	now      func() time.Time
	observer func(State)
}

func defaultPlannerOptions() plannerOptions {
	return plannerOptions{
		sizer:   DefaultSizer(),
		quality: DefaultExportQuality,
		now:     time.Now,
	}
}

// WithPixelBudget sets the maximum export pixel count.
func WithPixelBudget(pixels int) PlannerOption {
	return func(o *plannerOptions) {
		if pixels > 0 {
			o.sizer.PixelBudget = pixels
		}
	}
}

// WithSafetyMargin sets the factor applied to both export axes before the
// budget clamp (1.05 adds 5%).
func WithSafetyMargin(m float64) PlannerOption {
	return func(o *plannerOptions) {
		if m >= 1 {
			o.sizer.SafetyMargin = m
		}
	}
}

// WithFallbackMultiplier sets the canvas multiplier used when no image
// dimensions could be resolved.
func WithFallbackMultiplier(m float64) PlannerOption {
	return func(o *plannerOptions) {
		if m > 0 {
			o.sizer.FallbackMultiplier = m
		}
	}
}

// WithJPEGQuality sets the artifact's JPEG quality, 1 to 100.
func WithJPEGQuality(q int) PlannerOption {
	return func(o *plannerOptions) {
		if q >= 1 && q <= 100 {
			o.quality = q
		}
	}
}

// WithConcurrency bounds the number of objects reconstructed at once.
// Zero or negative means GOMAXPROCS.
func WithConcurrency(n int) PlannerOption {
	return func(o *plannerOptions) {
		o.workers = n
	}
}

// WithClock sets the clock used for artifact names and timestamps.
func WithClock(now func() time.Time) PlannerOption {
	return func(o *plannerOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithStateObserver registers fn to be called on every state transition of
// an export. fn runs on the exporting goroutine and must not block.
func WithStateObserver(fn func(State)) PlannerOption {
	return func(o *plannerOptions) {
		o.observer = fn
	}
}
