package deskpad

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gogpu/gg"

	"github.com/gogpu/deskpad/internal/parallel"
)

// Canvas is the interactive canvas as the export pipeline reads it.
type Canvas struct {
	Width, Height float64

	// Objects are in canvas order, bottom first.
	Objects []Object

	// Layers is the editor's layer panel, top-most first. It may be empty.
	Layers []Layer
}

// State is a stage of an export.
type State uint8

const (
	StateIdle State = iota
	StateValidating
	StateSizing
	StateReconstructing
	StateOrdering
	StatePainting
	StateSerializing
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateIdle:           "idle",
	StateValidating:     "validating",
	StateSizing:         "sizing",
	StateReconstructing: "reconstructing",
	StateOrdering:       "ordering",
	StatePainting:       "painting",
	StateSerializing:    "serializing",
	StateDone:           "done",
	StateFailed:         "failed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Composition is the ordered, reconstructed content of an export.
type Composition struct {
	Size ExportSize

	// Elements are sorted in paint order.
	Elements []*Element

	// Dropped lists objects that could not be reconstructed, in canvas
	// order.
	Dropped []*ObjectError
}

// Result describes a finished export.
type Result struct {
	Artifact *Artifact
	Size     ExportSize

	// Objects is the number of objects painted.
	Objects int
	Dropped []*ObjectError
	Elapsed time.Duration
}

// Planner runs exports against one registry.
//
// Thread safety: Planner is safe for concurrent use; each export has its own
// surface and worker pool.
type Planner struct {
	registry *Registry
	opts     plannerOptions
}

// NewPlanner returns a planner reading originals from reg. reg may be nil,
// in which case every image exports from its current raster.
func NewPlanner(reg *Registry, opts ...PlannerOption) *Planner {
	o := defaultPlannerOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Planner{registry: reg, opts: o}
}

func (p *Planner) enter(s State) {
	if p.opts.observer != nil {
		p.opts.observer(s)
	}
}

func (p *Planner) fail(err error) error {
	p.enter(StateFailed)
	return err
}

// validate is the only stage that can abort an export. Cancellation is
// honored here and ignored afterwards.
func (p *Planner) validate(ctx context.Context, canvas *Canvas) error {
	p.enter(StateValidating)
	if err := ctx.Err(); err != nil {
		return err
	}
	if canvas == nil || len(canvas.Objects) == 0 {
		return ErrNothingToExport
	}
	if canvas.Width <= 0 || canvas.Height <= 0 || !finite(canvas.Width) || !finite(canvas.Height) {
		return fmt.Errorf("%w: %vx%v", ErrInvalidCanvas, canvas.Width, canvas.Height)
	}
	return nil
}

// Compose sizes the export and reconstructs every object in paint order
// without painting.
func (p *Planner) Compose(ctx context.Context, canvas *Canvas) (*Composition, error) {
	p.enter(StateIdle)
	if err := p.validate(ctx, canvas); err != nil {
		return nil, p.fail(err)
	}
	comp, err := p.compose(context.WithoutCancel(ctx), canvas)
	if err != nil {
		return nil, p.fail(err)
	}
	p.enter(StateDone)
	return comp, nil
}

func (p *Planner) compose(ctx context.Context, canvas *Canvas) (*Composition, error) {
	p.enter(StateSizing)
	size, err := p.opts.sizer.Size(ctx, canvas, p.registry)
	if err != nil {
		return nil, err
	}

	p.enter(StateReconstructing)
	elements, dropped := p.reconstructAll(canvas.Objects, size.Scale)

	p.enter(StateOrdering)
	orders := ResolveLayerOrder(canvas.Objects, canvas.Layers)
	for _, el := range elements {
		el.PaintOrder = orders[el.Key]
	}
	sort.Slice(elements, func(i, j int) bool {
		if elements[i].PaintOrder != elements[j].PaintOrder {
			return elements[i].PaintOrder < elements[j].PaintOrder
		}
		return elements[i].index < elements[j].index
	})

	return &Composition{Size: size, Elements: elements, Dropped: dropped}, nil
}

// reconstructAll rebuilds every object on a worker pool and waits for all
// of them. Results arrive in completion order.
func (p *Planner) reconstructAll(objects []Object, scale Scale) ([]*Element, []*ObjectError) {
	rc := &reconstruction{registry: p.registry, scale: scale}

	var (
		mu       sync.Mutex
		elements = make([]*Element, 0, len(objects))
		failed   = make([]*ObjectError, len(objects))
	)
	tasks := make([]func(), len(objects))
	for i, obj := range objects {
		tasks[i] = func() {
			el, err := obj.reconstruct(rc)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed[i] = asObjectError(obj, "reconstruct", err)
				return
			}
			el.index = i
			elements = append(elements, el)
		}
	}

	pool := parallel.NewWorkerPool(p.opts.workers)
	Logger().Debug("deskpad: reconstructing", "objects", len(objects), "workers", pool.Workers())
	panics := pool.ExecuteAll(tasks)
	pool.Close()
	for i, err := range panics {
		if err != nil {
			failed[i] = objectError(objects[i], "reconstruct", fmt.Errorf("%w: %v", ErrClone, err))
		}
	}

	var dropped []*ObjectError
	for _, oe := range failed {
		if oe == nil {
			continue
		}
		Logger().Warn("deskpad: object dropped from export",
			"kind", oe.Kind, "key", oe.Key, "op", oe.Op, "err", oe.Err)
		dropped = append(dropped, oe)
	}
	return elements, dropped
}

func asObjectError(obj Object, op string, err error) *ObjectError {
	var oe *ObjectError
	if errors.As(err, &oe) {
		return oe
	}
	return objectError(obj, op, err)
}

// Export runs the whole pipeline and returns the encoded artifact. Only an
// empty canvas, invalid canvas dimensions or a context cancelled before the
// export starts return an error; objects that fail are dropped and listed in
// the result.
func (p *Planner) Export(ctx context.Context, canvas *Canvas) (*Result, error) {
	start := p.opts.now()
	p.enter(StateIdle)
	if err := p.validate(ctx, canvas); err != nil {
		return nil, p.fail(err)
	}
	comp, err := p.compose(context.WithoutCancel(ctx), canvas)
	if err != nil {
		return nil, p.fail(err)
	}

	p.enter(StatePainting)
	dc := gg.NewContext(comp.Size.Width, comp.Size.Height)
	defer dc.Close()
	dc.ClearWithColor(gg.White)

	dropped := comp.Dropped
	painted := 0
	for _, el := range comp.Elements {
		if err := el.draw(dc); err != nil {
			oe := &ObjectError{Kind: el.Kind, Key: el.Key, Op: "paint", Err: err}
			Logger().Warn("deskpad: paint failed", "kind", el.Kind, "key", el.Key, "err", err)
			dropped = append(dropped, oe)
			continue
		}
		painted++
	}

	p.enter(StateSerializing)
	now := p.opts.now()
	art, err := encodeArtifact(dc, p.opts.quality, now)
	if err != nil {
		return nil, p.fail(err)
	}

	res := &Result{
		Artifact: art,
		Size:     comp.Size,
		Objects:  painted,
		Dropped:  dropped,
		Elapsed:  now.Sub(start),
	}
	Logger().Info("deskpad: export done",
		"file", art.Filename,
		"size", fmt.Sprintf("%dx%d", art.Width, art.Height),
		"bytes", humanize.Bytes(uint64(len(art.Data))),
		"objects", painted,
		"dropped", len(dropped),
		"elapsed", res.Elapsed)
	p.enter(StateDone)
	return res, nil
}
