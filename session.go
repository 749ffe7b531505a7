package deskpad

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
)

// CascadeOffset is the distance, on both axes, between consecutive uploads
// placed on the canvas.
const CascadeOffset = 50

// Session is one editing session: an interactive canvas, the registry of
// its originals and the last finished export.
//
// Thread safety: Session is safe for concurrent use. Exports work on a
// snapshot of the canvas.
type Session struct {
	registry *Registry
	planner  *Planner

	mu      sync.Mutex
	width   float64
	height  float64
	objects []Object
	layers  []Layer
	ready   *Artifact

	exporting atomic.Int32
}

// NewSession returns an empty session for a width×height canvas. reg may
// be nil, in which case the session creates its own registry.
func NewSession(reg *Registry, width, height float64, opts ...PlannerOption) *Session {
	if reg == nil {
		reg = NewRegistry()
	}
	return &Session{
		registry: reg,
		planner:  NewPlanner(reg, opts...),
		width:    width,
		height:   height,
	}
}

// Registry returns the session's registry.
func (s *Session) Registry() *Registry { return s.registry }

// Upload registers data as an original, renders its proxy and places the
// proxy on the canvas.
func (s *Session) Upload(ctx context.Context, data []byte) (*ImageObject, *Proxy, error) {
	proxy, err := s.registry.CreateProxy(ctx, data)
	if err != nil {
		return nil, nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	obj := s.place(proxy)
	s.objects = append(s.objects, obj)
	return obj, proxy, nil
}

// place fits the proxy to the canvas, allowing upscaling, and centers it
// with a cascade offset per image already on the canvas.
func (s *Session) place(proxy *Proxy) *ImageObject {
	pw, ph := float64(proxy.Width), float64(proxy.Height)
	scale := min(s.width/pw, s.height/ph)

	n := 0
	for _, o := range s.objects {
		if o.Kind() == KindImage {
			n++
		}
	}
	offset := float64(n * CascadeOffset)

	obj := NewImageObject(proxy.ID, proxy.Image, s.width/2+offset, s.height/2+offset)
	obj.ScaleX, obj.ScaleY = scale, scale
	obj.AutoEnlarged = scale > 1
	obj.OriginalWidth, obj.OriginalHeight = proxy.OriginalWidth, proxy.OriginalHeight

	Logger().Debug("deskpad: upload placed",
		"id", proxy.ID,
		"scale", scale,
		"autoEnlarged", obj.AutoEnlarged,
		"left", obj.Left,
		"top", obj.Top)
	return obj
}

// Add appends obj to the top of the canvas.
func (s *Session) Add(obj Object) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects = append(s.objects, obj)
}

// SetLayers replaces the layer panel order.
func (s *Session) SetLayers(layers []Layer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.layers = slices.Clone(layers)
}

// Load replaces the canvas content and size. Originals stay registered.
func (s *Session) Load(c *Canvas) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width, s.height = c.Width, c.Height
	s.objects = slices.Clone(c.Objects)
	s.layers = slices.Clone(c.Layers)
}

// Canvas returns a snapshot of the canvas. Objects are shared, the slices
// are not.
func (s *Session) Canvas() *Canvas {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &Canvas{
		Width:   s.width,
		Height:  s.height,
		Objects: slices.Clone(s.objects),
		Layers:  slices.Clone(s.layers),
	}
}

// Delete removes the object with the given key from the canvas. An image's
// original is removed from the registry too.
func (s *Session) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.objects, func(o Object) bool { return o.Key() == key })
	if i < 0 {
		return fmt.Errorf("deskpad: no object %q", key)
	}
	if img, ok := s.objects[i].(*ImageObject); ok && img.ImageID != "" {
		s.registry.Remove(img.ImageID)
	}
	s.objects = slices.Delete(s.objects, i, i+1)
	s.layers = slices.DeleteFunc(s.layers, func(l Layer) bool { return l.Key == key })
	return nil
}

// Reset empties the canvas, the registry and the ready artifact.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects = nil
	s.layers = nil
	s.ready = nil
	s.registry.Clear()
}

// Export exports the current canvas. On success the artifact also becomes
// the session's ready artifact.
func (s *Session) Export(ctx context.Context) (*Result, error) {
	return s.ExportCanvas(ctx, s.Canvas())
}

// ExportCanvas exports c against the session's registry and stores the
// artifact as ready.
func (s *Session) ExportCanvas(ctx context.Context, c *Canvas) (*Result, error) {
	s.exporting.Add(1)
	defer s.exporting.Add(-1)

	res, err := s.planner.Export(ctx, c)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.ready = res.Artifact
	s.mu.Unlock()
	return res, nil
}

// Busy reports whether an export is running.
func (s *Session) Busy() bool { return s.exporting.Load() > 0 }

// Ready returns the last finished artifact without consuming it.
func (s *Session) Ready() *Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// TakeReady returns the last finished artifact and clears it, so each
// artifact is handed out once.
func (s *Session) TakeReady() *Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.ready
	s.ready = nil
	return a
}
