package deskpad

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gogpu/deskpad/internal/store"
)

// Original is the pristine, full-resolution file behind a proxy.
// It is owned by the Registry and never written to disk.
type Original struct {
	ID        string
	CreatedAt time.Time

	data []byte

	dimsOnce sync.Once
	width    int
	height   int
	format   string
	dimsErr  error
}

func newOriginal(id string, data []byte, now time.Time) *Original {
	return &Original{ID: id, CreatedAt: now, data: data}
}

// Data returns the encoded bytes as uploaded. The slice must not be modified.
func (o *Original) Data() []byte { return o.data }

// Size returns the encoded size in bytes.
func (o *Original) Size() int { return len(o.data) }

// Dimensions returns the native pixel size. Only the image header is read,
// on first use.
func (o *Original) Dimensions() (int, int, error) {
	o.dimsOnce.Do(func() {
		cfg, format, err := decodeConfig(o.data)
		if err != nil {
			o.dimsErr = fmt.Errorf("original %s: %w", o.ID, err)
			return
		}
		o.width, o.height, o.format = cfg.Width, cfg.Height, format
	})
	return o.width, o.height, o.dimsErr
}

// Format returns the encoding name ("jpeg", "png", ...) or "" when the
// header could not be read.
func (o *Original) Format() string {
	_, _, _ = o.Dimensions()
	return o.format
}

// Decode rasterizes the full original. Every call decodes anew; the
// registry keeps only the encoded bytes.
func (o *Original) Decode() (image.Image, error) {
	img, _, err := decodeImage(o.data)
	if err != nil {
		return nil, fmt.Errorf("original %s: %w", o.ID, err)
	}
	return img, nil
}

// Proxy is the downscaled preview of an original, produced at upload.
type Proxy struct {
	// ID is shared with the original it derives from.
	ID string

	// Scale is the linear ratio between proxy and original.
	Scale float64

	// Data is the JPEG encoding; DataURI wraps it for the editor.
	Data    []byte
	DataURI string

	Width, Height                 int
	OriginalWidth, OriginalHeight int

	// Image is the decoded proxy raster.
	Image image.Image
}

// Registry maps opaque ids to originals. One Registry belongs to one editing
// session and is passed explicitly to the export pipeline.
//
// The map is unbounded: an original stays until Remove or Clear.
//
// Thread safety: Registry is safe for concurrent use.
type Registry struct {
	originals *store.Sharded[string, *Original]
	renderer  ProxyRenderer
	newID     func() string
	now       func() time.Time
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	o := defaultRegistryOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Registry{
		originals: store.New[string, *Original](store.StringHasher),
		renderer:  o.renderer,
		newID:     o.newID,
		now:       o.now,
	}
}

// NewResourceID returns a fresh opaque resource id.
func NewResourceID() string {
	return "img_" + uuid.Must(uuid.NewV7()).String()
}

// CreateProxy decodes data, stores it as an original under a fresh id and
// renders its proxy. A decode failure stores nothing and returns an error
// wrapping ErrDecode.
func (r *Registry) CreateProxy(ctx context.Context, data []byte) (*Proxy, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, format, err := decodeImage(data)
	if err != nil {
		return nil, err
	}
	proxy, err := r.renderer.Render(img)
	if err != nil {
		return nil, err
	}

	orig := newOriginal("", data, r.now())
	b := img.Bounds()
	orig.dimsOnce.Do(func() {
		orig.width, orig.height, orig.format = b.Dx(), b.Dy(), format
	})
	for {
		orig.ID = r.newID()
		if r.originals.SetIfAbsent(orig.ID, orig) {
			break
		}
		Logger().Warn("deskpad: resource id collision", "id", orig.ID)
	}
	proxy.ID = orig.ID

	Logger().Debug("deskpad: proxy created",
		"id", orig.ID,
		"format", format,
		"original", fmt.Sprintf("%dx%d", b.Dx(), b.Dy()),
		"proxy", fmt.Sprintf("%dx%d", proxy.Width, proxy.Height))
	return proxy, nil
}

// Register stores data under a caller-chosen id without decoding it, for
// originals whose proxies were rendered elsewhere (for example a saved
// document). An existing entry with the same id is replaced.
func (r *Registry) Register(id string, data []byte) (*Original, error) {
	if id == "" {
		return nil, fmt.Errorf("deskpad: register original: empty id")
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("deskpad: register original %s: %w: empty data", id, ErrDecode)
	}
	orig := newOriginal(id, data, r.now())
	r.originals.Set(id, orig)
	return orig, nil
}

// Original returns the original registered under id.
func (r *Registry) Original(id string) (*Original, error) {
	if orig, ok := r.originals.Get(id); ok {
		return orig, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrResourceNotFound, id)
}

// Remove drops the original registered under id and reports whether it was
// present.
func (r *Registry) Remove(id string) bool {
	return r.originals.Delete(id)
}

// Clear drops every original.
func (r *Registry) Clear() {
	r.originals.Clear()
}

// Len returns the number of registered originals.
func (r *Registry) Len() int {
	return r.originals.Len()
}

// IDs returns the registered ids in ascending order.
func (r *Registry) IDs() []string {
	return store.SortedKeys(r.originals)
}

// RegistryStats counts registered originals and id lookups.
type RegistryStats struct {
	Originals int
	Hits      uint64
	Misses    uint64
}

// Stats returns the number of originals and how many lookups by id found
// one.
func (r *Registry) Stats() RegistryStats {
	st := r.originals.Stats()
	return RegistryStats{Originals: st.Len, Hits: st.Hits, Misses: st.Misses}
}

// Bytes returns the total encoded size of all originals.
func (r *Registry) Bytes() int64 {
	var total int64
	r.originals.Range(func(_ string, o *Original) bool {
		total += int64(o.Size())
		return true
	})
	return total
}
