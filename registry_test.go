package deskpad

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestCreateProxy(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reg := NewRegistry(WithRegistryClock(func() time.Time { return now }))
	data := encodePNG(t, gradientImage(400, 280))

	proxy, err := reg.CreateProxy(context.Background(), data)
	if err != nil {
		t.Fatalf("CreateProxy() = %v", err)
	}
	if !strings.HasPrefix(proxy.ID, "img_") {
		t.Errorf("proxy.ID = %q, want img_ prefix", proxy.ID)
	}
	if proxy.Width != 160 || proxy.Height != 112 {
		t.Errorf("proxy size = %dx%d, want 160x112", proxy.Width, proxy.Height)
	}
	if proxy.OriginalWidth != 400 || proxy.OriginalHeight != 280 {
		t.Errorf("proxy original size = %dx%d, want 400x280", proxy.OriginalWidth, proxy.OriginalHeight)
	}

	orig, err := reg.Original(proxy.ID)
	if err != nil {
		t.Fatalf("Original(%q) = %v", proxy.ID, err)
	}
	if len(orig.Data()) != len(data) {
		t.Errorf("Original().Data() = %d bytes, want %d", len(orig.Data()), len(data))
	}
	if !orig.CreatedAt.Equal(now) {
		t.Errorf("Original().CreatedAt = %v, want %v", orig.CreatedAt, now)
	}
	w, h, err := orig.Dimensions()
	if err != nil || w != 400 || h != 280 {
		t.Errorf("Original().Dimensions() = %d, %d, %v; want 400, 280, nil", w, h, err)
	}
	if orig.Format() != "png" {
		t.Errorf("Original().Format() = %q, want png", orig.Format())
	}
}

func TestCreateProxyDecodeError(t *testing.T) {
	reg := NewRegistry()
	for _, data := range [][]byte{nil, []byte("definitely not an image"), pngHeader(10, 10)} {
		if _, err := reg.CreateProxy(context.Background(), data); !errors.Is(err, ErrDecode) {
			t.Errorf("CreateProxy(%d bytes) = %v, want ErrDecode", len(data), err)
		}
	}
	if reg.Len() != 0 {
		t.Errorf("Len() = %d after failed uploads, want 0", reg.Len())
	}
}

func TestCreateProxyCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	reg := NewRegistry()
	if _, err := reg.CreateProxy(ctx, encodePNG(t, gradientImage(8, 8))); !errors.Is(err, context.Canceled) {
		t.Errorf("CreateProxy() = %v, want context.Canceled", err)
	}
}

func TestCreateProxyIDCollision(t *testing.T) {
	ids := []string{"img_same", "img_same", "img_other"}
	var n int
	reg := NewRegistry(WithIDGenerator(func() string {
		id := ids[n%len(ids)]
		n++
		return id
	}))
	data := encodePNG(t, gradientImage(8, 8))

	a, err := reg.CreateProxy(context.Background(), data)
	if err != nil {
		t.Fatal(err)
	}
	b, err := reg.CreateProxy(context.Background(), data)
	if err != nil {
		t.Fatal(err)
	}
	if a.ID != "img_same" || b.ID != "img_other" {
		t.Errorf("ids = %q, %q; want img_same, img_other", a.ID, b.ID)
	}
}

func TestRegistryRegisterLazy(t *testing.T) {
	reg := NewRegistry()
	orig, err := reg.Register("img_doc", pngHeader(5000, 3000))
	if err != nil {
		t.Fatalf("Register() = %v", err)
	}
	w, h, err := orig.Dimensions()
	if err != nil || w != 5000 || h != 3000 {
		t.Errorf("Dimensions() = %d, %d, %v; want 5000, 3000, nil", w, h, err)
	}
	if _, err := orig.Decode(); !errors.Is(err, ErrDecode) {
		t.Errorf("Decode() of header-only data = %v, want ErrDecode", err)
	}

	if _, err := reg.Register("", []byte{1}); err == nil {
		t.Error("Register(\"\") = nil error, want error")
	}
	if _, err := reg.Register("img_empty", nil); !errors.Is(err, ErrDecode) {
		t.Errorf("Register(nil data) = %v, want ErrDecode", err)
	}
}

func TestRegistryRemoveClear(t *testing.T) {
	reg := NewRegistry()
	for _, id := range []string{"c", "a", "b"} {
		reg.Register(id, []byte("0123456789"))
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, reg.IDs()); diff != "" {
		t.Errorf("IDs() mismatch (-want +got):\n%s", diff)
	}
	if got := reg.Bytes(); got != 30 {
		t.Errorf("Bytes() = %d, want 30", got)
	}

	if !reg.Remove("a") {
		t.Error("Remove(a) = false, want true")
	}
	if reg.Remove("a") {
		t.Error("second Remove(a) = true, want false")
	}
	if _, err := reg.Original("a"); !errors.Is(err, ErrResourceNotFound) {
		t.Errorf("Original(a) after Remove = %v, want ErrResourceNotFound", err)
	}

	reg.Clear()
	if reg.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", reg.Len())
	}
}

func TestRegistryUnbounded(t *testing.T) {
	reg := NewRegistry()
	const n = 2000
	for i := range n {
		reg.Register(fmt.Sprintf("img_%04d", i), []byte{byte(i)})
	}
	if reg.Len() != n {
		t.Fatalf("Len() = %d, want %d", reg.Len(), n)
	}
	if _, err := reg.Original("img_0000"); err != nil {
		t.Errorf("Original(img_0000) = %v, want the first entry kept", err)
	}
}

func TestRegistryStats(t *testing.T) {
	reg := NewRegistry()
	reg.Register("img_a", []byte{1})
	reg.Register("img_b", []byte{2})
	reg.Original("img_a")
	reg.Original("img_a")
	reg.Original("img_zzz")

	want := RegistryStats{Originals: 2, Hits: 2, Misses: 1}
	if diff := cmp.Diff(want, reg.Stats()); diff != "" {
		t.Errorf("Stats() mismatch (-want +got):\n%s", diff)
	}
}

func TestRegistryConcurrentUploads(t *testing.T) {
	reg := NewRegistry()
	data := encodePNG(t, gradientImage(16, 16))

	var wg sync.WaitGroup
	ids := make([]string, 16)
	for i := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := reg.CreateProxy(context.Background(), data)
			if err != nil {
				t.Error(err)
				return
			}
			ids[i] = p.ID
		}()
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, id := range ids {
		if seen[id] {
			t.Errorf("duplicate id %q", id)
		}
		seen[id] = true
	}
	if reg.Len() != len(ids) {
		t.Errorf("Len() = %d, want %d", reg.Len(), len(ids))
	}
}
