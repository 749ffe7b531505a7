package deskpad

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gogpu/gg"
)

// DefaultExportQuality is the artifact's JPEG quality.
const DefaultExportQuality = 100

// Artifact is an encoded export, ready for download.
type Artifact struct {
	Filename  string
	Data      []byte
	Width     int
	Height    int
	CreatedAt time.Time
}

// ArtifactName returns the download name for an export created at t. Names
// embed the Unix time in milliseconds.
func ArtifactName(t time.Time) string {
	return fmt.Sprintf("deskpad_design_%d.jpg", t.UnixMilli())
}

// ContentType returns the artifact's media type.
func (a *Artifact) ContentType() string { return "image/jpeg" }

// WriteTo writes the encoded image to w.
func (a *Artifact) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(a.Data)
	return int64(n), err
}

// Save writes the artifact into dir under its Filename and returns the
// full path.
func (a *Artifact) Save(dir string) (string, error) {
	path := filepath.Join(dir, a.Filename)
	if err := os.WriteFile(path, a.Data, 0o644); err != nil {
		return "", fmt.Errorf("deskpad: save artifact: %w", err)
	}
	return path, nil
}

// encodeArtifact serializes the export surface.
func encodeArtifact(dc *gg.Context, quality int, now time.Time) (*Artifact, error) {
	var buf bytes.Buffer
	if err := dc.EncodeJPEG(&buf, quality); err != nil {
		return nil, fmt.Errorf("deskpad: encode artifact: %w", err)
	}
	b := dc.Image().Bounds()
	return &Artifact{
		Filename:  ArtifactName(now),
		Data:      buf.Bytes(),
		Width:     b.Dx(),
		Height:    b.Dy(),
		CreatedAt: now,
	}, nil
}
