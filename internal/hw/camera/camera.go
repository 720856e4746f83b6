package camera

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cjeanneret/BoothGo/internal/debug"
)

// ErrCapture wraps every failure to acquire a photo. It is fatal to the
// current session only; the device stays open for the next trigger.
var ErrCapture = errors.New("capture failed")

// Source is an already-open camera producing one JPEG still per call.
// Implementations are opened once at startup and kept running.
type Source interface {
	Frame() ([]byte, error)
	Close() error
}

// Photo is one captured still and where it was stored.
type Photo struct {
	Path    string
	TakenAt time.Time
	JPEG    []byte
	Image   image.Image
}

// FileName returns the storage name for a photo taken at t. Two captures
// within the same second share a name; the later one overwrites the first.
func FileName(t time.Time) string {
	return "photo_" + t.Format("20060102_150405") + ".jpg"
}

// Handle owns the camera for the process lifetime and writes each still to
// the photo directory. Photos are never deleted.
type Handle struct {
	mu  sync.Mutex
	src Source
	dir string
	now func() time.Time
}

// NewHandle wraps an open source and makes sure dir exists.
func NewHandle(src Source, dir string) (*Handle, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create photo dir: %w", err)
	}
	return &Handle{src: src, dir: dir, now: time.Now}, nil
}

// Capture takes a still now, stores it and returns it decoded.
func (h *Handle) Capture() (*Photo, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	taken := h.now()
	data, err := h.src.Frame()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCapture, err)
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode frame: %v", ErrCapture, err)
	}

	path := filepath.Join(h.dir, FileName(taken))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("%w: store photo: %v", ErrCapture, err)
	}
	debug.Live("Camera: photo saved to %s (%dx%d)", path, img.Bounds().Dx(), img.Bounds().Dy())

	return &Photo{Path: path, TakenAt: taken, JPEG: data, Image: img}, nil
}

// Close releases the underlying device.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.src.Close()
}
