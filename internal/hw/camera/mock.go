package camera

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"sync"

	"github.com/cjeanneret/BoothGo/internal/debug"
)

// MockSource renders a synthetic gradient still for development without a
// camera. Setting Err makes the next frames fail.
type MockSource struct {
	mu     sync.Mutex
	Width  int
	Height int
	Err    error
	frames int
}

// NewMockSource creates a mock camera producing width x height stills.
func NewMockSource(width, height int) *MockSource {
	debug.Info("Using MOCK camera (%dx%d)", width, height)
	return &MockSource{Width: width, Height: height}
}

func (m *MockSource) Frame() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	m.frames++

	img := image.NewRGBA(image.Rect(0, 0, m.Width, m.Height))
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(x * 255 / m.Width),
				G: uint8(y * 255 / m.Height),
				B: uint8(m.frames * 40),
				A: 255,
			})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Frames returns how many stills were produced.
func (m *MockSource) Frames() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frames
}

func (m *MockSource) Close() error {
	debug.Trace("Camera Close (mock)")
	return nil
}
