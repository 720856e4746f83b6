package compose

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg" // template artwork may be JPEG
	_ "image/png"
	"os"

	"github.com/cjeanneret/BoothGo/internal/debug"
)

// Blank canvas used when the template artwork cannot be loaded.
const (
	FallbackWidth  = 576
	FallbackHeight = 800
)

// ErrTemplateLoad is returned by LoadBackground when the artwork is missing
// or undecodable. LoadTemplate recovers from it with a blank canvas.
var ErrTemplateLoad = errors.New("template load failed")

// Rect is an insertion region in output (print-width) coordinates.
type Rect struct {
	X, Y          int
	Width, Height int
}

// Bounds converts r to an image.Rectangle.
func (r Rect) Bounds() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Empty reports whether r has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Template is the background artwork plus its two insertion regions.
// It is read-only once loaded and may be shared between sessions.
type Template struct {
	Background image.Image
	PhotoSlot  Rect
	QRSlot     *Rect // nil when the artwork has no QR region
	Fallback   bool  // true when Background is the blank canvas
}

// LoadTemplate reads the artwork at path. If it cannot be loaded, a warning
// is logged and a blank white FallbackWidth x FallbackHeight canvas is used
// instead; the slots are kept as given.
func LoadTemplate(path string, photoSlot Rect, qrSlot *Rect) *Template {
	t := &Template{PhotoSlot: photoSlot, QRSlot: qrSlot}
	bg, err := LoadBackground(path)
	if err != nil {
		debug.Warn("Template not found, using blank background: %v", err)
		t.Background = BlankCanvas()
		t.Fallback = true
		return t
	}
	t.Background = bg
	debug.Verbose("Template loaded: %s (%dx%d)", path, bg.Bounds().Dx(), bg.Bounds().Dy())
	return t
}

// LoadBackground decodes the artwork at path (PNG or JPEG).
func LoadBackground(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateLoad, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrTemplateLoad, path, err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: %s has no pixels", ErrTemplateLoad, path)
	}
	return img, nil
}

// BlankCanvas returns the white fallback background.
func BlankCanvas() *image.RGBA {
	c := image.NewRGBA(image.Rect(0, 0, FallbackWidth, FallbackHeight))
	draw.Draw(c, c.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	return c
}
