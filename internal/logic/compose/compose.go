// Package compose turns a raw photo and the template artwork into the
// monochrome raster fed to the thermal printer. It performs no I/O: the same
// inputs always produce the same bitmap.
package compose

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"

	"github.com/cjeanneret/BoothGo/internal/raster"
)

// Quantize names the 1-bit conversion policy.
type Quantize string

const (
	// Threshold prints white where luminance > Params.Threshold, black elsewhere.
	Threshold Quantize = "threshold"
	// FloydSteinberg diffuses the quantization error to neighbouring pixels.
	FloydSteinberg Quantize = "floyd_steinberg"
)

// ParseQuantize validates a policy name from configuration.
func ParseQuantize(s string) (Quantize, error) {
	switch q := Quantize(s); q {
	case Threshold, FloydSteinberg:
		return q, nil
	case "":
		return Threshold, nil
	default:
		return "", fmt.Errorf("unknown quantize policy %q (want %q or %q)", s, Threshold, FloydSteinberg)
	}
}

// Print-head width of an 80mm thermal printer, in dots.
const DefaultOutputWidth = 576

// Defaults tuned for thermal-print legibility.
const (
	DefaultBrightness = 1.5
	DefaultContrast   = 1.6
	DefaultThreshold  = 128
)

// Params are the tunables of the pipeline.
type Params struct {
	OutputWidth int
	Brightness  float64
	Contrast    float64
	Quantize    Quantize
	Threshold   uint8
}

// DefaultParams returns the thermal-print defaults with threshold quantization.
func DefaultParams() Params {
	return Params{
		OutputWidth: DefaultOutputWidth,
		Brightness:  DefaultBrightness,
		Contrast:    DefaultContrast,
		Quantize:    Threshold,
		Threshold:   DefaultThreshold,
	}
}

// withDefaults fills zero-valued fields. Threshold 0 is a legal value.
func (p Params) withDefaults() Params {
	if p.OutputWidth <= 0 {
		p.OutputWidth = DefaultOutputWidth
	}
	if p.Brightness <= 0 {
		p.Brightness = DefaultBrightness
	}
	if p.Contrast <= 0 {
		p.Contrast = DefaultContrast
	}
	if p.Quantize == "" {
		p.Quantize = Threshold
	}
	return p
}

// OutputSize returns the raster size produced for a background of the given
// dimensions: fixed width, height scaled proportionally (truncated).
func OutputSize(bgWidth, bgHeight, outputWidth int) (int, int) {
	return outputWidth, outputWidth * bgHeight / bgWidth
}

// Compose runs the pipeline:
//  1. scale the background to OutputWidth, keeping its aspect ratio
//  2. scale the photo to the exact photo slot size
//  3. scale the QR code (if any, and if the template has a QR slot) to the QR slot size
//  4. convert the background to luminance
//  5. paste photo and QR as opaque overwrites
//  6. apply brightness, then contrast
//  7. quantize to 1 bit
func Compose(t *Template, photo, qr image.Image, p Params) *raster.Bitmap {
	return raster.FromGray(Luminance(t, photo, qr, p))
}

// Luminance runs steps 1 to 7 and returns the binarized image (values 0 or 255).
func Luminance(t *Template, photo, qr image.Image, p Params) *image.Gray {
	p = p.withDefaults()

	bg := t.Background
	w, h := OutputSize(bg.Bounds().Dx(), bg.Bounds().Dy(), p.OutputWidth)
	if h < 1 {
		h = 1
	}
	canvas := flatten(bg)
	scaledBg := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(scaledBg, scaledBg.Bounds(), canvas, canvas.Bounds(), draw.Src, nil)

	var scaledPhoto, scaledQR image.Image
	if photo != nil && !t.PhotoSlot.Empty() {
		scaledPhoto = scaleTo(photo, t.PhotoSlot, draw.CatmullRom)
	}
	if qr != nil && t.QRSlot != nil && !t.QRSlot.Empty() {
		// Nearest keeps QR modules crisp.
		scaledQR = scaleTo(qr, *t.QRSlot, draw.NearestNeighbor)
	}

	gray := image.NewGray(scaledBg.Bounds())
	draw.Draw(gray, gray.Bounds(), scaledBg, image.Point{}, draw.Src)

	if scaledPhoto != nil {
		draw.Draw(gray, t.PhotoSlot.Bounds(), scaledPhoto, image.Point{}, draw.Src)
	}
	if scaledQR != nil {
		draw.Draw(gray, t.QRSlot.Bounds(), scaledQR, image.Point{}, draw.Src)
	}

	Enhance(gray, p.Brightness, p.Contrast)
	return quantize(gray, p)
}

// flatten composites img over white so transparent artwork prints as paper.
func flatten(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Over)
	return out
}

func scaleTo(src image.Image, slot Rect, s draw.Scaler) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, slot.Width, slot.Height))
	s.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// Enhance applies a brightness multiplier and then a contrast multiplier
// around the mean luminance, in place.
func Enhance(g *image.Gray, brightness, contrast float64) {
	applyLUT(g, blendLUT(0, brightness))
	applyLUT(g, blendLUT(meanLuminance(g), contrast))
}

// blendLUT maps v to degenerate + factor*(v-degenerate), truncated and
// clipped to 0..255.
func blendLUT(degenerate int, factor float64) *[256]uint8 {
	var lut [256]uint8
	for v := 0; v < 256; v++ {
		f := float64(degenerate) + factor*float64(v-degenerate)
		lut[v] = clip8(int(f))
	}
	return &lut
}

func clip8(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

func applyLUT(g *image.Gray, lut *[256]uint8) {
	b := g.Bounds()
	for y := 0; y < b.Dy(); y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+b.Dx()]
		for i, v := range row {
			row[i] = lut[v]
		}
	}
}

// meanLuminance is the rounded average pixel value.
func meanLuminance(g *image.Gray) int {
	b := g.Bounds()
	n := b.Dx() * b.Dy()
	if n == 0 {
		return 0
	}
	var sum uint64
	for y := 0; y < b.Dy(); y++ {
		for _, v := range g.Pix[y*g.Stride : y*g.Stride+b.Dx()] {
			sum += uint64(v)
		}
	}
	return int((sum + uint64(n)/2) / uint64(n))
}

var bw = color.Palette{color.Gray{Y: 0}, color.Gray{Y: 255}}

func quantize(g *image.Gray, p Params) *image.Gray {
	b := g.Bounds()
	out := image.NewGray(b)

	if p.Quantize == FloydSteinberg {
		pal := image.NewPaletted(b, bw)
		draw.FloydSteinberg.Draw(pal, b, g, b.Min)
		for i, idx := range pal.Pix {
			out.Pix[i] = bw[idx].(color.Gray).Y
		}
		return out
	}

	for y := 0; y < b.Dy(); y++ {
		src := g.Pix[y*g.Stride : y*g.Stride+b.Dx()]
		dst := out.Pix[y*out.Stride : y*out.Stride+b.Dx()]
		for i, v := range src {
			if v > p.Threshold {
				dst[i] = 255
			}
		}
	}
	return out
}
