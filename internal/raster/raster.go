// Package raster holds the 1-bit bitmap handed from composition to the
// printer.
package raster

import (
	"bytes"
	"image"
	"image/color"
)

// Bitmap is a packed monochrome image: rows of Stride bytes, most
// significant bit first, bit set = black dot (burned by the print head).
type Bitmap struct {
	Width  int
	Height int
	Stride int
	Bits   []byte
}

// New allocates an all-white bitmap.
func New(width, height int) *Bitmap {
	stride := (width + 7) / 8
	return &Bitmap{
		Width:  width,
		Height: height,
		Stride: stride,
		Bits:   make([]byte, stride*height),
	}
}

// FromGray packs a binarized luminance image. Pixels below 128 become black.
func FromGray(g *image.Gray) *Bitmap {
	b := g.Bounds()
	bm := New(b.Dx(), b.Dy())
	for y := 0; y < bm.Height; y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+bm.Width]
		for x, v := range row {
			if v < 128 {
				bm.Set(x, y, true)
			}
		}
	}
	return bm
}

// Set marks (x, y) black or white.
func (b *Bitmap) Set(x, y int, black bool) {
	i := y*b.Stride + x/8
	mask := byte(0x80 >> uint(x%8))
	if black {
		b.Bits[i] |= mask
	} else {
		b.Bits[i] &^= mask
	}
}

// Black reports whether (x, y) is a black dot.
func (b *Bitmap) Black(x, y int) bool {
	return b.Bits[y*b.Stride+x/8]&(0x80>>uint(x%8)) != 0
}

// Row returns the packed bytes of row y.
func (b *Bitmap) Row(y int) []byte {
	return b.Bits[y*b.Stride : (y+1)*b.Stride]
}

// Equal compares dimensions and content.
func (b *Bitmap) Equal(o *Bitmap) bool {
	if b == nil || o == nil {
		return b == o
	}
	return b.Width == o.Width && b.Height == o.Height && bytes.Equal(b.Bits, o.Bits)
}

// Image expands the bitmap into a black/white *image.Gray (for proofs).
func (b *Bitmap) Image() *image.Gray {
	g := image.NewGray(image.Rect(0, 0, b.Width, b.Height))
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			c := color.Gray{Y: 255}
			if b.Black(x, y) {
				c.Y = 0
			}
			g.SetGray(x, y, c)
		}
	}
	return g
}
