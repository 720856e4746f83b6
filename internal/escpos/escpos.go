// Package escpos builds the ESC/POS command bytes sent to the thermal
// printer.
package escpos

import (
	"bytes"

	"github.com/cjeanneret/BoothGo/internal/raster"
)

// DefaultBandHeight is the number of raster rows sent per GS v 0 command.
// Some firmwares drop images taller than their line buffer.
const DefaultBandHeight = 255

// DefaultFeedLines is fed before cutting so the image clears the blade.
const DefaultFeedLines = 6

var (
	cmdInit    = []byte{0x1B, 0x40}       // ESC @
	cmdRaster  = []byte{0x1D, 0x76, 0x30} // GS v 0
	cmdFeed    = []byte{0x1B, 0x64}       // ESC d n
	cmdFullCut = []byte{0x1D, 0x56, 0x00} // GS V 0
)

// Init resets the printer to its power-on state.
func Init() []byte {
	return append([]byte(nil), cmdInit...)
}

// Raster encodes bm as one or more GS v 0 (normal density) commands of at
// most bandHeight rows each. bandHeight <= 0 selects DefaultBandHeight.
func Raster(bm *raster.Bitmap, bandHeight int) []byte {
	if bandHeight <= 0 {
		bandHeight = DefaultBandHeight
	}
	var buf bytes.Buffer
	buf.Grow(len(bm.Bits) + (bm.Height/bandHeight+1)*8)
	for y0 := 0; y0 < bm.Height; y0 += bandHeight {
		rows := bandHeight
		if y0+rows > bm.Height {
			rows = bm.Height - y0
		}
		buf.Write(cmdRaster)
		buf.WriteByte(0x00) // m: normal width and height
		buf.WriteByte(byte(bm.Stride))
		buf.WriteByte(byte(bm.Stride >> 8))
		buf.WriteByte(byte(rows))
		buf.WriteByte(byte(rows >> 8))
		buf.Write(bm.Bits[y0*bm.Stride : (y0+rows)*bm.Stride])
	}
	return buf.Bytes()
}

// Cut feeds feedLines lines and performs a full cut.
func Cut(feedLines int) []byte {
	if feedLines < 0 {
		feedLines = 0
	}
	if feedLines > 255 {
		feedLines = 255
	}
	out := append([]byte(nil), cmdFeed...)
	out = append(out, byte(feedLines))
	return append(out, cmdFullCut...)
}
