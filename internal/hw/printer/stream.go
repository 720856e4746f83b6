package printer

import (
	"io"

	"github.com/cjeanneret/BoothGo/internal/debug"
	"github.com/cjeanneret/BoothGo/internal/escpos"
	"github.com/cjeanneret/BoothGo/internal/raster"
)

// StreamOptions tune the ESC/POS byte stream.
type StreamOptions struct {
	BandHeight int // rows per GS v 0 block
	FeedLines  int // lines fed before the cut
}

func (o StreamOptions) withDefaults() StreamOptions {
	if o.BandHeight <= 0 {
		o.BandHeight = escpos.DefaultBandHeight
	}
	if o.FeedLines < 0 {
		o.FeedLines = escpos.DefaultFeedLines
	}
	return o
}

// streamDevice speaks ESC/POS over any byte sink (USB bulk endpoint,
// usblp character device).
type streamDevice struct {
	w    io.WriteCloser
	opts StreamOptions
}

// newStreamDevice resets the printer and returns the device.
func newStreamDevice(w io.WriteCloser, opts StreamOptions) (*streamDevice, error) {
	d := &streamDevice{w: w, opts: opts.withDefaults()}
	if err := d.write(escpos.Init()); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *streamDevice) SendRaster(bm *raster.Bitmap) error {
	return d.write(escpos.Raster(bm, d.opts.BandHeight))
}

func (d *streamDevice) Cut() error {
	return d.write(escpos.Cut(d.opts.FeedLines))
}

func (d *streamDevice) Close() error {
	return d.w.Close()
}

func (d *streamDevice) write(b []byte) error {
	debug.Trace("Printer: write %d bytes", len(b))
	for len(b) > 0 {
		n, err := d.w.Write(b)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		b = b[n:]
	}
	return nil
}
