package printer

import (
	"fmt"

	"github.com/google/gousb"

	"github.com/cjeanneret/BoothGo/internal/debug"
)

// USBOpener opens the printer through libusb and writes to its first bulk
// OUT endpoint.
type USBOpener struct {
	ctx  *gousb.Context
	opts StreamOptions
}

// NewUSBOpener creates the libusb context. Close it on shutdown.
func NewUSBOpener(opts StreamOptions) *USBOpener {
	return &USBOpener{ctx: gousb.NewContext(), opts: opts}
}

func (o *USBOpener) Open(vendorID, productID uint16) (Device, error) {
	dev, err := o.ctx.OpenDeviceWithVIDPID(gousb.ID(vendorID), gousb.ID(productID))
	if err != nil {
		return nil, fmt.Errorf("%w: open %04x:%04x: %v", ErrPrinterAbsent, vendorID, productID, err)
	}
	if dev == nil {
		return nil, fmt.Errorf("%w: no device %04x:%04x", ErrPrinterAbsent, vendorID, productID)
	}
	if err := dev.SetAutoDetach(true); err != nil {
		debug.Trace("USB: auto-detach unsupported: %v", err)
	}

	intf, done, err := dev.DefaultInterface()
	if err != nil {
		dev.Close()
		return nil, fmt.Errorf("%w: claim interface: %v", ErrPrinterAbsent, err)
	}

	epNum := -1
	for _, desc := range intf.Setting.Endpoints {
		if desc.Direction != gousb.EndpointDirectionOut || desc.TransferType != gousb.TransferTypeBulk {
			continue
		}
		if epNum < 0 || desc.Number < epNum {
			epNum = desc.Number
		}
	}
	if epNum < 0 {
		done()
		dev.Close()
		return nil, fmt.Errorf("%w: no bulk OUT endpoint on %04x:%04x", ErrPrinterAbsent, vendorID, productID)
	}
	ep, err := intf.OutEndpoint(epNum)
	if err != nil {
		done()
		dev.Close()
		return nil, fmt.Errorf("%w: endpoint %d: %v", ErrPrinterAbsent, epNum, err)
	}
	debug.Trace("USB: %04x:%04x using OUT endpoint %d", vendorID, productID, epNum)

	w := &usbWriter{dev: dev, done: done, ep: ep}
	sd, err := newStreamDevice(w, o.opts)
	if err != nil {
		w.Close()
		return nil, fmt.Errorf("%w: init: %v", ErrPrinterAbsent, err)
	}
	return sd, nil
}

// Close releases the libusb context.
func (o *USBOpener) Close() error {
	return o.ctx.Close()
}

type usbWriter struct {
	dev  *gousb.Device
	done func()
	ep   *gousb.OutEndpoint
}

func (w *usbWriter) Write(b []byte) (int, error) {
	return w.ep.Write(b)
}

func (w *usbWriter) Close() error {
	w.done()
	return w.dev.Close()
}
