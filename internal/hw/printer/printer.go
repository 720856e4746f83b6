// Package printer drives the USB thermal receipt printer. The printer may
// be unplugged and replugged at any time: every job re-checks the link and
// a failed job marks the printer absent until the next successful reconnect.
package printer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cjeanneret/BoothGo/internal/debug"
	"github.com/cjeanneret/BoothGo/internal/raster"
)

var (
	// ErrPrinterAbsent means no device could be opened.
	ErrPrinterAbsent = errors.New("printer absent")
	// ErrPrint means the device was open but the job failed mid-way.
	ErrPrint = errors.New("print failed")
)

// Default USB identity of the booth printer.
const (
	DefaultVendorID  = 0x1FC9
	DefaultProductID = 0x2016
)

// State is the connection state seen by the session controller.
type State int

const (
	Absent State = iota
	Present
)

func (s State) String() string {
	if s == Present {
		return "present"
	}
	return "absent"
}

// Device is an open printer accepting raster jobs.
type Device interface {
	SendRaster(bm *raster.Bitmap) error
	Cut() error
	Close() error
}

// Opener locates and opens the printer by USB identity.
type Opener interface {
	Open(vendorID, productID uint16) (Device, error)
}

// Connection tracks the printer across hot-plug events.
type Connection struct {
	mu        sync.Mutex
	opener    Opener
	vendorID  uint16
	productID uint16
	dev       Device
}

// NewConnection creates a connection and makes one attempt to open the
// printer. Startup never fails on an absent printer.
func NewConnection(o Opener, vendorID, productID uint16) *Connection {
	c := &Connection{opener: o, vendorID: vendorID, productID: productID}
	if c.EnsureConnected() == Absent {
		debug.Warn("Printer %04x:%04x not connected at startup", vendorID, productID)
	}
	return c
}

// EnsureConnected re-opens the printer if needed and reports the result.
// An open device is reused as is.
func (c *Connection) EnsureConnected() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dev != nil {
		return Present
	}
	dev, err := c.opener.Open(c.vendorID, c.productID)
	if err != nil {
		debug.Verbose("Printer open failed: %v", err)
		return Absent
	}
	c.dev = dev
	debug.Live("Printer %04x:%04x connected", c.vendorID, c.productID)
	return Present
}

// State reports the last known state without touching the device.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dev != nil {
		return Present
	}
	return Absent
}

// Send prints bm and cuts the paper. Any device error closes the device,
// marks the printer absent and is returned wrapped in ErrPrint.
func (c *Connection) Send(bm *raster.Bitmap) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dev == nil {
		return ErrPrinterAbsent
	}

	err := c.dev.SendRaster(bm)
	if err == nil {
		err = c.dev.Cut()
	}
	if err != nil {
		c.dev.Close()
		c.dev = nil
		return fmt.Errorf("%w: %v", ErrPrint, err)
	}
	debug.Live("Printer: %dx%d raster printed", bm.Width, bm.Height)
	return nil
}

// Close releases the device if open.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dev == nil {
		return nil
	}
	err := c.dev.Close()
	c.dev = nil
	return err
}
