package printer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// FileOpener writes to a printer character device such as /dev/usb/lp0,
// for systems where the usblp kernel driver owns the printer. The USB
// identity is not checked.
type FileOpener struct {
	Path string
	Opts StreamOptions
}

func (o FileOpener) Open(vendorID, productID uint16) (Device, error) {
	f, err := os.OpenFile(o.Path, os.O_WRONLY, 0)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("%w: %v", ErrPrinterAbsent, err)
		}
		return nil, fmt.Errorf("%w: open %s: %v", ErrPrinterAbsent, o.Path, err)
	}
	d, err := newStreamDevice(f, o.Opts)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: init: %v", ErrPrinterAbsent, err)
	}
	return d, nil
}
