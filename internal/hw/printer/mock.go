package printer

import (
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cjeanneret/BoothGo/internal/debug"
	"github.com/cjeanneret/BoothGo/internal/raster"
)

// MockOpener simulates the printer for development on PC. When ProofDir is
// set every job is saved there as a PNG proof.
type MockOpener struct {
	mu       sync.Mutex
	ProofDir string
	absent   bool
	jobs     int
}

// NewMockOpener returns a mock printer that is plugged in.
func NewMockOpener(proofDir string) *MockOpener {
	debug.Info("Using MOCK printer (proofs: %q)", proofDir)
	return &MockOpener{ProofDir: proofDir}
}

// SetPresent simulates plugging or unplugging the printer.
func (m *MockOpener) SetPresent(present bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.absent = !present
}

// Jobs returns how many rasters were printed.
func (m *MockOpener) Jobs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.jobs
}

func (m *MockOpener) Open(vendorID, productID uint16) (Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.absent {
		return nil, fmt.Errorf("%w: mock unplugged", ErrPrinterAbsent)
	}
	return &mockDevice{opener: m}, nil
}

type mockDevice struct {
	opener *MockOpener
}

func (d *mockDevice) SendRaster(bm *raster.Bitmap) error {
	m := d.opener
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.absent {
		return fmt.Errorf("mock unplugged mid-job")
	}
	m.jobs++
	debug.Info("MOCK print job %d: %dx%d", m.jobs, bm.Width, bm.Height)

	if m.ProofDir == "" {
		return nil
	}
	if err := os.MkdirAll(m.ProofDir, 0o755); err != nil {
		return err
	}
	name := filepath.Join(m.ProofDir, fmt.Sprintf("proof_%s_%03d.png", time.Now().Format("20060102_150405"), m.jobs))
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, bm.Image())
}

func (d *mockDevice) Cut() error {
	debug.Trace("MOCK cut")
	return nil
}

func (d *mockDevice) Close() error {
	return nil
}
