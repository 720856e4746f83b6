package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/cjeanneret/BoothGo/internal/config"
	"github.com/cjeanneret/BoothGo/internal/hw/camera"
	"github.com/cjeanneret/BoothGo/internal/hw/printer"
	"github.com/cjeanneret/BoothGo/internal/journal"
	"github.com/cjeanneret/BoothGo/internal/logic/compose"
	"github.com/cjeanneret/BoothGo/internal/logic/session"
	"github.com/cjeanneret/BoothGo/internal/logic/trigger"
)

// ---------- validateCLIOverrides ----------

func TestValidateCLIOverrides(t *testing.T) {
	for _, lvl := range []int{-1, 0, 2, 4} {
		if err := validateCLIOverrides(lvl); err != nil {
			t.Errorf("debug_level %d should be valid, got: %v", lvl, err)
		}
	}
	for _, lvl := range []int{-2, 5, 100} {
		if err := validateCLIOverrides(lvl); err == nil {
			t.Errorf("debug_level %d should be rejected", lvl)
		}
	}
}

// ---------- webPortFlag ----------

func TestWebPortFlag_EmptyString(t *testing.T) {
	w := &webPortFlag{defaultPort: 8080}
	if err := w.Set(""); err != nil {
		t.Fatalf("Set(\"\") error: %v", err)
	}
	if w.port() != 8080 {
		t.Errorf("expected default port 8080, got %d", w.port())
	}
}

func TestWebPortFlag_ValidPorts(t *testing.T) {
	cases := []struct {
		input string
		want  int
	}{
		{"8080", 8080},
		{"1", 1},
		{"65535", 65535},
	}
	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			w := &webPortFlag{defaultPort: 8080}
			if err := w.Set(tc.input); err != nil {
				t.Fatalf("Set(%q) error: %v", tc.input, err)
			}
			if w.port() != tc.want {
				t.Errorf("port() = %d, want %d", w.port(), tc.want)
			}
		})
	}
}

func TestWebPortFlag_InvalidPorts(t *testing.T) {
	for _, input := range []string{"0", "65536", "-1", "abc", "8080.5"} {
		w := &webPortFlag{defaultPort: 8080}
		if err := w.Set(input); err == nil {
			t.Errorf("Set(%q) should fail, got nil", input)
		}
	}
}

func TestWebPortFlag_String(t *testing.T) {
	w := &webPortFlag{}
	if s := w.String(); s != "0" {
		t.Errorf("String() = %q, want \"0\"", s)
	}
	w.val = 9090
	if s := w.String(); s != "9090" {
		t.Errorf("String() = %q, want \"9090\"", s)
	}
}

// ---------- applyOverrides ----------

func loadShipped(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load(filepath.Join("..", "..", "configs", "default.yaml"))
	if err != nil {
		t.Fatalf("load shipped config: %v", err)
	}
	return cfg
}

func TestApplyOverrides_Mock(t *testing.T) {
	cfg := loadShipped(t)
	applyOverrides(cfg, overrides{Mock: true, DebugLevel: -1})
	if !cfg.Defaults.MockGPIO || cfg.Camera.Type != "mock" || cfg.Printer.Type != "mock" {
		t.Errorf("mock override not applied: gpio=%v camera=%s printer=%s",
			cfg.Defaults.MockGPIO, cfg.Camera.Type, cfg.Printer.Type)
	}
}

func TestApplyOverrides_KeepsConfigWhenUnset(t *testing.T) {
	cfg := loadShipped(t)
	before := *cfg
	applyOverrides(cfg, overrides{DebugLevel: -1})
	if cfg.Defaults.DebugLevel != before.Defaults.DebugLevel || cfg.Web != before.Web || cfg.Camera.Type != before.Camera.Type {
		t.Error("empty overrides changed the config")
	}
}

func TestApplyOverrides_WebAndDebug(t *testing.T) {
	cfg := loadShipped(t)
	applyOverrides(cfg, overrides{DebugLevel: 0, WebPort: 9191})
	if cfg.Defaults.DebugLevel != 0 {
		t.Errorf("debug level = %d, want 0", cfg.Defaults.DebugLevel)
	}
	if !cfg.Web.Enabled || cfg.Web.Port != 9191 {
		t.Errorf("web = %+v", cfg.Web)
	}
}

// ---------- factories ----------

func TestComposeParams(t *testing.T) {
	cfg := loadShipped(t)
	p, err := composeParams(cfg)
	if err != nil {
		t.Fatal(err)
	}
	want := compose.DefaultParams()
	if p != want {
		t.Errorf("params = %+v, want %+v", p, want)
	}
}

func TestToRectPtr(t *testing.T) {
	if toRectPtr(nil) != nil {
		t.Error("nil slot should stay nil")
	}
	r := toRectPtr(&config.SlotConfig{X: 1, Y: 2, Width: 3, Height: 4})
	if r == nil || *r != (compose.Rect{X: 1, Y: 2, Width: 3, Height: 4}) {
		t.Errorf("rect = %+v", r)
	}
}

func TestNewPrinterOpenerFromConfig(t *testing.T) {
	cfg := loadShipped(t)
	cases := []struct {
		typ  string
		want interface{}
	}{
		{"file", printer.FileOpener{}},
		{"mock", &printer.MockOpener{}},
	}
	for _, tc := range cases {
		cfg.Printer.Type = tc.typ
		o, done := newPrinterOpenerFromConfig(cfg)
		switch tc.want.(type) {
		case printer.FileOpener:
			if fo, ok := o.(printer.FileOpener); !ok || fo.Path != cfg.Printer.DevicePath {
				t.Errorf("%s: got %T", tc.typ, o)
			}
		case *printer.MockOpener:
			if _, ok := o.(*printer.MockOpener); !ok {
				t.Errorf("%s: got %T", tc.typ, o)
			}
		}
		done()
	}
}

func TestNewCameraFromConfig_Unknown(t *testing.T) {
	cfg := loadShipped(t)
	cfg.Camera.Type = "nikon_d90_gpio"
	if _, err := newCameraFromConfig(cfg); err == nil {
		t.Error("expected error for unsupported camera type")
	}
}

func TestHistoryOrNil(t *testing.T) {
	if historyOrNil(nil) != nil {
		t.Error("nil journal must give a nil History")
	}
}

// ---------- wiring ----------

// TestMockBooth runs one session through the same wiring as main with
// every device mocked.
func TestMockBooth(t *testing.T) {
	dir := t.TempDir()
	cfg := loadShipped(t)
	applyOverrides(cfg, overrides{Mock: true, DebugLevel: -1})
	cfg.Camera.Width, cfg.Camera.Height = 320, 240
	cfg.Camera.PhotoDir = filepath.Join(dir, "photos")
	cfg.Printer.ProofDir = filepath.Join(dir, "proofs")
	cfg.Template.Path = filepath.Join(dir, "missing.png")
	zero := 0
	cfg.Defaults.PreCaptureDelayMs = &zero

	src, err := newCameraFromConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	cam, err := camera.NewHandle(src, cfg.Camera.PhotoDir)
	if err != nil {
		t.Fatal(err)
	}
	defer cam.Close()

	opener, done := newPrinterOpenerFromConfig(cfg)
	defer done()
	prn := printer.NewConnection(opener, cfg.Printer.VendorID, cfg.Printer.ProductID)

	j, err := journal.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()

	params, err := composeParams(cfg)
	if err != nil {
		t.Fatal(err)
	}
	tpl := compose.LoadTemplate(cfg.Template.Path, toRect(*cfg.Template.PhotoSlot), toRectPtr(cfg.Template.QRSlot))
	ctrl := session.NewController(cam, prn, session.Config{
		Template:        tpl,
		Params:          params,
		PreCaptureDelay: cfg.PreCaptureDelay(),
	}, session.WithRecorder(j))

	o := ctrl.HandleTrigger(context.Background(), trigger.Event{Source: trigger.SourceCLI, At: time.Now()})
	if o.Status != session.Completed || !o.Printed {
		t.Fatalf("outcome = %+v", o)
	}
	if opener.(*printer.MockOpener).Jobs() != 1 {
		t.Error("mock printer received no job")
	}
	c, err := j.Counts(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if c.Completed != 1 || c.Printed != 1 {
		t.Errorf("journal counts = %+v", c)
	}
}
