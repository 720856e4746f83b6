package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/cjeanneret/BoothGo/internal/config"
	"github.com/cjeanneret/BoothGo/internal/debug"
	"github.com/cjeanneret/BoothGo/internal/hw/button"
	"github.com/cjeanneret/BoothGo/internal/hw/camera"
	"github.com/cjeanneret/BoothGo/internal/hw/gpio"
	"github.com/cjeanneret/BoothGo/internal/hw/printer"
	"github.com/cjeanneret/BoothGo/internal/journal"
	"github.com/cjeanneret/BoothGo/internal/logic/compose"
	"github.com/cjeanneret/BoothGo/internal/logic/session"
	"github.com/cjeanneret/BoothGo/internal/logic/trigger"
	"github.com/cjeanneret/BoothGo/internal/upload"
	"github.com/cjeanneret/BoothGo/internal/web"
)

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start web server on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	once := flag.Bool("once", false, "run a single session and exit (bench test)")
	mock := flag.Bool("mock", false, "use mock GPIO, camera and printer (development on PC)")
	debugLevel := flag.Int("debug_level", -1, "override debug level (0-4)")
	flag.Parse()

	// Registered first so it runs after every other deferred cleanup.
	exitCode := 0
	defer func() {
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Load configuration
	if err := config.ValidateConfigPath(*cfgPath); err != nil {
		log.Fatalf("invalid config path: %v", err)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	if err := validateCLIOverrides(*debugLevel); err != nil {
		log.Fatalf("invalid CLI override: %v", err)
	}
	applyOverrides(cfg, overrides{Mock: *mock, DebugLevel: *debugLevel, WebPort: webPort.port()})

	// Initialize debug system
	debug.Init(cfg.Defaults.DebugLevel)

	var broadcaster *web.StatusBroadcaster
	if cfg.Web.Enabled && !*once {
		broadcaster = web.NewStatusBroadcaster()
		debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))
	}

	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)

	// Camera: opened once, kept for the process lifetime
	debug.Step(1, "Opening camera")
	debug.Value("Camera type", cfg.Camera.Type)
	src, err := newCameraFromConfig(cfg)
	if err != nil {
		log.Fatalf("init camera failed: %v", err)
	}
	cam, err := camera.NewHandle(src, cfg.Camera.PhotoDir)
	if err != nil {
		src.Close()
		log.Fatalf("init camera failed: %v", err)
	}
	defer func() {
		if err := cam.Close(); err != nil {
			log.Printf("closing camera failed: %v", err)
		}
	}()

	// Printer: absence is not fatal
	debug.Step(2, "Connecting printer")
	debug.Value("Printer type", cfg.Printer.Type)
	opener, closeOpener := newPrinterOpenerFromConfig(cfg)
	defer closeOpener()
	prn := printer.NewConnection(opener, cfg.Printer.VendorID, cfg.Printer.ProductID)
	defer prn.Close()
	debug.Value("Printer", prn.State())

	// Template and composition
	debug.Step(3, "Loading template")
	tpl := compose.LoadTemplate(cfg.Template.Path, toRect(*cfg.Template.PhotoSlot), toRectPtr(cfg.Template.QRSlot))
	params, err := composeParams(cfg)
	if err != nil {
		log.Fatalf("invalid compose settings: %v", err)
	}
	debug.PrintStruct("Compose params", params)

	// Session controller
	debug.Step(4, "Creating session controller")
	var opts []session.Option
	if cfg.Upload.Enabled {
		debug.Value("Upload URL", cfg.Upload.URL)
		opts = append(opts, session.WithArchiver(upload.New(upload.Config{
			URL:     cfg.Upload.URL,
			Token:   cfg.Upload.Token,
			EventID: cfg.Upload.EventID,
			Timeout: cfg.UploadTimeout(),
			QRSize:  cfg.Upload.QRSizePx,
		})))
	}
	var history *journal.Journal
	if cfg.Journal.Path != "" {
		history, err = journal.Open(cfg.Journal.Path)
		if err != nil {
			log.Fatalf("open journal failed: %v", err)
		}
		defer history.Close()
		opts = append(opts, session.WithRecorder(history))
	}
	if broadcaster != nil {
		opts = append(opts, session.WithOutcomeHook(broadcaster.BroadcastOutcome))
	}
	ctrl := session.NewController(cam, prn, session.Config{
		Template:        tpl,
		Params:          params,
		PreCaptureDelay: cfg.PreCaptureDelay(),
	}, opts...)

	if *once {
		o := ctrl.HandleTrigger(ctx, trigger.Event{Source: trigger.SourceCLI, At: time.Now()})
		fmt.Printf("session %s: %s printed=%t %s\n", o.ID, o.Status, o.Printed, o.Reason)
		if o.Status != session.Completed {
			exitCode = 1
		}
		return
	}

	// Button
	debug.Step(5, "Initializing GPIO button")
	debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)
	gpioDriver, err := gpio.NewDriver(cfg.Defaults.MockGPIO)
	if err != nil {
		log.Fatalf("init GPIO failed: %v", err)
	}
	defer func() {
		if err := gpioDriver.Close(); err != nil {
			log.Printf("closing GPIO driver failed: %v", err)
		}
	}()
	btn, err := button.New(gpioDriver, button.Config{
		Pin:      cfg.Button.Pin,
		Debounce: cfg.ButtonDebounce(),
		Poll:     cfg.ButtonPoll(),
	})
	if err != nil {
		log.Fatalf("init button failed: %v", err)
	}
	mailbox := trigger.NewMailbox()
	go func() {
		if err := btn.Run(ctx, mailbox); err != nil && ctx.Err() == nil {
			log.Printf("button stopped: %v", err)
		}
	}()

	if broadcaster != nil {
		srv := web.NewServer(fmt.Sprintf(":%d", cfg.Web.Port), broadcaster, ctrl, prn, historyOrNil(history))
		go func() {
			if err := srv.Run(ctx); err != nil {
				log.Printf("web server: %v", err)
				cancel()
			}
		}()
	}

	debug.Summary("BoothGo ready")
	if err := ctrl.Run(ctx, mailbox.Events()); err != nil && ctx.Err() == nil {
		log.Printf("session loop: %v", err)
	}
	debug.Info("Shutting down")
}

// historyOrNil keeps a nil *journal.Journal from becoming a non-nil interface.
func historyOrNil(j *journal.Journal) web.History {
	if j == nil {
		return nil
	}
	return j
}

// overrides are CLI values applied on top of the config file.
type overrides struct {
	Mock       bool
	DebugLevel int // -1 = keep config value
	WebPort    int // 0 = keep config value
}

// validateCLIOverrides checks CLI overrides. -1 means "use config default".
func validateCLIOverrides(debugLevel int) error {
	if debugLevel != -1 && (debugLevel < 0 || debugLevel > 4) {
		return fmt.Errorf("debug_level must be between 0 and 4, got %d", debugLevel)
	}
	return nil
}

// applyOverrides mutates cfg with overrides.
func applyOverrides(cfg *config.Config, o overrides) {
	if o.Mock {
		cfg.Defaults.MockGPIO = true
		cfg.Camera.Type = "mock"
		cfg.Printer.Type = "mock"
	}
	if o.DebugLevel >= 0 {
		cfg.Defaults.DebugLevel = o.DebugLevel
	}
	if o.WebPort > 0 {
		cfg.Web.Enabled = true
		cfg.Web.Port = o.WebPort
	}
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= or -web 8080 → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }

// newCameraFromConfig selects a camera implementation based on configuration.
func newCameraFromConfig(cfg *config.Config) (camera.Source, error) {
	switch cfg.Camera.Type {
	case "v4l2":
		src, err := camera.OpenV4L2(camera.V4L2Config{
			DevicePath:   cfg.Camera.Device,
			Width:        cfg.Camera.Width,
			Height:       cfg.Camera.Height,
			WarmupFrames: cfg.WarmupFrames(),
			FrameTimeout: cfg.FrameTimeout(),
		})
		if err != nil {
			return nil, err
		}
		return src, nil
	case "rpicam":
		src, err := camera.StartRPiCam(camera.RPiCamConfig{
			Binary:       cfg.Camera.RPiCamBinary,
			Width:        cfg.Camera.Width,
			Height:       cfg.Camera.Height,
			WorkDir:      os.TempDir(),
			Startup:      cfg.CameraStartup(),
			FrameTimeout: cfg.FrameTimeout(),
		})
		if err != nil {
			return nil, err
		}
		return src, nil
	case "mock":
		return camera.NewMockSource(cfg.Camera.Width, cfg.Camera.Height), nil
	default:
		return nil, fmt.Errorf("unsupported camera type: %s", cfg.Camera.Type)
	}
}

// newPrinterOpenerFromConfig selects the printer transport. The returned
// func releases transport resources.
func newPrinterOpenerFromConfig(cfg *config.Config) (printer.Opener, func()) {
	opts := printer.StreamOptions{BandHeight: cfg.Printer.BandHeight, FeedLines: cfg.FeedLines()}
	switch cfg.Printer.Type {
	case "file":
		return printer.FileOpener{Path: cfg.Printer.DevicePath, Opts: opts}, func() {}
	case "mock":
		return printer.NewMockOpener(cfg.Printer.ProofDir), func() {}
	default:
		o := printer.NewUSBOpener(opts)
		return o, func() {
			if err := o.Close(); err != nil {
				log.Printf("closing USB context failed: %v", err)
			}
		}
	}
}

func toRect(s config.SlotConfig) compose.Rect {
	return compose.Rect{X: s.X, Y: s.Y, Width: s.Width, Height: s.Height}
}

func toRectPtr(s *config.SlotConfig) *compose.Rect {
	if s == nil {
		return nil
	}
	r := toRect(*s)
	return &r
}

func composeParams(cfg *config.Config) (compose.Params, error) {
	q, err := compose.ParseQuantize(cfg.Compose.Quantize)
	if err != nil {
		return compose.Params{}, err
	}
	return compose.Params{
		OutputWidth: cfg.Compose.OutputWidth,
		Brightness:  cfg.Compose.Brightness,
		Contrast:    cfg.Compose.Contrast,
		Quantize:    q,
		Threshold:   cfg.Threshold(),
	}, nil
}
