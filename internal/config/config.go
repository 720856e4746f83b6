package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MaxConfigFileBytes caps the size of a configuration file.
const MaxConfigFileBytes = 64 << 10

// CameraConfig selects and tunes the capture device.
// Type is "v4l2", "rpicam" or "mock".
type CameraConfig struct {
	Type           string `yaml:"type"`
	Device         string `yaml:"device"`           // V4L2 node, e.g. /dev/video0
	Width          int    `yaml:"width"`            // still width in pixels
	Height         int    `yaml:"height"`           // still height in pixels
	WarmupFrames   *int   `yaml:"warmup_frames"`    // frames dropped after open (v4l2)
	FrameTimeoutMs int    `yaml:"frame_timeout_ms"` // 0 = no timeout (v4l2); rpicam defaults to 2s
	PhotoDir       string `yaml:"photo_dir"`        // where photos are kept
	RPiCamBinary   string `yaml:"rpicam_binary"`    // default "rpicam-still"
	StartupMs      int    `yaml:"startup_ms"`       // rpicam grace period after launch
}

// PrinterConfig describes the thermal printer. Type is "usb", "file" or "mock".
type PrinterConfig struct {
	Type       string `yaml:"type"`
	VendorID   uint16 `yaml:"vendor_id"`
	ProductID  uint16 `yaml:"product_id"`
	DevicePath string `yaml:"device_path"` // "file" backend, e.g. /dev/usb/lp0
	BandHeight int    `yaml:"band_height"` // rows per GS v 0 block
	FeedLines  *int   `yaml:"feed_lines"`  // paper fed before the cut
	ProofDir   string `yaml:"proof_dir"`   // "mock" backend: PNG proofs land here
}

// ButtonConfig is the physical trigger (BCM numbering, wired to GND).
type ButtonConfig struct {
	Pin        int `yaml:"pin"`
	DebounceMs int `yaml:"debounce_ms"`
	PollMs     int `yaml:"poll_ms"`
}

// SlotConfig is a rectangle in print coordinates.
type SlotConfig struct {
	X      int `yaml:"x"`
	Y      int `yaml:"y"`
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// TemplateConfig points to the background artwork.
type TemplateConfig struct {
	Path      string      `yaml:"path"`
	PhotoSlot *SlotConfig `yaml:"photo_slot"`
	QRSlot    *SlotConfig `yaml:"qr_slot,omitempty"` // optional
}

// ComposeConfig tunes the monochrome conversion.
type ComposeConfig struct {
	OutputWidth int     `yaml:"output_width"` // print head width in dots
	Brightness  float64 `yaml:"brightness"`
	Contrast    float64 `yaml:"contrast"`
	Quantize    string  `yaml:"quantize"`  // "threshold" or "floyd_steinberg"
	Threshold   *int    `yaml:"threshold"` // 0-255; luminance above prints white
}

// UploadConfig is the optional photo gallery.
type UploadConfig struct {
	Enabled   bool   `yaml:"enabled"`
	URL       string `yaml:"url"`
	Token     string `yaml:"token"`
	EventID   string `yaml:"event_id"`
	TimeoutMs int    `yaml:"timeout_ms"`
	QRSizePx  int    `yaml:"qr_size_px"`
}

// JournalConfig enables the SQLite session journal when Path is set.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// WebConfig is the optional status/trigger HTTP API.
type WebConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	PreCaptureDelayMs *int `yaml:"pre_capture_delay_ms"` // pause between trigger and capture
	DebugLevel        int  `yaml:"debug_level"`          // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockGPIO          bool `yaml:"mock_gpio"`            // use mock GPIO (true=dev/test, false=real Raspberry Pi)
}

// Config aggregates all application configuration.
type Config struct {
	Camera   CameraConfig   `yaml:"camera"`
	Printer  PrinterConfig  `yaml:"printer"`
	Button   ButtonConfig   `yaml:"button"`
	Template TemplateConfig `yaml:"template"`
	Compose  ComposeConfig  `yaml:"compose"`
	Upload   UploadConfig   `yaml:"upload"`
	Journal  JournalConfig  `yaml:"journal"`
	Web      WebConfig      `yaml:"web"`
	Defaults DefaultsConfig `yaml:"defaults"`
}

// ValidateConfigPath accepts only a .yaml file sitting directly in a
// directory named "configs", with no ".." component.
func ValidateConfigPath(path string) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return fmt.Errorf("config path %q must not contain ..", path)
		}
	}
	clean := filepath.Clean(path)
	if filepath.Ext(clean) != ".yaml" {
		return fmt.Errorf("config path %q must end in .yaml", path)
	}
	if filepath.Base(filepath.Dir(clean)) != "configs" {
		return fmt.Errorf("config path %q must be inside a configs/ directory", path)
	}
	return nil
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxConfigFileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if len(data) > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file exceeds %d bytes", MaxConfigFileBytes)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func intPtr(v int) *int { return &v }

func (cfg *Config) applyDefaults() error {
	// Camera
	switch cfg.Camera.Type {
	case "v4l2", "rpicam", "mock":
	case "":
		return fmt.Errorf("camera.type is required")
	default:
		return fmt.Errorf("camera.type must be v4l2, rpicam or mock, got %q", cfg.Camera.Type)
	}
	if cfg.Camera.Device == "" {
		cfg.Camera.Device = "/dev/video0"
	}
	if cfg.Camera.Width <= 0 {
		cfg.Camera.Width = 1640 // half sensor, full field of view
	}
	if cfg.Camera.Height <= 0 {
		cfg.Camera.Height = 1232
	}
	if cfg.Camera.WarmupFrames == nil {
		cfg.Camera.WarmupFrames = intPtr(2)
	}
	if *cfg.Camera.WarmupFrames < 0 {
		return fmt.Errorf("camera.warmup_frames must be >= 0, got %d", *cfg.Camera.WarmupFrames)
	}
	if cfg.Camera.FrameTimeoutMs < 0 {
		return fmt.Errorf("camera.frame_timeout_ms must be >= 0, got %d", cfg.Camera.FrameTimeoutMs)
	}
	if cfg.Camera.PhotoDir == "" {
		cfg.Camera.PhotoDir = "photos"
	}
	if cfg.Camera.RPiCamBinary == "" {
		cfg.Camera.RPiCamBinary = "rpicam-still"
	}
	if cfg.Camera.StartupMs <= 0 {
		cfg.Camera.StartupMs = 2000
	}

	// Printer
	switch cfg.Printer.Type {
	case "":
		cfg.Printer.Type = "usb"
	case "usb", "file", "mock":
	default:
		return fmt.Errorf("printer.type must be usb, file or mock, got %q", cfg.Printer.Type)
	}
	if cfg.Printer.VendorID == 0 {
		cfg.Printer.VendorID = 0x1FC9
	}
	if cfg.Printer.ProductID == 0 {
		cfg.Printer.ProductID = 0x2016
	}
	if cfg.Printer.DevicePath == "" {
		cfg.Printer.DevicePath = "/dev/usb/lp0"
	}
	if cfg.Printer.BandHeight <= 0 {
		cfg.Printer.BandHeight = 255
	}
	if cfg.Printer.BandHeight > 0xFFFF {
		return fmt.Errorf("printer.band_height must be <= 65535, got %d", cfg.Printer.BandHeight)
	}
	if cfg.Printer.FeedLines == nil {
		cfg.Printer.FeedLines = intPtr(6)
	}
	if n := *cfg.Printer.FeedLines; n < 0 || n > 255 {
		return fmt.Errorf("printer.feed_lines must be between 0 and 255, got %d", n)
	}

	// Button
	if cfg.Button.Pin <= 0 {
		cfg.Button.Pin = 24
	}
	if cfg.Button.DebounceMs <= 0 {
		cfg.Button.DebounceMs = 50
	}
	if cfg.Button.PollMs <= 0 {
		cfg.Button.PollMs = 10
	}

	// Template
	if cfg.Template.Path == "" {
		cfg.Template.Path = "templates/template.png"
	}
	if cfg.Template.PhotoSlot == nil {
		cfg.Template.PhotoSlot = &SlotConfig{X: 10, Y: 145, Width: 550, Height: 480}
	}
	if err := cfg.Template.PhotoSlot.validate("template.photo_slot"); err != nil {
		return err
	}
	if cfg.Template.QRSlot != nil {
		if err := cfg.Template.QRSlot.validate("template.qr_slot"); err != nil {
			return err
		}
	}

	// Compose
	if cfg.Compose.OutputWidth <= 0 {
		cfg.Compose.OutputWidth = 576
	}
	if cfg.Compose.OutputWidth%8 != 0 {
		return fmt.Errorf("compose.output_width must be a multiple of 8, got %d", cfg.Compose.OutputWidth)
	}
	if cfg.Compose.Brightness < 0 || cfg.Compose.Contrast < 0 {
		return fmt.Errorf("compose.brightness and compose.contrast must be >= 0")
	}
	if cfg.Compose.Brightness == 0 {
		cfg.Compose.Brightness = 1.5
	}
	if cfg.Compose.Contrast == 0 {
		cfg.Compose.Contrast = 1.6
	}
	switch cfg.Compose.Quantize {
	case "":
		cfg.Compose.Quantize = "threshold"
	case "threshold", "floyd_steinberg":
	default:
		return fmt.Errorf("compose.quantize must be threshold or floyd_steinberg, got %q", cfg.Compose.Quantize)
	}
	if cfg.Compose.Threshold == nil {
		cfg.Compose.Threshold = intPtr(128)
	}
	if t := *cfg.Compose.Threshold; t < 0 || t > 255 {
		return fmt.Errorf("compose.threshold must be between 0 and 255, got %d", t)
	}

	// Upload
	if cfg.Upload.Enabled && cfg.Upload.URL == "" {
		return fmt.Errorf("upload.url is required when upload is enabled")
	}
	if cfg.Upload.TimeoutMs <= 0 {
		cfg.Upload.TimeoutMs = 10000
	}
	if cfg.Upload.QRSizePx <= 0 {
		cfg.Upload.QRSizePx = 256
	}

	// Web
	if cfg.Web.Port == 0 {
		cfg.Web.Port = 8080
	}
	if cfg.Web.Port < 0 || cfg.Web.Port > 65535 {
		return fmt.Errorf("web.port must be between 1 and 65535, got %d", cfg.Web.Port)
	}

	// Defaults
	if cfg.Defaults.PreCaptureDelayMs == nil {
		cfg.Defaults.PreCaptureDelayMs = intPtr(2000)
	}
	if *cfg.Defaults.PreCaptureDelayMs < 0 {
		return fmt.Errorf("defaults.pre_capture_delay_ms must be >= 0, got %d", *cfg.Defaults.PreCaptureDelayMs)
	}
	if cfg.Defaults.DebugLevel < 0 || cfg.Defaults.DebugLevel > 4 {
		return fmt.Errorf("defaults.debug_level must be between 0 and 4, got %d", cfg.Defaults.DebugLevel)
	}
	return nil
}

func (s *SlotConfig) validate(name string) error {
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("%s must have a positive size, got %dx%d", name, s.Width, s.Height)
	}
	if s.X < 0 || s.Y < 0 {
		return fmt.Errorf("%s origin must be >= 0, got (%d,%d)", name, s.X, s.Y)
	}
	return nil
}

// PreCaptureDelay returns the pause between trigger and capture.
func (c *Config) PreCaptureDelay() time.Duration {
	return time.Duration(*c.Defaults.PreCaptureDelayMs) * time.Millisecond
}

// FrameTimeout returns the wait limit for a camera frame (0 = none).
func (c *Config) FrameTimeout() time.Duration {
	return time.Duration(c.Camera.FrameTimeoutMs) * time.Millisecond
}

// CameraStartup returns the grace period given to the rpicam process.
func (c *Config) CameraStartup() time.Duration {
	return time.Duration(c.Camera.StartupMs) * time.Millisecond
}

// ButtonDebounce returns how long the button must stay pressed to count.
func (c *Config) ButtonDebounce() time.Duration {
	return time.Duration(c.Button.DebounceMs) * time.Millisecond
}

// ButtonPoll returns the GPIO polling period.
func (c *Config) ButtonPoll() time.Duration {
	return time.Duration(c.Button.PollMs) * time.Millisecond
}

// UploadTimeout returns the upper bound on the upload step.
func (c *Config) UploadTimeout() time.Duration {
	return time.Duration(c.Upload.TimeoutMs) * time.Millisecond
}

// WarmupFrames returns the number of frames dropped after opening the camera.
func (c *Config) WarmupFrames() int {
	return *c.Camera.WarmupFrames
}

// FeedLines returns the paper feed before each cut.
func (c *Config) FeedLines() int {
	return *c.Printer.FeedLines
}

// Threshold returns the luminance threshold of the threshold policy.
func (c *Config) Threshold() uint8 {
	return uint8(*c.Compose.Threshold)
}
