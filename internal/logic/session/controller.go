// Package session sequences one photobooth cycle:
// capture, optional upload/QR, composition, print.
//
// A single guard serializes sessions. A trigger arriving while a session is
// running is dropped with a Skipped outcome; it is never queued.
package session

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cjeanneret/BoothGo/internal/debug"
	"github.com/cjeanneret/BoothGo/internal/hw/camera"
	"github.com/cjeanneret/BoothGo/internal/hw/printer"
	"github.com/cjeanneret/BoothGo/internal/logic/compose"
	"github.com/cjeanneret/BoothGo/internal/logic/trigger"
	"github.com/cjeanneret/BoothGo/internal/raster"
	"github.com/cjeanneret/BoothGo/internal/upload"
)

// Capturer takes one photo from the already-open camera.
type Capturer interface {
	Capture() (*camera.Photo, error)
}

// Archiver uploads a photo and returns its QR code, or nil.
type Archiver interface {
	ArchiveAndGetQR(ctx context.Context, photo *camera.Photo) *upload.QRCode
}

// Printer is the hot-pluggable printer link.
type Printer interface {
	EnsureConnected() printer.State
	Send(bm *raster.Bitmap) error
}

// Recorder persists outcomes. Errors are the recorder's business.
type Recorder interface {
	Record(ctx context.Context, o Outcome)
}

// Config is the per-booth composition setup.
type Config struct {
	Template        *compose.Template
	Params          compose.Params
	PreCaptureDelay time.Duration // lets people pose after pressing the button
}

// guard is the session mutual exclusion: Idle or Busy.
type guard struct {
	mu   sync.Mutex
	busy bool
}

func (g *guard) tryAcquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.busy {
		return false
	}
	g.busy = true
	return true
}

func (g *guard) release() {
	g.mu.Lock()
	g.busy = false
	g.mu.Unlock()
}

func (g *guard) isBusy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.busy
}

// Controller owns the camera and printer for the process lifetime.
type Controller struct {
	camera   Capturer
	printer  Printer
	archiver Archiver
	recorder Recorder
	onDone   []func(Outcome)
	cfg      Config

	guard guard
	newID func() string

	mu   sync.Mutex
	last *Outcome
}

// Option customizes a Controller.
type Option func(*Controller)

// WithArchiver enables the upload/QR step.
func WithArchiver(a Archiver) Option {
	return func(c *Controller) { c.archiver = a }
}

// WithRecorder persists every outcome.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) { c.recorder = r }
}

// WithOutcomeHook registers fn to be called after every trigger. Hooks run
// on the session goroutine and must not block.
func WithOutcomeHook(fn func(Outcome)) Option {
	return func(c *Controller) { c.onDone = append(c.onDone, fn) }
}

// NewController wires a controller. cfg.Template must not be nil.
func NewController(cam Capturer, prn Printer, cfg Config, opts ...Option) *Controller {
	c := &Controller{
		camera:  cam,
		printer: prn,
		cfg:     cfg,
		newID:   func() string { return uuid.NewString() },
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Busy reports whether a session is in progress.
func (c *Controller) Busy() bool {
	return c.guard.isBusy()
}

// Last returns the most recent outcome, if any.
func (c *Controller) Last() (Outcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return Outcome{}, false
	}
	return *c.last, true
}

// HandleTrigger runs one full session, or returns Skipped at once if one
// is already running. It never panics on hardware failure and always
// releases the guard.
func (c *Controller) HandleTrigger(ctx context.Context, ev trigger.Event) Outcome {
	o := Outcome{ID: c.newID(), Source: ev.Source, Started: time.Now()}

	if !c.guard.tryAcquire() {
		o.Status = Skipped
		o.Reason = ReasonBusy
		return c.finish(ctx, o)
	}
	defer c.guard.release()

	return c.finish(ctx, c.run(ctx, o))
}

func (c *Controller) run(ctx context.Context, o Outcome) Outcome {
	debug.Section("Session " + o.ID)

	if d := c.cfg.PreCaptureDelay; d > 0 {
		debug.Verbose("Waiting %v before capture", d)
		timer := time.NewTimer(d)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
	}

	debug.Step(1, "capture")
	photo, err := c.camera.Capture()
	if err != nil {
		o.Status = Failed
		o.Reason = ReasonCapture
		o.Err = err
		debug.Error(err)
		return o
	}
	o.PhotoPath = photo.Path

	var qrImg image.Image
	if c.archiver != nil {
		debug.Step(2, "upload")
		if qr := c.archiver.ArchiveAndGetQR(ctx, photo); qr != nil {
			o.QRURL = qr.URL
			qrImg = qr.Image
		}
	}

	debug.Step(3, "compose")
	bm := compose.Compose(c.cfg.Template, photo.Image, qrImg, c.cfg.Params)
	debug.Verbose("Composed %dx%d raster", bm.Width, bm.Height)

	debug.Step(4, "print")
	o.Status = Completed
	if c.printer.EnsureConnected() != printer.Present {
		o.Reason = ReasonPrinterUnavailable
		o.Err = printer.ErrPrinterAbsent
		return o
	}
	if err := c.printer.Send(bm); err != nil {
		o.Reason = ReasonPrintError
		if errors.Is(err, printer.ErrPrinterAbsent) {
			o.Reason = ReasonPrinterUnavailable
		}
		o.Err = err
		debug.Error(err)
		return o
	}
	o.Printed = true
	return o
}

func (c *Controller) finish(ctx context.Context, o Outcome) Outcome {
	o.Finished = time.Now()
	debug.Outcome(o.ID, o.Status.String(), o.Reason)

	c.mu.Lock()
	c.last = &o
	c.mu.Unlock()

	if c.recorder != nil {
		c.recorder.Record(ctx, o)
	}
	for _, fn := range c.onDone {
		fn(o)
	}
	return o
}

// Run serves triggers from events until ctx is cancelled or events is
// closed. Each trigger is handled on its own goroutine so that a trigger
// arriving mid-session is observed and skipped rather than left waiting.
// In-flight sessions are allowed to finish before Run returns.
func (c *Controller) Run(ctx context.Context, events <-chan trigger.Event) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	sessionCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			debug.Trigger(ev.Source)
			wg.Add(1)
			go func() {
				defer wg.Done()
				c.HandleTrigger(sessionCtx, ev)
			}()
		}
	}
}
