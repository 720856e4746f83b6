//go:build linux

package camera

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vladimirvivien/go4vl/device"
	"github.com/vladimirvivien/go4vl/v4l2"

	"github.com/cjeanneret/BoothGo/internal/debug"
)

// V4L2Config selects the device and still resolution.
type V4L2Config struct {
	DevicePath   string
	Width        int
	Height       int
	WarmupFrames int           // frames dropped after opening (auto exposure settling)
	FrameTimeout time.Duration // 0 = wait for the next frame indefinitely
}

// V4L2Source keeps a V4L2 MJPEG stream running and hands out the freshest
// frame on demand.
type V4L2Source struct {
	dev    *device.Device
	cancel context.CancelFunc
	cfg    V4L2Config
}

// OpenV4L2 opens and starts the device once. The stream keeps running until
// Close.
func OpenV4L2(cfg V4L2Config) (*V4L2Source, error) {
	debug.Info("Opening V4L2 camera %s (%dx%d MJPEG)", cfg.DevicePath, cfg.Width, cfg.Height)

	dev, err := device.Open(cfg.DevicePath,
		device.WithPixFormat(v4l2.PixFormat{
			PixelFormat: v4l2.PixelFmtMJPEG,
			Width:       uint32(cfg.Width),
			Height:      uint32(cfg.Height),
			Field:       v4l2.FieldNone,
		}),
		device.WithBufferSize(4),
	)
	if err != nil {
		return nil, fmt.Errorf("open camera device: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := dev.Start(ctx); err != nil {
		cancel()
		dev.Close()
		return nil, fmt.Errorf("start streaming: %w", err)
	}

	s := &V4L2Source{dev: dev, cancel: cancel, cfg: cfg}
	for i := 0; i < cfg.WarmupFrames; i++ {
		if _, err := s.next(); err != nil {
			s.Close()
			return nil, fmt.Errorf("warmup: %w", err)
		}
	}
	debug.Verbose("Camera: streaming, %d warmup frames dropped", cfg.WarmupFrames)
	return s, nil
}

// Frame discards frames queued before the call and returns the next one.
func (s *V4L2Source) Frame() ([]byte, error) {
	out := s.dev.GetOutput()
	for drained := false; !drained; {
		select {
		case _, ok := <-out:
			if !ok {
				return nil, errors.New("camera stream closed")
			}
		default:
			drained = true
		}
	}
	return s.next()
}

func (s *V4L2Source) next() ([]byte, error) {
	var timeout <-chan time.Time
	if s.cfg.FrameTimeout > 0 {
		timer := time.NewTimer(s.cfg.FrameTimeout)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case frame, ok := <-s.dev.GetOutput():
		if !ok {
			return nil, errors.New("camera stream closed")
		}
		if len(frame) == 0 {
			return nil, errors.New("empty frame")
		}
		// The driver may reuse the buffer once we return.
		return append([]byte(nil), frame...), nil
	case <-timeout:
		return nil, fmt.Errorf("no frame within %v", s.cfg.FrameTimeout)
	}
}

func (s *V4L2Source) Close() error {
	debug.Trace("Camera Close (v4l2)")
	s.cancel()
	return s.dev.Close()
}
