//go:build !linux

package camera

import (
	"errors"
	"time"
)

type V4L2Config struct {
	DevicePath   string
	Width        int
	Height       int
	WarmupFrames int
	FrameTimeout time.Duration
}

// OpenV4L2 is only available on Linux.
func OpenV4L2(cfg V4L2Config) (Source, error) {
	return nil, errors.New("v4l2 backend requires Linux")
}
