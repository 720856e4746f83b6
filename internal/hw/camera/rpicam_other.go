//go:build !unix

package camera

import (
	"errors"
	"time"
)

type RPiCamConfig struct {
	Binary       string
	Width        int
	Height       int
	WorkDir      string
	Startup      time.Duration
	FrameTimeout time.Duration
}

// StartRPiCam is only available on unix systems.
func StartRPiCam(cfg RPiCamConfig) (Source, error) {
	return nil, errors.New("rpicam backend requires a unix system")
}
