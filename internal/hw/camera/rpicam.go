//go:build unix

package camera

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/cjeanneret/BoothGo/internal/debug"
)

// RPiCamConfig configures a long-running rpicam-still process in signal mode.
type RPiCamConfig struct {
	Binary       string // default "rpicam-still"
	Width        int
	Height       int
	WorkDir      string        // where the still lands before being read back
	Startup      time.Duration // grace period before the first signal
	FrameTimeout time.Duration // 0 = 2s
}

// RPiCamSource keeps rpicam-still running with "-t 0 --signal" and asks it
// for a still with SIGUSR1. The camera pipeline stays warm between shots.
type RPiCamSource struct {
	mu      sync.Mutex
	cmd     *exec.Cmd
	out     string
	timeout time.Duration
	exited  chan struct{}
	exitErr error
}

// StartRPiCam launches the capture process once.
func StartRPiCam(cfg RPiCamConfig) (*RPiCamSource, error) {
	bin := cfg.Binary
	if bin == "" {
		bin = "rpicam-still"
	}
	if cfg.FrameTimeout <= 0 {
		cfg.FrameTimeout = 2 * time.Second
	}
	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		return nil, fmt.Errorf("create camera work dir: %w", err)
	}
	out := filepath.Join(cfg.WorkDir, "boothgo-still.jpg")

	cmd := exec.Command(bin,
		"-t", "0", "--signal", "-n",
		"--width", strconv.Itoa(cfg.Width),
		"--height", strconv.Itoa(cfg.Height),
		"--encoding", "jpg",
		"-o", out)
	debug.Info("Starting camera process: %v", cmd.Args)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", bin, err)
	}

	s := &RPiCamSource{cmd: cmd, out: out, timeout: cfg.FrameTimeout, exited: make(chan struct{})}
	go func() {
		err := cmd.Wait()
		s.mu.Lock()
		s.exitErr = err
		s.mu.Unlock()
		close(s.exited)
		debug.Warn("Camera process exited: %v", err)
	}()

	if cfg.Startup > 0 {
		select {
		case <-time.After(cfg.Startup):
		case <-s.exited:
			return nil, fmt.Errorf("%s exited during startup: %v", bin, s.exitErr)
		}
	}
	return s, nil
}

func (s *RPiCamSource) Frame() ([]byte, error) {
	select {
	case <-s.exited:
		return nil, fmt.Errorf("camera process not running: %v", s.exitErr)
	default:
	}

	if err := os.Remove(s.out); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale still: %w", err)
	}
	if err := s.cmd.Process.Signal(syscall.SIGUSR1); err != nil {
		return nil, fmt.Errorf("signal camera process: %w", err)
	}

	start := time.Now()
	deadline := start.Add(s.timeout)
	var lastSize int64 = -1
	for time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
		st, err := os.Stat(s.out)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("stat still: %w", err)
		}
		// Done once the size stops growing.
		if st.Size() > 0 && st.Size() == lastSize {
			debug.Trace("Camera: still ready after %v", time.Since(start))
			return os.ReadFile(s.out)
		}
		lastSize = st.Size()
	}
	return nil, fmt.Errorf("no still within %v", s.timeout)
}

func (s *RPiCamSource) Close() error {
	select {
	case <-s.exited:
		return nil
	default:
	}
	if err := s.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		return err
	}
	select {
	case <-s.exited:
	case <-time.After(2 * time.Second):
		s.cmd.Process.Kill()
		<-s.exited
	}
	return nil
}
