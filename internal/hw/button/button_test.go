package button

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cjeanneret/BoothGo/internal/hw/gpio"
	"github.com/cjeanneret/BoothGo/internal/logic/trigger"
)

// recordingDriver records setup calls and serves a settable level.
type recordingDriver struct {
	mu     sync.Mutex
	level  gpio.Level
	setups []gpio.Pull
}

func (d *recordingDriver) SetupInput(pin int, pull gpio.Pull) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.setups = append(d.setups, pull)
	return nil
}

func (d *recordingDriver) ReadPin(pin int) (gpio.Level, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.level, nil
}

func (d *recordingDriver) Close() error { return nil }

func (d *recordingDriver) set(l gpio.Level) {
	d.mu.Lock()
	d.level = l
	d.mu.Unlock()
}

func runButton(t *testing.T, drv *recordingDriver, debounce time.Duration) (*trigger.Mailbox, context.CancelFunc, chan error) {
	t.Helper()
	b, err := New(drv, Config{Pin: 24, Debounce: debounce, Poll: time.Millisecond})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mb := trigger.NewMailbox()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- b.Run(ctx, mb) }()
	return mb, cancel, errCh
}

func TestNew_ConfiguresPullUp(t *testing.T) {
	drv := &recordingDriver{level: gpio.High}
	if _, err := New(drv, Config{Pin: 24}); err != nil {
		t.Fatalf("New: %v", err)
	}
	if len(drv.setups) != 1 || drv.setups[0] != gpio.PullUp {
		t.Errorf("expected one PullUp setup, got %v", drv.setups)
	}
}

func TestRun_PressEmitsOneEvent(t *testing.T) {
	drv := &recordingDriver{level: gpio.High}
	mb, cancel, errCh := runButton(t, drv, 5*time.Millisecond)
	defer cancel()

	time.Sleep(10 * time.Millisecond)
	drv.set(gpio.Low)

	select {
	case ev := <-mb.Events():
		if ev.Source != trigger.SourceButton {
			t.Errorf("source = %q, want %q", ev.Source, trigger.SourceButton)
		}
	case <-time.After(time.Second):
		t.Fatal("no event after press")
	}

	// Holding the button must not repeat.
	select {
	case <-mb.Events():
		t.Error("held button produced a second event")
	case <-time.After(30 * time.Millisecond):
	}

	cancel()
	if err := <-errCh; err != context.Canceled {
		t.Errorf("Run returned %v, want context.Canceled", err)
	}
}

func TestRun_GlitchIgnored(t *testing.T) {
	drv := &recordingDriver{level: gpio.High}
	mb, cancel, _ := runButton(t, drv, 200*time.Millisecond)
	defer cancel()

	// A single-sample glitch shorter than the debounce window.
	drv.set(gpio.Low)
	time.Sleep(time.Millisecond)
	drv.set(gpio.High)

	select {
	case <-mb.Events():
		t.Error("glitch shorter than debounce produced an event")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestRun_ReleaseThenPressAgain(t *testing.T) {
	drv := &recordingDriver{level: gpio.High}
	mb, cancel, _ := runButton(t, drv, 5*time.Millisecond)
	defer cancel()

	for i := 0; i < 2; i++ {
		drv.set(gpio.Low)
		select {
		case <-mb.Events():
		case <-time.After(time.Second):
			t.Fatalf("press %d: no event", i+1)
		}
		drv.set(gpio.High)
		time.Sleep(20 * time.Millisecond)
	}
}
