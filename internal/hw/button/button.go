package button

import (
	"context"
	"time"

	"github.com/cjeanneret/BoothGo/internal/debug"
	"github.com/cjeanneret/BoothGo/internal/hw/gpio"
	"github.com/cjeanneret/BoothGo/internal/logic/trigger"
)

// Config holds the wiring of the trigger button.
type Config struct {
	Pin      int           // BCM pin, button wired to GND (active LOW)
	Debounce time.Duration // level must be stable this long to count
	Poll     time.Duration // sampling period
}

// Button polls a pulled-up GPIO input and turns debounced presses into
// trigger events.
type Button struct {
	gpio gpio.Driver
	cfg  Config
	now  func() time.Time
}

// New configures the pin as a pulled-up input.
// Zero Debounce/Poll default to 50ms/10ms.
func New(g gpio.Driver, cfg Config) (*Button, error) {
	if cfg.Debounce <= 0 {
		cfg.Debounce = 50 * time.Millisecond
	}
	if cfg.Poll <= 0 {
		cfg.Poll = 10 * time.Millisecond
	}
	if err := g.SetupInput(cfg.Pin, gpio.PullUp); err != nil {
		return nil, err
	}
	return &Button{gpio: g, cfg: cfg, now: time.Now}, nil
}

// Run samples the pin until ctx is cancelled. Each released->pressed
// transition that stays stable for Debounce produces exactly one event;
// the button must be released again before the next one.
func (b *Button) Run(ctx context.Context, mb *trigger.Mailbox) error {
	ticker := time.NewTicker(b.cfg.Poll)
	defer ticker.Stop()

	stable := gpio.High
	candidate := gpio.High
	var since time.Time

	debug.Info("Button: watching pin %d (debounce %v)", b.cfg.Pin, b.cfg.Debounce)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		lvl, err := b.gpio.ReadPin(b.cfg.Pin)
		if err != nil {
			debug.Error(err)
			continue
		}
		now := b.now()
		if lvl != candidate {
			candidate = lvl
			since = now
			continue
		}
		if candidate == stable || now.Sub(since) < b.cfg.Debounce {
			continue
		}

		stable = candidate
		if stable == gpio.Low {
			ev := trigger.Event{Source: trigger.SourceButton, At: now}
			if !mb.Offer(ev) {
				debug.Live("Button: press dropped, previous trigger not yet consumed")
			}
		}
	}
}
