// Package trigger carries discrete "trigger occurred" events from input
// sources (button, web, CLI) to the session controller.
package trigger

import "time"

// Trigger sources.
const (
	SourceButton = "button"
	SourceWeb    = "web"
	SourceCLI    = "cli"
)

// Event is one debounced trigger.
type Event struct {
	Source string
	At     time.Time
}

// Mailbox is a single-slot handoff between a trigger source and the
// controller. Offer never blocks: while an event is still waiting in the
// slot, further offers are dropped.
type Mailbox struct {
	ch chan Event
}

// NewMailbox creates an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{ch: make(chan Event, 1)}
}

// Offer places ev in the slot. It returns false if the slot was full and
// ev was dropped.
func (m *Mailbox) Offer(ev Event) bool {
	select {
	case m.ch <- ev:
		return true
	default:
		return false
	}
}

// Events is the receive side consumed by the controller.
func (m *Mailbox) Events() <-chan Event {
	return m.ch
}
