package trigger

import (
	"testing"
	"time"
)

func TestMailbox_OfferAndReceive(t *testing.T) {
	m := NewMailbox()
	ev := Event{Source: SourceButton, At: time.Unix(100, 0)}
	if !m.Offer(ev) {
		t.Fatal("first offer should be accepted")
	}
	select {
	case got := <-m.Events():
		if got != ev {
			t.Errorf("got %+v, want %+v", got, ev)
		}
	default:
		t.Fatal("expected an event in the slot")
	}
}

func TestMailbox_DropsWhenFull(t *testing.T) {
	m := NewMailbox()
	if !m.Offer(Event{Source: SourceButton}) {
		t.Fatal("first offer should be accepted")
	}
	if m.Offer(Event{Source: SourceWeb}) {
		t.Error("second offer should be dropped while the slot is full")
	}

	got := <-m.Events()
	if got.Source != SourceButton {
		t.Errorf("slot should keep the first event, got source %q", got.Source)
	}

	if !m.Offer(Event{Source: SourceCLI}) {
		t.Error("offer after consumption should be accepted")
	}
}

func TestMailbox_OfferNeverBlocks(t *testing.T) {
	m := NewMailbox()
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			m.Offer(Event{Source: SourceButton})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Offer blocked")
	}
}
