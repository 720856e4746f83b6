package web

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/cjeanneret/BoothGo/internal/logic/session"
)

func receive(t *testing.T, ch <-chan string) StatusEvent {
	t.Helper()
	select {
	case msg := <-ch:
		var evt StatusEvent
		if err := json.Unmarshal([]byte(msg), &evt); err != nil {
			t.Fatalf("unmarshal %q: %v", msg, err)
		}
		return evt
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for broadcast")
	}
	return StatusEvent{}
}

func TestBroadcaster_SubscribeAndReceive(t *testing.T) {
	b := NewStatusBroadcaster()
	ch, unsub := b.Subscribe()
	defer unsub()

	b.Broadcast("warn", "printer absent")

	evt := receive(t, ch)
	if evt.Msg != "printer absent" || evt.Level != "warn" {
		t.Errorf("event = %+v", evt)
	}
	if evt.Time == "" {
		t.Error("event has no timestamp")
	}
}

func TestBroadcaster_MultipleSubscribers(t *testing.T) {
	b := NewStatusBroadcaster()
	ch1, unsub1 := b.Subscribe()
	defer unsub1()
	ch2, unsub2 := b.Subscribe()
	defer unsub2()

	b.Broadcast("info", "multi")

	for i, ch := range []<-chan string{ch1, ch2} {
		if evt := receive(t, ch); evt.Msg != "multi" {
			t.Errorf("subscriber %d: msg = %q", i, evt.Msg)
		}
	}
}

func TestBroadcaster_UnsubscribeClosesChannel(t *testing.T) {
	b := NewStatusBroadcaster()
	ch, unsub := b.Subscribe()
	unsub()
	unsub() // idempotent

	if _, ok := <-ch; ok {
		t.Error("expected channel to be closed after unsubscribe")
	}
	if b.Clients() != 0 {
		t.Errorf("Clients = %d, want 0", b.Clients())
	}
	b.Broadcast("info", "nobody listens")
}

func TestBroadcaster_FullChannelDropsMessage(t *testing.T) {
	b := NewStatusBroadcaster()
	ch, unsub := b.Subscribe()
	defer unsub()

	for i := 0; i < 70; i++ {
		b.Broadcast("info", fmt.Sprintf("msg %d", i))
	}
	if len(ch) != 64 {
		t.Errorf("buffered = %d, want 64", len(ch))
	}
	if evt := receive(t, ch); evt.Msg != "msg 0" {
		t.Errorf("first message = %q, want oldest kept", evt.Msg)
	}
}

func TestBroadcaster_Outcome(t *testing.T) {
	b := NewStatusBroadcaster()
	ch, unsub := b.Subscribe()
	defer unsub()

	b.BroadcastOutcome(session.Outcome{ID: "s1", Status: session.Completed, Reason: session.ReasonPrinterUnavailable})

	evt := receive(t, ch)
	if evt.Level != "session" || evt.Session == nil {
		t.Fatalf("event = %+v", evt)
	}
	if evt.Session.ID != "s1" || evt.Session.Reason != session.ReasonPrinterUnavailable {
		t.Errorf("session = %+v", evt.Session)
	}
}

func TestBroadcastWriter_SplitsLinesAndLevels(t *testing.T) {
	b := NewStatusBroadcaster()
	ch, unsub := b.Subscribe()
	defer unsub()

	w := BroadcastWriter(b)
	line := "[BoothGo] 12:00:00 [WARN] Template not found\n[BoothGo] 12:00:01 [LIVE] Trigger received from button\n\n"
	n, err := w.Write([]byte(line))
	if err != nil || n != len(line) {
		t.Fatalf("Write = %d, %v", n, err)
	}

	if evt := receive(t, ch); evt.Level != "warn" {
		t.Errorf("first level = %q, want warn", evt.Level)
	}
	if evt := receive(t, ch); evt.Level != "live" {
		t.Errorf("second level = %q, want live", evt.Level)
	}
	if len(ch) != 0 {
		t.Errorf("blank lines should not be broadcast, %d left", len(ch))
	}
}
