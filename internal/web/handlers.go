package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/cjeanneret/BoothGo/internal/debug"
	"github.com/cjeanneret/BoothGo/internal/hw/printer"
	"github.com/cjeanneret/BoothGo/internal/journal"
	"github.com/cjeanneret/BoothGo/internal/logic/session"
	"github.com/cjeanneret/BoothGo/internal/logic/trigger"
)

// Booth is the session controller as seen from HTTP.
type Booth interface {
	HandleTrigger(ctx context.Context, ev trigger.Event) session.Outcome
	Busy() bool
	Last() (session.Outcome, bool)
}

// PrinterStatus reports the printer link state.
type PrinterStatus interface {
	State() printer.State
}

// History is the session journal.
type History interface {
	Recent(ctx context.Context, limit int) ([]session.Outcome, error)
	Counts(ctx context.Context) (journal.Counts, error)
}

const (
	defaultSessionsLimit = 20
	maxSessionsLimit     = 500
)

// Handlers holds dependencies for HTTP handlers. Printer and History may be nil.
type Handlers struct {
	Broadcaster *StatusBroadcaster
	Booth       Booth
	Printer     PrinterStatus
	History     History
}

// Status is the GET /status body.
type Status struct {
	Busy    bool             `json:"busy"`
	Printer string           `json:"printer,omitempty"`
	Last    *session.Outcome `json:"last,omitempty"`
	Counts  *journal.Counts  `json:"counts,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		debug.Verbose("web: encode response: %v", err)
	}
}

// HandleTrigger runs one session synchronously, through the same guard as
// the button, and returns its outcome.
func (h *Handlers) HandleTrigger(w http.ResponseWriter, r *http.Request) {
	debug.Trigger(trigger.SourceWeb)
	// A disconnecting client must not cut a session short.
	ctx := context.WithoutCancel(r.Context())
	o := h.Booth.HandleTrigger(ctx, trigger.Event{Source: trigger.SourceWeb, At: time.Now()})

	code := http.StatusOK
	switch o.Status {
	case session.Skipped:
		code = http.StatusConflict
	case session.Failed:
		code = http.StatusBadGateway
	}
	writeJSON(w, code, o)
}

// HandleStatus reports the guard, the printer and the last outcome.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	st := Status{Busy: h.Booth.Busy()}
	if h.Printer != nil {
		st.Printer = h.Printer.State().String()
	}
	if last, ok := h.Booth.Last(); ok {
		st.Last = &last
	}
	if h.History != nil {
		c, err := h.History.Counts(r.Context())
		if err != nil {
			debug.Warn("web: counts: %v", err)
		} else {
			st.Counts = &c
		}
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleSessions lists recent sessions from the journal.
func (h *Handlers) HandleSessions(w http.ResponseWriter, r *http.Request) {
	if h.History == nil {
		http.Error(w, "journal not configured", http.StatusServiceUnavailable)
		return
	}
	limit := defaultSessionsLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > maxSessionsLimit {
			http.Error(w, "limit must be between 1 and "+strconv.Itoa(maxSessionsLimit), http.StatusBadRequest)
			return
		}
		limit = n
	}
	list, err := h.History.Recent(r.Context(), limit)
	if err != nil {
		debug.Warn("web: sessions: %v", err)
		http.Error(w, "journal unavailable", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []session.Outcome{}
	}
	writeJSON(w, http.StatusOK, list)
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	// Heartbeat while idle
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
