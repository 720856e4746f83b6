package session

import (
	"fmt"
	"time"
)

// Status is the final state of one trigger.
type Status int

const (
	// Skipped: another session held the guard; nothing was done.
	Skipped Status = iota
	// Failed: no photo could be taken.
	Failed
	// Completed: a photo was taken; Printed tells whether it came out.
	Completed
)

var statusNames = [...]string{"skipped", "failed", "completed"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseStatus is the inverse of String.
func ParseStatus(s string) (Status, error) {
	for i, n := range statusNames {
		if n == s {
			return Status(i), nil
		}
	}
	return 0, fmt.Errorf("unknown session status %q", s)
}

// Reasons attached to non-nominal outcomes.
const (
	ReasonBusy               = "busy"
	ReasonCapture            = "capture"
	ReasonPrinterUnavailable = "printer unavailable"
	ReasonPrintError         = "print error"
)

// Outcome reports what a trigger produced. It is never an error: every
// failure inside a session is folded into Status and Reason.
type Outcome struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Status    Status    `json:"status"`
	Printed   bool      `json:"printed"`
	Reason    string    `json:"reason,omitempty"`
	PhotoPath string    `json:"photo_path,omitempty"`
	QRURL     string    `json:"qr_url,omitempty"`
	Started   time.Time `json:"started_at"`
	Finished  time.Time `json:"finished_at"`
	Err       error     `json:"-"`
}

// Duration is how long the session held the guard.
func (o Outcome) Duration() time.Duration {
	return o.Finished.Sub(o.Started)
}
