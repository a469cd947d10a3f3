// Package trace records per-run workflow events (input requests, approvals,
// verification attempts, retrieval lookups) for later inspection. Recorders
// are best-effort: a recording failure is returned to the caller for logging
// but must never change a run's outcome.
package trace

import (
	"context"
	"time"
)

// Event names emitted by the workflow runner.
const (
	EventInputRequest = "input_request"
	EventApproval     = "approval"
	EventVerification = "verification"
	EventRagLookup    = "rag_lookup"
)

// Event is a single timestamped trace entry for a session.
type Event struct {
	SessionID string         `json:"session_id"`
	Step      string         `json:"step,omitempty"`
	Event     string         `json:"event"`
	Status    string         `json:"status"`
	Data      map[string]any `json:"data,omitempty"`
	LatencyMs int64          `json:"latency_ms,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Sequence  int64          `json:"sequence,omitempty"`
}

// Recorder persists trace events.
type Recorder interface {
	Record(ctx context.Context, event Event) error
}

// NoopRecorder discards every event.
type NoopRecorder struct{}

func (NoopRecorder) Record(context.Context, Event) error { return nil }

// stamp fills the timestamp when the caller left it zero.
func stamp(event Event) Event {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	return event
}
