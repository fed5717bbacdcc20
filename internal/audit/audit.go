// Package audit mirrors dispense lifecycle events to an external analytics
// store. It is an optional export path; the durable dispense log in
// internal/store remains the source of truth.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/fizzworks/fountd/internal/session"
)

// EventType defines the kind of lifecycle event.
type EventType string

const (
	EventStarted       EventType = "started"
	EventProgress      EventType = "progress"
	EventCompleted     EventType = "completed"
	EventEmergencyStop EventType = "emergency_stop"
)

// Event represents a lifecycle event to be exported to external systems.
type Event struct {
	Type       EventType       `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Session    session.Session `json:"session"`
}

// Sink is a destination for audit events (analytics/statistics systems).
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
	Close() error
}

// Recorder forwards lifecycle events to a sink best-effort. Send failures
// are logged and swallowed so an analytics outage never affects dispensing.
// The zero-value Recorder (no sink) records nothing.
type Recorder struct {
	sink   Sink
	logger *slog.Logger
}

func NewRecorder(sink Sink, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{sink: sink, logger: logger}
}

// Enabled reports whether a sink is configured. Callers can skip building
// event snapshots when it is false.
func (r *Recorder) Enabled() bool { return r != nil && r.sink != nil }

func (r *Recorder) Record(ctx context.Context, typ EventType, sess session.Session) {
	if r == nil || r.sink == nil {
		return
	}
	e := Event{Type: typ, OccurredAt: time.Now().UTC(), Session: sess}
	if err := r.sink.Send(ctx, e); err != nil {
		r.logger.Warn("audit sink send failed", "type", typ, "session_id", sess.ID, "error", err)
	}
}

func (r *Recorder) Close() error {
	if r == nil || r.sink == nil {
		return nil
	}
	return r.sink.Close()
}
