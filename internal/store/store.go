package store

import (
	"context"
	"errors"

	"github.com/fizzworks/fountd/internal/session"
)

// ErrSessionActive is returned by CreateSession when an IN_PROGRESS session
// already exists. At most one session may be active at a time.
var ErrSessionActive = errors.New("dispense session already in progress")

// Store is the durable dispense log. It is the sole owner of session identity
// and lifecycle; every method is a single transaction from the caller's point
// of view and safe for concurrent use.
//
// "The active session" is the IN_PROGRESS row with the highest id. Requests
// carry no session handle, so mutations (progress, complete, emergency stop)
// resolve their target through that lookup and are silent no-ops when no
// session is active.
type Store interface {
	// EnsureSchema creates or migrates the dispense log schema. It runs once
	// at startup, never on the request path.
	EnsureSchema(ctx context.Context) error

	// CreateSession inserts a new IN_PROGRESS session with zero dispensed
	// volumes and returns its id. Fails with ErrSessionActive when a session
	// is already active.
	CreateSession(ctx context.Context, targetWaterML, targetSyrupML float64) (int64, error)

	// ActiveSession returns the active session, or (nil, nil) when none.
	ActiveSession(ctx context.Context) (*session.Session, error)

	// UpdateProgress records last-reported dispensed volumes on the active
	// session. No-op when none is active.
	UpdateProgress(ctx context.Context, dispensedWaterML, dispensedSyrupML float64) error

	// MarkCompleted transitions the active session to COMPLETED and stamps
	// end_time. No-op when none is active.
	MarkCompleted(ctx context.Context) error

	// MarkEmergencyStop transitions the active session to EMERGENCY_STOP with
	// the given reason and stamps end_time. No-op when none is active.
	MarkEmergencyStop(ctx context.Context, reason string) error

	// ListSessions returns all sessions, most recent id first.
	ListSessions(ctx context.Context) ([]session.Session, error)

	// DeleteSession removes one session unconditionally. Unknown ids are not
	// an error.
	DeleteSession(ctx context.Context, id int64) error

	// ClearSessions removes every session unconditionally.
	ClearSessions(ctx context.Context) error

	Close() error
}
