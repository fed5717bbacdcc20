// Package supervisor orchestrates the dispense lifecycle: start, progress,
// completion and emergency stop. It composes the dispense log store, the
// controller liveness tracker and the command dispatcher, and enforces the
// single-active-session invariant through the store.
package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fizzworks/fountd/internal/audit"
	"github.com/fizzworks/fountd/internal/controller"
	"github.com/fizzworks/fountd/internal/liveness"
	"github.com/fizzworks/fountd/internal/metrics"
	"github.com/fizzworks/fountd/internal/session"
	"github.com/fizzworks/fountd/internal/store"
)

// ErrDeviceUnavailable is returned when a dispense is requested while the
// controller is not connected. No session is created in that case.
var ErrDeviceUnavailable = errors.New("controller not connected")

type Supervisor struct {
	store    store.Store
	tracker  liveness.Tracker
	commands *controller.Client
	audit    *audit.Recorder
	logger   *slog.Logger
}

func New(st store.Store, tr liveness.Tracker, cmd *controller.Client, rec *audit.Recorder, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{store: st, tracker: tr, commands: cmd, audit: rec, logger: logger}
}

// StartDispense creates a new session and commands the controller to begin
// dispensing. A disconnected controller fails the request before any row is
// written; a failed start command does not roll the session back. The
// session stays IN_PROGRESS and the command outcome is reported alongside.
func (s *Supervisor) StartDispense(ctx context.Context, waterML, syrupML float64) (int64, controller.Result, error) {
	if !s.tracker.IsConnected() {
		return 0, controller.Result{}, ErrDeviceUnavailable
	}

	id, err := s.store.CreateSession(ctx, waterML, syrupML)
	if err != nil {
		return 0, controller.Result{}, err
	}
	metrics.IncDispenseStart()
	s.logger.Info("dispense started", "session_id", id, "water_ml", waterML, "syrup_ml", syrupML)

	res := s.commands.Start(ctx, waterML, syrupML)
	if !res.OK {
		metrics.IncCommandFailure(string(controller.ActionStart))
		s.logger.Warn("start command not delivered", "session_id", id, "detail", res.Detail)
	}

	s.audit.Record(ctx, audit.EventStarted, session.Session{
		ID:            id,
		StartTime:     time.Now().UTC(),
		TargetWaterML: waterML,
		TargetSyrupML: syrupML,
		Status:        session.StatusInProgress,
	})
	return id, res, nil
}

// UpdateProgress records last-reported dispensed volumes. It is a silent
// no-op when no session is active.
func (s *Supervisor) UpdateProgress(ctx context.Context, waterML, syrupML float64) error {
	if err := s.store.UpdateProgress(ctx, waterML, syrupML); err != nil {
		return err
	}
	if s.audit.Enabled() {
		if sess, err := s.store.ActiveSession(ctx); err == nil && sess != nil {
			s.audit.Record(ctx, audit.EventProgress, *sess)
		}
	}
	return nil
}

// EmergencyStop commands the controller to halt and then marks the active
// session EMERGENCY_STOP regardless of whether the stop command itself was
// delivered. An empty reason records session.DefaultStopReason.
func (s *Supervisor) EmergencyStop(ctx context.Context, reason string) (controller.Result, error) {
	if reason == "" {
		reason = session.DefaultStopReason
	}

	res := s.commands.Stop(ctx)
	if !res.OK {
		metrics.IncCommandFailure(string(controller.ActionStop))
		s.logger.Warn("stop command not delivered", "detail", res.Detail)
	}

	sess, err := s.store.ActiveSession(ctx)
	if err != nil {
		return res, err
	}
	if err := s.store.MarkEmergencyStop(ctx, reason); err != nil {
		return res, err
	}
	if sess != nil {
		metrics.IncEmergencyStop()
		s.logger.Info("emergency stop", "session_id", sess.ID, "reason", reason)
		sess.Status = session.StatusEmergencyStop
		sess.StopReason = reason
		sess.EndTime = time.Now().UTC()
		s.audit.Record(ctx, audit.EventEmergencyStop, *sess)
	}
	return res, nil
}

// CompleteDispense marks the active session COMPLETED. The controller is not
// contacted; completion is reported by the controller itself. Silent no-op
// when no session is active.
func (s *Supervisor) CompleteDispense(ctx context.Context) error {
	sess, err := s.store.ActiveSession(ctx)
	if err != nil {
		return err
	}
	if err := s.store.MarkCompleted(ctx); err != nil {
		return err
	}
	if sess != nil {
		metrics.IncCompletion()
		s.logger.Info("dispense completed", "session_id", sess.ID)
		sess.Status = session.StatusCompleted
		sess.EndTime = time.Now().UTC()
		s.audit.Record(ctx, audit.EventCompleted, *sess)
	}
	return nil
}

// History returns all sessions rendered as history events, most recent first.
func (s *Supervisor) History(ctx context.Context) ([]session.Event, error) {
	sessions, err := s.store.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	events := make([]session.Event, 0, len(sessions))
	for _, sess := range sessions {
		events = append(events, sess.Event())
	}
	return events, nil
}

// ClearHistory deletes every session unconditionally.
func (s *Supervisor) ClearHistory(ctx context.Context) error {
	return s.store.ClearSessions(ctx)
}

// DeleteRecord deletes one session unconditionally; unknown ids succeed.
func (s *Supervisor) DeleteRecord(ctx context.Context, id int64) error {
	return s.store.DeleteSession(ctx, id)
}
