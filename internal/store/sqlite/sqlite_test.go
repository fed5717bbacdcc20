package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/fizzworks/fountd/internal/session"
	"github.com/fizzworks/fountd/internal/store"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("schema: %v", err)
	}
	return db
}

func TestCreateAndActiveSession(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	id, err := db.CreateSession(ctx, 250, 50)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id != 1 {
		t.Fatalf("expected id 1, got %d", id)
	}

	sess, err := db.ActiveSession(ctx)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if sess == nil {
		t.Fatal("expected active session")
	}
	if sess.ID != id || sess.Status != session.StatusInProgress {
		t.Fatalf("unexpected session: %+v", sess)
	}
	if sess.TargetWaterML != 250 || sess.TargetSyrupML != 50 {
		t.Fatalf("unexpected targets: %+v", sess)
	}
	if sess.DispensedWaterML != 0 || sess.DispensedSyrupML != 0 {
		t.Fatalf("dispensed volumes should start at zero: %+v", sess)
	}
	if sess.StartTime.IsZero() {
		t.Fatal("start_time not set")
	}
	if !sess.EndTime.IsZero() {
		t.Fatal("end_time should be unset while active")
	}
}

func TestCreateSecondActiveRefused(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := db.CreateSession(ctx, 100, 10); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := db.CreateSession(ctx, 200, 20); !errors.Is(err, store.ErrSessionActive) {
		t.Fatalf("expected ErrSessionActive, got %v", err)
	}

	// terminal transition frees the slot
	if err := db.MarkCompleted(ctx); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := db.CreateSession(ctx, 200, 20); err != nil {
		t.Fatalf("create after complete: %v", err)
	}
}

func TestActiveSessionNone(t *testing.T) {
	db := newTestDB(t)
	sess, err := db.ActiveSession(context.Background())
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if sess != nil {
		t.Fatalf("expected no active session, got %+v", sess)
	}
}

func TestUpdateProgress(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := db.CreateSession(ctx, 250, 50); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := db.UpdateProgress(ctx, 100, 20); err != nil {
		t.Fatalf("progress: %v", err)
	}
	sess, err := db.ActiveSession(ctx)
	if err != nil || sess == nil {
		t.Fatalf("active: %v %v", sess, err)
	}
	if sess.DispensedWaterML != 100 || sess.DispensedSyrupML != 20 {
		t.Fatalf("unexpected progress: %+v", sess)
	}
}

func TestUpdateProgressNoActiveIsNoop(t *testing.T) {
	db := newTestDB(t)
	if err := db.UpdateProgress(context.Background(), 10, 1); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
}

func TestMarkCompleted(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	id, err := db.CreateSession(ctx, 250, 50)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := db.MarkCompleted(ctx); err != nil {
		t.Fatalf("complete: %v", err)
	}

	sessions, err := db.ListSessions(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	got := sessions[0]
	if got.ID != id || got.Status != session.StatusCompleted {
		t.Fatalf("unexpected session: %+v", got)
	}
	if got.EndTime.IsZero() {
		t.Fatal("end_time not set")
	}

	// terminal transitions are no-ops once no row is active
	if err := db.MarkCompleted(ctx); err != nil {
		t.Fatalf("second complete should be no-op: %v", err)
	}
}

func TestMarkEmergencyStop(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := db.CreateSession(ctx, 300, 60); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := db.UpdateProgress(ctx, 120, 10); err != nil {
		t.Fatalf("progress: %v", err)
	}
	if err := db.MarkEmergencyStop(ctx, "leak detected"); err != nil {
		t.Fatalf("stop: %v", err)
	}

	sessions, err := db.ListSessions(ctx)
	if err != nil || len(sessions) != 1 {
		t.Fatalf("list: %v (%d rows)", err, len(sessions))
	}
	got := sessions[0]
	if got.Status != session.StatusEmergencyStop {
		t.Fatalf("unexpected status: %s", got.Status)
	}
	if got.StopReason != "leak detected" {
		t.Fatalf("unexpected reason: %q", got.StopReason)
	}
	if got.DispensedWaterML != 120 {
		t.Fatalf("progress lost on stop: %+v", got)
	}
	if got.EndTime.IsZero() {
		t.Fatal("end_time not set")
	}
}

func TestListSessionsOrder(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := db.CreateSession(ctx, float64(100+i), 10); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		if err := db.MarkCompleted(ctx); err != nil {
			t.Fatalf("complete %d: %v", i, err)
		}
	}

	sessions, err := db.ListSessions(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(sessions) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(sessions))
	}
	for i := 1; i < len(sessions); i++ {
		if sessions[i-1].ID <= sessions[i].ID {
			t.Fatalf("not ordered most-recent first: %d then %d", sessions[i-1].ID, sessions[i].ID)
		}
	}
}

func TestDeleteSessionIdempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	id, err := db.CreateSession(ctx, 100, 10)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := db.DeleteSession(ctx, 999); err != nil {
		t.Fatalf("delete of unknown id should succeed: %v", err)
	}
	sessions, _ := db.ListSessions(ctx)
	if len(sessions) != 1 {
		t.Fatalf("history changed by unknown-id delete: %d rows", len(sessions))
	}

	// delete is unconditional, active status included
	if err := db.DeleteSession(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	sessions, _ = db.ListSessions(ctx)
	if len(sessions) != 0 {
		t.Fatalf("expected empty log, got %d rows", len(sessions))
	}
}

func TestClearSessions(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := db.CreateSession(ctx, 100, 10); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := db.MarkCompleted(ctx); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := db.CreateSession(ctx, 200, 20); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := db.ClearSessions(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	sessions, err := db.ListSessions(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(sessions) != 0 {
		t.Fatalf("expected empty log, got %d rows", len(sessions))
	}
}

func TestNewRejectsEmptyPath(t *testing.T) {
	if _, err := New("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
