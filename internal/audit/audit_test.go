package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/fizzworks/fountd/internal/session"
)

type stubSink struct {
	events []Event
	err    error
	closed bool
}

func (s *stubSink) Send(_ context.Context, e Event) error {
	s.events = append(s.events, e)
	return s.err
}

func (s *stubSink) Close() error {
	s.closed = true
	return nil
}

func TestRecorderForwardsEvents(t *testing.T) {
	sink := &stubSink{}
	rec := NewRecorder(sink, nil)
	if !rec.Enabled() {
		t.Fatal("expected recorder to be enabled")
	}

	rec.Record(context.Background(), EventStarted, session.Session{ID: 3, Status: session.StatusInProgress})
	if len(sink.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(sink.events))
	}
	e := sink.events[0]
	if e.Type != EventStarted || e.Session.ID != 3 || e.OccurredAt.IsZero() {
		t.Fatalf("unexpected event: %+v", e)
	}

	if err := rec.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !sink.closed {
		t.Fatal("sink not closed")
	}
}

func TestRecorderSwallowsSinkErrors(t *testing.T) {
	sink := &stubSink{err: errors.New("sink down")}
	rec := NewRecorder(sink, nil)
	rec.Record(context.Background(), EventProgress, session.Session{ID: 1})
	if len(sink.events) != 1 {
		t.Fatalf("expected the send to be attempted, got %d events", len(sink.events))
	}
}

func TestNilRecorderIsInert(t *testing.T) {
	var rec *Recorder
	if rec.Enabled() {
		t.Fatal("nil recorder must report disabled")
	}
	rec.Record(context.Background(), EventCompleted, session.Session{})
	if err := rec.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	noSink := NewRecorder(nil, nil)
	if noSink.Enabled() {
		t.Fatal("recorder without a sink must report disabled")
	}
	noSink.Record(context.Background(), EventCompleted, session.Session{})
}
