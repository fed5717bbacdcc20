package liveness

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// flakyProbe succeeds or fails per a toggle and signals each ping.
type flakyProbe struct {
	mu     sync.Mutex
	fail   bool
	pinged chan struct{}
}

func newFlakyProbe() *flakyProbe {
	return &flakyProbe{pinged: make(chan struct{}, 64)}
}

func (f *flakyProbe) setFail(v bool) {
	f.mu.Lock()
	f.fail = v
	f.mu.Unlock()
}

func (f *flakyProbe) Ping(ctx context.Context) error {
	f.mu.Lock()
	fail := f.fail
	f.mu.Unlock()
	select {
	case f.pinged <- struct{}{}:
	default:
	}
	if fail {
		return errors.New("connection refused")
	}
	return nil
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestPollerConnectsOnProbeSuccess(t *testing.T) {
	probe := newFlakyProbe()
	p := NewPoller(probe, 10*time.Millisecond, nil)

	if p.IsConnected() {
		t.Fatal("expected disconnected before start")
	}

	p.Start()
	defer p.Stop()

	waitFor(t, time.Second, p.IsConnected)
	st := p.State()
	if !st.Connected || st.LastSeen.IsZero() {
		t.Fatalf("unexpected state: %+v", st)
	}
}

func TestPollerDisconnectsOnProbeFailure(t *testing.T) {
	probe := newFlakyProbe()
	p := NewPoller(probe, 10*time.Millisecond, nil)
	p.Start()
	defer p.Stop()

	waitFor(t, time.Second, p.IsConnected)

	probe.setFail(true)
	waitFor(t, time.Second, func() bool { return !p.IsConnected() })
}

func TestPollerOnChange(t *testing.T) {
	probe := newFlakyProbe()
	p := NewPoller(probe, 10*time.Millisecond, nil)

	var mu sync.Mutex
	var flips []bool
	p.OnChange(func(connected bool) {
		mu.Lock()
		flips = append(flips, connected)
		mu.Unlock()
	})

	p.Start()
	defer p.Stop()

	waitFor(t, time.Second, p.IsConnected)
	probe.setFail(true)
	waitFor(t, time.Second, func() bool { return !p.IsConnected() })

	mu.Lock()
	defer mu.Unlock()
	if len(flips) < 2 || flips[0] != true || flips[len(flips)-1] != false {
		t.Fatalf("unexpected flip sequence: %v", flips)
	}
}

func TestPollerStopIsIdempotent(t *testing.T) {
	probe := newFlakyProbe()
	p := NewPoller(probe, 10*time.Millisecond, nil)
	p.Start()

	<-probe.pinged
	p.Stop()
	p.Stop() // second stop must not panic or hang
}

func TestPollerDefaults(t *testing.T) {
	p := NewPoller(newFlakyProbe(), 0, nil)
	if p.interval != DefaultPollInterval {
		t.Fatalf("expected default interval, got %v", p.interval)
	}
}
