package liveness

import (
	"sync"
	"testing"
	"time"
)

func TestHeartbeatInitiallyDisconnected(t *testing.T) {
	h := NewHeartbeat(10 * time.Second)
	if h.IsConnected() {
		t.Fatal("expected disconnected before any beat")
	}
	st := h.State()
	if st.Connected || !st.LastSeen.IsZero() {
		t.Fatalf("unexpected state: %+v", st)
	}
}

func TestHeartbeatStalenessBoundary(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	h := NewHeartbeat(10 * time.Second)
	h.now = func() time.Time { return now }

	h.Beat()
	if !h.IsConnected() {
		t.Fatal("expected connected right after beat")
	}

	// strictly before T+stale: connected
	now = now.Add(10*time.Second - time.Nanosecond)
	if !h.IsConnected() {
		t.Fatal("expected connected just before staleness threshold")
	}

	// at exactly T+stale: disconnected
	now = now.Add(time.Nanosecond)
	if h.IsConnected() {
		t.Fatal("expected disconnected at staleness threshold")
	}

	// a new beat revives connectivity
	h.Beat()
	if !h.IsConnected() {
		t.Fatal("expected connected after fresh beat")
	}
}

func TestHeartbeatOnChange(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	h := NewHeartbeat(10 * time.Second)
	h.now = func() time.Time { return now }

	var flips []bool
	h.OnChange(func(connected bool) { flips = append(flips, connected) })

	h.Beat()
	h.Beat() // no flip, still connected
	now = now.Add(11 * time.Second)
	_ = h.IsConnected() // read observes staleness
	_ = h.IsConnected() // no second flip

	want := []bool{true, false}
	if len(flips) != len(want) {
		t.Fatalf("expected %d flips, got %v", len(want), flips)
	}
	for i := range want {
		if flips[i] != want[i] {
			t.Fatalf("unexpected flip sequence: %v", flips)
		}
	}
}

func TestHeartbeatObserverRegisteredFromCallback(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	h := NewHeartbeat(10 * time.Second)
	h.now = func() time.Time { return now }

	// Registering from inside a callback must not deadlock; the flip fires a
	// snapshot of the list taken under the lock.
	var late []bool
	h.OnChange(func(connected bool) {
		h.OnChange(func(c bool) { late = append(late, c) })
	})

	h.Beat()
	now = now.Add(11 * time.Second)
	_ = h.IsConnected()

	// only the disconnect flip reaches the late observer
	if len(late) != 1 || late[0] {
		t.Fatalf("unexpected late observer calls: %v", late)
	}
}

func TestHeartbeatNoSpuriousDisconnectWhileFresh(t *testing.T) {
	h := NewHeartbeat(10 * time.Second)
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return base }

	var mu sync.Mutex
	var flips []bool
	h.OnChange(func(connected bool) {
		mu.Lock()
		flips = append(flips, connected)
		mu.Unlock()
	})

	// Beats and state reads race; the clock never advances, so every beat
	// stays fresh and no disconnect may be observed.
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for range 500 {
				h.Beat()
			}
		}()
		go func() {
			defer wg.Done()
			for range 500 {
				_ = h.State()
			}
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(flips) != 1 || !flips[0] {
		t.Fatalf("expected a single connect flip, got %v", flips)
	}
}

func TestHeartbeatDefaultStaleAfter(t *testing.T) {
	h := NewHeartbeat(0)
	if h.staleAfter != DefaultStaleAfter {
		t.Fatalf("expected default stale threshold, got %v", h.staleAfter)
	}
}

func TestHeartbeatStateLastSeen(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	beatAt := now
	h := NewHeartbeat(10 * time.Second)
	h.now = func() time.Time { return now }

	h.Beat()
	now = now.Add(30 * time.Second)
	st := h.State()
	if st.Connected {
		t.Fatal("expected stale state")
	}
	if !st.LastSeen.Equal(beatAt) {
		t.Fatalf("last seen should survive staleness: %v", st.LastSeen)
	}
}
