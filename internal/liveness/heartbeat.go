package liveness

import (
	"slices"
	"time"
)

// Heartbeat is the passive liveness strategy: the controller calls in
// periodically, and connectivity decays once no beat has arrived for
// StaleAfter. Staleness is re-evaluated on every read, so no background
// goroutine is needed.
type Heartbeat struct {
	cell
	staleAfter time.Duration
	now        func() time.Time
}

// NewHeartbeat builds a heartbeat tracker. staleAfter <= 0 selects
// DefaultStaleAfter.
func NewHeartbeat(staleAfter time.Duration) *Heartbeat {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Heartbeat{staleAfter: staleAfter, now: time.Now}
}

// Beat records a liveness signal from the controller.
func (h *Heartbeat) Beat() {
	now := h.now()
	notify(h.set(true, now), true)
}

// IsConnected re-evaluates staleness against the last beat. A beat at time T
// keeps the controller connected strictly before T+staleAfter.
func (h *Heartbeat) IsConnected() bool {
	return h.State().Connected
}

func (h *Heartbeat) State() State {
	now := h.now()

	// Freshness and the disconnect flip happen under one lock acquisition so
	// a concurrent Beat cannot be overwritten by a stale observation.
	h.mu.Lock()
	last := h.lastSeen
	fresh := !last.IsZero() && now.Sub(last) < h.staleAfter
	var fns []func(bool)
	if !fresh && h.connected {
		h.connected = false
		fns = slices.Clone(h.observers)
	}
	h.mu.Unlock()

	notify(fns, false)
	return State{Connected: fresh, LastSeen: last}
}

func (h *Heartbeat) OnChange(fn func(connected bool)) { h.onChange(fn) }
