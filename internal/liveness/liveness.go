package liveness

import (
	"slices"
	"sync"
	"time"
)

// Default design values for controller liveness.
const (
	DefaultStaleAfter   = 10 * time.Second
	DefaultPollInterval = 2 * time.Second
)

// State is a point-in-time snapshot of controller connectivity.
// LastSeen is zero when no liveness signal has ever been observed.
type State struct {
	Connected bool      `json:"connected"`
	LastSeen  time.Time `json:"last_seen,omitzero"`
}

// Tracker reports whether the dispensing controller is currently considered
// reachable. Implementations are safe for concurrent use.
type Tracker interface {
	IsConnected() bool
	State() State
	// OnChange registers a callback fired whenever connectivity flips.
	// Callbacks run outside the tracker's lock, in registration order, on
	// the goroutine that observed the change.
	OnChange(fn func(connected bool))
}

// cell is the shared synchronized connectivity state behind both tracker
// strategies. Initialized disconnected with no last-seen signal.
type cell struct {
	mu        sync.Mutex
	connected bool
	lastSeen  time.Time
	observers []func(bool)
}

func (c *cell) onChange(fn func(bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// set updates connectivity and returns the callbacks to fire, or nil when the
// state did not flip. seen stamps lastSeen when non-zero.
func (c *cell) set(connected bool, seen time.Time) []func(bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !seen.IsZero() {
		c.lastSeen = seen
	}
	if connected == c.connected {
		return nil
	}
	c.connected = connected
	return slices.Clone(c.observers)
}

func notify(fns []func(bool), connected bool) {
	for _, fn := range fns {
		fn(connected)
	}
}
