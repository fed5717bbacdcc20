package liveness

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Prober is the lightweight reachability check the poller runs each tick.
// controller.Client satisfies it; the probe must be time-bounded by its
// implementation.
type Prober interface {
	Ping(ctx context.Context) error
}

// Poller is the active liveness strategy: a background loop probes the
// controller every interval. Probe success marks the controller connected,
// any failure marks it disconnected. The loop runs from Start until Stop.
type Poller struct {
	cell
	probe    Prober
	interval time.Duration
	logger   *slog.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewPoller builds a poller. interval <= 0 selects DefaultPollInterval.
func NewPoller(probe Prober, interval time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		probe:    probe,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start launches the poll loop. The first probe fires immediately so the
// service does not report a stale disconnected state for a full interval
// after boot.
func (p *Poller) Start() {
	p.startOnce.Do(func() {
		p.wg.Add(1)
		go p.loop()
	})
}

// Stop terminates the poll loop and waits for it to drain.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.done) })
	p.wg.Wait()
}

func (p *Poller) loop() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.tick()
	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.tick()
		}
	}
}

func (p *Poller) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), p.interval)
	defer cancel()

	if err := p.probe.Ping(ctx); err != nil {
		if fns := p.set(false, time.Time{}); fns != nil {
			p.logger.Warn("controller disconnected", "error", err)
			notify(fns, false)
		}
		return
	}
	if fns := p.set(true, time.Now()); fns != nil {
		p.logger.Info("controller connected")
		notify(fns, true)
	}
}

func (p *Poller) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return State{Connected: p.connected, LastSeen: p.lastSeen}
}

func (p *Poller) OnChange(fn func(connected bool)) { p.onChange(fn) }
