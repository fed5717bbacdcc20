// Package fountd supervises a water/syrup dispensing appliance driven by a
// networked microcontroller. It exposes the dispense lifecycle over HTTP,
// tracks controller liveness, and persists the dispense log.
package fountd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/fizzworks/fountd/internal/audit"
	auditfactory "github.com/fizzworks/fountd/internal/audit/factory"
	"github.com/fizzworks/fountd/internal/config"
	"github.com/fizzworks/fountd/internal/controller"
	"github.com/fizzworks/fountd/internal/liveness"
	"github.com/fizzworks/fountd/internal/metrics"
	"github.com/fizzworks/fountd/internal/server"
	"github.com/fizzworks/fountd/internal/session"
	"github.com/fizzworks/fountd/internal/store"
	storefactory "github.com/fizzworks/fountd/internal/store/factory"
	"github.com/fizzworks/fountd/internal/supervisor"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Config = config.Config

type Session = session.Session

type Event = session.Event

type State = liveness.State

// LoadConfig reads and validates a TOML config file.
func LoadConfig(path string) (Config, error) { return config.Load(path) }

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config { return config.Default() }

// Service is the wired-up dispensing supervisor, ready to be served or
// embedded. Build with New, start background work with Start, and Close on
// shutdown.
type Service struct {
	cfg      config.Config
	logger   *slog.Logger
	store    store.Store
	commands *controller.Client
	tracker  liveness.Tracker
	poller   *liveness.Poller
	recorder *audit.Recorder
	sup      *supervisor.Supervisor
	router   *server.Router
}

// New wires a Service from config: store (schema ensured), liveness tracker
// per the configured mode, command dispatcher, optional audit sink, metrics,
// supervisor and router.
func New(cfg Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Log.NewSlogger()

	st, err := storefactory.NewFromDSN(cfg.Store.DSN)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := st.EnsureSchema(context.Background()); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	commands := controller.New(controller.Config{
		Address: cfg.Controller.Address,
		Timeout: cfg.Controller.CommandTimeout,
		Logger:  logger,
	})

	svc := &Service{cfg: cfg, logger: logger, store: st, commands: commands}

	var heartbeat *liveness.Heartbeat
	switch cfg.Controller.Mode {
	case config.ModeHeartbeat:
		heartbeat = liveness.NewHeartbeat(cfg.Controller.StaleAfter)
		svc.tracker = heartbeat
	default:
		svc.poller = liveness.NewPoller(commands, cfg.Controller.PollInterval, logger)
		svc.tracker = svc.poller
	}
	commands.SetTracker(svc.tracker)

	var sink audit.Sink
	if cfg.Audit.DSN != "" {
		sink, err = auditfactory.NewSinkFromDSN(cfg.Audit.DSN)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("open audit sink: %w", err)
		}
	}
	svc.recorder = audit.NewRecorder(sink, logger)

	routerOpts := []server.Option{}
	if heartbeat != nil {
		routerOpts = append(routerOpts, server.WithHeartbeat(heartbeat))
	}
	if cfg.Metrics.Enabled {
		if err := metrics.RegisterDefault(); err != nil {
			logger.Warn("metrics registration failed", "error", err)
		} else {
			svc.tracker.OnChange(metrics.SetControllerConnected)
			routerOpts = append(routerOpts, server.WithMetrics())
		}
	}

	svc.sup = supervisor.New(st, svc.tracker, commands, svc.recorder, logger)
	svc.router = server.NewRouter(svc.sup, svc.tracker, cfg.Server.BasePath, routerOpts...)
	return svc, nil
}

// Start launches background work (the active poll loop, when configured).
func (s *Service) Start() {
	if s.poller != nil {
		s.poller.Start()
	}
}

// Handler returns the HTTP surface for mounting in any server or mux.
func (s *Service) Handler() http.Handler { return s.router.Handler() }

// Serve starts a standalone HTTP server on the configured listen address.
func (s *Service) Serve() *http.Server {
	return server.NewServer(s.cfg.Server.Listen, s.router)
}

func (s *Service) Supervisor() *supervisor.Supervisor { return s.sup }

func (s *Service) Tracker() liveness.Tracker { return s.tracker }

func (s *Service) Logger() *slog.Logger { return s.logger }

// Close stops the poll loop and releases the store and audit sink.
func (s *Service) Close() error {
	if s.poller != nil {
		s.poller.Stop()
	}
	err := s.recorder.Close()
	if cerr := s.store.Close(); err == nil {
		err = cerr
	}
	return err
}
