package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	dispenseStarts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fountd",
			Subsystem: "dispense",
			Name:      "starts_total",
			Help:      "Number of dispense sessions started.",
		},
	)
	dispenseCompletions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fountd",
			Subsystem: "dispense",
			Name:      "completions_total",
			Help:      "Number of dispense sessions completed normally.",
		},
	)
	emergencyStops = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fountd",
			Subsystem: "dispense",
			Name:      "emergency_stops_total",
			Help:      "Number of dispense sessions ended by emergency stop.",
		},
	)
	commandFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fountd",
			Subsystem: "controller",
			Name:      "command_failures_total",
			Help:      "Number of failed command dispatches to the controller.",
		}, []string{"action"},
	)
	controllerConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fountd",
			Subsystem: "controller",
			Name:      "connected",
			Help:      "Whether the controller is currently considered reachable (1/0).",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{dispenseStarts, dispenseCompletions, emergencyStops, commandFailures, controllerConnected}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// If already registered, ignore (allows double Register with default registry)
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// RegisterDefault registers with the default Prometheus registry.
func RegisterDefault() error { return Register(prometheus.DefaultRegisterer) }

// Handler returns an http.Handler serving Prometheus metrics for the
// DefaultGatherer. The caller wires the route.
func Handler() http.Handler { return promhttp.Handler() }

func IncDispenseStart() { dispenseStarts.Inc() }
func IncCompletion()    { dispenseCompletions.Inc() }
func IncEmergencyStop() { emergencyStops.Inc() }

func IncCommandFailure(action string) {
	commandFailures.WithLabelValues(action).Inc()
}

// SetControllerConnected mirrors tracker state into the gauge; wire it via
// Tracker.OnChange.
func SetControllerConnected(connected bool) {
	if connected {
		controllerConnected.Set(1)
		return
	}
	controllerConnected.Set(0)
}
