package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fizzworks/fountd/internal/liveness"
	"github.com/fizzworks/fountd/internal/metrics"
	"github.com/fizzworks/fountd/internal/store"
	"github.com/fizzworks/fountd/internal/supervisor"
)

// Router provides the HTTP surface of the dispensing service.
// Endpoints (relative to basePath):
//
//	POST   /dispense              body: {water, syrup}
//	POST   /update-progress       body: {water_dispensed, syrup_dispensed}
//	POST   /emergency-stop        body: {reason}
//	POST   /complete
//	GET    /history
//	POST   /clear-history
//	DELETE /delete-history/:id
//	POST   /controller/heartbeat
//	GET    /controller/status
//	GET    /metrics               (when metrics are enabled)
//
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	sup      *supervisor.Supervisor
	tracker  liveness.Tracker
	beat     *liveness.Heartbeat
	basePath string
	metrics  bool
}

// Option tweaks router construction.
type Option func(*Router)

// WithHeartbeat wires the inbound heartbeat route to the passive tracker.
// Without it the route still answers ok but feeds nothing; the active poller
// owns the state in that deployment.
func WithHeartbeat(h *liveness.Heartbeat) Option {
	return func(r *Router) { r.beat = h }
}

// WithMetrics mounts the Prometheus handler at GET {basePath}/metrics.
func WithMetrics() Option {
	return func(r *Router) { r.metrics = true }
}

// NewRouter constructs a new Router with configurable basePath.
func NewRouter(sup *supervisor.Supervisor, tracker liveness.Tracker, basePath string, opts ...Option) *Router {
	r := &Router{sup: sup, tracker: tracker, basePath: sanitizeBase(basePath)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.POST("/dispense", r.handleDispense)
	group.POST("/update-progress", r.handleUpdateProgress)
	group.POST("/emergency-stop", r.handleEmergencyStop)
	group.POST("/complete", r.handleComplete)
	group.GET("/history", r.handleHistory)
	group.POST("/clear-history", r.handleClearHistory)
	group.DELETE("/delete-history/:id", r.handleDeleteHistory)
	group.POST("/controller/heartbeat", r.handleHeartbeat)
	group.GET("/controller/status", r.handleControllerStatus)
	if r.metrics {
		group.GET("/metrics", gin.WrapH(metrics.Handler()))
	}
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
func NewServer(addr string, r *Router) *http.Server {
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server
}

// --- Handlers ---

type statusResp struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type commandResult struct {
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

func (r *Router) handleDispense(c *gin.Context) {
	var req struct {
		Water float64 `json:"water"`
		Syrup float64 `json:"syrup"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, statusResp{Status: "error", Message: "invalid JSON: " + err.Error()})
		return
	}
	if req.Water < 0 || req.Syrup < 0 {
		writeJSON(c, http.StatusBadRequest, statusResp{Status: "error", Message: "volumes must be non-negative"})
		return
	}

	id, res, err := r.sup.StartDispense(c.Request.Context(), req.Water, req.Syrup)
	switch {
	case errors.Is(err, supervisor.ErrDeviceUnavailable):
		writeJSON(c, http.StatusServiceUnavailable, statusResp{Status: "error", Message: err.Error()})
		return
	case errors.Is(err, store.ErrSessionActive):
		writeJSON(c, http.StatusConflict, statusResp{Status: "error", Message: err.Error()})
		return
	case err != nil:
		writeJSON(c, http.StatusInternalServerError, statusResp{Status: "error", Message: err.Error()})
		return
	}

	writeJSON(c, http.StatusOK, struct {
		Status    string        `json:"status"`
		SessionID int64         `json:"session_id"`
		Command   commandResult `json:"command"`
	}{
		Status:    "started",
		SessionID: id,
		Command:   commandResult{OK: res.OK, Detail: res.Detail},
	})
}

func (r *Router) handleUpdateProgress(c *gin.Context) {
	// both fields optional, defaulting to zero; an empty body is accepted
	var req struct {
		WaterDispensed float64 `json:"water_dispensed"`
		SyrupDispensed float64 `json:"syrup_dispensed"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(c, http.StatusBadRequest, statusResp{Status: "error", Message: "invalid JSON: " + err.Error()})
		return
	}

	if err := r.sup.UpdateProgress(c.Request.Context(), req.WaterDispensed, req.SyrupDispensed); err != nil {
		writeJSON(c, http.StatusInternalServerError, statusResp{Status: "error", Message: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, statusResp{Status: "updated"})
}

func (r *Router) handleEmergencyStop(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(c, http.StatusBadRequest, statusResp{Status: "error", Message: "invalid JSON: " + err.Error()})
		return
	}

	res, err := r.sup.EmergencyStop(c.Request.Context(), req.Reason)
	if err != nil {
		writeJSON(c, http.StatusInternalServerError, statusResp{Status: "error", Message: err.Error()})
		return
	}
	// 200 even when the stop command itself was not delivered; the emergency
	// state is recorded either way and the command outcome reported.
	writeJSON(c, http.StatusOK, struct {
		Status        string        `json:"status"`
		CommandResult commandResult `json:"command_result"`
	}{
		Status:        "stopped",
		CommandResult: commandResult{OK: res.OK, Detail: res.Detail},
	})
}

func (r *Router) handleComplete(c *gin.Context) {
	if err := r.sup.CompleteDispense(c.Request.Context()); err != nil {
		writeJSON(c, http.StatusInternalServerError, statusResp{Status: "error", Message: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, statusResp{Status: "completed"})
}

func (r *Router) handleHistory(c *gin.Context) {
	events, err := r.sup.History(c.Request.Context())
	if err != nil {
		writeJSON(c, http.StatusInternalServerError, statusResp{Status: "error", Message: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, events)
}

func (r *Router) handleClearHistory(c *gin.Context) {
	if err := r.sup.ClearHistory(c.Request.Context()); err != nil {
		writeJSON(c, http.StatusInternalServerError, statusResp{Status: "error", Message: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, statusResp{Status: "cleared"})
}

func (r *Router) handleDeleteHistory(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		writeJSON(c, http.StatusBadRequest, statusResp{Status: "error", Message: "invalid id"})
		return
	}
	// unconditional and idempotent: unknown ids succeed
	if err := r.sup.DeleteRecord(c.Request.Context(), id); err != nil {
		writeJSON(c, http.StatusInternalServerError, statusResp{Status: "error", Message: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, statusResp{Status: "deleted"})
}

func (r *Router) handleHeartbeat(c *gin.Context) {
	if r.beat != nil {
		r.beat.Beat()
	}
	writeJSON(c, http.StatusOK, statusResp{Status: "ok"})
}

func (r *Router) handleControllerStatus(c *gin.Context) {
	if r.tracker.IsConnected() {
		writeJSON(c, http.StatusOK, statusResp{Status: "connected"})
		return
	}
	writeJSON(c, http.StatusServiceUnavailable, statusResp{Status: "error", Message: "controller not connected"})
}
