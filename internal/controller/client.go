// Package controller talks to the dispensing microcontroller over HTTP.
// All transport failures are converted into Result values at this boundary;
// nothing here returns an error to command callers or panics past it.
package controller

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fizzworks/fountd/internal/liveness"
)

// DefaultTimeout bounds every outbound call so a hung controller cannot
// block a request handler or the poll loop.
const DefaultTimeout = 2 * time.Second

// Action is a command understood by the controller firmware.
type Action string

const (
	ActionStart Action = "start"
	ActionStop  Action = "stop"
)

// Result is the outcome of a command dispatch. Detail carries a diagnostic
// string when OK is false.
type Result struct {
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// Config holds dispatcher configuration.
type Config struct {
	// Address is the controller host or host:port, e.g. "192.168.23.3".
	Address string
	// Timeout bounds each outbound call. Zero selects DefaultTimeout.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Client dispatches commands to the controller's command endpoints
// (GET /start?water=..&syrup=.., GET /stop) and exposes the /ping probe
// used for active liveness polling.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
	tracker liveness.Tracker
}

func New(config Config) *Client {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	addr := strings.TrimSpace(config.Address)
	addr = strings.TrimPrefix(addr, "http://")
	addr = strings.TrimSuffix(addr, "/")
	return &Client{
		baseURL: "http://" + addr,
		logger:  config.Logger,
		client:  &http.Client{Timeout: config.Timeout},
	}
}

// SetTracker installs the liveness gate. When set, commands are only
// attempted while the tracker reports the controller connected. The tracker
// is installed after construction because the active poller probes through
// this same client.
func (c *Client) SetTracker(t liveness.Tracker) { c.tracker = t }

// Send dispatches an action to the controller. When the liveness gate
// reports disconnected, it returns immediately without network I/O.
func (c *Client) Send(ctx context.Context, action Action, params url.Values) Result {
	if c.tracker != nil && !c.tracker.IsConnected() {
		return Result{OK: false, Detail: "controller not connected"}
	}

	u := c.baseURL + "/" + string(action)
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Result{OK: false, Detail: "build request: " + err.Error()}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("controller command failed", "action", action, "error", err)
		return Result{OK: false, Detail: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("controller rejected command", "action", action, "status", resp.StatusCode)
		return Result{OK: false, Detail: fmt.Sprintf("controller returned status %d", resp.StatusCode)}
	}
	return Result{OK: true}
}

// Start commands the controller to begin dispensing the given volumes.
func (c *Client) Start(ctx context.Context, waterML, syrupML float64) Result {
	params := url.Values{}
	params.Set("water", strconv.FormatFloat(waterML, 'f', -1, 64))
	params.Set("syrup", strconv.FormatFloat(syrupML, 'f', -1, 64))
	return c.Send(ctx, ActionStart, params)
}

// Stop commands the controller to halt all valves.
func (c *Client) Stop(ctx context.Context) Result {
	return c.Send(ctx, ActionStop, nil)
}

// Ping probes the controller's /ping endpoint. It bypasses the liveness
// gate since it is what feeds the gate in the first place.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/ping", nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ping returned status %d", resp.StatusCode)
	}
	return nil
}
