// Package health serves the liveness, readiness and status probes.
package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"certledger/pkg/platform/httputil"
)

// Version is overridden at link time.
var Version = "dev"

// CheckFunc reports whether one dependency is usable.
type CheckFunc func(ctx context.Context) error

// DefaultCheckTimeout bounds each readiness check.
const DefaultCheckTimeout = 2 * time.Second

const (
	stateUp       = "up"
	prefixDown    = "down: "
	prefixDegrade = "degraded: "
)

type dependency struct {
	name     string
	check    CheckFunc
	optional bool
}

// Handler owns the registered dependency checks.
type Handler struct {
	environment  string
	startedAt    time.Time
	checkTimeout time.Duration
	now          func() time.Time

	mu   sync.RWMutex
	deps []dependency
}

func New(environment string) *Handler {
	return &Handler{
		environment:  environment,
		startedAt:    time.Now(),
		checkTimeout: DefaultCheckTimeout,
		now:          time.Now,
	}
}

// RegisterCheck adds a dependency the process cannot serve without.
func (h *Handler) RegisterCheck(name string, fn CheckFunc) {
	h.add(dependency{name: name, check: fn})
}

// RegisterOptionalCheck adds a dependency whose loss only degrades service.
func (h *Handler) RegisterOptionalCheck(name string, fn CheckFunc) {
	h.add(dependency{name: name, check: fn, optional: true})
}

func (h *Handler) add(d dependency) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := range h.deps {
		if h.deps[i].name == d.name {
			h.deps[i] = d
			return
		}
	}
	h.deps = append(h.deps, d)
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/health", h.HandleStatus)
	r.Get("/health/live", h.HandleLiveness)
	r.Get("/health/ready", h.HandleReadiness)
}

type LivenessResponse struct {
	Status string `json:"status"`
}

// HandleLiveness answers 200 for as long as the process can serve HTTP.
func (h *Handler) HandleLiveness(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, LivenessResponse{Status: "alive"})
}

type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// HandleReadiness probes every dependency concurrently. Any failed required
// dependency turns the answer into 503 not_ready.
func (h *Handler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	deps := append([]dependency(nil), h.deps...)
	h.mu.RUnlock()

	states, ready := h.probe(r.Context(), deps)
	if !ready {
		httputil.WriteJSON(w, http.StatusServiceUnavailable, ReadinessResponse{Status: "not_ready", Checks: states})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ReadinessResponse{Status: "ready", Checks: states})
}

func (h *Handler) probe(ctx context.Context, deps []dependency) (map[string]string, bool) {
	results := make([]error, len(deps))
	var g errgroup.Group
	for i, d := range deps {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, h.checkTimeout)
			defer cancel()
			results[i] = d.check(cctx)
			return nil
		})
	}
	_ = g.Wait()

	states := make(map[string]string, len(deps))
	ready := true
	for i, d := range deps {
		err := results[i]
		switch {
		case err == nil:
			states[d.name] = stateUp
		case d.optional:
			states[d.name] = prefixDegrade + err.Error()
		default:
			states[d.name] = prefixDown + err.Error()
			ready = false
		}
	}
	return states, ready
}

type StatusResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Environment   string `json:"environment"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Timestamp     string `json:"timestamp"`
}

// HandleStatus reports build version, environment and uptime.
func (h *Handler) HandleStatus(w http.ResponseWriter, _ *http.Request) {
	now := h.now()
	httputil.WriteJSON(w, http.StatusOK, StatusResponse{
		Status:        "healthy",
		Version:       Version,
		Environment:   h.environment,
		UptimeSeconds: int64(now.Sub(h.startedAt).Seconds()),
		Timestamp:     now.UTC().Format(time.RFC3339),
	})
}
