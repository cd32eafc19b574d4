package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"
)

// Check reports whether one backend is usable
type Check func(ctx context.Context) error

// HealthHandler handles health check endpoints
type HealthHandler struct {
	checks map[string]Check
	rs     *Responder
	logger *slog.Logger
}

// NewHealthHandler creates a new health handler; checks are run by Ready
func NewHealthHandler(checks map[string]Check, rs *Responder, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandler{checks: checks, rs: rs, logger: logger}
}

// HealthResponse represents the health status response
type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ReadinessResponse represents the readiness check response
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Health handles GET /api/health - liveness only
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.rs.JSON(w, http.StatusOK, HealthResponse{Status: "OK", Message: "Site API is running"})
}

// Ready handles GET /api/ready - 200 only if every backend check passes
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make(map[string]string, len(names))
	failures := make(map[string]string)
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			failures[name] = err.Error()
			results[name] = "error"
			if h.rs.showDetail {
				results[name] = "error: " + err.Error()
			}
			continue
		}
		results[name] = "ok"
	}

	status, code := "ready", http.StatusOK
	if len(failures) > 0 {
		status, code = "not_ready", http.StatusServiceUnavailable
		h.logger.Warn("readiness check failed", slog.Any("failures", failures))
	}
	h.rs.JSON(w, code, ReadinessResponse{Status: status, Checks: results})
}
