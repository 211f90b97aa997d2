package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"
)

const healthCheckTimeout = 3 * time.Second

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	checks map[string]HealthCheck
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler. checks maps a dependency name
// (postgres, redis, s3) to its probe; it may be empty.
func NewHealthHandler(checks map[string]HealthCheck, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{checks: checks, logger: logger}
}

// HealthCheck runs every probe and answers 200 when all pass, 503 otherwise.
// GET /healthz
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status, code := "ok", http.StatusOK
	results := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			h.logger.WarnContext(ctx, "health: check failed",
				slog.String("dependency", name),
				slog.String("error", err.Error()),
			)
			results[name] = err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	writeJSON(w, code, map[string]any{
		"status":    status,
		"checks":    results,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
