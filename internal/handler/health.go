package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger is anything that can report whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports whether the stores the service depends on answer.
type HealthHandler struct {
	stores map[string]Pinger
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler over the named stores.
func NewHealthHandler(stores map[string]Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{stores: stores, logger: logger}
}

// HandleHealth pings every store with a short deadline.
//
// HTTP: GET /healthz → 200 {"status":"ok"} | 503 {"status":"unavailable","failed":[...]}
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	failed := make([]string, 0)
	for name, store := range h.stores {
		if err := store.Ping(ctx); err != nil {
			h.logger.Warn("health check failed",
				slog.String("store", name),
				slog.String("error", err.Error()),
			)
			failed = append(failed, name)
		}
	}

	if len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unavailable",
			"failed": failed,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
