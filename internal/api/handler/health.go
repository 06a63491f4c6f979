package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/kiranshivaraju/genqueue/internal/api/response"
)

const checkTimeout = 2 * time.Second

// Check probes one backing service.
type Check func(ctx context.Context) error

type healthResponse struct {
	Status       string            `json:"status"`
	Timestamp    string            `json:"timestamp"`
	QueueLength  int               `json:"queueLength"`
	IsProcessing bool              `json:"isProcessing"`
	Services     map[string]string `json:"services"`
}

// NewHealthHandler returns an http.HandlerFunc for GET /health. The endpoint
// reports liveness of the queue itself, so it always answers 200; a failing
// backend probe shows up as "degraded" under services.
func NewHealthHandler(q Snapshotter, checks map[string]Check, now func() time.Time) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		services := make(map[string]string, len(names))

		for _, name := range names {
			ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
			err := checks[name](ctx)
			cancel()

			if err != nil {
				slog.Warn("health check failed", "service", name, "error", err)
				services[name] = "degraded"
				continue
			}
			services[name] = "ok"
		}

		snap := q.Snapshot()
		response.JSON(w, healthResponse{
			Status:       "healthy",
			Timestamp:    now().UTC().Format(time.RFC3339Nano),
			QueueLength:  len(snap.Pending),
			IsProcessing: snap.IsProcessing,
			Services:     services,
		})
	}
}
