package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/genqueue/internal/api/response"
	"github.com/kiranshivaraju/genqueue/internal/store"
	"github.com/kiranshivaraju/genqueue/pkg/models"
)

// JobReader looks up job records.
type JobReader interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Job, error)
}

// Positioner reports where a pending job sits in the queue.
type Positioner interface {
	Position(id uuid.UUID) (int, bool)
}

// NewStatusHandler returns an http.HandlerFunc for GET /status/{id}.
// Queued jobs get a fresh queuePosition on every read.
func NewStatusHandler(jobs JobReader, queue Positioner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			notFound(w)
			return
		}

		job, err := jobs.Get(r.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				notFound(w)
				return
			}
			slog.Error("get job", "error", err, "job_id", id)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred")
			return
		}

		job.QueuePosition = 0
		if job.Status == models.JobStatusQueued {
			if pos, ok := queue.Position(id); ok {
				job.QueuePosition = pos
			}
		}
		response.JSON(w, job)
	}
}

func notFound(w http.ResponseWriter) {
	response.Error(w, http.StatusNotFound, "NOT_FOUND", "Request not found")
}
