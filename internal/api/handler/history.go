package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/kiranshivaraju/genqueue/internal/api/response"
	"github.com/kiranshivaraju/genqueue/internal/archive"
	"github.com/kiranshivaraju/genqueue/pkg/models"
)

// HistoryLister returns recently finished jobs, newest first.
type HistoryLister interface {
	Recent(ctx context.Context, limit int) ([]*models.Job, error)
}

type historyResponse struct {
	Jobs []*models.Job `json:"jobs"`
}

// NewHistoryHandler returns an http.HandlerFunc for GET /history.
func NewHistoryHandler(h HistoryLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"limit must be a positive integer")
				return
			}
			limit = n
		}

		jobs, err := h.Recent(r.Context(), limit)
		if err != nil {
			if errors.Is(err, archive.ErrDisabled) {
				response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED",
					"Job history is not enabled")
				return
			}
			slog.Error("list job history", "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred")
			return
		}

		if jobs == nil {
			jobs = []*models.Job{}
		}
		response.JSON(w, historyResponse{Jobs: jobs})
	}
}
