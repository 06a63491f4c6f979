package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kiranshivaraju/genqueue/internal/api/response"
	"github.com/kiranshivaraju/genqueue/internal/scheduler"
	"github.com/kiranshivaraju/genqueue/pkg/models"
)

const maxRequestBytes = 1 << 20

// Submitter admits new generation jobs.
type Submitter interface {
	Submit(ctx context.Context, prompt, model string) (*models.Job, error)
}

type generateRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model"`
}

type generateResponse struct {
	RequestID     string `json:"requestId"`
	Status        string `json:"status"`
	Message       string `json:"message"`
	QueuePosition int    `json:"queuePosition"`
}

// NewGenerateHandler returns an http.HandlerFunc for POST /generate.
func NewGenerateHandler(svc Submitter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body")
			return
		}

		if strings.TrimSpace(req.Prompt) == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Prompt is required")
			return
		}

		job, err := svc.Submit(r.Context(), req.Prompt, strings.TrimSpace(req.Model))
		if err != nil {
			switch {
			case errors.Is(err, scheduler.ErrClosed):
				response.Error(w, http.StatusServiceUnavailable, "SHUTTING_DOWN",
					"Server is shutting down")
			default:
				slog.Error("submit job", "error", err)
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"An unexpected error occurred")
			}
			return
		}

		response.JSON(w, generateResponse{
			RequestID:     job.ID.String(),
			Status:        job.Status,
			Message:       "Request queued for processing",
			QueuePosition: job.QueuePosition,
		})
	}
}
