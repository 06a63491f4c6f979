package handler

import (
	"net/http"

	"github.com/kiranshivaraju/genqueue/internal/api/response"
	"github.com/kiranshivaraju/genqueue/internal/scheduler"
)

const promptPreviewRunes = 50

// Snapshotter exposes the scheduler state.
type Snapshotter interface {
	Snapshot() scheduler.QueueSnapshot
}

type queueItem struct {
	ID     string `json:"id"`
	Prompt string `json:"prompt"`
	Model  string `json:"model"`
}

type queueResponse struct {
	IsProcessing bool        `json:"isProcessing"`
	QueueLength  int         `json:"queueLength"`
	Queue        []queueItem `json:"queue"`
}

// NewQueueHandler returns an http.HandlerFunc for GET /queue.
func NewQueueHandler(q Snapshotter) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		snap := q.Snapshot()

		items := make([]queueItem, 0, len(snap.Pending))
		for _, e := range snap.Pending {
			items = append(items, queueItem{
				ID:     e.ID.String(),
				Prompt: preview(e.Prompt),
				Model:  e.Model,
			})
		}

		response.JSON(w, queueResponse{
			IsProcessing: snap.IsProcessing,
			QueueLength:  len(snap.Pending),
			Queue:        items,
		})
	}
}

// preview cuts s to its first 50 characters, marking the cut with "...".
func preview(s string) string {
	runes := []rune(s)
	if len(runes) <= promptPreviewRunes {
		return s
	}
	return string(runes[:promptPreviewRunes]) + "..."
}
