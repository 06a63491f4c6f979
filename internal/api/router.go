package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	mw "github.com/kiranshivaraju/genqueue/internal/api/middleware"
	"github.com/kiranshivaraju/genqueue/internal/api/response"
)

// Dependencies holds the handlers mounted by the router.
type Dependencies struct {
	GenerateHandler http.HandlerFunc
	StatusHandler   http.HandlerFunc
	QueueHandler    http.HandlerFunc
	HealthHandler   http.HandlerFunc
	HistoryHandler  http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
	})

	r.Get("/health", orNotImplemented(deps.HealthHandler))

	r.Post("/generate", orNotImplemented(deps.GenerateHandler))
	r.Get("/status/{id}", orNotImplemented(deps.StatusHandler))
	r.Get("/queue", orNotImplemented(deps.QueueHandler))
	r.Get("/history", orNotImplemented(deps.HistoryHandler))

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented")
	}
}
