package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/anupsarkar-dev/resumix/internal/api/middleware"
	"github.com/anupsarkar-dev/resumix/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth *mw.Auth

	HealthHandler http.HandlerFunc
	ExtractSingle http.HandlerFunc
	ExtractBatch  http.HandlerFunc
	Classify      http.HandlerFunc
	Action        http.HandlerFunc
	JobStatus     http.HandlerFunc
	JobResult     http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public health check
	r.Get("/health", orNotImplemented(deps.HealthHandler))

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)

		r.Post("/extract/single", orNotImplemented(deps.ExtractSingle))
		r.Post("/extract/batch", orNotImplemented(deps.ExtractBatch))
		r.Post("/classify", orNotImplemented(deps.Classify))
		r.Post("/ai/action", orNotImplemented(deps.Action))

		r.Get("/jobs/{jobID}", orNotImplemented(deps.JobStatus))
		r.Get("/jobs/{jobID}/result", orNotImplemented(deps.JobResult))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
