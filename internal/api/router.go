package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/doclife/internal/docservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *docservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Documents.
	r.Get("/documents", h.ListDocuments)
	r.Post("/documents", h.CreateDocument)
	r.Get("/documents/*", h.GetDocument)
	r.Put("/documents/*", h.UpdateDocument)

	// Lifecycle.
	r.Post("/supersede/*", h.Supersede)
	r.Post("/archive", h.Sweep)
	r.Post("/archive/*", h.Archive)

	// Policy.
	r.Get("/classify", h.Classify)
	r.Get("/names", h.SuggestName)
	r.Get("/violations", h.Violations)

	// Search and audit trail.
	r.Get("/search", h.Search)
	r.Get("/audit", h.Audit)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
