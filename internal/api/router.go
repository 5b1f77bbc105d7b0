package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/raido/internal/engine"
	"github.com/starford/raido/internal/journal"
	"github.com/starford/raido/internal/sse"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(session *engine.Session, jrnl journal.Journal, broker *sse.Broker, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(session, jrnl, broker)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Session status and manual sync.
	r.Get("/status", h.Status)
	r.Post("/sync", h.Sync)

	// Journal.
	r.Get("/history", h.History)
	r.Get("/history/{id}/operations", h.Operations)
	r.Get("/diagnostics", h.Diagnostics)

	// Relocation protocol.
	r.Get("/relocation", h.Relocation)
	r.Post("/relocation/confirm", h.ConfirmRelocation)
	r.Post("/relocation/ignore", h.IgnoreRelocation)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
