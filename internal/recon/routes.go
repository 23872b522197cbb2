package recon

import "github.com/go-chi/chi/v5"

// MountRoutes attaches reconciliation endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/auto", h.autoReconcile)
	r.Get("/status", h.status)
	r.Get("/suggestions", h.suggestions)
	r.Get("/transactions/{id}/matches", h.findMatches)
	r.Post("/transactions/{id}/unmatch", h.unmatch)
	r.Post("/matches/confirm", h.confirmMatch)
}
