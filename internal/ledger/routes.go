package ledger

import "github.com/go-chi/chi/v5"

// MountRoutes attaches ledger endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/entries", h.listEntries)
	r.Post("/entries", h.createEntry)
	r.Get("/entries/{id}", h.getEntry)
	r.Post("/entries/{id}/post", h.postEntry)
	r.Post("/entries/{id}/reverse", h.reverseEntry)
	r.Get("/trial-balance", h.trialBalance)
	r.Get("/accounts/{id}/ledger", h.accountLedger)
}
