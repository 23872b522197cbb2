package bank

import "github.com/go-chi/chi/v5"

// MountRoutes attaches bank endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/accounts", h.listAccounts)
	r.Post("/accounts", h.createAccount)
	r.Post("/accounts/{id}/transactions", h.recordTransaction)
	r.Post("/accounts/{id}/import", h.importStatement)
	r.Get("/accounts/{id}/summary", h.statementSummary)
	r.Post("/transfers", h.recordTransfer)
}
