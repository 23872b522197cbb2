package dashboard

import "github.com/go-chi/chi/v5"

// MountRoutes attaches dashboard endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/summary", h.summary)
	r.Get("/cash-flow", h.cashFlow)
	r.Get("/receivables", h.receivables)
	r.Get("/alerts", h.alerts)
	r.Get("/activity", h.activity)
	r.Get("/profit-loss", h.profitLoss)
	r.Post("/cache/invalidate", h.invalidate)
}
