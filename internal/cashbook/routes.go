package cashbook

import "github.com/go-chi/chi/v5"

// MountRoutes attaches cashbook endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/transactions", h.recordTransaction)
	r.Get("/balance", h.balance)
	r.Get("/report", h.report)
	r.Get("/cash-flow", h.cashFlow)
	r.Get("/days/{date}", h.dailySummary)
	r.Post("/days/{date}/close", h.closeDay)
	r.Post("/days/{date}/reopen", h.reopenDay)
}
