package uisp

import "github.com/go-chi/chi/v5"

// MountRoutes attaches sync endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/sync", h.syncAll)
	r.Post("/sync/customers", h.syncCustomers)
	r.Post("/sync/invoices", h.syncInvoices)
	r.Post("/sync/payments", h.syncPayments)
	r.Get("/customers", h.listCustomers)
}
