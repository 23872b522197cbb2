package uisp

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/ispbooks/ispbooks/internal/platform/httpx"
)

// Handler exposes sync triggers and the mirrored customer list.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func sinceParam(r *http.Request) time.Time {
	raw := r.URL.Query().Get("since")
	if raw == "" {
		return time.Time{}
	}
	since, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}
	}
	return since
}

func (h *Handler) syncAll(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.SyncAll(r.Context(), sinceParam(r))
	if err != nil {
		h.logger.Error("uisp sync", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Sync Failed", err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) syncCustomers(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.SyncCustomers(r.Context())
	if err != nil {
		h.logger.Error("uisp customer sync", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Sync Failed", err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func (h *Handler) syncInvoices(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.SyncInvoices(r.Context(), sinceParam(r))
	if err != nil {
		h.logger.Error("uisp invoice sync", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Sync Failed", err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func (h *Handler) syncPayments(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.SyncPayments(r.Context(), sinceParam(r))
	if err != nil {
		h.logger.Error("uisp payment sync", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Sync Failed", err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func (h *Handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	customers, err := h.service.Customers(r.Context(), activeOnly)
	if err != nil {
		h.logger.Error("uisp list customers", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, customers)
}
