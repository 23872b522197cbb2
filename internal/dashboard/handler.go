package dashboard

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ispbooks/ispbooks/internal/platform/httpx"
)

// Handler exposes the dashboard aggregates.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) respond(w http.ResponseWriter, data any, err error, what string) {
	if err != nil {
		h.logger.Error(what, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, data)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.service.Summary(r.Context())
	h.respond(w, metrics, err, "dashboard summary")
}

func (h *Handler) cashFlow(w http.ResponseWriter, r *http.Request) {
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	points, err := h.service.CashFlowChart(r.Context(), days)
	h.respond(w, points, err, "dashboard cash flow")
}

func (h *Handler) receivables(w http.ResponseWriter, r *http.Request) {
	aging, err := h.service.ReceivablesAging(r.Context())
	h.respond(w, aging, err, "dashboard receivables")
}

func (h *Handler) alerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.service.Alerts(r.Context())
	h.respond(w, alerts, err, "dashboard alerts")
}

func (h *Handler) activity(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := h.service.RecentActivity(r.Context(), limit)
	h.respond(w, items, err, "dashboard activity")
}

func (h *Handler) profitLoss(w http.ResponseWriter, r *http.Request) {
	from, err := time.Parse("2006-01-02", r.URL.Query().Get("from"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Range", "from must be YYYY-MM-DD")
		return
	}
	to, err := time.Parse("2006-01-02", r.URL.Query().Get("to"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Range", "to must be YYYY-MM-DD")
		return
	}
	pl, err := h.service.ProfitAndLoss(r.Context(), from, to)
	h.respond(w, pl, err, "dashboard profit and loss")
}

func (h *Handler) invalidate(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Invalidate(r.Context()); err != nil {
		h.logger.Error("dashboard invalidate", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
