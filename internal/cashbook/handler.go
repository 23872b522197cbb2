package cashbook

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ispbooks/ispbooks/internal/platform/httpx"
)

// Handler exposes the cashbook over HTTP.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

type transactionRequest struct {
	Date          string  `json:"transaction_date"`
	Type          TxnType `json:"type"`
	Category      string  `json:"category"`
	Amount        float64 `json:"amount"`
	Description   string  `json:"description"`
	Reference     string  `json:"reference"`
	AllowNegative bool    `json:"allow_negative"`
}

func (h *Handler) recordTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "transaction_date must be YYYY-MM-DD")
		return
	}
	txn, err := h.service.RecordTransaction(r.Context(), TransactionInput{
		Date:          date,
		Type:          req.Type,
		Category:      req.Category,
		Amount:        req.Amount,
		Description:   req.Description,
		Reference:     req.Reference,
		AllowNegative: req.AllowNegative,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, txn)
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	var asOf time.Time
	if v := r.URL.Query().Get("as_of"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "as_of must be YYYY-MM-DD")
			return
		}
		asOf = t
	}
	balance, err := h.service.CurrentBalance(r.Context(), asOf)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]float64{"balance": balance})
}

func (h *Handler) dailySummary(w http.ResponseWriter, r *http.Request) {
	date, err := time.Parse("2006-01-02", chi.URLParam(r, "date"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "date must be YYYY-MM-DD")
		return
	}
	summary, err := h.service.DailySummary(r.Context(), date)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) report(w http.ResponseWriter, r *http.Request) {
	from, err := time.Parse("2006-01-02", r.URL.Query().Get("from"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "from must be YYYY-MM-DD")
		return
	}
	to, err := time.Parse("2006-01-02", r.URL.Query().Get("to"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "to must be YYYY-MM-DD")
		return
	}
	report, err := h.service.Report(r.Context(), from, to)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) closeDay(w http.ResponseWriter, r *http.Request) {
	date, err := time.Parse("2006-01-02", chi.URLParam(r, "date"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "date must be YYYY-MM-DD")
		return
	}
	if err := h.service.CloseDay(r.Context(), date, 0); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"closed": true})
}

func (h *Handler) reopenDay(w http.ResponseWriter, r *http.Request) {
	date, err := time.Parse("2006-01-02", chi.URLParam(r, "date"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "date must be YYYY-MM-DD")
		return
	}
	if err := h.service.ReopenDay(r.Context(), date); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"closed": false})
}

func (h *Handler) cashFlow(w http.ResponseWriter, r *http.Request) {
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	flow, err := h.service.CashFlowSummary(r.Context(), days)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, flow)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrSummaryNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDayClosed):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrInsufficientCash), errors.Is(err, ErrInvalidType), errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("cashbook handler", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
