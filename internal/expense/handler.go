package expense

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ispbooks/ispbooks/internal/platform/httpx"
)

// Handler exposes the expense workflow over HTTP.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

type createRequest struct {
	CategoryID      int64   `json:"category_id"`
	VendorID        *int64  `json:"vendor_id"`
	Amount          float64 `json:"amount"`
	TaxAmount       float64 `json:"tax_amount"`
	Date            string  `json:"expense_date"`
	Description     string  `json:"description"`
	Reference       string  `json:"reference"`
	PaymentSource   string  `json:"payment_source"`
	PaymentSourceID int64   `json:"payment_source_id"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "expense_date must be YYYY-MM-DD")
		return
	}
	e, err := h.service.Create(r.Context(), CreateInput{
		CategoryID:      req.CategoryID,
		VendorID:        req.VendorID,
		Amount:          req.Amount,
		TaxAmount:       req.TaxAmount,
		Date:            date,
		Description:     req.Description,
		Reference:       req.Reference,
		PaymentSource:   req.PaymentSource,
		PaymentSourceID: req.PaymentSourceID,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, e)
}

type decisionRequest struct {
	Comments string `json:"comments"`
	Reason   string `json:"reason"`
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "expense id must be numeric")
		return
	}
	var req decisionRequest
	_ = httpx.DecodeJSON(r, &req)
	if err := h.service.Approve(r.Context(), id, 0, req.Comments); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": string(StatusApproved)})
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "expense id must be numeric")
		return
	}
	var req decisionRequest
	_ = httpx.DecodeJSON(r, &req)
	if err := h.service.Reject(r.Context(), id, 0, req.Reason); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": string(StatusRejected)})
}

func (h *Handler) pay(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "expense id must be numeric")
		return
	}
	if err := h.service.ProcessPayment(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": string(StatusPaid)})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "expense id must be numeric")
		return
	}
	e, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, e)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	if status := r.URL.Query().Get("status"); status != "" {
		expenses, err := h.service.ByStatus(r.Context(), Status(status))
		if err != nil {
			h.respondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, expenses)
		return
	}
	summary, err := h.service.Summarize(r.Context(), time.Time{}, time.Time{})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrCategoryNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrNotPending), errors.Is(err, ErrNotApproved), errors.Is(err, ErrAlreadyPaid):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrValidation), errors.Is(err, ErrBankAccountRequired):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("expense handler", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
