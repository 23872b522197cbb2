package recon

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ispbooks/ispbooks/internal/bank"
	"github.com/ispbooks/ispbooks/internal/platform/httpx"
	"github.com/ispbooks/ispbooks/internal/uisp"
)

// Handler exposes the matching engine over HTTP.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func accountIDParam(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.URL.Query().Get("account_id"), 10, 64)
	return id
}

func (h *Handler) autoReconcile(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.AutoReconcile(r.Context(), accountIDParam(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) findMatches(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "transaction id must be numeric")
		return
	}
	txn, err := h.service.repo.GetTransaction(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	candidates, err := h.service.FindMatches(r.Context(), txn)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, candidates)
}

type confirmRequest struct {
	BankTransactionID int64  `json:"bank_transaction_id" validate:"required"`
	PaymentID         int64  `json:"payment_id" validate:"required"`
	Notes             string `json:"notes"`
}

func (h *Handler) confirmMatch(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if req.BankTransactionID == 0 || req.PaymentID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "bank_transaction_id and payment_id are required")
		return
	}
	err := h.service.ConfirmMatch(r.Context(), req.BankTransactionID, req.PaymentID, MatchManual, 100, req.Notes)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"matched": true})
}

func (h *Handler) unmatch(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "transaction id must be numeric")
		return
	}
	if err := h.service.Unmatch(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"unmatched": true})
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Status(r.Context(), accountIDParam(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) suggestions(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.UnreconciledWithSuggestions(r.Context(), accountIDParam(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, bank.ErrTransactionNotFound),
		errors.Is(err, uisp.ErrPaymentNotFound),
		errors.Is(err, ErrMatchNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrAlreadyMatched):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrBadConfidence):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("recon handler", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
