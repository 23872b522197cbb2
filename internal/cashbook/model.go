package cashbook

import (
	"errors"
	"time"
)

var (
	ErrInsufficientCash = errors.New("cashbook: insufficient cash balance")
	ErrDayClosed        = errors.New("cashbook: day already closed")
	ErrInvalidType      = errors.New("cashbook: type must be receipt or payment")
	ErrValidation       = errors.New("cashbook: invalid input")
	ErrSummaryNotFound  = errors.New("cashbook: daily summary not found")
)

// TxnType is the direction of a cash movement.
type TxnType string

const (
	TxnReceipt TxnType = "receipt"
	TxnPayment TxnType = "payment"
)

// Valid reports whether t is a known cash transaction type.
func (t TxnType) Valid() bool {
	return t == TxnReceipt || t == TxnPayment
}

// Transaction is one cash movement in the single physical cashbook.
type Transaction struct {
	ID           int64     `json:"id"`
	Date         time.Time `json:"transaction_date"`
	Type         TxnType   `json:"type"`
	Category     string    `json:"category,omitempty"`
	Amount       float64   `json:"amount"`
	Description  string    `json:"description"`
	Reference    string    `json:"reference,omitempty"`
	SourceType   string    `json:"source_type"`
	SourceID     int64     `json:"source_id,omitempty"`
	BalanceAfter float64   `json:"balance_after"`
	CreatedBy    int64     `json:"created_by,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// DailySummary is the per-day cash position, persisted so closed days keep
// their figures even if history is amended elsewhere.
type DailySummary struct {
	Date           time.Time  `json:"summary_date"`
	OpeningBalance float64    `json:"opening_balance"`
	TotalReceipts  float64    `json:"total_receipts"`
	TotalPayments  float64    `json:"total_payments"`
	ClosingBalance float64    `json:"closing_balance"`
	IsClosed       bool       `json:"is_closed"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`
	ClosedBy       *int64     `json:"closed_by,omitempty"`
}

// DailyFlow is one day in the cash flow summary.
type DailyFlow struct {
	Date     time.Time `json:"date"`
	Receipts float64   `json:"receipts"`
	Payments float64   `json:"payments"`
	Net      float64   `json:"net"`
	Balance  float64   `json:"balance"`
}

// CashFlow aggregates daily flows over a trailing window.
type CashFlow struct {
	PeriodDays    int         `json:"period_days"`
	StartDate     time.Time   `json:"start_date"`
	EndDate       time.Time   `json:"end_date"`
	Daily         []DailyFlow `json:"daily_data"`
	TotalReceipts float64     `json:"total_receipts"`
	TotalPayments float64     `json:"total_payments"`
	NetChange     float64     `json:"net_change"`
}

// ReportRow is one transaction in the cashbook report with receipt and
// payment columns and the running balance.
type ReportRow struct {
	Date        time.Time `json:"date"`
	Type        TxnType   `json:"type"`
	Category    string    `json:"category,omitempty"`
	Description string    `json:"description"`
	Reference   string    `json:"reference,omitempty"`
	Receipt     float64   `json:"receipt"`
	Payment     float64   `json:"payment"`
	Balance     float64   `json:"balance"`
}

// Report is the cashbook over a period.
type Report struct {
	From           time.Time   `json:"from"`
	To             time.Time   `json:"to"`
	OpeningBalance float64     `json:"opening_balance"`
	TotalReceipts  float64     `json:"total_receipts"`
	TotalPayments  float64     `json:"total_payments"`
	ClosingBalance float64     `json:"closing_balance"`
	Rows           []ReportRow `json:"transactions"`
}

// CategoryTotal is one aggregated expense category.
type CategoryTotal struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
	Count    int     `json:"count"`
}
