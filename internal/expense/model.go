package expense

import (
	"errors"
	"time"
)

var (
	ErrNotFound            = errors.New("expense: not found")
	ErrCategoryNotFound    = errors.New("expense: category not found")
	ErrNotPending          = errors.New("expense: only pending expenses can be approved or rejected")
	ErrNotApproved         = errors.New("expense: only approved expenses can be paid")
	ErrAlreadyPaid         = errors.New("expense: already paid")
	ErrBankAccountRequired = errors.New("expense: bank account not specified")
	ErrValidation          = errors.New("expense: invalid input")
)

// Status is the approval workflow state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusPaid     Status = "paid"
)

// Payment sources for a processed expense.
const (
	PayCash = "cash"
	PayBank = "bank"
)

// Category groups expenses and optionally maps them to a ledger account.
type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	AccountCode string `json:"account_code,omitempty"`
}

// Expense is one operating expense moving through the approval workflow.
type Expense struct {
	ID              int64      `json:"id"`
	Number          string     `json:"expense_number"`
	VendorID        *int64     `json:"vendor_id,omitempty"`
	VendorName      string     `json:"vendor_name,omitempty"`
	CategoryID      int64      `json:"category_id"`
	CategoryName    string     `json:"category_name,omitempty"`
	Amount          float64    `json:"amount"`
	TaxAmount       float64    `json:"tax_amount"`
	TotalAmount     float64    `json:"total_amount"`
	Date            time.Time  `json:"expense_date"`
	Description     string     `json:"description"`
	Reference       string     `json:"reference,omitempty"`
	PaymentSource   string     `json:"payment_source,omitempty"`
	PaymentSourceID int64      `json:"payment_source_id,omitempty"`
	Status          Status     `json:"status"`
	SubmittedBy     int64      `json:"submitted_by,omitempty"`
	ApprovedBy      *int64     `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// ApprovalLog is one decision in an expense's approval history.
type ApprovalLog struct {
	ID             int64     `json:"id"`
	ExpenseID      int64     `json:"expense_id"`
	Action         string    `json:"action"`
	ApproverID     int64     `json:"approver_id"`
	PreviousStatus Status    `json:"previous_status"`
	NewStatus      Status    `json:"new_status"`
	Comments       string    `json:"comments,omitempty"`
	At             time.Time `json:"timestamp"`
}

// Summary aggregates expenses over a period by status, category and vendor.
type Summary struct {
	TotalExpenses float64            `json:"total_expenses"`
	TotalPending  float64            `json:"total_pending"`
	TotalApproved float64            `json:"total_approved"`
	TotalPaid     float64            `json:"total_paid"`
	TotalRejected float64            `json:"total_rejected"`
	CountPending  int                `json:"count_pending"`
	CountApproved int                `json:"count_approved"`
	CountPaid     int                `json:"count_paid"`
	CountRejected int                `json:"count_rejected"`
	ByCategory    map[string]float64 `json:"by_category"`
	ByVendor      map[string]float64 `json:"by_vendor"`
}
