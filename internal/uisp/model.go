package uisp

import (
	"errors"
	"time"
)

var (
	ErrCustomerNotFound = errors.New("uisp: customer not found")
	ErrInvoiceNotFound  = errors.New("uisp: invoice not found")
	ErrPaymentNotFound  = errors.New("uisp: payment not found")
)

// Customer is a subscriber mirrored from the UISP CRM.
type Customer struct {
	ID        int64     `json:"id"`
	UispID    int64     `json:"uisp_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address,omitempty"`
	IsActive  bool      `json:"is_active"`
	SyncedAt  time.Time `json:"synced_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// InvoiceStatus mirrors the UISP invoice lifecycle.
type InvoiceStatus string

const (
	InvoiceDraft   InvoiceStatus = "draft"
	InvoiceUnpaid  InvoiceStatus = "unpaid"
	InvoicePartial InvoiceStatus = "partially_paid"
	InvoicePaid    InvoiceStatus = "paid"
	InvoiceVoided  InvoiceStatus = "voided"
	InvoiceOverdue InvoiceStatus = "overdue"
)

// Invoice is a billing document mirrored from UISP.
type Invoice struct {
	ID         int64         `json:"id"`
	UispID     int64         `json:"uisp_id"`
	CustomerID int64         `json:"customer_id"`
	Number     string        `json:"number"`
	IssuedAt   time.Time     `json:"issued_at"`
	DueAt      time.Time     `json:"due_at"`
	Subtotal   float64       `json:"subtotal"`
	Tax        float64       `json:"tax"`
	Total      float64       `json:"total"`
	Status     InvoiceStatus `json:"status"`
	EntryID    *int64        `json:"journal_entry_id,omitempty"`
	SyncedAt   time.Time     `json:"synced_at"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Payment is a customer payment mirrored from UISP. CustomerName is joined in
// by the repository so matching can run without a second lookup.
type Payment struct {
	ID           int64     `json:"id"`
	UispID       int64     `json:"uisp_id"`
	CustomerID   int64     `json:"customer_id"`
	CustomerName string    `json:"customer_name"`
	InvoiceID    *int64    `json:"invoice_id,omitempty"`
	Amount       float64   `json:"amount"`
	Date         time.Time `json:"payment_date"`
	Method       string    `json:"method"`
	Reference    string    `json:"reference"`
	EntryID      *int64    `json:"journal_entry_id,omitempty"`
	SyncedAt     time.Time `json:"synced_at"`
	CreatedAt    time.Time `json:"created_at"`
}
