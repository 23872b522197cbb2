package bank

import (
	"errors"
	"time"
)

var (
	ErrAccountNotFound     = errors.New("bank: account not found")
	ErrTransactionNotFound = errors.New("bank: transaction not found")
	ErrDuplicate           = errors.New("bank: duplicate transaction")
	ErrInvalidType         = errors.New("bank: invalid transaction type")
	ErrInvalidAmount       = errors.New("bank: amount must be positive")
)

// TxnType is the direction of a bank transaction from the account's
// perspective. Credit is money in, debit is money out.
type TxnType string

const (
	TxnDebit  TxnType = "debit"
	TxnCredit TxnType = "credit"
)

// Valid reports whether t is a known transaction type.
func (t TxnType) Valid() bool {
	return t == TxnDebit || t == TxnCredit
}

// Account is a real-world bank account tracked alongside its ledger mirror.
type Account struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	AccountNumber  string    `json:"account_number"`
	BankName       string    `json:"bank_name"`
	Currency       string    `json:"currency"`
	OpeningBalance float64   `json:"opening_balance"`
	CurrentBalance float64   `json:"current_balance"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Transaction is one movement on a bank account. Amount is always unsigned;
// Type carries the direction.
type Transaction struct {
	ID           int64      `json:"id"`
	AccountID    int64      `json:"bank_account_id"`
	Date         time.Time  `json:"transaction_date"`
	Type         TxnType    `json:"type"`
	Amount       float64    `json:"amount"`
	Description  string     `json:"description"`
	Reference    string     `json:"reference"`
	StatementRef string     `json:"statement_ref,omitempty"`
	BalanceAfter float64    `json:"balance_after"`
	Reconciled   bool       `json:"is_reconciled"`
	ReconciledAt *time.Time `json:"reconciled_at,omitempty"`
	SourceType   string     `json:"source_type"`
	SourceID     int64      `json:"source_id"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Statement is the header record for one imported bank statement.
type Statement struct {
	ID             int64      `json:"id"`
	AccountID      int64      `json:"bank_account_id"`
	Date           time.Time  `json:"statement_date"`
	OpeningBalance *float64   `json:"opening_balance,omitempty"`
	ClosingBalance *float64   `json:"closing_balance,omitempty"`
	Filename       string     `json:"filename"`
	CreatedAt      time.Time  `json:"created_at"`
}
