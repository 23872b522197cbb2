package bank

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// CreateAccountInput is the payload for opening a bank account.
type CreateAccountInput struct {
	Name           string  `json:"name" validate:"required"`
	BankName       string  `json:"bank_name"`
	AccountNumber  string  `json:"account_number"`
	Currency       string  `json:"currency" validate:"omitempty,len=3"`
	OpeningBalance float64 `json:"opening_balance"`
}

// Validate checks required fields.
func (in CreateAccountInput) Validate() error {
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("bank: invalid account input: %w", err)
	}
	return nil
}

// TransactionInput is the payload for recording one bank movement.
type TransactionInput struct {
	AccountID    int64     `json:"account_id" validate:"required"`
	Date         time.Time `json:"transaction_date" validate:"required"`
	Type         TxnType   `json:"type" validate:"required,oneof=debit credit"`
	Amount       float64   `json:"amount" validate:"required,gt=0"`
	Description  string    `json:"description"`
	Reference    string    `json:"reference"`
	StatementRef string    `json:"statement_ref"`
	SourceType   string    `json:"source_type"`
	SourceID     int64     `json:"source_id"`

	// SkipJournal suppresses the automatic ledger entry. Used by flows that
	// post one combined entry for several transactions, such as transfers.
	SkipJournal bool `json:"-"`
}

// Validate checks required fields and the amount sign.
func (in TransactionInput) Validate() error {
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("bank: invalid transaction input: %w", err)
	}
	return nil
}

// TransferResult identifies the two legs of an internal transfer.
type TransferResult struct {
	DebitTransactionID  int64 `json:"debit_transaction_id"`
	CreditTransactionID int64 `json:"credit_transaction_id"`
}

// StatementSummary is a computed statement over a period.
type StatementSummary struct {
	From             time.Time     `json:"from"`
	To               time.Time     `json:"to"`
	OpeningBalance   float64       `json:"opening_balance"`
	TotalCredits     float64       `json:"total_credits"`
	TotalDebits      float64       `json:"total_debits"`
	ClosingBalance   float64       `json:"closing_balance"`
	TransactionCount int           `json:"transaction_count"`
	Transactions     []Transaction `json:"transactions"`
}
