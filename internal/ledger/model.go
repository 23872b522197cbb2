package ledger

import "time"

// EntryStatus enumerates the journal entry lifecycle.
type EntryStatus string

const (
	StatusDraft    EntryStatus = "draft"
	StatusPosted   EntryStatus = "posted"
	StatusReversed EntryStatus = "reversed"
)

// Source types recorded on journal entries by producer subsystems.
const (
	SourceManual          = "manual"
	SourceReversal        = "reversal"
	SourceBankTransaction = "bank_transaction"
	SourceBankTransfer    = "bank_transfer"
	SourceOpeningBalance  = "opening_balance"
	SourceCashbook        = "cashbook"
	SourceExpense         = "expense"
	SourceUispInvoice     = "uisp_invoice"
	SourceUispPayment     = "uisp_payment"
)

// JournalEntry captures a double-entry journal header and its lines.
type JournalEntry struct {
	ID          int64
	Number      string
	Date        time.Time
	Reference   string
	Description string
	SourceType  string
	SourceID    int64
	Status      EntryStatus
	CreatedBy   int64
	CreatedAt   time.Time
	PostedBy    *int64
	PostedAt    *time.Time
	UpdatedAt   time.Time
	Lines       []JournalLine
}

// JournalLine stores one debit or credit amount against an account.
// Lines are ordered by a 1-based line number within their entry.
type JournalLine struct {
	ID          int64
	EntryID     int64
	LineNumber  int
	AccountID   int64
	Debit       float64
	Credit      float64
	Description string
}
