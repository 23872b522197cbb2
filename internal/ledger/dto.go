package ledger

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// balanceTolerance allows one cent of float rounding when comparing
// debit and credit totals.
const balanceTolerance = 0.01

// LineInput describes one journal line for entry creation. Exactly one of
// AccountID or AccountCode must resolve to an existing account.
type LineInput struct {
	AccountID   int64   `json:"account_id"`
	AccountCode string  `json:"account_code"`
	Debit       float64 `json:"debit"`
	Credit      float64 `json:"credit"`
	Description string  `json:"description"`
}

// CreateEntryInput groups fields required to create a journal entry.
type CreateEntryInput struct {
	Date        time.Time
	Description string
	Reference   string
	SourceType  string
	SourceID    int64
	Lines       []LineInput
	AutoPost    bool
	CreatedBy   int64
}

// Validate ensures the input satisfies the balance invariant before any
// line is persisted.
func (in CreateEntryInput) Validate() error {
	if in.Date.IsZero() {
		return errors.New("ledger: entry date required")
	}
	if in.Description == "" {
		return errors.New("ledger: description required")
	}
	if len(in.Lines) == 0 {
		return ErrNoLines
	}
	var debit, credit float64
	for idx, line := range in.Lines {
		if line.AccountID == 0 && line.AccountCode == "" {
			return fmt.Errorf("%w in line %d", ErrInvalidAccount, idx+1)
		}
		if line.Debit < 0 || line.Credit < 0 {
			return fmt.Errorf("ledger: negative amount in line %d", idx+1)
		}
		debit += line.Debit
		credit += line.Credit
	}
	if math.Abs(debit-credit) >= balanceTolerance {
		return ErrUnbalanced
	}
	return nil
}

// ListFilter narrows ListEntries results. Zero values match everything.
type ListFilter struct {
	From   time.Time
	To     time.Time
	Status EntryStatus
}

func balanced(lines []JournalLine) bool {
	var debit, credit float64
	for _, l := range lines {
		debit += l.Debit
		credit += l.Credit
	}
	return math.Abs(debit-credit) < balanceTolerance
}
