package recon

import (
	"time"

	"github.com/ispbooks/ispbooks/internal/uisp"
)

// MatchType records who established a match.
type MatchType string

const (
	MatchAuto      MatchType = "auto"
	MatchManual    MatchType = "manual"
	MatchSuggested MatchType = "suggested"
)

// MatchStatus is the lifecycle state of a match record.
type MatchStatus string

const (
	StatusMatched   MatchStatus = "matched"
	StatusUnmatched MatchStatus = "unmatched"
	StatusSuggested MatchStatus = "suggested"
	StatusDisputed  MatchStatus = "disputed"
)

// Match links one bank transaction to one payment. A transaction has at most
// one current match; superseding decisions update the row rather than insert
// a new one, so the row doubles as match history for the transaction.
type Match struct {
	ID                int64       `json:"id"`
	BankTransactionID int64       `json:"bank_transaction_id"`
	PaymentID         int64       `json:"payment_id"`
	MatchType         MatchType   `json:"match_type"`
	ConfidenceScore   int         `json:"confidence_score"`
	Status            MatchStatus `json:"status"`
	Notes             string      `json:"notes"`
	MatchedAt         *time.Time  `json:"matched_at,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// Strategy names for candidates produced by the matcher.
const (
	StrategyExactAmountDate = "exact_amount_date"
	StrategyReference       = "reference"
	StrategyFuzzyName       = "fuzzy_name"
)

// Candidate is one ranked match proposal for a bank transaction.
type Candidate struct {
	PaymentID  int64        `json:"payment_id"`
	Payment    uisp.Payment `json:"payment"`
	Confidence int          `json:"confidence"`
	Strategy   string       `json:"match_type"`
	Reason     string       `json:"reason"`
}

// Result summarizes one auto-reconciliation batch.
type Result struct {
	TotalProcessed   int `json:"total_processed"`
	AutoMatched      int `json:"auto_matched"`
	SuggestedMatches int `json:"suggested_matches"`
	NoMatch          int `json:"no_match"`
	Errors           int `json:"errors"`
}

// Summary is the reconciliation status report for an account (or all
// accounts when unscoped).
type Summary struct {
	Total        int64   `json:"total_transactions"`
	Reconciled   int64   `json:"reconciled"`
	Unreconciled int64   `json:"unreconciled"`
	Suggested    int64   `json:"pending_suggestions"`
	Rate         float64 `json:"reconciliation_rate"`
}
