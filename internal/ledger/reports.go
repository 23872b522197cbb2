package ledger

import (
	"context"
	"math"
	"time"

	"github.com/ispbooks/ispbooks/internal/coa"
)

// TrialBalanceRow is one non-zero account on the trial balance.
// Debit and Credit are the column amounts under the type convention;
// Balance carries the signed balance regardless of column assignment, so a
// balance sitting on the wrong side of its type's convention (which appears
// in neither column) is still visible to callers.
type TrialBalanceRow struct {
	Code    string          `json:"code"`
	Name    string          `json:"name"`
	Type    coa.AccountType `json:"type"`
	Debit   float64         `json:"debit"`
	Credit  float64         `json:"credit"`
	Balance float64         `json:"balance"`
}

// TrialBalance is the point-in-time debit/credit report across all accounts.
type TrialBalance struct {
	AsOf         time.Time         `json:"as_of_date"`
	Accounts     []TrialBalanceRow `json:"accounts"`
	TotalDebits  float64           `json:"total_debits"`
	TotalCredits float64           `json:"total_credits"`
	Difference   float64           `json:"difference"`
	IsBalanced   bool              `json:"is_balanced"`
}

// LedgerRow is one journal line in an account ledger with the running
// balance after applying it.
type LedgerRow struct {
	Date        time.Time `json:"date"`
	EntryNumber string    `json:"entry_number"`
	Description string    `json:"description"`
	Reference   string    `json:"reference"`
	Debit       float64   `json:"debit"`
	Credit      float64   `json:"credit"`
	Balance     float64   `json:"balance"`
}

// AccountLedger is the detailed transaction report for one account.
type AccountLedger struct {
	Account        coa.Account `json:"account"`
	From           time.Time   `json:"from"`
	To             time.Time   `json:"to"`
	OpeningBalance float64     `json:"opening_balance"`
	ClosingBalance float64     `json:"closing_balance"`
	Rows           []LedgerRow `json:"transactions"`
}

// TrialBalance reports every account with a non-zero balance as of the date,
// split into debit/credit columns by the account type's normal side.
func (s *Service) TrialBalance(ctx context.Context, asOf time.Time) (TrialBalance, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	accounts, err := s.repo.ListAccounts(ctx)
	if err != nil {
		return TrialBalance{}, err
	}
	report := TrialBalance{AsOf: asOf}
	for _, account := range accounts {
		balance, err := s.repo.BalanceAsOf(ctx, account.ID, asOf)
		if err != nil {
			return TrialBalance{}, err
		}
		if balance == 0 {
			continue
		}
		row := TrialBalanceRow{
			Code:    account.Code,
			Name:    account.Name,
			Type:    account.Type,
			Balance: balance,
		}
		if balance > 0 {
			if account.Type.NormalBalance() == coa.DebitSide {
				row.Debit = balance
			} else {
				row.Credit = balance
			}
		}
		report.Accounts = append(report.Accounts, row)
		report.TotalDebits += row.Debit
		report.TotalCredits += row.Credit
	}
	report.Difference = math.Abs(report.TotalDebits - report.TotalCredits)
	report.IsBalanced = report.Difference < balanceTolerance
	return report, nil
}

// AccountLedger walks all posted lines touching the account within the range
// in chronological order, accumulating a running balance from the opening
// balance as of the day before from.
func (s *Service) AccountLedger(ctx context.Context, accountID int64, from, to time.Time) (AccountLedger, error) {
	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return AccountLedger{}, err
	}
	opening, err := s.repo.BalanceAsOf(ctx, accountID, from.AddDate(0, 0, -1))
	if err != nil {
		return AccountLedger{}, err
	}
	txns, err := s.repo.AccountTransactions(ctx, accountID, from, to)
	if err != nil {
		return AccountLedger{}, err
	}
	report := AccountLedger{
		Account:        account,
		From:           from,
		To:             to,
		OpeningBalance: opening,
		ClosingBalance: opening,
	}
	running := opening
	for _, txn := range txns {
		running += account.Type.Delta(txn.Debit, txn.Credit)
		report.Rows = append(report.Rows, LedgerRow{
			Date:        txn.Date,
			EntryNumber: txn.EntryNumber,
			Description: txn.Description,
			Reference:   txn.Reference,
			Debit:       txn.Debit,
			Credit:      txn.Credit,
			Balance:     running,
		})
	}
	report.ClosingBalance = running
	return report, nil
}
