package bank

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ispbooks/ispbooks/internal/coa"
	"github.com/ispbooks/ispbooks/internal/ledger"
)

// LedgerPort is the slice of the ledger engine the bank subsystem uses.
type LedgerPort interface {
	CreateEntry(ctx context.Context, input ledger.CreateEntryInput) (ledger.JournalEntry, error)
}

// Service manages bank accounts, transactions and statement imports, posting
// a mirroring journal entry for every movement.
type Service struct {
	repo   Repository
	ledger LedgerPort
	roles  coa.RoleMap
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds a Service instance.
func NewService(repo Repository, ledgerPort LedgerPort, roles coa.RoleMap, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, ledger: ledgerPort, roles: roles, logger: logger, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateAccount opens a bank account. A non-zero opening balance is recorded
// with an opening-balance journal entry against retained earnings.
func (s *Service) CreateAccount(ctx context.Context, input CreateAccountInput) (Account, error) {
	if err := input.Validate(); err != nil {
		return Account{}, err
	}
	if input.Currency == "" {
		input.Currency = "USD"
	}
	account := Account{
		Name:           input.Name,
		BankName:       input.BankName,
		AccountNumber:  input.AccountNumber,
		Currency:       input.Currency,
		OpeningBalance: input.OpeningBalance,
		CurrentBalance: input.OpeningBalance,
		IsActive:       true,
	}
	id, err := s.repo.CreateAccount(ctx, account)
	if err != nil {
		return Account{}, err
	}
	account.ID = id
	if input.OpeningBalance != 0 {
		if err := s.postOpeningBalance(ctx, account); err != nil {
			return Account{}, err
		}
	}
	s.logger.Info("bank account created", slog.Int64("account_id", id), slog.String("name", account.Name))
	return account, nil
}

// RecordTransaction records one movement, updates the running balance and
// posts the mirroring journal entry unless the input suppresses it.
func (s *Service) RecordTransaction(ctx context.Context, input TransactionInput) (Transaction, error) {
	if err := input.Validate(); err != nil {
		return Transaction{}, err
	}
	account, err := s.repo.GetAccount(ctx, input.AccountID)
	if err != nil {
		return Transaction{}, err
	}
	dup, err := s.repo.FindDuplicate(ctx, input.AccountID, input.Date, input.Amount, input.Description)
	if err != nil {
		return Transaction{}, err
	}
	if dup {
		return Transaction{}, ErrDuplicate
	}
	newBalance := account.CurrentBalance
	if input.Type == TxnCredit {
		newBalance += input.Amount
	} else {
		newBalance -= input.Amount
	}
	sourceType := input.SourceType
	if sourceType == "" {
		sourceType = "manual"
	}
	txn := Transaction{
		AccountID:    input.AccountID,
		Date:         input.Date,
		Type:         input.Type,
		Amount:       input.Amount,
		Description:  input.Description,
		Reference:    input.Reference,
		StatementRef: input.StatementRef,
		BalanceAfter: newBalance,
		SourceType:   sourceType,
		SourceID:     input.SourceID,
	}
	id, err := s.repo.CreateTransaction(ctx, txn)
	if err != nil {
		return Transaction{}, err
	}
	txn.ID = id
	if err := s.repo.UpdateAccountBalance(ctx, account.ID, newBalance); err != nil {
		return Transaction{}, err
	}
	if !input.SkipJournal {
		if err := s.postTransactionEntry(ctx, txn, account); err != nil {
			return Transaction{}, err
		}
	}
	return txn, nil
}

// RecordTransfer moves money between two accounts as paired transactions plus
// one combined journal entry, so the ledger sees a single balanced event.
func (s *Service) RecordTransfer(ctx context.Context, fromID, toID int64, amount float64, date time.Time, description string) (TransferResult, error) {
	if amount <= 0 {
		return TransferResult{}, ErrInvalidAmount
	}
	from, err := s.repo.GetAccount(ctx, fromID)
	if err != nil {
		return TransferResult{}, err
	}
	to, err := s.repo.GetAccount(ctx, toID)
	if err != nil {
		return TransferResult{}, err
	}
	debit, err := s.RecordTransaction(ctx, TransactionInput{
		AccountID:   fromID,
		Date:        date,
		Type:        TxnDebit,
		Amount:      amount,
		Description: "Transfer to " + to.Name + ": " + description,
		SourceType:  "transfer",
		SkipJournal: true,
	})
	if err != nil {
		return TransferResult{}, err
	}
	credit, err := s.RecordTransaction(ctx, TransactionInput{
		AccountID:   toID,
		Date:        date,
		Type:        TxnCredit,
		Amount:      amount,
		Description: "Transfer from " + from.Name + ": " + description,
		SourceType:  "transfer",
		SourceID:    debit.ID,
		SkipJournal: true,
	})
	if err != nil {
		return TransferResult{}, err
	}
	bankCode, err := s.roles.Code(coa.RoleBankAccount)
	if err != nil {
		return TransferResult{}, err
	}
	_, err = s.ledger.CreateEntry(ctx, ledger.CreateEntryInput{
		Date:        date,
		Reference:   fmt.Sprintf("XFER-%d-%d", debit.ID, credit.ID),
		Description: fmt.Sprintf("Bank transfer: %s to %s - %s", from.Name, to.Name, description),
		SourceType:  ledger.SourceBankTransfer,
		SourceID:    debit.ID,
		Lines: []ledger.LineInput{
			{AccountCode: bankCode, Debit: amount, Description: "Transfer received"},
			{AccountCode: bankCode, Credit: amount, Description: "Transfer sent"},
		},
		AutoPost: true,
	})
	if err != nil {
		return TransferResult{}, err
	}
	return TransferResult{DebitTransactionID: debit.ID, CreditTransactionID: credit.ID}, nil
}

// Balance returns the current balance, or the derived balance at a past date
// when asOf is non-zero.
func (s *Service) Balance(ctx context.Context, accountID int64, asOf time.Time) (float64, error) {
	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}
	if asOf.IsZero() {
		return account.CurrentBalance, nil
	}
	return s.repo.BalanceAsOf(ctx, accountID, asOf)
}

// Transactions lists movements for an account, defaulting to the last 30 days.
func (s *Service) Transactions(ctx context.Context, accountID int64, from, to time.Time) ([]Transaction, error) {
	if to.IsZero() {
		to = s.now()
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -30)
	}
	return s.repo.Transactions(ctx, accountID, from, to)
}

// Accounts lists active bank accounts.
func (s *Service) Accounts(ctx context.Context) ([]Account, error) {
	return s.repo.ListAccounts(ctx)
}

// StatementSummary computes a statement-style report over a period.
func (s *Service) StatementSummary(ctx context.Context, accountID int64, from, to time.Time) (StatementSummary, error) {
	opening, err := s.Balance(ctx, accountID, from.AddDate(0, 0, -1))
	if err != nil {
		return StatementSummary{}, err
	}
	txns, err := s.repo.Transactions(ctx, accountID, from, to)
	if err != nil {
		return StatementSummary{}, err
	}
	summary := StatementSummary{
		From:             from,
		To:               to,
		OpeningBalance:   opening,
		TransactionCount: len(txns),
		Transactions:     txns,
	}
	for _, txn := range txns {
		if txn.Type == TxnDebit {
			summary.TotalDebits += txn.Amount
		} else {
			summary.TotalCredits += txn.Amount
		}
	}
	summary.ClosingBalance = opening + summary.TotalCredits - summary.TotalDebits
	return summary, nil
}

func (s *Service) postOpeningBalance(ctx context.Context, account Account) error {
	bankCode, err := s.roles.Code(coa.RoleBankAccount)
	if err != nil {
		return err
	}
	equityCode, err := s.roles.Code(coa.RoleRetainedEarnings)
	if err != nil {
		return err
	}
	amount := account.OpeningBalance
	var bankLine, equityLine ledger.LineInput
	if amount > 0 {
		bankLine = ledger.LineInput{AccountCode: bankCode, Debit: amount, Description: "Opening balance"}
		equityLine = ledger.LineInput{AccountCode: equityCode, Credit: amount, Description: "Opening balance equity"}
	} else {
		bankLine = ledger.LineInput{AccountCode: bankCode, Credit: -amount, Description: "Opening balance"}
		equityLine = ledger.LineInput{AccountCode: equityCode, Debit: -amount, Description: "Opening balance equity"}
	}
	_, err = s.ledger.CreateEntry(ctx, ledger.CreateEntryInput{
		Date:        s.now(),
		Reference:   fmt.Sprintf("OB-BANK-%d", account.ID),
		Description: "Opening balance: " + account.Name,
		SourceType:  ledger.SourceOpeningBalance,
		SourceID:    account.ID,
		Lines:       []ledger.LineInput{bankLine, equityLine},
		AutoPost:    true,
	})
	return err
}

// postTransactionEntry books a credit as bank against other revenue and a
// debit as other expenses against bank. Flows that know the real
// counter-account record their own entries and skip this default.
func (s *Service) postTransactionEntry(ctx context.Context, txn Transaction, account Account) error {
	bankCode, err := s.roles.Code(coa.RoleBankAccount)
	if err != nil {
		return err
	}
	var lines []ledger.LineInput
	if txn.Type == TxnCredit {
		revenueCode, err := s.roles.Code(coa.RoleOtherRevenue)
		if err != nil {
			return err
		}
		lines = []ledger.LineInput{
			{AccountCode: bankCode, Debit: txn.Amount, Description: txn.Description},
			{AccountCode: revenueCode, Credit: txn.Amount, Description: txn.Description},
		}
	} else {
		expenseCode, err := s.roles.Code(coa.RoleOtherExpenses)
		if err != nil {
			return err
		}
		lines = []ledger.LineInput{
			{AccountCode: expenseCode, Debit: txn.Amount, Description: txn.Description},
			{AccountCode: bankCode, Credit: txn.Amount, Description: txn.Description},
		}
	}
	_, err = s.ledger.CreateEntry(ctx, ledger.CreateEntryInput{
		Date:        txn.Date,
		Reference:   fmt.Sprintf("BANK-%d", txn.ID),
		Description: "Bank transaction: " + account.Name,
		SourceType:  ledger.SourceBankTransaction,
		SourceID:    txn.ID,
		Lines:       lines,
		AutoPost:    true,
	})
	return err
}
