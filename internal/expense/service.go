package expense

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ispbooks/ispbooks/internal/bank"
	"github.com/ispbooks/ispbooks/internal/cashbook"
	"github.com/ispbooks/ispbooks/internal/coa"
	"github.com/ispbooks/ispbooks/internal/ledger"
)

var validate = validator.New()

// LedgerPort is the slice of the ledger engine used when paying expenses.
type LedgerPort interface {
	CreateEntry(ctx context.Context, input ledger.CreateEntryInput) (ledger.JournalEntry, error)
}

// CashbookPort records cash-paid expenses in the cashbook.
type CashbookPort interface {
	RecordTransaction(ctx context.Context, input cashbook.TransactionInput) (cashbook.Transaction, error)
}

// BankPort records bank-paid expenses against the bank account.
type BankPort interface {
	RecordTransaction(ctx context.Context, input bank.TransactionInput) (bank.Transaction, error)
}

// CreateInput is the payload for submitting an expense.
type CreateInput struct {
	CategoryID      int64     `json:"category_id" validate:"required"`
	VendorID        *int64    `json:"vendor_id"`
	Amount          float64   `json:"amount" validate:"required,gt=0"`
	TaxAmount       float64   `json:"tax_amount" validate:"gte=0"`
	Date            time.Time `json:"expense_date" validate:"required"`
	Description     string    `json:"description" validate:"required"`
	Reference       string    `json:"reference"`
	PaymentSource   string    `json:"payment_source" validate:"omitempty,oneof=cash bank"`
	PaymentSourceID int64     `json:"payment_source_id"`
	SubmittedBy     int64     `json:"-"`
}

// Validate checks required fields.
func (in CreateInput) Validate() error {
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

// Service manages the expense approval workflow and payment posting.
type Service struct {
	repo              Repository
	ledger            LedgerPort
	cashbook          CashbookPort
	bank              BankPort
	roles             coa.RoleMap
	approvalThreshold float64
	requireApproval   bool
	logger            *slog.Logger
	now               func() time.Time
}

// NewService builds a Service instance. Expenses below approvalThreshold are
// auto-approved when requireApproval is set; a zero threshold approves
// nothing automatically.
func NewService(repo Repository, ledgerPort LedgerPort, cashbookPort CashbookPort, bankPort BankPort,
	roles coa.RoleMap, approvalThreshold float64, requireApproval bool, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:              repo,
		ledger:            ledgerPort,
		cashbook:          cashbookPort,
		bank:              bankPort,
		roles:             roles,
		approvalThreshold: approvalThreshold,
		requireApproval:   requireApproval,
		logger:            logger,
		now:               time.Now,
	}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Create submits an expense. Small expenses under the approval threshold are
// approved immediately and, when a payment source is given, paid in the same
// call.
func (s *Service) Create(ctx context.Context, input CreateInput) (Expense, error) {
	if err := input.Validate(); err != nil {
		return Expense{}, err
	}
	if _, err := s.repo.GetCategory(ctx, input.CategoryID); err != nil {
		return Expense{}, err
	}
	number, err := s.nextNumber(ctx)
	if err != nil {
		return Expense{}, err
	}
	total := input.Amount + input.TaxAmount
	e := Expense{
		Number:          number,
		VendorID:        input.VendorID,
		CategoryID:      input.CategoryID,
		Amount:          input.Amount,
		TaxAmount:       input.TaxAmount,
		TotalAmount:     total,
		Date:            input.Date,
		Description:     input.Description,
		Reference:       input.Reference,
		PaymentSource:   input.PaymentSource,
		PaymentSourceID: input.PaymentSourceID,
		Status:          StatusPending,
		SubmittedBy:     input.SubmittedBy,
	}
	if !s.requireApproval || total < s.approvalThreshold {
		now := s.now()
		e.Status = StatusApproved
		e.ApprovedBy = &input.SubmittedBy
		e.ApprovedAt = &now
	}
	id, err := s.repo.Create(ctx, e)
	if err != nil {
		return Expense{}, err
	}
	e.ID = id
	s.logger.Info("expense created", slog.String("number", e.Number), slog.Float64("total", total))

	if e.Status == StatusApproved && e.PaymentSource != "" {
		if err := s.ProcessPayment(ctx, id); err != nil {
			return Expense{}, err
		}
		return s.repo.Find(ctx, id)
	}
	return e, nil
}

// Approve moves a pending expense to approved and pays it when a payment
// source was specified at submission.
func (s *Service) Approve(ctx context.Context, expenseID, approverID int64, comments string) error {
	e, err := s.repo.Find(ctx, expenseID)
	if err != nil {
		return err
	}
	if e.Status != StatusPending {
		return ErrNotPending
	}
	now := s.now()
	if err := s.repo.MarkApproved(ctx, expenseID, approverID, now); err != nil {
		return err
	}
	_ = s.repo.LogApproval(ctx, ApprovalLog{
		ExpenseID:      expenseID,
		Action:         "approve",
		ApproverID:     approverID,
		PreviousStatus: e.Status,
		NewStatus:      StatusApproved,
		Comments:       comments,
		At:             now,
	})
	s.logger.Info("expense approved", slog.String("number", e.Number))
	if e.PaymentSource != "" {
		return s.ProcessPayment(ctx, expenseID)
	}
	return nil
}

// Reject moves a pending expense to rejected.
func (s *Service) Reject(ctx context.Context, expenseID, approverID int64, reason string) error {
	e, err := s.repo.Find(ctx, expenseID)
	if err != nil {
		return err
	}
	if e.Status != StatusPending {
		return ErrNotPending
	}
	if err := s.repo.MarkRejected(ctx, expenseID); err != nil {
		return err
	}
	_ = s.repo.LogApproval(ctx, ApprovalLog{
		ExpenseID:      expenseID,
		Action:         "reject",
		ApproverID:     approverID,
		PreviousStatus: e.Status,
		NewStatus:      StatusRejected,
		Comments:       reason,
		At:             s.now(),
	})
	s.logger.Info("expense rejected", slog.String("number", e.Number))
	return nil
}

// ProcessPayment pays an approved expense: it books the balanced journal
// entry, records the outflow in the cashbook or against the bank account, and
// marks the expense paid.
func (s *Service) ProcessPayment(ctx context.Context, expenseID int64) error {
	e, err := s.repo.Find(ctx, expenseID)
	if err != nil {
		return err
	}
	switch e.Status {
	case StatusPaid:
		return ErrAlreadyPaid
	case StatusApproved:
	default:
		return ErrNotApproved
	}

	category, err := s.repo.GetCategory(ctx, e.CategoryID)
	if err != nil {
		return err
	}
	expenseCode := category.AccountCode
	if expenseCode == "" {
		expenseCode, err = s.roles.Code(coa.RoleOtherExpenses)
		if err != nil {
			return err
		}
	}

	lines := []ledger.LineInput{
		{AccountCode: expenseCode, Debit: e.Amount, Description: e.Description},
	}
	if e.TaxAmount > 0 {
		taxCode, err := s.roles.Code(coa.RoleTaxPayable)
		if err != nil {
			return err
		}
		lines = append(lines, ledger.LineInput{
			AccountCode: taxCode, Debit: e.TaxAmount, Description: "Tax on " + e.Description,
		})
	}

	switch e.PaymentSource {
	case PayBank:
		if e.PaymentSourceID == 0 {
			return ErrBankAccountRequired
		}
		bankCode, err := s.roles.Code(coa.RoleBankAccount)
		if err != nil {
			return err
		}
		lines = append(lines, ledger.LineInput{
			AccountCode: bankCode, Credit: e.TotalAmount, Description: "Bank payment for " + e.Description,
		})
		_, err = s.bank.RecordTransaction(ctx, bank.TransactionInput{
			AccountID:   e.PaymentSourceID,
			Date:        s.now(),
			Type:        bank.TxnDebit,
			Amount:      e.TotalAmount,
			Description: e.Description,
			Reference:   e.Number,
			SourceType:  ledger.SourceExpense,
			SourceID:    e.ID,
			SkipJournal: true,
		})
		if err != nil {
			return err
		}
	default:
		cashCode, err := s.roles.Code(coa.RoleCashOnHand)
		if err != nil {
			return err
		}
		lines = append(lines, ledger.LineInput{
			AccountCode: cashCode, Credit: e.TotalAmount, Description: "Payment for " + e.Description,
		})
		categoryName := category.Name
		if categoryName == "" {
			categoryName = "Expense"
		}
		_, err = s.cashbook.RecordTransaction(ctx, cashbook.TransactionInput{
			Date:        s.now(),
			Type:        cashbook.TxnPayment,
			Category:    categoryName,
			Amount:      e.TotalAmount,
			Description: e.Description,
			Reference:   e.Number,
			SourceType:  ledger.SourceExpense,
			SourceID:    e.ID,
			SkipJournal: true,
		})
		if err != nil {
			return err
		}
	}

	_, err = s.ledger.CreateEntry(ctx, ledger.CreateEntryInput{
		Date:        s.now(),
		Reference:   e.Number,
		Description: "Expense payment: " + e.Description,
		SourceType:  ledger.SourceExpense,
		SourceID:    e.ID,
		Lines:       lines,
		AutoPost:    true,
	})
	if err != nil {
		return err
	}
	if err := s.repo.MarkPaid(ctx, expenseID, s.now()); err != nil {
		return err
	}
	s.logger.Info("expense paid", slog.String("number", e.Number))
	return nil
}

// Get returns one expense with joined names.
func (s *Service) Get(ctx context.Context, expenseID int64) (Expense, error) {
	return s.repo.Find(ctx, expenseID)
}

// ByStatus lists expenses in one workflow state.
func (s *Service) ByStatus(ctx context.Context, status Status) ([]Expense, error) {
	return s.repo.FindByStatus(ctx, status)
}

// ByPeriod lists expenses over a period, optionally filtered by status.
func (s *Service) ByPeriod(ctx context.Context, from, to time.Time, status Status) ([]Expense, error) {
	return s.repo.FindByPeriod(ctx, from, to, status)
}

// Summarize aggregates expenses over a period, defaulting to the current
// month.
func (s *Service) Summarize(ctx context.Context, from, to time.Time) (Summary, error) {
	if to.IsZero() {
		to = s.now()
	}
	if from.IsZero() {
		from = time.Date(to.Year(), to.Month(), 1, 0, 0, 0, 0, to.Location())
	}
	expenses, err := s.repo.FindByPeriod(ctx, from, to, "")
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{
		ByCategory: make(map[string]float64),
		ByVendor:   make(map[string]float64),
	}
	for _, e := range expenses {
		summary.TotalExpenses += e.TotalAmount
		switch e.Status {
		case StatusPending:
			summary.TotalPending += e.TotalAmount
			summary.CountPending++
		case StatusApproved:
			summary.TotalApproved += e.TotalAmount
			summary.CountApproved++
		case StatusPaid:
			summary.TotalPaid += e.TotalAmount
			summary.CountPaid++
		case StatusRejected:
			summary.TotalRejected += e.TotalAmount
			summary.CountRejected++
		}
		categoryName := e.CategoryName
		if categoryName == "" {
			categoryName = "Uncategorized"
		}
		summary.ByCategory[categoryName] += e.TotalAmount
		if e.VendorID != nil {
			vendorName := e.VendorName
			if vendorName == "" {
				vendorName = "Unknown"
			}
			summary.ByVendor[vendorName] += e.TotalAmount
		}
	}
	return summary, nil
}

// nextNumber allocates EXP-YYYYMMDD-NNNN from the count of expenses created
// today.
func (s *Service) nextNumber(ctx context.Context) (string, error) {
	today := s.now()
	n, err := s.repo.CountForDay(ctx, today)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("EXP-%s-%04d", today.Format("20060102"), n+1), nil
}
