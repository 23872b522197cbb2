package cashbook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/ispbooks/ispbooks/internal/coa"
	"github.com/ispbooks/ispbooks/internal/ledger"
)

// LedgerPort is the slice of the ledger engine the cashbook uses.
type LedgerPort interface {
	CreateEntry(ctx context.Context, input ledger.CreateEntryInput) (ledger.JournalEntry, error)
}

// TransactionInput is the payload for recording one cash movement.
type TransactionInput struct {
	Date        time.Time `json:"transaction_date"`
	Type        TxnType   `json:"type"`
	Category    string    `json:"category"`
	Amount      float64   `json:"amount"`
	Description string    `json:"description"`
	Reference   string    `json:"reference"`
	SourceType  string    `json:"source_type"`
	SourceID    int64     `json:"source_id"`
	CreatedBy   int64     `json:"-"`

	// AllowNegative lets a payment take the balance below zero, for
	// corrections entered out of order.
	AllowNegative bool `json:"allow_negative"`
	SkipJournal   bool `json:"-"`
}

// Validate checks required fields.
func (in TransactionInput) Validate() error {
	if in.Date.IsZero() {
		return fmt.Errorf("%w: transaction date is required", ErrValidation)
	}
	if !in.Type.Valid() {
		return ErrInvalidType
	}
	if in.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if in.Description == "" {
		return fmt.Errorf("%w: description is required", ErrValidation)
	}
	return nil
}

// Service manages daily cash operations over the single physical cashbook.
type Service struct {
	repo           Repository
	ledger         LedgerPort
	roles          coa.RoleMap
	openingBalance float64
	logger         *slog.Logger
	now            func() time.Time
}

// NewService builds a Service instance. openingBalance is the configured cash
// position before the first recorded transaction.
func NewService(repo Repository, ledgerPort LedgerPort, roles coa.RoleMap, openingBalance float64, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:           repo,
		ledger:         ledgerPort,
		roles:          roles,
		openingBalance: openingBalance,
		logger:         logger,
		now:            time.Now,
	}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// RecordTransaction records one cash movement, posts the mirroring journal
// entry and refreshes the day's summary. Payments that would take the balance
// negative are rejected unless explicitly allowed, and closed days reject all
// new movements.
func (s *Service) RecordTransaction(ctx context.Context, input TransactionInput) (Transaction, error) {
	if err := input.Validate(); err != nil {
		return Transaction{}, err
	}
	summary, err := s.repo.GetDailySummary(ctx, input.Date)
	if err != nil && !errors.Is(err, ErrSummaryNotFound) {
		return Transaction{}, err
	}
	if err == nil && summary.IsClosed {
		return Transaction{}, fmt.Errorf("%w: %s", ErrDayClosed, input.Date.Format("2006-01-02"))
	}

	balance, err := s.CurrentBalance(ctx, input.Date)
	if err != nil {
		return Transaction{}, err
	}
	if input.Type == TxnReceipt {
		balance += input.Amount
	} else {
		balance -= input.Amount
		if balance < 0 && !input.AllowNegative {
			return Transaction{}, ErrInsufficientCash
		}
	}

	sourceType := input.SourceType
	if sourceType == "" {
		sourceType = "manual"
	}
	txn := Transaction{
		Date:         input.Date,
		Type:         input.Type,
		Category:     input.Category,
		Amount:       input.Amount,
		Description:  input.Description,
		Reference:    input.Reference,
		SourceType:   sourceType,
		SourceID:     input.SourceID,
		BalanceAfter: balance,
		CreatedBy:    input.CreatedBy,
	}
	id, err := s.repo.Create(ctx, txn)
	if err != nil {
		return Transaction{}, err
	}
	txn.ID = id

	if !input.SkipJournal {
		if err := s.postJournalEntry(ctx, txn); err != nil {
			return Transaction{}, err
		}
	}
	if err := s.refreshDailySummary(ctx, input.Date); err != nil {
		return Transaction{}, err
	}
	s.logger.Info("cashbook transaction recorded",
		slog.String("type", string(txn.Type)), slog.Float64("amount", txn.Amount))
	return txn, nil
}

// CurrentBalance returns the cash position as of a date, or today when zero.
func (s *Service) CurrentBalance(ctx context.Context, asOf time.Time) (float64, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	receipts, payments, err := s.repo.SumUpTo(ctx, asOf)
	if err != nil {
		return 0, err
	}
	return s.openingBalance + receipts - payments, nil
}

// DailySummary returns the stored summary for a date, computing one on the
// fly when none has been persisted yet.
func (s *Service) DailySummary(ctx context.Context, date time.Time) (DailySummary, error) {
	summary, err := s.repo.GetDailySummary(ctx, date)
	if errors.Is(err, ErrSummaryNotFound) {
		return s.calculateDailySummary(ctx, date)
	}
	if err != nil {
		return DailySummary{}, err
	}
	return summary, nil
}

// Transactions lists cash movements, defaulting to the last 30 days. An empty
// txnType returns both directions.
func (s *Service) Transactions(ctx context.Context, from, to time.Time, txnType TxnType) ([]Transaction, error) {
	if to.IsZero() {
		to = s.now()
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -30)
	}
	return s.repo.FindByPeriod(ctx, from, to, txnType)
}

// Report builds the classic cashbook report with receipt and payment columns
// and a running balance per row.
func (s *Service) Report(ctx context.Context, from, to time.Time) (Report, error) {
	opening, err := s.CurrentBalance(ctx, from.AddDate(0, 0, -1))
	if err != nil {
		return Report{}, err
	}
	txns, err := s.repo.FindByPeriod(ctx, from, to, "")
	if err != nil {
		return Report{}, err
	}
	report := Report{From: from, To: to, OpeningBalance: opening, ClosingBalance: opening}
	running := opening
	for _, txn := range txns {
		row := ReportRow{
			Date:        txn.Date,
			Type:        txn.Type,
			Category:    txn.Category,
			Description: txn.Description,
			Reference:   txn.Reference,
		}
		if txn.Type == TxnReceipt {
			report.TotalReceipts += txn.Amount
			running += txn.Amount
			row.Receipt = txn.Amount
		} else {
			report.TotalPayments += txn.Amount
			running -= txn.Amount
			row.Payment = txn.Amount
		}
		row.Balance = running
		report.Rows = append(report.Rows, row)
	}
	report.ClosingBalance = running
	return report, nil
}

// CloseDay freezes a day's cashbook. Closing an already-closed day fails.
func (s *Service) CloseDay(ctx context.Context, date time.Time, closedBy int64) error {
	summary, err := s.DailySummary(ctx, date)
	if err != nil {
		return err
	}
	if summary.IsClosed {
		return fmt.Errorf("%w: %s", ErrDayClosed, date.Format("2006-01-02"))
	}
	now := s.now()
	summary.IsClosed = true
	summary.ClosedAt = &now
	summary.ClosedBy = &closedBy
	if err := s.repo.UpsertDailySummary(ctx, summary); err != nil {
		return err
	}
	s.logger.Info("cashbook day closed", slog.String("date", date.Format("2006-01-02")))
	return nil
}

// ReopenDay lifts the close on a day so corrections can be entered.
func (s *Service) ReopenDay(ctx context.Context, date time.Time) error {
	summary, err := s.DailySummary(ctx, date)
	if err != nil {
		return err
	}
	summary.IsClosed = false
	summary.ClosedAt = nil
	summary.ClosedBy = nil
	if err := s.repo.UpsertDailySummary(ctx, summary); err != nil {
		return err
	}
	s.logger.Info("cashbook day reopened", slog.String("date", date.Format("2006-01-02")))
	return nil
}

// CashFlowSummary aggregates per-day receipts and payments over a trailing
// window ending today.
func (s *Service) CashFlowSummary(ctx context.Context, days int) (CashFlow, error) {
	if days <= 0 {
		days = 30
	}
	end := s.now().Truncate(24 * time.Hour)
	start := end.AddDate(0, 0, -days)
	flow := CashFlow{PeriodDays: days, StartDate: start, EndDate: end}
	for date := start; !date.After(end); date = date.AddDate(0, 0, 1) {
		summary, err := s.DailySummary(ctx, date)
		if err != nil {
			return CashFlow{}, err
		}
		net := summary.TotalReceipts - summary.TotalPayments
		flow.Daily = append(flow.Daily, DailyFlow{
			Date:     date,
			Receipts: summary.TotalReceipts,
			Payments: summary.TotalPayments,
			Net:      net,
			Balance:  summary.ClosingBalance,
		})
		flow.TotalReceipts += summary.TotalReceipts
		flow.TotalPayments += summary.TotalPayments
		flow.NetChange += net
	}
	return flow, nil
}

// TopExpenseCategories ranks payment categories by total amount over the
// period, defaulting to the current month.
func (s *Service) TopExpenseCategories(ctx context.Context, from, to time.Time, limit int) ([]CategoryTotal, error) {
	if to.IsZero() {
		to = s.now()
	}
	if from.IsZero() {
		from = time.Date(to.Year(), to.Month(), 1, 0, 0, 0, 0, to.Location())
	}
	if limit <= 0 {
		limit = 10
	}
	payments, err := s.repo.FindByPeriod(ctx, from, to, TxnPayment)
	if err != nil {
		return nil, err
	}
	totals := make(map[string]*CategoryTotal)
	var order []string
	for _, payment := range payments {
		category := payment.Category
		if category == "" {
			category = "Uncategorized"
		}
		entry, ok := totals[category]
		if !ok {
			entry = &CategoryTotal{Category: category}
			totals[category] = entry
			order = append(order, category)
		}
		entry.Amount += payment.Amount
		entry.Count++
	}
	out := make([]CategoryTotal, 0, len(order))
	for _, category := range order {
		out = append(out, *totals[category])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Amount > out[j].Amount })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Service) calculateDailySummary(ctx context.Context, date time.Time) (DailySummary, error) {
	opening, err := s.CurrentBalance(ctx, date.AddDate(0, 0, -1))
	if err != nil {
		return DailySummary{}, err
	}
	txns, err := s.repo.FindByDate(ctx, date)
	if err != nil {
		return DailySummary{}, err
	}
	summary := DailySummary{Date: date, OpeningBalance: opening}
	for _, txn := range txns {
		if txn.Type == TxnReceipt {
			summary.TotalReceipts += txn.Amount
		} else {
			summary.TotalPayments += txn.Amount
		}
	}
	summary.ClosingBalance = opening + summary.TotalReceipts - summary.TotalPayments
	return summary, nil
}

func (s *Service) refreshDailySummary(ctx context.Context, date time.Time) error {
	summary, err := s.calculateDailySummary(ctx, date)
	if err != nil {
		return err
	}
	return s.repo.UpsertDailySummary(ctx, summary)
}

// postJournalEntry books a receipt as cash against revenue (or receivables
// when the receipt settles a synced customer payment) and a payment as
// expenses against cash.
func (s *Service) postJournalEntry(ctx context.Context, txn Transaction) error {
	cashCode, err := s.roles.Code(coa.RoleCashOnHand)
	if err != nil {
		return err
	}
	var lines []ledger.LineInput
	if txn.Type == TxnReceipt {
		counterRole := coa.RoleOtherRevenue
		counterDesc := txn.Description
		if txn.SourceType == ledger.SourceUispPayment {
			counterRole = coa.RoleAccountsReceivable
			counterDesc = "Payment received"
		}
		counterCode, err := s.roles.Code(counterRole)
		if err != nil {
			return err
		}
		lines = []ledger.LineInput{
			{AccountCode: cashCode, Debit: txn.Amount, Description: "Cash receipt: " + txn.Description},
			{AccountCode: counterCode, Credit: txn.Amount, Description: counterDesc},
		}
	} else {
		expenseCode, err := s.roles.Code(coa.RoleOtherExpenses)
		if err != nil {
			return err
		}
		lines = []ledger.LineInput{
			{AccountCode: expenseCode, Debit: txn.Amount, Description: txn.Description},
			{AccountCode: cashCode, Credit: txn.Amount, Description: "Cash payment"},
		}
	}
	reference := txn.Reference
	if reference == "" {
		reference = fmt.Sprintf("CB-%d", txn.ID)
	}
	_, err = s.ledger.CreateEntry(ctx, ledger.CreateEntryInput{
		Date:        txn.Date,
		Reference:   reference,
		Description: "Cashbook: " + txn.Description,
		SourceType:  ledger.SourceCashbook,
		SourceID:    txn.ID,
		Lines:       lines,
		AutoPost:    true,
	})
	return err
}
