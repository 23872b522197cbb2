package cashbook

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ispbooks/ispbooks/internal/coa"
	"github.com/ispbooks/ispbooks/internal/ledger"
)

type memoryRepo struct {
	txns      []*Transaction
	summaries map[string]DailySummary
	nextID    int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{summaries: make(map[string]DailySummary)}
}

func dayKey(t time.Time) string { return t.Format("2006-01-02") }

func (r *memoryRepo) Create(_ context.Context, txn Transaction) (int64, error) {
	r.nextID++
	txn.ID = r.nextID
	r.txns = append(r.txns, &txn)
	return txn.ID, nil
}

func (r *memoryRepo) SumUpTo(_ context.Context, asOf time.Time) (float64, float64, error) {
	var receipts, payments float64
	for _, txn := range r.txns {
		if txn.Date.After(asOf) {
			continue
		}
		if txn.Type == TxnReceipt {
			receipts += txn.Amount
		} else {
			payments += txn.Amount
		}
	}
	return receipts, payments, nil
}

func (r *memoryRepo) FindByPeriod(_ context.Context, from, to time.Time, txnType TxnType) ([]Transaction, error) {
	var out []Transaction
	for _, txn := range r.txns {
		if txn.Date.Before(from) || txn.Date.After(to) {
			continue
		}
		if txnType != "" && txn.Type != txnType {
			continue
		}
		out = append(out, *txn)
	}
	return out, nil
}

func (r *memoryRepo) FindByDate(_ context.Context, date time.Time) ([]Transaction, error) {
	var out []Transaction
	for _, txn := range r.txns {
		if txn.Date.Equal(date) {
			out = append(out, *txn)
		}
	}
	return out, nil
}

func (r *memoryRepo) GetDailySummary(_ context.Context, date time.Time) (DailySummary, error) {
	summary, ok := r.summaries[dayKey(date)]
	if !ok {
		return DailySummary{}, ErrSummaryNotFound
	}
	return summary, nil
}

func (r *memoryRepo) UpsertDailySummary(_ context.Context, summary DailySummary) error {
	r.summaries[dayKey(summary.Date)] = summary
	return nil
}

type fakeLedger struct {
	entries []ledger.CreateEntryInput
}

func (f *fakeLedger) CreateEntry(_ context.Context, input ledger.CreateEntryInput) (ledger.JournalEntry, error) {
	if err := input.Validate(); err != nil {
		return ledger.JournalEntry{}, err
	}
	f.entries = append(f.entries, input)
	return ledger.JournalEntry{ID: int64(len(f.entries)), Status: ledger.StatusPosted}, nil
}

func newTestService(repo *memoryRepo, fl *fakeLedger, opening float64) *Service {
	svc := NewService(repo, fl, coa.DefaultRoles(), opening, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.WithNow(func() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) })
	return svc
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestRecordReceipt(t *testing.T) {
	repo := newMemoryRepo()
	fl := &fakeLedger{}
	svc := newTestService(repo, fl, 100)

	txn, err := svc.RecordTransaction(context.Background(), TransactionInput{
		Date:        day(2024, 3, 10),
		Type:        TxnReceipt,
		Amount:      50,
		Description: "Walk-in payment",
	})
	require.NoError(t, err)
	require.Equal(t, 150.0, txn.BalanceAfter)

	require.Len(t, fl.entries, 1)
	entry := fl.entries[0]
	require.Equal(t, ledger.SourceCashbook, entry.SourceType)
	require.True(t, entry.AutoPost)
	require.Equal(t, "1110", entry.Lines[0].AccountCode)
	require.Equal(t, 50.0, entry.Lines[0].Debit)
	require.Equal(t, "4200", entry.Lines[1].AccountCode)
	require.Equal(t, 50.0, entry.Lines[1].Credit)

	// Daily summary was persisted alongside.
	summary, err := repo.GetDailySummary(context.Background(), day(2024, 3, 10))
	require.NoError(t, err)
	require.Equal(t, 50.0, summary.TotalReceipts)
	require.Equal(t, 150.0, summary.ClosingBalance)
}

func TestRecordReceiptFromSyncedPaymentCreditsReceivables(t *testing.T) {
	repo := newMemoryRepo()
	fl := &fakeLedger{}
	svc := newTestService(repo, fl, 0)

	_, err := svc.RecordTransaction(context.Background(), TransactionInput{
		Date:        day(2024, 3, 10),
		Type:        TxnReceipt,
		Amount:      75,
		Description: "Invoice settlement",
		SourceType:  ledger.SourceUispPayment,
		SourceID:    9,
	})
	require.NoError(t, err)
	entry := fl.entries[0]
	require.Equal(t, "1140", entry.Lines[1].AccountCode)
	require.Equal(t, 75.0, entry.Lines[1].Credit)
}

func TestRecordPayment(t *testing.T) {
	repo := newMemoryRepo()
	fl := &fakeLedger{}
	svc := newTestService(repo, fl, 200)

	txn, err := svc.RecordTransaction(context.Background(), TransactionInput{
		Date:        day(2024, 3, 10),
		Type:        TxnPayment,
		Category:    "Fuel",
		Amount:      80,
		Description: "Generator fuel",
	})
	require.NoError(t, err)
	require.Equal(t, 120.0, txn.BalanceAfter)

	entry := fl.entries[0]
	require.Equal(t, "6600", entry.Lines[0].AccountCode)
	require.Equal(t, 80.0, entry.Lines[0].Debit)
	require.Equal(t, "1110", entry.Lines[1].AccountCode)
	require.Equal(t, 80.0, entry.Lines[1].Credit)
}

func TestRecordPaymentInsufficientCash(t *testing.T) {
	svc := newTestService(newMemoryRepo(), &fakeLedger{}, 10)

	_, err := svc.RecordTransaction(context.Background(), TransactionInput{
		Date:        day(2024, 3, 10),
		Type:        TxnPayment,
		Amount:      50,
		Description: "Too large",
	})
	require.ErrorIs(t, err, ErrInsufficientCash)

	// Explicitly allowed negative balances go through.
	_, err = svc.RecordTransaction(context.Background(), TransactionInput{
		Date:          day(2024, 3, 10),
		Type:          TxnPayment,
		Amount:        50,
		Description:   "Correction",
		AllowNegative: true,
	})
	require.NoError(t, err)
}

func TestRecordTransactionValidation(t *testing.T) {
	svc := newTestService(newMemoryRepo(), &fakeLedger{}, 0)

	_, err := svc.RecordTransaction(context.Background(), TransactionInput{
		Date: day(2024, 3, 10), Type: "withdrawal", Amount: 10, Description: "x"})
	require.ErrorIs(t, err, ErrInvalidType)

	_, err = svc.RecordTransaction(context.Background(), TransactionInput{
		Date: day(2024, 3, 10), Type: TxnReceipt, Amount: -5, Description: "x"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.RecordTransaction(context.Background(), TransactionInput{
		Date: day(2024, 3, 10), Type: TxnReceipt, Amount: 5})
	require.ErrorIs(t, err, ErrValidation)
}

func TestClosedDayRejectsTransactions(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, &fakeLedger{}, 100)
	date := day(2024, 3, 10)

	require.NoError(t, svc.CloseDay(context.Background(), date, 7))

	_, err := svc.RecordTransaction(context.Background(), TransactionInput{
		Date: date, Type: TxnReceipt, Amount: 10, Description: "late entry"})
	require.ErrorIs(t, err, ErrDayClosed)

	// Closing twice fails, reopening lifts the lock.
	require.ErrorIs(t, svc.CloseDay(context.Background(), date, 7), ErrDayClosed)
	require.NoError(t, svc.ReopenDay(context.Background(), date))
	_, err = svc.RecordTransaction(context.Background(), TransactionInput{
		Date: date, Type: TxnReceipt, Amount: 10, Description: "late entry"})
	require.NoError(t, err)
}

func TestReport(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, &fakeLedger{}, 500)

	_, err := svc.RecordTransaction(context.Background(), TransactionInput{
		Date: day(2024, 3, 5), Type: TxnReceipt, Amount: 200, Description: "a"})
	require.NoError(t, err)
	_, err = svc.RecordTransaction(context.Background(), TransactionInput{
		Date: day(2024, 3, 8), Type: TxnPayment, Amount: 50, Description: "b"})
	require.NoError(t, err)

	report, err := svc.Report(context.Background(), day(2024, 3, 1), day(2024, 3, 31))
	require.NoError(t, err)
	require.Equal(t, 500.0, report.OpeningBalance)
	require.Equal(t, 200.0, report.TotalReceipts)
	require.Equal(t, 50.0, report.TotalPayments)
	require.Equal(t, 650.0, report.ClosingBalance)
	require.Len(t, report.Rows, 2)
	require.Equal(t, 700.0, report.Rows[0].Balance)
	require.Equal(t, 650.0, report.Rows[1].Balance)
	require.Equal(t, 200.0, report.Rows[0].Receipt)
	require.Equal(t, 50.0, report.Rows[1].Payment)
}

func TestTopExpenseCategories(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, &fakeLedger{}, 1000)

	for _, in := range []TransactionInput{
		{Date: day(2024, 3, 2), Type: TxnPayment, Category: "Fuel", Amount: 100, Description: "a"},
		{Date: day(2024, 3, 3), Type: TxnPayment, Category: "Fuel", Amount: 60, Description: "b"},
		{Date: day(2024, 3, 4), Type: TxnPayment, Category: "Rent", Amount: 300, Description: "c"},
		{Date: day(2024, 3, 5), Type: TxnPayment, Amount: 10, Description: "d"},
	} {
		_, err := svc.RecordTransaction(context.Background(), in)
		require.NoError(t, err)
	}

	top, err := svc.TopExpenseCategories(context.Background(), day(2024, 3, 1), day(2024, 3, 31), 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	require.Equal(t, "Rent", top[0].Category)
	require.Equal(t, 300.0, top[0].Amount)
	require.Equal(t, "Fuel", top[1].Category)
	require.Equal(t, 160.0, top[1].Amount)
	require.Equal(t, 2, top[1].Count)
}

func TestCashFlowSummary(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, &fakeLedger{}, 0)

	_, err := svc.RecordTransaction(context.Background(), TransactionInput{
		Date: day(2024, 3, 14), Type: TxnReceipt, Amount: 90, Description: "a"})
	require.NoError(t, err)

	flow, err := svc.CashFlowSummary(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, 7, flow.PeriodDays)
	require.Len(t, flow.Daily, 8)
	require.Equal(t, 90.0, flow.TotalReceipts)
	require.Equal(t, 90.0, flow.NetChange)
}
