package expense

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ispbooks/ispbooks/internal/bank"
	"github.com/ispbooks/ispbooks/internal/cashbook"
	"github.com/ispbooks/ispbooks/internal/coa"
	"github.com/ispbooks/ispbooks/internal/ledger"
)

type memoryRepo struct {
	expenses   map[int64]*Expense
	categories map[int64]Category
	logs       []ApprovalLog
	nextID     int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		expenses: make(map[int64]*Expense),
		categories: map[int64]Category{
			1: {ID: 1, Name: "Backhaul", AccountCode: "6210"},
			2: {ID: 2, Name: "Office"},
		},
	}
}

func (r *memoryRepo) Create(_ context.Context, e Expense) (int64, error) {
	r.nextID++
	e.ID = r.nextID
	r.expenses[e.ID] = &e
	return e.ID, nil
}

func (r *memoryRepo) Find(_ context.Context, id int64) (Expense, error) {
	e, ok := r.expenses[id]
	if !ok {
		return Expense{}, ErrNotFound
	}
	out := *e
	out.CategoryName = r.categories[e.CategoryID].Name
	return out, nil
}

func (r *memoryRepo) MarkApproved(_ context.Context, id, approvedBy int64, at time.Time) error {
	e, ok := r.expenses[id]
	if !ok {
		return ErrNotFound
	}
	e.Status = StatusApproved
	e.ApprovedBy = &approvedBy
	e.ApprovedAt = &at
	return nil
}

func (r *memoryRepo) MarkRejected(_ context.Context, id int64) error {
	e, ok := r.expenses[id]
	if !ok {
		return ErrNotFound
	}
	e.Status = StatusRejected
	return nil
}

func (r *memoryRepo) MarkPaid(_ context.Context, id int64, at time.Time) error {
	e, ok := r.expenses[id]
	if !ok {
		return ErrNotFound
	}
	e.Status = StatusPaid
	e.PaidAt = &at
	return nil
}

func (r *memoryRepo) FindByStatus(_ context.Context, status Status) ([]Expense, error) {
	var out []Expense
	for _, e := range r.expenses {
		if e.Status == status {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (r *memoryRepo) FindByPeriod(_ context.Context, from, to time.Time, status Status) ([]Expense, error) {
	var out []Expense
	for _, e := range r.expenses {
		if e.Date.Before(from) || e.Date.After(to) {
			continue
		}
		if status != "" && e.Status != status {
			continue
		}
		copied := *e
		copied.CategoryName = r.categories[e.CategoryID].Name
		out = append(out, copied)
	}
	return out, nil
}

func (r *memoryRepo) GetCategory(_ context.Context, id int64) (Category, error) {
	c, ok := r.categories[id]
	if !ok {
		return Category{}, ErrCategoryNotFound
	}
	return c, nil
}

func (r *memoryRepo) CountForDay(_ context.Context, _ time.Time) (int, error) {
	return len(r.expenses), nil
}

func (r *memoryRepo) LogApproval(_ context.Context, log ApprovalLog) error {
	r.logs = append(r.logs, log)
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

type fakeCashbook struct {
	inputs []cashbook.TransactionInput
}

func (f *fakeCashbook) RecordTransaction(_ context.Context, input cashbook.TransactionInput) (cashbook.Transaction, error) {
	f.inputs = append(f.inputs, input)
	return cashbook.Transaction{ID: int64(len(f.inputs))}, nil
}

type fakeBank struct {
	inputs []bank.TransactionInput
}

func (f *fakeBank) RecordTransaction(_ context.Context, input bank.TransactionInput) (bank.Transaction, error) {
	f.inputs = append(f.inputs, input)
	return bank.Transaction{ID: int64(len(f.inputs))}, nil
}

type testDeps struct {
	repo     *memoryRepo
	ledger   *fakeLedger
	cashbook *fakeCashbook
	bank     *fakeBank
}

func newTestService(t *testing.T, threshold float64, requireApproval bool) (*Service, *testDeps) {
	t.Helper()
	deps := &testDeps{
		repo:     newMemoryRepo(),
		ledger:   &fakeLedger{},
		cashbook: &fakeCashbook{},
		bank:     &fakeBank{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(deps.repo, deps.ledger, deps.cashbook, deps.bank,
		coa.DefaultRoles(), threshold, requireApproval, logger)
	svc.WithNow(func() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) })
	return svc, deps
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCreateAutoApprovesBelowThreshold(t *testing.T) {
	svc, _ := newTestService(t, 500, true)

	e, err := svc.Create(context.Background(), CreateInput{
		CategoryID:  1,
		Amount:      120,
		Date:        day(2024, 3, 15),
		Description: "Fiber splice kit",
	})
	require.NoError(t, err)
	require.Equal(t, StatusApproved, e.Status)
	require.Equal(t, "EXP-20240315-0001", e.Number)
	require.NotNil(t, e.ApprovedAt)
	require.Equal(t, 120.0, e.TotalAmount)
}

func TestCreateStaysPendingAboveThreshold(t *testing.T) {
	svc, deps := newTestService(t, 500, true)

	e, err := svc.Create(context.Background(), CreateInput{
		CategoryID:    1,
		Amount:        900,
		Date:          day(2024, 3, 15),
		Description:   "Tower lease",
		PaymentSource: PayCash,
	})
	require.NoError(t, err)
	require.Equal(t, StatusPending, e.Status)
	require.Nil(t, e.ApprovedAt)
	// Nothing paid or posted until approval.
	require.Empty(t, deps.ledger.entries)
	require.Empty(t, deps.cashbook.inputs)
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService(t, 500, true)

	_, err := svc.Create(context.Background(), CreateInput{CategoryID: 1, Amount: -5,
		Date: day(2024, 3, 15), Description: "bad"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(context.Background(), CreateInput{CategoryID: 99, Amount: 10,
		Date: day(2024, 3, 15), Description: "missing category"})
	require.ErrorIs(t, err, ErrCategoryNotFound)
}

func TestCreatePaysImmediatelyWhenSourceGiven(t *testing.T) {
	svc, deps := newTestService(t, 500, true)

	e, err := svc.Create(context.Background(), CreateInput{
		CategoryID:    1,
		Amount:        100,
		TaxAmount:     18,
		Date:          day(2024, 3, 15),
		Description:   "Router spares",
		PaymentSource: PayCash,
	})
	require.NoError(t, err)
	require.Equal(t, StatusPaid, e.Status)
	require.NotNil(t, e.PaidAt)

	require.Len(t, deps.ledger.entries, 1)
	entry := deps.ledger.entries[0]
	require.Equal(t, ledger.SourceExpense, entry.SourceType)
	require.True(t, entry.AutoPost)
	require.Equal(t, "6210", entry.Lines[0].AccountCode)
	require.Equal(t, 100.0, entry.Lines[0].Debit)
	require.Equal(t, "2140", entry.Lines[1].AccountCode)
	require.Equal(t, 18.0, entry.Lines[1].Debit)
	require.Equal(t, "1110", entry.Lines[2].AccountCode)
	require.Equal(t, 118.0, entry.Lines[2].Credit)

	require.Len(t, deps.cashbook.inputs, 1)
	cb := deps.cashbook.inputs[0]
	require.True(t, cb.SkipJournal)
	require.Equal(t, cashbook.TxnPayment, cb.Type)
	require.Equal(t, 118.0, cb.Amount)
	require.Equal(t, "Backhaul", cb.Category)
	require.Equal(t, e.Number, cb.Reference)
}

func TestApproveThenPay(t *testing.T) {
	svc, deps := newTestService(t, 500, true)

	e, err := svc.Create(context.Background(), CreateInput{
		CategoryID:    2,
		Amount:        750,
		Date:          day(2024, 3, 15),
		Description:   "Office refit",
		PaymentSource: PayCash,
	})
	require.NoError(t, err)
	require.Equal(t, StatusPending, e.Status)

	require.NoError(t, svc.Approve(context.Background(), e.ID, 7, "looks fine"))

	paid, err := svc.Get(context.Background(), e.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPaid, paid.Status)

	require.Len(t, deps.repo.logs, 1)
	require.Equal(t, "approve", deps.repo.logs[0].Action)
	require.Equal(t, int64(7), deps.repo.logs[0].ApproverID)

	// Category without an account code falls back to the generic expense
	// account.
	entry := deps.ledger.entries[0]
	require.Equal(t, "6600", entry.Lines[0].AccountCode)
	require.Equal(t, 750.0, entry.Lines[0].Debit)
	require.Equal(t, "1110", entry.Lines[1].AccountCode)
	require.Equal(t, 750.0, entry.Lines[1].Credit)
}

func TestApproveRejectsNonPending(t *testing.T) {
	svc, _ := newTestService(t, 500, true)

	e, err := svc.Create(context.Background(), CreateInput{
		CategoryID: 1, Amount: 50, Date: day(2024, 3, 15), Description: "small"})
	require.NoError(t, err)
	require.Equal(t, StatusApproved, e.Status)

	err = svc.Approve(context.Background(), e.ID, 7, "")
	require.ErrorIs(t, err, ErrNotPending)
}

func TestReject(t *testing.T) {
	svc, deps := newTestService(t, 500, true)

	e, err := svc.Create(context.Background(), CreateInput{
		CategoryID: 1, Amount: 900, Date: day(2024, 3, 15), Description: "Speculative gear"})
	require.NoError(t, err)

	require.NoError(t, svc.Reject(context.Background(), e.ID, 7, "no budget"))

	rejected, err := svc.Get(context.Background(), e.ID)
	require.NoError(t, err)
	require.Equal(t, StatusRejected, rejected.Status)
	require.Len(t, deps.repo.logs, 1)
	require.Equal(t, "reject", deps.repo.logs[0].Action)

	err = svc.Reject(context.Background(), e.ID, 7, "again")
	require.ErrorIs(t, err, ErrNotPending)
}

func TestProcessPaymentBank(t *testing.T) {
	svc, deps := newTestService(t, 500, true)

	e, err := svc.Create(context.Background(), CreateInput{
		CategoryID:      1,
		Amount:          200,
		Date:            day(2024, 3, 15),
		Description:     "Upstream invoice",
		PaymentSource:   PayBank,
		PaymentSourceID: 3,
	})
	require.NoError(t, err)
	require.Equal(t, StatusPaid, e.Status)

	require.Len(t, deps.bank.inputs, 1)
	bt := deps.bank.inputs[0]
	require.True(t, bt.SkipJournal)
	require.Equal(t, bank.TxnDebit, bt.Type)
	require.Equal(t, int64(3), bt.AccountID)
	require.Equal(t, 200.0, bt.Amount)
	require.Empty(t, deps.cashbook.inputs)

	entry := deps.ledger.entries[0]
	require.Equal(t, "1120", entry.Lines[1].AccountCode)
	require.Equal(t, 200.0, entry.Lines[1].Credit)
}

func TestProcessPaymentBankRequiresAccount(t *testing.T) {
	svc, _ := newTestService(t, 500, true)

	_, err := svc.Create(context.Background(), CreateInput{
		CategoryID:    1,
		Amount:        200,
		Date:          day(2024, 3, 15),
		Description:   "Upstream invoice",
		PaymentSource: PayBank,
	})
	require.ErrorIs(t, err, ErrBankAccountRequired)
}

func TestProcessPaymentGuards(t *testing.T) {
	svc, _ := newTestService(t, 500, true)

	pending, err := svc.Create(context.Background(), CreateInput{
		CategoryID: 1, Amount: 900, Date: day(2024, 3, 15), Description: "Pending"})
	require.NoError(t, err)
	require.ErrorIs(t, svc.ProcessPayment(context.Background(), pending.ID), ErrNotApproved)

	paid, err := svc.Create(context.Background(), CreateInput{
		CategoryID: 1, Amount: 50, Date: day(2024, 3, 15), Description: "Paid",
		PaymentSource: PayCash})
	require.NoError(t, err)
	require.Equal(t, StatusPaid, paid.Status)
	require.ErrorIs(t, svc.ProcessPayment(context.Background(), paid.ID), ErrAlreadyPaid)
}

func TestExpenseNumberSequence(t *testing.T) {
	svc, _ := newTestService(t, 500, true)

	first, err := svc.Create(context.Background(), CreateInput{
		CategoryID: 1, Amount: 10, Date: day(2024, 3, 15), Description: "a"})
	require.NoError(t, err)
	second, err := svc.Create(context.Background(), CreateInput{
		CategoryID: 1, Amount: 10, Date: day(2024, 3, 15), Description: "b"})
	require.NoError(t, err)
	require.Equal(t, "EXP-20240315-0001", first.Number)
	require.Equal(t, "EXP-20240315-0002", second.Number)
}

func TestSummarize(t *testing.T) {
	svc, _ := newTestService(t, 500, true)

	_, err := svc.Create(context.Background(), CreateInput{
		CategoryID: 1, Amount: 100, Date: day(2024, 3, 5), Description: "paid one",
		PaymentSource: PayCash})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), CreateInput{
		CategoryID: 2, Amount: 800, Date: day(2024, 3, 10), Description: "pending one"})
	require.NoError(t, err)
	vendorID := int64(4)
	_, err = svc.Create(context.Background(), CreateInput{
		CategoryID: 2, VendorID: &vendorID, Amount: 60, Date: day(2024, 3, 12),
		Description: "approved one"})
	require.NoError(t, err)

	summary, err := svc.Summarize(context.Background(), time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Equal(t, 960.0, summary.TotalExpenses)
	require.Equal(t, 100.0, summary.TotalPaid)
	require.Equal(t, 800.0, summary.TotalPending)
	require.Equal(t, 60.0, summary.TotalApproved)
	require.Equal(t, 1, summary.CountPaid)
	require.Equal(t, 1, summary.CountPending)
	require.Equal(t, 1, summary.CountApproved)
	require.Equal(t, 100.0, summary.ByCategory["Backhaul"])
	require.Equal(t, 860.0, summary.ByCategory["Office"])
	require.Len(t, summary.ByVendor, 1)
}
