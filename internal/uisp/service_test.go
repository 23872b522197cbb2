package uisp

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ispbooks/ispbooks/internal/cashbook"
	"github.com/ispbooks/ispbooks/internal/coa"
	"github.com/ispbooks/ispbooks/internal/ledger"
)

type fakeAPI struct {
	customers []APICustomer
	invoices  []APIInvoice
	payments  []APIPayment
}

func (f *fakeAPI) Customers(_ context.Context) ([]APICustomer, error) { return f.customers, nil }
func (f *fakeAPI) Invoices(_ context.Context, _ time.Time) ([]APIInvoice, error) {
	return f.invoices, nil
}
func (f *fakeAPI) Payments(_ context.Context, _ time.Time) ([]APIPayment, error) {
	return f.payments, nil
}

type memoryRepo struct {
	customers map[int64]*Customer
	invoices  map[int64]*Invoice
	payments  map[int64]*Payment
	nextID    int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		customers: make(map[int64]*Customer),
		invoices:  make(map[int64]*Invoice),
		payments:  make(map[int64]*Payment),
	}
}

func (r *memoryRepo) FindCustomerByUispID(_ context.Context, uispID int64) (Customer, error) {
	for _, c := range r.customers {
		if c.UispID == uispID {
			return *c, nil
		}
	}
	return Customer{}, ErrCustomerNotFound
}

func (r *memoryRepo) UpsertCustomer(_ context.Context, c Customer) (int64, bool, error) {
	for id, existing := range r.customers {
		if existing.UispID == c.UispID {
			c.ID = id
			r.customers[id] = &c
			return id, false, nil
		}
	}
	r.nextID++
	c.ID = r.nextID
	r.customers[c.ID] = &c
	return c.ID, true, nil
}

func (r *memoryRepo) ListCustomers(_ context.Context, activeOnly bool) ([]Customer, error) {
	var out []Customer
	for _, c := range r.customers {
		if activeOnly && !c.IsActive {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

func (r *memoryRepo) FindInvoiceByUispID(_ context.Context, uispID int64) (Invoice, error) {
	for _, inv := range r.invoices {
		if inv.UispID == uispID {
			return *inv, nil
		}
	}
	return Invoice{}, ErrInvoiceNotFound
}

func (r *memoryRepo) UpsertInvoice(_ context.Context, inv Invoice) (int64, bool, error) {
	for id, existing := range r.invoices {
		if existing.UispID == inv.UispID {
			inv.ID = id
			inv.EntryID = existing.EntryID
			r.invoices[id] = &inv
			return id, false, nil
		}
	}
	r.nextID++
	inv.ID = r.nextID
	r.invoices[inv.ID] = &inv
	return inv.ID, true, nil
}

func (r *memoryRepo) SetInvoiceEntry(_ context.Context, invoiceID, entryID int64) error {
	inv, ok := r.invoices[invoiceID]
	if !ok {
		return ErrInvoiceNotFound
	}
	inv.EntryID = &entryID
	return nil
}

func (r *memoryRepo) UpsertPayment(_ context.Context, p Payment) (int64, bool, error) {
	for id, existing := range r.payments {
		if existing.UispID == p.UispID {
			p.ID = id
			p.EntryID = existing.EntryID
			r.payments[id] = &p
			return id, false, nil
		}
	}
	r.nextID++
	p.ID = r.nextID
	r.payments[p.ID] = &p
	return p.ID, true, nil
}

func (r *memoryRepo) SetPaymentEntry(_ context.Context, paymentID, entryID int64) error {
	p, ok := r.payments[paymentID]
	if !ok {
		return ErrPaymentNotFound
	}
	p.EntryID = &entryID
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

type testDeps struct {
	api      *fakeAPI
	repo     *memoryRepo
	ledger   *fakeLedger
	cashbook *fakeCashbook
}

func newTestService(deps *testDeps) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(deps.api, deps.repo, deps.ledger, deps.cashbook, coa.DefaultRoles(), logger)
	svc.WithNow(func() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) })
	return svc
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestSyncCustomers(t *testing.T) {
	deps := &testDeps{
		api: &fakeAPI{customers: []APICustomer{
			{ID: 11, FirstName: "Ada", LastName: "Okafor",
				Contacts: []APIContact{{Email: "ada@example.com", Phone: "555-0101"}}},
			{ID: 12, FirstName: "Ben", LastName: "Carter", IsArchived: true},
		}},
		repo: newMemoryRepo(), ledger: &fakeLedger{}, cashbook: &fakeCashbook{},
	}
	svc := newTestService(deps)

	stats, err := svc.SyncCustomers(context.Background())
	require.NoError(t, err)
	require.Equal(t, Stats{Processed: 2, New: 2}, stats)

	ada, err := deps.repo.FindCustomerByUispID(context.Background(), 11)
	require.NoError(t, err)
	require.Equal(t, "Ada Okafor", ada.Name)
	require.Equal(t, "ada@example.com", ada.Email)
	require.True(t, ada.IsActive)

	ben, err := deps.repo.FindCustomerByUispID(context.Background(), 12)
	require.NoError(t, err)
	require.False(t, ben.IsActive)

	// Second pass updates instead of duplicating.
	stats, err = svc.SyncCustomers(context.Background())
	require.NoError(t, err)
	require.Equal(t, Stats{Processed: 2, Updated: 2}, stats)
}

func TestSyncInvoicesPostsEntryOnce(t *testing.T) {
	deps := &testDeps{
		api: &fakeAPI{
			customers: []APICustomer{{ID: 11, FirstName: "Ada", LastName: "Okafor"}},
			invoices: []APIInvoice{{
				ID: 501, ClientID: 11, Number: "2024-0042",
				Subtotal: 50, TaxAmount: 8, Total: 58,
				CreatedDate: day(2024, 3, 1), DueDate: day(2024, 3, 15), Status: 1,
			}},
		},
		repo: newMemoryRepo(), ledger: &fakeLedger{}, cashbook: &fakeCashbook{},
	}
	svc := newTestService(deps)
	_, err := svc.SyncCustomers(context.Background())
	require.NoError(t, err)

	stats, err := svc.SyncInvoices(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Equal(t, Stats{Processed: 1, New: 1}, stats)

	require.Len(t, deps.ledger.entries, 1)
	entry := deps.ledger.entries[0]
	require.Equal(t, "INV-2024-0042", entry.Reference)
	require.Equal(t, ledger.SourceUispInvoice, entry.SourceType)
	require.True(t, entry.AutoPost)
	require.Equal(t, "1140", entry.Lines[0].AccountCode)
	require.Equal(t, 58.0, entry.Lines[0].Debit)
	require.Equal(t, "4110", entry.Lines[1].AccountCode)
	require.Equal(t, 50.0, entry.Lines[1].Credit)
	require.Equal(t, "2140", entry.Lines[2].AccountCode)
	require.Equal(t, 8.0, entry.Lines[2].Credit)

	stored, err := deps.repo.FindInvoiceByUispID(context.Background(), 501)
	require.NoError(t, err)
	require.NotNil(t, stored.EntryID)
	require.Equal(t, InvoiceUnpaid, stored.Status)

	// Re-syncing the same invoice must not book revenue twice.
	stats, err = svc.SyncInvoices(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Equal(t, Stats{Processed: 1, Updated: 1}, stats)
	require.Len(t, deps.ledger.entries, 1)
}

func TestSyncInvoicesSkipsUnknownCustomer(t *testing.T) {
	deps := &testDeps{
		api: &fakeAPI{invoices: []APIInvoice{{
			ID: 501, ClientID: 99, Number: "2024-0042", Subtotal: 50, Total: 50,
			CreatedDate: day(2024, 3, 1),
		}}},
		repo: newMemoryRepo(), ledger: &fakeLedger{}, cashbook: &fakeCashbook{},
	}
	svc := newTestService(deps)

	stats, err := svc.SyncInvoices(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Equal(t, Stats{Processed: 1}, stats)
	require.Empty(t, deps.ledger.entries)
}

func TestSyncPaymentsBooksCashOnce(t *testing.T) {
	invoiceUispID := int64(501)
	deps := &testDeps{
		api: &fakeAPI{
			customers: []APICustomer{{ID: 11, FirstName: "Ada", LastName: "Okafor"}},
			invoices: []APIInvoice{{
				ID: invoiceUispID, ClientID: 11, Number: "2024-0042",
				Subtotal: 58, Total: 58, CreatedDate: day(2024, 3, 1), Status: 1,
			}},
			payments: []APIPayment{{
				ID: 901, ClientID: 11, InvoiceID: &invoiceUispID, Amount: 58,
				CreatedDate:   day(2024, 3, 10),
				Method:        &APIPaymentMethod{Name: "M-Pesa"},
				ReceiptNumber: "RCP-7781",
			}},
		},
		repo: newMemoryRepo(), ledger: &fakeLedger{}, cashbook: &fakeCashbook{},
	}
	svc := newTestService(deps)

	result, err := svc.SyncAll(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Equal(t, Stats{Processed: 1, New: 1}, result.Payments)

	// One invoice entry plus one payment entry.
	require.Len(t, deps.ledger.entries, 2)
	entry := deps.ledger.entries[1]
	require.Equal(t, "PAY-RCP-7781", entry.Reference)
	require.Equal(t, ledger.SourceUispPayment, entry.SourceType)
	require.Equal(t, "1110", entry.Lines[0].AccountCode)
	require.Equal(t, 58.0, entry.Lines[0].Debit)
	require.Equal(t, "1140", entry.Lines[1].AccountCode)
	require.Equal(t, 58.0, entry.Lines[1].Credit)

	// The cashbook receipt skips its own posting.
	require.Len(t, deps.cashbook.inputs, 1)
	receipt := deps.cashbook.inputs[0]
	require.True(t, receipt.SkipJournal)
	require.Equal(t, cashbook.TxnReceipt, receipt.Type)
	require.Equal(t, "Customer Payment", receipt.Category)
	require.Equal(t, 58.0, receipt.Amount)

	stored := deps.repo.payments[deps.repo.nextID]
	require.Equal(t, "M-Pesa", stored.Method)
	require.NotNil(t, stored.InvoiceID)
	require.NotNil(t, stored.EntryID)

	// Re-sync updates only.
	result, err = svc.SyncAll(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Equal(t, Stats{Processed: 1, Updated: 1}, result.Payments)
	require.Len(t, deps.ledger.entries, 2)
	require.Len(t, deps.cashbook.inputs, 1)
}

func TestSyncPaymentsReferenceFallback(t *testing.T) {
	deps := &testDeps{
		api: &fakeAPI{
			customers: []APICustomer{{ID: 11, FirstName: "Ada", LastName: "Okafor"}},
			payments: []APIPayment{{
				ID: 902, ClientID: 11, Amount: 25, CreatedDate: day(2024, 3, 11),
			}},
		},
		repo: newMemoryRepo(), ledger: &fakeLedger{}, cashbook: &fakeCashbook{},
	}
	svc := newTestService(deps)
	_, err := svc.SyncCustomers(context.Background())
	require.NoError(t, err)

	stats, err := svc.SyncPayments(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Equal(t, Stats{Processed: 1, New: 1}, stats)
	require.Equal(t, "PAY-902", deps.ledger.entries[0].Reference)

	stored := deps.repo.payments[deps.repo.nextID]
	require.Equal(t, "Unknown", stored.Method)
}
