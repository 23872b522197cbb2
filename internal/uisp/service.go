package uisp

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/ispbooks/ispbooks/internal/cashbook"
	"github.com/ispbooks/ispbooks/internal/coa"
	"github.com/ispbooks/ispbooks/internal/ledger"
)

// API is the slice of the UISP client the sync needs.
type API interface {
	Customers(ctx context.Context) ([]APICustomer, error)
	Invoices(ctx context.Context, since time.Time) ([]APIInvoice, error)
	Payments(ctx context.Context, since time.Time) ([]APIPayment, error)
}

// LedgerPort posts journal entries for newly synced invoices and payments.
type LedgerPort interface {
	CreateEntry(ctx context.Context, input ledger.CreateEntryInput) (ledger.JournalEntry, error)
}

// CashbookPort records cash receipts for newly synced payments.
type CashbookPort interface {
	RecordTransaction(ctx context.Context, input cashbook.TransactionInput) (cashbook.Transaction, error)
}

// Stats counts the outcome of one sync pass over a collection.
type Stats struct {
	Processed int `json:"processed"`
	New       int `json:"new"`
	Updated   int `json:"updated"`
	Errors    int `json:"errors"`
}

// SyncResult groups the per-collection stats of a full sync.
type SyncResult struct {
	Customers Stats `json:"customers"`
	Invoices  Stats `json:"invoices"`
	Payments  Stats `json:"payments"`
}

// Service mirrors UISP billing data into local tables and books the
// accounting side effects. UISP itself is never written to.
type Service struct {
	api    API
	repo   Repository
	ledger LedgerPort
	cash   CashbookPort
	roles  coa.RoleMap
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds a Service instance.
func NewService(api API, repo Repository, ledgerPort LedgerPort, cashbookPort CashbookPort,
	roles coa.RoleMap, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		api:    api,
		repo:   repo,
		ledger: ledgerPort,
		cash:   cashbookPort,
		roles:  roles,
		logger: logger,
		now:    time.Now,
	}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// SyncAll runs customers, then invoices, then payments. Order matters:
// invoices and payments are skipped until their customer exists locally.
func (s *Service) SyncAll(ctx context.Context, since time.Time) (SyncResult, error) {
	var result SyncResult
	var err error
	if result.Customers, err = s.SyncCustomers(ctx); err != nil {
		return result, err
	}
	if result.Invoices, err = s.SyncInvoices(ctx, since); err != nil {
		return result, err
	}
	if result.Payments, err = s.SyncPayments(ctx, since); err != nil {
		return result, err
	}
	return result, nil
}

// SyncCustomers mirrors all UISP clients.
func (s *Service) SyncCustomers(ctx context.Context) (Stats, error) {
	var stats Stats
	customers, err := s.api.Customers(ctx)
	if err != nil {
		return stats, err
	}
	syncedAt := s.now()
	for _, c := range customers {
		stats.Processed++
		local := Customer{
			UispID:   c.ID,
			Name:     c.Name(),
			Address:  c.Address(),
			IsActive: !c.IsArchived,
			SyncedAt: syncedAt,
		}
		if len(c.Contacts) > 0 {
			local.Email = c.Contacts[0].Email
			local.Phone = c.Contacts[0].Phone
		}
		_, created, err := s.repo.UpsertCustomer(ctx, local)
		if err != nil {
			stats.Errors++
			s.logger.Error("customer sync", slog.Int64("uisp_id", c.ID), slog.Any("error", err))
			continue
		}
		if created {
			stats.New++
		} else {
			stats.Updated++
		}
	}
	s.logger.Info("customers synced", slog.Int("processed", stats.Processed), slog.Int("new", stats.New))
	return stats, nil
}

// SyncInvoices mirrors UISP invoices created since the given time. A new
// invoice books a receivable against service revenue.
func (s *Service) SyncInvoices(ctx context.Context, since time.Time) (Stats, error) {
	var stats Stats
	invoices, err := s.api.Invoices(ctx, since)
	if err != nil {
		return stats, err
	}
	syncedAt := s.now()
	for _, inv := range invoices {
		stats.Processed++
		customer, err := s.repo.FindCustomerByUispID(ctx, inv.ClientID)
		if err != nil {
			// Customer not mirrored yet, picked up on the next pass.
			continue
		}
		local := Invoice{
			UispID:     inv.ID,
			CustomerID: customer.ID,
			Number:     inv.Number,
			IssuedAt:   inv.CreatedDate,
			DueAt:      inv.DueDate,
			Subtotal:   inv.Subtotal,
			Tax:        inv.TaxAmount,
			Total:      inv.Total,
			Status:     mapInvoiceStatus(inv.Status),
			SyncedAt:   syncedAt,
		}
		id, created, err := s.repo.UpsertInvoice(ctx, local)
		if err != nil {
			stats.Errors++
			s.logger.Error("invoice sync", slog.Int64("uisp_id", inv.ID), slog.Any("error", err))
			continue
		}
		if !created {
			stats.Updated++
			continue
		}
		stats.New++
		if err := s.postInvoiceEntry(ctx, id, local); err != nil {
			stats.Errors++
			s.logger.Error("invoice entry", slog.Int64("invoice_id", id), slog.Any("error", err))
		}
	}
	s.logger.Info("invoices synced", slog.Int("processed", stats.Processed), slog.Int("new", stats.New))
	return stats, nil
}

// SyncPayments mirrors UISP payments created since the given time. A new
// payment books cash against the receivable and lands in the cashbook, which
// also feeds the pool the bank matcher draws candidates from.
func (s *Service) SyncPayments(ctx context.Context, since time.Time) (Stats, error) {
	var stats Stats
	payments, err := s.api.Payments(ctx, since)
	if err != nil {
		return stats, err
	}
	syncedAt := s.now()
	for _, p := range payments {
		stats.Processed++
		customer, err := s.repo.FindCustomerByUispID(ctx, p.ClientID)
		if err != nil {
			continue
		}
		local := Payment{
			UispID:     p.ID,
			CustomerID: customer.ID,
			Amount:     p.Amount,
			Date:       p.CreatedDate,
			Method:     "Unknown",
			Reference:  p.ReceiptNumber,
			SyncedAt:   syncedAt,
		}
		if p.Method != nil && p.Method.Name != "" {
			local.Method = p.Method.Name
		}
		if p.InvoiceID != nil {
			if inv, err := s.repo.FindInvoiceByUispID(ctx, *p.InvoiceID); err == nil {
				local.InvoiceID = &inv.ID
			}
		}
		id, created, err := s.repo.UpsertPayment(ctx, local)
		if err != nil {
			stats.Errors++
			s.logger.Error("payment sync", slog.Int64("uisp_id", p.ID), slog.Any("error", err))
			continue
		}
		if !created {
			stats.Updated++
			continue
		}
		stats.New++
		if err := s.bookPayment(ctx, id, local); err != nil {
			stats.Errors++
			s.logger.Error("payment booking", slog.Int64("payment_id", id), slog.Any("error", err))
		}
	}
	s.logger.Info("payments synced", slog.Int("processed", stats.Processed), slog.Int("new", stats.New))
	return stats, nil
}

// postInvoiceEntry debits the receivable for the invoice total and credits
// service revenue plus tax payable.
func (s *Service) postInvoiceEntry(ctx context.Context, invoiceID int64, inv Invoice) error {
	arCode, err := s.roles.Code(coa.RoleAccountsReceivable)
	if err != nil {
		return err
	}
	revenueCode, err := s.roles.Code(coa.RoleServiceRevenue)
	if err != nil {
		return err
	}
	lines := []ledger.LineInput{
		{AccountCode: arCode, Debit: inv.Total, Description: "Customer invoice receivable"},
		{AccountCode: revenueCode, Credit: inv.Subtotal, Description: "Service revenue"},
	}
	if inv.Tax > 0 {
		taxCode, err := s.roles.Code(coa.RoleTaxPayable)
		if err != nil {
			return err
		}
		lines = append(lines, ledger.LineInput{
			AccountCode: taxCode, Credit: inv.Tax, Description: "Sales tax",
		})
	}
	entry, err := s.ledger.CreateEntry(ctx, ledger.CreateEntryInput{
		Date:        inv.IssuedAt,
		Reference:   "INV-" + inv.Number,
		Description: "Invoice " + inv.Number,
		SourceType:  ledger.SourceUispInvoice,
		SourceID:    invoiceID,
		Lines:       lines,
		AutoPost:    true,
	})
	if err != nil {
		return err
	}
	return s.repo.SetInvoiceEntry(ctx, invoiceID, entry.ID)
}

// bookPayment posts cash against the receivable and records the cashbook
// receipt. The receipt skips its own journal posting so the payment is booked
// exactly once.
func (s *Service) bookPayment(ctx context.Context, paymentID int64, p Payment) error {
	cashCode, err := s.roles.Code(coa.RoleCashOnHand)
	if err != nil {
		return err
	}
	arCode, err := s.roles.Code(coa.RoleAccountsReceivable)
	if err != nil {
		return err
	}
	reference := p.Reference
	if reference == "" {
		reference = strconv.FormatInt(p.UispID, 10)
	}
	entry, err := s.ledger.CreateEntry(ctx, ledger.CreateEntryInput{
		Date:        p.Date,
		Reference:   "PAY-" + reference,
		Description: "Payment received",
		SourceType:  ledger.SourceUispPayment,
		SourceID:    paymentID,
		Lines: []ledger.LineInput{
			{AccountCode: cashCode, Debit: p.Amount, Description: "Payment received"},
			{AccountCode: arCode, Credit: p.Amount, Description: "Payment against receivable"},
		},
		AutoPost: true,
	})
	if err != nil {
		return err
	}
	if err := s.repo.SetPaymentEntry(ctx, paymentID, entry.ID); err != nil {
		return err
	}
	_, err = s.cash.RecordTransaction(ctx, cashbook.TransactionInput{
		Date:        p.Date,
		Type:        cashbook.TxnReceipt,
		Category:    "Customer Payment",
		Amount:      p.Amount,
		Description: "Payment from customer - " + reference,
		Reference:   reference,
		SourceType:  ledger.SourceUispPayment,
		SourceID:    paymentID,
		SkipJournal: true,
	})
	return err
}

// Customers lists the mirrored customers.
func (s *Service) Customers(ctx context.Context, activeOnly bool) ([]Customer, error) {
	return s.repo.ListCustomers(ctx, activeOnly)
}

func mapInvoiceStatus(status int) InvoiceStatus {
	switch status {
	case 0:
		return InvoiceDraft
	case 1:
		return InvoiceUnpaid
	case 2:
		return InvoicePartial
	case 3:
		return InvoicePaid
	case 4:
		return InvoiceVoided
	default:
		return InvoiceUnpaid
	}
}
