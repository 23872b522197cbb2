package uisp

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository stores the local mirror of UISP customers, invoices and
// payments. Upserts key on the UISP id and report whether a row was created.
type Repository interface {
	FindCustomerByUispID(ctx context.Context, uispID int64) (Customer, error)
	UpsertCustomer(ctx context.Context, c Customer) (id int64, created bool, err error)
	ListCustomers(ctx context.Context, activeOnly bool) ([]Customer, error)

	FindInvoiceByUispID(ctx context.Context, uispID int64) (Invoice, error)
	UpsertInvoice(ctx context.Context, inv Invoice) (id int64, created bool, err error)
	SetInvoiceEntry(ctx context.Context, invoiceID, entryID int64) error

	UpsertPayment(ctx context.Context, p Payment) (id int64, created bool, err error)
	SetPaymentEntry(ctx context.Context, paymentID, entryID int64) error
}

type pgxRepository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the Postgres-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool}
}

func (r *pgxRepository) FindCustomerByUispID(ctx context.Context, uispID int64) (Customer, error) {
	var c Customer
	err := r.pool.QueryRow(ctx,
		`SELECT id, uisp_id, name, COALESCE(email, ''), COALESCE(phone, ''),
			COALESCE(address, ''), is_active, synced_at, created_at, updated_at
		 FROM customers WHERE uisp_id = $1`, uispID).
		Scan(&c.ID, &c.UispID, &c.Name, &c.Email, &c.Phone,
			&c.Address, &c.IsActive, &c.SyncedAt, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, ErrCustomerNotFound
	}
	if err != nil {
		return Customer{}, fmt.Errorf("uisp: find customer: %w", err)
	}
	return c, nil
}

func (r *pgxRepository) UpsertCustomer(ctx context.Context, c Customer) (int64, bool, error) {
	var (
		id      int64
		created bool
	)
	err := r.pool.QueryRow(ctx,
		`INSERT INTO customers (uisp_id, name, email, phone, address, is_active, synced_at, created_at, updated_at)
		 VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), $6, $7, NOW(), NOW())
		 ON CONFLICT (uisp_id) DO UPDATE SET
			name = EXCLUDED.name, email = EXCLUDED.email, phone = EXCLUDED.phone,
			address = EXCLUDED.address, is_active = EXCLUDED.is_active,
			synced_at = EXCLUDED.synced_at, updated_at = NOW()
		 RETURNING id, (xmax = 0)`,
		c.UispID, c.Name, c.Email, c.Phone, c.Address, c.IsActive, c.SyncedAt).
		Scan(&id, &created)
	if err != nil {
		return 0, false, fmt.Errorf("uisp: upsert customer: %w", err)
	}
	return id, created, nil
}

func (r *pgxRepository) ListCustomers(ctx context.Context, activeOnly bool) ([]Customer, error) {
	query := `SELECT id, uisp_id, name, COALESCE(email, ''), COALESCE(phone, ''),
			COALESCE(address, ''), is_active, synced_at, created_at, updated_at
		 FROM customers`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY name`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("uisp: list customers: %w", err)
	}
	defer rows.Close()
	var out []Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.ID, &c.UispID, &c.Name, &c.Email, &c.Phone,
			&c.Address, &c.IsActive, &c.SyncedAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("uisp: scan customer: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *pgxRepository) FindInvoiceByUispID(ctx context.Context, uispID int64) (Invoice, error) {
	var inv Invoice
	err := r.pool.QueryRow(ctx,
		`SELECT id, uisp_id, customer_id, invoice_number, invoice_date, due_date,
			amount, tax_amount, total_amount, status, journal_entry_id, synced_at, created_at
		 FROM invoices WHERE uisp_id = $1`, uispID).
		Scan(&inv.ID, &inv.UispID, &inv.CustomerID, &inv.Number, &inv.IssuedAt, &inv.DueAt,
			&inv.Subtotal, &inv.Tax, &inv.Total, &inv.Status, &inv.EntryID, &inv.SyncedAt, &inv.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, ErrInvoiceNotFound
	}
	if err != nil {
		return Invoice{}, fmt.Errorf("uisp: find invoice: %w", err)
	}
	return inv, nil
}

func (r *pgxRepository) UpsertInvoice(ctx context.Context, inv Invoice) (int64, bool, error) {
	var (
		id      int64
		created bool
	)
	err := r.pool.QueryRow(ctx,
		`INSERT INTO invoices (uisp_id, customer_id, invoice_number, invoice_date, due_date,
			amount, tax_amount, total_amount, status, synced_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		 ON CONFLICT (uisp_id) DO UPDATE SET
			customer_id = EXCLUDED.customer_id, invoice_number = EXCLUDED.invoice_number,
			invoice_date = EXCLUDED.invoice_date, due_date = EXCLUDED.due_date,
			amount = EXCLUDED.amount, tax_amount = EXCLUDED.tax_amount,
			total_amount = EXCLUDED.total_amount, status = EXCLUDED.status,
			synced_at = EXCLUDED.synced_at
		 RETURNING id, (xmax = 0)`,
		inv.UispID, inv.CustomerID, inv.Number, inv.IssuedAt, inv.DueAt,
		inv.Subtotal, inv.Tax, inv.Total, inv.Status, inv.SyncedAt).
		Scan(&id, &created)
	if err != nil {
		return 0, false, fmt.Errorf("uisp: upsert invoice: %w", err)
	}
	return id, created, nil
}

func (r *pgxRepository) SetInvoiceEntry(ctx context.Context, invoiceID, entryID int64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE invoices SET journal_entry_id = $2 WHERE id = $1`, invoiceID, entryID)
	if err != nil {
		return fmt.Errorf("uisp: set invoice entry: %w", err)
	}
	return nil
}

func (r *pgxRepository) UpsertPayment(ctx context.Context, p Payment) (int64, bool, error) {
	var (
		id      int64
		created bool
	)
	err := r.pool.QueryRow(ctx,
		`INSERT INTO payments (uisp_id, customer_id, invoice_id, amount, payment_date,
			method, reference, synced_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, NOW())
		 ON CONFLICT (uisp_id) DO UPDATE SET
			customer_id = EXCLUDED.customer_id, invoice_id = EXCLUDED.invoice_id,
			amount = EXCLUDED.amount, payment_date = EXCLUDED.payment_date,
			method = EXCLUDED.method, reference = EXCLUDED.reference,
			synced_at = EXCLUDED.synced_at
		 RETURNING id, (xmax = 0)`,
		p.UispID, p.CustomerID, p.InvoiceID, p.Amount, p.Date,
		p.Method, p.Reference, p.SyncedAt).
		Scan(&id, &created)
	if err != nil {
		return 0, false, fmt.Errorf("uisp: upsert payment: %w", err)
	}
	return id, created, nil
}

func (r *pgxRepository) SetPaymentEntry(ctx context.Context, paymentID, entryID int64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE payments SET journal_entry_id = $2 WHERE id = $1`, paymentID, entryID)
	if err != nil {
		return fmt.Errorf("uisp: set payment entry: %w", err)
	}
	return nil
}
