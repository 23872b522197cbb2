package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads the aggregate queries behind the dashboard. It spans the
// tables other packages own; everything here is read-only.
type Repository interface {
	CashMovementTotals(ctx context.Context) (receipts, payments float64, err error)
	BankBalanceTotal(ctx context.Context) (float64, error)
	ReceivablesTotal(ctx context.Context) (float64, error)
	PendingExpenses(ctx context.Context) (total float64, count int64, err error)
	UnreconciledCount(ctx context.Context) (int64, error)
	DayTotals(ctx context.Context, day time.Time) (receipts, payments float64, err error)
	RevenueBetween(ctx context.Context, from, to time.Time) (float64, error)
	PaidExpensesBetween(ctx context.Context, from, to time.Time) (float64, error)
	OverdueInvoiceCount(ctx context.Context, asOf time.Time) (int64, error)
	CashFlow(ctx context.Context, from, to time.Time) ([]FlowPoint, error)
	AgedReceivables(ctx context.Context, asOf time.Time) ([]AgedBucket, error)
	RecentActivity(ctx context.Context, limit int) ([]Activity, error)
	LastSyncedAt(ctx context.Context) (time.Time, error)
}

type pgxRepository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the Postgres-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool}
}

func (r *pgxRepository) CashMovementTotals(ctx context.Context) (float64, float64, error) {
	var receipts, payments float64
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount) FILTER (WHERE type = 'receipt'), 0),
			COALESCE(SUM(amount) FILTER (WHERE type = 'payment'), 0)
		 FROM cashbook_transactions`).Scan(&receipts, &payments)
	if err != nil {
		return 0, 0, fmt.Errorf("dashboard: cash totals: %w", err)
	}
	return receipts, payments, nil
}

func (r *pgxRepository) BankBalanceTotal(ctx context.Context) (float64, error) {
	var total float64
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(current_balance), 0) FROM bank_accounts WHERE is_active`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("dashboard: bank balance: %w", err)
	}
	return total, nil
}

func (r *pgxRepository) ReceivablesTotal(ctx context.Context) (float64, error) {
	var total float64
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(total_amount), 0) FROM invoices
		 WHERE status IN ('unpaid', 'partially_paid')`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("dashboard: receivables: %w", err)
	}
	return total, nil
}

func (r *pgxRepository) PendingExpenses(ctx context.Context) (float64, int64, error) {
	var (
		total float64
		count int64
	)
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(total_amount), 0), COUNT(*) FROM expenses WHERE status = 'pending'`).
		Scan(&total, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("dashboard: pending expenses: %w", err)
	}
	return total, count, nil
}

func (r *pgxRepository) UnreconciledCount(ctx context.Context) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM bank_transactions WHERE NOT is_reconciled`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("dashboard: unreconciled count: %w", err)
	}
	return count, nil
}

func (r *pgxRepository) DayTotals(ctx context.Context, day time.Time) (float64, float64, error) {
	var receipts, payments float64
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount) FILTER (WHERE type = 'receipt'), 0),
			COALESCE(SUM(amount) FILTER (WHERE type = 'payment'), 0)
		 FROM cashbook_transactions WHERE transaction_date = $1::date`, day).
		Scan(&receipts, &payments)
	if err != nil {
		return 0, 0, fmt.Errorf("dashboard: day totals: %w", err)
	}
	return receipts, payments, nil
}

func (r *pgxRepository) RevenueBetween(ctx context.Context, from, to time.Time) (float64, error) {
	var total float64
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM invoices
		 WHERE invoice_date BETWEEN $1 AND $2`, from, to).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("dashboard: revenue: %w", err)
	}
	return total, nil
}

func (r *pgxRepository) PaidExpensesBetween(ctx context.Context, from, to time.Time) (float64, error) {
	var total float64
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(total_amount), 0) FROM expenses
		 WHERE expense_date BETWEEN $1 AND $2 AND status = 'paid'`, from, to).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("dashboard: paid expenses: %w", err)
	}
	return total, nil
}

func (r *pgxRepository) OverdueInvoiceCount(ctx context.Context, asOf time.Time) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM invoices
		 WHERE status IN ('unpaid', 'partially_paid') AND due_date < $1::date`, asOf).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("dashboard: overdue invoices: %w", err)
	}
	return count, nil
}

func (r *pgxRepository) CashFlow(ctx context.Context, from, to time.Time) ([]FlowPoint, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT transaction_date::text,
			COALESCE(SUM(amount) FILTER (WHERE type = 'receipt'), 0),
			COALESCE(SUM(amount) FILTER (WHERE type = 'payment'), 0)
		 FROM cashbook_transactions
		 WHERE transaction_date BETWEEN $1 AND $2
		 GROUP BY transaction_date ORDER BY transaction_date`, from, to)
	if err != nil {
		return nil, fmt.Errorf("dashboard: cash flow: %w", err)
	}
	defer rows.Close()
	var out []FlowPoint
	for rows.Next() {
		var p FlowPoint
		if err := rows.Scan(&p.Date, &p.Receipts, &p.Payments); err != nil {
			return nil, fmt.Errorf("dashboard: scan cash flow: %w", err)
		}
		p.Net = p.Receipts - p.Payments
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *pgxRepository) AgedReceivables(ctx context.Context, asOf time.Time) ([]AgedBucket, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT CASE
			WHEN $1::date - due_date::date <= 0 THEN 'current'
			WHEN $1::date - due_date::date <= 30 THEN '1-30'
			WHEN $1::date - due_date::date <= 60 THEN '31-60'
			WHEN $1::date - due_date::date <= 90 THEN '61-90'
			ELSE '90+'
		 END AS age_bucket, COUNT(*), SUM(total_amount)
		 FROM invoices
		 WHERE status IN ('unpaid', 'partially_paid')
		 GROUP BY age_bucket`, asOf)
	if err != nil {
		return nil, fmt.Errorf("dashboard: aged receivables: %w", err)
	}
	defer rows.Close()
	var out []AgedBucket
	for rows.Next() {
		var b AgedBucket
		if err := rows.Scan(&b.Bucket, &b.Count, &b.Total); err != nil {
			return nil, fmt.Errorf("dashboard: scan bucket: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *pgxRepository) RecentActivity(ctx context.Context, limit int) ([]Activity, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT action, entity, entity_id, COALESCE(actor_id, 0), occurred_at
		 FROM audit_logs ORDER BY occurred_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("dashboard: recent activity: %w", err)
	}
	defer rows.Close()
	var out []Activity
	for rows.Next() {
		var a Activity
		if err := rows.Scan(&a.Action, &a.Entity, &a.EntityID, &a.ActorID, &a.At); err != nil {
			return nil, fmt.Errorf("dashboard: scan activity: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *pgxRepository) LastSyncedAt(ctx context.Context) (time.Time, error) {
	var last *time.Time
	err := r.pool.QueryRow(ctx, `SELECT MAX(synced_at) FROM customers`).Scan(&last)
	if err != nil {
		return time.Time{}, fmt.Errorf("dashboard: last sync: %w", err)
	}
	if last == nil {
		return time.Time{}, nil
	}
	return *last, nil
}
