package cashbook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the cashbook storage port.
type Repository interface {
	Create(ctx context.Context, txn Transaction) (int64, error)
	SumUpTo(ctx context.Context, asOf time.Time) (receipts, payments float64, err error)
	FindByPeriod(ctx context.Context, from, to time.Time, txnType TxnType) ([]Transaction, error)
	FindByDate(ctx context.Context, date time.Time) ([]Transaction, error)
	GetDailySummary(ctx context.Context, date time.Time) (DailySummary, error)
	UpsertDailySummary(ctx context.Context, summary DailySummary) error
}

type pgxRepository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the Postgres-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool}
}

func (r *pgxRepository) Create(ctx context.Context, txn Transaction) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO cashbook_transactions
			(transaction_date, type, category, amount, description, reference,
			 source_type, source_id, balance_after, created_by, created_at)
		 VALUES ($1, $2, NULLIF($3, ''), $4, $5, NULLIF($6, ''), $7, NULLIF($8, 0), $9, NULLIF($10, 0), NOW())
		 RETURNING id`,
		txn.Date, txn.Type, txn.Category, txn.Amount, txn.Description, txn.Reference,
		txn.SourceType, txn.SourceID, txn.BalanceAfter, txn.CreatedBy,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("cashbook: create transaction: %w", err)
	}
	return id, nil
}

func (r *pgxRepository) SumUpTo(ctx context.Context, asOf time.Time) (float64, float64, error) {
	var receipts, payments float64
	err := r.pool.QueryRow(ctx,
		`SELECT
			COALESCE(SUM(amount) FILTER (WHERE type = 'receipt'), 0),
			COALESCE(SUM(amount) FILTER (WHERE type = 'payment'), 0)
		 FROM cashbook_transactions WHERE transaction_date <= $1`,
		asOf,
	).Scan(&receipts, &payments)
	if err != nil {
		return 0, 0, fmt.Errorf("cashbook: sum up to: %w", err)
	}
	return receipts, payments, nil
}

const txnColumns = `id, transaction_date, type, COALESCE(category, ''), amount, description,
	COALESCE(reference, ''), source_type, COALESCE(source_id, 0), balance_after,
	COALESCE(created_by, 0), created_at`

func (r *pgxRepository) queryTxns(ctx context.Context, query string, args ...any) ([]Transaction, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("cashbook: query transactions: %w", err)
	}
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		var t Transaction
		err := rows.Scan(&t.ID, &t.Date, &t.Type, &t.Category, &t.Amount, &t.Description,
			&t.Reference, &t.SourceType, &t.SourceID, &t.BalanceAfter, &t.CreatedBy, &t.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("cashbook: scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *pgxRepository) FindByPeriod(ctx context.Context, from, to time.Time, txnType TxnType) ([]Transaction, error) {
	query := `SELECT ` + txnColumns + ` FROM cashbook_transactions
		WHERE transaction_date BETWEEN $1 AND $2`
	args := []any{from, to}
	if txnType != "" {
		query += ` AND type = $3`
		args = append(args, txnType)
	}
	query += ` ORDER BY transaction_date, id`
	return r.queryTxns(ctx, query, args...)
}

func (r *pgxRepository) FindByDate(ctx context.Context, date time.Time) ([]Transaction, error) {
	return r.queryTxns(ctx,
		`SELECT `+txnColumns+` FROM cashbook_transactions
		 WHERE transaction_date = $1 ORDER BY id`, date)
}

func (r *pgxRepository) GetDailySummary(ctx context.Context, date time.Time) (DailySummary, error) {
	var s DailySummary
	err := r.pool.QueryRow(ctx,
		`SELECT summary_date, opening_balance, total_receipts, total_payments,
			closing_balance, is_closed, closed_at, closed_by
		 FROM cashbook_daily_summaries WHERE summary_date = $1`,
		date,
	).Scan(&s.Date, &s.OpeningBalance, &s.TotalReceipts, &s.TotalPayments,
		&s.ClosingBalance, &s.IsClosed, &s.ClosedAt, &s.ClosedBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return DailySummary{}, ErrSummaryNotFound
	}
	if err != nil {
		return DailySummary{}, fmt.Errorf("cashbook: get daily summary: %w", err)
	}
	return s, nil
}

func (r *pgxRepository) UpsertDailySummary(ctx context.Context, summary DailySummary) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO cashbook_daily_summaries
			(summary_date, opening_balance, total_receipts, total_payments,
			 closing_balance, is_closed, closed_at, closed_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (summary_date) DO UPDATE SET
			opening_balance = EXCLUDED.opening_balance,
			total_receipts = EXCLUDED.total_receipts,
			total_payments = EXCLUDED.total_payments,
			closing_balance = EXCLUDED.closing_balance,
			is_closed = EXCLUDED.is_closed,
			closed_at = EXCLUDED.closed_at,
			closed_by = EXCLUDED.closed_by`,
		summary.Date, summary.OpeningBalance, summary.TotalReceipts, summary.TotalPayments,
		summary.ClosingBalance, summary.IsClosed, summary.ClosedAt, summary.ClosedBy)
	if err != nil {
		return fmt.Errorf("cashbook: upsert daily summary: %w", err)
	}
	return nil
}
