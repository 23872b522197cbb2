package expense

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the expense storage port.
type Repository interface {
	Create(ctx context.Context, e Expense) (int64, error)
	Find(ctx context.Context, id int64) (Expense, error)
	MarkApproved(ctx context.Context, id, approvedBy int64, at time.Time) error
	MarkRejected(ctx context.Context, id int64) error
	MarkPaid(ctx context.Context, id int64, at time.Time) error
	FindByStatus(ctx context.Context, status Status) ([]Expense, error)
	FindByPeriod(ctx context.Context, from, to time.Time, status Status) ([]Expense, error)
	GetCategory(ctx context.Context, id int64) (Category, error)
	CountForDay(ctx context.Context, day time.Time) (int, error)
	LogApproval(ctx context.Context, log ApprovalLog) error
}

type pgxRepository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the Postgres-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool}
}

func (r *pgxRepository) Create(ctx context.Context, e Expense) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO expenses
			(expense_number, vendor_id, category_id, amount, tax_amount, total_amount,
			 expense_date, description, reference, payment_source, payment_source_id,
			 status, submitted_by, approved_by, approved_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), NULLIF($10, ''), NULLIF($11, 0),
			 $12, NULLIF($13, 0), $14, $15, NOW())
		 RETURNING id`,
		e.Number, e.VendorID, e.CategoryID, e.Amount, e.TaxAmount, e.TotalAmount,
		e.Date, e.Description, e.Reference, e.PaymentSource, e.PaymentSourceID,
		e.Status, e.SubmittedBy, e.ApprovedBy, e.ApprovedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("expense: create: %w", err)
	}
	return id, nil
}

const expenseColumns = `e.id, e.expense_number, e.vendor_id, COALESCE(v.name, ''),
	e.category_id, COALESCE(c.name, ''), e.amount, e.tax_amount, e.total_amount,
	e.expense_date, e.description, COALESCE(e.reference, ''), COALESCE(e.payment_source, ''),
	COALESCE(e.payment_source_id, 0), e.status, COALESCE(e.submitted_by, 0),
	e.approved_by, e.approved_at, e.paid_at, e.created_at`

const expenseFrom = ` FROM expenses e
	LEFT JOIN expense_categories c ON c.id = e.category_id
	LEFT JOIN vendors v ON v.id = e.vendor_id`

func scanExpense(row pgx.Row) (Expense, error) {
	var e Expense
	err := row.Scan(&e.ID, &e.Number, &e.VendorID, &e.VendorName,
		&e.CategoryID, &e.CategoryName, &e.Amount, &e.TaxAmount, &e.TotalAmount,
		&e.Date, &e.Description, &e.Reference, &e.PaymentSource,
		&e.PaymentSourceID, &e.Status, &e.SubmittedBy,
		&e.ApprovedBy, &e.ApprovedAt, &e.PaidAt, &e.CreatedAt)
	return e, err
}

func (r *pgxRepository) Find(ctx context.Context, id int64) (Expense, error) {
	e, err := scanExpense(r.pool.QueryRow(ctx,
		`SELECT `+expenseColumns+expenseFrom+` WHERE e.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Expense{}, ErrNotFound
	}
	if err != nil {
		return Expense{}, fmt.Errorf("expense: find: %w", err)
	}
	return e, nil
}

func (r *pgxRepository) MarkApproved(ctx context.Context, id, approvedBy int64, at time.Time) error {
	return r.exec(ctx,
		`UPDATE expenses SET status = 'approved', approved_by = $2, approved_at = $3 WHERE id = $1`,
		id, approvedBy, at)
}

func (r *pgxRepository) MarkRejected(ctx context.Context, id int64) error {
	return r.exec(ctx, `UPDATE expenses SET status = 'rejected' WHERE id = $1`, id)
}

func (r *pgxRepository) MarkPaid(ctx context.Context, id int64, at time.Time) error {
	return r.exec(ctx, `UPDATE expenses SET status = 'paid', paid_at = $2 WHERE id = $1`, id, at)
}

func (r *pgxRepository) exec(ctx context.Context, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("expense: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgxRepository) queryExpenses(ctx context.Context, query string, args ...any) ([]Expense, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("expense: query: %w", err)
	}
	defer rows.Close()
	var out []Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("expense: scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *pgxRepository) FindByStatus(ctx context.Context, status Status) ([]Expense, error) {
	return r.queryExpenses(ctx,
		`SELECT `+expenseColumns+expenseFrom+` WHERE e.status = $1 ORDER BY e.expense_date, e.id`,
		status)
}

func (r *pgxRepository) FindByPeriod(ctx context.Context, from, to time.Time, status Status) ([]Expense, error) {
	query := `SELECT ` + expenseColumns + expenseFrom + ` WHERE e.expense_date BETWEEN $1 AND $2`
	args := []any{from, to}
	if status != "" {
		query += ` AND e.status = $3`
		args = append(args, status)
	}
	query += ` ORDER BY e.expense_date, e.id`
	return r.queryExpenses(ctx, query, args...)
}

func (r *pgxRepository) GetCategory(ctx context.Context, id int64) (Category, error) {
	var c Category
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, COALESCE(account_code, '') FROM expense_categories WHERE id = $1`,
		id).Scan(&c.ID, &c.Name, &c.AccountCode)
	if errors.Is(err, pgx.ErrNoRows) {
		return Category{}, ErrCategoryNotFound
	}
	if err != nil {
		return Category{}, fmt.Errorf("expense: get category: %w", err)
	}
	return c, nil
}

func (r *pgxRepository) CountForDay(ctx context.Context, day time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM expenses WHERE created_at::date = $1::date`, day).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("expense: count for day: %w", err)
	}
	return n, nil
}

func (r *pgxRepository) LogApproval(ctx context.Context, log ApprovalLog) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO approval_logs
			(entity_type, entity_id, action, approver_id, previous_status, new_status, comments, created_at)
		 VALUES ('expense', $1, $2, $3, $4, $5, NULLIF($6, ''), $7)`,
		log.ExpenseID, log.Action, log.ApproverID, log.PreviousStatus, log.NewStatus, log.Comments, log.At)
	if err != nil {
		return fmt.Errorf("expense: log approval: %w", err)
	}
	return nil
}
