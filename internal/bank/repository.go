package bank

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the bank subsystem's storage port.
type Repository interface {
	CreateAccount(ctx context.Context, account Account) (int64, error)
	GetAccount(ctx context.Context, id int64) (Account, error)
	ListAccounts(ctx context.Context) ([]Account, error)
	UpdateAccountBalance(ctx context.Context, id int64, balance float64) error
	CreateTransaction(ctx context.Context, txn Transaction) (int64, error)
	FindDuplicate(ctx context.Context, accountID int64, date time.Time, amount float64, description string) (bool, error)
	Transactions(ctx context.Context, accountID int64, from, to time.Time) ([]Transaction, error)
	BalanceAsOf(ctx context.Context, accountID int64, asOf time.Time) (float64, error)
	CreateStatement(ctx context.Context, st Statement) (int64, error)
}

type pgxRepository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the Postgres-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool}
}

func (r *pgxRepository) CreateAccount(ctx context.Context, account Account) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO bank_accounts
			(name, bank_name, account_number, currency, opening_balance, current_balance, is_active, created_at, updated_at)
		 VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, $6, TRUE, NOW(), NOW())
		 RETURNING id`,
		account.Name, account.BankName, account.AccountNumber, account.Currency,
		account.OpeningBalance, account.CurrentBalance,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("bank: create account: %w", err)
	}
	return id, nil
}

const accountColumns = `id, name, COALESCE(bank_name, ''), COALESCE(account_number, ''), currency,
	opening_balance, current_balance, is_active, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Name, &a.BankName, &a.AccountNumber, &a.Currency,
		&a.OpeningBalance, &a.CurrentBalance, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *pgxRepository) GetAccount(ctx context.Context, id int64) (Account, error) {
	a, err := scanAccount(r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM bank_accounts WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrAccountNotFound
	}
	if err != nil {
		return Account{}, fmt.Errorf("bank: get account: %w", err)
	}
	return a, nil
}

func (r *pgxRepository) ListAccounts(ctx context.Context) ([]Account, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+accountColumns+` FROM bank_accounts WHERE is_active ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("bank: list accounts: %w", err)
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("bank: scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *pgxRepository) UpdateAccountBalance(ctx context.Context, id int64, balance float64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE bank_accounts SET current_balance = $2, updated_at = NOW() WHERE id = $1`, id, balance)
	if err != nil {
		return fmt.Errorf("bank: update balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *pgxRepository) CreateTransaction(ctx context.Context, txn Transaction) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO bank_transactions
			(bank_account_id, transaction_date, type, amount, description, reference,
			 statement_ref, balance_after, is_reconciled, source_type, source_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8, FALSE, $9, NULLIF($10, 0), NOW())
		 RETURNING id`,
		txn.AccountID, txn.Date, txn.Type, txn.Amount, txn.Description, txn.Reference,
		txn.StatementRef, txn.BalanceAfter, txn.SourceType, txn.SourceID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("bank: create transaction: %w", err)
	}
	return id, nil
}

func (r *pgxRepository) FindDuplicate(ctx context.Context, accountID int64, date time.Time, amount float64, description string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM bank_transactions
			WHERE bank_account_id = $1 AND transaction_date = $2
			  AND ABS(amount - $3) < 0.01 AND description = $4
		 )`,
		accountID, date, amount, description,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("bank: find duplicate: %w", err)
	}
	return exists, nil
}

const txnColumns = `id, bank_account_id, transaction_date, type, amount, description,
	COALESCE(reference, ''), COALESCE(statement_ref, ''), balance_after, is_reconciled,
	reconciled_at, source_type, COALESCE(source_id, 0), created_at`

func (r *pgxRepository) Transactions(ctx context.Context, accountID int64, from, to time.Time) ([]Transaction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+txnColumns+` FROM bank_transactions
		 WHERE bank_account_id = $1 AND transaction_date BETWEEN $2 AND $3
		 ORDER BY transaction_date, id`,
		accountID, from, to)
	if err != nil {
		return nil, fmt.Errorf("bank: list transactions: %w", err)
	}
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		var t Transaction
		err := rows.Scan(&t.ID, &t.AccountID, &t.Date, &t.Type, &t.Amount, &t.Description,
			&t.Reference, &t.StatementRef, &t.BalanceAfter, &t.Reconciled,
			&t.ReconciledAt, &t.SourceType, &t.SourceID, &t.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("bank: scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// BalanceAsOf derives the balance at a date from the opening balance plus all
// movements up to and including it.
func (r *pgxRepository) BalanceAsOf(ctx context.Context, accountID int64, asOf time.Time) (float64, error) {
	var balance float64
	err := r.pool.QueryRow(ctx,
		`SELECT a.opening_balance + COALESCE(SUM(
			CASE WHEN t.type = 'credit' THEN t.amount ELSE -t.amount END
		 ), 0)
		 FROM bank_accounts a
		 LEFT JOIN bank_transactions t
			ON t.bank_account_id = a.id AND t.transaction_date <= $2
		 WHERE a.id = $1
		 GROUP BY a.opening_balance`,
		accountID, asOf,
	).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrAccountNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("bank: balance as of: %w", err)
	}
	return balance, nil
}

func (r *pgxRepository) CreateStatement(ctx context.Context, st Statement) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO bank_statements
			(bank_account_id, statement_date, opening_balance, closing_balance, filename, created_at)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), NOW())
		 RETURNING id`,
		st.AccountID, st.Date, st.OpeningBalance, st.ClosingBalance, st.Filename,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("bank: create statement: %w", err)
	}
	return id, nil
}
