package coa

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrAccountNotFound indicates a missing chart-of-accounts row.
var ErrAccountNotFound = errors.New("coa: account not found")

// Repository encapsulates DB access to the chart of accounts.
type Repository interface {
	Find(ctx context.Context, id int64) (Account, error)
	FindByCode(ctx context.Context, code string) (Account, error)
	List(ctx context.Context) ([]Account, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns a Postgres-backed Repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const accountColumns = `id, code, name, type, parent_id, balance, is_active, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.ParentID, &a.Balance, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func (r *repository) Find(ctx context.Context, id int64) (Account, error) {
	return scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM chart_of_accounts WHERE id=$1`, id))
}

func (r *repository) FindByCode(ctx context.Context, code string) (Account, error) {
	return scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM chart_of_accounts WHERE code=$1`, code))
}

func (r *repository) List(ctx context.Context) ([]Account, error) {
	rows, err := r.db.Query(ctx, `SELECT `+accountColumns+` FROM chart_of_accounts WHERE is_active ORDER BY code ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.ParentID, &a.Balance, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}
