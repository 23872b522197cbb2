package recon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ispbooks/ispbooks/internal/bank"
	"github.com/ispbooks/ispbooks/internal/platform/db"
	"github.com/ispbooks/ispbooks/internal/uisp"
)

// Repository is the matching engine's view of storage. Bank transactions and
// payments are owned by their subsystems; this repository only reads them,
// except for the reconciliation flag which confirm/unmatch flip.
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
	GetTransaction(ctx context.Context, id int64) (bank.Transaction, error)
	UnreconciledTransactions(ctx context.Context, accountID int64) ([]bank.Transaction, error)
	PaymentsByAmountAndDate(ctx context.Context, amount float64, from, to time.Time) ([]uisp.Payment, error)
	PaymentsByReference(ctx context.Context, reference string) ([]uisp.Payment, error)
	UnmatchedPayments(ctx context.Context) ([]uisp.Payment, error)
	GetPayment(ctx context.Context, id int64) (uisp.Payment, error)
	CurrentMatch(ctx context.Context, bankTxnID int64) (Match, error)
	CountTransactions(ctx context.Context, accountID int64) (total, reconciled int64, err error)
	CountSuggested(ctx context.Context, accountID int64) (int64, error)
}

// TxRepository is the transactional slice used by confirm and unmatch.
type TxRepository interface {
	GetTransactionForUpdate(ctx context.Context, id int64) (bank.Transaction, error)
	GetPayment(ctx context.Context, id int64) (uisp.Payment, error)
	CurrentMatchForUpdate(ctx context.Context, bankTxnID int64) (Match, error)
	InsertMatch(ctx context.Context, m Match) (int64, error)
	UpdateMatch(ctx context.Context, m Match) error
	SetReconciled(ctx context.Context, txnID int64, reconciled bool, at *time.Time) error
}

type pgxRepository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the Postgres-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool}
}

type pgxTxRepository struct {
	tx pgx.Tx
}

func (r *pgxRepository) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgxTxRepository{tx: tx})
	})
}

const txnColumns = `id, bank_account_id, transaction_date, type, amount, description,
	COALESCE(reference, ''), is_reconciled, reconciled_at, source_type, COALESCE(source_id, 0), created_at`

func scanTransaction(row pgx.Row) (bank.Transaction, error) {
	var t bank.Transaction
	err := row.Scan(&t.ID, &t.AccountID, &t.Date, &t.Type, &t.Amount, &t.Description,
		&t.Reference, &t.Reconciled, &t.ReconciledAt, &t.SourceType, &t.SourceID, &t.CreatedAt)
	return t, err
}

func (r *pgxRepository) GetTransaction(ctx context.Context, id int64) (bank.Transaction, error) {
	t, err := scanTransaction(r.pool.QueryRow(ctx,
		`SELECT `+txnColumns+` FROM bank_transactions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return bank.Transaction{}, bank.ErrTransactionNotFound
	}
	if err != nil {
		return bank.Transaction{}, fmt.Errorf("recon: get transaction: %w", err)
	}
	return t, nil
}

func (r *pgxRepository) UnreconciledTransactions(ctx context.Context, accountID int64) ([]bank.Transaction, error) {
	query := `SELECT ` + txnColumns + ` FROM bank_transactions WHERE is_reconciled = FALSE`
	args := []any{}
	if accountID != 0 {
		query += ` AND bank_account_id = $1`
		args = append(args, accountID)
	}
	query += ` ORDER BY transaction_date, id`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("recon: list unreconciled: %w", err)
	}
	defer rows.Close()
	var out []bank.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("recon: scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

const paymentColumns = `p.id, p.uisp_id, p.customer_id, COALESCE(c.name, ''), p.invoice_id, p.amount,
	p.payment_date, COALESCE(p.method, ''), COALESCE(p.reference, ''), p.journal_entry_id, p.synced_at, p.created_at`

const paymentFrom = ` FROM payments p LEFT JOIN customers c ON c.id = p.customer_id`

func scanPayment(row pgx.Row) (uisp.Payment, error) {
	var p uisp.Payment
	err := row.Scan(&p.ID, &p.UispID, &p.CustomerID, &p.CustomerName, &p.InvoiceID, &p.Amount,
		&p.Date, &p.Method, &p.Reference, &p.EntryID, &p.SyncedAt, &p.CreatedAt)
	return p, err
}

func (r *pgxRepository) queryPayments(ctx context.Context, query string, args ...any) ([]uisp.Payment, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("recon: query payments: %w", err)
	}
	defer rows.Close()
	var out []uisp.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("recon: scan payment: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *pgxRepository) PaymentsByAmountAndDate(ctx context.Context, amount float64, from, to time.Time) ([]uisp.Payment, error) {
	return r.queryPayments(ctx,
		`SELECT `+paymentColumns+paymentFrom+`
		 WHERE ABS(p.amount - $1) < 0.01 AND p.payment_date BETWEEN $2 AND $3
		 ORDER BY p.payment_date, p.id`,
		amount, from, to)
}

func (r *pgxRepository) PaymentsByReference(ctx context.Context, reference string) ([]uisp.Payment, error) {
	return r.queryPayments(ctx,
		`SELECT `+paymentColumns+paymentFrom+`
		 WHERE p.reference = $1
		 ORDER BY p.payment_date, p.id`,
		reference)
}

// UnmatchedPayments returns payments not currently tied to a confirmed match.
func (r *pgxRepository) UnmatchedPayments(ctx context.Context) ([]uisp.Payment, error) {
	return r.queryPayments(ctx,
		`SELECT `+paymentColumns+paymentFrom+`
		 WHERE NOT EXISTS (
			SELECT 1 FROM reconciliation_matches m
			WHERE m.payment_id = p.id AND m.status = 'matched'
		 )
		 ORDER BY p.payment_date, p.id`)
}

func (r *pgxRepository) GetPayment(ctx context.Context, id int64) (uisp.Payment, error) {
	p, err := scanPayment(r.pool.QueryRow(ctx,
		`SELECT `+paymentColumns+paymentFrom+` WHERE p.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return uisp.Payment{}, uisp.ErrPaymentNotFound
	}
	if err != nil {
		return uisp.Payment{}, fmt.Errorf("recon: get payment: %w", err)
	}
	return p, nil
}

const matchColumns = `id, bank_transaction_id, payment_id, match_type, confidence_score,
	status, COALESCE(notes, ''), matched_at, created_at, updated_at`

func scanMatch(row pgx.Row) (Match, error) {
	var m Match
	err := row.Scan(&m.ID, &m.BankTransactionID, &m.PaymentID, &m.MatchType, &m.ConfidenceScore,
		&m.Status, &m.Notes, &m.MatchedAt, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

func currentMatch(ctx context.Context, q interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}, bankTxnID int64, forUpdate bool) (Match, error) {
	query := `SELECT ` + matchColumns + ` FROM reconciliation_matches
		WHERE bank_transaction_id = $1 ORDER BY updated_at DESC, id DESC LIMIT 1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	m, err := scanMatch(q.QueryRow(ctx, query, bankTxnID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Match{}, ErrMatchNotFound
	}
	if err != nil {
		return Match{}, fmt.Errorf("recon: current match: %w", err)
	}
	return m, nil
}

func (r *pgxRepository) CurrentMatch(ctx context.Context, bankTxnID int64) (Match, error) {
	return currentMatch(ctx, r.pool, bankTxnID, false)
}

func (r *pgxRepository) CountTransactions(ctx context.Context, accountID int64) (int64, int64, error) {
	query := `SELECT COUNT(*), COUNT(*) FILTER (WHERE is_reconciled) FROM bank_transactions`
	args := []any{}
	if accountID != 0 {
		query += ` WHERE bank_account_id = $1`
		args = append(args, accountID)
	}
	var total, reconciled int64
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&total, &reconciled); err != nil {
		return 0, 0, fmt.Errorf("recon: count transactions: %w", err)
	}
	return total, reconciled, nil
}

func (r *pgxRepository) CountSuggested(ctx context.Context, accountID int64) (int64, error) {
	query := `SELECT COUNT(*) FROM bank_transactions t
		WHERE t.is_reconciled = FALSE AND EXISTS (
			SELECT 1 FROM reconciliation_matches m
			WHERE m.bank_transaction_id = t.id AND m.status = 'suggested'
		)`
	args := []any{}
	if accountID != 0 {
		query += ` AND t.bank_account_id = $1`
		args = append(args, accountID)
	}
	var n int64
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("recon: count suggested: %w", err)
	}
	return n, nil
}

func (r *pgxTxRepository) GetTransactionForUpdate(ctx context.Context, id int64) (bank.Transaction, error) {
	t, err := scanTransaction(r.tx.QueryRow(ctx,
		`SELECT `+txnColumns+` FROM bank_transactions WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return bank.Transaction{}, bank.ErrTransactionNotFound
	}
	if err != nil {
		return bank.Transaction{}, fmt.Errorf("recon: lock transaction: %w", err)
	}
	return t, nil
}

func (r *pgxTxRepository) GetPayment(ctx context.Context, id int64) (uisp.Payment, error) {
	p, err := scanPayment(r.tx.QueryRow(ctx,
		`SELECT `+paymentColumns+paymentFrom+` WHERE p.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return uisp.Payment{}, uisp.ErrPaymentNotFound
	}
	if err != nil {
		return uisp.Payment{}, fmt.Errorf("recon: get payment: %w", err)
	}
	return p, nil
}

func (r *pgxTxRepository) CurrentMatchForUpdate(ctx context.Context, bankTxnID int64) (Match, error) {
	return currentMatch(ctx, r.tx, bankTxnID, true)
}

func (r *pgxTxRepository) InsertMatch(ctx context.Context, m Match) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO reconciliation_matches
			(bank_transaction_id, payment_id, match_type, confidence_score, status, notes, matched_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, NOW(), NOW())
		 RETURNING id`,
		m.BankTransactionID, m.PaymentID, m.MatchType, m.ConfidenceScore, m.Status, m.Notes, m.MatchedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("recon: insert match: %w", err)
	}
	return id, nil
}

func (r *pgxTxRepository) UpdateMatch(ctx context.Context, m Match) error {
	_, err := r.tx.Exec(ctx,
		`UPDATE reconciliation_matches SET
			payment_id = $2, match_type = $3, confidence_score = $4, status = $5,
			notes = NULLIF($6, ''), matched_at = $7, updated_at = NOW()
		 WHERE id = $1`,
		m.ID, m.PaymentID, m.MatchType, m.ConfidenceScore, m.Status, m.Notes, m.MatchedAt)
	if err != nil {
		return fmt.Errorf("recon: update match: %w", err)
	}
	return nil
}

func (r *pgxTxRepository) SetReconciled(ctx context.Context, txnID int64, reconciled bool, at *time.Time) error {
	_, err := r.tx.Exec(ctx,
		`UPDATE bank_transactions SET is_reconciled = $2, reconciled_at = $3 WHERE id = $1`,
		txnID, reconciled, at)
	if err != nil {
		return fmt.Errorf("recon: set reconciled: %w", err)
	}
	return nil
}
