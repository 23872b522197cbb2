package ledger

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ispbooks/ispbooks/internal/coa"
)

// Repository encapsulates DB operations for the ledger engine.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetEntry(ctx context.Context, id int64) (JournalEntry, error)
	ListEntries(ctx context.Context, filter ListFilter) ([]JournalEntry, error)
	GetAccount(ctx context.Context, id int64) (coa.Account, error)
	ListAccounts(ctx context.Context) ([]coa.Account, error)
	// BalanceAsOf computes the sign-convention balance of an account from
	// posted lines dated on or before asOf.
	BalanceAsOf(ctx context.Context, accountID int64, asOf time.Time) (float64, error)
	AccountTransactions(ctx context.Context, accountID int64, from, to time.Time) ([]AccountTransaction, error)
}

// TxRepository exposes the mutations available within one atomic transaction.
// Account lookups are duplicated here from the coa repository because posting
// must read and lock accounts inside its own transaction.
type TxRepository interface {
	InsertEntry(ctx context.Context, e JournalEntry) (int64, error)
	InsertLine(ctx context.Context, l JournalLine) error
	GetEntryForUpdate(ctx context.Context, id int64) (JournalEntry, error)
	GetLines(ctx context.Context, entryID int64) ([]JournalLine, error)
	MarkPosted(ctx context.Context, id int64, postedBy int64, postedAt time.Time) error
	MarkReversed(ctx context.Context, id int64) error
	// LastEntryNumber returns the most recent entry number issued for the
	// given calendar day, serialising concurrent allocators for that day.
	LastEntryNumber(ctx context.Context, day time.Time) (string, error)
	FindAccount(ctx context.Context, id int64) (coa.Account, error)
	FindAccountByCode(ctx context.Context, code string) (coa.Account, error)
	GetAccountForUpdate(ctx context.Context, id int64) (coa.Account, error)
	UpdateAccountBalance(ctx context.Context, id int64, balance float64) error
}

// AccountTransaction is one posted journal line touching an account,
// joined with its entry header for ledger reporting.
type AccountTransaction struct {
	Date        time.Time
	EntryNumber string
	Reference   string
	Description string
	Debit       float64
	Credit      float64
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns a Postgres-backed Repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const entryColumns = `id, entry_number, entry_date, reference, description, source_type, source_id, status, created_by, created_at, posted_by, posted_at, updated_at`

func scanEntry(row pgx.Row) (JournalEntry, error) {
	var e JournalEntry
	err := row.Scan(&e.ID, &e.Number, &e.Date, &e.Reference, &e.Description, &e.SourceType, &e.SourceID, &e.Status, &e.CreatedBy, &e.CreatedAt, &e.PostedBy, &e.PostedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, ErrEntryNotFound
		}
		return JournalEntry{}, err
	}
	return e, nil
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	if err := fn(ctx, &txRepository{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func (r *repository) GetEntry(ctx context.Context, id int64) (JournalEntry, error) {
	entry, err := scanEntry(r.db.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id=$1`, id))
	if err != nil {
		return JournalEntry{}, err
	}
	rows, err := r.db.Query(ctx, `SELECT id, entry_id, line_number, account_id, debit, credit, description
FROM journal_lines WHERE entry_id=$1 ORDER BY line_number ASC`, id)
	if err != nil {
		return JournalEntry{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var l JournalLine
		if err := rows.Scan(&l.ID, &l.EntryID, &l.LineNumber, &l.AccountID, &l.Debit, &l.Credit, &l.Description); err != nil {
			return JournalEntry{}, err
		}
		entry.Lines = append(entry.Lines, l)
	}
	return entry, rows.Err()
}

func (r *repository) ListEntries(ctx context.Context, filter ListFilter) ([]JournalEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM journal_entries WHERE 1=1`
	args := []any{}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		query += ` AND entry_date >= $` + itoa(len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		query += ` AND entry_date <= $` + itoa(len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += ` AND status = $` + itoa(len(args))
	}
	query += ` ORDER BY entry_number DESC`
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []JournalEntry
	for rows.Next() {
		var e JournalEntry
		if err := rows.Scan(&e.ID, &e.Number, &e.Date, &e.Reference, &e.Description, &e.SourceType, &e.SourceID, &e.Status, &e.CreatedBy, &e.CreatedAt, &e.PostedBy, &e.PostedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *repository) GetAccount(ctx context.Context, id int64) (coa.Account, error) {
	return scanRepoAccount(r.db.QueryRow(ctx, `SELECT `+repoAccountColumns+` FROM chart_of_accounts WHERE id=$1`, id))
}

func (r *repository) ListAccounts(ctx context.Context) ([]coa.Account, error) {
	rows, err := r.db.Query(ctx, `SELECT `+repoAccountColumns+` FROM chart_of_accounts WHERE is_active ORDER BY code ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []coa.Account
	for rows.Next() {
		var a coa.Account
		if err := rows.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.ParentID, &a.Balance, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *repository) BalanceAsOf(ctx context.Context, accountID int64, asOf time.Time) (float64, error) {
	var balance float64
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(
CASE WHEN a.type IN ('asset','expense') THEN l.debit - l.credit ELSE l.credit - l.debit END), 0)
FROM journal_lines l
JOIN journal_entries e ON e.id = l.entry_id
JOIN chart_of_accounts a ON a.id = l.account_id
WHERE l.account_id = $1 AND e.status = 'posted' AND e.entry_date <= $2`, accountID, asOf).Scan(&balance)
	return balance, err
}

func (r *repository) AccountTransactions(ctx context.Context, accountID int64, from, to time.Time) ([]AccountTransaction, error) {
	rows, err := r.db.Query(ctx, `SELECT e.entry_date, e.entry_number, e.reference, l.description, l.debit, l.credit
FROM journal_lines l
JOIN journal_entries e ON e.id = l.entry_id
WHERE l.account_id = $1 AND e.status = 'posted' AND e.entry_date BETWEEN $2 AND $3
ORDER BY e.entry_date ASC, e.id ASC, l.line_number ASC`, accountID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var txns []AccountTransaction
	for rows.Next() {
		var t AccountTransaction
		if err := rows.Scan(&t.Date, &t.EntryNumber, &t.Reference, &t.Description, &t.Debit, &t.Credit); err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) InsertEntry(ctx context.Context, e JournalEntry) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO journal_entries (entry_number, entry_date, reference, description, source_type, source_id, status, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		e.Number, e.Date, e.Reference, e.Description, e.SourceType, nullInt(e.SourceID), e.Status, nullInt(e.CreatedBy)).Scan(&id)
	return id, err
}

func (r *txRepository) InsertLine(ctx context.Context, l JournalLine) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO journal_lines (entry_id, line_number, account_id, debit, credit, description)
VALUES ($1,$2,$3,$4,$5,$6)`, l.EntryID, l.LineNumber, l.AccountID, l.Debit, l.Credit, l.Description)
	return err
}

func (r *txRepository) GetEntryForUpdate(ctx context.Context, id int64) (JournalEntry, error) {
	return scanEntry(r.tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) GetLines(ctx context.Context, entryID int64) ([]JournalLine, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, entry_id, line_number, account_id, debit, credit, description
FROM journal_lines WHERE entry_id=$1 ORDER BY line_number ASC`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []JournalLine
	for rows.Next() {
		var l JournalLine
		if err := rows.Scan(&l.ID, &l.EntryID, &l.LineNumber, &l.AccountID, &l.Debit, &l.Credit, &l.Description); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *txRepository) MarkPosted(ctx context.Context, id int64, postedBy int64, postedAt time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET status='posted', posted_by=$2, posted_at=$3, updated_at=NOW() WHERE id=$1`, id, nullInt(postedBy), postedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (r *txRepository) MarkReversed(ctx context.Context, id int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET status='reversed', updated_at=NOW() WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (r *txRepository) LastEntryNumber(ctx context.Context, day time.Time) (string, error) {
	// Advisory lock keyed on the calendar day serialises same-day sequence
	// allocation across concurrent transactions; released at commit/rollback.
	if _, err := r.tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, entrySeqLockKey(day)); err != nil {
		return "", err
	}
	var number string
	err := r.tx.QueryRow(ctx, `SELECT entry_number FROM journal_entries WHERE entry_number LIKE $1 ORDER BY entry_number DESC LIMIT 1`,
		entryNumberPrefix+"-"+day.Format(entryNumberDateLayout)+"-%").Scan(&number)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return number, nil
}

func (r *txRepository) FindAccount(ctx context.Context, id int64) (coa.Account, error) {
	return scanRepoAccount(r.tx.QueryRow(ctx, `SELECT `+repoAccountColumns+` FROM chart_of_accounts WHERE id=$1`, id))
}

func (r *txRepository) FindAccountByCode(ctx context.Context, code string) (coa.Account, error) {
	return scanRepoAccount(r.tx.QueryRow(ctx, `SELECT `+repoAccountColumns+` FROM chart_of_accounts WHERE code=$1`, code))
}

func (r *txRepository) GetAccountForUpdate(ctx context.Context, id int64) (coa.Account, error) {
	return scanRepoAccount(r.tx.QueryRow(ctx, `SELECT `+repoAccountColumns+` FROM chart_of_accounts WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) UpdateAccountBalance(ctx context.Context, id int64, balance float64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE chart_of_accounts SET balance=$2, updated_at=NOW() WHERE id=$1`, id, balance)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return coa.ErrAccountNotFound
	}
	return nil
}

const repoAccountColumns = `id, code, name, type, parent_id, balance, is_active, created_at, updated_at`

func scanRepoAccount(row pgx.Row) (coa.Account, error) {
	var a coa.Account
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.ParentID, &a.Balance, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return coa.Account{}, coa.ErrAccountNotFound
		}
		return coa.Account{}, err
	}
	return a, nil
}

// Helpers
func nullInt(val int64) any {
	if val == 0 {
		return nil
	}
	return val
}

func itoa(i int) string {
	return strconv.Itoa(i)
}

func entrySeqLockKey(day time.Time) int64 {
	const ns int64 = 0x4A45 << 32 // "JE"
	return ns + int64(day.Year())*10000 + int64(day.Month())*100 + int64(day.Day())
}
