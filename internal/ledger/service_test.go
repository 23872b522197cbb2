package ledger

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ispbooks/ispbooks/internal/coa"
	"github.com/ispbooks/ispbooks/internal/shared"
)

// memoryRepo implements Repository and TxRepository over maps. WithTx runs
// the callback against the same store; validation failures happen before any
// mutation so the tests exercise the same ordering the SQL repository relies
// on.
type memoryRepo struct {
	accounts map[int64]*coa.Account
	byCode   map[string]int64
	entries  map[int64]*JournalEntry
	lines    map[int64][]JournalLine
	nextID   int64
}

func newMemoryRepo() *memoryRepo {
	r := &memoryRepo{
		accounts: make(map[int64]*coa.Account),
		byCode:   make(map[string]int64),
		entries:  make(map[int64]*JournalEntry),
		lines:    make(map[int64][]JournalLine),
	}
	for _, a := range []coa.Account{
		{Code: "1110", Name: "Cash on Hand", Type: coa.AccountTypeAsset, IsActive: true},
		{Code: "1120", Name: "Bank Account", Type: coa.AccountTypeAsset, IsActive: true},
		{Code: "2140", Name: "Tax Payable", Type: coa.AccountTypeLiability, IsActive: true},
		{Code: "4110", Name: "Service Revenue", Type: coa.AccountTypeRevenue, IsActive: true},
		{Code: "6600", Name: "Other Expenses", Type: coa.AccountTypeExpense, IsActive: true},
	} {
		r.nextID++
		a.ID = r.nextID
		r.accounts[a.ID] = &a
		r.byCode[a.Code] = a.ID
	}
	return r
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, r)
}

func (r *memoryRepo) GetEntry(_ context.Context, id int64) (JournalEntry, error) {
	e, ok := r.entries[id]
	if !ok {
		return JournalEntry{}, ErrEntryNotFound
	}
	out := *e
	out.Lines = append([]JournalLine(nil), r.lines[id]...)
	return out, nil
}

func (r *memoryRepo) ListEntries(_ context.Context, filter ListFilter) ([]JournalEntry, error) {
	var out []JournalEntry
	for _, e := range r.entries {
		if !filter.From.IsZero() && e.Date.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && e.Date.After(filter.To) {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number > out[j].Number })
	return out, nil
}

func (r *memoryRepo) GetAccount(_ context.Context, id int64) (coa.Account, error) {
	return r.FindAccount(context.Background(), id)
}

func (r *memoryRepo) ListAccounts(_ context.Context) ([]coa.Account, error) {
	var out []coa.Account
	for _, a := range r.accounts {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r *memoryRepo) BalanceAsOf(_ context.Context, accountID int64, asOf time.Time) (float64, error) {
	account, ok := r.accounts[accountID]
	if !ok {
		return 0, coa.ErrAccountNotFound
	}
	var balance float64
	for id, e := range r.entries {
		if e.Status != StatusPosted || e.Date.After(asOf) {
			continue
		}
		for _, l := range r.lines[id] {
			if l.AccountID == accountID {
				balance += account.Type.Delta(l.Debit, l.Credit)
			}
		}
	}
	return balance, nil
}

func (r *memoryRepo) AccountTransactions(_ context.Context, accountID int64, from, to time.Time) ([]AccountTransaction, error) {
	type keyed struct {
		txn     AccountTransaction
		entryID int64
		lineNo  int
	}
	var collected []keyed
	for id, e := range r.entries {
		if e.Status != StatusPosted || e.Date.Before(from) || e.Date.After(to) {
			continue
		}
		for _, l := range r.lines[id] {
			if l.AccountID != accountID {
				continue
			}
			collected = append(collected, keyed{
				txn: AccountTransaction{
					Date:        e.Date,
					EntryNumber: e.Number,
					Reference:   e.Reference,
					Description: l.Description,
					Debit:       l.Debit,
					Credit:      l.Credit,
				},
				entryID: id,
				lineNo:  l.LineNumber,
			})
		}
	}
	sort.Slice(collected, func(i, j int) bool {
		if !collected[i].txn.Date.Equal(collected[j].txn.Date) {
			return collected[i].txn.Date.Before(collected[j].txn.Date)
		}
		if collected[i].entryID != collected[j].entryID {
			return collected[i].entryID < collected[j].entryID
		}
		return collected[i].lineNo < collected[j].lineNo
	})
	out := make([]AccountTransaction, 0, len(collected))
	for _, k := range collected {
		out = append(out, k.txn)
	}
	return out, nil
}

func (r *memoryRepo) InsertEntry(_ context.Context, e JournalEntry) (int64, error) {
	r.nextID++
	e.ID = r.nextID
	e.Lines = nil
	r.entries[e.ID] = &e
	return e.ID, nil
}

func (r *memoryRepo) InsertLine(_ context.Context, l JournalLine) error {
	r.lines[l.EntryID] = append(r.lines[l.EntryID], l)
	return nil
}

func (r *memoryRepo) GetEntryForUpdate(_ context.Context, id int64) (JournalEntry, error) {
	e, ok := r.entries[id]
	if !ok {
		return JournalEntry{}, ErrEntryNotFound
	}
	return *e, nil
}

func (r *memoryRepo) GetLines(_ context.Context, entryID int64) ([]JournalLine, error) {
	return append([]JournalLine(nil), r.lines[entryID]...), nil
}

func (r *memoryRepo) MarkPosted(_ context.Context, id, postedBy int64, postedAt time.Time) error {
	e, ok := r.entries[id]
	if !ok {
		return ErrEntryNotFound
	}
	e.Status = StatusPosted
	e.PostedBy = &postedBy
	e.PostedAt = &postedAt
	return nil
}

func (r *memoryRepo) MarkReversed(_ context.Context, id int64) error {
	e, ok := r.entries[id]
	if !ok {
		return ErrEntryNotFound
	}
	e.Status = StatusReversed
	return nil
}

func (r *memoryRepo) LastEntryNumber(_ context.Context, day time.Time) (string, error) {
	prefix := entryNumberPrefix + "-" + day.Format(entryNumberDateLayout) + "-"
	var last string
	for _, e := range r.entries {
		if strings.HasPrefix(e.Number, prefix) && e.Number > last {
			last = e.Number
		}
	}
	return last, nil
}

func (r *memoryRepo) FindAccount(_ context.Context, id int64) (coa.Account, error) {
	a, ok := r.accounts[id]
	if !ok {
		return coa.Account{}, coa.ErrAccountNotFound
	}
	return *a, nil
}

func (r *memoryRepo) FindAccountByCode(_ context.Context, code string) (coa.Account, error) {
	id, ok := r.byCode[code]
	if !ok {
		return coa.Account{}, coa.ErrAccountNotFound
	}
	return *r.accounts[id], nil
}

func (r *memoryRepo) GetAccountForUpdate(ctx context.Context, id int64) (coa.Account, error) {
	return r.FindAccount(ctx, id)
}

func (r *memoryRepo) UpdateAccountBalance(_ context.Context, id int64, balance float64) error {
	a, ok := r.accounts[id]
	if !ok {
		return coa.ErrAccountNotFound
	}
	a.Balance = balance
	return nil
}

type fakeAudit struct {
	logs []shared.AuditLog
}

func (f *fakeAudit) Record(_ context.Context, log shared.AuditLog) error {
	f.logs = append(f.logs, log)
	return nil
}

func newTestService(repo *memoryRepo, audit *fakeAudit) *Service {
	var port AuditPort
	if audit != nil {
		port = audit
	}
	svc := NewService(repo, port, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.WithNow(func() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) })
	return svc
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func balanceOf(t *testing.T, repo *memoryRepo, code string) float64 {
	t.Helper()
	account, err := repo.FindAccountByCode(context.Background(), code)
	require.NoError(t, err)
	return account.Balance
}

func TestCreateEntryDraftNumbering(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)

	input := CreateEntryInput{
		Date:        day(2024, 3, 15),
		Description: "Cash sale",
		Lines: []LineInput{
			{AccountCode: "1110", Debit: 100},
			{AccountCode: "4110", Credit: 100},
		},
	}
	first, err := svc.CreateEntry(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, "JE-20240315-0001", first.Number)
	require.Equal(t, StatusDraft, first.Status)
	require.Equal(t, SourceManual, first.SourceType)
	require.Len(t, first.Lines, 2)
	require.Equal(t, 1, first.Lines[0].LineNumber)
	require.Equal(t, 2, first.Lines[1].LineNumber)
	// Drafts leave balances untouched.
	require.Zero(t, balanceOf(t, repo, "1110"))

	second, err := svc.CreateEntry(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, "JE-20240315-0002", second.Number)

	input.Date = day(2024, 3, 16)
	third, err := svc.CreateEntry(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, "JE-20240316-0001", third.Number)
}

func TestCreateEntryUnbalancedPersistsNothing(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)

	_, err := svc.CreateEntry(context.Background(), CreateEntryInput{
		Date:        day(2024, 3, 15),
		Description: "Bad entry",
		Lines: []LineInput{
			{AccountCode: "1110", Debit: 100},
			{AccountCode: "4110", Credit: 99.50},
		},
	})
	require.ErrorIs(t, err, ErrUnbalanced)
	require.Empty(t, repo.entries)
}

func TestCreateEntryWithinTolerance(t *testing.T) {
	svc := newTestService(newMemoryRepo(), nil)

	_, err := svc.CreateEntry(context.Background(), CreateEntryInput{
		Date:        day(2024, 3, 15),
		Description: "Rounding drift",
		Lines: []LineInput{
			{AccountCode: "1110", Debit: 100.004},
			{AccountCode: "4110", Credit: 100},
		},
	})
	require.NoError(t, err)
}

func TestCreateEntryInvalidAccount(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)

	_, err := svc.CreateEntry(context.Background(), CreateEntryInput{
		Date:        day(2024, 3, 15),
		Description: "Unknown account",
		Lines: []LineInput{
			{AccountCode: "1110", Debit: 100},
			{AccountCode: "9999", Credit: 100},
		},
	})
	require.ErrorIs(t, err, ErrInvalidAccount)
	require.Contains(t, err.Error(), "line 2")
}

func TestCreateEntryNoLines(t *testing.T) {
	svc := newTestService(newMemoryRepo(), nil)
	_, err := svc.CreateEntry(context.Background(), CreateEntryInput{
		Date:        day(2024, 3, 15),
		Description: "Empty",
	})
	require.ErrorIs(t, err, ErrNoLines)
}

func TestPostEntryAppliesBothConventions(t *testing.T) {
	repo := newMemoryRepo()
	audit := &fakeAudit{}
	svc := newTestService(repo, audit)

	entry, err := svc.CreateEntry(context.Background(), CreateEntryInput{
		Date:        day(2024, 3, 15),
		Description: "Cash sale",
		Lines: []LineInput{
			{AccountCode: "1110", Debit: 250},
			{AccountCode: "4110", Credit: 250},
		},
	})
	require.NoError(t, err)

	require.NoError(t, svc.PostEntry(context.Background(), entry.ID, 7))

	// Debit grows the debit-normal asset, credit grows the credit-normal
	// revenue account.
	require.Equal(t, 250.0, balanceOf(t, repo, "1110"))
	require.Equal(t, 250.0, balanceOf(t, repo, "4110"))

	stored, err := svc.GetEntry(context.Background(), entry.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPosted, stored.Status)
	require.NotNil(t, stored.PostedAt)

	require.Len(t, audit.logs, 2)
	require.Equal(t, shared.ActionEntryCreate, audit.logs[0].Action)
	require.Equal(t, shared.ActionEntryPost, audit.logs[1].Action)
}

func TestPostEntryTwiceFails(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)

	entry, err := svc.CreateEntry(context.Background(), CreateEntryInput{
		Date:        day(2024, 3, 15),
		Description: "Cash sale",
		Lines: []LineInput{
			{AccountCode: "1110", Debit: 100},
			{AccountCode: "4110", Credit: 100},
		},
	})
	require.NoError(t, err)
	require.NoError(t, svc.PostEntry(context.Background(), entry.ID, 7))

	err = svc.PostEntry(context.Background(), entry.ID, 7)
	require.ErrorIs(t, err, ErrAlreadyPosted)
	// Balances must not be applied twice.
	require.Equal(t, 100.0, balanceOf(t, repo, "1110"))
}

func TestAutoPost(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)

	entry, err := svc.CreateEntry(context.Background(), CreateEntryInput{
		Date:        day(2024, 3, 15),
		Description: "Expense paid",
		Lines: []LineInput{
			{AccountCode: "6600", Debit: 80},
			{AccountCode: "1110", Credit: 80},
		},
		AutoPost: true,
	})
	require.NoError(t, err)
	require.Equal(t, StatusPosted, entry.Status)
	require.Equal(t, 80.0, balanceOf(t, repo, "6600"))
	require.Equal(t, -80.0, balanceOf(t, repo, "1110"))
}

func TestReverseEntry(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)

	entry, err := svc.CreateEntry(context.Background(), CreateEntryInput{
		Date:        day(2024, 3, 10),
		Description: "Mistaken receipt",
		Lines: []LineInput{
			{AccountCode: "1110", Debit: 300, Description: "Cash in"},
			{AccountCode: "4110", Credit: 300, Description: "Revenue"},
		},
		AutoPost: true,
	})
	require.NoError(t, err)

	reversal, err := svc.ReverseEntry(context.Background(), entry.ID, "wrong customer", 7)
	require.NoError(t, err)
	require.Equal(t, StatusPosted, reversal.Status)
	require.Equal(t, "REV-"+entry.Number, reversal.Reference)
	require.Equal(t, "REVERSAL: Mistaken receipt - wrong customer", reversal.Description)
	require.Equal(t, SourceReversal, reversal.SourceType)
	require.Equal(t, entry.ID, reversal.SourceID)

	// Lines mirror the original.
	require.Equal(t, 300.0, reversal.Lines[0].Credit)
	require.Zero(t, reversal.Lines[0].Debit)
	require.Equal(t, 300.0, reversal.Lines[1].Debit)

	// Balances net to zero and the original is marked reversed.
	require.Zero(t, balanceOf(t, repo, "1110"))
	require.Zero(t, balanceOf(t, repo, "4110"))
	original, err := svc.GetEntry(context.Background(), entry.ID)
	require.NoError(t, err)
	require.Equal(t, StatusReversed, original.Status)
}

func TestReverseRejectsNonPosted(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)

	draft, err := svc.CreateEntry(context.Background(), CreateEntryInput{
		Date:        day(2024, 3, 10),
		Description: "Draft",
		Lines: []LineInput{
			{AccountCode: "1110", Debit: 50},
			{AccountCode: "4110", Credit: 50},
		},
	})
	require.NoError(t, err)
	_, err = svc.ReverseEntry(context.Background(), draft.ID, "nope", 7)
	require.ErrorIs(t, err, ErrInvalidStatus)

	posted, err := svc.CreateEntry(context.Background(), CreateEntryInput{
		Date:        day(2024, 3, 10),
		Description: "Posted",
		Lines: []LineInput{
			{AccountCode: "1110", Debit: 50},
			{AccountCode: "4110", Credit: 50},
		},
		AutoPost: true,
	})
	require.NoError(t, err)
	_, err = svc.ReverseEntry(context.Background(), posted.ID, "once", 7)
	require.NoError(t, err)
	// A reversed entry cannot be reversed again.
	_, err = svc.ReverseEntry(context.Background(), posted.ID, "twice", 7)
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestBuilderCommitAndPost(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)

	entry, err := svc.BeginEntry(CreateEntryInput{
		Date:        day(2024, 3, 15),
		Description: "Invoice 2024-0042",
	}).
		Reference("INV-2024-0042").
		Source(SourceUispInvoice, 42).
		Debit("1120", 58, "Receivable settled by bank").
		Credit("4110", 50, "Service revenue").
		Credit("2140", 8, "Sales tax").
		CommitAndPost(context.Background())
	require.NoError(t, err)
	require.Equal(t, StatusPosted, entry.Status)
	require.Equal(t, "INV-2024-0042", entry.Reference)
	require.Equal(t, int64(42), entry.SourceID)
	require.Equal(t, 58.0, balanceOf(t, repo, "1120"))
	require.Equal(t, 8.0, balanceOf(t, repo, "2140"))
}

func TestAddLineThenPostRevalidates(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)

	entry, err := svc.CreateEntry(context.Background(), CreateEntryInput{
		Date:        day(2024, 3, 15),
		Description: "Amended entry",
		Lines: []LineInput{
			{AccountCode: "6600", Debit: 40},
			{AccountCode: "1110", Credit: 40},
		},
	})
	require.NoError(t, err)

	// Adding a lone debit unbalances the draft; posting must now fail.
	require.NoError(t, svc.AddLine(context.Background(), entry.ID, LineInput{
		AccountCode: "6600", Debit: 10, Description: "Extra charge",
	}))
	err = svc.PostEntry(context.Background(), entry.ID, 7)
	require.ErrorIs(t, err, ErrUnbalanced)
	require.Zero(t, balanceOf(t, repo, "6600"))

	// Balancing it again makes the entry postable.
	require.NoError(t, svc.AddLine(context.Background(), entry.ID, LineInput{
		AccountCode: "1110", Credit: 10, Description: "Extra charge",
	}))
	require.NoError(t, svc.PostEntry(context.Background(), entry.ID, 7))
	require.Equal(t, 50.0, balanceOf(t, repo, "6600"))
	require.Equal(t, -50.0, balanceOf(t, repo, "1110"))
}

func TestAddLineRejectsPostedEntry(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)

	entry, err := svc.CreateEntry(context.Background(), CreateEntryInput{
		Date:        day(2024, 3, 15),
		Description: "Posted",
		Lines: []LineInput{
			{AccountCode: "1110", Debit: 10},
			{AccountCode: "4110", Credit: 10},
		},
		AutoPost: true,
	})
	require.NoError(t, err)
	err = svc.AddLine(context.Background(), entry.ID, LineInput{AccountCode: "1110", Debit: 5})
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestListEntriesFilter(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)

	for _, d := range []time.Time{day(2024, 3, 10), day(2024, 3, 12), day(2024, 3, 20)} {
		_, err := svc.CreateEntry(context.Background(), CreateEntryInput{
			Date:        d,
			Description: "entry",
			Lines: []LineInput{
				{AccountCode: "1110", Debit: 10},
				{AccountCode: "4110", Credit: 10},
			},
			AutoPost: d.Day() != 20,
		})
		require.NoError(t, err)
	}

	posted, err := svc.ListEntries(context.Background(), ListFilter{Status: StatusPosted})
	require.NoError(t, err)
	require.Len(t, posted, 2)

	ranged, err := svc.ListEntries(context.Background(), ListFilter{
		From: day(2024, 3, 11), To: day(2024, 3, 25),
	})
	require.NoError(t, err)
	require.Len(t, ranged, 2)
}
