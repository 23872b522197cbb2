package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/ispbooks/ispbooks/internal/coa"
	"github.com/ispbooks/ispbooks/internal/shared"
)

const (
	entryNumberPrefix     = "JE"
	entryNumberDateLayout = "20060102"
)

// AuditPort records audit trail entries for ledger mutations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service is the double-entry ledger engine. All ledger and account-balance
// mutations flow through it.
type Service struct {
	repo   Repository
	audit  AuditPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds a Service instance.
func NewService(repo Repository, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateEntry validates and persists a journal entry in draft status with a
// generated entry number. When input.AutoPost is set the entry is also posted
// within the same transaction.
func (s *Service) CreateEntry(ctx context.Context, input CreateEntryInput) (JournalEntry, error) {
	if err := input.Validate(); err != nil {
		return JournalEntry{}, err
	}
	if input.SourceType == "" {
		input.SourceType = SourceManual
	}
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		created, err := s.createLocked(ctx, tx, input)
		if err != nil {
			return err
		}
		if input.AutoPost {
			if err := s.postLocked(ctx, tx, created.ID, input.CreatedBy); err != nil {
				return err
			}
			created.Status = StatusPosted
		}
		entry = created
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.CreatedBy,
			Action:   shared.ActionEntryCreate,
			Entity:   "journal_entry",
			EntityID: strconv.FormatInt(entry.ID, 10),
			Meta: map[string]any{
				"number":      entry.Number,
				"source_type": entry.SourceType,
			},
			At: s.now(),
		})
	}
	return entry, nil
}

// PostEntry commits a draft entry's effect onto account balances. Posting an
// already-posted entry fails; it never double-applies balance changes.
func (s *Service) PostEntry(ctx context.Context, entryID, postedBy int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return s.postLocked(ctx, tx, entryID, postedBy)
	})
	if err != nil {
		s.logger.Error("post journal entry", slog.Int64("entry_id", entryID), slog.Any("error", err))
		return err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  postedBy,
			Action:   shared.ActionEntryPost,
			Entity:   "journal_entry",
			EntityID: strconv.FormatInt(entryID, 10),
			At:       s.now(),
		})
	}
	return nil
}

// ReverseEntry creates and posts a mirror image of a posted entry and marks
// the original reversed. Reversing a draft or already-reversed entry fails.
func (s *Service) ReverseEntry(ctx context.Context, entryID int64, reason string, actorID int64) (JournalEntry, error) {
	var reversal JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		original, err := tx.GetEntryForUpdate(ctx, entryID)
		if err != nil {
			return err
		}
		if original.Status != StatusPosted {
			return fmt.Errorf("%w: only posted entries can be reversed", ErrInvalidStatus)
		}
		lines, err := tx.GetLines(ctx, entryID)
		if err != nil {
			return err
		}
		input := CreateEntryInput{
			Date:        s.now(),
			Description: "REVERSAL: " + original.Description + " - " + reason,
			Reference:   "REV-" + original.Number,
			SourceType:  SourceReversal,
			SourceID:    original.ID,
			Lines:       reverseLines(lines),
			CreatedBy:   actorID,
		}
		created, err := s.createLocked(ctx, tx, input)
		if err != nil {
			return err
		}
		if err := s.postLocked(ctx, tx, created.ID, actorID); err != nil {
			return err
		}
		if err := tx.MarkReversed(ctx, original.ID); err != nil {
			return err
		}
		created.Status = StatusPosted
		reversal = created
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   shared.ActionEntryReverse,
			Entity:   "journal_entry",
			EntityID: strconv.FormatInt(entryID, 10),
			Meta: map[string]any{
				"reversal_id":     reversal.ID,
				"reversal_number": reversal.Number,
				"reason":          reason,
			},
			At: s.now(),
		})
	}
	return reversal, nil
}

// GetEntry returns an entry with its lines.
func (s *Service) GetEntry(ctx context.Context, entryID int64) (JournalEntry, error) {
	return s.repo.GetEntry(ctx, entryID)
}

// ListEntries returns entry headers matching the filter.
func (s *Service) ListEntries(ctx context.Context, filter ListFilter) ([]JournalEntry, error) {
	return s.repo.ListEntries(ctx, filter)
}

// createLocked persists the entry header and its lines inside tx, resolving
// each line's account and allocating the next entry number for the date.
func (s *Service) createLocked(ctx context.Context, tx TxRepository, input CreateEntryInput) (JournalEntry, error) {
	number, err := s.nextEntryNumber(ctx, tx, input.Date)
	if err != nil {
		return JournalEntry{}, err
	}
	entry := JournalEntry{
		Number:      number,
		Date:        input.Date,
		Reference:   input.Reference,
		Description: input.Description,
		SourceType:  input.SourceType,
		SourceID:    input.SourceID,
		Status:      StatusDraft,
		CreatedBy:   input.CreatedBy,
		CreatedAt:   s.now(),
	}
	entryID, err := tx.InsertEntry(ctx, entry)
	if err != nil {
		return JournalEntry{}, err
	}
	entry.ID = entryID
	for idx, line := range input.Lines {
		account, err := s.resolveAccount(ctx, tx, line, idx)
		if err != nil {
			return JournalEntry{}, err
		}
		description := line.Description
		if description == "" {
			description = input.Description
		}
		jl := JournalLine{
			EntryID:     entryID,
			LineNumber:  idx + 1,
			AccountID:   account.ID,
			Debit:       line.Debit,
			Credit:      line.Credit,
			Description: description,
		}
		if err := tx.InsertLine(ctx, jl); err != nil {
			return JournalEntry{}, err
		}
		entry.Lines = append(entry.Lines, jl)
	}
	return entry, nil
}

// postLocked applies the posting state transition and account balance updates
// inside an already-open transaction.
func (s *Service) postLocked(ctx context.Context, tx TxRepository, entryID, postedBy int64) error {
	entry, err := tx.GetEntryForUpdate(ctx, entryID)
	if err != nil {
		return err
	}
	switch entry.Status {
	case StatusPosted:
		return ErrAlreadyPosted
	case StatusReversed:
		return fmt.Errorf("%w: cannot post a reversed entry", ErrInvalidStatus)
	}
	lines, err := tx.GetLines(ctx, entryID)
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		return ErrNoLines
	}
	// Revalidated here: the entry may have been amended via the builder
	// between creation and posting.
	if !balanced(lines) {
		return ErrUnbalanced
	}
	if err := tx.MarkPosted(ctx, entryID, postedBy, s.now()); err != nil {
		return err
	}
	for _, line := range lines {
		account, err := tx.GetAccountForUpdate(ctx, line.AccountID)
		if err != nil {
			return err
		}
		newBalance := account.Balance + account.Type.Delta(line.Debit, line.Credit)
		if err := tx.UpdateAccountBalance(ctx, account.ID, newBalance); err != nil {
			return err
		}
	}
	s.logger.Info("journal entry posted", slog.String("number", entry.Number))
	return nil
}

func (s *Service) resolveAccount(ctx context.Context, tx TxRepository, line LineInput, idx int) (coa.Account, error) {
	var (
		account coa.Account
		err     error
	)
	switch {
	case line.AccountID != 0:
		account, err = tx.FindAccount(ctx, line.AccountID)
	case line.AccountCode != "":
		account, err = tx.FindAccountByCode(ctx, line.AccountCode)
	default:
		err = coa.ErrAccountNotFound
	}
	if err != nil {
		return coa.Account{}, fmt.Errorf("%w in line %d", ErrInvalidAccount, idx+1)
	}
	return account, nil
}

// nextEntryNumber allocates JE-YYYYMMDD-NNNN, incrementing the zero-padded
// daily sequence from the last number issued for the date.
func (s *Service) nextEntryNumber(ctx context.Context, tx TxRepository, date time.Time) (string, error) {
	last, err := tx.LastEntryNumber(ctx, date)
	if err != nil {
		return "", err
	}
	sequence := 1
	if last != "" {
		parts := strings.Split(last, "-")
		if len(parts) == 3 {
			if n, err := strconv.Atoi(parts[2]); err == nil {
				sequence = n + 1
			}
		}
	}
	return fmt.Sprintf("%s-%s-%04d", entryNumberPrefix, date.Format(entryNumberDateLayout), sequence), nil
}

func reverseLines(lines []JournalLine) []LineInput {
	out := make([]LineInput, 0, len(lines))
	for _, line := range lines {
		out = append(out, LineInput{
			AccountID:   line.AccountID,
			Debit:       line.Credit,
			Credit:      line.Debit,
			Description: "REVERSAL: " + line.Description,
		})
	}
	return out
}
