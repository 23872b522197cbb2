package ledger

import (
	"context"
	"fmt"
)

// EntryBuilder assembles a journal entry line by line before committing it.
// A builder is owned by a single caller and must not be shared across
// goroutines; Commit validates and persists the whole entry at once.
type EntryBuilder struct {
	svc   *Service
	input CreateEntryInput
}

// BeginEntry opens a new entry builder for the given date and description.
func (s *Service) BeginEntry(input CreateEntryInput) *EntryBuilder {
	return &EntryBuilder{svc: s, input: input}
}

// Reference sets the free-text reference.
func (b *EntryBuilder) Reference(ref string) *EntryBuilder {
	b.input.Reference = ref
	return b
}

// Source tags the entry with the producing subsystem.
func (b *EntryBuilder) Source(sourceType string, sourceID int64) *EntryBuilder {
	b.input.SourceType = sourceType
	b.input.SourceID = sourceID
	return b
}

// AddLine appends a line to the entry under construction.
func (b *EntryBuilder) AddLine(line LineInput) *EntryBuilder {
	b.input.Lines = append(b.input.Lines, line)
	return b
}

// Debit appends a debit line against an account code.
func (b *EntryBuilder) Debit(accountCode string, amount float64, description string) *EntryBuilder {
	return b.AddLine(LineInput{AccountCode: accountCode, Debit: amount, Description: description})
}

// Credit appends a credit line against an account code.
func (b *EntryBuilder) Credit(accountCode string, amount float64, description string) *EntryBuilder {
	return b.AddLine(LineInput{AccountCode: accountCode, Credit: amount, Description: description})
}

// Commit validates and persists the entry in draft status.
func (b *EntryBuilder) Commit(ctx context.Context) (JournalEntry, error) {
	b.input.AutoPost = false
	return b.svc.CreateEntry(ctx, b.input)
}

// CommitAndPost validates, persists and posts the entry in one transaction.
func (b *EntryBuilder) CommitAndPost(ctx context.Context) (JournalEntry, error) {
	b.input.AutoPost = true
	return b.svc.CreateEntry(ctx, b.input)
}

// AddLine appends one line to an existing draft entry. The entry is
// revalidated at post time, so an amended entry can only be posted once it
// balances again.
func (s *Service) AddLine(ctx context.Context, entryID int64, line LineInput) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		entry, err := tx.GetEntryForUpdate(ctx, entryID)
		if err != nil {
			return err
		}
		if entry.Status != StatusDraft {
			return fmt.Errorf("%w: lines can only be added to draft entries", ErrInvalidStatus)
		}
		existing, err := tx.GetLines(ctx, entryID)
		if err != nil {
			return err
		}
		account, err := s.resolveAccount(ctx, tx, line, len(existing))
		if err != nil {
			return err
		}
		return tx.InsertLine(ctx, JournalLine{
			EntryID:     entryID,
			LineNumber:  len(existing) + 1,
			AccountID:   account.ID,
			Debit:       line.Debit,
			Credit:      line.Credit,
			Description: line.Description,
		})
	})
}
