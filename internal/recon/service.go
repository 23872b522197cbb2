package recon

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/ispbooks/ispbooks/internal/bank"
	"github.com/ispbooks/ispbooks/internal/shared"
)

// AuditPort records audit trail entries for match decisions.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service is the bank reconciliation matching engine.
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

// AutoReconcile scans every unreconciled transaction, confirming the top
// candidate when its confidence clears the threshold and persisting it as a
// suggestion otherwise. Errors on one transaction are counted and logged
// without aborting the batch; accountID zero means all accounts.
func (s *Service) AutoReconcile(ctx context.Context, accountID int64) (Result, error) {
	txns, err := s.repo.UnreconciledTransactions(ctx, accountID)
	if err != nil {
		return Result{}, err
	}
	result := Result{TotalProcessed: len(txns)}
	for _, txn := range txns {
		candidates, err := s.FindMatches(ctx, txn)
		if err != nil {
			result.Errors++
			s.logger.Error("auto reconcile", slog.Int64("transaction_id", txn.ID), slog.Any("error", err))
			continue
		}
		if len(candidates) == 0 {
			result.NoMatch++
			continue
		}
		top := candidates[0]
		if top.Confidence >= AutoConfirmThreshold {
			if err := s.ConfirmMatch(ctx, txn.ID, top.PaymentID, MatchAuto, top.Confidence, top.Reason); err != nil {
				result.Errors++
				s.logger.Error("auto reconcile confirm", slog.Int64("transaction_id", txn.ID), slog.Any("error", err))
				continue
			}
			result.AutoMatched++
			continue
		}
		if err := s.suggest(ctx, txn.ID, top); err != nil {
			result.Errors++
			s.logger.Error("auto reconcile suggest", slog.Int64("transaction_id", txn.ID), slog.Any("error", err))
			continue
		}
		result.SuggestedMatches++
	}
	s.logger.Info("auto reconcile finished",
		slog.Int("processed", result.TotalProcessed),
		slog.Int("auto_matched", result.AutoMatched),
		slog.Int("suggested", result.SuggestedMatches),
		slog.Int("no_match", result.NoMatch),
		slog.Int("errors", result.Errors))
	return result, nil
}

// ConfirmMatch records a confirmed pairing and flags the transaction
// reconciled, in one transaction. A transaction already carrying a matched
// record must be unmatched first.
func (s *Service) ConfirmMatch(ctx context.Context, bankTxnID, paymentID int64, matchType MatchType, confidence int, notes string) error {
	if confidence < 0 || confidence > 100 {
		return ErrBadConfidence
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetTransactionForUpdate(ctx, bankTxnID); err != nil {
			return err
		}
		if _, err := tx.GetPayment(ctx, paymentID); err != nil {
			return err
		}
		now := s.now()
		existing, err := tx.CurrentMatchForUpdate(ctx, bankTxnID)
		switch {
		case errors.Is(err, ErrMatchNotFound):
			_, err = tx.InsertMatch(ctx, Match{
				BankTransactionID: bankTxnID,
				PaymentID:         paymentID,
				MatchType:         matchType,
				ConfidenceScore:   confidence,
				Status:            StatusMatched,
				Notes:             notes,
				MatchedAt:         &now,
			})
			if err != nil {
				return err
			}
		case err != nil:
			return err
		case existing.Status == StatusMatched:
			return ErrAlreadyMatched
		default:
			existing.PaymentID = paymentID
			existing.MatchType = matchType
			existing.ConfidenceScore = confidence
			existing.Status = StatusMatched
			existing.Notes = notes
			existing.MatchedAt = &now
			if err := tx.UpdateMatch(ctx, existing); err != nil {
				return err
			}
		}
		return tx.SetReconciled(ctx, bankTxnID, true, &now)
	})
	if err != nil {
		return err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Action:   shared.ActionReconcile,
			Entity:   "bank_transaction",
			EntityID: strconv.FormatInt(bankTxnID, 10),
			Meta: map[string]any{
				"payment_id": paymentID,
				"match_type": matchType,
				"confidence": confidence,
			},
			At: s.now(),
		})
	}
	return nil
}

// Unmatch reopens a reconciled transaction. The match row stays as history
// with status unmatched.
func (s *Service) Unmatch(ctx context.Context, bankTxnID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetTransactionForUpdate(ctx, bankTxnID); err != nil {
			return err
		}
		match, err := tx.CurrentMatchForUpdate(ctx, bankTxnID)
		if err != nil {
			return err
		}
		match.Status = StatusUnmatched
		if err := tx.UpdateMatch(ctx, match); err != nil {
			return err
		}
		return tx.SetReconciled(ctx, bankTxnID, false, nil)
	})
	if err != nil {
		return err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Action:   shared.ActionUnmatch,
			Entity:   "bank_transaction",
			EntityID: strconv.FormatInt(bankTxnID, 10),
			At:       s.now(),
		})
	}
	return nil
}

// Status reports reconciliation coverage, optionally scoped to one account.
func (s *Service) Status(ctx context.Context, accountID int64) (Summary, error) {
	total, reconciled, err := s.repo.CountTransactions(ctx, accountID)
	if err != nil {
		return Summary{}, err
	}
	suggested, err := s.repo.CountSuggested(ctx, accountID)
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{
		Total:        total,
		Reconciled:   reconciled,
		Unreconciled: total - reconciled,
		Suggested:    suggested,
	}
	if total > 0 {
		summary.Rate = math.Round(float64(reconciled)/float64(total)*10000) / 100
	}
	return summary, nil
}

// Suggestion pairs an unreconciled transaction with its ranked candidates.
type Suggestion struct {
	Transaction bank.Transaction `json:"transaction"`
	Candidates  []Candidate      `json:"candidates"`
}

const maxSuggestionCandidates = 5

// UnreconciledWithSuggestions lists unreconciled transactions with up to five
// ranked candidates each, for the manual review screen.
func (s *Service) UnreconciledWithSuggestions(ctx context.Context, accountID int64) ([]Suggestion, error) {
	txns, err := s.repo.UnreconciledTransactions(ctx, accountID)
	if err != nil {
		return nil, err
	}
	out := make([]Suggestion, 0, len(txns))
	for _, txn := range txns {
		candidates, err := s.FindMatches(ctx, txn)
		if err != nil {
			return nil, err
		}
		if len(candidates) > maxSuggestionCandidates {
			candidates = candidates[:maxSuggestionCandidates]
		}
		out = append(out, Suggestion{Transaction: txn, Candidates: candidates})
	}
	return out, nil
}

// suggest upserts the top candidate as a suggested match without touching the
// transaction's reconciliation flag.
func (s *Service) suggest(ctx context.Context, bankTxnID int64, candidate Candidate) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		existing, err := tx.CurrentMatchForUpdate(ctx, bankTxnID)
		switch {
		case errors.Is(err, ErrMatchNotFound):
			_, err = tx.InsertMatch(ctx, Match{
				BankTransactionID: bankTxnID,
				PaymentID:         candidate.PaymentID,
				MatchType:         MatchSuggested,
				ConfidenceScore:   candidate.Confidence,
				Status:            StatusSuggested,
				Notes:             candidate.Reason,
			})
			return err
		case err != nil:
			return err
		case existing.Status == StatusMatched:
			return ErrAlreadyMatched
		default:
			existing.PaymentID = candidate.PaymentID
			existing.MatchType = MatchSuggested
			existing.ConfidenceScore = candidate.Confidence
			existing.Status = StatusSuggested
			existing.Notes = candidate.Reason
			return tx.UpdateMatch(ctx, existing)
		}
	})
}
