package recon

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/ispbooks/ispbooks/internal/bank"
)

const (
	dateWindowDays      = 3
	exactConfidence     = 95
	referenceConfidence = 90
	fuzzyThreshold      = 75.0
	amountTolerance     = 0.01

	// AutoConfirmThreshold is the minimum confidence at which autoReconcile
	// confirms a candidate without human review.
	AutoConfirmThreshold = 90
)

// FindMatches runs the strategy pipeline for one bank transaction and returns
// candidates ranked by descending confidence. A payment appears at most once;
// the first strategy to claim it wins. Ties keep pipeline order, so an exact
// amount/date hit outranks a reference hit at the same confidence.
func (s *Service) FindMatches(ctx context.Context, txn bank.Transaction) ([]Candidate, error) {
	amount := math.Abs(txn.Amount)
	seen := make(map[int64]bool)
	var candidates []Candidate

	from := txn.Date.AddDate(0, 0, -dateWindowDays)
	to := txn.Date.AddDate(0, 0, dateWindowDays)
	exact, err := s.repo.PaymentsByAmountAndDate(ctx, amount, from, to)
	if err != nil {
		return nil, err
	}
	for _, p := range exact {
		seen[p.ID] = true
		candidates = append(candidates, Candidate{
			PaymentID:  p.ID,
			Payment:    p,
			Confidence: exactConfidence,
			Strategy:   StrategyExactAmountDate,
			Reason:     fmt.Sprintf("amount %.2f within %d days of %s", amount, dateWindowDays, txn.Date.Format("2006-01-02")),
		})
	}

	if txn.Reference != "" {
		byRef, err := s.repo.PaymentsByReference(ctx, txn.Reference)
		if err != nil {
			return nil, err
		}
		for _, p := range byRef {
			if seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			candidates = append(candidates, Candidate{
				PaymentID:  p.ID,
				Payment:    p,
				Confidence: referenceConfidence,
				Strategy:   StrategyReference,
				Reason:     "reference " + txn.Reference,
			})
		}
	}

	if txn.Description != "" {
		pool, err := s.repo.UnmatchedPayments(ctx)
		if err != nil {
			return nil, err
		}
		for _, p := range pool {
			if seen[p.ID] {
				continue
			}
			similarity := Similarity(txn.Description, p.CustomerName)
			if similarity < fuzzyThreshold || math.Abs(p.Amount-amount) >= amountTolerance {
				continue
			}
			seen[p.ID] = true
			candidates = append(candidates, Candidate{
				PaymentID:  p.ID,
				Payment:    p,
				Confidence: int(math.Round(similarity)),
				Strategy:   StrategyFuzzyName,
				Reason:     fmt.Sprintf("customer name %.0f%% similar to description", similarity),
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})
	return candidates, nil
}
