package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ispbooks/ispbooks/internal/platform/cache"
)

const (
	summaryCacheKey  = "dashboard:summary"
	unreconciledHigh = 50
	syncStaleAfter   = time.Hour
)

// Service aggregates metrics across the accounting subsystems. The summary
// block fans out its queries concurrently and is cached in Redis.
type Service struct {
	repo           Repository
	cache          *cache.Cache
	openingBalance float64
	logger         *slog.Logger
	now            func() time.Time
}

// NewService builds a Service instance. cache may be nil, which disables
// caching. openingBalance is the configured cash opening balance.
func NewService(repo Repository, c *cache.Cache, openingBalance float64, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:           repo,
		cache:          c,
		openingBalance: openingBalance,
		logger:         logger,
		now:            time.Now,
	}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Summary returns the headline metrics, served from cache when fresh.
func (s *Service) Summary(ctx context.Context) (SummaryMetrics, error) {
	var metrics SummaryMetrics
	err := s.cache.GetJSON(ctx, summaryCacheKey, &metrics)
	if err == nil {
		return metrics, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn("summary cache read", slog.Any("error", err))
	}

	metrics, err = s.computeSummary(ctx)
	if err != nil {
		return SummaryMetrics{}, err
	}
	if err := s.cache.SetJSON(ctx, summaryCacheKey, metrics); err != nil {
		s.logger.Warn("summary cache write", slog.Any("error", err))
	}
	return metrics, nil
}

func (s *Service) computeSummary(ctx context.Context) (SummaryMetrics, error) {
	var metrics SummaryMetrics
	today := s.now()
	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		receipts, payments, err := s.repo.CashMovementTotals(gctx)
		if err != nil {
			return err
		}
		metrics.CashBalance = s.openingBalance + receipts - payments
		return nil
	})
	g.Go(func() error {
		var err error
		metrics.BankBalance, err = s.repo.BankBalanceTotal(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		metrics.AccountsReceivable, err = s.repo.ReceivablesTotal(gctx)
		return err
	})
	g.Go(func() error {
		total, _, err := s.repo.PendingExpenses(gctx)
		metrics.PendingExpenses = total
		return err
	})
	g.Go(func() error {
		var err error
		metrics.UnreconciledCount, err = s.repo.UnreconciledCount(gctx)
		return err
	})
	g.Go(func() error {
		receipts, payments, err := s.repo.DayTotals(gctx, today)
		if err != nil {
			return err
		}
		metrics.TodayReceipts = receipts
		metrics.TodayPayments = payments
		return nil
	})
	g.Go(func() error {
		var err error
		metrics.MonthlyRevenue, err = s.repo.RevenueBetween(gctx, monthStart, today)
		return err
	})
	g.Go(func() error {
		var err error
		metrics.MonthlyExpenses, err = s.repo.PaidExpensesBetween(gctx, monthStart, today)
		return err
	})
	if err := g.Wait(); err != nil {
		return SummaryMetrics{}, err
	}
	return metrics, nil
}

// Invalidate drops the cached summary so the next read recomputes it.
// Producer services call this after writes that move the headline figures.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Delete(ctx, summaryCacheKey)
}

// CashFlowChart returns one point per day over the trailing window, zero
// filled for days without movement.
func (s *Service) CashFlowChart(ctx context.Context, days int) ([]FlowPoint, error) {
	if days <= 0 {
		days = 30
	}
	end := s.now().Truncate(24 * time.Hour)
	start := end.AddDate(0, 0, -days)
	points, err := s.repo.CashFlow(ctx, start, end)
	if err != nil {
		return nil, err
	}
	byDate := make(map[string]FlowPoint, len(points))
	for _, p := range points {
		byDate[p.Date] = p
	}
	out := make([]FlowPoint, 0, days+1)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		key := d.Format("2006-01-02")
		if p, ok := byDate[key]; ok {
			out = append(out, p)
		} else {
			out = append(out, FlowPoint{Date: key})
		}
	}
	return out, nil
}

// ReceivablesAging returns the open AR total with its aging breakdown.
func (s *Service) ReceivablesAging(ctx context.Context) (Receivables, error) {
	g, gctx := errgroup.WithContext(ctx)
	var result Receivables
	g.Go(func() error {
		var err error
		result.Total, err = s.repo.ReceivablesTotal(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		result.Aged, err = s.repo.AgedReceivables(gctx, s.now())
		return err
	})
	if err := g.Wait(); err != nil {
		return Receivables{}, err
	}
	return result, nil
}

// Alerts surfaces conditions an operator should act on.
func (s *Service) Alerts(ctx context.Context) ([]Alert, error) {
	alerts := []Alert{}
	now := s.now()

	receipts, payments, err := s.repo.CashMovementTotals(ctx)
	if err != nil {
		return nil, err
	}
	if balance := s.openingBalance + receipts - payments; balance < 0 {
		alerts = append(alerts, Alert{
			Type:    "danger",
			Title:   "Negative Cash Balance",
			Message: fmt.Sprintf("Cash balance is negative: %.2f", balance),
			Action:  "Review cashbook",
		})
	}

	_, pendingCount, err := s.repo.PendingExpenses(ctx)
	if err != nil {
		return nil, err
	}
	if pendingCount > 0 {
		alerts = append(alerts, Alert{
			Type:    "warning",
			Title:   "Pending Approvals",
			Message: fmt.Sprintf("%d expenses awaiting approval", pendingCount),
			Action:  "Review expenses",
		})
	}

	unreconciled, err := s.repo.UnreconciledCount(ctx)
	if err != nil {
		return nil, err
	}
	if unreconciled > unreconciledHigh {
		alerts = append(alerts, Alert{
			Type:    "info",
			Title:   "Reconciliation Needed",
			Message: fmt.Sprintf("%d unreconciled bank transactions", unreconciled),
			Action:  "Run auto-reconciliation",
		})
	}

	overdue, err := s.repo.OverdueInvoiceCount(ctx, now)
	if err != nil {
		return nil, err
	}
	if overdue > 0 {
		alerts = append(alerts, Alert{
			Type:    "warning",
			Title:   "Overdue Invoices",
			Message: fmt.Sprintf("%d invoices are overdue", overdue),
			Action:  "View receivables",
		})
	}

	lastSync, err := s.repo.LastSyncedAt(ctx)
	if err != nil {
		return nil, err
	}
	if !lastSync.IsZero() && now.Sub(lastSync) > syncStaleAfter {
		alerts = append(alerts, Alert{
			Type:    "info",
			Title:   "UISP Sync Delayed",
			Message: "Last sync: " + lastSync.Format("15:04"),
			Action:  "Run manual sync",
		})
	}
	return alerts, nil
}

// RecentActivity lists the latest audit log rows.
func (s *Service) RecentActivity(ctx context.Context, limit int) ([]Activity, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.repo.RecentActivity(ctx, limit)
}

// ProfitAndLoss summarizes invoiced revenue against paid expenses.
func (s *Service) ProfitAndLoss(ctx context.Context, from, to time.Time) (ProfitLoss, error) {
	result := ProfitLoss{From: from, To: to}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		result.Revenue, err = s.repo.RevenueBetween(gctx, from, to)
		return err
	})
	g.Go(func() error {
		var err error
		result.Expenses, err = s.repo.PaidExpensesBetween(gctx, from, to)
		return err
	})
	if err := g.Wait(); err != nil {
		return ProfitLoss{}, err
	}
	result.NetProfit = result.Revenue - result.Expenses
	if result.Revenue > 0 {
		result.ProfitMargin = result.NetProfit / result.Revenue * 100
	}
	return result, nil
}
