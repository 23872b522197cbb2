package dashboard

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/ispbooks/ispbooks/internal/platform/cache"
)

type memoryRepo struct {
	receipts      float64
	payments      float64
	bankBalance   float64
	receivables   float64
	pendingTotal  float64
	pendingCount  int64
	unreconciled  int64
	todayReceipts float64
	todayPayments float64
	revenue       float64
	paidExpenses  float64
	overdue       int64
	flow          []FlowPoint
	aged          []AgedBucket
	activity      []Activity
	lastSync      time.Time
	queries       int
}

func (r *memoryRepo) CashMovementTotals(_ context.Context) (float64, float64, error) {
	r.queries++
	return r.receipts, r.payments, nil
}

func (r *memoryRepo) BankBalanceTotal(_ context.Context) (float64, error) {
	return r.bankBalance, nil
}

func (r *memoryRepo) ReceivablesTotal(_ context.Context) (float64, error) {
	return r.receivables, nil
}

func (r *memoryRepo) PendingExpenses(_ context.Context) (float64, int64, error) {
	return r.pendingTotal, r.pendingCount, nil
}

func (r *memoryRepo) UnreconciledCount(_ context.Context) (int64, error) {
	return r.unreconciled, nil
}

func (r *memoryRepo) DayTotals(_ context.Context, _ time.Time) (float64, float64, error) {
	return r.todayReceipts, r.todayPayments, nil
}

func (r *memoryRepo) RevenueBetween(_ context.Context, _, _ time.Time) (float64, error) {
	return r.revenue, nil
}

func (r *memoryRepo) PaidExpensesBetween(_ context.Context, _, _ time.Time) (float64, error) {
	return r.paidExpenses, nil
}

func (r *memoryRepo) OverdueInvoiceCount(_ context.Context, _ time.Time) (int64, error) {
	return r.overdue, nil
}

func (r *memoryRepo) CashFlow(_ context.Context, _, _ time.Time) ([]FlowPoint, error) {
	return r.flow, nil
}

func (r *memoryRepo) AgedReceivables(_ context.Context, _ time.Time) ([]AgedBucket, error) {
	return r.aged, nil
}

func (r *memoryRepo) RecentActivity(_ context.Context, limit int) ([]Activity, error) {
	if limit < len(r.activity) {
		return r.activity[:limit], nil
	}
	return r.activity, nil
}

func (r *memoryRepo) LastSyncedAt(_ context.Context) (time.Time, error) {
	return r.lastSync, nil
}

func newTestService(t *testing.T, repo *memoryRepo) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := cache.NewCache(client, 5*time.Minute)
	svc := NewService(repo, c, 1000, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.WithNow(func() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) })
	return svc
}

func TestSummary(t *testing.T) {
	repo := &memoryRepo{
		receipts: 5000, payments: 3200, bankBalance: 12000,
		receivables: 840, pendingTotal: 450, pendingCount: 2,
		unreconciled: 7, todayReceipts: 150, todayPayments: 90,
		revenue: 9800, paidExpenses: 4100,
	}
	svc := newTestService(t, repo)

	metrics, err := svc.Summary(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2800.0, metrics.CashBalance)
	require.Equal(t, 12000.0, metrics.BankBalance)
	require.Equal(t, 840.0, metrics.AccountsReceivable)
	require.Equal(t, 450.0, metrics.PendingExpenses)
	require.Equal(t, int64(7), metrics.UnreconciledCount)
	require.Equal(t, 150.0, metrics.TodayReceipts)
	require.Equal(t, 90.0, metrics.TodayPayments)
	require.Equal(t, 9800.0, metrics.MonthlyRevenue)
	require.Equal(t, 4100.0, metrics.MonthlyExpenses)
}

func TestSummaryServedFromCache(t *testing.T) {
	repo := &memoryRepo{receipts: 500}
	svc := newTestService(t, repo)

	first, err := svc.Summary(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1500.0, first.CashBalance)
	require.Equal(t, 1, repo.queries)

	// Underlying data moves but the cached figure is returned.
	repo.receipts = 9999
	second, err := svc.Summary(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1500.0, second.CashBalance)
	require.Equal(t, 1, repo.queries)

	require.NoError(t, svc.Invalidate(context.Background()))
	third, err := svc.Summary(context.Background())
	require.NoError(t, err)
	require.Equal(t, 10999.0, third.CashBalance)
	require.Equal(t, 2, repo.queries)
}

func TestCashFlowChartFillsGaps(t *testing.T) {
	repo := &memoryRepo{flow: []FlowPoint{
		{Date: "2024-03-13", Receipts: 100, Payments: 40, Net: 60},
	}}
	svc := newTestService(t, repo)

	points, err := svc.CashFlowChart(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, points, 4)
	require.Equal(t, "2024-03-12", points[0].Date)
	require.Zero(t, points[0].Receipts)
	require.Equal(t, FlowPoint{Date: "2024-03-13", Receipts: 100, Payments: 40, Net: 60}, points[1])
	require.Equal(t, "2024-03-15", points[3].Date)
}

func TestAlerts(t *testing.T) {
	repo := &memoryRepo{
		receipts: 100, payments: 2000,
		pendingCount: 3,
		unreconciled: 51,
		overdue:      4,
		lastSync:     time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC),
	}
	svc := newTestService(t, repo)

	alerts, err := svc.Alerts(context.Background())
	require.NoError(t, err)
	require.Len(t, alerts, 5)
	require.Equal(t, "Negative Cash Balance", alerts[0].Title)
	require.Equal(t, "danger", alerts[0].Type)
	require.Equal(t, "Pending Approvals", alerts[1].Title)
	require.Equal(t, "Reconciliation Needed", alerts[2].Title)
	require.Equal(t, "Overdue Invoices", alerts[3].Title)
	require.Equal(t, "UISP Sync Delayed", alerts[4].Title)
}

func TestAlertsQuietWhenHealthy(t *testing.T) {
	repo := &memoryRepo{
		receipts: 2000, payments: 100,
		unreconciled: 10,
		lastSync:     time.Date(2024, 3, 15, 11, 30, 0, 0, time.UTC),
	}
	svc := newTestService(t, repo)

	alerts, err := svc.Alerts(context.Background())
	require.NoError(t, err)
	require.Empty(t, alerts)
}

func TestProfitAndLoss(t *testing.T) {
	repo := &memoryRepo{revenue: 8000, paidExpenses: 6000}
	svc := newTestService(t, repo)

	pl, err := svc.ProfitAndLoss(context.Background(),
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, 2000.0, pl.NetProfit)
	require.Equal(t, 25.0, pl.ProfitMargin)
}
