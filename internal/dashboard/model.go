package dashboard

import "time"

// SummaryMetrics are the headline figures on the dashboard.
type SummaryMetrics struct {
	CashBalance        float64 `json:"cash_balance"`
	BankBalance        float64 `json:"bank_balance"`
	AccountsReceivable float64 `json:"accounts_receivable"`
	PendingExpenses    float64 `json:"pending_expenses"`
	UnreconciledCount  int64   `json:"unreconciled_count"`
	TodayReceipts      float64 `json:"today_receipts"`
	TodayPayments      float64 `json:"today_payments"`
	MonthlyRevenue     float64 `json:"monthly_revenue"`
	MonthlyExpenses    float64 `json:"monthly_expenses"`
}

// FlowPoint is one day on the cash flow chart.
type FlowPoint struct {
	Date     string  `json:"date"`
	Receipts float64 `json:"receipts"`
	Payments float64 `json:"payments"`
	Net      float64 `json:"net"`
}

// AgedBucket groups open receivables by days overdue.
type AgedBucket struct {
	Bucket string  `json:"age_bucket"`
	Count  int64   `json:"count"`
	Total  float64 `json:"total"`
}

// Receivables is the AR block: the open total plus the aging breakdown.
type Receivables struct {
	Total float64      `json:"total"`
	Aged  []AgedBucket `json:"aged"`
}

// Alert flags a condition that needs operator attention.
type Alert struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Action  string `json:"action"`
}

// Activity is one recent audit log row.
type Activity struct {
	Action   string    `json:"action"`
	Entity   string    `json:"entity_type"`
	EntityID string    `json:"entity_id"`
	ActorID  int64     `json:"user_id"`
	At       time.Time `json:"timestamp"`
}

// ProfitLoss summarizes revenue against paid expenses over a period.
type ProfitLoss struct {
	From         time.Time `json:"from"`
	To           time.Time `json:"to"`
	Revenue      float64   `json:"revenue"`
	Expenses     float64   `json:"expenses"`
	NetProfit    float64   `json:"net_profit"`
	ProfitMargin float64   `json:"profit_margin"`
}
