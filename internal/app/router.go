package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/ispbooks/ispbooks/internal/bank"
	"github.com/ispbooks/ispbooks/internal/cashbook"
	"github.com/ispbooks/ispbooks/internal/coa"
	"github.com/ispbooks/ispbooks/internal/dashboard"
	"github.com/ispbooks/ispbooks/internal/expense"
	"github.com/ispbooks/ispbooks/internal/ledger"
	"github.com/ispbooks/ispbooks/internal/recon"
	"github.com/ispbooks/ispbooks/internal/uisp"
	"github.com/ispbooks/ispbooks/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	AccountsHandler  *coa.Handler
	LedgerHandler    *ledger.Handler
	ReconHandler     *recon.Handler
	BankHandler      *bank.Handler
	CashbookHandler  *cashbook.Handler
	ExpenseHandler   *expense.Handler
	UispHandler      *uisp.Handler
	DashboardHandler *dashboard.Handler
	JobHandler       *jobs.Handler
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		if params.AccountsHandler != nil {
			r.Route("/accounts", params.AccountsHandler.MountRoutes)
		}
		if params.LedgerHandler != nil {
			r.Route("/ledger", params.LedgerHandler.MountRoutes)
		}
		if params.ReconHandler != nil {
			r.Route("/recon", params.ReconHandler.MountRoutes)
		}
		if params.BankHandler != nil {
			r.Route("/bank", params.BankHandler.MountRoutes)
		}
		if params.CashbookHandler != nil {
			r.Route("/cashbook", params.CashbookHandler.MountRoutes)
		}
		if params.ExpenseHandler != nil {
			r.Route("/expenses", params.ExpenseHandler.MountRoutes)
		}
		if params.UispHandler != nil {
			r.Route("/uisp", params.UispHandler.MountRoutes)
		}
		if params.DashboardHandler != nil {
			r.Route("/dashboard", params.DashboardHandler.MountRoutes)
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	return r
}
