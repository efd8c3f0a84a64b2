package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/textileflow/textileflow/internal/billing/bills"
	"github.com/textileflow/textileflow/internal/billing/invoices"
	"github.com/textileflow/textileflow/internal/expenses"
	"github.com/textileflow/textileflow/internal/inventory"
	"github.com/textileflow/textileflow/internal/observability"
	"github.com/textileflow/textileflow/internal/parties"
	"github.com/textileflow/textileflow/internal/reports"
	"github.com/textileflow/textileflow/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	PartiesHandler   *parties.Handler
	InventoryHandler *inventory.Handler
	InvoicesHandler  *invoices.Handler
	BillsHandler     *bills.Handler
	ReportsHandler   *reports.Handler
	ExpensesHandler  *expenses.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router for the JSON API.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.PartiesHandler != nil {
		params.PartiesHandler.MountRoutes(r)
	}
	if params.InventoryHandler != nil {
		r.Route("/inventory", params.InventoryHandler.MountRoutes)
	}
	if params.InvoicesHandler != nil {
		params.InvoicesHandler.MountRoutes(r)
	}
	if params.BillsHandler != nil {
		params.BillsHandler.MountRoutes(r)
	}
	if params.ReportsHandler != nil {
		params.ReportsHandler.MountRoutes(r)
	}
	if params.ExpensesHandler != nil {
		params.ExpensesHandler.MountRoutes(r)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
