package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/nusantara-erp/nusantara-erp/internal/accounting/accounts"
	"github.com/nusantara-erp/nusantara-erp/internal/accounting/ledger"
	"github.com/nusantara-erp/nusantara-erp/internal/accounting/recon"
	"github.com/nusantara-erp/nusantara-erp/internal/accounting/reports"
	"github.com/nusantara-erp/nusantara-erp/internal/cashbank"
	"github.com/nusantara-erp/nusantara-erp/internal/delivery"
	"github.com/nusantara-erp/nusantara-erp/internal/finance/assets"
	"github.com/nusantara-erp/nusantara-erp/internal/finance/deposits"
	"github.com/nusantara-erp/nusantara-erp/internal/finance/payments"
	"github.com/nusantara-erp/nusantara-erp/internal/inventory"
	"github.com/nusantara-erp/nusantara-erp/internal/manufacturing"
	"github.com/nusantara-erp/nusantara-erp/internal/observability"
	"github.com/nusantara-erp/nusantara-erp/internal/qc"
	"github.com/nusantara-erp/nusantara-erp/internal/sales/quotations"
	"github.com/nusantara-erp/nusantara-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger               *slog.Logger
	Config               *Config
	AccountsHandler      *accounts.Handler
	LedgerHandler        *ledger.Handler
	ReconHandler         *recon.Handler
	ReportsHandler       *reports.Handler
	CashBankHandler      *cashbank.Handler
	DeliveryHandler      *delivery.Handler
	QuotationsHandler    *quotations.Handler
	ManufacturingHandler *manufacturing.Handler
	QCHandler            *qc.Handler
	PaymentsHandler      *payments.Handler
	DepositsHandler      *deposits.Handler
	AssetsHandler        *assets.Handler
	InventoryHandler     *inventory.Handler
	JobHandler           *jobs.Handler
	Metrics              *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
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
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	if params.AccountsHandler != nil {
		r.Route("/accounts", params.AccountsHandler.MountRoutes)
	}
	if params.LedgerHandler != nil {
		r.Route("/ledger", params.LedgerHandler.MountRoutes)
	}
	if params.ReconHandler != nil {
		r.Route("/reconciliations", params.ReconHandler.MountRoutes)
	}
	if params.ReportsHandler != nil {
		r.Route("/reports", params.ReportsHandler.MountRoutes)
	}
	if params.CashBankHandler != nil {
		r.Route("/cashbank", params.CashBankHandler.MountRoutes)
	}
	if params.DeliveryHandler != nil {
		r.Route("/deliveries", params.DeliveryHandler.MountRoutes)
	}
	if params.QuotationsHandler != nil {
		r.Route("/quotations", params.QuotationsHandler.MountRoutes)
	}
	if params.ManufacturingHandler != nil {
		r.Route("/manufacturing-orders", params.ManufacturingHandler.MountRoutes)
	}
	if params.QCHandler != nil {
		r.Route("/quality-controls", params.QCHandler.MountRoutes)
	}
	if params.PaymentsHandler != nil {
		r.Route("/payment-requests", params.PaymentsHandler.MountRoutes)
	}
	if params.DepositsHandler != nil {
		r.Route("/deposits", params.DepositsHandler.MountRoutes)
	}
	if params.AssetsHandler != nil {
		r.Route("/assets", params.AssetsHandler.MountRoutes)
	}
	if params.InventoryHandler != nil {
		r.Route("/inventory", params.InventoryHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	return r
}
