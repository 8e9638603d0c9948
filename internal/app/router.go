package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/harborbooks/harborbooks/internal/auth"
	"github.com/harborbooks/harborbooks/internal/billing/attachments"
	"github.com/harborbooks/harborbooks/internal/billing/bills"
	"github.com/harborbooks/harborbooks/internal/billing/invoices"
	"github.com/harborbooks/harborbooks/internal/billing/receipts"
	"github.com/harborbooks/harborbooks/internal/ledger/accounts"
	"github.com/harborbooks/harborbooks/internal/ledger/journals"
	"github.com/harborbooks/harborbooks/internal/observability"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	AuthHandler        *auth.Handler
	AuthMiddleware     auth.Middleware
	AccountsHandler    *accounts.Handler
	JournalsHandler    *journals.Handler
	BillsHandler       *bills.Handler
	InvoicesHandler    *invoices.Handler
	AttachmentsHandler *attachments.Handler
	ReceiptsHandler    *receipts.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router.
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

	r.Route("/auth", params.AuthHandler.MountRoutes)

	r.Group(func(r chi.Router) {
		r.Use(params.AuthMiddleware.RequireUser)

		r.Route("/ledger", func(r chi.Router) {
			r.Route("/accounts", params.AccountsHandler.MountRoutes)
			r.Route("/journals", params.JournalsHandler.MountRoutes)
		})
		r.Route("/billing", func(r chi.Router) {
			r.Route("/bills", params.BillsHandler.MountRoutes)
			r.Route("/invoices", params.InvoicesHandler.MountRoutes)
			r.Route("/receipts", params.ReceiptsHandler.MountRoutes)
			params.AttachmentsHandler.MountRoutes(r)
		})
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
