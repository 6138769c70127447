package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/rentique-erp/rentique-erp/internal/calendar"
	"github.com/rentique-erp/rentique-erp/internal/cashbox"
	"github.com/rentique-erp/rentique-erp/internal/custody"
	"github.com/rentique-erp/rentique-erp/internal/inventory"
	"github.com/rentique-erp/rentique-erp/internal/observability"
	"github.com/rentique-erp/rentique-erp/internal/orders"
	"github.com/rentique-erp/rentique-erp/internal/payments"
	"github.com/rentique-erp/rentique-erp/internal/transfers"
	"github.com/rentique-erp/rentique-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	CalendarHandler  *calendar.Handler
	InventoryHandler *inventory.Handler
	OrdersHandler    *orders.Handler
	PaymentsHandler  *payments.Handler
	CustodyHandler   *custody.Handler
	CashboxHandler   *cashbox.Handler
	TransfersHandler *transfers.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
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
	r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())

	if params.CalendarHandler != nil {
		params.CalendarHandler.MountRoutes(r)
	}
	if params.InventoryHandler != nil {
		params.InventoryHandler.MountRoutes(r)
	}
	if params.OrdersHandler != nil {
		params.OrdersHandler.MountRoutes(r)
	}
	if params.CustodyHandler != nil {
		params.CustodyHandler.MountRoutes(r)
	}
	if params.PaymentsHandler != nil {
		params.PaymentsHandler.MountRoutes(r)
	}
	if params.CashboxHandler != nil {
		params.CashboxHandler.MountRoutes(r)
	}
	if params.TransfersHandler != nil {
		params.TransfersHandler.MountRoutes(r)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	return r
}
