package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/central-erp/central-erp/internal/masterdata/categories"
	"github.com/central-erp/central-erp/internal/masterdata/products"
	"github.com/central-erp/central-erp/internal/masterdata/suppliers"
	"github.com/central-erp/central-erp/internal/observability"
	"github.com/central-erp/central-erp/internal/sales/customers"
	"github.com/central-erp/central-erp/internal/sales/orders"
	"github.com/central-erp/central-erp/internal/stock"
	"github.com/central-erp/central-erp/internal/users"
)

// RouterParams aggregates everything the HTTP surface needs.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics

	Products   *products.Handler
	Categories *categories.Handler
	Suppliers  *suppliers.Handler
	Customers  *customers.Handler
	Orders     *orders.Handler
	Stock      *stock.Handler
	Users      *users.Handler
}

// NewRouter builds the chi router with the full API surface.
func NewRouter(p RouterParams) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(MiddlewareStack(MiddlewareConfig{
		Logger:  p.Logger,
		Config:  p.Config,
		Metrics: p.Metrics,
	})...)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if p.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", p.Metrics.Handler())
	}

	r.Route("/api", func(api chi.Router) {
		api.Route("/products", p.Products.MountRoutes)
		api.Route("/categories", p.Categories.MountRoutes)
		api.Route("/suppliers", p.Suppliers.MountRoutes)
		api.Route("/customers", p.Customers.MountRoutes)
		api.Route("/orders", p.Orders.MountRoutes)
		api.Route("/stock", p.Stock.MountRoutes)
		api.Route("/users", p.Users.MountRoutes)
	})

	return r
}
