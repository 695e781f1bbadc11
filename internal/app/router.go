package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinova-emr/clinova/internal/billing"
	"github.com/clinova-emr/clinova/internal/catalog"
	"github.com/clinova-emr/clinova/internal/pharmacy"
	"github.com/clinova-emr/clinova/internal/platform/httpx"
	"github.com/clinova-emr/clinova/internal/stock"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	Pool            *pgxpool.Pool
	CatalogHandler  *catalog.Handler
	StockHandler    *stock.Handler
	BillingHandler  *billing.Handler
	PharmacyHandler *pharmacy.Handler
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(params.Config) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if params.Pool != nil {
			if err := params.Pool.Ping(ctx); err != nil {
				params.Logger.Error("healthz db ping", slog.Any("error", err))
				httpx.Problem(w, http.StatusServiceUnavailable, "Unavailable", "database unreachable")
				return
			}
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(api chi.Router) {
		params.CatalogHandler.MountRoutes(api)
		params.StockHandler.MountRoutes(api)
		params.BillingHandler.MountRoutes(api)
		params.PharmacyHandler.MountRoutes(api)
	})

	return r
}
