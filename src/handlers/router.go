package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/username/notefolio/backend/src/services"
	"github.com/username/notefolio/backend/src/utils"
	"golang.org/x/time/rate"
)

type RouterOptions struct {
	AllowedOrigins []string
	Limiter        *rate.Limiter
}

// NewRouter mounts every API route on a chi router with the global middleware.
func NewRouter(uploads services.UploadService, gains services.GainsService, prices services.PriceService, opts RouterOptions) *chi.Mux {
	uploadHandler := NewUploadHandler(uploads)
	gainsHandler := NewGainsHandler(gains)
	txHandler := NewTransactionHandler(gains)
	portfolioHandler := NewPortfolioHandler(gains)
	priceHandler := NewPriceHandler(prices)
	adminHandler := NewAdminHandler(prices)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Content-Length", "If-None-Match", RequestIDHeader},
		ExposedHeaders:   []string{"ETag", RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if opts.Limiter != nil {
		r.Use(RateLimitMiddleware(opts.Limiter))
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		utils.SendJSON(w, map[string]string{"message": "Notefolio backend is running"}, http.StatusOK)
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.SendJSON(w, map[string]string{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}, http.StatusOK)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(UserScopeMiddleware)

		r.Post("/contract-notes", uploadHandler.HandleUploadContractNotes)
		r.Post("/contract-notes/text", uploadHandler.HandleUploadText)

		r.Get("/capital-gains", gainsHandler.HandleGetCapitalGains)
		r.Get("/capital-gains/years", gainsHandler.HandleGetAvailableYears)

		r.Get("/transactions", txHandler.HandleGetTransactions)
		r.Delete("/transactions", txHandler.HandleDeleteAllTransactions)

		r.Get("/holdings", portfolioHandler.HandleGetHoldings)

		r.Get("/prices", priceHandler.HandleGetPrice)
		r.Get("/stocks/search", priceHandler.HandleSearchStocks)

		r.Route("/admin", func(r chi.Router) {
			r.Get("/providers", adminHandler.HandleGetProviders)
			r.Post("/providers/reset", adminHandler.HandleResetAllProviders)
			r.Post("/providers/{name}/reset", adminHandler.HandleResetProvider)
			r.Post("/providers/{name}/test", adminHandler.HandleTestProvider)
			r.Patch("/providers/{name}", adminHandler.HandleUpdateProvider)
			r.Get("/price-config", adminHandler.HandleGetConfig)
			r.Post("/price-config/reload", adminHandler.HandleReloadConfig)
		})
	})
	return r
}
