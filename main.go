package main

import (
	"context"
	"errors"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/username/notefolio/backend/src/config"
	"github.com/username/notefolio/backend/src/database"
	"github.com/username/notefolio/backend/src/handlers"
	"github.com/username/notefolio/backend/src/logger"
	"github.com/username/notefolio/backend/src/pricing"
	"github.com/username/notefolio/backend/src/processors"
	"github.com/username/notefolio/backend/src/registry"
	"github.com/username/notefolio/backend/src/scheduler"
	"github.com/username/notefolio/backend/src/services"
	"golang.org/x/time/rate"
)

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)
	logger.L.Info("Notefolio backend server starting...")

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	defer database.DB.Close()
	logger.L.Info("Database initialized successfully.")

	reg := registry.New()
	if err := reg.AttachStore(database.DB); err != nil {
		logger.L.Error("Failed to load persisted ISIN mappings, continuing with built-in listings", "error", err)
	}

	logger.L.Info("Loading price provider config...", "path", config.Cfg.PriceConfigPath)
	priceConfig, err := config.LoadPriceConfig(config.Cfg.PriceConfigPath, config.Cfg.AlphaVantageAPIKey)
	if err != nil {
		logger.L.Error("Failed to load price provider config", "error", err)
		os.Exit(1)
	}

	avSettings, _ := priceConfig.Provider(config.ProviderAlphaVantage)
	yahooSettings, _ := priceConfig.Provider(config.ProviderYahooFinance)
	manager := pricing.NewManager(priceConfig,
		pricing.NewAlphaVantageProvider(reg, avSettings),
		pricing.NewYahooProvider(reg, yahooSettings),
		pricing.NewStaticProvider(reg, nil),
	)

	logger.L.Info("Initializing services and handlers...")
	reportCache := services.NewReportCache(config.Cfg.ReportCacheTTL)
	priceService := services.NewPriceService(manager)
	uploadService := services.NewUploadService(reg, reportCache)
	gainsService := services.NewGainsService(processors.NewCapitalGainsProcessor(), priceService, reportCache)

	router := handlers.NewRouter(uploadService, gainsService, priceService, handlers.RouterOptions{
		AllowedOrigins: config.Cfg.AllowedOrigins,
		Limiter:        rate.NewLimiter(rate.Every(config.Cfg.RateLimitInterval), config.Cfg.RateLimitBurst),
	})

	sched := scheduler.New()
	if err := sched.AddJob(config.Cfg.ConfigReloadSchedule, scheduler.NewConfigReloadJob(priceService)); err != nil {
		logger.L.Error("Invalid config reload schedule", "schedule", config.Cfg.ConfigReloadSchedule, "error", err)
	}
	if config.Cfg.PriceRefreshSchedule != "" {
		warmUp := scheduler.NewQuoteWarmUpJob(gainsService, priceService, scheduler.DefaultWarmUpTimeout)
		if err := sched.AddJob(config.Cfg.PriceRefreshSchedule, warmUp); err != nil {
			logger.L.Error("Invalid price refresh schedule", "schedule", config.Cfg.PriceRefreshSchedule, "error", err)
		}
	}
	sched.Start()

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.L.Info("Server starting", "address", serverAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L.Error("Failed to start server", "error", err)
			stdlog.Fatalf("Failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.L.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.L.Error("Server shutdown did not complete cleanly", "error", err)
	}
	sched.Stop()
	logger.L.Info("Server stopped gracefully.")
}
