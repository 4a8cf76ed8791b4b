package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/username/dinartools/backend/src/config"
	"github.com/username/dinartools/backend/src/database"
	"github.com/username/dinartools/backend/src/handlers"
	"github.com/username/dinartools/backend/src/logger"
	"github.com/username/dinartools/backend/src/processors"
	"github.com/username/dinartools/backend/src/services"
	"golang.org/x/time/rate"
)

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)

	logger.L.Info("Dinartools backend server starting...")

	kvStore, db := openKVStore(config.Cfg.DatabasePath)
	if db != nil {
		defer db.Close()
	}

	// One outbound budget shared by both sources and every retry.
	outbound := rate.NewLimiter(rate.Limit(config.Cfg.OutboundRatePerSec), 1)
	quoteClient := services.NewQuoteClient(config.Cfg.QuoteBaseURL, config.Cfg.HTTPClientTimeout, outbound)
	dividendClient := services.NewDividendClient(services.DividendClientConfig{
		BaseURL:     config.Cfg.DividendBaseURL,
		SessionURLs: config.Cfg.DividendSessionURLs,
		CrumbURL:    config.Cfg.DividendCrumbURL,
		Timeout:     config.Cfg.HTTPClientTimeout,
		Limiter:     outbound,
	})

	marketStore := services.NewMarketDataStore(
		services.NewMarketCache(kvStore, config.Cfg.QuoteCacheTTL),
		quoteClient,
		dividendClient,
		services.StoreOptions{
			PollInterval: config.Cfg.PollInterval,
			MaxRetries:   config.Cfg.FetchMaxRetries,
			RetryDelay:   config.Cfg.FetchRetryDelay,
		},
	)

	salaryProcessor := processors.NewSalaryProcessor()
	cashflowProcessor := processors.NewCashflowProcessor()
	worksheetService := services.NewWorksheetService(salaryProcessor)

	salaryHandler := handlers.NewSalaryHandler(worksheetService, salaryProcessor)
	stockHandler := handlers.NewStockHandler(marketStore, cashflowProcessor)

	inbound := rate.NewLimiter(rate.Every(100*time.Millisecond), config.Cfg.APIRateLimitBurst)

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(handlers.ContextualLoggerMiddleware)
	r.Use(handlers.CORSMiddleware(config.Cfg.AllowedOrigins))
	r.Use(handlers.RateLimitMiddleware(inbound))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "Dinartools Backend is running"})
	})

	handlers.RegisterRoutes(r, salaryHandler, stockHandler)

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.L.Info("Server starting", "address", serverAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			stdlog.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.L.Info("Shutdown signal received, draining...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.L.Error("Server shutdown failed", "error", err)
	}
	marketStore.Close()
	logger.L.Info("Server stopped")
}

// openKVStore returns the persistent cache when a database path is set and
// the process-local cache otherwise.
func openKVStore(path string) (services.KVStore, *sql.DB) {
	if path == "" {
		logger.L.Info("DATABASE_PATH empty, market cache kept in memory")
		return services.NewMemoryKVStore(), nil
	}

	logger.L.Info("Initializing database...", "path", path)
	database.InitDB(path)
	if err := database.RunMigrations(database.DB); err != nil {
		stdlog.Fatalf("Failed to run migrations: %v", err)
	}
	return services.NewSQLiteKVStore(database.DB), database.DB
}
