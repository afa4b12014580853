/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the Warp Stock Engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and parse command-line flags
  2. Initialize SQLite store
  3. Wire the engine service and its stores
  4. Start the expired-hold sweeper
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port      HTTP server port (default: 8080)
  -db        SQLite database path (default: stock.db)
             Use ":memory:" for an in-memory database
  -hold-ttl  Default hold expiry (default: 0 = never)
  -sweep     Sweep interval for expired holds (default: 1m)

ENVIRONMENT:
  PORT, DB_PATH, HOLD_TTL, SWEEP_INTERVAL override the flag defaults.
  A .env file in the working directory is loaded first.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the sweeper, close the database
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/stock.db"

  # Holds expire after 30 minutes unless released
  ./server -hold-ttl=30m

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/warp/stock-engine/api"
	"github.com/warp/stock-engine/catalog"
	"github.com/warp/stock-engine/production"
	"github.com/warp/stock-engine/stock"
	"github.com/warp/stock-engine/store/sqlite"
)

func main() {
	// .env first, so flag defaults pick the values up
	_ = godotenv.Load()

	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envStr("DB_PATH", "stock.db"), "SQLite database path")
	holdTTL := flag.Duration("hold-ttl", envDuration("HOLD_TTL", 0), "default hold expiry (0 = never)")
	sweepEvery := flag.Duration("sweep", envDuration("SWEEP_INTERVAL", time.Minute), "expired-hold sweep interval")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		logger.Fatal("database init failed", zap.Error(err), zap.String("path", *dbPath))
	}
	defer store.Close()

	// Engine
	cfg := stock.DefaultConfig()
	cfg.DefaultHoldTTL = *holdTTL
	svc := stock.NewService(store, cfg, logger)
	svc.Catalog = catalog.Noop{}
	svc.Production = production.Noop{}
	svc.SetAlertStore(store)

	// HTTP surface
	handler := api.NewHandler(svc, logger)
	handler.Positions = store
	handler.Batches = store
	handler.Alerts = store
	handler.Catalog = catalog.Noop{}

	router := api.NewRouter(handler)

	// Background sweep
	sweeper := api.NewSweeper(svc, logger)
	sweeper.Interval = *sweepEvery
	sweeper.CheckAlerts = true
	sweeper.Start()
	defer sweeper.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting",
			zap.Int("port", *port),
			zap.String("db", *dbPath),
			zap.Duration("hold_ttl", *holdTTL),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
