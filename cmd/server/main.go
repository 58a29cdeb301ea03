/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the target allocation and achievement server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, flags)
  2. Build the zap logger
  3. Open the configured store (sqlite, mongo or memory)
  4. Create the aggregator and API handler
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port         HTTP server port (default: 8080)
  -store        sqlite, mongo or memory (default: sqlite)
  -db           SQLite database path (default: targets.db)
                Use ":memory:" for in-memory database
  -mongo-uri    MongoDB connection URI
  -mongo-db     MongoDB database name (default: sales)
  -log-level    debug, info, warn or error
  -log-file     Rotated log file instead of stdout
  -tz           Business timezone (default: UTC)
  -concurrency  Per-agent fan-out limit (default: 8)

ENVIRONMENT:
  PORT, STORE, SQLITE_PATH, MONGO_URI, MONGO_DATABASE, LOG_LEVEL,
  LOG_FILE, TIMEZONE, CONCURRENCY, CORS_ORIGINS. Flags win.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close the store
  4. Exit

EXAMPLES:
  # Run against the production Mongo database
  ./server -store=mongo -mongo-uri="mongodb://localhost:27017" -tz=Africa/Accra

  # Run with in-memory database and demo scenarios
  ./server -store=memory

SEE ALSO:
  - api/server.go: Router configuration
  - quota/aggregator.go: ForAgent / ForManager
  - store/sqlite, store/mongostore: Store implementations
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/warp/target-engine/api"
	"github.com/warp/target-engine/config"
	"github.com/warp/target-engine/logging"
	"github.com/warp/target-engine/quota"
	"github.com/warp/target-engine/quota/store"
	"github.com/warp/target-engine/store/mongostore"
	"github.com/warp/target-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}
	defer logger.Sync()

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal("Invalid timezone", zap.String("tz", cfg.Timezone), zap.Error(err))
	}

	// Initialize store
	st, closeStore, err := openStore(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize store", zap.String("store", cfg.Store), zap.Error(err))
	}
	defer closeStore()

	// Initialize engine and handler
	engine := quota.NewAggregator(st, logger.Named("engine"))
	engine.Location = loc
	engine.Concurrency = cfg.Concurrency
	engine.Observer = api.ComputationObserver{}

	handler := api.NewHandler(st, engine, logger.Named("api"))

	// Create router
	router := api.NewRouter(handler, api.RouterOptions{AllowedOrigins: cfg.CORSOrigins})

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Server starting",
			zap.Int("port", cfg.Port),
			zap.String("store", cfg.Store),
			zap.String("tz", loc.String()))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
		return
	}

	logger.Info("Server stopped")
}

// openStore returns the configured backend and its close function.
func openStore(cfg *config.Config) (quota.Store, func(), error) {
	switch cfg.Store {
	case config.StoreMongo:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s, err := mongostore.New(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			s.Close(ctx)
		}, nil

	case config.StoreMemory:
		return store.NewMemory(), func() {}, nil

	default:
		s, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	}
}
