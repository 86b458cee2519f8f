/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the settlement engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (environment, then flag overrides)
  2. Initialize SQLite store
  3. Register Prometheus metrics
  4. Create API handler with dependencies
  5. Start the cron scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides SERVER_PORT)
  -db      SQLite database path (overrides DATABASE_PATH)
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/settlement.db"

  # Run with in-memory database and demo data
  SEED_SCENARIOS=true ./server -db=":memory:"

ENVIRONMENT:
  SERVER_PORT, DATABASE_PATH, SETTLEMENT_SCHEDULE, EXPIRY_SWEEP_SCHEDULE,
  PENDING_EXPIRY_DAYS, SCHEDULER_ENABLED, SEED_SCENARIOS
  (see config/config.go for defaults)

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
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/settlement-engine/api"
	"github.com/warp/settlement-engine/config"
	"github.com/warp/settlement-engine/metrics"
	"github.com/warp/settlement-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Flags override the environment
	port := flag.Int("port", cfg.ServerPort, "HTTP server port")
	dbPath := flag.String("db", cfg.DatabasePath, "SQLite database path")
	flag.Parse()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	metrics.Init(store.DB(), log.Default())

	// Initialize handler
	handler := api.NewHandler(store)

	if cfg.SeedScenarios {
		if err := handler.SeedDefaultScenario(context.Background()); err != nil {
			log.Printf("Warning: failed to seed demo data: %v", err)
		}
	}

	// Cron scheduler for monthly runs and pending expiry
	var scheduler *api.Scheduler
	if cfg.SchedulerEnabled {
		scheduler, err = api.NewScheduler(handler, api.SchedulerConfig{
			SettlementSchedule:  cfg.SettlementSchedule,
			ExpirySweepSchedule: cfg.ExpirySweepSchedule,
			PendingExpiry:       time.Duration(cfg.PendingExpiryDays) * 24 * time.Hour,
		})
		if err != nil {
			log.Fatalf("Failed to configure scheduler: %v", err)
		}
		scheduler.Start()
	}

	// Create router
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Server starting on http://localhost:%d", *port)
		log.Printf("📊 API available at http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	if scheduler != nil {
		scheduler.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
