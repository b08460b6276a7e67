/*
main.go - HTTP server entry point

PURPOSE:
  Initializes and starts the electricity billing ledger server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Load configuration (YAML file plus environment overrides)
  3. Open the configured store backend
  4. Create the billing service and API handler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Configuration file path (default: none, built-in defaults)
  -listen  HTTP listen address, overrides config
  -ledger  Ledger path, overrides config

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close the store
  4. Exit

EXAMPLES:
  # Run with the default CSV ledger
  ./server

  # Run against SQLite
  BILLING_STORE=sqlite ./server -ledger=./data/ledger.db

  # Run on a different address
  ./server -listen=:3000

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration loading
*/
package main

import (
	"context"
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anantdark/tenant-electricity-bill-calculator/api"
	"github.com/anantdark/tenant-electricity-bill-calculator/billing"
	"github.com/anantdark/tenant-electricity-bill-calculator/config"
	"github.com/anantdark/tenant-electricity-bill-calculator/store/csvfile"
	"github.com/anantdark/tenant-electricity-bill-calculator/store/memory"
	"github.com/anantdark/tenant-electricity-bill-calculator/store/sqlite"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	listen := flag.String("listen", "", "HTTP listen address, overrides config")
	ledgerPath := flag.String("ledger", "", "ledger path, overrides config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *ledgerPath != "" {
		cfg.LedgerPath = *ledgerPath
	}

	tenants, err := cfg.TenantSet()
	if err != nil {
		log.Fatalf("Invalid tenant configuration: %v", err)
	}

	store, closer, err := openStore(cfg, tenants)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	if closer != nil {
		defer closer.Close()
	}

	ledger := billing.NewLedger(store, tenants, cfg.StrictOrder)
	service := billing.NewService(tenants, ledger, nil)
	handler := api.NewHandler(service, store, cfg.Currency)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         cfg.Listen,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on %s (store=%s, ledger=%s)", cfg.Listen, cfg.Store, cfg.LedgerPath)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// openStore builds the configured backend. The closer is nil for backends
// without resources to release.
func openStore(cfg config.Config, tenants billing.TenantSet) (billing.Store, io.Closer, error) {
	switch cfg.Store {
	case config.StoreSQLite:
		s, err := sqlite.Open(cfg.LedgerPath)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case config.StoreMemory:
		return memory.New(), nil, nil
	default:
		s, err := csvfile.Open(cfg.LedgerPath, tenants, cfg.Currency)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	}
}
