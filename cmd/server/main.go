/*
main.go - Application entry point

PURPOSE:
  Starts the billing API server over the configured storage backend and
  handles configuration, dependency wiring, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and parse command-line flags
  2. Open the backend (SQLite by default; migration runs here)
  3. Run the init gate (seed default units and settings)
  4. Configure the HTTP router
  5. Serve with graceful shutdown

CONFIGURATION:
  Flags override environment variables:
    -port / PORT                  HTTP server port (default: 8080)
    -db / BILLING_DB              SQLite database path (default: billing.db;
                                  ":memory:" for in-memory)
    -backend / BILLING_BACKEND    "local" or "remote" (default: local)
    -remote / BILLING_REMOTE_URL  Upstream base URL for the remote backend

  Running with -backend=remote turns this process into a relay in front
  of another billing API, which is mainly useful for local development
  against production data.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM: stop accepting connections, wait up to 30s for
  active requests, close the store, exit.

SEE ALSO:
  - api/server.go: Router configuration
  - store/sqlite: Local backend
  - store/remote: Remote backend
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
	"github.com/sirupsen/logrus"

	"github.com/spacelefarm/billing-engine/api"
	"github.com/spacelefarm/billing-engine/billing"
	"github.com/spacelefarm/billing-engine/store/remote"
	"github.com/spacelefarm/billing-engine/store/sqlite"
)

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	// .env is optional; real deployments set env vars directly.
	_ = godotenv.Load()

	port := flag.String("port", envDefault("PORT", "8080"), "HTTP server port")
	dbPath := flag.String("db", envDefault("BILLING_DB", "billing.db"), "SQLite database path")
	backendKind := flag.String("backend", envDefault("BILLING_BACKEND", "local"), "storage backend: local or remote")
	remoteURL := flag.String("remote", envDefault("BILLING_REMOTE_URL", ""), "base URL for the remote backend")
	flag.Parse()

	log := logrus.WithField("component", "server")

	var backend billing.Backend
	switch *backendKind {
	case "local":
		store, err := sqlite.New(*dbPath)
		if err != nil {
			logrus.WithError(err).Fatal("failed to open database")
		}
		defer store.Close()
		backend = store
		log.WithField("db", *dbPath).Info("using local backend")
	case "remote":
		if *remoteURL == "" {
			logrus.Fatal("-remote (or BILLING_REMOTE_URL) is required with -backend=remote")
		}
		backend = remote.New(*remoteURL)
		log.WithField("url", *remoteURL).Info("using remote backend")
	default:
		logrus.WithField("backend", *backendKind).Fatal("unknown backend kind")
	}

	// Seed default units and settings before serving traffic.
	repo := billing.NewRepository(backend)
	if err := repo.Ready(context.Background()); err != nil {
		logrus.WithError(err).Fatal("store initialization failed")
	}

	router := api.NewRouter(api.NewHandler(backend))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("addr", server.Addr).Info("billing API listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logrus.WithError(err).Fatal("forced shutdown")
	}

	log.Info("server stopped")
}
