package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/spf13/cobra"

	"github.com/deudat/deudat/internal/api"
	"github.com/deudat/deudat/internal/app/ledger"
	"github.com/deudat/deudat/internal/daemon"
	"github.com/deudat/deudat/internal/domain"
	"github.com/deudat/deudat/internal/infra/postgres"
	"github.com/deudat/deudat/internal/infra/redisstore"
	"github.com/deudat/deudat/internal/infra/sqlite"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the deudat backend",
	Long: `Start the HTTP backend. Storage and session backends come from the
config file (default ~/.deudat/config.toml) with DEUDAT_* env overrides.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.Load(flagConfig)
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	sessions, err := openSessions(cfg, store)
	if err != nil {
		return err
	}

	svc := ledger.NewService(store)
	srv := api.NewServer(svc, store, sessions)
	if cfg.API.Metrics {
		srv.EnableMetrics()
	}

	httpServer := &http.Server{
		Addr:    cfg.Addr(),
		Handler: srv.Handler(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		banner := figure.NewFigure("deudat", "", true)
		banner.Print()
		log.Printf("[serve] listening on %s (storage=%s sessions=%s)",
			cfg.Addr(), cfg.Storage.Driver, cfg.Sessions.Backend)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[serve] server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("[serve] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// openStore opens the configured authoritative store.
func openStore(cfg daemon.Config) (domain.Store, error) {
	switch cfg.Storage.Driver {
	case "sqlite":
		return sqlite.Open(cfg.Storage.SQLitePath)
	case "postgres":
		return postgres.Connect(cfg.Storage.PostgresDSN)
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

// openSessions opens the configured session store. The sqlite backend shares
// the main database file, so it requires the sqlite storage driver.
func openSessions(cfg daemon.Config, store domain.Store) (domain.SessionStore, error) {
	ttl, err := cfg.SessionTTL()
	if err != nil {
		return nil, err
	}
	switch cfg.Sessions.Backend {
	case "sqlite":
		db, ok := store.(*sqlite.DB)
		if !ok {
			return nil, fmt.Errorf("sessions.backend sqlite requires storage.driver sqlite; use redis with postgres")
		}
		return sqlite.NewSessions(db, ttl), nil
	case "redis":
		client, err := redisstore.NewClient(cfg.Sessions.Redis.Addr, cfg.Sessions.Redis.Password, cfg.Sessions.Redis.DB)
		if err != nil {
			return nil, err
		}
		return redisstore.NewSessions(client, ttl), nil
	}
	return nil, fmt.Errorf("unknown sessions backend %q", cfg.Sessions.Backend)
}
