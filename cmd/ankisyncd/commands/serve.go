package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/ankisyncd/ankisyncd-go/internal/collection"
	"github.com/ankisyncd/ankisyncd-go/internal/collection/sqlitecol"
	"github.com/ankisyncd/ankisyncd-go/internal/config"
	"github.com/ankisyncd/ankisyncd-go/internal/fullsync"
	"github.com/ankisyncd/ankisyncd-go/internal/logger"
	"github.com/ankisyncd/ankisyncd-go/internal/metrics"
	"github.com/ankisyncd/ankisyncd-go/internal/sessionstore"
	"github.com/ankisyncd/ankisyncd-go/internal/usermanager"
	"github.com/ankisyncd/ankisyncd-go/internal/workerpool"
	"github.com/ankisyncd/ankisyncd-go/pkg/api"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sync server",
	Long: `Run the ankisyncd sync server in the foreground.

The server listens for Anki sync protocol requests (host-key auth,
incremental collection sync, media sync, full collection upload/download)
until it receives SIGINT or SIGTERM, at which point it drains in-flight
requests and shuts down gracefully.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "override the configured listen port")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Port = servePort
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}
	logger.Infof("loaded configuration from %s", getConfigSource(GetConfigFile()))

	users, err := usermanager.New(cfg.UserManager, cfg.Database.SQLitePath)
	if err != nil {
		return fmt.Errorf("failed to initialize user manager: %w", err)
	}

	sessionDSN := cfg.Database.SQLitePath
	if cfg.SessionManager == "postgres" {
		sessionDSN = postgresDSN(cfg)
	}
	sessions, err := sessionstore.New(cfg.SessionManager, sessionDSN)
	if err != nil {
		return fmt.Errorf("failed to initialize session store: %w", err)
	}

	pool := workerpool.New(openCollection, cfg.MonitorFrequency, cfg.MonitorInactivity)

	var registry prometheus.Registerer
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		registry = reg
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	deps := &api.Deps{
		Config:   cfg,
		Users:    users,
		Sessions: sessions,
		Pool:     pool,
		FullSync: fullsync.New(),
		Metrics:  metrics.New(registry),
	}

	router := api.NewRouter(deps, metricsHandler)
	server := api.NewServer(api.Config{Port: cfg.Port}, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool.Start(ctx)

	if err := server.Start(ctx); err != nil {
		return err
	}

	if err := pool.Shutdown(cfg.MonitorInactivity); err != nil {
		logger.Errorf("worker pool shutdown error: %v", err)
	}

	return nil
}

func openCollection(path string) (collection.Collection, error) {
	col, err := sqlitecol.Open(path)
	if err != nil {
		return nil, err
	}
	return col, nil
}
