package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/beesaferoot/tenantly/internal/config"
	"github.com/beesaferoot/tenantly/internal/gateway"
	"github.com/beesaferoot/tenantly/internal/metrics"
	"github.com/beesaferoot/tenantly/internal/migration"
	"github.com/beesaferoot/tenantly/internal/server"
	"github.com/beesaferoot/tenantly/internal/store"
	"github.com/beesaferoot/tenantly/internal/triage"
)

const sessionSweepInterval = time.Minute

func serveCmd() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			return serve(cmd.Context(), cfg, migrate, logger)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before serving")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, migrate bool, logger *zap.Logger) error {
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required to serve")
	}
	logger.Info("starting tenantly",
		zap.Int("port", cfg.Server.Port),
		zap.String("database", cfg.Database.Driver),
		zap.String("storage", cfg.Storage.Backend),
		zap.String("realtime", cfg.Realtime.Backend),
	)

	db, err := gateway.OpenDB(cfg.Database)
	if err != nil {
		return err
	}
	if migrate {
		applied, err := migration.NewMigrator(db).Up()
		if err != nil {
			return fmt.Errorf("failed to apply migrations: %w", err)
		}
		logger.Info("migrations applied", zap.Int("count", len(applied)))
	}

	m := metrics.New()

	objects, err := newObjectStore(ctx, cfg)
	if err != nil {
		return err
	}
	broker, err := newBroker(cfg, logger)
	if err != nil {
		return err
	}
	oauth, err := gateway.OAuthConfigs(cfg.Auth.OAuth, cfg.Server.SiteURL)
	if err != nil {
		return err
	}

	gw := gateway.New(db, gateway.Options{
		Auth: gateway.AuthOptions{
			Secret:     cfg.Auth.JWTSecret,
			SessionTTL: cfg.Auth.SessionTTL,
			OAuth:      oauth,
		},
		Storage:  objects,
		Realtime: broker,
		Metrics:  m,
		Logger:   logger,
	})

	triager, err := newTriager(cfg, m, logger)
	if err != nil {
		return err
	}

	srv := server.NewServer(cfg, gw, triager, logger)
	srv.SetupRoutes()

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	go srv.Sessions().Run(runCtx, sessionSweepInterval)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var serveErr error
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case serveErr = <-errChan:
		logger.Error("server error", zap.Error(serveErr))
	case <-ctx.Done():
	}

	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	if err := gw.Close(shutdownCtx); err != nil {
		logger.Error("gateway close error", zap.Error(err))
	}

	logger.Info("tenantly stopped")
	return serveErr
}

func newObjectStore(ctx context.Context, cfg *config.Config) (gateway.ObjectStore, error) {
	switch cfg.Storage.Backend {
	case "gridfs":
		return gateway.NewGridFSStore(ctx, cfg.Storage.MongoURI, cfg.Storage.MongoDatabase, cfg.Storage.PublicBaseURL)
	default:
		return gateway.NewMemoryStore(cfg.Storage.PublicBaseURL), nil
	}
}

func newBroker(cfg *config.Config, logger *zap.Logger) (gateway.Broker, error) {
	switch cfg.Realtime.Backend {
	case "redis":
		return gateway.NewRedisBroker(cfg.Realtime.RedisAddr, cfg.Realtime.RedisPassword, cfg.Realtime.RedisDB, cfg.Realtime.ChannelPrefix, logger)
	default:
		return gateway.NewMemoryBroker(logger), nil
	}
}

// newTriager returns nil when triage is off so maintenance requests are
// stored without annotations.
func newTriager(cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) (store.Triager, error) {
	if !cfg.Triage.Enabled {
		return nil, nil
	}
	provider, err := triage.NewProvider(cfg.Triage.Model, cfg.Triage.APIKey, &http.Client{})
	if err != nil {
		return nil, err
	}
	return triage.New(provider, cfg.Triage.Timeout, m, logger), nil
}
