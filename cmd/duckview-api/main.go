package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/duckmesh/duckview/internal/api"
	"github.com/duckmesh/duckview/internal/auth"
	"github.com/duckmesh/duckview/internal/config"
	"github.com/duckmesh/duckview/internal/database"
	"github.com/duckmesh/duckview/internal/mirror"
	"github.com/duckmesh/duckview/internal/observability"
	s3store "github.com/duckmesh/duckview/internal/storage/s3"
)

func main() {
	cfg, err := config.LoadFromEnv("duckview-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mirrors, err := buildMirrors(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize object store", slog.Any("error", err))
		os.Exit(1)
	}
	// Populate mirrored directories before their views are materialized.
	for _, service := range mirrors {
		if _, err := service.SyncOnce(ctx); err != nil {
			logger.Warn("initial mirror sync failed", slog.String("database", service.Config.Database), slog.Any("error", err))
		}
	}

	registry, err := database.OpenRegistry(ctx, cfg.Databases, database.NewPool(cfg.Query.ExecutorSize), cfg.Query.ReloadDelay, logger)
	if err != nil {
		logger.Error("failed to open databases", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = registry.Close() }()

	var workers sync.WaitGroup
	for _, service := range mirrors {
		workers.Add(1)
		go func(service *mirror.Service) {
			defer workers.Done()
			if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("mirror stopped", slog.String("database", service.Config.Database), slog.Any("error", err))
			}
		}(service)
	}

	readiness := []api.ReadinessCheck{api.CheckDatabases(registry)}
	if len(mirrors) > 0 {
		readiness = append(readiness, api.CheckObjectStoreConfig(cfg))
	}
	deps := api.Dependencies{
		Logger:            logger,
		Databases:         registry,
		MaxRows:           cfg.Query.MaxRows,
		Readiness:         api.CombineReadinessChecks(readiness...),
		DependencyTimeout: time.Second,
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.Any("databases", cfg.DatabaseNames()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
	workers.Wait()
}

func buildMirrors(cfg config.Config, logger *slog.Logger) ([]*mirror.Service, error) {
	var services []*mirror.Service
	var store *s3store.Store
	for _, name := range cfg.DatabaseNames() {
		db := cfg.Databases[name]
		if db.Mirror == nil {
			continue
		}
		if store == nil {
			var err error
			store, err = s3store.New(s3store.Config{
				Endpoint:        cfg.ObjectStore.Endpoint,
				Region:          cfg.ObjectStore.Region,
				Bucket:          cfg.ObjectStore.Bucket,
				AccessKeyID:     cfg.ObjectStore.AccessKeyID,
				SecretAccessKey: cfg.ObjectStore.SecretAccessKey,
				UseSSL:          cfg.ObjectStore.UseSSL,
			})
			if err != nil {
				return nil, err
			}
		}
		services = append(services, &mirror.Service{
			Store: store,
			Config: mirror.Config{
				Database:  name,
				Directory: db.Directory,
				Prefix:    db.Mirror.Prefix,
				Interval:  db.Mirror.Interval,
			},
			Logger: logger,
		})
	}
	return services, nil
}
