package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/ncecere/tenant_console/internal/app"
	"github.com/ncecere/tenant_console/internal/config"
	"github.com/ncecere/tenant_console/internal/database"
	"github.com/ncecere/tenant_console/internal/httpserver"
	"github.com/ncecere/tenant_console/internal/logging"
	"github.com/ncecere/tenant_console/internal/redisclient"
	"github.com/ncecere/tenant_console/internal/store"
	"github.com/ncecere/tenant_console/migrations"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(config.Options{})
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Database.RunMigrations {
		if err := migrate(ctx, cfg, logger); err != nil {
			logger.Fatal("run migrations", zap.Error(err))
		}
	}

	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("build container", zap.Error(err))
	}
	defer container.Close(context.Background())

	if err := redisclient.Ping(ctx, container.Redis, cfg.Redis.PingTimeout); err != nil {
		logger.Fatal("connect redis", zap.Error(err))
	}

	container.StartMonitors(ctx)

	server, err := httpserver.New(container)
	if err != nil {
		logger.Fatal("construct server", zap.Error(err))
	}

	logger.Info("console listening", zap.String("addr", cfg.Server.ListenAddr))
	if err := server.Listen(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server stopped", zap.Error(err))
	}
}

func migrate(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	connCfg, err := store.ServiceRoleConnConfig(cfg.Store)
	if err != nil {
		if errors.Is(err, store.ErrNotConfigured) {
			logger.Warn("skipping migrations", zap.Error(err))
			return nil
		}
		return err
	}
	fsys, err := database.MigrationsFS(cfg.Database, migrations.FS)
	if err != nil {
		return err
	}
	return database.RunMigrations(ctx, connCfg, fsys, logger.Named("migrations"))
}
