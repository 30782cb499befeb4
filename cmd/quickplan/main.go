// Command quickplan 启动计划服务的 HTTP 服务器。
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"quickplan/internal/api"
	"quickplan/internal/config"
	"quickplan/internal/plan"
	"quickplan/internal/web/templates"
	"quickplan/pkg/logger"
)

const configEnv = "QUICKPLAN_CONFIG"

// main 是 quickplan 服务的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.L().Error("quickplan failed", slog.Any("error", err))
		_ = logger.Sync()
		stop()
		os.Exit(1)
	}
}

// configPath 优先使用环境变量，其次是 configs/quickplan.yaml，都没有时只读环境变量。
func configPath() string {
	if path := os.Getenv(configEnv); path != "" {
		return path
	}
	path := filepath.Join("configs", "quickplan.yaml")
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}

func run(ctx context.Context) error {
	cfg, err := config.Load(configPath())
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Logging); err != nil {
		return err
	}
	defer logger.Sync()
	log := logger.Named("main")

	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	publisher, err := openPublisher(ctx, cfg.Events)
	if err != nil {
		_ = store.Close()
		return err
	}
	cache, err := openCache(ctx, cfg.Cache)
	if err != nil {
		_ = publisher.Close()
		_ = store.Close()
		return err
	}

	service := plan.NewService(store,
		plan.WithCache(cache),
		plan.WithPublisher(publisher),
	)
	defer func() {
		if err := service.Close(); err != nil {
			log.Warn("close plan service", slog.Any("error", err))
		}
	}()

	if err := startBuildConfig(ctx, cfg.Build, cfg.Server.Release); err != nil {
		return err
	}

	renderer, err := templates.New(templates.Options{Minify: cfg.Server.Release})
	if err != nil {
		return err
	}

	server := api.NewServer(cfg.Server.Address, service, renderer,
		api.WithWebFolder(cfg.Web.Folder),
		api.WithCreateRateLimit(cfg.Server.CreateRatePerMinute),
		api.WithTimeouts(
			time.Duration(cfg.Server.ReadTimeoutSeconds)*time.Second,
			time.Duration(cfg.Server.WriteTimeoutSeconds)*time.Second,
			time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second,
		),
	)
	log.Info("quickplan starting",
		slog.String("addr", cfg.Server.Address),
		slog.String("storage", cfg.Storage.Driver),
		slog.String("cache", cfg.Cache.Driver),
		slog.String("events", cfg.Events.Driver),
		slog.Bool("release", cfg.Server.Release),
	)

	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
