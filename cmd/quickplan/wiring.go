package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"quickplan/internal/buildconfig"
	"quickplan/internal/cache"
	"quickplan/internal/config"
	xerrors "quickplan/internal/errors"
	"quickplan/internal/events"
	"quickplan/internal/observability/metrics"
	"quickplan/internal/plan"
	"quickplan/internal/storage/mysql"
	"quickplan/internal/storage/sqlite"
	"quickplan/pkg/logger"
)

func openStore(ctx context.Context, cfg config.StorageConfig) (plan.Store, error) {
	switch cfg.Driver {
	case "memory":
		return plan.NewMemoryStore(), nil
	case "sqlite":
		return sqlite.Open(ctx, sqlite.Config{
			Path:           cfg.File,
			MaxConnections: cfg.MaxConnections,
			BusyTimeout:    cfg.Timeout(),
		})
	case "mysql":
		return mysql.Open(ctx, mysql.Config{
			DSN:             cfg.DSN,
			MaxOpenConns:    cfg.MaxConnections,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: time.Duration(cfg.ConnMaxLifetimeSeconds) * time.Second,
		})
	default:
		return nil, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("unsupported storage driver %q", cfg.Driver))
	}
}

func openCache(ctx context.Context, cfg config.CacheConfig) (plan.Cache, error) {
	switch cfg.Driver {
	case "none":
		return nil, nil
	case "lru":
		return cache.NewLRU(cfg.Size, cfg.TTL()), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect redis cache: %w", err)
		}
		// 进程内 LRU 挡在 Redis 前面。
		return cache.NewTiered(cache.NewLRU(cfg.Size, cfg.TTL()), cache.NewRedis(client, cfg.Redis.Prefix, cfg.TTL())), nil
	default:
		return nil, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("unsupported cache driver %q", cfg.Driver))
	}
}

// openPublisher 返回的发布器总会把事件写入审计日志。
func openPublisher(ctx context.Context, cfg config.EventsConfig) (events.Publisher, error) {
	var sink events.Publisher
	switch cfg.Driver {
	case "none":
	case "memory":
		mem := events.NewMemory(256)
		go drain(mem)
		sink = mem
	case "redis":
		pub, err := events.NewRedis(ctx, events.RedisConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Channel:  cfg.Channel,
		})
		if err != nil {
			return nil, err
		}
		sink = pub
	case "rabbitmq":
		pub, err := events.NewRabbitMQ(events.RabbitMQConfig{
			URL:     cfg.RabbitMQ.URL,
			Queue:   cfg.RabbitMQ.Queue,
			Durable: true,
		})
		if err != nil {
			return nil, err
		}
		sink = pub
	default:
		return nil, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("unsupported events driver %q", cfg.Driver))
	}
	return events.NewFanout(events.Audit{}, sink), nil
}

func drain(mem *events.Memory) {
	log := logger.Named("events")
	for {
		select {
		case event := <-mem.Events():
			log.Debug("plan event",
				slog.String("type", string(event.Type)),
				slog.String("plan", event.PlanURLID),
			)
		case <-mem.Done():
			return
		}
	}
}

// startBuildConfig 加载 CSS 构建配置并按需监视文件变化。
// 发布模式下配置错误会阻止启动，开发模式下只记录日志。
func startBuildConfig(ctx context.Context, cfg config.BuildConfig, release bool) error {
	log := logger.Named("buildconfig")
	loader := buildconfig.NewLoader(buildconfig.WithLogger(log))

	provider, err := buildconfig.NewProvider(cfg.ConfigPath, loader,
		buildconfig.WithReloadObserver(func(current *buildconfig.BuildConfiguration, err error) {
			metrics.ObserveBuildConfigReload(err)
			if err == nil {
				checkBuildConfig(ctx, loader, current)
			}
		}),
	)
	metrics.ObserveBuildConfigReload(err)
	if err != nil {
		if release {
			return err
		}
		log.Warn("build config unavailable", slog.String("path", cfg.ConfigPath), slog.Any("error", err))
		return nil
	}
	checkBuildConfig(ctx, loader, provider.Current())

	if cfg.Watch {
		go func() {
			if err := provider.Watch(ctx); err != nil && ctx.Err() == nil {
				log.Error("build config watcher stopped", slog.Any("error", err))
			}
		}()
	}
	return nil
}

func checkBuildConfig(ctx context.Context, loader *buildconfig.Loader, cfg *buildconfig.BuildConfiguration) {
	report, err := loader.Check(ctx, cfg)
	if err != nil {
		logger.Named("buildconfig").Warn("build config check failed", slog.Any("error", err))
		return
	}
	if report.OK() {
		logger.Named("buildconfig").Info("build config ready",
			slog.String("path", cfg.Source()),
			slog.Int("globs", len(report.Globs)),
		)
	}
}
