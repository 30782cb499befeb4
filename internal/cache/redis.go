package cache

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"quickplan/internal/plan"
	"quickplan/pkg/logger"
)

// Redis 以 JSON 保存计划，键为 prefix + URL id。
// Redis 故障只记录日志并按未命中处理。
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedis 使用已有客户端创建缓存。
func NewRedis(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	if prefix == "" {
		prefix = "quickplan:plan:"
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl, logger: logger.Named("cache")}
}

func (c *Redis) key(urlID string) string {
	return c.prefix + urlID
}

func (c *Redis) Get(ctx context.Context, urlID string) (*plan.Plan, bool) {
	data, err := c.client.Get(ctx, c.key(urlID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("redis cache get failed", slog.String("url_id", urlID), slog.Any("error", err))
		}
		return nil, false
	}
	var p plan.Plan
	if err := json.Unmarshal(data, &p); err != nil {
		c.logger.Warn("redis cache entry is corrupt", slog.String("url_id", urlID), slog.Any("error", err))
		return nil, false
	}
	return &p, true
}

func (c *Redis) Set(ctx context.Context, p *plan.Plan) {
	if p == nil {
		return
	}
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.key(p.URLID), data, c.ttl).Err(); err != nil {
		c.logger.Warn("redis cache set failed", slog.String("url_id", p.URLID), slog.Any("error", err))
	}
}

func (c *Redis) Delete(ctx context.Context, urlID string) {
	if err := c.client.Del(ctx, c.key(urlID)).Err(); err != nil {
		c.logger.Warn("redis cache delete failed", slog.String("url_id", urlID), slog.Any("error", err))
	}
}

// Close 关闭 Redis 客户端。
func (c *Redis) Close() error {
	return c.client.Close()
}

// Tiered 先查本地缓存，再查共享缓存，共享缓存命中时回填本地。
type Tiered struct {
	local  plan.Cache
	shared plan.Cache
}

// NewTiered 组合两级缓存。
func NewTiered(local, shared plan.Cache) *Tiered {
	return &Tiered{local: local, shared: shared}
}

func (t *Tiered) Get(ctx context.Context, urlID string) (*plan.Plan, bool) {
	if p, ok := t.local.Get(ctx, urlID); ok {
		return p, true
	}
	p, ok := t.shared.Get(ctx, urlID)
	if ok {
		t.local.Set(ctx, p)
	}
	return p, ok
}

func (t *Tiered) Set(ctx context.Context, p *plan.Plan) {
	t.local.Set(ctx, p)
	t.shared.Set(ctx, p)
}

func (t *Tiered) Delete(ctx context.Context, urlID string) {
	t.local.Delete(ctx, urlID)
	t.shared.Delete(ctx, urlID)
}

// Close 关闭实现了 io.Closer 的各级缓存。
func (t *Tiered) Close() error {
	var errs []error
	for _, c := range []plan.Cache{t.local, t.shared} {
		if closer, ok := c.(io.Closer); ok {
			errs = append(errs, closer.Close())
		}
	}
	return errors.Join(errs...)
}
