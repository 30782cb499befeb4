package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	xerrors "quickplan/internal/errors"
	"quickplan/pkg/logger"
)

// RedisConfig 描述 Redis 发布参数。
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Channel  string
}

// Redis 通过 PUBLISH 把事件发到一个频道。
type Redis struct {
	client  *redis.Client
	channel string
}

// NewRedis 连接 Redis 并校验连通性。
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	if cfg.Address == "" {
		return nil, errors.New("redis address cannot be empty")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return NewRedisWithClient(client, cfg.Channel), nil
}

// NewRedisWithClient 复用已有客户端，Close 时会关闭该客户端。
func NewRedisWithClient(client *redis.Client, channel string) *Redis {
	if channel == "" {
		channel = "quickplan.events"
	}
	return &Redis{client: client, channel: channel}
}

func (r *Redis) Publish(ctx context.Context, event Event) error {
	data, err := Encode(event)
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		return xerrors.Wrap(xerrors.CodePublishFailure, err, "redis publish", xerrors.WithMetadata("channel", r.channel))
	}
	return nil
}

// Subscribe 订阅频道，把解析后的事件交给 handler，直到 ctx 结束。
func (r *Redis) Subscribe(ctx context.Context, handler func(Event)) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe: %w", err)
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			event, err := Decode([]byte(msg.Payload))
			if err != nil {
				logger.L().Warn("dropping undecodable event", "error", err)
				continue
			}
			handler(event)
		}
	}
}

func (r *Redis) Close() error {
	return r.client.Close()
}
