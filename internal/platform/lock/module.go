package lock

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/mollie-gateway/pkg/config"
)

const keyPrefix = "mollie-gateway:lock:"

// NewLocker uses Redis when an address is configured and falls back to an
// in-process locker otherwise.
func NewLocker(lc fx.Lifecycle, cfg *config.Config, l *zap.SugaredLogger) Locker {
	if cfg.Redis.Addr == "" {
		l.Infow("redis not configured, using in-process webhook locks")
		return NewLocalLocker()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				l.Warnw("could not reach redis, webhook locks will fail until it is back", "addr", cfg.Redis.Addr, "err", err)
				return nil
			}
			l.Infow("connected to redis", "addr", cfg.Redis.Addr)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return NewRedisLocker(client, keyPrefix)
}

var Module = fx.Options(
	fx.Provide(NewLocker),
)
