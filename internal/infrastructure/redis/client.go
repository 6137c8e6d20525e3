package redisinfra

import (
	"context"
	"fmt"
	"time"

	"github.com/claytile-api/internal/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Connect opens a client for cfg.RedisAddr and pings it.
func Connect(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	zap.L().Info("redis connected", zap.String("addr", cfg.RedisAddr))
	return rdb, nil
}
