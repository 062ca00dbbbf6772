package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"spectra-bot-backend/internal/common/config"
)

// New connects to Redis using the configured endpoint and verifies the
// connection with a ping.
func New(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return client, nil
}
