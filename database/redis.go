package database

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewRedisClient initializes a Redis client from a URL. Returns nil when the
// URL is empty or the server is unreachable; callers treat a nil client as
// cache disabled.
func NewRedisClient(logger *zap.Logger, redisURL string) *redis.Client {
	if redisURL == "" {
		logger.Info("REDIS_URL not set, verify response cache disabled")
		return nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn("Invalid Redis URL, verify response cache disabled", zap.Error(err))
		return nil
	}

	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn("Failed to connect to Redis, verify response cache disabled", zap.Error(err))
		return nil
	}

	logger.Info("Connected to Redis")
	return client
}
