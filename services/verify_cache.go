package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lanre647/latodabags/models"
)

// VerifyCache stores verification responses for references that reached a
// terminal status. Terminal state never changes, so entries are written once
// and served as-is until they expire. A nil cache disables caching.
type VerifyCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

type cachedVerification struct {
	UserID   string                       `json:"user_id"`
	Response models.PaymentStatusResponse `json:"response"`
}

func NewVerifyCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *VerifyCache {
	if client == nil {
		return nil
	}
	return &VerifyCache{client: client, ttl: ttl, logger: logger}
}

func (c *VerifyCache) key(reference string) string {
	return "payment:verify:" + reference
}

// Get returns the owning user ID and the cached response, or nil on a miss.
func (c *VerifyCache) Get(ctx context.Context, reference string) (string, *models.PaymentStatusResponse) {
	if c == nil || c.client == nil {
		return "", nil
	}
	data, err := c.client.Get(ctx, c.key(reference)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		c.logger.Warn("Verify cache read failed", zap.String("reference", reference), zap.Error(err))
		return "", nil
	}
	var entry cachedVerification
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		c.logger.Warn("Verify cache entry corrupt", zap.String("reference", reference), zap.Error(err))
		return "", nil
	}
	return entry.UserID, &entry.Response
}

func (c *VerifyCache) Set(ctx context.Context, reference, userID string, resp *models.PaymentStatusResponse) {
	if c == nil || c.client == nil || resp == nil {
		return
	}
	data, err := json.Marshal(cachedVerification{UserID: userID, Response: *resp})
	if err != nil {
		c.logger.Warn("Failed to marshal verify cache entry", zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, c.key(reference), data, c.ttl).Err(); err != nil {
		c.logger.Warn("Verify cache write failed", zap.String("reference", reference), zap.Error(err))
	}
}

// Delete drops the entry for a reference, used when a failed or cancelled
// order is re-initialized and its old reference stops being authoritative.
func (c *VerifyCache) Delete(ctx context.Context, reference string) {
	if c == nil || c.client == nil || reference == "" {
		return
	}
	if err := c.client.Del(ctx, c.key(reference)).Err(); err != nil {
		c.logger.Warn("Verify cache delete failed", zap.String("reference", reference), zap.Error(err))
	}
}
