package services

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Quota actions tracked per user per UTC day
const (
	QuotaCapture = "capture"
	QuotaDistill = "distill"
)

// UsageLimiterService enforces per-user daily quotas backed by Redis
// counters. Counters roll over at midnight UTC via key expiry. Redis being
// down must never block the product, so failures log and allow.
type UsageLimiterService struct {
	redis  *RedisService
	limits map[string]int // action -> daily limit; 0 or missing disables
}

// NewUsageLimiterService creates a new usage limiter
func NewUsageLimiterService(redis *RedisService, captureLimit, distillLimit int) *UsageLimiterService {
	return &UsageLimiterService{
		redis: redis,
		limits: map[string]int{
			QuotaCapture: captureLimit,
			QuotaDistill: distillLimit,
		},
	}
}

// Allow consumes one unit of the user's daily quota for the action.
// Returns false only when the quota is configured, Redis is reachable, and
// the counter has passed the limit.
func (s *UsageLimiterService) Allow(ctx context.Context, userID, action string) bool {
	limit := s.limits[action]
	if limit <= 0 || s.redis == nil || userID == "" {
		return true
	}

	now := time.Now().UTC()
	key := fmt.Sprintf("quota:%s:%s:%s", action, userID, now.Format("2006-01-02"))

	client := s.redis.Client()
	count, err := client.Incr(ctx, key).Result()
	if err != nil {
		log.Printf("⚠️ Quota check failed for %s/%s, allowing: %v", action, userID, err)
		return true
	}
	if count == 1 {
		midnight := now.Truncate(24 * time.Hour).AddDate(0, 0, 1)
		if err := client.ExpireAt(ctx, key, midnight).Err(); err != nil {
			log.Printf("⚠️ Failed to set quota expiry for %s: %v", key, err)
		}
	}

	return count <= int64(limit)
}

// Remaining reports how much of the day's quota is left (-1 when unlimited
// or unknowable).
func (s *UsageLimiterService) Remaining(ctx context.Context, userID, action string) int {
	limit := s.limits[action]
	if limit <= 0 || s.redis == nil || userID == "" {
		return -1
	}

	now := time.Now().UTC()
	key := fmt.Sprintf("quota:%s:%s:%s", action, userID, now.Format("2006-01-02"))

	count, err := s.redis.Client().Get(ctx, key).Int()
	if err != nil {
		return limit
	}
	remaining := limit - count
	if remaining < 0 {
		return 0
	}
	return remaining
}
