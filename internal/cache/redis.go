package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wizardconnect/match-engine/internal/config"
)

type RedisCache struct {
	Client *redis.Client
}

// NewRedisCache initializes Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config) *RedisCache {
	opts := &redis.Options{
		Addr: cfg.Redis.Addr,
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	return &RedisCache{Client: redis.NewClient(opts)}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.Client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	return c.Client.Get(ctx, key).Result()
}

func (c *RedisCache) Del(ctx context.Context, key string) error {
	return c.Client.Del(ctx, key).Err()
}

// KeyForCampaignLock generates the Redis key guarding a campaign's writes.
func (c *RedisCache) KeyForCampaignLock(campaignID uint64) string {
	return fmt.Sprintf("campaign:lock:%d", campaignID)
}

// AcquireCampaignLock takes the exclusive campaign-scoped lock. The token
// identifies the holder; the TTL bounds how long a crashed run can wedge
// the campaign. Returns false when another holder has the lock.
func (c *RedisCache) AcquireCampaignLock(ctx context.Context, campaignID uint64, token string, ttl time.Duration) (bool, error) {
	return c.Client.SetNX(ctx, c.KeyForCampaignLock(campaignID), token, ttl).Result()
}

// ReleaseCampaignLock frees the lock if the token still owns it. A lock
// whose TTL already expired belongs to nobody; releasing it is a no-op.
func (c *RedisCache) ReleaseCampaignLock(ctx context.Context, campaignID uint64, token string) error {
	key := c.KeyForCampaignLock(campaignID)
	holder, err := c.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	if holder != token {
		return nil
	}
	return c.Client.Del(ctx, key).Err()
}

// KeyForMatchCount generates the Redis key for a campaign's match count.
func (c *RedisCache) KeyForMatchCount(campaignID uint64) string {
	return fmt.Sprintf("matches:count:%d", campaignID)
}

// SetMatchCount caches the stored match count with a 1h TTL.
func (c *RedisCache) SetMatchCount(ctx context.Context, campaignID uint64, count int64) error {
	return c.Client.Set(ctx, c.KeyForMatchCount(campaignID), count, time.Hour).Err()
}

// GetMatchCount reads the cached count; (0, false) on a miss.
func (c *RedisCache) GetMatchCount(ctx context.Context, campaignID uint64) (int64, bool, error) {
	val, err := c.Client.Get(ctx, c.KeyForMatchCount(campaignID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, nil // treat junk as a miss
	}
	// refresh TTL on access
	_ = c.Client.Expire(ctx, c.KeyForMatchCount(campaignID), time.Hour).Err()
	return n, true, nil
}

// InvalidateMatchCount drops the cached count after a regeneration.
func (c *RedisCache) InvalidateMatchCount(ctx context.Context, campaignID uint64) error {
	return c.Client.Del(ctx, c.KeyForMatchCount(campaignID)).Err()
}
