package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wizardconnect/match-engine/internal/cache"
	"github.com/wizardconnect/match-engine/internal/config"
)

func setupCache(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() { mr.Close() })

	cfg := config.New()
	cfg.Redis.Addr = mr.Addr()
	return cache.NewRedisCache(cfg), mr
}

func TestCampaignLockIsExclusive(t *testing.T) {
	ctx := context.Background()
	c, _ := setupCache(t)

	locked, err := c.AcquireCampaignLock(ctx, 1, "runner-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, locked)

	locked, err = c.AcquireCampaignLock(ctx, 1, "runner-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, locked)

	// a different campaign has its own lock
	locked, err = c.AcquireCampaignLock(ctx, 2, "runner-b", time.Minute)
	require.NoError(t, err)
	assert.True(t, locked)
}

func TestReleaseCampaignLockChecksToken(t *testing.T) {
	ctx := context.Background()
	c, _ := setupCache(t)

	locked, err := c.AcquireCampaignLock(ctx, 1, "runner-a", time.Minute)
	require.NoError(t, err)
	require.True(t, locked)

	// the wrong token cannot free the lock
	require.NoError(t, c.ReleaseCampaignLock(ctx, 1, "runner-b"))
	locked, err = c.AcquireCampaignLock(ctx, 1, "runner-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, locked)

	require.NoError(t, c.ReleaseCampaignLock(ctx, 1, "runner-a"))
	locked, err = c.AcquireCampaignLock(ctx, 1, "runner-b", time.Minute)
	require.NoError(t, err)
	assert.True(t, locked)

	// releasing an expired or absent lock is a no-op
	require.NoError(t, c.ReleaseCampaignLock(ctx, 99, "runner-a"))
}

func TestCampaignLockExpires(t *testing.T) {
	ctx := context.Background()
	c, mr := setupCache(t)

	locked, err := c.AcquireCampaignLock(ctx, 1, "crashed-run", time.Second)
	require.NoError(t, err)
	require.True(t, locked)

	mr.FastForward(2 * time.Second)

	locked, err = c.AcquireCampaignLock(ctx, 1, "runner-b", time.Minute)
	require.NoError(t, err)
	assert.True(t, locked)
}

func TestMatchCountCache(t *testing.T) {
	ctx := context.Background()
	c, _ := setupCache(t)

	_, hit, err := c.GetMatchCount(ctx, 1)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.SetMatchCount(ctx, 1, 42))

	n, hit, err := c.GetMatchCount(ctx, 1)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.EqualValues(t, 42, n)

	require.NoError(t, c.InvalidateMatchCount(ctx, 1))

	_, hit, err = c.GetMatchCount(ctx, 1)
	require.NoError(t, err)
	assert.False(t, hit)
}
