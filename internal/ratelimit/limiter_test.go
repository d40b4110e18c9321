package ratelimit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitprofile/analyzer/internal/monitoring"
)

func newTestLimiter(t *testing.T, config Config) *RateLimiter {
	t.Helper()

	// Empty address disables Redis so the in-memory fallback is exercised
	redisClient, err := NewRedisClient("", "", 0)
	require.NoError(t, err)
	require.False(t, redisClient.IsEnabled())

	return NewRateLimiter(redisClient, config, monitoring.NewMetrics())
}

func TestAllowIPWithinLimit(t *testing.T) {
	rl := newTestLimiter(t, Config{
		IPLimitPerMin:   5,
		AnalyzePerMin:   2,
		BurstMultiplier: 2,
	})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		result, err := rl.AllowIP(ctx, "192.0.2.1")
		require.NoError(t, err)
		assert.True(t, result.Allowed, "request %d should be allowed", i+1)
		assert.Equal(t, 5, result.Limit)
	}
}

func TestAllowIPBlocksPastBurst(t *testing.T) {
	rl := newTestLimiter(t, Config{
		IPLimitPerMin:   2,
		AnalyzePerMin:   2,
		BurstMultiplier: 1,
	})
	ctx := context.Background()

	blocked := false
	for i := 0; i < 10; i++ {
		result, err := rl.AllowIP(ctx, "192.0.2.2")
		require.NoError(t, err)
		if !result.Allowed {
			blocked = true
			assert.Greater(t, result.RetryAfter.Seconds(), 0.0)
			break
		}
	}
	assert.True(t, blocked, "expected rate limit to block after burst exhaustion")
}

func TestAllowIPSeparateAddresses(t *testing.T) {
	rl := newTestLimiter(t, Config{
		IPLimitPerMin:   1,
		AnalyzePerMin:   1,
		BurstMultiplier: 1,
	})
	ctx := context.Background()

	first, err := rl.AllowIP(ctx, "192.0.2.10")
	require.NoError(t, err)
	assert.True(t, first.Allowed)

	// Exhaust the first address
	exhausted, err := rl.AllowIP(ctx, "192.0.2.10")
	require.NoError(t, err)
	assert.False(t, exhausted.Allowed)

	// A different address keeps its own budget
	other, err := rl.AllowIP(ctx, "192.0.2.11")
	require.NoError(t, err)
	assert.True(t, other.Allowed)
}

func TestAllowAnalyzeSeparateBudget(t *testing.T) {
	rl := newTestLimiter(t, Config{
		IPLimitPerMin:   100,
		AnalyzePerMin:   1,
		BurstMultiplier: 1,
	})
	ctx := context.Background()

	first, err := rl.AllowAnalyze(ctx, "192.0.2.3")
	require.NoError(t, err)
	assert.True(t, first.Allowed)
	assert.Equal(t, 1, first.Limit)

	second, err := rl.AllowAnalyze(ctx, "192.0.2.3")
	require.NoError(t, err)
	assert.False(t, second.Allowed)

	// The general IP budget is untouched by analysis requests
	ip, err := rl.AllowIP(ctx, "192.0.2.3")
	require.NoError(t, err)
	assert.True(t, ip.Allowed)
}

func TestGetStats(t *testing.T) {
	rl := newTestLimiter(t, DefaultConfig())
	ctx := context.Background()

	_, err := rl.AllowIP(ctx, "192.0.2.4")
	require.NoError(t, err)

	stats := rl.GetStats()
	assert.Equal(t, false, stats["redis_enabled"])
	assert.GreaterOrEqual(t, stats["fallback_limiters"].(int), 1)
}
