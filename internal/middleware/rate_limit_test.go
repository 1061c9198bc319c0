package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenBucket_AllowsUpToCapacityThenDenies(t *testing.T) {
	b := newTokenBucket(BucketConfig{Capacity: 2, RefillPerMinute: 0})

	allowed, _, _ := b.take()
	assert.True(t, allowed)
	allowed, _, _ = b.take()
	assert.True(t, allowed)

	allowed, _, retryAfter := b.take()
	assert.False(t, allowed)
	assert.Greater(t, retryAfter, 0)
}

func TestRateLimiter_SeparateKeysHaveIndependentBuckets(t *testing.T) {
	rl := NewRateLimiter(DefaultTokenConfig(), DefaultIPConfig())
	cfg := BucketConfig{Capacity: 1, RefillPerMinute: 0}

	allowed, _, _ := rl.Allow("token:a", cfg)
	assert.True(t, allowed)
	allowed, _, _ = rl.Allow("token:a", cfg)
	assert.False(t, allowed)

	allowed, _, _ = rl.Allow("token:b", cfg)
	assert.True(t, allowed)
}

func TestBucketConfig_BurstMultiplierRaisesMaxTokens(t *testing.T) {
	cfg := BucketConfig{Capacity: 10, BurstMultiplier: 2}
	assert.Equal(t, 20, cfg.maxTokens())

	cfg2 := BucketConfig{Capacity: 10}
	assert.Equal(t, 10, cfg2.maxTokens())
}
