package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// BucketConfig enumerates a token bucket's shape (spec §4.8: "capacity,
// refill_per_minute, burst_multiplier").
type BucketConfig struct {
	Capacity        int
	RefillPerMinute int
	BurstMultiplier float64
}

func (c BucketConfig) maxTokens() int {
	if c.BurstMultiplier <= 0 {
		return c.Capacity
	}
	return int(float64(c.Capacity) * c.BurstMultiplier)
}

// DefaultTokenConfig and DefaultIPConfig match spec §4.8's defaults.
func DefaultTokenConfig() BucketConfig {
	return BucketConfig{Capacity: 60, RefillPerMinute: 60, BurstMultiplier: 1}
}
func DefaultIPConfig() BucketConfig {
	return BucketConfig{Capacity: 120, RefillPerMinute: 120, BurstMultiplier: 1}
}

type tokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

func newTokenBucket(cfg BucketConfig) *tokenBucket {
	return &tokenBucket{
		tokens:     float64(cfg.Capacity),
		maxTokens:  float64(cfg.maxTokens()),
		refillRate: float64(cfg.RefillPerMinute) / 60.0,
		lastRefill: time.Now(),
	}
}

// take attempts to consume one token, returning whether it succeeded,
// the remaining tokens, and a retry-after hint in seconds when denied.
func (b *tokenBucket) take() (allowed bool, remaining int, retryAfter int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens = minFloat(b.maxTokens, b.tokens+elapsed*b.refillRate)
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		return true, int(b.tokens), 0
	}
	deficit := 1 - b.tokens
	wait := 1
	if b.refillRate > 0 {
		wait = int(deficit/b.refillRate) + 1
	}
	return false, 0, wait
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// RateLimiter enforces a token bucket per (identity, window) — identity
// is the authenticated subject, falling back to peer IP (spec §4.8).
type RateLimiter struct {
	mu          sync.Mutex
	buckets     map[string]*tokenBucket
	tokenConfig BucketConfig
	ipConfig    BucketConfig
}

// NewRateLimiter constructs a RateLimiter and starts its idle-bucket
// eviction loop, grounded on the teacher's cleanupExpiredBuckets pattern.
func NewRateLimiter(tokenConfig, ipConfig BucketConfig) *RateLimiter {
	rl := &RateLimiter{
		buckets:     make(map[string]*tokenBucket),
		tokenConfig: tokenConfig,
		ipConfig:    ipConfig,
	}
	go rl.evictIdleBuckets()
	return rl
}

func (rl *RateLimiter) evictIdleBuckets() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		rl.mu.Lock()
		now := time.Now()
		for key, b := range rl.buckets {
			b.mu.Lock()
			idle := now.Sub(b.lastRefill) > 10*time.Minute
			b.mu.Unlock()
			if idle {
				delete(rl.buckets, key)
			}
		}
		rl.mu.Unlock()
	}
}

// Allow consumes one token for key, creating its bucket under cfg on
// first use.
func (rl *RateLimiter) Allow(key string, cfg BucketConfig) (allowed bool, remaining, retryAfter int) {
	rl.mu.Lock()
	b, ok := rl.buckets[key]
	if !ok {
		b = newTokenBucket(cfg)
		rl.buckets[key] = b
	}
	rl.mu.Unlock()
	return b.take()
}

// key derives the identity bucket key: the authenticated subject if
// present, otherwise "ip:<peer>".
func (rl *RateLimiter) key(c *gin.Context) (string, BucketConfig) {
	if subject := IdentityOf(c); subject != "" {
		return "token:" + subject, rl.tokenConfig
	}
	ip := c.ClientIP()
	if ip == "" {
		ip = c.Request.RemoteAddr
	}
	return "ip:" + ip, rl.ipConfig
}

// Middleware returns a gin handler enforcing the per-identity bucket.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key, cfg := rl.key(c)
		allowed, remaining, retryAfter := rl.Allow(key, cfg)

		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded", "retry_after": retryAfter,
			})
			return
		}
		c.Next()
	}
}
