// ratelimit.go implements per-client rate limiting for the auth and upload
// routes.
//
// Without Redis each client IP gets a token bucket in memory:
// - The bucket holds N tokens (N = requests allowed per minute)
// - Each request consumes 1 token
// - Tokens refill at a steady rate (N tokens per minute)
// - If the bucket is empty, the request is rejected with 429 Too Many Requests
//
// With Redis, instances share a fixed one-minute window per client,
// counted with INCR so every instance sees the same total.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/jerin288/jdt-tool-web/internal/logging"
	"github.com/jerin288/jdt-tool-web/internal/models"
)

const rateLimitKeyPrefix = "jdt:ratelimit:"

// RateLimiter tracks request rates per client.
type RateLimiter struct {
	limit int // requests per minute; 0 disables limiting
	rdb   *redis.Client
	now   func() time.Time

	// Go Pattern: sync.RWMutex allows multiple concurrent readers but
	// exclusive writers.
	mu      sync.RWMutex
	buckets map[string]*bucket

	stop     chan struct{}
	stopOnce sync.Once
}

// bucket tracks the token state for a single client.
type bucket struct {
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

// allowResult contains the result of a rate limit check,
// including header information for the response.
type allowResult struct {
	allowed   bool
	remaining float64
	limit     float64
}

// NewRateLimiter creates an in-memory limiter allowing limit requests per
// minute per client. Call Stop to end its cleanup goroutine.
func NewRateLimiter(limit int) *RateLimiter {
	rl := &RateLimiter{
		limit:   limit,
		now:     time.Now,
		buckets: make(map[string]*bucket),
		stop:    make(chan struct{}),
	}

	// Start background cleanup goroutine
	go rl.cleanup(10 * time.Minute)

	return rl
}

// NewRedisRateLimiter creates a limiter whose counts live in Redis.
func NewRedisRateLimiter(rdb *redis.Client, limit int) *RateLimiter {
	return &RateLimiter{
		limit: limit,
		rdb:   rdb,
		now:   time.Now,
		stop:  make(chan struct{}),
	}
}

// Stop ends the background cleanup.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// RateLimit returns Gin middleware that limits each client IP. scope keeps
// separate counters per route group.
func (rl *RateLimiter) RateLimit(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.limit <= 0 {
			c.Next()
			return
		}

		key := scope + ":" + c.ClientIP()
		result, err := rl.allow(c.Request.Context(), key)
		if err != nil {
			// A Redis outage should not lock every user out.
			logging.Warn("rate limiter unavailable, allowing request", "error", err)
			c.Next()
			return
		}

		if !result.allowed {
			// Add headers even for rejected requests so clients know their limits
			c.Header("X-RateLimit-Limit", formatFloat(result.limit))
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", "60")
			c.JSON(http.StatusTooManyRequests, models.ErrorResponse{
				Error:   "rate_limit_exceeded",
				Message: "Too many requests. Please wait a minute and try again.",
				Code:    http.StatusTooManyRequests,
			})
			c.Abort()
			return
		}

		c.Header("X-RateLimit-Limit", formatFloat(result.limit))
		c.Header("X-RateLimit-Remaining", formatFloat(result.remaining))

		c.Next()
	}
}

func (rl *RateLimiter) allow(ctx context.Context, key string) (allowResult, error) {
	if rl.rdb != nil {
		return rl.allowRedis(ctx, key)
	}
	return rl.allowMemory(key), nil
}

// allowMemory checks if a request should be allowed, consuming a token if so.
// Returns the result atomically to avoid race conditions between checking
// the limit and reading the bucket for headers.
func (rl *RateLimiter) allowMemory(key string) allowResult {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, exists := rl.buckets[key]
	if !exists {
		b = &bucket{
			tokens:     float64(rl.limit),
			maxTokens:  float64(rl.limit),
			refillRate: float64(rl.limit) / 60.0, // tokens per second (rate per minute)
			lastRefill: now,
		}
		rl.buckets[key] = b
	}

	// Refill tokens based on elapsed time
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens += elapsed * b.refillRate
	if b.tokens > b.maxTokens {
		b.tokens = b.maxTokens
	}
	b.lastRefill = now

	if b.tokens < 1.0 {
		return allowResult{allowed: false, remaining: 0, limit: b.maxTokens}
	}

	b.tokens--
	return allowResult{allowed: true, remaining: b.tokens, limit: b.maxTokens}
}

// allowRedis counts the request in the current one-minute window.
func (rl *RateLimiter) allowRedis(ctx context.Context, key string) (allowResult, error) {
	window := rl.now().Unix() / 60
	redisKey := rateLimitKeyPrefix + key + ":" + strconv.FormatInt(window, 10)

	var incr *redis.IntCmd
	_, err := rl.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		pipe.Expire(ctx, redisKey, 2*time.Minute)
		return nil
	})
	if err != nil {
		return allowResult{}, fmt.Errorf("rate limit counter: %w", err)
	}

	count := incr.Val()
	limit := float64(rl.limit)
	if count > int64(rl.limit) {
		return allowResult{allowed: false, remaining: 0, limit: limit}, nil
	}
	return allowResult{allowed: true, remaining: float64(int64(rl.limit) - count), limit: limit}, nil
}

// cleanup periodically removes stale buckets to prevent memory leaks.
func (rl *RateLimiter) cleanup(every time.Duration) {
	// Go Pattern: time.Ticker sends values at regular intervals.
	// Always defer ticker.Stop() to release resources.
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.sweep(10 * time.Minute)
		}
	}
}

// sweep drops buckets idle for longer than idle. A bucket idle that long
// has refilled completely, so dropping it loses nothing.
func (rl *RateLimiter) sweep(idle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	removed := 0
	for key, b := range rl.buckets {
		if now.Sub(b.lastRefill) > idle {
			delete(rl.buckets, key)
			removed++
		}
	}
	return removed
}

// formatFloat converts a float to a string for headers.
func formatFloat(f float64) string {
	return fmt.Sprintf("%.0f", f)
}
