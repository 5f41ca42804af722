package middleware

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v3"
	"golang.org/x/time/rate"
)

// RateLimitConfig defines the limit for a specific route or group.
type RateLimitConfig struct {
	Max    int                      // Requests allowed per window (also the burst)
	Window time.Duration            // Time for the bucket to refill completely
	KeyFn  func(c fiber.Ctx) string // Returns the key to rate limit on
}

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is an in-memory token bucket per key. It throttles request
// bursts and is unrelated to the daily download quota.
type RateLimiter struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
	config  RateLimitConfig
	every   rate.Limit
	idleTTL time.Duration
}

// NewRateLimiter creates a rate limiter with the given config.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.Max < 1 {
		cfg.Max = 1
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.KeyFn == nil {
		cfg.KeyFn = KeyByIP
	}
	return &RateLimiter{
		entries: make(map[string]*limiterEntry),
		config:  cfg,
		every:   rate.Every(cfg.Window / time.Duration(cfg.Max)),
		idleTTL: 2 * cfg.Window,
	}
}

func (rl *RateLimiter) limiter(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if e, ok := rl.entries[key]; ok {
		e.lastSeen = now
		return e.lim
	}
	lim := rate.NewLimiter(rl.every, rl.config.Max)
	rl.entries[key] = &limiterEntry{lim: lim, lastSeen: now}
	return lim
}

// Handler returns a Fiber middleware handler that enforces the rate limit.
func (rl *RateLimiter) Handler() fiber.Handler {
	return func(c fiber.Ctx) error {
		now := time.Now()
		lim := rl.limiter(rl.config.KeyFn(c), now)

		allowed := lim.AllowN(now, 1)
		tokens := lim.TokensAt(now)
		remaining := int(math.Floor(tokens))
		refill := time.Duration(float64(time.Second) / float64(rl.every))
		resetAt := now.Add(time.Duration((1 - (tokens - math.Floor(tokens))) * float64(refill)))

		setRateLimitHeaders(c, rl.config.Max, remaining, resetAt)

		if !allowed {
			retryAfter := int(math.Ceil(time.Until(resetAt).Seconds()))
			retryAfter = max(retryAfter, 1)
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfter))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": fiber.Map{
					"code":       "RATE_LIMITED",
					"message":    fmt.Sprintf("Too many requests. Try again in %d seconds.", retryAfter),
					"retryAfter": retryAfter,
				},
			})
		}

		return c.Next()
	}
}

// Allow checks if a request with the given key is allowed (for testing).
func (rl *RateLimiter) Allow(key string) bool {
	now := time.Now()
	return rl.limiter(key, now).AllowN(now, 1)
}

// Cleanup drops limiters idle for longer than two windows.
func (rl *RateLimiter) Cleanup() {
	cutoff := time.Now().Add(-rl.idleTTL)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, e := range rl.entries {
		if e.lastSeen.Before(cutoff) {
			delete(rl.entries, key)
		}
	}
}

// StartCleanup runs Cleanup every window until ctx ends.
func (rl *RateLimiter) StartCleanup(ctx context.Context) {
	ticker := time.NewTicker(rl.config.Window)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.Cleanup()
			}
		}
	}()
}

func setRateLimitHeaders(c fiber.Ctx, limit, remaining int, resetAt time.Time) {
	c.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	c.Set("X-RateLimit-Remaining", strconv.Itoa(max(remaining, 0)))
	c.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
}

// SetQuotaHeaders reports the daily download quota in the same headers.
func SetQuotaHeaders(c fiber.Ctx, limit, remaining int64, resetAt time.Time) {
	setRateLimitHeaders(c, int(limit), int(remaining), resetAt)
}

// KeyByIP returns the client IP as the rate limit key.
func KeyByIP(c fiber.Ctx) string {
	return "ip:" + RealIP(c)
}

// NewVideoInfoRateLimiter: perMinute req/min per IP
func NewVideoInfoRateLimiter(perMinute int) *RateLimiter {
	return NewRateLimiter(RateLimitConfig{
		Max:    perMinute,
		Window: time.Minute,
		KeyFn:  KeyByIP,
	})
}
