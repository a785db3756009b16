// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements the in-memory token-bucket limiter. The router runs
// two of them: a global one keyed by user (or IP), and a stricter one keyed
// by user and route that only guards the routes calling the AI services,
// since every companion message and face scan costs an upstream call.
//
// Buckets are process-local. Idempotent replays (flagged by
// IdempotencyValidator) never spend tokens.
package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// keyFunc maps a request to its bucket.
type keyFunc func(*gin.Context) string

// KeyByUserOrIP keys by "user:<id>" when Identity stored one, else by
// "ip:<addr>".
func KeyByUserOrIP() keyFunc {
	return func(c *gin.Context) string {
		if uid := c.GetString("userID"); uid != "" {
			return "user:" + uid
		}
		return "ip:" + c.ClientIP()
	}
}

// KeyByUserAndRoute keys buckets per identity and matched route, so a
// limiter installed on upstream-backed routes (companion messages, face
// scans) budgets each route separately from the global limiter.
func KeyByUserAndRoute() keyFunc {
	base := KeyByUserOrIP()
	return func(c *gin.Context) string {
		return base(c) + "|" + c.Request.Method + " " + routeOf(c)
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter holds one token bucket per key. Idle buckets are evicted
// every gcEvery lookups. Safe for concurrent use.
type RateLimiter struct {
	rps   rate.Limit
	burst int
	keyFn keyFunc

	mu       sync.Mutex
	visitors map[string]*visitor
	ttl      time.Duration
	lookups  uint64
}

const gcEvery = 5000

// NewRateLimiter builds a limiter refilling rps tokens per second up to
// burst (coerced to >= 1).
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	return &RateLimiter{
		rps:      rate.Limit(rps),
		burst:    max(burst, 1),
		keyFn:    keyFn,
		visitors: make(map[string]*visitor),
		ttl:      10 * time.Minute,
	}
}

// getVisitor returns the bucket for key. Eviction runs before the lookup so
// a stale bucket is dropped even when it is the one requested.
func (rl *RateLimiter) getVisitor(key string) *rate.Limiter {
	now := time.Now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.lookups++; rl.lookups >= gcEvery {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) >= rl.ttl {
				delete(rl.visitors, k)
			}
		}
		rl.lookups = 0
	}

	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter
}

// IsRateBypass reports whether IdempotencyValidator flagged the request as
// a replay.
func IsRateBypass(c *gin.Context) bool {
	b, _ := c.Value(ctxKeyRateBypass).(bool)
	return b
}

// Handler enforces the limit on every request. A rejected request gets 429
// with the error envelope and a Retry-After of whole seconds until the
// bucket refills.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}
		res := rl.getVisitor(rl.keyFn(c)).Reserve()
		delay := res.Delay()
		if res.OK() && delay == 0 {
			c.Next()
			return
		}
		res.Cancel()

		httpRateLimited.WithLabelValues(metricPath(c)).Inc()
		c.Header("Retry-After", retryAfter(delay, res.OK()))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": RequestIDFrom(c),
			"code":       "too_many_requests",
			"message":    "rate limit exceeded",
		})
	}
}

// Only applies the limiter to the given method on the listed routes
// (matched Gin patterns) and passes everything else through.
func (rl *RateLimiter) Only(method string, routes ...string) gin.HandlerFunc {
	set := make(map[string]struct{}, len(routes))
	for _, r := range routes {
		set[r] = struct{}{}
	}
	limit := rl.Handler()
	return func(c *gin.Context) {
		if _, ok := set[c.FullPath()]; ok && c.Request.Method == method {
			limit(c)
			return
		}
		c.Next()
	}
}

// retryAfter rounds delay up to whole seconds, at least 1. A reservation
// that can never succeed (rps 0) still answers 1.
func retryAfter(delay time.Duration, ok bool) string {
	if !ok || delay == rate.InfDuration {
		return "1"
	}
	return strconv.Itoa(max(1, int(math.Ceil(delay.Seconds()))))
}
