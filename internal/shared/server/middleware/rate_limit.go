package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"workforce-backend/internal/shared/telemetry"
)

// Rate limit groups. Credential endpoints are keyed by client IP only, so a
// guessed email cannot be used to drain another caller's bucket.
const (
	RateGroupDefault = "DEFAULT"
	RateGroupAuth    = "AUTH"
	RateGroupUpload  = "UPLOAD"
)

// idleBucketTTL is how long an untouched bucket is kept. A bucket idle that
// long has refilled under every rule in use.
const idleBucketTTL = 10 * time.Minute

// RateLimitRule is a token bucket: Rate tokens per second up to Burst.
type RateLimitRule struct {
	Rate  float64
	Burst int
}

type RateLimitConfig struct {
	// Rules maps group to limit. A group without a rule is not limited.
	Rules        map[string]RateLimitRule
	DefaultGroup string
	GroupFor     func(*gin.Context) string
	Limiter      *RateLimiter
}

// RateLimiter holds token buckets keyed by caller and group.
type RateLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*rateBucket
	now       func() time.Time
	lastPrune time.Time
}

type rateBucket struct {
	tokens float64
	seen   time.Time
}

func NewRateLimiter(now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{buckets: make(map[string]*rateBucket), now: now}
}

// RateLimit rejects requests over their group's budget with 429.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.Limiter == nil {
		cfg.Limiter = NewRateLimiter(nil)
	}
	if cfg.DefaultGroup == "" {
		cfg.DefaultGroup = RateGroupDefault
	}
	return func(c *gin.Context) {
		group := cfg.DefaultGroup
		if cfg.GroupFor != nil {
			if g := strings.TrimSpace(cfg.GroupFor(c)); g != "" {
				group = g
			}
		}
		rule, ok := cfg.Rules[group]
		if !ok {
			c.Next()
			return
		}
		wait, allowed := cfg.Limiter.Take(callerKey(c, group)+"|"+group, rule)
		if allowed {
			c.Next()
			return
		}
		rejectRateLimited(c, group, wait)
	}
}

func callerKey(c *gin.Context, group string) string {
	if group != RateGroupAuth {
		if id := strings.TrimSpace(UserIDFromContext(c)); id != "" {
			return "user:" + id
		}
	}
	return "ip:" + c.ClientIP()
}

func rejectRateLimited(c *gin.Context, group string, wait time.Duration) {
	waitMs := wait.Milliseconds()
	if waitMs <= 0 {
		waitMs = 1000
	}
	seconds := (waitMs + 999) / 1000
	telemetry.Warn("http.rate_limited", map[string]any{
		"group":      group,
		"route":      c.FullPath(),
		"client_ip":  c.ClientIP(),
		"request_id": RequestIDFromContext(c),
		"retry_ms":   waitMs,
	})
	c.Header("Retry-After", strconv.FormatInt(seconds, 10))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"success":      false,
		"message":      "Too many requests, please try again later",
		"error":        "rate_limited",
		"retryAfterMs": waitMs,
	})
}

// Take spends one token from key's bucket. When none is left it reports how
// long until the next token. Rules with no rate or burst never limit.
func (l *RateLimiter) Take(key string, rule RateLimitRule) (time.Duration, bool) {
	if l == nil || rule.Rate <= 0 || rule.Burst <= 0 {
		return 0, true
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pruneLocked(now)

	b, ok := l.buckets[key]
	if !ok {
		b = &rateBucket{tokens: float64(rule.Burst), seen: now}
		l.buckets[key] = b
	}
	if elapsed := now.Sub(b.seen).Seconds(); elapsed > 0 {
		b.tokens = math.Min(float64(rule.Burst), b.tokens+elapsed*rule.Rate)
	}
	b.seen = now
	if b.tokens >= 1 {
		b.tokens--
		return 0, true
	}
	wait := time.Duration(math.Ceil((1-b.tokens)/rule.Rate*1000)) * time.Millisecond
	return wait, false
}

// Len reports the number of live buckets.
func (l *RateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *RateLimiter) pruneLocked(now time.Time) {
	if now.Sub(l.lastPrune) < idleBucketTTL {
		return
	}
	for key, b := range l.buckets {
		if now.Sub(b.seen) >= idleBucketTTL {
			delete(l.buckets, key)
		}
	}
	l.lastPrune = now
}

// DefaultRateLimitGroup classifies routes into the AUTH, UPLOAD and DEFAULT groups.
func DefaultRateLimitGroup(c *gin.Context) string {
	path := c.FullPath()
	switch {
	case strings.HasSuffix(path, "/auth/login"),
		strings.HasSuffix(path, "/auth/signup"),
		strings.HasSuffix(path, "/auth/verify/resend"),
		strings.HasSuffix(path, "/company/register"):
		return RateGroupAuth
	case c.Request.Method == http.MethodPost && strings.HasSuffix(path, "/documents"):
		return RateGroupUpload
	default:
		return RateGroupDefault
	}
}

// DefaultRateLimitRules returns the production limits.
func DefaultRateLimitRules() map[string]RateLimitRule {
	return map[string]RateLimitRule{
		RateGroupDefault: {Rate: 10, Burst: 40},
		RateGroupAuth:    {Rate: 0.2, Burst: 10},
		RateGroupUpload:  {Rate: 0.5, Burst: 10},
	}
}
