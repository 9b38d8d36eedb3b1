package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/motheroflaunch/backend/internal/errors"
	"github.com/motheroflaunch/backend/internal/metrics"
	"github.com/motheroflaunch/backend/internal/util"
)

// RateLimitConfig holds configuration for rate limiting
type RateLimitConfig struct {
	// Scope names the limit in keys and metrics
	Scope string
	// Requests per window
	Limit  int
	Window time.Duration
	// KeyFunc identifies the caller; defaults to user ID, then client IP
	KeyFunc func(c *gin.Context) string
}

// DefaultRateLimitConfig returns the general API limit
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{Scope: "api", Limit: 100, Window: time.Minute}
}

// VoteRateLimitConfig returns the stricter limit for vote mutations
func VoteRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{Scope: "vote", Limit: 30, Window: time.Minute}
}

// UploadRateLimitConfig returns limits for upload endpoints
func UploadRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{Scope: "upload", Limit: 20, Window: time.Minute}
}

func callerKey(c *gin.Context) string {
	if userID := c.GetString("user_id"); userID != "" {
		return "user:" + userID
	}
	return "ip:" + c.ClientIP()
}

func (cfg RateLimitConfig) key(c *gin.Context) string {
	if cfg.KeyFunc != nil {
		return cfg.KeyFunc(c)
	}
	return callerKey(c)
}

func rejectRateLimited(c *gin.Context, cfg RateLimitConfig, retryAfter int) {
	metrics.Get().RateLimitExceededTotal.WithLabelValues(cfg.Scope).Inc()
	c.Header("Retry-After", strconv.Itoa(retryAfter))
	c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.Limit))
	c.Header("X-RateLimit-Remaining", "0")
	util.RespondWithAPIError(c, errors.RateLimited(""))
}

// window is one fixed-window counter
type window struct {
	count int
	reset time.Time
}

// RateLimiter is an in-process fixed-window limiter, used when Redis is not
// configured
type RateLimiter struct {
	cfg     RateLimitConfig
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

// NewRateLimiter creates an in-process limiter
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	return &RateLimiter{cfg: cfg, windows: make(map[string]*window), now: time.Now}
}

// Allow counts a request for key and reports whether it is within the limit
// along with the seconds until the window resets
func (rl *RateLimiter) Allow(key string) (bool, int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.windows[key]
	if !ok || !now.Before(w.reset) {
		// Sweep expired windows while we hold the lock
		if len(rl.windows) > 10000 {
			for k, old := range rl.windows {
				if !now.Before(old.reset) {
					delete(rl.windows, k)
				}
			}
		}
		w = &window{reset: now.Add(rl.cfg.Window)}
		rl.windows[key] = w
	}
	w.count++
	retry := int(w.reset.Sub(now).Seconds()) + 1
	return w.count <= rl.cfg.Limit, retry
}

// Middleware returns the gin handler
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if ok, retry := rl.Allow(rl.cfg.Scope + ":" + rl.cfg.key(c)); !ok {
			rejectRateLimited(c, rl.cfg, retry)
			return
		}
		c.Next()
	}
}
