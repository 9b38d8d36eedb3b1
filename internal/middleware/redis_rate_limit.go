package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/motheroflaunch/backend/internal/cache"
	"github.com/motheroflaunch/backend/internal/logger"
	"go.uber.org/zap"
)

// RateLimit returns a distributed fixed-window limiter backed by Redis, or
// the in-process limiter when rc is nil
func RateLimit(rc *cache.RedisClient, cfg RateLimitConfig) gin.HandlerFunc {
	if rc == nil {
		return NewRateLimiter(cfg).Middleware()
	}

	return func(c *gin.Context) {
		key := "rate_limit:" + cfg.Scope + ":" + cfg.key(c)
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		count, err := rc.IncrWithin(ctx, key, cfg.Window)
		if err != nil {
			// Fail open: a Redis outage should not take the API down with it
			logger.Log.Warn("Rate limit check failed, allowing request",
				zap.String("scope", cfg.Scope),
				zap.Error(err),
			)
			c.Next()
			return
		}

		if count > int64(cfg.Limit) {
			retry := int(cfg.Window.Seconds())
			if ttl, err := rc.TTL(ctx, key); err == nil && ttl > 0 {
				retry = int(ttl.Seconds()) + 1
			}
			rejectRateLimited(c, cfg, retry)
			return
		}
		c.Next()
	}
}
