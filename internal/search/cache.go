package search

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/motheroflaunch/backend/internal/cache"
	"github.com/motheroflaunch/backend/internal/logger"
	"github.com/motheroflaunch/backend/internal/metrics"
	"github.com/motheroflaunch/backend/internal/models"
	"go.uber.org/zap"
)

const generationKey = "search:gen"

// CachedSearcher caches search results in Redis. Every index write bumps a
// generation counter that is part of the cache key, so stale pages are
// never served after a moderation change.
type CachedSearcher struct {
	next  Searcher
	redis *cache.RedisClient
	ttl   time.Duration
}

// NewCachedSearcher wraps next with a Redis result cache
func NewCachedSearcher(next Searcher, rc *cache.RedisClient, ttl time.Duration) *CachedSearcher {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedSearcher{next: next, redis: rc, ttl: ttl}
}

func (c *CachedSearcher) cacheKey(ctx context.Context, q Query) string {
	gen, err := c.redis.Get(ctx, generationKey)
	if err != nil {
		gen = "0"
	}
	data, _ := json.Marshal(q)
	return fmt.Sprintf("search:%s:%x", gen, md5.Sum(data))
}

// Search implements Searcher
func (c *CachedSearcher) Search(ctx context.Context, q Query) (*Result, error) {
	q = q.Normalize()
	key := c.cacheKey(ctx, q)

	cached, err := c.redis.Get(ctx, key)
	if err == nil {
		var result Result
		if err := json.Unmarshal([]byte(cached), &result); err == nil {
			metrics.Get().SearchCacheTotal.WithLabelValues("hit").Inc()
			return &result, nil
		}
	} else if !errors.Is(err, cache.ErrMiss) {
		logger.Log.Warn("Search cache read failed", zap.Error(err))
	}
	metrics.Get().SearchCacheTotal.WithLabelValues("miss").Inc()

	result, err := c.next.Search(ctx, q)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(result); err == nil {
		if err := c.redis.SetEx(ctx, key, data, c.ttl); err != nil {
			logger.Log.Warn("Search cache write failed", zap.Error(err))
		}
	}
	return result, nil
}

func (c *CachedSearcher) invalidate(ctx context.Context) {
	if _, err := c.redis.IncrBy(ctx, generationKey, 1); err != nil {
		logger.Log.Warn("Search cache invalidation failed", zap.Error(err))
	}
}

// IndexTool implements Searcher
func (c *CachedSearcher) IndexTool(ctx context.Context, tool models.Tool) error {
	defer c.invalidate(ctx)
	return c.next.IndexTool(ctx, tool)
}

// IndexBlog implements Searcher
func (c *CachedSearcher) IndexBlog(ctx context.Context, blog models.Blog) error {
	defer c.invalidate(ctx)
	return c.next.IndexBlog(ctx, blog)
}

// DeleteTool implements Searcher
func (c *CachedSearcher) DeleteTool(ctx context.Context, id string) error {
	defer c.invalidate(ctx)
	return c.next.DeleteTool(ctx, id)
}

// DeleteBlog implements Searcher
func (c *CachedSearcher) DeleteBlog(ctx context.Context, id string) error {
	defer c.invalidate(ctx)
	return c.next.DeleteBlog(ctx, id)
}

var _ Searcher = (*CachedSearcher)(nil)
