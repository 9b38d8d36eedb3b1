package views

import (
	"context"
	"fmt"
	"strings"

	"github.com/motheroflaunch/backend/internal/cache"
	"github.com/motheroflaunch/backend/internal/logger"
	"github.com/motheroflaunch/backend/internal/repository"
	"go.uber.org/zap"
)

// Kinds of counted pages
const (
	KindTool = "tool"
	KindBlog = "blog"
)

const keyPrefix = "views:"

// Key returns the Redis counter key for a page
func Key(kind, id string) string {
	return keyPrefix + kind + ":" + id
}

func parseKey(key string) (kind, id string, ok bool) {
	rest, found := strings.CutPrefix(key, keyPrefix)
	if !found {
		return "", "", false
	}
	kind, id, ok = strings.Cut(rest, ":")
	return kind, id, ok && id != ""
}

// Counter buffers page views in Redis and periodically folds them into the
// database. Without Redis every view is written straight through.
type Counter struct {
	rc    *cache.RedisClient
	tools repository.ToolRepository
	blogs repository.BlogRepository
}

// NewCounter creates a view counter; rc may be nil
func NewCounter(rc *cache.RedisClient, tools repository.ToolRepository, blogs repository.BlogRepository) *Counter {
	return &Counter{rc: rc, tools: tools, blogs: blogs}
}

// Record counts one view. Failures are logged, never returned, since a lost
// view must not fail the page.
func (c *Counter) Record(ctx context.Context, kind, id string) {
	var err error
	if c.rc != nil {
		_, err = c.rc.IncrBy(ctx, Key(kind, id), 1)
	} else {
		err = c.apply(ctx, kind, id, 1)
	}
	if err != nil {
		logger.Log.Warn("Failed to record view", zap.String("kind", kind), zap.String("id", id), zap.Error(err))
	}
}

func (c *Counter) apply(ctx context.Context, kind, id string, n int64) error {
	switch kind {
	case KindTool:
		return c.tools.AddViews(ctx, id, n)
	case KindBlog:
		return c.blogs.AddViews(ctx, id, n)
	}
	return fmt.Errorf("unknown view kind %q", kind)
}

// Flush moves buffered counters into the database and returns how many
// views were applied. Each key is read and deleted atomically so views
// recorded during the flush land in the next one.
func (c *Counter) Flush(ctx context.Context) (int64, error) {
	if c.rc == nil {
		return 0, nil
	}
	keys, err := c.rc.Scan(ctx, keyPrefix+"*")
	if err != nil {
		return 0, err
	}

	var applied int64
	for _, key := range keys {
		kind, id, ok := parseKey(key)
		if !ok {
			continue
		}
		n, err := c.rc.GetDelInt(ctx, key)
		if err != nil {
			return applied, err
		}
		if n <= 0 {
			continue
		}
		if err := c.apply(ctx, kind, id, n); err != nil {
			// Put the views back so the next flush retries them
			if _, rerr := c.rc.IncrBy(ctx, key, n); rerr != nil {
				logger.Log.Error("Lost buffered views", zap.String("key", key), zap.Int64("views", n), zap.Error(rerr))
			}
			return applied, err
		}
		applied += n
	}
	return applied, nil
}
