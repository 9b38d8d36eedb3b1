package views

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/motheroflaunch/backend/internal/cache"
	"github.com/motheroflaunch/backend/internal/database/dbtest"
	"github.com/motheroflaunch/backend/internal/models"
	"github.com/motheroflaunch/backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setup(t *testing.T, withRedis bool) (*Counter, *gorm.DB, *miniredis.Miniredis, models.Tool, models.Blog) {
	t.Helper()
	db := dbtest.New(t)

	owner := models.User{AuthSubject: "sub-1", Email: "a@example.com", Username: "alice", DisplayName: "Alice"}
	require.NoError(t, db.Create(&owner).Error)
	tool := models.Tool{OwnerID: owner.ID, Name: "Widget", Slug: "widget", WebsiteURL: "https://widget.dev"}
	require.NoError(t, db.Create(&tool).Error)
	blog := models.Blog{AuthorID: owner.ID, Title: "Hello", Slug: "hello"}
	require.NoError(t, db.Create(&blog).Error)

	var rc *cache.RedisClient
	var mr *miniredis.Miniredis
	if withRedis {
		mr = miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		rc = cache.Wrap(client)
	}

	c := NewCounter(rc, repository.NewToolRepository(db), repository.NewBlogRepository(db))
	return c, db, mr, tool, blog
}

func TestRecordBuffersInRedisUntilFlush(t *testing.T) {
	c, db, mr, tool, blog := setup(t, true)
	ctx := context.Background()

	c.Record(ctx, KindTool, tool.ID)
	c.Record(ctx, KindTool, tool.ID)
	c.Record(ctx, KindBlog, blog.ID)

	got, err := mr.Get(Key(KindTool, tool.ID))
	require.NoError(t, err)
	assert.Equal(t, "2", got)

	var reloaded models.Tool
	require.NoError(t, db.First(&reloaded, "id = ?", tool.ID).Error)
	assert.Zero(t, reloaded.ViewCount)

	applied, err := c.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), applied)

	require.NoError(t, db.First(&reloaded, "id = ?", tool.ID).Error)
	assert.Equal(t, int64(2), reloaded.ViewCount)
	var reloadedBlog models.Blog
	require.NoError(t, db.First(&reloadedBlog, "id = ?", blog.ID).Error)
	assert.Equal(t, int64(1), reloadedBlog.ViewCount)

	assert.False(t, mr.Exists(Key(KindTool, tool.ID)))

	applied, err = c.Flush(ctx)
	require.NoError(t, err)
	assert.Zero(t, applied)
}

func TestRecordWritesThroughWithoutRedis(t *testing.T) {
	c, db, _, tool, _ := setup(t, false)
	ctx := context.Background()

	c.Record(ctx, KindTool, tool.ID)

	var reloaded models.Tool
	require.NoError(t, db.First(&reloaded, "id = ?", tool.ID).Error)
	assert.Equal(t, int64(1), reloaded.ViewCount)

	applied, err := c.Flush(ctx)
	require.NoError(t, err)
	assert.Zero(t, applied)
}

func TestFlushSkipsForeignKeys(t *testing.T) {
	c, _, mr, _, _ := setup(t, true)
	require.NoError(t, mr.Set("views:bogus", "4"))

	applied, err := c.Flush(context.Background())
	require.NoError(t, err)
	assert.Zero(t, applied)
	assert.True(t, mr.Exists("views:bogus"))
}

func TestParseKey(t *testing.T) {
	kind, id, ok := parseKey(Key(KindBlog, "abc"))
	assert.True(t, ok)
	assert.Equal(t, KindBlog, kind)
	assert.Equal(t, "abc", id)

	_, _, ok = parseKey("views:tool:")
	assert.False(t, ok)
	_, _, ok = parseKey("leaderboard:2026-05-01")
	assert.False(t, ok)
}
