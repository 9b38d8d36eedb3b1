package handlers

import (
	"context"
	"time"

	"github.com/motheroflaunch/backend/internal/cache"
	"github.com/motheroflaunch/backend/internal/email"
	"github.com/motheroflaunch/backend/internal/launch"
	"github.com/motheroflaunch/backend/internal/live"
	"github.com/motheroflaunch/backend/internal/logger"
	"github.com/motheroflaunch/backend/internal/middleware"
	"github.com/motheroflaunch/backend/internal/models"
	"github.com/motheroflaunch/backend/internal/premium"
	"github.com/motheroflaunch/backend/internal/repository"
	"github.com/motheroflaunch/backend/internal/search"
	"github.com/motheroflaunch/backend/internal/storage"
	"github.com/motheroflaunch/backend/internal/views"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Handlers contains all HTTP handlers for the API
type Handlers struct {
	db       *gorm.DB
	users    repository.UserRepository
	tools    repository.ToolRepository
	blogs    repository.BlogRepository
	launches *launch.Service
	premium  *premium.Service

	search   search.Searcher
	uploader storage.ImageUploader
	mailer   email.Mailer
	redis    *cache.RedisClient
	live     *live.Handler
	counter  *views.Counter

	apiLimit  middleware.RateLimitConfig
	voteLimit middleware.RateLimitConfig

	now func() time.Time
}

// NewHandlers creates a new handlers instance. Search falls back to the
// database and email is dropped until the real clients are set.
func NewHandlers(db *gorm.DB, launches *launch.Service, premiumSvc *premium.Service) *Handlers {
	h := &Handlers{
		db:       db,
		users:    repository.NewUserRepository(db),
		tools:    repository.NewToolRepository(db),
		blogs:    repository.NewBlogRepository(db),
		launches: launches,
		premium:  premiumSvc,
		search:   search.NewDBSearcher(db),
		mailer:   email.NoopMailer{},
		now:      time.Now,

		apiLimit:  middleware.DefaultRateLimitConfig(),
		voteLimit: middleware.VoteRateLimitConfig(),
	}
	h.counter = views.NewCounter(nil, h.tools, h.blogs)
	return h
}

// SetSearcher sets the search backend
func (h *Handlers) SetSearcher(s search.Searcher) {
	h.search = s
}

// SetUploader sets the object storage used for logos and covers
func (h *Handlers) SetUploader(u storage.ImageUploader) {
	h.uploader = u
}

// SetMailer sets the outbound email sender
func (h *Handlers) SetMailer(m email.Mailer) {
	h.mailer = m
}

// SetRedis enables buffered view counters
func (h *Handlers) SetRedis(rc *cache.RedisClient) {
	h.redis = rc
	h.counter = views.NewCounter(rc, h.tools, h.blogs)
}

// ViewCounter returns the counter the view flush job drains
func (h *Handlers) ViewCounter() *views.Counter {
	return h.counter
}

// SetLiveHandler sets the websocket handler for the live leaderboard
func (h *Handlers) SetLiveHandler(lh *live.Handler) {
	h.live = lh
}

// SetRateLimits overrides the general and vote request budgets. Zero values
// keep the defaults.
func (h *Handlers) SetRateLimits(requests, votes int, window time.Duration) {
	if requests > 0 {
		h.apiLimit.Limit = requests
	}
	if votes > 0 {
		h.voteLimit.Limit = votes
	}
	if window > 0 {
		h.apiLimit.Window = window
		h.voteLimit.Window = window
	}
}

// Users exposes the user repository so the auth middleware shares it
func (h *Handlers) Users() repository.UserRepository {
	return h.users
}

func (h *Handlers) indexTool(ctx context.Context, tool *models.Tool) {
	if err := h.search.IndexTool(ctx, *tool); err != nil {
		logger.Log.Warn("Failed to index tool", zap.Error(err), logger.WithToolID(tool.ID))
	}
}

func (h *Handlers) unindexTool(ctx context.Context, id string) {
	if err := h.search.DeleteTool(ctx, id); err != nil {
		logger.Log.Warn("Failed to remove tool from index", zap.Error(err), logger.WithToolID(id))
	}
}

func (h *Handlers) indexBlog(ctx context.Context, blog *models.Blog) {
	if err := h.search.IndexBlog(ctx, *blog); err != nil {
		logger.Log.Warn("Failed to index blog", zap.Error(err), zap.String("blog_id", blog.ID))
	}
}

func (h *Handlers) unindexBlog(ctx context.Context, id string) {
	if err := h.search.DeleteBlog(ctx, id); err != nil {
		logger.Log.Warn("Failed to remove blog from index", zap.Error(err), zap.String("blog_id", id))
	}
}
