package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/motheroflaunch/backend/internal/cache"
	"github.com/motheroflaunch/backend/internal/middleware"
)

// RegisterRoutes mounts the API under /api/v1. rc may be nil, in which case
// rate limits are tracked per process.
func (h *Handlers) RegisterRoutes(r *gin.Engine, auth *middleware.Authenticator, rc *cache.RedisClient) {
	r.GET("/health", h.Health)

	api := r.Group("/api/v1")
	api.Use(middleware.RateLimit(rc, h.apiLimit))

	optional := auth.OptionalAuth()
	required := auth.RequireAuth()
	votes := middleware.RateLimit(rc, h.voteLimit)
	uploads := middleware.RateLimit(rc, middleware.UploadRateLimitConfig())

	api.GET("/search", h.Search)
	api.GET("/users/:username", h.GetPublicProfile)

	me := api.Group("/me", required)
	{
		me.GET("", h.GetMe)
		me.PUT("", h.UpdateMe)
		me.GET("/tools", h.GetMyTools)
		me.GET("/blogs", h.GetMyBlogs)
		me.GET("/premium", h.GetMyPremium)
	}

	tools := api.Group("/tools")
	{
		tools.GET("", h.ListTools)
		tools.GET("/:slug", optional, h.GetTool)
		tools.POST("", required, h.CreateTool)
		tools.PUT("/:id", required, h.UpdateTool)
		tools.DELETE("/:id", required, h.DeleteTool)
		tools.POST("/:id/logo", required, uploads, h.UploadToolLogo)
		tools.POST("/:id/launch", required, h.BookLaunch)
		tools.DELETE("/:id/launch", required, h.CancelLaunch)
		tools.POST("/:id/vote", required, votes, h.CastVote)
		tools.DELETE("/:id/vote", required, votes, h.RetractVote)
	}

	blogs := api.Group("/blogs")
	{
		blogs.GET("", h.ListBlogs)
		blogs.GET("/:slug", optional, h.GetBlog)
		blogs.POST("", required, h.CreateBlog)
		blogs.PUT("/:id", required, h.UpdateBlog)
		blogs.DELETE("/:id", required, h.DeleteBlog)
		blogs.POST("/:id/submit", required, h.SubmitBlog)
		blogs.POST("/:id/cover", required, uploads, h.UploadBlogCover)
		blogs.POST("/:id/like", required, h.LikeBlog)
		blogs.DELETE("/:id/like", required, h.UnlikeBlog)
	}

	launches := api.Group("/launches")
	{
		launches.GET("/today", optional, h.GetTodayLaunches)
		launches.GET("/slots", h.GetLaunchSlots)
		launches.GET("/live", h.StreamLaunches)
		launches.GET("/:date/results", h.GetLaunchResults)
	}

	admin := api.Group("/admin", required, middleware.RequireAdmin())
	{
		admin.GET("/stats", h.GetAdminStats)

		admin.GET("/tools/pending", h.GetPendingTools)
		admin.POST("/tools/:id/approve", h.ApproveTool)
		admin.POST("/tools/:id/reject", h.RejectTool)

		admin.GET("/blogs/pending", h.GetPendingBlogs)
		admin.POST("/blogs/:id/publish", h.PublishBlog)
		admin.POST("/blogs/:id/reject", h.RejectBlog)
		admin.POST("/blogs/:id/feature", h.FeatureBlog)

		admin.GET("/users", h.ListUsers)
		admin.POST("/users/:id/ban", h.BanUser)
		admin.POST("/users/:id/unban", h.UnbanUser)
		admin.POST("/users/:id/role", h.SetUserRole)
		admin.POST("/users/:id/premium", h.GrantPremium)
		admin.DELETE("/users/:id/premium", h.RevokePremium)

		admin.POST("/launches/:date/finalize", h.FinalizeLaunchDay)
		admin.POST("/launches/:date/recount", h.RecountLaunchDay)
		admin.POST("/launches/:date/backup", h.BackupLaunchDay)
		admin.GET("/launches/:date/backups", h.ListLaunchBackups)
		admin.POST("/backups/:id/recover", h.RecoverLaunchBackup)
	}
}
