package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/motheroflaunch/backend/internal/email"
	"github.com/motheroflaunch/backend/internal/errors"
	"github.com/motheroflaunch/backend/internal/models"
	"github.com/motheroflaunch/backend/internal/repository"
	"github.com/motheroflaunch/backend/internal/util"
)

// GetAdminStats returns dashboard counters
// GET /api/v1/admin/stats
func (h *Handlers) GetAdminStats(c *gin.Context) {
	ctx := c.Request.Context()

	users, err := h.users.GetTotalUserCount(ctx)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	tools, err := h.tools.CountByStatus(ctx)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	blogs, err := h.blogs.CountByStatus(ctx)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	activePremium, err := h.premium.CountActive(ctx, h.now())
	if err != nil {
		util.RespondWithError(c, err)
		return
	}

	today := h.launches.Today()
	var votesToday, launchesToday int64
	if err := h.db.WithContext(ctx).Model(&models.Vote{}).Where("date = ?", today).Count(&votesToday).Error; err != nil {
		util.RespondWithError(c, err)
		return
	}
	if err := h.db.WithContext(ctx).Model(&models.LaunchBooking{}).
		Where("date = ? AND status = ?", today, models.BookingActive).Count(&launchesToday).Error; err != nil {
		util.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"users":          users,
		"tools":          tools,
		"blogs":          blogs,
		"active_premium": activePremium,
		"today":          today,
		"votes_today":    votesToday,
		"launches_today": launchesToday,
	})
}

// GetPendingTools lists the tool moderation queue, oldest first
// GET /api/v1/admin/tools/pending
func (h *Handlers) GetPendingTools(c *gin.Context) {
	p := util.ParsePagination(c)
	tools, total, err := h.tools.ListTools(c.Request.Context(), repository.ToolFilter{
		Status: models.ToolPending,
		Limit:  p.Limit,
		Offset: p.Offset,
	})
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	util.RespondPage(c, tools, total, p)
}

type moderationRequest struct {
	Reason string `json:"reason"`
}

// ApproveTool publishes a tool to the catalog and notifies its owner
// POST /api/v1/admin/tools/:id/approve
func (h *Handlers) ApproveTool(c *gin.Context) {
	ctx := c.Request.Context()
	tool, err := h.tools.UpdateTool(ctx, c.Param("id"), map[string]interface{}{
		"status":           models.ToolApproved,
		"rejection_reason": "",
	})
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	h.indexTool(ctx, tool)

	if tool.Owner != nil {
		to, name, slug := tool.Owner.Email, tool.Name, tool.Slug
		email.SendAsync("tool_approved", func(ctx context.Context) error {
			return h.mailer.SendToolApproved(ctx, to, name, slug)
		})
	}
	c.JSON(http.StatusOK, gin.H{"tool": tool})
}

// RejectTool rejects a tool with a reason. A rejected tool loses any
// future launch booking.
// POST /api/v1/admin/tools/:id/reject
func (h *Handlers) RejectTool(c *gin.Context) {
	var req moderationRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Reason) == "" {
		util.RespondValidationError(c, "reason", "is required")
		return
	}

	ctx := c.Request.Context()
	id := c.Param("id")
	if err := h.launches.ReleaseTool(ctx, id); err != nil {
		util.RespondWithError(c, err)
		return
	}
	tool, err := h.tools.UpdateTool(ctx, id, map[string]interface{}{
		"status":           models.ToolRejected,
		"rejection_reason": strings.TrimSpace(req.Reason),
	})
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	h.unindexTool(ctx, tool.ID)

	if tool.Owner != nil {
		to, name, reason := tool.Owner.Email, tool.Name, tool.RejectionReason
		email.SendAsync("tool_rejected", func(ctx context.Context) error {
			return h.mailer.SendToolRejected(ctx, to, name, reason)
		})
	}
	c.JSON(http.StatusOK, gin.H{"tool": tool})
}

// GetPendingBlogs lists posts awaiting review
// GET /api/v1/admin/blogs/pending
func (h *Handlers) GetPendingBlogs(c *gin.Context) {
	p := util.ParsePagination(c)
	blogs, total, err := h.blogs.ListBlogs(c.Request.Context(), repository.BlogFilter{
		Status: models.BlogPending,
		Limit:  p.Limit,
		Offset: p.Offset,
	})
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	util.RespondPage(c, blogs, total, p)
}

// PublishBlog publishes a post. The first publication time is kept on
// re-publish.
// POST /api/v1/admin/blogs/:id/publish
func (h *Handlers) PublishBlog(c *gin.Context) {
	ctx := c.Request.Context()
	blog, err := h.blogs.GetBlog(ctx, c.Param("id"))
	if err != nil {
		util.RespondWithError(c, err)
		return
	}

	updates := map[string]interface{}{
		"status":           models.BlogPublished,
		"rejection_reason": "",
	}
	if blog.PublishedAt == nil {
		updates["published_at"] = h.now().UTC()
	}
	updated, err := h.blogs.UpdateBlog(ctx, blog.ID, updates)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	h.indexBlog(ctx, updated)

	if updated.Author != nil {
		to, title, slug := updated.Author.Email, updated.Title, updated.Slug
		email.SendAsync("blog_published", func(ctx context.Context) error {
			return h.mailer.SendBlogPublished(ctx, to, title, slug)
		})
	}
	c.JSON(http.StatusOK, gin.H{"blog": updated})
}

// RejectBlog rejects a post with a reason
// POST /api/v1/admin/blogs/:id/reject
func (h *Handlers) RejectBlog(c *gin.Context) {
	var req moderationRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Reason) == "" {
		util.RespondValidationError(c, "reason", "is required")
		return
	}

	ctx := c.Request.Context()
	updated, err := h.blogs.UpdateBlog(ctx, c.Param("id"), map[string]interface{}{
		"status":           models.BlogRejected,
		"rejection_reason": strings.TrimSpace(req.Reason),
		"is_featured":      false,
	})
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	h.unindexBlog(ctx, updated.ID)
	c.JSON(http.StatusOK, gin.H{"blog": updated})
}

// FeatureBlog sets or clears the featured flag of a published post
// POST /api/v1/admin/blogs/:id/feature
func (h *Handlers) FeatureBlog(c *gin.Context) {
	var req struct {
		Featured *bool `json:"featured"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Featured == nil {
		util.RespondValidationError(c, "featured", "is required")
		return
	}

	ctx := c.Request.Context()
	blog, err := h.blogs.GetBlog(ctx, c.Param("id"))
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	if blog.Status != models.BlogPublished {
		util.RespondWithAPIError(c, errors.Conflict("only published posts can be featured"))
		return
	}
	updated, err := h.blogs.UpdateBlog(ctx, blog.ID, map[string]interface{}{"is_featured": *req.Featured})
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	h.indexBlog(ctx, updated)
	c.JSON(http.StatusOK, gin.H{"blog": updated})
}

// ListUsers lists accounts for moderation
// GET /api/v1/admin/users?q=&role=&banned=true|false
func (h *Handlers) ListUsers(c *gin.Context) {
	p := util.ParsePagination(c)
	filter := repository.UserFilter{
		Query:  strings.TrimSpace(c.Query("q")),
		Role:   c.Query("role"),
		Limit:  p.Limit,
		Offset: p.Offset,
	}
	switch c.Query("banned") {
	case "true":
		banned := true
		filter.Banned = &banned
	case "false":
		banned := false
		filter.Banned = &banned
	}

	users, total, err := h.users.ListUsers(c.Request.Context(), filter)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	util.RespondPage(c, users, total, p)
}

// BanUser blocks an account from authenticated routes
// POST /api/v1/admin/users/:id/ban
func (h *Handlers) BanUser(c *gin.Context) {
	h.setBanned(c, true)
}

// UnbanUser lifts a ban
// POST /api/v1/admin/users/:id/unban
func (h *Handlers) UnbanUser(c *gin.Context) {
	h.setBanned(c, false)
}

func (h *Handlers) setBanned(c *gin.Context, banned bool) {
	admin, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	if admin.ID == c.Param("id") {
		util.RespondForbidden(c, "admins cannot ban themselves")
		return
	}
	user, err := h.users.SetBanned(c.Request.Context(), c.Param("id"), banned)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// SetUserRole changes an account's role
// POST /api/v1/admin/users/:id/role
func (h *Handlers) SetUserRole(c *gin.Context) {
	admin, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	var req struct {
		Role string `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || (req.Role != models.RoleUser && req.Role != models.RoleAdmin) {
		util.RespondValidationError(c, "role", "must be user or admin")
		return
	}
	if admin.ID == c.Param("id") && req.Role != models.RoleAdmin {
		util.RespondForbidden(c, "admins cannot demote themselves")
		return
	}

	user, err := h.users.SetRole(c.Request.Context(), c.Param("id"), req.Role)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// GrantPremium grants or extends premium access
// POST /api/v1/admin/users/:id/premium
func (h *Handlers) GrantPremium(c *gin.Context) {
	var req struct {
		Plan string `json:"plan"`
		Days int    `json:"days"`
		Ref  string `json:"ref"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, "invalid request body")
		return
	}
	if req.Days < 0 {
		util.RespondValidationError(c, "days", "must not be negative")
		return
	}

	ctx := c.Request.Context()
	grant, err := h.premium.Grant(ctx, c.Param("id"), req.Plan, time.Duration(req.Days)*24*time.Hour, "admin", req.Ref)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	status, err := h.premium.Status(ctx, c.Param("id"))
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"grant": grant, "status": status})
}

// RevokePremium cancels the active premium grant
// DELETE /api/v1/admin/users/:id/premium
func (h *Handlers) RevokePremium(c *gin.Context) {
	if err := h.premium.Revoke(c.Request.Context(), c.Param("id")); err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "premium access revoked"})
}

// FinalizeLaunchDay freezes a day's results. ?force=true closes a day that
// has not ended yet.
// POST /api/v1/admin/launches/:date/finalize
func (h *Handlers) FinalizeLaunchDay(c *gin.Context) {
	results, err := h.launches.Finalize(c.Request.Context(), c.Param("date"), c.Query("force") == "true")
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

// RecountLaunchDay rebuilds the day's tallies from the vote rows
// POST /api/v1/admin/launches/:date/recount
func (h *Handlers) RecountLaunchDay(c *gin.Context) {
	summaries, err := h.launches.Recount(c.Request.Context(), c.Param("date"))
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": c.Param("date"), "summaries": nonNil(summaries)})
}

// BackupLaunchDay snapshots the day's votes
// POST /api/v1/admin/launches/:date/backup
func (h *Handlers) BackupLaunchDay(c *gin.Context) {
	admin, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	backup, err := h.launches.Backup(c.Request.Context(), c.Param("date"), admin.ID)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"backup": backup})
}

// ListLaunchBackups lists snapshots of a day, newest first
// GET /api/v1/admin/launches/:date/backups
func (h *Handlers) ListLaunchBackups(c *gin.Context) {
	backups, err := h.launches.ListBackups(c.Request.Context(), c.Param("date"))
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"backups": nonNil(backups)})
}

// RecoverLaunchBackup restores a day from a snapshot
// POST /api/v1/admin/backups/:id/recover
func (h *Handlers) RecoverLaunchBackup(c *gin.Context) {
	result, err := h.launches.Recover(c.Request.Context(), c.Param("id"))
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
