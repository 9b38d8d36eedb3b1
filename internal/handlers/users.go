package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/motheroflaunch/backend/internal/models"
	"github.com/motheroflaunch/backend/internal/repository"
	"github.com/motheroflaunch/backend/internal/util"
)

// GetMe returns the authenticated user's account
// GET /api/v1/me
func (h *Handlers) GetMe(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	isPremium, err := h.premium.IsPremium(c.Request.Context(), user.ID, h.now())
	if err != nil {
		util.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":       user,
		"is_premium": isPremium,
	})
}

type updateProfileRequest struct {
	Username    *string `json:"username"`
	DisplayName *string `json:"display_name"`
	Bio         *string `json:"bio"`
	Website     *string `json:"website"`
	AvatarURL   *string `json:"avatar_url"`
}

// UpdateMe updates the authenticated user's profile. Only fields present in
// the body change.
// PUT /api/v1/me
func (h *Handlers) UpdateMe(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, "invalid request body")
		return
	}

	updates := make(map[string]interface{})
	if req.Username != nil {
		username := strings.ToLower(strings.TrimSpace(*req.Username))
		if !util.IsValidUsername(username) {
			util.RespondValidationError(c, "username", "must be 3-30 characters of a-z, 0-9 or _")
			return
		}
		taken, err := h.users.UsernameTaken(c.Request.Context(), username, user.ID)
		if err != nil {
			util.RespondWithError(c, err)
			return
		}
		if taken {
			util.RespondValidationError(c, "username", "is already taken")
			return
		}
		updates["username"] = username
	}
	if req.DisplayName != nil {
		if msg, ok := util.ValidateLength(*req.DisplayName, 1, 60); !ok {
			util.RespondValidationError(c, "display_name", msg)
			return
		}
		updates["display_name"] = strings.TrimSpace(*req.DisplayName)
	}
	if req.Bio != nil {
		if msg, ok := util.ValidateLength(*req.Bio, 0, 500); !ok {
			util.RespondValidationError(c, "bio", msg)
			return
		}
		updates["bio"] = strings.TrimSpace(*req.Bio)
	}
	if req.Website != nil {
		website := strings.TrimSpace(*req.Website)
		if website != "" && !util.IsValidHTTPURL(website) {
			util.RespondValidationError(c, "website", "must be an http(s) URL")
			return
		}
		updates["website"] = website
	}
	if req.AvatarURL != nil {
		avatar := strings.TrimSpace(*req.AvatarURL)
		if avatar != "" && !util.IsValidHTTPURL(avatar) {
			util.RespondValidationError(c, "avatar_url", "must be an http(s) URL")
			return
		}
		updates["avatar_url"] = avatar
	}

	if len(updates) == 0 {
		util.RespondBadRequest(c, "no fields to update")
		return
	}

	updated, err := h.users.UpdateProfile(c.Request.Context(), user.ID, updates)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": updated})
}

// GetMyTools lists the caller's tools in every state
// GET /api/v1/me/tools
func (h *Handlers) GetMyTools(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	p := util.ParsePagination(c)
	tools, total, err := h.tools.ListTools(c.Request.Context(), repository.ToolFilter{
		OwnerID: user.ID,
		Status:  c.Query("status"),
		Limit:   p.Limit,
		Offset:  p.Offset,
	})
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	util.RespondPage(c, tools, total, p)
}

// GetMyBlogs lists the caller's posts including drafts
// GET /api/v1/me/blogs
func (h *Handlers) GetMyBlogs(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	p := util.ParsePagination(c)
	blogs, total, err := h.blogs.ListBlogs(c.Request.Context(), repository.BlogFilter{
		AuthorID: user.ID,
		Status:   c.Query("status"),
		Limit:    p.Limit,
		Offset:   p.Offset,
	})
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	util.RespondPage(c, blogs, total, p)
}

// GetMyPremium returns the caller's premium status and grant history
// GET /api/v1/me/premium
func (h *Handlers) GetMyPremium(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	status, err := h.premium.Status(c.Request.Context(), user.ID)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// GetPublicProfile returns a user's public profile with their approved tools
// and published posts
// GET /api/v1/users/:username
func (h *Handlers) GetPublicProfile(c *gin.Context) {
	ctx := c.Request.Context()
	user, err := h.users.GetUserByUsername(ctx, strings.ToLower(c.Param("username")))
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	if user.IsBanned {
		util.RespondNotFound(c, "user")
		return
	}

	tools, _, err := h.tools.ListTools(ctx, repository.ToolFilter{
		OwnerID: user.ID,
		Status:  models.ToolApproved,
		Limit:   util.MaxLimit,
	})
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	blogs, _, err := h.blogs.ListBlogs(ctx, repository.BlogFilter{
		AuthorID: user.ID,
		Status:   models.BlogPublished,
		Limit:    util.MaxLimit,
	})
	if err != nil {
		util.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":  user.Public(),
		"tools": nonNil(tools),
		"blogs": nonNil(blogs),
	})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
