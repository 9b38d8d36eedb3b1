package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/motheroflaunch/backend/internal/errors"
	"github.com/motheroflaunch/backend/internal/models"
	"github.com/motheroflaunch/backend/internal/repository"
	"github.com/motheroflaunch/backend/internal/util"
	"github.com/motheroflaunch/backend/internal/views"
)

const maxToolTags = 5

type toolRequest struct {
	Name        *string   `json:"name"`
	Tagline     *string   `json:"tagline"`
	Description *string   `json:"description"`
	WebsiteURL  *string   `json:"website_url"`
	Category    *string   `json:"category"`
	Tags        *[]string `json:"tags"`
	Pricing     *string   `json:"pricing"`
}

// validate converts the request into column updates. It responds and
// returns false on the first invalid field.
func (req *toolRequest) validate(c *gin.Context) (map[string]interface{}, bool) {
	updates := make(map[string]interface{})
	if req.Name != nil {
		if msg, ok := util.ValidateLength(*req.Name, 1, 80); !ok {
			util.RespondValidationError(c, "name", msg)
			return nil, false
		}
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Tagline != nil {
		if msg, ok := util.ValidateLength(*req.Tagline, 0, 120); !ok {
			util.RespondValidationError(c, "tagline", msg)
			return nil, false
		}
		updates["tagline"] = strings.TrimSpace(*req.Tagline)
	}
	if req.Description != nil {
		if msg, ok := util.ValidateLength(*req.Description, 0, 5000); !ok {
			util.RespondValidationError(c, "description", msg)
			return nil, false
		}
		updates["description"] = strings.TrimSpace(*req.Description)
	}
	if req.WebsiteURL != nil {
		if !util.IsValidHTTPURL(*req.WebsiteURL) {
			util.RespondValidationError(c, "website_url", "must be an http(s) URL")
			return nil, false
		}
		updates["website_url"] = strings.TrimSpace(*req.WebsiteURL)
	}
	if req.Category != nil {
		if msg, ok := util.ValidateLength(*req.Category, 0, 40); !ok {
			util.RespondValidationError(c, "category", msg)
			return nil, false
		}
		updates["category"] = strings.ToLower(strings.TrimSpace(*req.Category))
	}
	if req.Tags != nil {
		updates["tags"] = util.NormalizeTags(*req.Tags, maxToolTags)
	}
	if req.Pricing != nil {
		if !models.IsValidPricing(*req.Pricing) {
			util.RespondValidationError(c, "pricing", "must be one of free, freemium, paid")
			return nil, false
		}
		updates["pricing"] = *req.Pricing
	}
	return updates, true
}

// ListTools lists approved tools
// GET /api/v1/tools?category=&tag=&q=&sort=newest|top
func (h *Handlers) ListTools(c *gin.Context) {
	p := util.ParsePagination(c)
	sort := c.DefaultQuery("sort", repository.SortNewest)
	if sort != repository.SortNewest && sort != repository.SortTop {
		util.RespondValidationError(c, "sort", "must be newest or top")
		return
	}

	tools, total, err := h.tools.ListTools(c.Request.Context(), repository.ToolFilter{
		Status:   models.ToolApproved,
		Category: strings.ToLower(c.Query("category")),
		Tag:      c.Query("tag"),
		Query:    strings.TrimSpace(c.Query("q")),
		Sort:     sort,
		Limit:    p.Limit,
		Offset:   p.Offset,
	})
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	util.RespondPage(c, tools, total, p)
}

// GetTool returns a tool by slug. Unapproved tools are only visible to
// their owner and admins.
// GET /api/v1/tools/:slug
func (h *Handlers) GetTool(c *gin.Context) {
	ctx := c.Request.Context()
	tool, err := h.tools.GetToolBySlug(ctx, c.Param("slug"))
	if err != nil {
		util.RespondWithError(c, err)
		return
	}

	user, _ := util.CurrentUser(c)
	if !tool.IsApproved() && !util.CanManage(user, tool.OwnerID) {
		util.RespondNotFound(c, "tool")
		return
	}
	if tool.IsApproved() {
		h.counter.Record(ctx, views.KindTool, tool.ID)
	}

	resp := gin.H{"tool": tool}
	if booking, err := h.launches.BookingFor(ctx, tool.ID); err == nil {
		resp["launch"] = booking
	}
	c.JSON(http.StatusOK, resp)
}

// CreateTool submits a tool for moderation
// POST /api/v1/tools
func (h *Handlers) CreateTool(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	var req toolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, "invalid request body")
		return
	}
	if req.Name == nil {
		util.RespondValidationError(c, "name", "is required")
		return
	}
	if req.WebsiteURL == nil {
		util.RespondValidationError(c, "website_url", "is required")
		return
	}
	fields, ok := req.validate(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	name := fields["name"].(string)
	slug, err := h.tools.UniqueSlug(ctx, baseSlug(name, "tool"), "")
	if err != nil {
		util.RespondWithError(c, err)
		return
	}

	tool := &models.Tool{
		OwnerID:    user.ID,
		Name:       name,
		Slug:       slug,
		WebsiteURL: fields["website_url"].(string),
		Pricing:    "free",
		Tags:       []string{},
		Status:     models.ToolPending,
	}
	if v, ok := fields["tagline"].(string); ok {
		tool.Tagline = v
	}
	if v, ok := fields["description"].(string); ok {
		tool.Description = v
	}
	if v, ok := fields["category"].(string); ok {
		tool.Category = v
	}
	if v, ok := fields["tags"].([]string); ok {
		tool.Tags = v
	}
	if v, ok := fields["pricing"].(string); ok {
		tool.Pricing = v
	}

	if err := h.tools.CreateTool(ctx, tool); err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"tool": tool})
}

// UpdateTool edits a tool. Changing the name or website of an approved tool
// sends it back to moderation.
// PUT /api/v1/tools/:id
func (h *Handlers) UpdateTool(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	tool, err := h.tools.GetTool(ctx, c.Param("id"))
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	if !util.CanManage(user, tool.OwnerID) {
		util.RespondForbidden(c, "only the tool owner can edit it")
		return
	}

	var req toolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, "invalid request body")
		return
	}
	updates, ok := req.validate(c)
	if !ok {
		return
	}
	if len(updates) == 0 {
		util.RespondBadRequest(c, "no fields to update")
		return
	}

	renamed := updates["name"] != nil && updates["name"] != tool.Name
	moved := updates["website_url"] != nil && updates["website_url"] != tool.WebsiteURL
	if renamed {
		slug, err := h.tools.UniqueSlug(ctx, baseSlug(updates["name"].(string), "tool"), tool.ID)
		if err != nil {
			util.RespondWithError(c, err)
			return
		}
		updates["slug"] = slug
	}
	requeued := tool.IsApproved() && (renamed || moved)
	if requeued {
		updates["status"] = models.ToolPending
		updates["rejection_reason"] = ""
	}

	updated, err := h.tools.UpdateTool(ctx, tool.ID, updates)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}

	switch {
	case requeued:
		h.unindexTool(ctx, updated.ID)
	case updated.IsApproved():
		h.indexTool(ctx, updated)
	}
	c.JSON(http.StatusOK, gin.H{"tool": updated})
}

// DeleteTool removes a tool and releases any future launch booking
// DELETE /api/v1/tools/:id
func (h *Handlers) DeleteTool(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	tool, err := h.tools.GetTool(ctx, c.Param("id"))
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	if !util.CanManage(user, tool.OwnerID) {
		util.RespondForbidden(c, "only the tool owner can delete it")
		return
	}

	if err := h.launches.ReleaseTool(ctx, tool.ID); err != nil {
		util.RespondWithError(c, err)
		return
	}
	if err := h.tools.DeleteTool(ctx, tool.ID); err != nil {
		util.RespondWithError(c, err)
		return
	}
	h.unindexTool(ctx, tool.ID)

	c.JSON(http.StatusOK, gin.H{"message": "tool deleted"})
}

// UploadToolLogo stores a logo image and sets it on the tool
// POST /api/v1/tools/:id/logo (multipart field "logo")
func (h *Handlers) UploadToolLogo(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	if h.uploader == nil {
		util.RespondWithAPIError(c, errors.ServiceUnavailable("object storage"))
		return
	}
	ctx := c.Request.Context()
	tool, err := h.tools.GetTool(ctx, c.Param("id"))
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	if !util.CanManage(user, tool.OwnerID) {
		util.RespondForbidden(c, "only the tool owner can change its logo")
		return
	}

	file, header, ok := util.FormImage(c, "logo")
	if !ok {
		return
	}
	defer file.Close()

	result, err := h.uploader.UploadImage(ctx, file, header, "logos", tool.OwnerID)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}

	updated, err := h.tools.UpdateTool(ctx, tool.ID, map[string]interface{}{"logo_url": result.URL})
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	if updated.IsApproved() {
		h.indexTool(ctx, updated)
	}
	c.JSON(http.StatusOK, gin.H{"tool": updated, "upload": result})
}

// baseSlug slugifies name, falling back to fallback when nothing remains
func baseSlug(name, fallback string) string {
	if s := util.Slugify(name); s != "" {
		return s
	}
	return fallback
}
