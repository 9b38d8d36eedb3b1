package handlers

import (
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/motheroflaunch/backend/internal/errors"
	"github.com/motheroflaunch/backend/internal/models"
	"github.com/motheroflaunch/backend/internal/repository"
	"github.com/motheroflaunch/backend/internal/scoring"
	"github.com/motheroflaunch/backend/internal/util"
	"github.com/motheroflaunch/backend/internal/views"
)

const maxBlogTags = 5

// rankWindow bounds how many recent posts are re-ranked per request
var rankWindow = 300

type blogRequest struct {
	Title         *string   `json:"title"`
	Excerpt       *string   `json:"excerpt"`
	Content       *string   `json:"content"`
	CoverImageURL *string   `json:"cover_image_url"`
	Tags          *[]string `json:"tags"`
}

func (req *blogRequest) validate(c *gin.Context) (map[string]interface{}, bool) {
	updates := make(map[string]interface{})
	if req.Title != nil {
		if msg, ok := util.ValidateLength(*req.Title, 1, 150); !ok {
			util.RespondValidationError(c, "title", msg)
			return nil, false
		}
		updates["title"] = strings.TrimSpace(*req.Title)
	}
	if req.Excerpt != nil {
		if msg, ok := util.ValidateLength(*req.Excerpt, 0, 300); !ok {
			util.RespondValidationError(c, "excerpt", msg)
			return nil, false
		}
		updates["excerpt"] = strings.TrimSpace(*req.Excerpt)
	}
	if req.Content != nil {
		if msg, ok := util.ValidateLength(*req.Content, 0, 100000); !ok {
			util.RespondValidationError(c, "content", msg)
			return nil, false
		}
		updates["content"] = *req.Content
	}
	if req.CoverImageURL != nil {
		cover := strings.TrimSpace(*req.CoverImageURL)
		if cover != "" && !util.IsValidHTTPURL(cover) {
			util.RespondValidationError(c, "cover_image_url", "must be an http(s) URL")
			return nil, false
		}
		updates["cover_image_url"] = cover
	}
	if req.Tags != nil {
		updates["tags"] = util.NormalizeTags(*req.Tags, maxBlogTags)
	}
	return updates, true
}

// scoreUpdates recomputes the quality columns for blog with updates applied
func scoreUpdates(blog *models.Blog, updates map[string]interface{}) {
	in := scoring.Input{
		Title:         blog.Title,
		Excerpt:       blog.Excerpt,
		Content:       blog.Content,
		CoverImageURL: blog.CoverImageURL,
		Tags:          blog.Tags,
	}
	if v, ok := updates["title"].(string); ok {
		in.Title = v
	}
	if v, ok := updates["excerpt"].(string); ok {
		in.Excerpt = v
	}
	if v, ok := updates["content"].(string); ok {
		in.Content = v
	}
	if v, ok := updates["cover_image_url"].(string); ok {
		in.CoverImageURL = v
	}
	if v, ok := updates["tags"].([]string); ok {
		in.Tags = v
	}

	attrs := scoring.Analyze(in)
	score := scoring.Score(attrs)
	updates["quality_score"] = score.Total
	updates["quality_tier"] = score.Tier
	updates["word_count"] = attrs.WordCount
	updates["reading_minutes"] = attrs.ReadingMinutes
}

// ListBlogs lists published posts
// GET /api/v1/blogs?sort=rank|newest|quality&tag=&featured=true
func (h *Handlers) ListBlogs(c *gin.Context) {
	p := util.ParsePagination(c)
	sortBy := c.DefaultQuery("sort", repository.SortRank)
	switch sortBy {
	case repository.SortRank, repository.SortNewest, repository.SortQuality:
	default:
		util.RespondValidationError(c, "sort", "must be rank, newest or quality")
		return
	}

	filter := repository.BlogFilter{
		Status:   models.BlogPublished,
		Tag:      c.Query("tag"),
		Featured: c.Query("featured") == "true",
		Sort:     sortBy,
		Limit:    p.Limit,
		Offset:   p.Offset,
	}
	if sortBy == repository.SortRank {
		filter.Limit, filter.Offset = rankWindow, 0
	}

	blogs, total, err := h.blogs.ListBlogs(c.Request.Context(), filter)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	if sortBy == repository.SortRank {
		blogs = pageOf(h.rankBlogs(blogs), p)
		total = min(total, int64(rankWindow))
	}
	util.RespondPage(c, blogs, total, p)
}

// rankBlogs orders posts by the engagement-weighted rank, best first
func (h *Handlers) rankBlogs(blogs []models.Blog) []models.Blog {
	now := h.now()
	ranks := make(map[string]float64, len(blogs))
	for _, b := range blogs {
		published := b.CreatedAt
		if b.PublishedAt != nil {
			published = *b.PublishedAt
		}
		age := now.Sub(published).Hours()
		ranks[b.ID] = scoring.Rank(b.QualityScore, b.ViewCount, b.LikeCount, b.IsFeatured, age)
	}
	sort.SliceStable(blogs, func(i, j int) bool {
		return ranks[blogs[i].ID] > ranks[blogs[j].ID]
	})
	return blogs
}

func pageOf[T any](items []T, p util.Pagination) []T {
	if p.Offset >= len(items) {
		return []T{}
	}
	end := min(p.Offset+p.Limit, len(items))
	return items[p.Offset:end]
}

// GetBlog returns a post by slug. Unpublished posts are only visible to
// their author and admins.
// GET /api/v1/blogs/:slug
func (h *Handlers) GetBlog(c *gin.Context) {
	ctx := c.Request.Context()
	blog, err := h.blogs.GetBlogBySlug(ctx, c.Param("slug"))
	if err != nil {
		util.RespondWithError(c, err)
		return
	}

	user, _ := util.CurrentUser(c)
	published := blog.Status == models.BlogPublished
	if !published && !util.CanManage(user, blog.AuthorID) {
		util.RespondNotFound(c, "blog")
		return
	}
	if published {
		h.counter.Record(ctx, views.KindBlog, blog.ID)
	}

	liked := false
	if user != nil {
		if liked, err = h.blogs.HasLiked(ctx, blog.ID, user.ID); err != nil {
			util.RespondWithError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"blog": blog, "liked": liked})
}

// CreateBlog creates a draft post
// POST /api/v1/blogs
func (h *Handlers) CreateBlog(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	var req blogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, "invalid request body")
		return
	}
	if req.Title == nil {
		util.RespondValidationError(c, "title", "is required")
		return
	}
	fields, ok := req.validate(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	title := fields["title"].(string)
	slug, err := h.blogs.UniqueSlug(ctx, baseSlug(title, "post"), "")
	if err != nil {
		util.RespondWithError(c, err)
		return
	}

	blog := &models.Blog{
		AuthorID: user.ID,
		Title:    title,
		Slug:     slug,
		Tags:     []string{},
		Status:   models.BlogDraft,
	}
	if v, ok := fields["excerpt"].(string); ok {
		blog.Excerpt = v
	}
	if v, ok := fields["content"].(string); ok {
		blog.Content = v
	}
	if v, ok := fields["cover_image_url"].(string); ok {
		blog.CoverImageURL = v
	}
	if v, ok := fields["tags"].([]string); ok {
		blog.Tags = v
	}

	attrs := scoring.Analyze(scoring.Input{
		Title:         blog.Title,
		Excerpt:       blog.Excerpt,
		Content:       blog.Content,
		CoverImageURL: blog.CoverImageURL,
		Tags:          blog.Tags,
	})
	score := scoring.Score(attrs)
	blog.QualityScore = score.Total
	blog.QualityTier = score.Tier
	blog.WordCount = attrs.WordCount
	blog.ReadingMinutes = attrs.ReadingMinutes

	if err := h.blogs.CreateBlog(ctx, blog); err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"blog": blog, "score": score})
}

// loadOwnBlog fetches the :id blog and checks the caller may manage it
func (h *Handlers) loadOwnBlog(c *gin.Context, user *models.User) (*models.Blog, bool) {
	blog, err := h.blogs.GetBlog(c.Request.Context(), c.Param("id"))
	if err != nil {
		util.RespondWithError(c, err)
		return nil, false
	}
	if !util.CanManage(user, blog.AuthorID) {
		util.RespondForbidden(c, "only the author can change this post")
		return nil, false
	}
	return blog, true
}

// UpdateBlog edits a post and recomputes its quality score. Editing a
// rejected post returns it to draft.
// PUT /api/v1/blogs/:id
func (h *Handlers) UpdateBlog(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	blog, ok := h.loadOwnBlog(c, user)
	if !ok {
		return
	}

	var req blogRequest
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

	ctx := c.Request.Context()
	if title, ok := updates["title"].(string); ok && title != blog.Title && blog.Status != models.BlogPublished {
		// Published slugs stay stable so shared links keep working
		slug, err := h.blogs.UniqueSlug(ctx, baseSlug(title, "post"), blog.ID)
		if err != nil {
			util.RespondWithError(c, err)
			return
		}
		updates["slug"] = slug
	}
	if blog.Status == models.BlogRejected {
		updates["status"] = models.BlogDraft
		updates["rejection_reason"] = ""
	}
	scoreUpdates(blog, updates)

	updated, err := h.blogs.UpdateBlog(ctx, blog.ID, updates)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	if updated.Status == models.BlogPublished {
		h.indexBlog(ctx, updated)
	}
	c.JSON(http.StatusOK, gin.H{"blog": updated})
}

// SubmitBlog sends a draft to moderation
// POST /api/v1/blogs/:id/submit
func (h *Handlers) SubmitBlog(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	blog, ok := h.loadOwnBlog(c, user)
	if !ok {
		return
	}

	switch blog.Status {
	case models.BlogDraft, models.BlogRejected:
	case models.BlogPending:
		util.RespondWithAPIError(c, errors.Conflict("post is already awaiting review"))
		return
	default:
		util.RespondWithAPIError(c, errors.Conflict("post is already published"))
		return
	}
	if strings.TrimSpace(blog.Content) == "" {
		util.RespondValidationError(c, "content", "is required before submitting")
		return
	}

	updated, err := h.blogs.UpdateBlog(c.Request.Context(), blog.ID, map[string]interface{}{
		"status":           models.BlogPending,
		"rejection_reason": "",
	})
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"blog": updated})
}

// DeleteBlog removes a post and its likes
// DELETE /api/v1/blogs/:id
func (h *Handlers) DeleteBlog(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	blog, ok := h.loadOwnBlog(c, user)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if err := h.blogs.DeleteBlog(ctx, blog.ID); err != nil {
		util.RespondWithError(c, err)
		return
	}
	h.unindexBlog(ctx, blog.ID)
	c.JSON(http.StatusOK, gin.H{"message": "post deleted"})
}

// UploadBlogCover stores a cover image and rescores the post
// POST /api/v1/blogs/:id/cover (multipart field "cover")
func (h *Handlers) UploadBlogCover(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	if h.uploader == nil {
		util.RespondWithAPIError(c, errors.ServiceUnavailable("object storage"))
		return
	}
	blog, ok := h.loadOwnBlog(c, user)
	if !ok {
		return
	}

	file, header, ok := util.FormImage(c, "cover")
	if !ok {
		return
	}
	defer file.Close()

	ctx := c.Request.Context()
	result, err := h.uploader.UploadImage(ctx, file, header, "covers", blog.AuthorID)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}

	updates := map[string]interface{}{"cover_image_url": result.URL}
	scoreUpdates(blog, updates)
	updated, err := h.blogs.UpdateBlog(ctx, blog.ID, updates)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	if updated.Status == models.BlogPublished {
		h.indexBlog(ctx, updated)
	}
	c.JSON(http.StatusOK, gin.H{"blog": updated, "upload": result})
}

// LikeBlog likes a published post
// POST /api/v1/blogs/:id/like
func (h *Handlers) LikeBlog(c *gin.Context) {
	h.setLike(c, true)
}

// UnlikeBlog removes the caller's like
// DELETE /api/v1/blogs/:id/like
func (h *Handlers) UnlikeBlog(c *gin.Context) {
	h.setLike(c, false)
}

func (h *Handlers) setLike(c *gin.Context, like bool) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	blog, err := h.blogs.GetBlog(ctx, c.Param("id"))
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	if blog.Status != models.BlogPublished {
		util.RespondNotFound(c, "blog")
		return
	}

	var count int
	if like {
		count, err = h.blogs.Like(ctx, blog.ID, user.ID)
	} else {
		count, err = h.blogs.Unlike(ctx, blog.ID, user.ID)
	}
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"blog_id": blog.ID, "like_count": count, "liked": like})
}
