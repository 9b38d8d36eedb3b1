package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/motheroflaunch/backend/internal/search"
	"github.com/motheroflaunch/backend/internal/util"
)

// Search finds approved tools and published posts
// GET /api/v1/search?q=&kind=tool|blog&limit=&offset=
func (h *Handlers) Search(c *gin.Context) {
	text := strings.TrimSpace(c.Query("q"))
	if text == "" {
		util.RespondValidationError(c, "q", "is required")
		return
	}
	kind := c.Query("kind")
	if kind != "" && kind != search.KindTool && kind != search.KindBlog {
		util.RespondValidationError(c, "kind", "must be tool or blog")
		return
	}

	p := util.ParsePagination(c)
	result, err := h.search.Search(c.Request.Context(), search.Query{
		Text:   text,
		Kind:   kind,
		Limit:  p.Limit,
		Offset: p.Offset,
	})
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
