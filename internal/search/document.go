package search

import (
	"time"

	"github.com/motheroflaunch/backend/internal/models"
)

// Index names
const (
	IndexTools = "tools"
	IndexBlogs = "blogs"
)

// Kinds returned in search hits
const (
	KindTool = "tool"
	KindBlog = "blog"
)

// ToolSearchDoc is the indexed form of an approved tool
type ToolSearchDoc struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Tagline     string    `json:"tagline"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Tags        []string  `json:"tags,omitempty"`
	Pricing     string    `json:"pricing"`
	TotalVotes  int       `json:"total_votes"`
	CreatedAt   time.Time `json:"created_at"`
}

// BlogSearchDoc is the indexed form of a published blog
type BlogSearchDoc struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Slug         string     `json:"slug"`
	Excerpt      string     `json:"excerpt"`
	Content      string     `json:"content"`
	Tags         []string   `json:"tags,omitempty"`
	QualityScore float64    `json:"quality_score"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
}

// ToolToSearchDoc converts a Tool model to its search document
func ToolToSearchDoc(tool models.Tool) ToolSearchDoc {
	return ToolSearchDoc{
		ID:          tool.ID,
		Name:        tool.Name,
		Slug:        tool.Slug,
		Tagline:     tool.Tagline,
		Description: tool.Description,
		Category:    tool.Category,
		Tags:        tool.Tags,
		Pricing:     tool.Pricing,
		TotalVotes:  tool.TotalVotes,
		CreatedAt:   tool.CreatedAt,
	}
}

// BlogToSearchDoc converts a Blog model to its search document
func BlogToSearchDoc(blog models.Blog) BlogSearchDoc {
	return BlogSearchDoc{
		ID:           blog.ID,
		Title:        blog.Title,
		Slug:         blog.Slug,
		Excerpt:      blog.Excerpt,
		Content:      blog.Content,
		Tags:         blog.Tags,
		QualityScore: blog.QualityScore,
		PublishedAt:  blog.PublishedAt,
	}
}

// Query describes a search request
type Query struct {
	Text   string `json:"q"`
	Kind   string `json:"kind,omitempty"` // "tool", "blog" or empty for both
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

// Normalize clamps paging values
func (q Query) Normalize() Query {
	if q.Limit <= 0 || q.Limit > 50 {
		q.Limit = 20
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}

// Hit is one search result
type Hit struct {
	ID      string  `json:"id"`
	Kind    string  `json:"kind"`
	Title   string  `json:"title"`
	Slug    string  `json:"slug"`
	Summary string  `json:"summary"`
	Score   float64 `json:"score"`
}

// Result is a page of hits
type Result struct {
	Hits  []Hit `json:"hits"`
	Total int   `json:"total"`
}
