package search

import (
	"context"
	"strings"
	"time"

	"github.com/motheroflaunch/backend/internal/metrics"
	"github.com/motheroflaunch/backend/internal/models"
	"gorm.io/gorm"
)

// DBSearcher answers searches with LIKE queries against the database. It is
// used when Elasticsearch is not configured. Index writes are no-ops because
// the database is already the source of truth.
type DBSearcher struct {
	db *gorm.DB
}

// NewDBSearcher creates a database-backed searcher
func NewDBSearcher(db *gorm.DB) *DBSearcher {
	return &DBSearcher{db: db}
}

// Search implements Searcher
func (s *DBSearcher) Search(ctx context.Context, q Query) (_ *Result, err error) {
	defer observeQuery("database", time.Now(), &err)
	q = q.Normalize()
	pattern := "%" + escapeLike(strings.ToLower(strings.TrimSpace(q.Text))) + "%"
	result := &Result{Hits: []Hit{}}

	if q.Kind == "" || q.Kind == KindTool {
		var tools []models.Tool
		var total int64
		query := s.db.WithContext(ctx).Model(&models.Tool{}).
			Where("status = ?", models.ToolApproved).
			Where("(LOWER(name) LIKE ? ESCAPE '\\' OR LOWER(tagline) LIKE ? ESCAPE '\\' OR LOWER(description) LIKE ? ESCAPE '\\')", pattern, pattern, pattern)
		if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
			return nil, err
		}
		if err := query.Order("total_votes DESC, created_at DESC").Limit(q.Limit).Offset(q.Offset).Find(&tools).Error; err != nil {
			return nil, err
		}
		for _, t := range tools {
			result.Hits = append(result.Hits, Hit{ID: t.ID, Kind: KindTool, Title: t.Name, Slug: t.Slug, Summary: t.Tagline})
		}
		result.Total += int(total)
	}

	if q.Kind == "" || q.Kind == KindBlog {
		var blogs []models.Blog
		var total int64
		query := s.db.WithContext(ctx).Model(&models.Blog{}).
			Where("status = ?", models.BlogPublished).
			Where("(LOWER(title) LIKE ? ESCAPE '\\' OR LOWER(excerpt) LIKE ? ESCAPE '\\')", pattern, pattern)
		if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
			return nil, err
		}
		if err := query.Order("quality_score DESC, published_at DESC").Limit(q.Limit).Offset(q.Offset).Find(&blogs).Error; err != nil {
			return nil, err
		}
		for _, b := range blogs {
			result.Hits = append(result.Hits, Hit{ID: b.ID, Kind: KindBlog, Title: b.Title, Slug: b.Slug, Summary: b.Excerpt})
		}
		result.Total += int(total)
	}

	return result, nil
}

func (s *DBSearcher) IndexTool(context.Context, models.Tool) error { return nil }
func (s *DBSearcher) IndexBlog(context.Context, models.Blog) error { return nil }
func (s *DBSearcher) DeleteTool(context.Context, string) error     { return nil }
func (s *DBSearcher) DeleteBlog(context.Context, string) error     { return nil }

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

var _ Searcher = (*DBSearcher)(nil)

func observeQuery(backend string, start time.Time, err *error) {
	m := metrics.Get()
	m.SearchQueryDuration.WithLabelValues(backend).Observe(time.Since(start).Seconds())
	m.SearchQueriesTotal.WithLabelValues(backend, metrics.Result(*err)).Inc()
}
