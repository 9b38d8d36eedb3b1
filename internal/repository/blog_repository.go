package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/motheroflaunch/backend/internal/database"
	"github.com/motheroflaunch/backend/internal/models"
	"gorm.io/gorm"
)

// Blog listing sorts
const (
	SortRank    = "rank"
	SortQuality = "quality"
)

// BlogFilter narrows blog listings
type BlogFilter struct {
	Status   string
	AuthorID string
	Tag      string
	Featured bool
	Sort     string
	Limit    int
	Offset   int
}

// BlogRepository handles all database operations for blogs and likes
type BlogRepository interface {
	CreateBlog(ctx context.Context, blog *models.Blog) error
	GetBlog(ctx context.Context, id string) (*models.Blog, error)
	GetBlogBySlug(ctx context.Context, slug string) (*models.Blog, error)
	UpdateBlog(ctx context.Context, id string, updates map[string]interface{}) (*models.Blog, error)
	DeleteBlog(ctx context.Context, id string) error
	ListBlogs(ctx context.Context, f BlogFilter) ([]models.Blog, int64, error)
	UniqueSlug(ctx context.Context, base, exceptID string) (string, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
	AddViews(ctx context.Context, id string, n int64) error

	Like(ctx context.Context, blogID, userID string) (int, error)
	Unlike(ctx context.Context, blogID, userID string) (int, error)
	HasLiked(ctx context.Context, blogID, userID string) (bool, error)
}

type blogRepository struct {
	db *gorm.DB
}

// NewBlogRepository creates a new blog repository
func NewBlogRepository(db *gorm.DB) BlogRepository {
	return &blogRepository{db: db}
}

func (r *blogRepository) CreateBlog(ctx context.Context, blog *models.Blog) error {
	if blog == nil || blog.AuthorID == "" {
		return ErrInvalidInput
	}
	return r.db.WithContext(ctx).Create(blog).Error
}

func (r *blogRepository) first(ctx context.Context, query string, arg interface{}) (*models.Blog, error) {
	var blog models.Blog
	err := r.db.WithContext(ctx).Preload("Author").Where(query, arg).First(&blog).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBlogNotFound
	}
	if err != nil {
		return nil, err
	}
	return &blog, nil
}

func (r *blogRepository) GetBlog(ctx context.Context, id string) (*models.Blog, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *blogRepository) GetBlogBySlug(ctx context.Context, slug string) (*models.Blog, error) {
	return r.first(ctx, "slug = ?", strings.ToLower(slug))
}

func (r *blogRepository) UpdateBlog(ctx context.Context, id string, updates map[string]interface{}) (*models.Blog, error) {
	if len(updates) > 0 {
		found, err := applyUpdates(r.db.WithContext(ctx), &models.Blog{}, id, updates, func(tags []string) interface{} {
			return &models.Blog{Tags: tags}
		})
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, ErrBlogNotFound
		}
	}
	return r.GetBlog(ctx, id)
}

func (r *blogRepository) DeleteBlog(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&models.Blog{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrBlogNotFound
		}
		return tx.Where("blog_id = ?", id).Delete(&models.BlogLike{}).Error
	})
}

// ListBlogs returns a page of blogs. SortRank orders by quality score and
// recency in SQL; handlers re-rank the page with the scoring formula.
func (r *blogRepository) ListBlogs(ctx context.Context, f BlogFilter) ([]models.Blog, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Blog{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.AuthorID != "" {
		q = q.Where("author_id = ?", f.AuthorID)
	}
	if f.Tag != "" {
		q = q.Where("tags LIKE ?", `%"`+strings.ToLower(f.Tag)+`"%`)
	}
	if f.Featured {
		q = q.Where("is_featured = ?", true)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	switch f.Sort {
	case SortQuality:
		q = q.Order("quality_score DESC").Order("published_at DESC")
	case SortRank:
		q = q.Order("is_featured DESC").Order("published_at DESC")
	default:
		q = q.Order("COALESCE(published_at, created_at) DESC")
	}

	var blogs []models.Blog
	err := q.Preload("Author").Omit("content").Limit(f.Limit).Offset(f.Offset).Find(&blogs).Error
	return blogs, total, err
}

func (r *blogRepository) UniqueSlug(ctx context.Context, base, exceptID string) (string, error) {
	return uniqueSlug(ctx, r.db, &models.Blog{}, base, exceptID)
}

func (r *blogRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	return countByStatus(r.db.WithContext(ctx), &models.Blog{})
}

func (r *blogRepository) AddViews(ctx context.Context, id string, n int64) error {
	return r.db.WithContext(ctx).Model(&models.Blog{}).Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + ?", n)).Error
}

// Like records a like and returns the new like count
func (r *blogRepository) Like(ctx context.Context, blogID, userID string) (int, error) {
	return r.adjustLike(ctx, blogID, userID, true)
}

// Unlike removes a like and returns the new like count
func (r *blogRepository) Unlike(ctx context.Context, blogID, userID string) (int, error) {
	return r.adjustLike(ctx, blogID, userID, false)
}

func (r *blogRepository) adjustLike(ctx context.Context, blogID, userID string, like bool) (int, error) {
	var count int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		delta := 1
		if like {
			if err := tx.Create(&models.BlogLike{BlogID: blogID, UserID: userID}).Error; err != nil {
				if database.IsUniqueViolation(err) {
					return ErrAlreadyLiked
				}
				return err
			}
		} else {
			res := tx.Where("blog_id = ? AND user_id = ?", blogID, userID).Delete(&models.BlogLike{})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrNotLiked
			}
			delta = -1
		}

		if err := tx.Model(&models.Blog{}).Where("id = ?", blogID).
			UpdateColumn("like_count", gorm.Expr("like_count + ?", delta)).Error; err != nil {
			return err
		}
		return tx.Model(&models.Blog{}).Where("id = ?", blogID).Select("like_count").Scan(&count).Error
	})
	return count, err
}

func (r *blogRepository) HasLiked(ctx context.Context, blogID, userID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.BlogLike{}).
		Where("blog_id = ? AND user_id = ?", blogID, userID).Count(&n).Error
	return n > 0, err
}
