package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/motheroflaunch/backend/internal/models"
	"gorm.io/gorm"
)

// Tool listing sorts
const (
	SortNewest = "newest"
	SortTop    = "top"
)

// ToolFilter narrows the public tool listing
type ToolFilter struct {
	Status   string
	OwnerID  string
	Category string
	Tag      string
	Query    string
	Sort     string
	Limit    int
	Offset   int
}

// ToolRepository handles all database operations for tools
type ToolRepository interface {
	CreateTool(ctx context.Context, tool *models.Tool) error
	GetTool(ctx context.Context, id string) (*models.Tool, error)
	GetToolBySlug(ctx context.Context, slug string) (*models.Tool, error)
	UpdateTool(ctx context.Context, id string, updates map[string]interface{}) (*models.Tool, error)
	DeleteTool(ctx context.Context, id string) error
	ListTools(ctx context.Context, f ToolFilter) ([]models.Tool, int64, error)
	UniqueSlug(ctx context.Context, name, exceptID string) (string, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
	AddViews(ctx context.Context, id string, n int64) error
}

type toolRepository struct {
	db *gorm.DB
}

// NewToolRepository creates a new tool repository
func NewToolRepository(db *gorm.DB) ToolRepository {
	return &toolRepository{db: db}
}

func (r *toolRepository) CreateTool(ctx context.Context, tool *models.Tool) error {
	if tool == nil || tool.OwnerID == "" {
		return ErrInvalidInput
	}
	return r.db.WithContext(ctx).Create(tool).Error
}

func (r *toolRepository) first(ctx context.Context, query string, arg interface{}) (*models.Tool, error) {
	var tool models.Tool
	err := r.db.WithContext(ctx).Preload("Owner").Where(query, arg).First(&tool).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrToolNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tool, nil
}

func (r *toolRepository) GetTool(ctx context.Context, id string) (*models.Tool, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *toolRepository) GetToolBySlug(ctx context.Context, slug string) (*models.Tool, error) {
	return r.first(ctx, "slug = ?", strings.ToLower(slug))
}

// UpdateTool applies a partial update and returns the reloaded tool
func (r *toolRepository) UpdateTool(ctx context.Context, id string, updates map[string]interface{}) (*models.Tool, error) {
	if len(updates) > 0 {
		found, err := applyUpdates(r.db.WithContext(ctx), &models.Tool{}, id, updates, func(tags []string) interface{} {
			return &models.Tool{Tags: tags}
		})
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, ErrToolNotFound
		}
	}
	return r.GetTool(ctx, id)
}

// DeleteTool soft deletes a tool
func (r *toolRepository) DeleteTool(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Tool{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrToolNotFound
	}
	return nil
}

func (r *toolRepository) ListTools(ctx context.Context, f ToolFilter) ([]models.Tool, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Tool{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.OwnerID != "" {
		q = q.Where("owner_id = ?", f.OwnerID)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.Tag != "" {
		// Tags are stored as a JSON array of strings
		q = q.Where("tags LIKE ?", `%"`+strings.ToLower(f.Tag)+`"%`)
	}
	if f.Query != "" {
		like := "%" + strings.ToLower(f.Query) + "%"
		q = q.Where("(LOWER(name) LIKE ? OR LOWER(tagline) LIKE ?)", like, like)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	switch f.Sort {
	case SortTop:
		q = q.Order("total_votes DESC").Order("created_at DESC")
	default:
		q = q.Order("created_at DESC")
	}

	var tools []models.Tool
	err := q.Limit(f.Limit).Offset(f.Offset).Find(&tools).Error
	return tools, total, err
}

func (r *toolRepository) UniqueSlug(ctx context.Context, base, exceptID string) (string, error) {
	return uniqueSlug(ctx, r.db, &models.Tool{}, base, exceptID)
}

type statusCount struct {
	Status string
	N      int64
}

func countByStatus(db *gorm.DB, model interface{}) (map[string]int64, error) {
	var rows []statusCount
	if err := db.Model(model).Select("status, COUNT(*) AS n").Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.N
	}
	return out, nil
}

func (r *toolRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	return countByStatus(r.db.WithContext(ctx), &models.Tool{})
}

func (r *toolRepository) AddViews(ctx context.Context, id string, n int64) error {
	return r.db.WithContext(ctx).Model(&models.Tool{}).Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + ?", n)).Error
}
