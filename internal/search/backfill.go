package search

import (
	"context"
	"fmt"

	"github.com/motheroflaunch/backend/internal/logger"
	"github.com/motheroflaunch/backend/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const backfillBatchSize = 200

// BackfillStats reports how many documents a backfill wrote
type BackfillStats struct {
	Tools int `json:"tools"`
	Blogs int `json:"blogs"`
}

// Backfill indexes every approved tool and published blog. It is used after
// index mappings change or when the index has drifted from the database.
func Backfill(ctx context.Context, db *gorm.DB, s Searcher) (*BackfillStats, error) {
	stats := &BackfillStats{}

	var tools []models.Tool
	err := db.WithContext(ctx).Where("status = ?", models.ToolApproved).
		FindInBatches(&tools, backfillBatchSize, func(tx *gorm.DB, batch int) error {
			for _, t := range tools {
				if err := s.IndexTool(ctx, t); err != nil {
					return fmt.Errorf("tool %s: %w", t.ID, err)
				}
				stats.Tools++
			}
			return nil
		}).Error
	if err != nil {
		return stats, fmt.Errorf("failed to backfill tools: %w", err)
	}

	var blogs []models.Blog
	err = db.WithContext(ctx).Where("status = ?", models.BlogPublished).
		FindInBatches(&blogs, backfillBatchSize, func(tx *gorm.DB, batch int) error {
			for _, b := range blogs {
				if err := s.IndexBlog(ctx, b); err != nil {
					return fmt.Errorf("blog %s: %w", b.ID, err)
				}
				stats.Blogs++
			}
			return nil
		}).Error
	if err != nil {
		return stats, fmt.Errorf("failed to backfill blogs: %w", err)
	}

	logger.Log.Info("Search backfill complete",
		zap.Int("tools", stats.Tools),
		zap.Int("blogs", stats.Blogs),
	)
	return stats, nil
}
