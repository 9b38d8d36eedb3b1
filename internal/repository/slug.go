package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// uniqueSlug returns base, or base-2, base-3... when taken in model's table.
// Soft-deleted rows still hold their slug.
func uniqueSlug(ctx context.Context, db *gorm.DB, model interface{}, base, exceptID string) (string, error) {
	if base == "" {
		base = "untitled"
	}
	slug := base
	for i := 2; ; i++ {
		var n int64
		q := db.WithContext(ctx).Unscoped().Model(model).Where("slug = ?", slug)
		if exceptID != "" {
			q = q.Where("id <> ?", exceptID)
		}
		if err := q.Count(&n).Error; err != nil {
			return "", err
		}
		if n == 0 {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
}
