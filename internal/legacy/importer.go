package legacy

import (
	"context"
	"fmt"

	"github.com/motheroflaunch/backend/internal/logger"
	"github.com/motheroflaunch/backend/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Stats counts what an import run did
type Stats struct {
	Users   int `json:"users"`
	Tools   int `json:"tools"`
	Blogs   int `json:"blogs"`
	Skipped int `json:"skipped"`
}

// Importer writes legacy documents into the relational schema. Rows that
// already exist are left untouched, so an import can be re-run safely.
type Importer struct {
	db     *gorm.DB
	src    Source
	dryRun bool
}

// NewImporter creates an importer. In dry-run mode documents are converted
// and counted but nothing is written.
func NewImporter(db *gorm.DB, src Source, dryRun bool) *Importer {
	return &Importer{db: db, src: src, dryRun: dryRun}
}

// Run imports users, then tools, then blogs. Tools and blogs whose owner
// was not imported are skipped.
func (im *Importer) Run(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	// derived legacy ID -> the user row that now represents it
	owners := make(map[string]string)

	err := im.src.Users(ctx, func(d UserDoc) error {
		u := ToUser(d)
		if u.Email == "" {
			stats.Skipped++
			logger.Log.Warn("Skipping legacy user without email", zap.String("legacy_id", d.ID.Hex()))
			return nil
		}
		id, err := im.insertUser(ctx, &u, d)
		if err != nil {
			return fmt.Errorf("user %s: %w", d.ID.Hex(), err)
		}
		owners[IDFor(d.ID)] = id
		stats.Users++
		return nil
	})
	if err != nil {
		return stats, err
	}

	err = im.src.Tools(ctx, func(d ToolDoc) error {
		t := ToTool(d)
		owner, ok := owners[t.OwnerID]
		if !ok || t.Slug == "" || t.WebsiteURL == "" {
			stats.Skipped++
			logger.Log.Warn("Skipping legacy tool", zap.String("legacy_id", d.ID.Hex()))
			return nil
		}
		slug, err := im.freeSlug(ctx, &models.Tool{}, t.ID, t.Slug)
		if err != nil {
			return err
		}
		t.Slug = slug
		t.OwnerID = owner
		if err := im.insert(ctx, &t); err != nil {
			return fmt.Errorf("tool %s: %w", d.ID.Hex(), err)
		}
		stats.Tools++
		return nil
	})
	if err != nil {
		return stats, err
	}

	err = im.src.Blogs(ctx, func(d BlogDoc) error {
		b := ToBlog(d)
		author, ok := owners[b.AuthorID]
		if !ok || b.Slug == "" {
			stats.Skipped++
			logger.Log.Warn("Skipping legacy blog", zap.String("legacy_id", d.ID.Hex()))
			return nil
		}
		slug, err := im.freeSlug(ctx, &models.Blog{}, b.ID, b.Slug)
		if err != nil {
			return err
		}
		b.Slug = slug
		b.AuthorID = author
		if err := im.insert(ctx, &b); err != nil {
			return fmt.Errorf("blog %s: %w", d.ID.Hex(), err)
		}
		stats.Blogs++
		return nil
	})
	if err != nil {
		return stats, err
	}

	logger.Log.Info("Legacy import finished",
		zap.Int("users", stats.Users),
		zap.Int("tools", stats.Tools),
		zap.Int("blogs", stats.Blogs),
		zap.Int("skipped", stats.Skipped),
		zap.Bool("dry_run", im.dryRun))
	return stats, nil
}

// insertUser creates u and returns the ID of the row that represents it.
// An account that already exists with the same email (someone who signed in
// after the migration began) is reused. A username clash with a different
// account gets the legacy ID suffix.
func (im *Importer) insertUser(ctx context.Context, u *models.User, d UserDoc) (string, error) {
	if im.dryRun {
		return u.ID, nil
	}
	db := im.db.WithContext(ctx)
	for attempt := 0; attempt < 2; attempt++ {
		res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(u)
		if res.Error != nil {
			return "", res.Error
		}
		if res.RowsAffected == 1 {
			return u.ID, nil
		}

		var existing models.User
		err := db.Unscoped().Where("id = ? OR email = ?", u.ID, u.Email).First(&existing).Error
		if err == nil {
			return existing.ID, nil
		}
		if err != gorm.ErrRecordNotFound {
			return "", err
		}
		u.Username = sanitizeUsername(u.Username, d.ID)
	}
	return "", fmt.Errorf("could not place username %q", u.Username)
}

func (im *Importer) insert(ctx context.Context, row interface{}) error {
	if im.dryRun {
		return nil
	}
	return im.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error
}

// freeSlug returns slug unless another row already holds it, in which case
// a numeric suffix is added. A re-import of the same row keeps its slug.
func (im *Importer) freeSlug(ctx context.Context, model interface{}, id, slug string) (string, error) {
	if im.dryRun {
		return slug, nil
	}
	candidate := slug
	for i := 2; ; i++ {
		var n int64
		err := im.db.WithContext(ctx).Model(model).
			Where("slug = ? AND id <> ?", candidate, id).Count(&n).Error
		if err != nil {
			return "", err
		}
		if n == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", slug, i)
	}
}
