// Package premium records premium entitlements. Payment happens elsewhere;
// admins grant and revoke access, and a sweeper expires lapsed grants.
package premium

import (
	"context"
	"errors"
	"time"

	"github.com/motheroflaunch/backend/internal/logger"
	"github.com/motheroflaunch/backend/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrInvalidPlan   = errors.New("unknown premium plan")
	ErrUserNotFound  = errors.New("user not found")
	ErrNoActiveGrant = errors.New("user has no active premium access")
)

// Status summarizes a user's premium access
type Status struct {
	IsPremium bool                   `json:"is_premium"`
	Plan      string                 `json:"plan,omitempty"`
	ExpiresAt *time.Time             `json:"expires_at,omitempty"`
	History   []models.PremiumAccess `json:"history"`
}

// Service manages premium grants
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

// NewService creates a premium service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// WithClock overrides time.Now, for tests and replay tools
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func activeAt(db *gorm.DB, at time.Time) *gorm.DB {
	return db.Where("status = ? AND starts_at <= ? AND (expires_at IS NULL OR expires_at > ?)",
		models.PremiumActive, at, at)
}

// IsPremium reports whether userID holds active premium access at time at
func (s *Service) IsPremium(ctx context.Context, userID string, at time.Time) (bool, error) {
	var n int64
	err := activeAt(s.db.WithContext(ctx).Model(&models.PremiumAccess{}).Where("user_id = ?", userID), at.UTC()).
		Count(&n).Error
	return n > 0, err
}

// Status returns the user's current access and grant history
func (s *Service) Status(ctx context.Context, userID string) (*Status, error) {
	now := s.now().UTC()
	var grants []models.PremiumAccess
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at DESC").Find(&grants).Error; err != nil {
		return nil, err
	}

	st := &Status{History: grants}
	for i := range grants {
		if grants[i].ActiveAt(now) {
			st.IsPremium = true
			st.Plan = grants[i].Plan
			st.ExpiresAt = grants[i].ExpiresAt
			break
		}
	}
	return st, nil
}

// Grant gives userID premium access. An active grant is extended instead of
// duplicated; duration zero means the plan's default length.
func (s *Service) Grant(ctx context.Context, userID, plan string, duration time.Duration, source, ref string) (*models.PremiumAccess, error) {
	if !models.IsValidPlan(plan) {
		return nil, ErrInvalidPlan
	}
	if duration <= 0 {
		duration = models.PlanDuration(plan)
	}
	now := s.now().UTC()

	var grant models.PremiumAccess
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var users int64
		if err := tx.Model(&models.User{}).Where("id = ?", userID).Count(&users).Error; err != nil {
			return err
		}
		if users == 0 {
			return ErrUserNotFound
		}

		err := activeAt(tx.Where("user_id = ?", userID), now).
			Order("starts_at DESC").First(&grant).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			grant = models.PremiumAccess{
				UserID:      userID,
				Plan:        plan,
				Status:      models.PremiumActive,
				StartsAt:    now,
				Source:      source,
				ExternalRef: ref,
			}
			if plan != models.PlanLifetime {
				expires := now.Add(duration)
				grant.ExpiresAt = &expires
			}
			return tx.Create(&grant).Error
		}
		if err != nil {
			return err
		}

		// Extend the active grant
		switch {
		case grant.ExpiresAt == nil:
			// Already lifetime
		case plan == models.PlanLifetime:
			grant.ExpiresAt = nil
			grant.Plan = plan
		default:
			expires := grant.ExpiresAt.Add(duration)
			grant.ExpiresAt = &expires
			grant.Plan = plan
		}
		if ref != "" {
			grant.ExternalRef = ref
		}
		return tx.Model(&grant).Select("plan", "expires_at", "external_ref").Updates(&grant).Error
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info("Premium access granted",
		logger.WithUserID(userID),
		zap.String("plan", grant.Plan),
		zap.String("source", source),
	)
	return &grant, nil
}

// Revoke cancels every active grant of userID
func (s *Service) Revoke(ctx context.Context, userID string) error {
	now := s.now().UTC()
	res := s.db.WithContext(ctx).Model(&models.PremiumAccess{}).
		Where("user_id = ? AND status = ?", userID, models.PremiumActive).
		Updates(map[string]interface{}{"status": models.PremiumCanceled, "expires_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNoActiveGrant
	}
	logger.Log.Info("Premium access revoked", logger.WithUserID(userID))
	return nil
}

// ExpireDue marks grants whose expiry has passed as expired
func (s *Service) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.PremiumAccess{}).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?", models.PremiumActive, now.UTC()).
		Update("status", models.PremiumExpired)
	return res.RowsAffected, res.Error
}

// CountActive returns the number of users with active access at now
func (s *Service) CountActive(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := activeAt(s.db.WithContext(ctx).Model(&models.PremiumAccess{}), now.UTC()).
		Distinct("user_id").Count(&n).Error
	return n, err
}
