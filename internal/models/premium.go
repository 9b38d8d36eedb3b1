package models

import (
	"time"

	"gorm.io/gorm"
)

// Premium plans
const (
	PlanMonthly  = "monthly"
	PlanYearly   = "yearly"
	PlanLifetime = "lifetime"
)

// Premium access states
const (
	PremiumActive   = "active"
	PremiumCanceled = "canceled"
	PremiumExpired  = "expired"
)

// PremiumAccess records a premium entitlement granted to a user. Payments are
// handled by the payment provider; this row is what the API trusts.
type PremiumAccess struct {
	ID          string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID      string     `gorm:"not null;index" json:"user_id"`
	Plan        string     `gorm:"not null" json:"plan"`
	Status      string     `gorm:"not null;default:active;index" json:"status"`
	StartsAt    time.Time  `json:"starts_at"`
	ExpiresAt   *time.Time `gorm:"index" json:"expires_at,omitempty"`
	Source      string     `json:"source"`
	ExternalRef string     `json:"external_ref,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// BeforeCreate assigns a UUID when the caller did not set one
func (p *PremiumAccess) BeforeCreate(tx *gorm.DB) error {
	ensureID(&p.ID)
	if p.Status == "" {
		p.Status = PremiumActive
	}
	return nil
}

// ActiveAt reports whether the grant entitles the user at time t
func (p *PremiumAccess) ActiveAt(t time.Time) bool {
	if p.Status != PremiumActive {
		return false
	}
	if t.Before(p.StartsAt) {
		return false
	}
	return p.ExpiresAt == nil || t.Before(*p.ExpiresAt)
}

// IsValidPlan reports whether plan is a known premium plan
func IsValidPlan(plan string) bool {
	switch plan {
	case PlanMonthly, PlanYearly, PlanLifetime:
		return true
	}
	return false
}

// PlanDuration returns the default length of a plan; zero means no expiry
func PlanDuration(plan string) time.Duration {
	switch plan {
	case PlanMonthly:
		return 30 * 24 * time.Hour
	case PlanYearly:
		return 365 * 24 * time.Hour
	}
	return 0
}

// AllModels lists every model in migration order
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&Tool{},
		&Blog{},
		&BlogLike{},
		&LaunchSlot{},
		&LaunchBooking{},
		&Vote{},
		&VoteSummary{},
		&VoteBackup{},
		&PremiumAccess{},
	}
}
