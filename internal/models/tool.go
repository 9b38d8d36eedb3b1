package models

import (
	"time"

	"gorm.io/gorm"
)

// Tool moderation states
const (
	ToolPending  = "pending"
	ToolApproved = "approved"
	ToolRejected = "rejected"
)

// Pricing models a tool may declare
var ToolPricing = []string{"free", "freemium", "paid"}

// Tool is an app or product submitted to the marketplace
type Tool struct {
	ID          string   `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OwnerID     string   `gorm:"not null;index" json:"owner_id"`
	Owner       *User    `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	Name        string   `gorm:"not null" json:"name"`
	Slug        string   `gorm:"uniqueIndex;not null" json:"slug"`
	Tagline     string   `json:"tagline"`
	Description string   `gorm:"type:text" json:"description"`
	WebsiteURL  string   `gorm:"not null" json:"website_url"`
	Category    string   `gorm:"index" json:"category"`
	Tags        []string `gorm:"type:text;serializer:json" json:"tags"`
	LogoURL     string   `json:"logo_url"`
	Pricing     string   `gorm:"default:free" json:"pricing"`

	Status          string `gorm:"not null;default:pending;index" json:"status"`
	RejectionReason string `json:"rejection_reason,omitempty"`

	ViewCount  int64 `gorm:"default:0" json:"view_count"`
	TotalVotes int   `gorm:"default:0" json:"total_votes"`

	// Set while the tool holds an active launch booking
	LaunchDate *string `gorm:"index" json:"launch_date,omitempty"`
	// Set when the launch day is finalized
	LaunchRank *int `json:"launch_rank,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate assigns a UUID when the caller did not set one
func (t *Tool) BeforeCreate(tx *gorm.DB) error {
	ensureID(&t.ID)
	if t.Status == "" {
		t.Status = ToolPending
	}
	return nil
}

// IsApproved reports whether the tool passed moderation
func (t *Tool) IsApproved() bool {
	return t.Status == ToolApproved
}

// IsValidPricing reports whether p is a known pricing model
func IsValidPricing(p string) bool {
	for _, v := range ToolPricing {
		if v == p {
			return true
		}
	}
	return false
}
