package models

import (
	"time"

	"gorm.io/gorm"
)

// DateLayout is the layout of launch day keys (UTC calendar days)
const DateLayout = "2006-01-02"

// Slot states
const (
	SlotOpen      = "open"
	SlotFinalized = "finalized"
)

// Booking tiers and states
const (
	TierFree        = "free"
	TierPremium     = "premium"
	BookingActive   = "active"
	BookingCanceled = "canceled"
)

// LaunchSlot is one launch day with separate free and premium capacity
type LaunchSlot struct {
	ID              string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Date            string     `gorm:"uniqueIndex;not null" json:"date"`
	FreeCapacity    int        `gorm:"not null" json:"free_capacity"`
	PremiumCapacity int        `gorm:"not null" json:"premium_capacity"`
	FreeBooked      int        `gorm:"not null;default:0" json:"free_booked"`
	PremiumBooked   int        `gorm:"not null;default:0" json:"premium_booked"`
	Status          string     `gorm:"not null;default:open" json:"status"`
	FinalizedAt     *time.Time `json:"finalized_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// BeforeCreate assigns a UUID when the caller did not set one
func (s *LaunchSlot) BeforeCreate(tx *gorm.DB) error {
	ensureID(&s.ID)
	if s.Status == "" {
		s.Status = SlotOpen
	}
	return nil
}

// IsFinalized reports whether the day's results are frozen
func (s *LaunchSlot) IsFinalized() bool {
	return s.Status == SlotFinalized
}

// FreeRemaining returns unbooked free capacity
func (s *LaunchSlot) FreeRemaining() int {
	return max(s.FreeCapacity-s.FreeBooked, 0)
}

// PremiumRemaining returns unbooked premium capacity
func (s *LaunchSlot) PremiumRemaining() int {
	return max(s.PremiumCapacity-s.PremiumBooked, 0)
}

// LaunchBooking reserves a launch day for a tool
type LaunchBooking struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	SlotID    string    `gorm:"not null;index" json:"slot_id"`
	Date      string    `gorm:"not null;index" json:"date"`
	ToolID    string    `gorm:"not null;index" json:"tool_id"`
	Tool      *Tool     `gorm:"foreignKey:ToolID" json:"tool,omitempty"`
	UserID    string    `gorm:"not null;index" json:"user_id"`
	Tier      string    `gorm:"not null" json:"tier"`
	Status    string    `gorm:"not null;default:active;index" json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns a UUID when the caller did not set one
func (b *LaunchBooking) BeforeCreate(tx *gorm.DB) error {
	ensureID(&b.ID)
	if b.Status == "" {
		b.Status = BookingActive
	}
	return nil
}

// Vote is one user's upvote for a tool on its launch day
type Vote struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ToolID    string    `gorm:"not null;uniqueIndex:idx_votes_unique" json:"tool_id"`
	UserID    string    `gorm:"not null;uniqueIndex:idx_votes_unique;index" json:"user_id"`
	Date      string    `gorm:"not null;uniqueIndex:idx_votes_unique;index" json:"date"`
	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate assigns a UUID when the caller did not set one
func (v *Vote) BeforeCreate(tx *gorm.DB) error {
	ensureID(&v.ID)
	return nil
}

// VoteSummary is the per-tool tally for a launch day. Votes tracks the live
// count; FinalVotes and Rank are written once the day is finalized.
type VoteSummary struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ToolID     string    `gorm:"not null;uniqueIndex:idx_vote_summaries_unique" json:"tool_id"`
	Date       string    `gorm:"not null;uniqueIndex:idx_vote_summaries_unique;index" json:"date"`
	Votes      int       `gorm:"not null;default:0" json:"votes"`
	FinalVotes int       `gorm:"not null;default:0" json:"final_votes"`
	Rank       int       `gorm:"not null;default:0" json:"rank"`
	Finalized  bool      `gorm:"not null;default:false" json:"finalized"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// BeforeCreate assigns a UUID when the caller did not set one
func (s *VoteSummary) BeforeCreate(tx *gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

// VoteBackup is a JSON snapshot of one day's votes and tallies
type VoteBackup struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Date      string    `gorm:"not null;index" json:"date"`
	CreatedBy string    `json:"created_by"`
	VoteCount int       `json:"vote_count"`
	ObjectKey string    `json:"object_key,omitempty"`
	Payload   []byte    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate assigns a UUID when the caller did not set one
func (b *VoteBackup) BeforeCreate(tx *gorm.DB) error {
	ensureID(&b.ID)
	return nil
}
