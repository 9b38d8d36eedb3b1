package models

import (
	"time"

	"gorm.io/gorm"
)

// Blog states
const (
	BlogDraft     = "draft"
	BlogPending   = "pending"
	BlogPublished = "published"
	BlogRejected  = "rejected"
)

// Blog is a user-written post. QualityScore and the derived reading stats are
// recomputed on every write.
type Blog struct {
	ID            string   `gorm:"primaryKey;type:varchar(36)" json:"id"`
	AuthorID      string   `gorm:"not null;index" json:"author_id"`
	Author        *User    `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Title         string   `gorm:"not null" json:"title"`
	Slug          string   `gorm:"uniqueIndex;not null" json:"slug"`
	Excerpt       string   `gorm:"type:text" json:"excerpt"`
	Content       string   `gorm:"type:text" json:"content,omitempty"`
	CoverImageURL string   `json:"cover_image_url"`
	Tags          []string `gorm:"type:text;serializer:json" json:"tags"`

	Status          string `gorm:"not null;default:draft;index" json:"status"`
	RejectionReason string `json:"rejection_reason,omitempty"`
	IsFeatured      bool   `gorm:"default:false" json:"is_featured"`

	QualityScore   float64 `gorm:"default:0" json:"quality_score"`
	QualityTier    string  `json:"quality_tier"`
	WordCount      int     `json:"word_count"`
	ReadingMinutes int     `json:"reading_minutes"`

	ViewCount int64 `gorm:"default:0" json:"view_count"`
	LikeCount int   `gorm:"default:0" json:"like_count"`

	PublishedAt *time.Time     `json:"published_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate assigns a UUID when the caller did not set one
func (b *Blog) BeforeCreate(tx *gorm.DB) error {
	ensureID(&b.ID)
	if b.Status == "" {
		b.Status = BlogDraft
	}
	return nil
}

// BlogLike records that a user liked a blog post
type BlogLike struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	BlogID    string    `gorm:"not null;uniqueIndex:idx_blog_likes_unique" json:"blog_id"`
	UserID    string    `gorm:"not null;uniqueIndex:idx_blog_likes_unique" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate assigns a UUID when the caller did not set one
func (l *BlogLike) BeforeCreate(tx *gorm.DB) error {
	ensureID(&l.ID)
	return nil
}
