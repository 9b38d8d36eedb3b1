package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/motheroflaunch/backend/internal/models"
	"gorm.io/gorm"
)

// UserFilter narrows the admin user listing
type UserFilter struct {
	Query  string
	Role   string
	Banned *bool
	Limit  int
	Offset int
}

// UserRepository handles all database operations for users
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, userID string) (*models.User, error)
	GetUserBySubject(ctx context.Context, subject string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID string, updates map[string]interface{}) (*models.User, error)
	UsernameTaken(ctx context.Context, username, exceptID string) (bool, error)
	TouchLastActive(ctx context.Context, userID string) error

	ListUsers(ctx context.Context, f UserFilter) ([]models.User, int64, error)
	SetBanned(ctx context.Context, userID string, banned bool) (*models.User, error)
	SetRole(ctx context.Context, userID, role string) (*models.User, error)

	GetTotalUserCount(ctx context.Context) (int64, error)
}

// userRepository implements UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) CreateUser(ctx context.Context, user *models.User) error {
	if user == nil {
		return ErrInvalidInput
	}
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) first(ctx context.Context, query string, args ...interface{}) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where(query, args...).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUser gets a user by ID
func (r *userRepository) GetUser(ctx context.Context, userID string) (*models.User, error) {
	return r.first(ctx, "id = ?", userID)
}

// GetUserBySubject gets the user provisioned for an auth provider subject
func (r *userRepository) GetUserBySubject(ctx context.Context, subject string) (*models.User, error) {
	return r.first(ctx, "auth_subject = ?", subject)
}

// GetUserByEmail gets a user by email (case-insensitive)
func (r *userRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.first(ctx, "LOWER(email) = LOWER(?)", email)
}

// GetUserByUsername gets a user by username (case-insensitive)
func (r *userRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.first(ctx, "LOWER(username) = LOWER(?)", username)
}

// UpdateProfile applies a partial update and returns the reloaded user
func (r *userRepository) UpdateProfile(ctx context.Context, userID string, updates map[string]interface{}) (*models.User, error) {
	if len(updates) == 0 {
		return nil, ErrInvalidInput
	}
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrUserNotFound
	}
	return r.GetUser(ctx, userID)
}

func (r *userRepository) UsernameTaken(ctx context.Context, username, exceptID string) (bool, error) {
	var n int64
	q := r.db.WithContext(ctx).Unscoped().Model(&models.User{}).Where("LOWER(username) = LOWER(?)", username)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	err := q.Count(&n).Error
	return n > 0, err
}

func (r *userRepository) TouchLastActive(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).
		UpdateColumn("last_active_at", gorm.Expr("CURRENT_TIMESTAMP")).Error
}

// ListUsers returns a page of users, newest first, and the filtered total
func (r *userRepository) ListUsers(ctx context.Context, f UserFilter) ([]models.User, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.User{})
	if f.Query != "" {
		like := "%" + strings.ToLower(f.Query) + "%"
		q = q.Where("(LOWER(username) LIKE ? OR LOWER(email) LIKE ? OR LOWER(display_name) LIKE ?)", like, like, like)
	}
	if f.Role != "" {
		q = q.Where("role = ?", f.Role)
	}
	if f.Banned != nil {
		q = q.Where("is_banned = ?", *f.Banned)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var users []models.User
	err := q.Order("created_at DESC").Limit(f.Limit).Offset(f.Offset).Find(&users).Error
	return users, total, err
}

func (r *userRepository) SetBanned(ctx context.Context, userID string, banned bool) (*models.User, error) {
	return r.UpdateProfile(ctx, userID, map[string]interface{}{"is_banned": banned})
}

func (r *userRepository) SetRole(ctx context.Context, userID, role string) (*models.User, error) {
	if role != models.RoleUser && role != models.RoleAdmin {
		return nil, ErrInvalidInput
	}
	return r.UpdateProfile(ctx, userID, map[string]interface{}{"role": role})
}

// GetTotalUserCount returns the number of non-deleted users
func (r *userRepository) GetTotalUserCount(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Count(&count).Error
	return count, err
}
