package database

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/motheroflaunch/backend/internal/config"
	"github.com/motheroflaunch/backend/internal/logger"
	"github.com/motheroflaunch/backend/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DB holds the database connection
var DB *gorm.DB

// Initialize creates and configures the database connection
func Initialize(cfg *config.Config) error {
	gormLogger := gormlogger.Default.LogMode(gormlogger.Warn)
	if cfg.Environment == "development" {
		gormLogger = gormlogger.Default.LogMode(gormlogger.Info)
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN()), &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	DB = db
	logger.Log.Info("Database connected")

	return nil
}

// Migrate runs auto-migration for all models and creates query indexes
func Migrate(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database not initialized")
	}

	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	logger.Log.Info("Database migrations completed")
	return nil
}

// createIndexes adds the composite indexes the listing queries rely on.
// The statements are portable between Postgres and SQLite.
func createIndexes(db *gorm.DB) error {
	statements := []string{
		"CREATE INDEX IF NOT EXISTS idx_tools_status_created ON tools (status, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_tools_status_votes ON tools (status, total_votes DESC)",
		"CREATE INDEX IF NOT EXISTS idx_blogs_status_published ON blogs (status, published_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_launch_bookings_date_status ON launch_bookings (date, status)",
		"CREATE INDEX IF NOT EXISTS idx_launch_bookings_tool_status ON launch_bookings (tool_id, status)",
		// A tool holds at most one active booking
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_launch_bookings_active_tool ON launch_bookings (tool_id) WHERE status = 'active'",
		"CREATE INDEX IF NOT EXISTS idx_vote_summaries_date_votes ON vote_summaries (date, votes DESC)",
		"CREATE INDEX IF NOT EXISTS idx_premium_accesses_user_status ON premium_accesses (user_id, status)",
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection
func Close() error {
	if DB == nil {
		return nil
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

// Health checks database connectivity
func Health() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}

	return sqlDB.Ping()
}

// IsUniqueViolation reports whether err came from a unique constraint.
// GORM only translates driver errors when TranslateError is enabled, so the
// driver messages are matched as well.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "SQLSTATE 23505")
}
