// Package launch schedules daily launch windows, tallies votes and freezes
// results once a day is over.
//
// Every mutation on a day runs under the lock "launch:<date>" and inside a
// database transaction. The conditional capacity update and the unique vote
// index hold even when the lock is lost.
package launch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/motheroflaunch/backend/internal/cache"
	"github.com/motheroflaunch/backend/internal/database"
	"github.com/motheroflaunch/backend/internal/email"
	"github.com/motheroflaunch/backend/internal/live"
	"github.com/motheroflaunch/backend/internal/logger"
	"github.com/motheroflaunch/backend/internal/metrics"
	"github.com/motheroflaunch/backend/internal/models"
	"github.com/motheroflaunch/backend/internal/storage"
	"github.com/motheroflaunch/backend/internal/telemetry"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const leaderboardTTL = 48 * time.Hour

// Config holds capacities and booking lead times
type Config struct {
	FreeCapacity    int
	PremiumCapacity int
	FreeLeadDays    int
	PremiumLeadDays int
}

// DefaultConfig returns the stock capacities and lead times
func DefaultConfig() Config {
	return Config{
		FreeCapacity:    10,
		PremiumCapacity: 5,
		FreeLeadDays:    7,
		PremiumLeadDays: 1,
	}
}

// PremiumChecker reports whether a user holds active premium access
type PremiumChecker interface {
	IsPremium(ctx context.Context, userID string, at time.Time) (bool, error)
}

// Service implements the launch scheduler
type Service struct {
	db        *gorm.DB
	locker    cache.Locker
	premium   PremiumChecker
	cfg       Config
	redis     *cache.RedisClient
	publisher live.Publisher
	backups   storage.BackupStore
	mailer    email.Mailer
	now       func() time.Time
}

// Option configures optional collaborators
type Option func(*Service)

// WithRedis keeps a sorted-set leaderboard per day in Redis
func WithRedis(rc *cache.RedisClient) Option {
	return func(s *Service) { s.redis = rc }
}

// WithPublisher sends tally changes to live subscribers
func WithPublisher(p live.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithBackupStore uploads vote snapshots to object storage
func WithBackupStore(b storage.BackupStore) Option {
	return func(s *Service) { s.backups = b }
}

// WithMailer emails makers their final rank
func WithMailer(m email.Mailer) Option {
	return func(s *Service) { s.mailer = m }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a launch service
func NewService(db *gorm.DB, locker cache.Locker, premium PremiumChecker, cfg Config, opts ...Option) *Service {
	s := &Service{
		db:        db,
		locker:    locker,
		premium:   premium,
		cfg:       cfg,
		publisher: live.NopPublisher{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today returns the current UTC launch day
func (s *Service) Today() string {
	return FormatDate(s.now())
}

func (s *Service) todayTime() time.Time {
	t, _ := ParseDate(s.Today())
	return t
}

func (s *Service) withLock(ctx context.Context, op, name string, fn func() error) error {
	start := time.Now()
	release, err := s.locker.Acquire(ctx, name)
	metrics.Get().LockWaitDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("failed to acquire %s: %w", name, err)
	}
	defer release()
	return fn()
}

func (s *Service) withDayLock(ctx context.Context, op, date string, fn func() error) error {
	return s.withLock(ctx, op, "launch:"+date, fn)
}

func (s *Service) withToolLock(ctx context.Context, op, toolID string, fn func() error) error {
	return s.withLock(ctx, op, "launch-tool:"+toolID, fn)
}

func (s *Service) loadTool(ctx context.Context, toolID string) (*models.Tool, error) {
	var tool models.Tool
	err := s.db.WithContext(ctx).Where("id = ?", toolID).First(&tool).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrToolNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tool, nil
}

// GetOrCreateSlot returns the slot for date, creating it with the configured
// capacities on first use
func (s *Service) GetOrCreateSlot(ctx context.Context, date string) (*models.LaunchSlot, error) {
	day, err := ParseDate(date)
	if err != nil {
		return nil, err
	}
	var slot *models.LaunchSlot
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		slot, err = s.getOrCreateSlot(tx, FormatDate(day))
		return err
	})
	return slot, err
}

func (s *Service) getOrCreateSlot(tx *gorm.DB, date string) (*models.LaunchSlot, error) {
	fresh := models.LaunchSlot{
		Date:            date,
		FreeCapacity:    s.cfg.FreeCapacity,
		PremiumCapacity: s.cfg.PremiumCapacity,
		Status:          models.SlotOpen,
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "date"}},
		DoNothing: true,
	}).Create(&fresh).Error; err != nil {
		return nil, err
	}

	var slot models.LaunchSlot
	if err := tx.Where("date = ?", date).First(&slot).Error; err != nil {
		return nil, err
	}
	return &slot, nil
}

func (s *Service) findSlot(db *gorm.DB, date string) (*models.LaunchSlot, error) {
	var slot models.LaunchSlot
	err := db.Where("date = ?", date).First(&slot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSlotNotFound
	}
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

// SlotAvailability is one day of the booking calendar
type SlotAvailability struct {
	Date             string `json:"date"`
	Status           string `json:"status"`
	FreeCapacity     int    `json:"free_capacity"`
	PremiumCapacity  int    `json:"premium_capacity"`
	FreeRemaining    int    `json:"free_remaining"`
	PremiumRemaining int    `json:"premium_remaining"`
}

// ListSlots returns availability for days starting at from. Days without a
// slot row report the configured capacity.
func (s *Service) ListSlots(ctx context.Context, from string, days int) ([]SlotAvailability, error) {
	if from == "" {
		from = s.Today()
	}
	start, err := ParseDate(from)
	if err != nil {
		return nil, err
	}
	if days <= 0 {
		days = 14
	}
	if days > 60 {
		days = 60
	}
	from = FormatDate(start)
	to := addDays(from, days-1)

	var slots []models.LaunchSlot
	if err := s.db.WithContext(ctx).Where("date >= ? AND date <= ?", from, to).Find(&slots).Error; err != nil {
		return nil, err
	}
	byDate := make(map[string]models.LaunchSlot, len(slots))
	for _, sl := range slots {
		byDate[sl.Date] = sl
	}

	out := make([]SlotAvailability, 0, days)
	for i := 0; i < days; i++ {
		date := addDays(from, i)
		sl, ok := byDate[date]
		if !ok {
			sl = models.LaunchSlot{Date: date, Status: models.SlotOpen, FreeCapacity: s.cfg.FreeCapacity, PremiumCapacity: s.cfg.PremiumCapacity}
		}
		out = append(out, SlotAvailability{
			Date:             date,
			Status:           sl.Status,
			FreeCapacity:     sl.FreeCapacity,
			PremiumCapacity:  sl.PremiumCapacity,
			FreeRemaining:    sl.FreeRemaining(),
			PremiumRemaining: sl.PremiumRemaining(),
		})
	}
	return out, nil
}

// Book reserves date for a tool. The tier is premium when the user holds
// active premium access.
func (s *Service) Book(ctx context.Context, user *models.User, toolID, date string) (*models.LaunchBooking, error) {
	ctx, span := telemetry.StartLaunchSpan(ctx, "book", date)
	tier := models.TierFree
	var booking *models.LaunchBooking

	err := func() error {
		day, err := ParseDate(date)
		if err != nil {
			return err
		}
		date = FormatDate(day)

		tool, err := s.loadTool(ctx, toolID)
		if err != nil {
			return err
		}
		if tool.OwnerID != user.ID && !user.IsAdmin() {
			return ErrNotOwner
		}
		if !tool.IsApproved() {
			return ErrToolNotApproved
		}

		isPremium, err := s.premium.IsPremium(ctx, user.ID, s.now())
		if err != nil {
			return fmt.Errorf("failed to check premium access: %w", err)
		}
		lead := s.cfg.FreeLeadDays
		if isPremium {
			tier = models.TierPremium
			lead = s.cfg.PremiumLeadDays
		}
		if lead < 1 {
			lead = 1
		}
		if daysBetween(s.todayTime(), day) < lead {
			return ErrDateTooSoon
		}

		return s.withToolLock(ctx, "book", toolID, func() error {
			return s.withDayLock(ctx, "book", date, func() error {
				return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
					var active int64
					if err := tx.Model(&models.LaunchBooking{}).
						Where("tool_id = ? AND status = ?", toolID, models.BookingActive).
						Count(&active).Error; err != nil {
						return err
					}
					if active > 0 {
						return ErrAlreadyBooked
					}

					slot, err := s.getOrCreateSlot(tx, date)
					if err != nil {
						return err
					}
					if slot.IsFinalized() {
						return ErrSlotFinalized
					}

					booked, capacity := "free_booked", "free_capacity"
					if tier == models.TierPremium {
						booked, capacity = "premium_booked", "premium_capacity"
					}
					res := tx.Model(&models.LaunchSlot{}).
						Where("id = ? AND "+booked+" < "+capacity, slot.ID).
						UpdateColumn(booked, gorm.Expr(booked+" + 1"))
					if res.Error != nil {
						return res.Error
					}
					if res.RowsAffected == 0 {
						return ErrSlotFull
					}

					b := &models.LaunchBooking{
						SlotID: slot.ID,
						Date:   date,
						ToolID: toolID,
						UserID: user.ID,
						Tier:   tier,
						Status: models.BookingActive,
					}
					if err := tx.Create(b).Error; err != nil {
						if database.IsUniqueViolation(err) {
							return ErrAlreadyBooked
						}
						return err
					}

					if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
						Create(&models.VoteSummary{ToolID: toolID, Date: date}).Error; err != nil {
						return err
					}

					if err := tx.Model(&models.Tool{}).Where("id = ?", toolID).
						Updates(map[string]interface{}{"launch_date": date, "launch_rank": nil}).Error; err != nil {
						return err
					}

					booking = b
					return nil
				})
			})
		})
	}()

	metrics.Get().BookingsTotal.WithLabelValues(tier, resultLabel(err)).Inc()
	telemetry.EndSpan(span, err)
	if err != nil {
		return nil, err
	}

	logger.Log.Info("Launch booked",
		logger.WithToolID(toolID),
		logger.WithUserID(user.ID),
		logger.WithDate(date),
		zap.String("tier", tier),
	)
	return booking, nil
}

// CancelBooking releases a tool's active booking. It is allowed until the
// launch day starts.
func (s *Service) CancelBooking(ctx context.Context, user *models.User, toolID string) error {
	tool, err := s.loadTool(ctx, toolID)
	if err != nil {
		return err
	}
	if tool.OwnerID != user.ID && !user.IsAdmin() {
		return ErrNotOwner
	}
	return s.cancel(ctx, toolID)
}

// ReleaseTool cancels a future booking for a tool that is being removed.
// Bookings whose day has started are left in place.
func (s *Service) ReleaseTool(ctx context.Context, toolID string) error {
	err := s.cancel(ctx, toolID)
	if errors.Is(err, ErrNotBooked) || errors.Is(err, ErrCancelTooLate) {
		return nil
	}
	return err
}

func (s *Service) cancel(ctx context.Context, toolID string) error {
	return s.withToolLock(ctx, "cancel", toolID, func() error {
		var booking models.LaunchBooking
		err := s.db.WithContext(ctx).
			Where("tool_id = ? AND status = ?", toolID, models.BookingActive).
			First(&booking).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotBooked
		}
		if err != nil {
			return err
		}

		day, err := ParseDate(booking.Date)
		if err != nil {
			return err
		}
		if daysBetween(s.todayTime(), day) < 1 {
			return ErrCancelTooLate
		}

		return s.withDayLock(ctx, "cancel", booking.Date, func() error {
			return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
				res := tx.Model(&models.LaunchBooking{}).
					Where("id = ? AND status = ?", booking.ID, models.BookingActive).
					Update("status", models.BookingCanceled)
				if res.Error != nil {
					return res.Error
				}
				if res.RowsAffected == 0 {
					return ErrNotBooked
				}

				booked := "free_booked"
				if booking.Tier == models.TierPremium {
					booked = "premium_booked"
				}
				if err := tx.Model(&models.LaunchSlot{}).
					Where("id = ? AND "+booked+" > 0", booking.SlotID).
					UpdateColumn(booked, gorm.Expr(booked+" - 1")).Error; err != nil {
					return err
				}

				if err := tx.Where("tool_id = ? AND date = ?", toolID, booking.Date).
					Delete(&models.VoteSummary{}).Error; err != nil {
					return err
				}

				return tx.Model(&models.Tool{}).Where("id = ?", toolID).
					Update("launch_date", nil).Error
			})
		})
	})
}

// BookingFor returns the active booking of a tool, if any
func (s *Service) BookingFor(ctx context.Context, toolID string) (*models.LaunchBooking, error) {
	var booking models.LaunchBooking
	err := s.db.WithContext(ctx).
		Where("tool_id = ? AND status = ?", toolID, models.BookingActive).
		First(&booking).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotBooked
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrSlotFull):
		return "full"
	case isDomainError(err):
		return "rejected"
	default:
		return "error"
	}
}

func isDomainError(err error) bool {
	for _, e := range []error{
		ErrInvalidDate, ErrToolNotFound, ErrToolNotApproved, ErrNotOwner, ErrAlreadyBooked,
		ErrNotBooked, ErrDateTooSoon, ErrSlotNotFound, ErrSlotFinalized, ErrCancelTooLate,
		ErrNotLaunchDay, ErrVotingClosed, ErrSelfVote, ErrAlreadyVoted, ErrVoteNotFound,
		ErrDayNotOver, ErrBackupNotFound,
	} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
