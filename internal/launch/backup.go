package launch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/motheroflaunch/backend/internal/live"
	"github.com/motheroflaunch/backend/internal/logger"
	"github.com/motheroflaunch/backend/internal/models"
	"github.com/motheroflaunch/backend/internal/telemetry"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Snapshot is the JSON payload of a vote backup
type Snapshot struct {
	Date      string            `json:"date"`
	TakenAt   time.Time         `json:"taken_at"`
	Summaries []SnapshotSummary `json:"summaries"`
	Votes     []SnapshotVote    `json:"votes"`
}

// SnapshotSummary is one tool's tally at backup time
type SnapshotSummary struct {
	ToolID string `json:"tool_id"`
	Votes  int    `json:"votes"`
}

// SnapshotVote is one vote row at backup time
type SnapshotVote struct {
	ToolID    string    `json:"tool_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// RecoverResult reports what a recovery restored
type RecoverResult struct {
	BackupID  string `json:"backup_id"`
	Date      string `json:"date"`
	Votes     int    `json:"votes"`
	Summaries int    `json:"summaries"`
}

// Backup snapshots the day's votes and tallies. The snapshot is stored in
// the database and, when a backup store is configured, uploaded as JSON.
func (s *Service) Backup(ctx context.Context, date, actor string) (*models.VoteBackup, error) {
	day, err := ParseDate(date)
	if err != nil {
		return nil, err
	}
	date = FormatDate(day)
	ctx, span := telemetry.StartLaunchSpan(ctx, "backup", date)

	var backup *models.VoteBackup
	err = s.withDayLock(ctx, "backup", date, func() error {
		db := s.db.WithContext(ctx)

		var summaries []models.VoteSummary
		if err := db.Where("date = ?", date).Find(&summaries).Error; err != nil {
			return err
		}
		var votes []models.Vote
		if err := db.Where("date = ?", date).Order("created_at ASC").Find(&votes).Error; err != nil {
			return err
		}

		snap := Snapshot{Date: date, TakenAt: s.now().UTC()}
		for _, sum := range summaries {
			snap.Summaries = append(snap.Summaries, SnapshotSummary{ToolID: sum.ToolID, Votes: sum.Votes})
		}
		for _, v := range votes {
			snap.Votes = append(snap.Votes, SnapshotVote{ToolID: v.ToolID, UserID: v.UserID, CreatedAt: v.CreatedAt})
		}
		payload, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("failed to encode snapshot: %w", err)
		}

		backup = &models.VoteBackup{
			Date:      date,
			CreatedBy: actor,
			VoteCount: len(votes),
			Payload:   payload,
		}
		return db.Create(backup).Error
	})
	telemetry.EndSpan(span, err)
	if err != nil {
		return nil, err
	}

	if s.backups != nil {
		res, err := s.backups.UploadBackup(ctx, date, backup.ID, backup.Payload)
		if err != nil {
			logger.Log.Warn("Failed to upload vote backup, kept in database only",
				logger.WithDate(date), zap.String("backup_id", backup.ID), zap.Error(err))
		} else {
			backup.ObjectKey = res.Key
			if err := s.db.WithContext(ctx).Model(backup).UpdateColumn("object_key", res.Key).Error; err != nil {
				logger.Log.Warn("Failed to record backup object key", zap.String("backup_id", backup.ID), zap.Error(err))
			}
		}
	}

	logger.Log.Info("Launch day backed up",
		logger.WithDate(date),
		zap.String("backup_id", backup.ID),
		zap.Int("votes", backup.VoteCount),
		zap.String("actor", actor),
	)
	return backup, nil
}

// ListBackups returns the backups of a day, newest first, without payloads
func (s *Service) ListBackups(ctx context.Context, date string) ([]models.VoteBackup, error) {
	day, err := ParseDate(date)
	if err != nil {
		return nil, err
	}
	var backups []models.VoteBackup
	err = s.db.WithContext(ctx).
		Omit("payload").
		Where("date = ?", FormatDate(day)).
		Order("created_at DESC").
		Find(&backups).Error
	return backups, err
}

// Recover replaces the day's votes and tallies with a backup's snapshot.
// Finalized days are frozen and refused.
func (s *Service) Recover(ctx context.Context, backupID string) (*RecoverResult, error) {
	var backup models.VoteBackup
	err := s.db.WithContext(ctx).Where("id = ?", backupID).First(&backup).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBackupNotFound
	}
	if err != nil {
		return nil, err
	}

	var snap Snapshot
	if err := json.Unmarshal(backup.Payload, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode backup %s: %w", backupID, err)
	}
	date := backup.Date
	ctx, span := telemetry.StartLaunchSpan(ctx, "recover", date)

	err = s.withDayLock(ctx, "recover", date, func() error {
		slot, err := s.findSlot(s.db.WithContext(ctx), date)
		if err != nil {
			return err
		}
		if slot.IsFinalized() {
			return ErrSlotFinalized
		}

		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var previous []string
			if err := tx.Model(&models.VoteSummary{}).Where("date = ?", date).
				Pluck("tool_id", &previous).Error; err != nil {
				return err
			}

			if err := tx.Where("date = ?", date).Delete(&models.Vote{}).Error; err != nil {
				return err
			}
			if err := tx.Where("date = ?", date).Delete(&models.VoteSummary{}).Error; err != nil {
				return err
			}

			if len(snap.Votes) > 0 {
				votes := make([]models.Vote, 0, len(snap.Votes))
				for _, v := range snap.Votes {
					votes = append(votes, models.Vote{ToolID: v.ToolID, UserID: v.UserID, Date: date, CreatedAt: v.CreatedAt})
				}
				if err := tx.CreateInBatches(&votes, 200).Error; err != nil {
					return err
				}
			}

			restored := make([]string, 0, len(snap.Summaries))
			for _, sum := range snap.Summaries {
				if err := tx.Create(&models.VoteSummary{ToolID: sum.ToolID, Date: date, Votes: sum.Votes}).Error; err != nil {
					return err
				}
				restored = append(restored, sum.ToolID)
			}

			return syncToolTotals(tx, unique(previous, restored))
		})
		if err != nil {
			return err
		}
		s.rebuildLeaderboard(ctx, date)
		return nil
	})
	telemetry.EndSpan(span, err)
	if err != nil {
		return nil, err
	}

	for _, sum := range snap.Summaries {
		s.publisher.Publish(live.Event{Type: live.EventVote, Date: date, ToolID: sum.ToolID, Votes: sum.Votes})
	}

	logger.Log.Info("Launch day recovered from backup",
		logger.WithDate(date),
		zap.String("backup_id", backupID),
		zap.Int("votes", len(snap.Votes)),
	)
	return &RecoverResult{
		BackupID:  backupID,
		Date:      date,
		Votes:     len(snap.Votes),
		Summaries: len(snap.Summaries),
	}, nil
}
