package launch

import (
	"context"
	"errors"
	"fmt"

	"github.com/motheroflaunch/backend/internal/email"
	"github.com/motheroflaunch/backend/internal/live"
	"github.com/motheroflaunch/backend/internal/logger"
	"github.com/motheroflaunch/backend/internal/metrics"
	"github.com/motheroflaunch/backend/internal/models"
	"github.com/motheroflaunch/backend/internal/telemetry"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Finalization triggers, used as metric labels
const (
	TriggerManual    = "manual"
	TriggerForced    = "forced"
	TriggerScheduled = "scheduled"
)

// Recount recomputes the day's tallies from the vote rows, repairing any
// drift in the summaries. Finalized days are frozen and refused.
func (s *Service) Recount(ctx context.Context, date string) ([]models.VoteSummary, error) {
	day, err := ParseDate(date)
	if err != nil {
		return nil, err
	}
	date = FormatDate(day)
	ctx, span := telemetry.StartLaunchSpan(ctx, "recount", date)

	var summaries []models.VoteSummary
	err = s.withDayLock(ctx, "recount", date, func() error {
		slot, err := s.findSlot(s.db.WithContext(ctx), date)
		if err != nil {
			return err
		}
		if slot.IsFinalized() {
			return ErrSlotFinalized
		}
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			summaries, err = recount(tx, date)
			return err
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

	logger.Log.Info("Launch day recounted", logger.WithDate(date), zap.Int("tools", len(summaries)))
	return summaries, nil
}

type toolTally struct {
	ToolID string
	Votes  int
}

// recount rewrites vote_summaries.votes for date from the vote rows and
// resyncs the affected tools' totals
func recount(tx *gorm.DB, date string) ([]models.VoteSummary, error) {
	var tallies []toolTally
	if err := tx.Model(&models.Vote{}).
		Select("tool_id, COUNT(*) AS votes").
		Where("date = ?", date).
		Group("tool_id").
		Scan(&tallies).Error; err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(tallies))
	for _, t := range tallies {
		counts[t.ToolID] = t.Votes
	}

	var booked []string
	if err := tx.Model(&models.LaunchBooking{}).
		Where("date = ? AND status = ?", date, models.BookingActive).
		Pluck("tool_id", &booked).Error; err != nil {
		return nil, err
	}
	var summarized []string
	if err := tx.Model(&models.VoteSummary{}).Where("date = ?", date).
		Pluck("tool_id", &summarized).Error; err != nil {
		return nil, err
	}

	ids := unique(booked, summarized, keys(counts))
	for _, id := range ids {
		if err := setSummaryVotes(tx, id, date, counts[id]); err != nil {
			return nil, err
		}
	}
	if err := syncToolTotals(tx, ids); err != nil {
		return nil, err
	}

	var summaries []models.VoteSummary
	err := tx.Where("date = ?", date).Order("votes DESC").Find(&summaries).Error
	return summaries, err
}

func setSummaryVotes(tx *gorm.DB, toolID, date string, votes int) error {
	var summary models.VoteSummary
	err := tx.Where("tool_id = ? AND date = ?", toolID, date).First(&summary).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return tx.Create(&models.VoteSummary{ToolID: toolID, Date: date, Votes: votes}).Error
	}
	if err != nil {
		return err
	}
	return tx.Model(&summary).UpdateColumn("votes", votes).Error
}

// syncToolTotals sets tools.total_votes to the sum of the tool's daily tallies
func syncToolTotals(tx *gorm.DB, toolIDs []string) error {
	for _, id := range toolIDs {
		var total int64
		if err := tx.Model(&models.VoteSummary{}).
			Where("tool_id = ?", id).
			Select("COALESCE(SUM(votes), 0)").
			Scan(&total).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Tool{}).Where("id = ?", id).
			UpdateColumn("total_votes", total).Error; err != nil {
			return err
		}
	}
	return nil
}

// Finalize freezes a finished day: tallies are recounted from the vote rows,
// ranked by votes, then booking time, then name, and written as final.
// Only days before today are accepted unless force is set. Finalizing a
// finalized day returns the stored results.
func (s *Service) Finalize(ctx context.Context, date string, force bool) (*DayResults, error) {
	trigger := TriggerManual
	if force {
		trigger = TriggerForced
	}
	return s.finalize(ctx, date, force, trigger)
}

func (s *Service) finalize(ctx context.Context, date string, force bool, trigger string) (*DayResults, error) {
	day, err := ParseDate(date)
	if err != nil {
		return nil, err
	}
	date = FormatDate(day)
	if !force && daysBetween(day, s.todayTime()) < 1 {
		return nil, ErrDayNotOver
	}

	ctx, span := telemetry.StartLaunchSpan(ctx, "finalize", date)
	var finalized []entryRow
	err = s.withDayLock(ctx, "finalize", date, func() error {
		slot, err := s.findSlot(s.db.WithContext(ctx), date)
		if err != nil {
			return err
		}
		if slot.IsFinalized() {
			return nil
		}

		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if _, err := recount(tx, date); err != nil {
				return err
			}
			rows, err := loadEntries(tx, date)
			if err != nil {
				return err
			}
			sortLive(rows)

			for i, r := range rows {
				rank := i + 1
				if err := tx.Model(&models.VoteSummary{}).
					Where("tool_id = ? AND date = ?", r.ToolID, date).
					Updates(map[string]interface{}{"final_votes": r.Votes, "rank": rank, "finalized": true}).Error; err != nil {
					return err
				}
				if err := tx.Model(&models.Tool{}).Where("id = ?", r.ToolID).
					UpdateColumn("launch_rank", rank).Error; err != nil {
					return err
				}
				rows[i].FinalRank = rank
			}

			now := s.now().UTC()
			res := tx.Model(&models.LaunchSlot{}).
				Where("id = ? AND status = ?", slot.ID, models.SlotOpen).
				Updates(map[string]interface{}{"status": models.SlotFinalized, "finalized_at": now})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("slot %s changed during finalization", date)
			}
			finalized = rows
			return nil
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

	if finalized != nil {
		metrics.Get().FinalizationsTotal.WithLabelValues(trigger).Inc()
		logger.Log.Info("Launch day finalized",
			logger.WithDate(date),
			zap.String("trigger", trigger),
			zap.Int("tools", len(finalized)),
		)
		s.publisher.Publish(live.Event{Type: live.EventFinalized, Date: date})
		s.notifyResults(ctx, date, finalized)
	}

	return s.Results(ctx, date)
}

// FinalizeDue finalizes every open day before today and returns the dates
// it finalized
func (s *Service) FinalizeDue(ctx context.Context) ([]string, error) {
	var dates []string
	if err := s.db.WithContext(ctx).Model(&models.LaunchSlot{}).
		Where("status = ? AND date < ?", models.SlotOpen, s.Today()).
		Order("date ASC").
		Pluck("date", &dates).Error; err != nil {
		return nil, err
	}

	var done []string
	for _, date := range dates {
		if _, err := s.finalize(ctx, date, false, TriggerScheduled); err != nil {
			return done, fmt.Errorf("finalize %s: %w", date, err)
		}
		done = append(done, date)
	}
	return done, nil
}

func (s *Service) notifyResults(ctx context.Context, date string, rows []entryRow) {
	if s.mailer == nil || len(rows) == 0 {
		return
	}

	ownerIDs := make([]string, 0, len(rows))
	for _, r := range rows {
		ownerIDs = append(ownerIDs, r.OwnerID)
	}
	var owners []models.User
	if err := s.db.WithContext(ctx).Where("id IN ?", ownerIDs).Find(&owners).Error; err != nil {
		logger.Log.Warn("Failed to load owners for launch results", logger.WithDate(date), zap.Error(err))
		return
	}
	emails := make(map[string]string, len(owners))
	for _, u := range owners {
		emails[u.ID] = u.Email
	}

	for _, r := range rows {
		to := emails[r.OwnerID]
		if to == "" {
			continue
		}
		r := r
		email.SendAsync(email.TemplateLaunchResults, func(ctx context.Context) error {
			return s.mailer.SendLaunchResults(ctx, to, r.Name, date, r.FinalRank, r.Votes)
		})
	}
}

func keys(m map[string]int) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func unique(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, l := range lists {
		for _, v := range l {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}
