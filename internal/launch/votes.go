package launch

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/motheroflaunch/backend/internal/database"
	"github.com/motheroflaunch/backend/internal/live"
	"github.com/motheroflaunch/backend/internal/logger"
	"github.com/motheroflaunch/backend/internal/metrics"
	"github.com/motheroflaunch/backend/internal/models"
	"github.com/motheroflaunch/backend/internal/telemetry"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// VoteResult is the tally after a vote or retraction
type VoteResult struct {
	ToolID string `json:"tool_id"`
	Date   string `json:"date"`
	Votes  int    `json:"votes"`
	Voted  bool   `json:"voted"`
}

// CastVote records user's vote for a tool launching today
func (s *Service) CastVote(ctx context.Context, user *models.User, toolID string) (*VoteResult, error) {
	result, err := s.mutateVote(ctx, user, toolID, true)
	metrics.Get().VotesTotal.WithLabelValues("cast", resultLabel(err)).Inc()
	return result, err
}

// RetractVote removes user's vote for a tool launching today
func (s *Service) RetractVote(ctx context.Context, user *models.User, toolID string) (*VoteResult, error) {
	result, err := s.mutateVote(ctx, user, toolID, false)
	metrics.Get().VotesTotal.WithLabelValues("retract", resultLabel(err)).Inc()
	return result, err
}

func (s *Service) mutateVote(ctx context.Context, user *models.User, toolID string, cast bool) (*VoteResult, error) {
	today := s.Today()
	op := "retract"
	if cast {
		op = "vote"
	}
	ctx, span := telemetry.StartLaunchSpan(ctx, op, today)

	var result *VoteResult
	err := func() error {
		tool, err := s.loadTool(ctx, toolID)
		if err != nil {
			return err
		}
		if tool.LaunchDate == nil || *tool.LaunchDate != today {
			return ErrNotLaunchDay
		}
		if cast && tool.OwnerID == user.ID {
			return ErrSelfVote
		}

		return s.withDayLock(ctx, op, today, func() error {
			slot, err := s.findSlot(s.db.WithContext(ctx), today)
			if errors.Is(err, ErrSlotNotFound) {
				return ErrNotLaunchDay
			}
			if err != nil {
				return err
			}
			if slot.IsFinalized() {
				return ErrVotingClosed
			}

			var votes int
			err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
				delta := 1
				if cast {
					if err := s.insertVote(tx, toolID, user.ID, today); err != nil {
						return err
					}
				} else {
					res := tx.Where("tool_id = ? AND user_id = ? AND date = ?", toolID, user.ID, today).
						Delete(&models.Vote{})
					if res.Error != nil {
						return res.Error
					}
					if res.RowsAffected == 0 {
						return ErrVoteNotFound
					}
					delta = -1
				}

				var err error
				votes, err = adjustSummary(tx, toolID, today, delta)
				if err != nil {
					return err
				}
				return tx.Model(&models.Tool{}).Where("id = ?", toolID).
					UpdateColumn("total_votes", gorm.Expr("total_votes + ?", delta)).Error
			})
			if err != nil {
				return err
			}

			// Still under the day lock, so leaderboard updates apply in commit order
			s.bumpLeaderboard(ctx, today, toolID, cast)
			result = &VoteResult{ToolID: toolID, Date: today, Votes: votes, Voted: cast}
			return nil
		})
	}()

	telemetry.EndSpan(span, err)
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(live.Event{Type: live.EventVote, Date: today, ToolID: toolID, Votes: result.Votes})
	return result, nil
}

func (s *Service) insertVote(tx *gorm.DB, toolID, userID, date string) error {
	var existing int64
	if err := tx.Model(&models.Vote{}).
		Where("tool_id = ? AND user_id = ? AND date = ?", toolID, userID, date).
		Count(&existing).Error; err != nil {
		return err
	}
	if existing > 0 {
		return ErrAlreadyVoted
	}
	if err := tx.Create(&models.Vote{ToolID: toolID, UserID: userID, Date: date}).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return ErrAlreadyVoted
		}
		return err
	}
	return nil
}

// adjustSummary applies delta to the day's tally for a tool and returns the
// new count. A missing summary row is created.
func adjustSummary(tx *gorm.DB, toolID, date string, delta int) (int, error) {
	res := tx.Model(&models.VoteSummary{}).
		Where("tool_id = ? AND date = ?", toolID, date).
		UpdateColumn("votes", gorm.Expr("votes + ?", delta))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		summary := models.VoteSummary{ToolID: toolID, Date: date, Votes: max(delta, 0)}
		if err := tx.Create(&summary).Error; err != nil {
			return 0, err
		}
		return summary.Votes, nil
	}

	var summary models.VoteSummary
	if err := tx.Where("tool_id = ? AND date = ?", toolID, date).First(&summary).Error; err != nil {
		return 0, err
	}
	return summary.Votes, nil
}

// VotedTools returns the IDs of tools userID voted for on date
func (s *Service) VotedTools(ctx context.Context, userID, date string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&models.Vote{}).
		Where("user_id = ? AND date = ?", userID, date).
		Pluck("tool_id", &ids).Error
	return ids, err
}

// Entry is one tool on a launch day leaderboard
type Entry struct {
	ToolID   string    `json:"tool_id"`
	Name     string    `json:"name"`
	Slug     string    `json:"slug"`
	Tagline  string    `json:"tagline"`
	LogoURL  string    `json:"logo_url"`
	OwnerID  string    `json:"owner_id"`
	Tier     string    `json:"tier"`
	Votes    int       `json:"votes"`
	Rank     int       `json:"rank"`
	BookedAt time.Time `json:"booked_at"`
}

// DayResults is the leaderboard of one launch day. Ranks are provisional
// until Status is finalized.
type DayResults struct {
	Date        string     `json:"date"`
	Status      string     `json:"status"`
	FinalizedAt *time.Time `json:"finalized_at,omitempty"`
	Entries     []Entry    `json:"entries"`
}

type entryRow struct {
	ToolID     string
	Name       string
	Slug       string
	Tagline    string
	LogoURL    string
	OwnerID    string
	Tier       string
	BookedAt   time.Time
	Votes      int
	FinalVotes int
	FinalRank  int
}

func loadEntries(db *gorm.DB, date string) ([]entryRow, error) {
	var rows []entryRow
	err := db.Table("launch_bookings AS b").
		Select(`b.tool_id AS tool_id, t.name AS name, t.slug AS slug, t.tagline AS tagline,
			t.logo_url AS logo_url, t.owner_id AS owner_id, b.tier AS tier, b.created_at AS booked_at,
			COALESCE(s.votes, 0) AS votes, COALESCE(s.final_votes, 0) AS final_votes, COALESCE(s.rank, 0) AS final_rank`).
		Joins("JOIN tools t ON t.id = b.tool_id AND t.deleted_at IS NULL").
		Joins("LEFT JOIN vote_summaries s ON s.tool_id = b.tool_id AND s.date = b.date").
		Where("b.date = ? AND b.status = ?", date, models.BookingActive).
		Scan(&rows).Error
	return rows, err
}

// sortLive orders by votes desc, then booking time, then name
func sortLive(rows []entryRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Votes != b.Votes {
			return a.Votes > b.Votes
		}
		if !a.BookedAt.Equal(b.BookedAt) {
			return a.BookedAt.Before(b.BookedAt)
		}
		return a.Name < b.Name
	})
}

// TodayResults returns the live leaderboard for the current day
func (s *Service) TodayResults(ctx context.Context) (*DayResults, error) {
	return s.Results(ctx, s.Today())
}

// Results returns the leaderboard of date. Finalized days report frozen
// counts; open days report live tallies, served from the Redis leaderboard
// when one is configured.
func (s *Service) Results(ctx context.Context, date string) (*DayResults, error) {
	day, err := ParseDate(date)
	if err != nil {
		return nil, err
	}
	date = FormatDate(day)
	db := s.db.WithContext(ctx)

	out := &DayResults{Date: date, Status: models.SlotOpen, Entries: []Entry{}}
	slot, err := s.findSlot(db, date)
	switch {
	case errors.Is(err, ErrSlotNotFound):
		return out, nil
	case err != nil:
		return nil, err
	}
	out.Status = slot.Status
	out.FinalizedAt = slot.FinalizedAt

	rows, err := loadEntries(db, date)
	if err != nil {
		return nil, err
	}

	if slot.IsFinalized() {
		for i := range rows {
			rows[i].Votes = rows[i].FinalVotes
		}
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].FinalRank < rows[j].FinalRank })
	} else {
		if tallies := s.liveVotes(ctx, date); tallies != nil {
			for i := range rows {
				if v, ok := tallies[rows[i].ToolID]; ok {
					rows[i].Votes = v
				}
			}
		}
		sortLive(rows)
	}

	for i, r := range rows {
		rank := i + 1
		if slot.IsFinalized() && r.FinalRank > 0 {
			rank = r.FinalRank
		}
		out.Entries = append(out.Entries, Entry{
			ToolID:   r.ToolID,
			Name:     r.Name,
			Slug:     r.Slug,
			Tagline:  r.Tagline,
			LogoURL:  r.LogoURL,
			OwnerID:  r.OwnerID,
			Tier:     r.Tier,
			Votes:    r.Votes,
			Rank:     rank,
			BookedAt: r.BookedAt,
		})
	}
	return out, nil
}

func leaderboardKey(date string) string {
	return "leaderboard:" + date
}

// liveVotes reads the day's sorted set. On a miss it warms the set and
// returns nil so the caller keeps the database tallies. It also returns nil
// when Redis is unavailable.
func (s *Service) liveVotes(ctx context.Context, date string) map[string]int {
	if s.redis == nil {
		return nil
	}
	key := leaderboardKey(date)
	top, err := s.redis.ZTop(ctx, key, 1000)
	if err != nil {
		logger.Log.Warn("Failed to read leaderboard", logger.WithDate(date), zap.Error(err))
		return nil
	}
	if len(top) == 0 {
		s.warmLeaderboard(ctx, date)
		return nil
	}

	out := make(map[string]int, len(top))
	for _, z := range top {
		if member, ok := z.Member.(string); ok {
			out[member] = int(z.Score)
		}
	}
	return out
}

func (s *Service) bumpLeaderboard(ctx context.Context, date, toolID string, up bool) {
	if s.redis == nil {
		return
	}
	key := leaderboardKey(date)
	exists, err := s.redis.Exists(ctx, key)
	if err != nil {
		logger.Log.Warn("Failed to update leaderboard", logger.WithDate(date), zap.Error(err))
		return
	}
	if !exists {
		s.rebuildLeaderboard(ctx, date)
		return
	}
	delta := 1.0
	if !up {
		delta = -1
	}
	if _, err := s.redis.ZIncrBy(ctx, key, delta, toolID); err != nil {
		logger.Log.Warn("Failed to update leaderboard", logger.WithDate(date), zap.Error(err))
	}
}

// warmLeaderboard seeds the day's sorted set with every booked tool. It
// runs under the day lock so a vote committing meanwhile cannot be
// overwritten by older counts.
func (s *Service) warmLeaderboard(ctx context.Context, date string) {
	err := s.withDayLock(ctx, "warm", date, func() error {
		key := leaderboardKey(date)
		exists, err := s.redis.Exists(ctx, key)
		if err != nil || exists {
			return err
		}
		rows, err := loadEntries(s.db.WithContext(ctx), date)
		if err != nil {
			return err
		}
		scores := make(map[string]float64, len(rows))
		for _, r := range rows {
			scores[r.ToolID] = float64(r.Votes)
		}
		return s.redis.ZReplace(ctx, key, scores, leaderboardTTL)
	})
	if err != nil {
		logger.Log.Warn("Failed to warm leaderboard", logger.WithDate(date), zap.Error(err))
	}
}

func (s *Service) rebuildLeaderboard(ctx context.Context, date string) {
	if s.redis == nil {
		return
	}
	var summaries []models.VoteSummary
	if err := s.db.WithContext(ctx).Where("date = ?", date).Find(&summaries).Error; err != nil {
		logger.Log.Warn("Failed to load summaries for leaderboard", logger.WithDate(date), zap.Error(err))
		return
	}
	scores := make(map[string]float64, len(summaries))
	for _, sum := range summaries {
		v := sum.Votes
		if sum.Finalized {
			v = sum.FinalVotes
		}
		scores[sum.ToolID] = float64(v)
	}
	if err := s.redis.ZReplace(ctx, leaderboardKey(date), scores, leaderboardTTL); err != nil {
		logger.Log.Warn("Failed to rebuild leaderboard", logger.WithDate(date), zap.Error(err))
	}
}
