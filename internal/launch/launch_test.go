package launch

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/motheroflaunch/backend/internal/cache"
	"github.com/motheroflaunch/backend/internal/database/dbtest"
	"github.com/motheroflaunch/backend/internal/live"
	"github.com/motheroflaunch/backend/internal/models"
	"github.com/motheroflaunch/backend/internal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

type fakePremium map[string]bool

func (f fakePremium) IsPremium(ctx context.Context, userID string, at time.Time) (bool, error) {
	return f[userID], nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []live.Event
}

func (p *recordingPublisher) Publish(e live.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type LaunchSuite struct {
	suite.Suite
	ctx     context.Context
	db      *gorm.DB
	mr      *miniredis.Miniredis
	rc      *cache.RedisClient
	premium fakePremium
	pub     *recordingPublisher
	now     time.Time
	svc     *Service

	maker  models.User
	voters []models.User
	admin  models.User
}

func TestLaunchSuite(t *testing.T) {
	suite.Run(t, new(LaunchSuite))
}

func (s *LaunchSuite) SetupTest() {
	s.ctx = context.Background()
	s.db = dbtest.New(s.T())
	s.mr = miniredis.RunT(s.T())
	client := redis.NewClient(&redis.Options{Addr: s.mr.Addr()})
	s.T().Cleanup(func() { _ = client.Close() })
	s.rc = cache.Wrap(client)
	s.premium = fakePremium{}
	s.pub = &recordingPublisher{}
	s.now = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	cfg := Config{FreeCapacity: 2, PremiumCapacity: 1, FreeLeadDays: 7, PremiumLeadDays: 1}
	s.svc = NewService(s.db, cache.NewLocalLocker(), s.premium, cfg,
		WithRedis(s.rc),
		WithPublisher(s.pub),
		WithClock(func() time.Time { return s.now }),
	)

	s.maker = s.newUser("maker", models.RoleUser)
	s.admin = s.newUser("admin", models.RoleAdmin)
	s.voters = nil
	for i := 0; i < 3; i++ {
		s.voters = append(s.voters, s.newUser(fmt.Sprintf("voter%d", i), models.RoleUser))
	}
}

func (s *LaunchSuite) newUser(name, role string) models.User {
	u := models.User{
		AuthSubject: "sub-" + name,
		Email:       name + "@example.com",
		Username:    name,
		DisplayName: name,
		Role:        role,
	}
	s.Require().NoError(s.db.Create(&u).Error)
	return u
}

func (s *LaunchSuite) newTool(owner models.User, name string) models.Tool {
	t := models.Tool{
		OwnerID:    owner.ID,
		Name:       name,
		Slug:       name,
		WebsiteURL: "https://" + name + ".example.com",
		Status:     models.ToolApproved,
	}
	s.Require().NoError(s.db.Create(&t).Error)
	return t
}

// launchDay is the first day a free booking may target
func (s *LaunchSuite) launchDay() string {
	return FormatDate(s.now.AddDate(0, 0, 7))
}

func (s *LaunchSuite) setToday(date string) {
	d, err := ParseDate(date)
	s.Require().NoError(err)
	s.now = d.Add(10 * time.Hour)
}

func (s *LaunchSuite) reloadTool(id string) models.Tool {
	var t models.Tool
	s.Require().NoError(s.db.Where("id = ?", id).First(&t).Error)
	return t
}

func (s *LaunchSuite) slot(date string) models.LaunchSlot {
	var sl models.LaunchSlot
	s.Require().NoError(s.db.Where("date = ?", date).First(&sl).Error)
	return sl
}

func (s *LaunchSuite) TestBookFreeSlot() {
	tool := s.newTool(s.maker, "alpha")
	day := s.launchDay()

	b, err := s.svc.Book(s.ctx, &s.maker, tool.ID, day)
	s.Require().NoError(err)
	s.Equal(models.TierFree, b.Tier)
	s.Equal(day, b.Date)

	sl := s.slot(day)
	s.Equal(1, sl.FreeBooked)
	s.Equal(0, sl.PremiumBooked)

	got := s.reloadTool(tool.ID)
	s.Require().NotNil(got.LaunchDate)
	s.Equal(day, *got.LaunchDate)

	var summaries int64
	s.db.Model(&models.VoteSummary{}).Where("tool_id = ? AND date = ?", tool.ID, day).Count(&summaries)
	s.Equal(int64(1), summaries)
}

func (s *LaunchSuite) TestBookRejectsTooSoonForFreeTier() {
	tool := s.newTool(s.maker, "alpha")
	_, err := s.svc.Book(s.ctx, &s.maker, tool.ID, FormatDate(s.now.AddDate(0, 0, 3)))
	s.ErrorIs(err, ErrDateTooSoon)

	_, err = s.svc.Book(s.ctx, &s.maker, tool.ID, FormatDate(s.now))
	s.ErrorIs(err, ErrDateTooSoon)
}

func (s *LaunchSuite) TestPremiumBooksTomorrowFromPremiumPool() {
	s.premium[s.maker.ID] = true
	tool := s.newTool(s.maker, "alpha")
	other := s.newTool(s.maker, "beta")
	tomorrow := FormatDate(s.now.AddDate(0, 0, 1))

	b, err := s.svc.Book(s.ctx, &s.maker, tool.ID, tomorrow)
	s.Require().NoError(err)
	s.Equal(models.TierPremium, b.Tier)
	s.Equal(1, s.slot(tomorrow).PremiumBooked)

	// Premium pool holds one tool and never spills into the free pool
	_, err = s.svc.Book(s.ctx, &s.maker, other.ID, tomorrow)
	s.ErrorIs(err, ErrSlotFull)
	s.Equal(0, s.slot(tomorrow).FreeBooked)
}

func (s *LaunchSuite) TestSlotCapacityIsEnforced() {
	day := s.launchDay()
	for i := 0; i < 2; i++ {
		tool := s.newTool(s.maker, fmt.Sprintf("tool%d", i))
		_, err := s.svc.Book(s.ctx, &s.maker, tool.ID, day)
		s.Require().NoError(err)
	}
	extra := s.newTool(s.maker, "extra")
	_, err := s.svc.Book(s.ctx, &s.maker, extra.ID, day)
	s.ErrorIs(err, ErrSlotFull)

	sl := s.slot(day)
	s.Equal(2, sl.FreeBooked)
	s.Nil(s.reloadTool(extra.ID).LaunchDate)
}

func (s *LaunchSuite) TestBookChecksOwnershipAndApproval() {
	tool := s.newTool(s.maker, "alpha")
	day := s.launchDay()

	_, err := s.svc.Book(s.ctx, &s.voters[0], tool.ID, day)
	s.ErrorIs(err, ErrNotOwner)

	pending := models.Tool{OwnerID: s.maker.ID, Name: "pending", Slug: "pending", WebsiteURL: "https://p.example.com"}
	s.Require().NoError(s.db.Create(&pending).Error)
	_, err = s.svc.Book(s.ctx, &s.maker, pending.ID, day)
	s.ErrorIs(err, ErrToolNotApproved)

	_, err = s.svc.Book(s.ctx, &s.maker, "missing", day)
	s.ErrorIs(err, ErrToolNotFound)

	_, err = s.svc.Book(s.ctx, &s.maker, tool.ID, "05/08/2026")
	s.ErrorIs(err, ErrInvalidDate)

	// Admins may book on behalf of makers
	_, err = s.svc.Book(s.ctx, &s.admin, tool.ID, day)
	s.NoError(err)
}

func (s *LaunchSuite) TestToolBooksOnlyOnce() {
	tool := s.newTool(s.maker, "alpha")
	day := s.launchDay()

	_, err := s.svc.Book(s.ctx, &s.maker, tool.ID, day)
	s.Require().NoError(err)
	_, err = s.svc.Book(s.ctx, &s.maker, tool.ID, FormatDate(s.now.AddDate(0, 0, 9)))
	s.ErrorIs(err, ErrAlreadyBooked)
}

func (s *LaunchSuite) TestCancelReleasesCapacity() {
	tool := s.newTool(s.maker, "alpha")
	day := s.launchDay()
	_, err := s.svc.Book(s.ctx, &s.maker, tool.ID, day)
	s.Require().NoError(err)

	s.ErrorIs(s.svc.CancelBooking(s.ctx, &s.voters[0], tool.ID), ErrNotOwner)
	s.Require().NoError(s.svc.CancelBooking(s.ctx, &s.maker, tool.ID))

	s.Equal(0, s.slot(day).FreeBooked)
	s.Nil(s.reloadTool(tool.ID).LaunchDate)
	_, err = s.svc.BookingFor(s.ctx, tool.ID)
	s.ErrorIs(err, ErrNotBooked)

	var summaries int64
	s.db.Model(&models.VoteSummary{}).Where("tool_id = ?", tool.ID).Count(&summaries)
	s.Zero(summaries)

	s.ErrorIs(s.svc.CancelBooking(s.ctx, &s.maker, tool.ID), ErrNotBooked)

	// The tool may book again after canceling
	_, err = s.svc.Book(s.ctx, &s.maker, tool.ID, day)
	s.NoError(err)
}

func (s *LaunchSuite) TestCancelOnLaunchDayIsRefused() {
	tool := s.newTool(s.maker, "alpha")
	day := s.launchDay()
	_, err := s.svc.Book(s.ctx, &s.maker, tool.ID, day)
	s.Require().NoError(err)

	s.setToday(day)
	s.ErrorIs(s.svc.CancelBooking(s.ctx, &s.maker, tool.ID), ErrCancelTooLate)
	s.NoError(s.svc.ReleaseTool(s.ctx, tool.ID))
	_, err = s.svc.BookingFor(s.ctx, tool.ID)
	s.NoError(err)
}

func (s *LaunchSuite) TestListSlots() {
	tool := s.newTool(s.maker, "alpha")
	day := s.launchDay()
	_, err := s.svc.Book(s.ctx, &s.maker, tool.ID, day)
	s.Require().NoError(err)

	slots, err := s.svc.ListSlots(s.ctx, "", 10)
	s.Require().NoError(err)
	s.Require().Len(slots, 10)
	s.Equal(s.svc.Today(), slots[0].Date)
	s.Equal(2, slots[0].FreeRemaining)
	s.Equal(day, slots[7].Date)
	s.Equal(1, slots[7].FreeRemaining)
	s.Equal(1, slots[7].PremiumRemaining)

	_, err = s.svc.ListSlots(s.ctx, "not-a-date", 3)
	s.ErrorIs(err, ErrInvalidDate)
}

// bookAndOpen books tools for the launch day and moves the clock onto it
func (s *LaunchSuite) bookAndOpen(names ...string) (string, []models.Tool) {
	day := s.launchDay()
	var tools []models.Tool
	for _, n := range names {
		t := s.newTool(s.maker, n)
		_, err := s.svc.Book(s.ctx, &s.maker, t.ID, day)
		s.Require().NoError(err)
		tools = append(tools, t)
	}
	s.setToday(day)
	return day, tools
}

func (s *LaunchSuite) TestVoting() {
	day, tools := s.bookAndOpen("alpha", "beta")
	alpha := tools[0]

	res, err := s.svc.CastVote(s.ctx, &s.voters[0], alpha.ID)
	s.Require().NoError(err)
	s.Equal(1, res.Votes)
	s.True(res.Voted)

	_, err = s.svc.CastVote(s.ctx, &s.voters[0], alpha.ID)
	s.ErrorIs(err, ErrAlreadyVoted)

	_, err = s.svc.CastVote(s.ctx, &s.maker, alpha.ID)
	s.ErrorIs(err, ErrSelfVote)

	res, err = s.svc.CastVote(s.ctx, &s.voters[1], alpha.ID)
	s.Require().NoError(err)
	s.Equal(2, res.Votes)
	s.Equal(2, s.reloadTool(alpha.ID).TotalVotes)

	res, err = s.svc.RetractVote(s.ctx, &s.voters[1], alpha.ID)
	s.Require().NoError(err)
	s.Equal(1, res.Votes)
	s.False(res.Voted)
	s.Equal(1, s.reloadTool(alpha.ID).TotalVotes)

	_, err = s.svc.RetractVote(s.ctx, &s.voters[1], alpha.ID)
	s.ErrorIs(err, ErrVoteNotFound)

	voted, err := s.svc.VotedTools(s.ctx, s.voters[0].ID, day)
	s.Require().NoError(err)
	s.Equal([]string{alpha.ID}, voted)

	score, err := s.mr.ZScore(leaderboardKey(day), alpha.ID)
	s.Require().NoError(err)
	s.Equal(float64(1), score)
	s.Contains(s.pub.types(), live.EventVote)
}

func (s *LaunchSuite) TestVoteOutsideLaunchDay() {
	tool := s.newTool(s.maker, "alpha")
	_, err := s.svc.Book(s.ctx, &s.maker, tool.ID, s.launchDay())
	s.Require().NoError(err)

	_, err = s.svc.CastVote(s.ctx, &s.voters[0], tool.ID)
	s.ErrorIs(err, ErrNotLaunchDay)

	unbooked := s.newTool(s.maker, "beta")
	s.setToday(s.launchDay())
	_, err = s.svc.CastVote(s.ctx, &s.voters[0], unbooked.ID)
	s.ErrorIs(err, ErrNotLaunchDay)
}

func (s *LaunchSuite) TestResultsOrdering() {
	// The free pool holds two tools, so the third launches as premium
	day := s.launchDay()
	var tools []models.Tool
	for _, n := range []string{"alpha", "beta", "gamma"} {
		if n == "gamma" {
			s.premium[s.maker.ID] = true
		}
		t := s.newTool(s.maker, n)
		_, err := s.svc.Book(s.ctx, &s.maker, t.ID, day)
		s.Require().NoError(err)
		tools = append(tools, t)
	}
	s.setToday(day)
	beta, gamma := tools[1], tools[2]

	for _, v := range s.voters[:2] {
		_, err := s.svc.CastVote(s.ctx, &v, gamma.ID)
		s.Require().NoError(err)
	}
	_, err := s.svc.CastVote(s.ctx, &s.voters[2], beta.ID)
	s.Require().NoError(err)

	res, err := s.svc.Results(s.ctx, day)
	s.Require().NoError(err)
	s.Equal(models.SlotOpen, res.Status)
	s.Require().Len(res.Entries, 3)
	s.Equal("gamma", res.Entries[0].Name)
	s.Equal(2, res.Entries[0].Votes)
	s.Equal("beta", res.Entries[1].Name)
	// Ties fall back to booking order
	s.Equal("alpha", res.Entries[2].Name)
	s.Equal(3, res.Entries[2].Rank)

	// A lost leaderboard is rebuilt from the database
	s.mr.FlushAll()
	res, err = s.svc.TodayResults(s.ctx)
	s.Require().NoError(err)
	s.Equal("gamma", res.Entries[0].Name)
	s.True(s.mr.Exists(leaderboardKey(day)))

	empty, err := s.svc.Results(s.ctx, "2030-01-01")
	s.Require().NoError(err)
	s.Empty(empty.Entries)
}

func (s *LaunchSuite) TestFinalize() {
	day, tools := s.bookAndOpen("alpha", "beta")
	alpha, beta := tools[0], tools[1]
	_, err := s.svc.CastVote(s.ctx, &s.voters[0], beta.ID)
	s.Require().NoError(err)

	_, err = s.svc.Finalize(s.ctx, day, false)
	s.ErrorIs(err, ErrDayNotOver)

	s.setToday(addDays(day, 1))
	res, err := s.svc.Finalize(s.ctx, day, false)
	s.Require().NoError(err)
	s.Equal(models.SlotFinalized, res.Status)
	s.NotNil(res.FinalizedAt)
	s.Require().Len(res.Entries, 2)
	s.Equal(beta.ID, res.Entries[0].ToolID)
	s.Equal(1, res.Entries[0].Rank)
	s.Equal(alpha.ID, res.Entries[1].ToolID)
	s.Equal(2, res.Entries[1].Rank)

	rank := s.reloadTool(beta.ID).LaunchRank
	s.Require().NotNil(rank)
	s.Equal(1, *rank)

	again, err := s.svc.Finalize(s.ctx, day, false)
	s.Require().NoError(err)
	s.Equal(res.Entries, again.Entries)
	s.Contains(s.pub.types(), live.EventFinalized)

	s.setToday(day)
	_, err = s.svc.CastVote(s.ctx, &s.voters[1], alpha.ID)
	s.ErrorIs(err, ErrVotingClosed)
	_, err = s.svc.Recount(s.ctx, day)
	s.ErrorIs(err, ErrSlotFinalized)

	// A launched tool keeps its booking and cannot launch again
	s.setToday(addDays(day, 1))
	_, err = s.svc.Book(s.ctx, &s.maker, alpha.ID, addDays(day, 10))
	s.ErrorIs(err, ErrAlreadyBooked)
}

func (s *LaunchSuite) TestForcedFinalizeClosesVotingEarly() {
	day, tools := s.bookAndOpen("alpha")
	_, err := s.svc.Finalize(s.ctx, day, true)
	s.Require().NoError(err)

	_, err = s.svc.CastVote(s.ctx, &s.voters[0], tools[0].ID)
	s.ErrorIs(err, ErrVotingClosed)
}

func (s *LaunchSuite) TestFinalizeDue() {
	day, _ := s.bookAndOpen("alpha")
	done, err := s.svc.FinalizeDue(s.ctx)
	s.Require().NoError(err)
	s.Empty(done)

	s.setToday(addDays(day, 2))
	done, err = s.svc.FinalizeDue(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{day}, done)
	sl := s.slot(day)
	s.True(sl.IsFinalized())

	done, err = s.svc.FinalizeDue(s.ctx)
	s.Require().NoError(err)
	s.Empty(done)
}

func (s *LaunchSuite) TestRecountRepairsDrift() {
	day, tools := s.bookAndOpen("alpha")
	alpha := tools[0]
	for _, v := range s.voters[:2] {
		_, err := s.svc.CastVote(s.ctx, &v, alpha.ID)
		s.Require().NoError(err)
	}

	s.Require().NoError(s.db.Model(&models.VoteSummary{}).
		Where("tool_id = ? AND date = ?", alpha.ID, day).UpdateColumn("votes", 40).Error)
	s.Require().NoError(s.db.Model(&models.Tool{}).Where("id = ?", alpha.ID).UpdateColumn("total_votes", 40).Error)

	summaries, err := s.svc.Recount(s.ctx, day)
	s.Require().NoError(err)
	s.Require().Len(summaries, 1)
	s.Equal(2, summaries[0].Votes)
	s.Equal(2, s.reloadTool(alpha.ID).TotalVotes)

	score, err := s.mr.ZScore(leaderboardKey(day), alpha.ID)
	s.Require().NoError(err)
	s.Equal(float64(2), score)
}

func (s *LaunchSuite) TestBackupAndRecover() {
	day, tools := s.bookAndOpen("alpha", "beta")
	alpha, beta := tools[0], tools[1]
	_, err := s.svc.CastVote(s.ctx, &s.voters[0], alpha.ID)
	s.Require().NoError(err)
	_, err = s.svc.CastVote(s.ctx, &s.voters[1], alpha.ID)
	s.Require().NoError(err)

	backup, err := s.svc.Backup(s.ctx, day, s.admin.ID)
	s.Require().NoError(err)
	s.Equal(2, backup.VoteCount)

	// Votes after the snapshot are rolled back by recovery
	_, err = s.svc.CastVote(s.ctx, &s.voters[2], beta.ID)
	s.Require().NoError(err)
	_, err = s.svc.RetractVote(s.ctx, &s.voters[0], alpha.ID)
	s.Require().NoError(err)

	list, err := s.svc.ListBackups(s.ctx, day)
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Empty(list[0].Payload)

	res, err := s.svc.Recover(s.ctx, backup.ID)
	s.Require().NoError(err)
	s.Equal(2, res.Votes)

	s.Equal(2, s.reloadTool(alpha.ID).TotalVotes)
	s.Equal(0, s.reloadTool(beta.ID).TotalVotes)

	var votes int64
	s.db.Model(&models.Vote{}).Where("date = ?", day).Count(&votes)
	s.Equal(int64(2), votes)

	results, err := s.svc.Results(s.ctx, day)
	s.Require().NoError(err)
	s.Equal(alpha.ID, results.Entries[0].ToolID)
	s.Equal(2, results.Entries[0].Votes)

	_, err = s.svc.Recover(s.ctx, "missing")
	s.ErrorIs(err, ErrBackupNotFound)
}

type fakeBackupStore struct {
	payloads map[string][]byte
}

func (f *fakeBackupStore) UploadBackup(ctx context.Context, date, backupID string, payload []byte) (*storage.UploadResult, error) {
	key := "backups/" + date + "/" + backupID + ".json"
	f.payloads[key] = payload
	return &storage.UploadResult{Key: key}, nil
}

func TestBackupUploadsSnapshot(t *testing.T) {
	db := dbtest.New(t)
	store := &fakeBackupStore{payloads: map[string][]byte{}}
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	svc := NewService(db, cache.NewLocalLocker(), fakePremium{}, DefaultConfig(),
		WithBackupStore(store),
		WithClock(func() time.Time { return now }),
	)
	_, err := svc.GetOrCreateSlot(context.Background(), "2026-05-01")
	require.NoError(t, err)

	backup, err := svc.Backup(context.Background(), "2026-05-01", "admin")
	require.NoError(t, err)
	assert.Equal(t, "backups/2026-05-01/"+backup.ID+".json", backup.ObjectKey)
	require.Contains(t, store.payloads, backup.ObjectKey)
	assert.Contains(t, string(store.payloads[backup.ObjectKey]), `"date":"2026-05-01"`)

	var stored models.VoteBackup
	require.NoError(t, db.Where("id = ?", backup.ID).First(&stored).Error)
	assert.Equal(t, backup.ObjectKey, stored.ObjectKey)
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-05-01")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, d.Location())
	assert.Equal(t, "2026-05-01", FormatDate(d))

	for _, bad := range []string{"", "2026-5-1", "2026-02-30", "tomorrow"} {
		_, err := ParseDate(bad)
		assert.ErrorIs(t, err, ErrInvalidDate, bad)
	}

	assert.Equal(t, "2026-03-01", addDays("2026-02-28", 1))
	assert.Equal(t, 7, daysBetween(mustDate(t, "2026-05-01"), mustDate(t, "2026-05-08")))
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDate(s)
	require.NoError(t, err)
	return d
}

func TestResultLabel(t *testing.T) {
	assert.Equal(t, "success", resultLabel(nil))
	assert.Equal(t, "full", resultLabel(ErrSlotFull))
	assert.Equal(t, "rejected", resultLabel(fmt.Errorf("wrap: %w", ErrSelfVote)))
	assert.Equal(t, "error", resultLabel(assert.AnError))
}

func (s *LaunchSuite) TestColdLeaderboardIsWarmedFromDatabase() {
	day, tools := s.bookAndOpen("alpha", "beta")
	alpha, beta := tools[0], tools[1]
	_, err := s.svc.CastVote(s.ctx, &s.voters[0], alpha.ID)
	s.Require().NoError(err)

	s.mr.FlushAll()
	res, err := s.svc.Results(s.ctx, day)
	s.Require().NoError(err)
	s.Equal(1, res.Entries[0].Votes)

	score, err := s.mr.ZScore(leaderboardKey(day), alpha.ID)
	s.Require().NoError(err)
	s.Equal(1.0, score)
	score, err = s.mr.ZScore(leaderboardKey(day), beta.ID)
	s.Require().NoError(err)
	s.Zero(score)

	// A set rebuilt by a vote since the read started is left alone
	s.mr.FlushAll()
	_, err = s.mr.ZAdd(leaderboardKey(day), 2, alpha.ID)
	s.Require().NoError(err)
	s.svc.warmLeaderboard(s.ctx, day)
	score, err = s.mr.ZScore(leaderboardKey(day), alpha.ID)
	s.Require().NoError(err)
	s.Equal(2.0, score)
}

func (s *LaunchSuite) TestConcurrentBookingsRespectCapacity() {
	day := s.launchDay()
	var tools []models.Tool
	for i := 0; i < 6; i++ {
		tools = append(tools, s.newTool(s.maker, fmt.Sprintf("tool%d", i)))
	}

	var wg sync.WaitGroup
	errs := make([]error, len(tools))
	for i := range tools {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.svc.Book(s.ctx, &s.maker, tools[i].ID, day)
		}(i)
	}
	wg.Wait()

	booked := 0
	for _, err := range errs {
		if err == nil {
			booked++
			continue
		}
		s.ErrorIs(err, ErrSlotFull)
	}
	s.Equal(2, booked)

	sl := s.slot(day)
	s.Equal(2, sl.FreeBooked)
	var active int64
	s.Require().NoError(s.db.Model(&models.LaunchBooking{}).
		Where("date = ? AND status = ?", day, models.BookingActive).Count(&active).Error)
	s.Equal(int64(2), active)
}

func (s *LaunchSuite) TestConcurrentVotesMatchTallies() {
	day, tools := s.bookAndOpen("alpha")
	alpha := tools[0]

	var voters []models.User
	for i := 0; i < 10; i++ {
		voters = append(voters, s.newUser(fmt.Sprintf("crowd%d", i), models.RoleUser))
	}
	s.mr.FlushAll()

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted, duplicates := 0, 0
	for i := range voters {
		for attempt := 0; attempt < 2; attempt++ {
			wg.Add(2)
			go func(u models.User) {
				defer wg.Done()
				_, err := s.svc.CastVote(s.ctx, &u, alpha.ID)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					accepted++
				case assert.ErrorIs(s.T(), err, ErrAlreadyVoted):
					duplicates++
				}
			}(voters[i])
			// Reads race the votes and may warm the leaderboard
			go func() {
				defer wg.Done()
				_, err := s.svc.Results(s.ctx, day)
				assert.NoError(s.T(), err)
			}()
		}
	}
	wg.Wait()

	s.Equal(10, accepted)
	s.Equal(10, duplicates)

	var rows int64
	s.Require().NoError(s.db.Model(&models.Vote{}).Where("tool_id = ? AND date = ?", alpha.ID, day).Count(&rows).Error)
	s.Equal(int64(10), rows)
	s.Equal(10, s.reloadTool(alpha.ID).TotalVotes)

	var summary models.VoteSummary
	s.Require().NoError(s.db.Where("tool_id = ? AND date = ?", alpha.ID, day).First(&summary).Error)
	s.Equal(10, summary.Votes)

	score, err := s.mr.ZScore(leaderboardKey(day), alpha.ID)
	s.Require().NoError(err)
	s.Equal(10.0, score)

	res, err := s.svc.TodayResults(s.ctx)
	s.Require().NoError(err)
	s.Equal(10, res.Entries[0].Votes)
}
