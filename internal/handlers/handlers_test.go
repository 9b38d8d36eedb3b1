package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/motheroflaunch/backend/internal/cache"
	"github.com/motheroflaunch/backend/internal/database/dbtest"
	"github.com/motheroflaunch/backend/internal/launch"
	"github.com/motheroflaunch/backend/internal/middleware"
	"github.com/motheroflaunch/backend/internal/models"
	"github.com/motheroflaunch/backend/internal/premium"
	"github.com/motheroflaunch/backend/internal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

const testSecret = "handlers-test-secret"

type fakeUploader struct {
	mu      sync.Mutex
	folders []string
}

func (f *fakeUploader) UploadImage(ctx context.Context, file multipart.File, header *multipart.FileHeader, folder, ownerID string) (*storage.UploadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.folders = append(f.folders, folder)
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("%s/%s/%s", folder, ownerID, header.Filename)
	return &storage.UploadResult{Key: key, URL: "https://cdn.example.com/" + key, Size: int64(len(data))}, nil
}

func (f *fakeUploader) DeleteFile(ctx context.Context, key string) error {
	return nil
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []string
}

func (m *recordingMailer) record(kind, to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, kind+":"+to)
	return nil
}

func (m *recordingMailer) SendToolApproved(_ context.Context, to, _, _ string) error {
	return m.record("tool_approved", to)
}

func (m *recordingMailer) SendToolRejected(_ context.Context, to, _, _ string) error {
	return m.record("tool_rejected", to)
}

func (m *recordingMailer) SendBlogPublished(_ context.Context, to, _, _ string) error {
	return m.record("blog_published", to)
}

func (m *recordingMailer) SendLaunchResults(_ context.Context, to, _, _ string, _, _ int) error {
	return m.record("launch_results", to)
}

func (m *recordingMailer) messages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sent...)
}

type HandlersSuite struct {
	suite.Suite
	db       *gorm.DB
	mr       *miniredis.Miniredis
	router   *gin.Engine
	h        *Handlers
	uploader *fakeUploader
	mailer   *recordingMailer
	now      time.Time

	maker models.User
	voter models.User
	admin models.User
}

func TestHandlersSuite(t *testing.T) {
	suite.Run(t, new(HandlersSuite))
}

func (s *HandlersSuite) SetupTest() {
	s.db = dbtest.New(s.T())
	s.mr = miniredis.RunT(s.T())
	client := redis.NewClient(&redis.Options{Addr: s.mr.Addr()})
	s.T().Cleanup(func() { _ = client.Close() })
	rc := cache.Wrap(client)

	s.now = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return s.now }

	premiumSvc := premium.NewService(s.db).WithClock(clock)
	launches := launch.NewService(s.db, cache.NewLocalLocker(), premiumSvc, launch.DefaultConfig(),
		launch.WithRedis(rc),
		launch.WithClock(clock),
	)

	s.uploader = &fakeUploader{}
	s.mailer = &recordingMailer{}
	s.h = NewHandlers(s.db, launches, premiumSvc)
	s.h.now = clock
	s.h.SetRedis(rc)
	s.h.SetUploader(s.uploader)
	s.h.SetMailer(s.mailer)

	gin.SetMode(gin.TestMode)
	s.router = gin.New()
	s.h.RegisterRoutes(s.router, middleware.NewAuthenticator(testSecret, "", s.h.Users()), rc)

	s.maker = s.newUser("maker", models.RoleUser)
	s.voter = s.newUser("voter", models.RoleUser)
	s.admin = s.newUser("admin", models.RoleAdmin)
}

func (s *HandlersSuite) newUser(name, role string) models.User {
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

func (s *HandlersSuite) token(u models.User) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.Claims{
		Email: u.Email,
		Name:  u.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.AuthSubject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	raw, err := token.SignedString([]byte(testSecret))
	s.Require().NoError(err)
	return raw
}

func (s *HandlersSuite) do(method, path string, as *models.User, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if as != nil {
		req.Header.Set("Authorization", "Bearer "+s.token(*as))
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *HandlersSuite) decode(w *httptest.ResponseRecorder, v interface{}) {
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func (s *HandlersSuite) errorCode(w *httptest.ResponseRecorder) string {
	var body struct {
		Code string `json:"code"`
	}
	s.decode(w, &body)
	return body.Code
}

func (s *HandlersSuite) approvedTool(owner models.User, name string) models.Tool {
	t := models.Tool{
		OwnerID:    owner.ID,
		Name:       name,
		Slug:       name,
		WebsiteURL: "https://" + name + ".example.com",
		Tags:       []string{},
		Status:     models.ToolApproved,
	}
	s.Require().NoError(s.db.Create(&t).Error)
	return t
}

func (s *HandlersSuite) TestHealth() {
	w := s.do(http.MethodGet, "/health", nil, nil)
	s.Equal(http.StatusOK, w.Code)

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	s.decode(w, &body)
	s.Equal("ok", body.Status)
	s.Equal("ok", body.Checks["database"])
	s.Equal("ok", body.Checks["redis"])
}

func (s *HandlersSuite) TestToolModerationLifecycle() {
	w := s.do(http.MethodPost, "/api/v1/tools", &s.maker, gin.H{
		"name":        "Rocket Notes",
		"website_url": "https://rocket.example.com",
		"tagline":     "Notes at launch speed",
		"tags":        []string{"Productivity", "notes", "notes"},
		"pricing":     "freemium",
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Tool models.Tool `json:"tool"`
	}
	s.decode(w, &created)
	s.Equal("rocket-notes", created.Tool.Slug)
	s.Equal(models.ToolPending, created.Tool.Status)
	s.Equal([]string{"productivity", "notes"}, created.Tool.Tags)

	// Pending tools are hidden from everyone but the owner and admins
	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/api/v1/tools/rocket-notes", nil, nil).Code)
	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/api/v1/tools/rocket-notes", &s.voter, nil).Code)
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/api/v1/tools/rocket-notes", &s.maker, nil).Code)

	w = s.do(http.MethodPost, "/api/v1/admin/tools/"+created.Tool.ID+"/approve", &s.admin, nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.Eventually(func() bool {
		for _, m := range s.mailer.messages() {
			if m == "tool_approved:maker@example.com" {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)

	s.Equal(http.StatusOK, s.do(http.MethodGet, "/api/v1/tools/rocket-notes", nil, nil).Code)

	w = s.do(http.MethodGet, "/api/v1/tools?tag=notes", nil, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var page struct {
		Items []models.Tool `json:"items"`
		Total int64         `json:"total"`
	}
	s.decode(w, &page)
	s.Equal(int64(1), page.Total)

	// Renaming an approved tool sends it back to review
	w = s.do(http.MethodPut, "/api/v1/tools/"+created.Tool.ID, &s.maker, gin.H{"name": "Rocket Notes Pro"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var updated struct {
		Tool models.Tool `json:"tool"`
	}
	s.decode(w, &updated)
	s.Equal(models.ToolPending, updated.Tool.Status)
	s.Equal("rocket-notes-pro", updated.Tool.Slug)

	// Tagline edits keep the approval
	tool := s.approvedTool(s.maker, "steady")
	w = s.do(http.MethodPut, "/api/v1/tools/"+tool.ID, &s.maker, gin.H{"tagline": "Still approved"})
	s.Require().Equal(http.StatusOK, w.Code)
	s.decode(w, &updated)
	s.Equal(models.ToolApproved, updated.Tool.Status)
}

func (s *HandlersSuite) TestToolValidation() {
	w := s.do(http.MethodPost, "/api/v1/tools", &s.maker, gin.H{"name": "No Site"})
	s.Equal(http.StatusUnprocessableEntity, w.Code)

	w = s.do(http.MethodPost, "/api/v1/tools", &s.maker, gin.H{"name": "Bad", "website_url": "ftp://x"})
	s.Equal(http.StatusUnprocessableEntity, w.Code)

	w = s.do(http.MethodPost, "/api/v1/tools", &s.maker, gin.H{"name": "Bad", "website_url": "https://x.dev", "pricing": "gratis"})
	s.Equal(http.StatusUnprocessableEntity, w.Code)

	s.Equal(http.StatusUnauthorized, s.do(http.MethodPost, "/api/v1/tools", nil, gin.H{"name": "x"}).Code)
	s.Equal(http.StatusUnprocessableEntity, s.do(http.MethodGet, "/api/v1/tools?sort=random", nil, nil).Code)
}

func (s *HandlersSuite) TestOnlyOwnerManagesTool() {
	tool := s.approvedTool(s.maker, "owned")

	w := s.do(http.MethodPut, "/api/v1/tools/"+tool.ID, &s.voter, gin.H{"tagline": "mine now"})
	s.Equal(http.StatusForbidden, w.Code)
	s.Equal(http.StatusForbidden, s.do(http.MethodDelete, "/api/v1/tools/"+tool.ID, &s.voter, nil).Code)

	// Admins may edit anything
	s.Equal(http.StatusOK, s.do(http.MethodPut, "/api/v1/tools/"+tool.ID, &s.admin, gin.H{"tagline": "curated"}).Code)

	s.Equal(http.StatusOK, s.do(http.MethodDelete, "/api/v1/tools/"+tool.ID, &s.maker, nil).Code)
	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/api/v1/tools/owned", nil, nil).Code)
}

func (s *HandlersSuite) TestDeleteToolReleasesBooking() {
	tool := s.approvedTool(s.maker, "leaving")
	day := s.now.AddDate(0, 0, 7).Format(models.DateLayout)

	w := s.do(http.MethodPost, "/api/v1/tools/"+tool.ID+"/launch", &s.maker, gin.H{"date": day})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	s.Require().Equal(http.StatusOK, s.do(http.MethodDelete, "/api/v1/tools/"+tool.ID, &s.maker, nil).Code)

	var active int64
	s.Require().NoError(s.db.Model(&models.LaunchBooking{}).
		Where("tool_id = ? AND status = ?", tool.ID, models.BookingActive).Count(&active).Error)
	s.Zero(active)

	var slot models.LaunchSlot
	s.Require().NoError(s.db.Where("date = ?", day).First(&slot).Error)
	s.Zero(slot.FreeBooked)
}

func (s *HandlersSuite) TestLaunchDayFlow() {
	tool := s.approvedTool(s.maker, "launcher")
	day := s.now.AddDate(0, 0, 7).Format(models.DateLayout)

	w := s.do(http.MethodPost, "/api/v1/tools/"+tool.ID+"/launch", &s.maker, gin.H{"date": day})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/api/v1/tools/"+tool.ID+"/launch", &s.maker, gin.H{"date": day})
	s.Equal(http.StatusConflict, w.Code)
	s.Equal("ALREADY_EXISTS", s.errorCode(w))

	tooSoon := s.approvedTool(s.maker, "hasty")
	w = s.do(http.MethodPost, "/api/v1/tools/"+tooSoon.ID+"/launch", &s.maker, gin.H{"date": s.now.AddDate(0, 0, 2).Format(models.DateLayout)})
	s.Equal(http.StatusUnprocessableEntity, w.Code)

	w = s.do(http.MethodGet, "/api/v1/launches/slots?from="+day+"&days=1", nil, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var slots struct {
		Slots []launch.SlotAvailability `json:"slots"`
	}
	s.decode(w, &slots)
	s.Require().Len(slots.Slots, 1)
	s.Equal(launch.DefaultConfig().FreeCapacity-1, slots.Slots[0].FreeRemaining)

	// Voting only opens on the launch day
	w = s.do(http.MethodPost, "/api/v1/tools/"+tool.ID+"/vote", &s.voter, nil)
	s.Equal(http.StatusConflict, w.Code)

	s.now = s.now.AddDate(0, 0, 7)

	w = s.do(http.MethodPost, "/api/v1/tools/"+tool.ID+"/vote", &s.voter, nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var vote launch.VoteResult
	s.decode(w, &vote)
	s.Equal(1, vote.Votes)
	s.True(vote.Voted)

	w = s.do(http.MethodPost, "/api/v1/tools/"+tool.ID+"/vote", &s.voter, nil)
	s.Equal(http.StatusConflict, w.Code)
	s.Equal("ALREADY_EXISTS", s.errorCode(w))

	s.Equal(http.StatusForbidden, s.do(http.MethodPost, "/api/v1/tools/"+tool.ID+"/vote", &s.maker, nil).Code)

	w = s.do(http.MethodGet, "/api/v1/launches/today", &s.voter, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var today struct {
		Results launch.DayResults `json:"results"`
		Voted   []string          `json:"voted"`
	}
	s.decode(w, &today)
	s.Equal(day, today.Results.Date)
	s.Require().Len(today.Results.Entries, 1)
	s.Equal(1, today.Results.Entries[0].Votes)
	s.Equal([]string{tool.ID}, today.Voted)

	// Cancel is refused once the day has started
	s.Equal(http.StatusConflict, s.do(http.MethodDelete, "/api/v1/tools/"+tool.ID+"/launch", &s.maker, nil).Code)

	w = s.do(http.MethodPost, "/api/v1/admin/launches/"+day+"/finalize", &s.admin, nil)
	s.Equal(http.StatusConflict, w.Code)

	w = s.do(http.MethodPost, "/api/v1/admin/launches/"+day+"/finalize?force=true", &s.admin, nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var final launch.DayResults
	s.decode(w, &final)
	s.Equal(models.SlotFinalized, final.Status)
	s.Equal(1, final.Entries[0].Rank)

	w = s.do(http.MethodDelete, "/api/v1/tools/"+tool.ID+"/vote", &s.voter, nil)
	s.Equal(http.StatusConflict, w.Code)
	s.Equal("VOTING_CLOSED", s.errorCode(w))

	w = s.do(http.MethodGet, "/api/v1/launches/"+day+"/results", nil, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal(http.StatusUnprocessableEntity, s.do(http.MethodGet, "/api/v1/launches/yesterday/results", nil, nil).Code)
}

func (s *HandlersSuite) TestCancelLaunch() {
	tool := s.approvedTool(s.maker, "wavering")
	day := s.now.AddDate(0, 0, 8).Format(models.DateLayout)

	s.Require().Equal(http.StatusCreated, s.do(http.MethodPost, "/api/v1/tools/"+tool.ID+"/launch", &s.maker, gin.H{"date": day}).Code)
	s.Equal(http.StatusForbidden, s.do(http.MethodDelete, "/api/v1/tools/"+tool.ID+"/launch", &s.voter, nil).Code)
	s.Equal(http.StatusOK, s.do(http.MethodDelete, "/api/v1/tools/"+tool.ID+"/launch", &s.maker, nil).Code)
	s.Equal(http.StatusNotFound, s.do(http.MethodDelete, "/api/v1/tools/"+tool.ID+"/launch", &s.maker, nil).Code)
}

func (s *HandlersSuite) TestBackupAndRecoverEndpoints() {
	tool := s.approvedTool(s.maker, "snap")
	day := s.now.AddDate(0, 0, 7).Format(models.DateLayout)
	s.Require().Equal(http.StatusCreated, s.do(http.MethodPost, "/api/v1/tools/"+tool.ID+"/launch", &s.maker, gin.H{"date": day}).Code)
	s.now = s.now.AddDate(0, 0, 7)
	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, "/api/v1/tools/"+tool.ID+"/vote", &s.voter, nil).Code)

	w := s.do(http.MethodPost, "/api/v1/admin/launches/"+day+"/backup", &s.admin, nil)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Backup models.VoteBackup `json:"backup"`
	}
	s.decode(w, &created)
	s.Equal(1, created.Backup.VoteCount)

	w = s.do(http.MethodGet, "/api/v1/admin/launches/"+day+"/backups", &s.admin, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var list struct {
		Backups []models.VoteBackup `json:"backups"`
	}
	s.decode(w, &list)
	s.Len(list.Backups, 1)

	s.Require().Equal(http.StatusOK, s.do(http.MethodDelete, "/api/v1/tools/"+tool.ID+"/vote", &s.voter, nil).Code)

	w = s.do(http.MethodPost, "/api/v1/admin/backups/"+created.Backup.ID+"/recover", &s.admin, nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var recovered launch.RecoverResult
	s.decode(w, &recovered)
	s.Equal(1, recovered.Votes)

	w = s.do(http.MethodPost, "/api/v1/admin/launches/"+day+"/recount", &s.admin, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var recount struct {
		Summaries []models.VoteSummary `json:"summaries"`
	}
	s.decode(w, &recount)
	s.Require().Len(recount.Summaries, 1)
	s.Equal(1, recount.Summaries[0].Votes)

	s.Equal(http.StatusNotFound, s.do(http.MethodPost, "/api/v1/admin/backups/missing/recover", &s.admin, nil).Code)
}

const longPost = `# Shipping a launch page

Launch pages need a clear headline. They also need a short paragraph that tells
readers what the product does and who it is for.

## What worked

We wrote the copy first and designed around it. Each section answered one
question a visitor might have. See [our checklist](https://example.com/checklist).

## What did not

Animated hero images slowed the page down. We removed them and the bounce rate
dropped the following week.

Closing thoughts go here. Keep it short and honest.

One more paragraph to round things out for the reader.`

func (s *HandlersSuite) TestBlogLifecycle() {
	w := s.do(http.MethodPost, "/api/v1/blogs", &s.maker, gin.H{
		"title":   "Shipping a launch page that converts",
		"excerpt": "What we learned rewriting our launch page three times in one month.",
		"content": longPost,
		"tags":    []string{"launch", "marketing"},
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Blog models.Blog `json:"blog"`
	}
	s.decode(w, &created)
	blog := created.Blog
	s.Equal(models.BlogDraft, blog.Status)
	s.Greater(blog.QualityScore, 0.0)
	s.Greater(blog.WordCount, 50)
	s.Equal(1, blog.ReadingMinutes)

	// Drafts are private
	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/api/v1/blogs/"+blog.Slug, nil, nil).Code)
	s.Equal(http.StatusForbidden, s.do(http.MethodPost, "/api/v1/blogs/"+blog.ID+"/submit", &s.voter, nil).Code)

	w = s.do(http.MethodPost, "/api/v1/blogs/"+blog.ID+"/submit", &s.maker, nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.Equal(http.StatusConflict, s.do(http.MethodPost, "/api/v1/blogs/"+blog.ID+"/submit", &s.maker, nil).Code)

	w = s.do(http.MethodGet, "/api/v1/admin/blogs/pending", &s.admin, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var pending struct {
		Total int64 `json:"total"`
	}
	s.decode(w, &pending)
	s.Equal(int64(1), pending.Total)

	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, "/api/v1/admin/blogs/"+blog.ID+"/publish", &s.admin, nil).Code)
	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, "/api/v1/admin/blogs/"+blog.ID+"/feature", &s.admin, gin.H{"featured": true}).Code)

	w = s.do(http.MethodGet, "/api/v1/blogs", nil, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var page struct {
		Items []models.Blog `json:"items"`
		Total int64         `json:"total"`
	}
	s.decode(w, &page)
	s.Equal(int64(1), page.Total)
	s.Require().Len(page.Items, 1)
	s.True(page.Items[0].IsFeatured)
	s.Empty(page.Items[0].Content)

	w = s.do(http.MethodPost, "/api/v1/blogs/"+blog.ID+"/like", &s.voter, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var like struct {
		LikeCount int `json:"like_count"`
	}
	s.decode(w, &like)
	s.Equal(1, like.LikeCount)
	s.Equal(http.StatusConflict, s.do(http.MethodPost, "/api/v1/blogs/"+blog.ID+"/like", &s.voter, nil).Code)

	w = s.do(http.MethodGet, "/api/v1/blogs/"+blog.Slug, &s.voter, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var got struct {
		Blog  models.Blog `json:"blog"`
		Liked bool        `json:"liked"`
	}
	s.decode(w, &got)
	s.True(got.Liked)
	s.Equal(longPost, got.Blog.Content)

	w = s.do(http.MethodDelete, "/api/v1/blogs/"+blog.ID+"/like", &s.voter, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.decode(w, &like)
	s.Equal(0, like.LikeCount)
	s.Equal(http.StatusNotFound, s.do(http.MethodDelete, "/api/v1/blogs/"+blog.ID+"/like", &s.voter, nil).Code)

	s.Equal(http.StatusOK, s.do(http.MethodDelete, "/api/v1/blogs/"+blog.ID, &s.maker, nil).Code)
	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/api/v1/blogs/"+blog.Slug, nil, nil).Code)
}

func (s *HandlersSuite) TestRejectedBlogReturnsToDraftOnEdit() {
	blog := models.Blog{AuthorID: s.maker.ID, Title: "Rough", Slug: "rough", Content: "words", Tags: []string{}, Status: models.BlogPending}
	s.Require().NoError(s.db.Create(&blog).Error)

	s.Equal(http.StatusUnprocessableEntity, s.do(http.MethodPost, "/api/v1/admin/blogs/"+blog.ID+"/reject", &s.admin, gin.H{}).Code)
	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, "/api/v1/admin/blogs/"+blog.ID+"/reject", &s.admin, gin.H{"reason": "too short"}).Code)

	w := s.do(http.MethodPut, "/api/v1/blogs/"+blog.ID, &s.maker, gin.H{"content": longPost})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var updated struct {
		Blog models.Blog `json:"blog"`
	}
	s.decode(w, &updated)
	s.Equal(models.BlogDraft, updated.Blog.Status)
	s.Empty(updated.Blog.RejectionReason)
	s.Greater(updated.Blog.WordCount, 50)
}

func (s *HandlersSuite) TestBlogRankOrdering() {
	published := s.now.Add(-2 * time.Hour)
	old := s.now.Add(-24 * 30 * time.Hour)
	for _, b := range []models.Blog{
		{AuthorID: s.maker.ID, Title: "Old gem", Slug: "old-gem", QualityScore: 90, ViewCount: 10, PublishedAt: &old},
		{AuthorID: s.maker.ID, Title: "Fresh", Slug: "fresh", QualityScore: 60, PublishedAt: &published},
		{AuthorID: s.maker.ID, Title: "Featured", Slug: "featured", QualityScore: 40, IsFeatured: true, PublishedAt: &published},
	} {
		b.Status = models.BlogPublished
		b.Tags = []string{}
		s.Require().NoError(s.db.Create(&b).Error)
	}

	w := s.do(http.MethodGet, "/api/v1/blogs?sort=rank&limit=2", nil, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var page struct {
		Items []models.Blog `json:"items"`
		Total int64         `json:"total"`
	}
	s.decode(w, &page)
	s.Equal(int64(3), page.Total)
	s.Require().Len(page.Items, 2)
	s.Equal("featured", page.Items[0].Slug)
	s.Equal("fresh", page.Items[1].Slug)

	w = s.do(http.MethodGet, "/api/v1/blogs?sort=quality", nil, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.decode(w, &page)
	s.Equal("old-gem", page.Items[0].Slug)
}

func (s *HandlersSuite) TestBlogRankTotalCoversRankedWindow() {
	prev := rankWindow
	rankWindow = 2
	s.T().Cleanup(func() { rankWindow = prev })

	published := s.now.Add(-time.Hour)
	for _, slug := range []string{"one", "two", "three"} {
		b := models.Blog{AuthorID: s.maker.ID, Title: slug, Slug: slug, Status: models.BlogPublished, Tags: []string{}, PublishedAt: &published}
		s.Require().NoError(s.db.Create(&b).Error)
	}

	w := s.do(http.MethodGet, "/api/v1/blogs?sort=rank&limit=10", nil, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var page struct {
		Items []models.Blog `json:"items"`
		Total int64         `json:"total"`
	}
	s.decode(w, &page)
	s.Equal(int64(2), page.Total)
	s.Len(page.Items, 2)

	w = s.do(http.MethodGet, "/api/v1/blogs?sort=newest&limit=10", nil, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.decode(w, &page)
	s.Equal(int64(3), page.Total)
}

func (s *HandlersSuite) TestAdminRoutesRequireAdmin() {
	s.Equal(http.StatusUnauthorized, s.do(http.MethodGet, "/api/v1/admin/stats", nil, nil).Code)
	s.Equal(http.StatusForbidden, s.do(http.MethodGet, "/api/v1/admin/stats", &s.maker, nil).Code)

	w := s.do(http.MethodGet, "/api/v1/admin/stats", &s.admin, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var stats struct {
		Users int64            `json:"users"`
		Tools map[string]int64 `json:"tools"`
		Today string           `json:"today"`
	}
	s.decode(w, &stats)
	s.Equal(int64(3), stats.Users)
	s.Equal("2026-05-01", stats.Today)
}

func (s *HandlersSuite) TestPremiumGrantChangesBookingLead() {
	w := s.do(http.MethodPost, "/api/v1/admin/users/"+s.maker.ID+"/premium", &s.admin, gin.H{"plan": "weekly"})
	s.Equal(http.StatusUnprocessableEntity, w.Code)

	w = s.do(http.MethodPost, "/api/v1/admin/users/"+s.maker.ID+"/premium", &s.admin, gin.H{"plan": models.PlanMonthly, "ref": "inv_1"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/api/v1/me/premium", &s.maker, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var status premium.Status
	s.decode(w, &status)
	s.True(status.IsPremium)
	s.Equal(models.PlanMonthly, status.Plan)

	tool := s.approvedTool(s.maker, "quick")
	tomorrow := s.now.AddDate(0, 0, 1).Format(models.DateLayout)
	w = s.do(http.MethodPost, "/api/v1/tools/"+tool.ID+"/launch", &s.maker, gin.H{"date": tomorrow})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var booked struct {
		Booking models.LaunchBooking `json:"booking"`
	}
	s.decode(w, &booked)
	s.Equal(models.TierPremium, booked.Booking.Tier)

	s.Equal(http.StatusOK, s.do(http.MethodDelete, "/api/v1/admin/users/"+s.maker.ID+"/premium", &s.admin, nil).Code)
	s.Equal(http.StatusNotFound, s.do(http.MethodDelete, "/api/v1/admin/users/"+s.maker.ID+"/premium", &s.admin, nil).Code)
}

func (s *HandlersSuite) TestBanBlocksAuthenticatedRoutes() {
	s.Equal(http.StatusForbidden, s.do(http.MethodPost, "/api/v1/admin/users/"+s.admin.ID+"/ban", &s.admin, nil).Code)
	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, "/api/v1/admin/users/"+s.voter.ID+"/ban", &s.admin, nil).Code)
	s.Equal(http.StatusForbidden, s.do(http.MethodGet, "/api/v1/me", &s.voter, nil).Code)
	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/api/v1/users/voter", nil, nil).Code)

	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, "/api/v1/admin/users/"+s.voter.ID+"/unban", &s.admin, nil).Code)
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/api/v1/me", &s.voter, nil).Code)

	w := s.do(http.MethodGet, "/api/v1/admin/users?banned=false&q=vot", &s.admin, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var page struct {
		Total int64 `json:"total"`
	}
	s.decode(w, &page)
	s.Equal(int64(1), page.Total)
}

func (s *HandlersSuite) TestSetUserRole() {
	s.Equal(http.StatusUnprocessableEntity, s.do(http.MethodPost, "/api/v1/admin/users/"+s.maker.ID+"/role", &s.admin, gin.H{"role": "owner"}).Code)
	s.Equal(http.StatusForbidden, s.do(http.MethodPost, "/api/v1/admin/users/"+s.admin.ID+"/role", &s.admin, gin.H{"role": "user"}).Code)
	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, "/api/v1/admin/users/"+s.maker.ID+"/role", &s.admin, gin.H{"role": "admin"}).Code)
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/api/v1/admin/stats", &s.maker, nil).Code)
}

func (s *HandlersSuite) TestUpdateMe() {
	w := s.do(http.MethodPut, "/api/v1/me", &s.maker, gin.H{"username": "voter"})
	s.Equal(http.StatusUnprocessableEntity, w.Code)

	w = s.do(http.MethodPut, "/api/v1/me", &s.maker, gin.H{"website": "not a url"})
	s.Equal(http.StatusUnprocessableEntity, w.Code)

	s.Equal(http.StatusBadRequest, s.do(http.MethodPut, "/api/v1/me", &s.maker, gin.H{}).Code)

	w = s.do(http.MethodPut, "/api/v1/me", &s.maker, gin.H{"username": "Maker_2", "bio": "I build things"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var body struct {
		User models.User `json:"user"`
	}
	s.decode(w, &body)
	s.Equal("maker_2", body.User.Username)
	s.Equal("I build things", body.User.Bio)
}

func (s *HandlersSuite) TestPublicProfile() {
	s.approvedTool(s.maker, "shown")
	hidden := models.Tool{OwnerID: s.maker.ID, Name: "hidden", Slug: "hidden", WebsiteURL: "https://h.dev", Tags: []string{}, Status: models.ToolPending}
	s.Require().NoError(s.db.Create(&hidden).Error)

	w := s.do(http.MethodGet, "/api/v1/users/maker", nil, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var profile struct {
		User  map[string]interface{} `json:"user"`
		Tools []models.Tool          `json:"tools"`
		Blogs []models.Blog          `json:"blogs"`
	}
	s.decode(w, &profile)
	s.Equal("maker", profile.User["username"])
	s.NotContains(profile.User, "email")
	s.Require().Len(profile.Tools, 1)
	s.Equal("shown", profile.Tools[0].Slug)
	s.Empty(profile.Blogs)

	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/api/v1/users/nobody", nil, nil).Code)
}

func (s *HandlersSuite) TestSearchFallsBackToDatabase() {
	s.approvedTool(s.maker, "searchable")
	s.Equal(http.StatusUnprocessableEntity, s.do(http.MethodGet, "/api/v1/search", nil, nil).Code)
	s.Equal(http.StatusUnprocessableEntity, s.do(http.MethodGet, "/api/v1/search?q=x&kind=user", nil, nil).Code)

	w := s.do(http.MethodGet, "/api/v1/search?q=SEARCH&kind=tool", nil, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var result struct {
		Hits []struct {
			Slug string `json:"slug"`
		} `json:"hits"`
		Total int `json:"total"`
	}
	s.decode(w, &result)
	s.Equal(1, result.Total)
	s.Equal("searchable", result.Hits[0].Slug)
}

func (s *HandlersSuite) TestViewsAreBufferedInRedis() {
	tool := s.approvedTool(s.maker, "popular")
	for i := 0; i < 3; i++ {
		s.Require().Equal(http.StatusOK, s.do(http.MethodGet, "/api/v1/tools/popular", nil, nil).Code)
	}
	got, err := s.mr.Get("views:tool:" + tool.ID)
	s.Require().NoError(err)
	s.Equal("3", got)

	applied, err := s.h.ViewCounter().Flush(context.Background())
	s.Require().NoError(err)
	s.Equal(int64(3), applied)
}

func (s *HandlersSuite) TestUploadToolLogo() {
	tool := s.approvedTool(s.maker, "pictured")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("logo", "logo.png")
	s.Require().NoError(err)
	_, err = part.Write([]byte("\x89PNG fake image bytes"))
	s.Require().NoError(err)
	s.Require().NoError(mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tools/"+tool.ID+"/logo", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.token(s.maker))
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Tool models.Tool `json:"tool"`
	}
	s.decode(w, &body)
	s.Equal("https://cdn.example.com/logos/"+s.maker.ID+"/logo.png", body.Tool.LogoURL)
	s.Equal([]string{"logos"}, s.uploader.folders)

	w = s.do(http.MethodPost, "/api/v1/tools/"+tool.ID+"/logo", &s.maker, gin.H{})
	s.Equal(http.StatusUnprocessableEntity, w.Code)
}

func (s *HandlersSuite) TestLiveRequiresHub() {
	w := s.do(http.MethodGet, "/api/v1/launches/live", nil, nil)
	s.Equal(http.StatusServiceUnavailable, w.Code)
}

func (s *HandlersSuite) TestLiveRejectsInvalidDate() {
	w := s.do(http.MethodGet, "/api/v1/launches/live?date=tomorrow", nil, nil)
	s.Equal(http.StatusUnprocessableEntity, w.Code)
	s.Equal("VALIDATION_ERROR", s.errorCode(w))
}
