package seed

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/motheroflaunch/backend/internal/launch"
	"github.com/motheroflaunch/backend/internal/logger"
	"github.com/motheroflaunch/backend/internal/models"
	"github.com/motheroflaunch/backend/internal/premium"
	"github.com/motheroflaunch/backend/internal/scoring"
	"github.com/motheroflaunch/backend/internal/util"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Seeder handles database seeding operations
type Seeder struct {
	db       *gorm.DB
	launches *launch.Service
	premium  *premium.Service
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB) *Seeder {
	// Seed returns an error only for invalid sources
	_ = gofakeit.Seed(time.Now().UnixNano())
	return &Seeder{db: db}
}

// SetLaunchService enables booking seeded tools onto upcoming launch days
func (s *Seeder) SetLaunchService(svc *launch.Service) {
	s.launches = svc
}

// SetPremiumService enables granting premium to a share of seeded users
func (s *Seeder) SetPremiumService(svc *premium.Service) {
	s.premium = svc
}

// Counts controls how much data SeedDev creates
type Counts struct {
	Users int
	Tools int
	Blogs int
	Likes int
}

// DevCounts is the default development dataset
var DevCounts = Counts{Users: 60, Tools: 150, Blogs: 200, Likes: 800}

var (
	categories = []string{"productivity", "developer-tools", "design", "marketing", "ai", "analytics", "finance", "education"}
	tagPool    = []string{"ai", "saas", "open source", "no-code", "api", "mobile", "chrome extension", "devtools", "automation", "privacy"}
)

// SeedDev seeds the development database with realistic data
func (s *Seeder) SeedDev(ctx context.Context, counts Counts) error {
	log := func(msg string) {
		logger.Log.Info(msg)
	}

	log("Creating users...")
	users, err := s.seedUsers(ctx, counts.Users)
	if err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}

	log("Creating tools...")
	tools, err := s.seedTools(ctx, users, counts.Tools)
	if err != nil {
		return fmt.Errorf("failed to seed tools: %w", err)
	}

	log("Creating blogs...")
	blogs, err := s.seedBlogs(ctx, users, counts.Blogs)
	if err != nil {
		return fmt.Errorf("failed to seed blogs: %w", err)
	}

	log("Creating blog likes...")
	if err := s.seedLikes(ctx, users, blogs, counts.Likes); err != nil {
		return fmt.Errorf("failed to seed likes: %w", err)
	}

	if s.premium != nil {
		log("Granting premium...")
		if err := s.seedPremium(ctx, users); err != nil {
			return fmt.Errorf("failed to seed premium: %w", err)
		}
	} else {
		log("Premium service not configured - skipping premium grants")
	}

	if s.launches != nil {
		log("Booking launches...")
		s.seedBookings(ctx, users, tools)
	} else {
		log("Launch service not configured - skipping launch bookings")
	}

	return nil
}

// SeedTest seeds a small fixed dataset for end-to-end tests
func (s *Seeder) SeedTest(ctx context.Context) error {
	fixtures := []struct {
		username    string
		email       string
		displayName string
		role        string
	}{
		{"alice", "alice@example.com", "Alice Smith", models.RoleAdmin},
		{"bob", "bob@example.com", "Bob Johnson", models.RoleUser},
		{"charlie", "charlie@example.com", "Charlie Brown", models.RoleUser},
	}

	var users []models.User
	for _, fx := range fixtures {
		var user models.User
		err := s.db.WithContext(ctx).Where("username = ? OR email = ?", fx.username, fx.email).First(&user).Error
		if err == nil {
			users = append(users, user)
			continue
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}

		user = models.User{
			AuthSubject: "seed|" + fx.username,
			Email:       fx.email,
			Username:    fx.username,
			DisplayName: fx.displayName,
			AvatarURL:   avatarURL(fx.username),
			Role:        fx.role,
		}
		if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
			return fmt.Errorf("failed to create test user %s: %w", fx.username, err)
		}
		users = append(users, user)
	}

	if _, err := s.seedTools(ctx, users[1:], 4); err != nil {
		return fmt.Errorf("failed to seed test tools: %w", err)
	}
	if _, err := s.seedBlogs(ctx, users[1:], 4); err != nil {
		return fmt.Errorf("failed to seed test blogs: %w", err)
	}
	return nil
}

// Clean removes all marketplace data (use with caution!)
func (s *Seeder) Clean(ctx context.Context) error {
	tables := []string{
		"votes", "vote_summaries", "vote_backups", "launch_bookings", "launch_slots",
		"blog_likes", "blogs", "tools", "premium_accesses", "users",
	}
	for _, table := range tables {
		if err := s.db.WithContext(ctx).Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clean %s: %w", table, err)
		}
	}
	return nil
}

func avatarURL(seed string) string {
	return fmt.Sprintf("https://api.dicebear.com/7.x/avataaars/png?seed=%s", seed)
}

// seedUsers creates users with realistic profiles
func (s *Seeder) seedUsers(ctx context.Context, count int) ([]models.User, error) {
	db := s.db.WithContext(ctx)

	var existing int64
	db.Model(&models.User{}).Where("auth_subject LIKE 'seed|%'").Count(&existing)
	if existing >= int64(count) {
		var users []models.User
		if err := db.Where("auth_subject LIKE 'seed|%'").Find(&users).Error; err != nil {
			return nil, err
		}
		logger.Log.Info("Found existing seed users, skipping creation", zap.Int("users", len(users)))
		return users, nil
	}

	users := make([]models.User, 0, count)
	for i := 0; i < count; i++ {
		username := seedUsername()
		email := gofakeit.Email()
		for {
			var n int64
			db.Model(&models.User{}).Where("username = ? OR email = ?", username, email).Count(&n)
			if n == 0 {
				break
			}
			username = seedUsername()
			email = gofakeit.Email()
		}

		lastActive := gofakeit.DateRange(time.Now().AddDate(0, 0, -30), time.Now())
		user := models.User{
			AuthSubject:  "seed|" + gofakeit.UUID(),
			Email:        email,
			Username:     username,
			DisplayName:  gofakeit.Name(),
			Bio:          gofakeit.HipsterSentence(),
			Website:      gofakeit.URL(),
			AvatarURL:    avatarURL(username),
			LastActiveAt: &lastActive,
		}
		if err := db.Create(&user).Error; err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		users = append(users, user)
	}

	logger.Log.Info("Created users", zap.Int("count", len(users)))
	return users, nil
}

// seedUsername returns a fakeit username that passes profile validation
func seedUsername() string {
	name := strings.ToLower(gofakeit.Username())
	name = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return -1
	}, name)
	for len(name) < 3 {
		name += "0"
	}
	if len(name) > 30 {
		name = name[:30]
	}
	return name
}

// seedTools creates tools spread across the moderation states. Most end up
// approved so the listings have something to show.
func (s *Seeder) seedTools(ctx context.Context, users []models.User, count int) ([]models.Tool, error) {
	db := s.db.WithContext(ctx)
	tools := make([]models.Tool, 0, count)

	for i := 0; i < count; i++ {
		owner := users[rand.Intn(len(users))]
		name := gofakeit.AppName()

		slug, err := uniqueSlug(db, &models.Tool{}, util.Slugify(name))
		if err != nil {
			return nil, err
		}

		status := models.ToolApproved
		reason := ""
		switch r := rand.Float32(); {
		case r < 0.2:
			status = models.ToolPending
		case r < 0.3:
			status = models.ToolRejected
			reason = "Website could not be reached"
		}

		tool := models.Tool{
			OwnerID:         owner.ID,
			Name:            name,
			Slug:            slug,
			Tagline:         gofakeit.HipsterSentence(),
			Description:     paragraphs(2, 3),
			WebsiteURL:      gofakeit.URL(),
			Category:        categories[rand.Intn(len(categories))],
			Tags:            pickTags(3),
			LogoURL:         avatarURL(slug),
			Pricing:         models.ToolPricing[rand.Intn(len(models.ToolPricing))],
			Status:          status,
			RejectionReason: reason,
			ViewCount:       int64(rand.Intn(5000)),
			CreatedAt:       gofakeit.DateRange(time.Now().AddDate(0, -3, 0), time.Now()),
		}
		if err := db.Create(&tool).Error; err != nil {
			return nil, fmt.Errorf("failed to create tool: %w", err)
		}
		tools = append(tools, tool)
	}

	logger.Log.Info("Created tools", zap.Int("count", len(tools)))
	return tools, nil
}

// seedBlogs creates posts with computed quality scores
func (s *Seeder) seedBlogs(ctx context.Context, users []models.User, count int) ([]models.Blog, error) {
	db := s.db.WithContext(ctx)
	blogs := make([]models.Blog, 0, count)

	for i := 0; i < count; i++ {
		author := users[rand.Intn(len(users))]
		title := strings.TrimSuffix(gofakeit.HipsterSentence(), ".")

		slug, err := uniqueSlug(db, &models.Blog{}, util.Slugify(title))
		if err != nil {
			return nil, err
		}

		in := scoring.Input{
			Title:   title,
			Excerpt: gofakeit.HipsterSentence(),
			Content: markdownBody(rand.Intn(6) + 2),
			Tags:    pickTags(4),
		}
		if rand.Float32() < 0.6 {
			in.CoverImageURL = fmt.Sprintf("https://picsum.photos/seed/%s/1200/630", slug)
		}
		attrs := scoring.Analyze(in)
		score := scoring.Score(attrs)

		createdAt := gofakeit.DateRange(time.Now().AddDate(0, -2, 0), time.Now())
		blog := models.Blog{
			AuthorID:       author.ID,
			Title:          in.Title,
			Slug:           slug,
			Excerpt:        in.Excerpt,
			Content:        in.Content,
			CoverImageURL:  in.CoverImageURL,
			Tags:           in.Tags,
			Status:         models.BlogPublished,
			QualityScore:   score.Total,
			QualityTier:    score.Tier,
			WordCount:      attrs.WordCount,
			ReadingMinutes: attrs.ReadingMinutes,
			ViewCount:      int64(rand.Intn(3000)),
			CreatedAt:      createdAt,
		}
		switch r := rand.Float32(); {
		case r < 0.15:
			blog.Status = models.BlogDraft
		case r < 0.25:
			blog.Status = models.BlogPending
		default:
			published := gofakeit.DateRange(createdAt, time.Now())
			blog.PublishedAt = &published
			blog.IsFeatured = rand.Float32() < 0.05
		}

		if err := db.Create(&blog).Error; err != nil {
			return nil, fmt.Errorf("failed to create blog: %w", err)
		}
		blogs = append(blogs, blog)
	}

	logger.Log.Info("Created blogs", zap.Int("count", len(blogs)))
	return blogs, nil
}

// seedLikes likes random published posts and keeps like_count in step
func (s *Seeder) seedLikes(ctx context.Context, users []models.User, blogs []models.Blog, count int) error {
	var published []models.Blog
	for _, b := range blogs {
		if b.Status == models.BlogPublished {
			published = append(published, b)
		}
	}
	if len(published) == 0 || len(users) == 0 {
		return nil
	}

	db := s.db.WithContext(ctx)
	seen := make(map[string]bool)
	created := 0
	for attempts := 0; created < count && attempts < count*3; attempts++ {
		blog := published[rand.Intn(len(published))]
		user := users[rand.Intn(len(users))]
		key := blog.ID + ":" + user.ID
		if seen[key] {
			continue
		}
		seen[key] = true

		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&models.BlogLike{BlogID: blog.ID, UserID: user.ID}).Error; err != nil {
				return err
			}
			return tx.Model(&models.Blog{}).Where("id = ?", blog.ID).
				UpdateColumn("like_count", gorm.Expr("like_count + 1")).Error
		})
		if err != nil {
			return err
		}
		created++
	}

	logger.Log.Info("Created blog likes", zap.Int("count", created))
	return nil
}

// seedPremium grants a plan to roughly one user in ten
func (s *Seeder) seedPremium(ctx context.Context, users []models.User) error {
	plans := []string{models.PlanMonthly, models.PlanYearly, models.PlanLifetime}
	granted := 0
	for _, u := range users {
		if rand.Float32() >= 0.1 {
			continue
		}
		plan := plans[rand.Intn(len(plans))]
		if _, err := s.premium.Grant(ctx, u.ID, plan, 0, "seed", ""); err != nil {
			return err
		}
		granted++
	}
	logger.Log.Info("Granted premium", zap.Int("count", granted))
	return nil
}

// seedBookings books approved tools onto the coming week. Bookings the
// launch rules refuse (full day, too soon for a free user) are skipped.
func (s *Seeder) seedBookings(ctx context.Context, users []models.User, tools []models.Tool) {
	owners := make(map[string]*models.User, len(users))
	for i := range users {
		owners[users[i].ID] = &users[i]
	}

	today, _ := launch.ParseDate(s.launches.Today())
	booked := 0
	for _, tool := range tools {
		if tool.Status != models.ToolApproved || rand.Float32() >= 0.4 {
			continue
		}
		owner := owners[tool.OwnerID]
		if owner == nil {
			continue
		}
		date := launch.FormatDate(today.AddDate(0, 0, rand.Intn(14)+1))
		if _, err := s.launches.Book(ctx, owner, tool.ID, date); err != nil {
			logger.Log.Debug("Skipped seed booking",
				zap.String("tool_id", tool.ID),
				zap.String("date", date),
				zap.Error(err))
			continue
		}
		booked++
	}
	logger.Log.Info("Booked launches", zap.Int("count", booked))
}

func capitalize(w string) string {
	if w == "" {
		return w
	}
	return strings.ToUpper(w[:1]) + w[1:]
}

func uniqueSlug(db *gorm.DB, model interface{}, base string) (string, error) {
	if base == "" {
		base = "item"
	}
	slug := base
	for i := 2; ; i++ {
		var n int64
		if err := db.Model(model).Where("slug = ?", slug).Count(&n).Error; err != nil {
			return "", err
		}
		if n == 0 {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
}

func pickTags(max int) []string {
	n := rand.Intn(max) + 1
	perm := rand.Perm(len(tagPool))
	tags := make([]string, 0, n)
	for _, i := range perm[:n] {
		tags = append(tags, tagPool[i])
	}
	return tags
}

func paragraphs(count, sentences int) string {
	parts := make([]string, count)
	for i := range parts {
		var b strings.Builder
		for j := 0; j < sentences; j++ {
			if j > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(gofakeit.HipsterSentence())
		}
		parts[i] = b.String()
	}
	return strings.Join(parts, "\n\n")
}

// markdownBody builds a post with headings, a link and the odd image so
// the quality scores spread across the tiers
func markdownBody(sections int) string {
	var b strings.Builder
	for i := 0; i < sections; i++ {
		fmt.Fprintf(&b, "## %s\n\n", capitalize(gofakeit.Word()))
		b.WriteString(paragraphs(rand.Intn(3)+1, rand.Intn(5)+3))
		b.WriteString("\n\n")
		if rand.Float32() < 0.3 {
			fmt.Fprintf(&b, "![%s](https://picsum.photos/seed/%s/800/400)\n\n", gofakeit.Word(), gofakeit.Word())
		}
		if rand.Float32() < 0.4 {
			fmt.Fprintf(&b, "More at [%s](%s).\n\n", gofakeit.Word(), gofakeit.URL())
		}
	}
	return strings.TrimSpace(b.String())
}
