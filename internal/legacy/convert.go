package legacy

import (
	"strings"

	"github.com/google/uuid"
	"github.com/motheroflaunch/backend/internal/models"
	"github.com/motheroflaunch/backend/internal/scoring"
	"github.com/motheroflaunch/backend/internal/util"
	"go.mongodb.org/mongo-driver/v2/bson"
)

const maxTags = 5

// idNamespace scopes the UUIDs derived from ObjectIDs
var idNamespace = uuid.MustParse("6f1d8a52-3c0e-4b8e-9a51-2d7c4f0e9b13")

// IDFor maps a legacy ObjectID to a stable UUID so repeated imports
// produce the same rows
func IDFor(oid bson.ObjectID) string {
	return uuid.NewSHA1(idNamespace, []byte(oid.Hex())).String()
}

// ToUser converts a legacy user. Usernames that fail the current rules are
// rebuilt from the email's local part.
func ToUser(d UserDoc) models.User {
	username := strings.ToLower(strings.TrimSpace(d.Username))
	if !util.IsValidUsername(username) {
		local, _, _ := strings.Cut(d.Email, "@")
		username = sanitizeUsername(local, d.ID)
	}
	role := models.RoleUser
	if d.Role == models.RoleAdmin {
		role = models.RoleAdmin
	}
	display := strings.TrimSpace(d.Name)
	if display == "" {
		display = username
	}
	return models.User{
		ID:          IDFor(d.ID),
		AuthSubject: "legacy|" + d.ID.Hex(),
		Email:       strings.ToLower(strings.TrimSpace(d.Email)),
		Username:    username,
		DisplayName: display,
		Bio:         d.Bio,
		Website:     d.Website,
		AvatarURL:   d.Avatar,
		Role:        role,
		IsBanned:    d.Banned,
		CreatedAt:   d.CreatedAt,
	}
}

func sanitizeUsername(s string, oid bson.ObjectID) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		case r == '.' || r == '-':
			return '_'
		}
		return -1
	}, s)
	suffix := oid.Hex()[18:]
	if len(s) > 23 {
		s = s[:23]
	}
	return s + "_" + suffix
}

// ToTool converts a legacy tool. Launch state is not carried over: the
// legacy data has no booking records to back it.
func ToTool(d ToolDoc) models.Tool {
	status := models.ToolPending
	switch d.Status {
	case models.ToolApproved, "published", "live":
		status = models.ToolApproved
	case models.ToolRejected:
		status = models.ToolRejected
	}
	pricing := strings.ToLower(d.Pricing)
	if !models.IsValidPricing(pricing) {
		pricing = "free"
	}
	slug := util.Slugify(d.Slug)
	if slug == "" {
		slug = util.Slugify(d.Name)
	}
	return models.Tool{
		ID:          IDFor(d.ID),
		OwnerID:     IDFor(d.Owner),
		Name:        d.Name,
		Slug:        slug,
		Tagline:     d.Tagline,
		Description: d.Description,
		WebsiteURL:  d.Website,
		Category:    d.Category,
		Tags:        util.NormalizeTags(d.Tags, maxTags),
		LogoURL:     d.Logo,
		Pricing:     pricing,
		Status:      status,
		ViewCount:   d.Views,
		TotalVotes:  d.Upvotes,
		CreatedAt:   d.CreatedAt,
	}
}

// ToBlog converts a legacy post and scores it the way new posts are scored
func ToBlog(d BlogDoc) models.Blog {
	status := models.BlogDraft
	switch d.Status {
	case models.BlogPublished, models.BlogPending, models.BlogRejected:
		status = d.Status
	}
	slug := util.Slugify(d.Slug)
	if slug == "" {
		slug = util.Slugify(d.Title)
	}
	tags := util.NormalizeTags(d.Tags, maxTags)

	attrs := scoring.Analyze(scoring.Input{
		Title:         d.Title,
		Excerpt:       d.Excerpt,
		Content:       d.Content,
		CoverImageURL: d.CoverImage,
		Tags:          tags,
	})
	score := scoring.Score(attrs)

	b := models.Blog{
		ID:             IDFor(d.ID),
		AuthorID:       IDFor(d.Author),
		Title:          d.Title,
		Slug:           slug,
		Excerpt:        d.Excerpt,
		Content:        d.Content,
		CoverImageURL:  d.CoverImage,
		Tags:           tags,
		Status:         status,
		IsFeatured:     d.Featured && status == models.BlogPublished,
		QualityScore:   score.Total,
		QualityTier:    score.Tier,
		WordCount:      attrs.WordCount,
		ReadingMinutes: attrs.ReadingMinutes,
		ViewCount:      d.Views,
		LikeCount:      d.Likes,
		CreatedAt:      d.CreatedAt,
	}
	if status == models.BlogPublished {
		published := d.CreatedAt
		if d.PublishedAt != nil {
			published = *d.PublishedAt
		}
		b.PublishedAt = &published
	}
	return b
}
