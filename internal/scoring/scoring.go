// Package scoring rates blog posts on content quality and ranks published
// posts for listing. Everything here is pure; callers supply the clock.
package scoring

import (
	"math"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Quality tiers
const (
	TierExcellent = "excellent"
	TierGood      = "good"
	TierFair      = "fair"
	TierPoor      = "poor"
)

const wordsPerMinute = 200

// Input is the author-controlled part of a blog post
type Input struct {
	Title         string
	Excerpt       string
	Content       string
	CoverImageURL string
	Tags          []string
}

// Attributes are the request-time statistics the score is computed from
type Attributes struct {
	WordCount        int     `json:"word_count"`
	ReadingMinutes   int     `json:"reading_minutes"`
	HeadingCount     int     `json:"heading_count"`
	ImageCount       int     `json:"image_count"`
	LinkCount        int     `json:"link_count"`
	ParagraphCount   int     `json:"paragraph_count"`
	AvgSentenceWords float64 `json:"avg_sentence_words"`

	TitleLength   int  `json:"title_length"`
	ExcerptLength int  `json:"excerpt_length"`
	TagCount      int  `json:"tag_count"`
	HasCover      bool `json:"has_cover"`
}

// Breakdown is the per-component score
type Breakdown struct {
	Length      float64 `json:"length"`
	Structure   float64 `json:"structure"`
	Media       float64 `json:"media"`
	Links       float64 `json:"links"`
	Metadata    float64 `json:"metadata"`
	Readability float64 `json:"readability"`
	Total       float64 `json:"total"`
	Tier        string  `json:"tier"`
}

var (
	// Markdown and HTML headings
	headingRe = regexp.MustCompile(`(?m)^\s{0,3}#{1,6}\s+\S|(?i)<h[1-6][\s>]`)
	// Markdown images and <img> tags
	imageRe = regexp.MustCompile(`!\[[^\]]*\]\([^)]+\)|(?i)<img\s`)
	// Markdown links and images, told apart by the leading '!'
	mdLinkRe = regexp.MustCompile(`!?\[[^\]]+\]\([^)]+\)`)
	// <a href> and bare URLs
	linkRe    = regexp.MustCompile(`(?i)<a\s+[^>]*href=|(?:^|\s)https?://\S+`)
	tagRe     = regexp.MustCompile(`<[^>]+>`)
	markupRe  = regexp.MustCompile("[#*_`>\\[\\]()]")
	sentSplit = regexp.MustCompile(`[.!?]+(?:\s|$)`)
	paraSplit = regexp.MustCompile(`\n\s*\n`)
)

func countLinks(content string) int {
	n := len(linkRe.FindAllString(content, -1))
	for _, m := range mdLinkRe.FindAllString(content, -1) {
		if m[0] != '!' {
			n++
		}
	}
	return n
}

// Analyze computes the attributes of a post
func Analyze(in Input) Attributes {
	plain := markupRe.ReplaceAllString(tagRe.ReplaceAllString(in.Content, " "), " ")
	words := strings.Fields(plain)

	a := Attributes{
		WordCount:     len(words),
		HeadingCount:  len(headingRe.FindAllString(in.Content, -1)),
		ImageCount:    len(imageRe.FindAllString(in.Content, -1)),
		LinkCount:     countLinks(in.Content),
		TitleLength:   utf8.RuneCountInString(strings.TrimSpace(in.Title)),
		ExcerptLength: utf8.RuneCountInString(strings.TrimSpace(in.Excerpt)),
		TagCount:      countTags(in.Tags),
		HasCover:      strings.TrimSpace(in.CoverImageURL) != "",
	}

	a.ReadingMinutes = (a.WordCount + wordsPerMinute - 1) / wordsPerMinute
	if a.ReadingMinutes < 1 {
		a.ReadingMinutes = 1
	}

	for _, p := range paraSplit.Split(strings.TrimSpace(in.Content), -1) {
		if strings.IndexFunc(p, unicode.IsLetter) >= 0 {
			a.ParagraphCount++
		}
	}

	sentences := 0
	for _, s := range sentSplit.Split(plain, -1) {
		if len(strings.Fields(s)) > 0 {
			sentences++
		}
	}
	if sentences > 0 {
		a.AvgSentenceWords = float64(a.WordCount) / float64(sentences)
	}

	return a
}

func countTags(tags []string) int {
	n := 0
	for _, t := range tags {
		if strings.TrimSpace(t) != "" {
			n++
		}
	}
	return n
}

// Score returns the 0-100 quality score and its breakdown
func Score(a Attributes) Breakdown {
	b := Breakdown{
		Length:      lengthScore(a.WordCount),
		Structure:   math.Min(3*float64(min(a.HeadingCount, 5))+boolScore(a.ParagraphCount >= 5, 5), 20),
		Media:       math.Min(boolScore(a.HasCover, 7)+2*float64(min(a.ImageCount, 4)), 15),
		Links:       2 * float64(min(a.LinkCount, 5)),
		Metadata:    metadataScore(a),
		Readability: readabilityScore(a),
	}
	b.Total = round2(b.Length + b.Structure + b.Media + b.Links + b.Metadata + b.Readability)
	b.Tier = Tier(b.Total)
	return b
}

func lengthScore(words int) float64 {
	w := float64(words)
	switch {
	case words < 300:
		return 15 * w / 300
	case words < 800:
		return 15 + 15*(w-300)/500
	case words <= 2500:
		return 30
	default:
		return 25
	}
}

func metadataScore(a Attributes) float64 {
	var s float64
	switch {
	case a.TitleLength >= 20 && a.TitleLength <= 70:
		s += 6
	case a.TitleLength > 0:
		s += 3
	}
	switch {
	case a.ExcerptLength >= 50 && a.ExcerptLength <= 200:
		s += 5
	case a.ExcerptLength > 0:
		s += 2
	}
	if a.TagCount >= 1 && a.TagCount <= 5 {
		s += 4
	}
	return s
}

func readabilityScore(a Attributes) float64 {
	switch {
	case a.WordCount == 0:
		return 0
	case a.AvgSentenceWords >= 10 && a.AvgSentenceWords <= 25:
		return 10
	case a.AvgSentenceWords <= 35:
		return 5
	default:
		return 0
	}
}

// Tier maps a score to its quality tier
func Tier(score float64) string {
	switch {
	case score >= 80:
		return TierExcellent
	case score >= 60:
		return TierGood
	case score >= 40:
		return TierFair
	default:
		return TierPoor
	}
}

// Rank orders published posts: quality and engagement, decayed by age
func Rank(score float64, views int64, likes int, featured bool, ageHours float64) float64 {
	if ageHours < 0 {
		ageHours = 0
	}
	if views < 0 {
		views = 0
	}
	num := 0.6*score + 8*math.Log1p(float64(views)) + 2*float64(likes) + boolScore(featured, 25)
	return num / math.Sqrt(1+ageHours/72)
}

func boolScore(b bool, v float64) float64 {
	if b {
		return v
	}
	return 0
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
