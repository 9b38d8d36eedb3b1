package launch

import (
	"time"

	"github.com/motheroflaunch/backend/internal/models"
)

// ParseDate parses a YYYY-MM-DD launch day as UTC midnight
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(models.DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

// FormatDate renders the UTC calendar day of t
func FormatDate(t time.Time) string {
	return t.UTC().Format(models.DateLayout)
}

// daysBetween returns the number of calendar days from a to b
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}

func addDays(date string, n int) string {
	t, err := ParseDate(date)
	if err != nil {
		return date
	}
	return FormatDate(t.AddDate(0, 0, n))
}
