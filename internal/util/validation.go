package util

import (
	"net/url"
	"regexp"
	"strings"
)

var usernameRe = regexp.MustCompile(`^[a-z0-9_]{3,30}$`)

// IsValidUsername checks the 3-30 character [a-z0-9_] username rule
func IsValidUsername(username string) bool {
	return usernameRe.MatchString(username)
}

// IsValidHTTPURL reports whether s is an absolute http(s) URL with a host
func IsValidHTTPURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// ValidateLength returns a message when s is outside [min, max] runes
func ValidateLength(s string, min, max int) (string, bool) {
	n := len([]rune(strings.TrimSpace(s)))
	switch {
	case n < min && min == 1:
		return "is required", false
	case n < min:
		return "is too short", false
	case n > max:
		return "is too long", false
	}
	return "", true
}
