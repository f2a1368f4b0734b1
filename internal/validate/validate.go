package validate

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	ErrInvalid = errors.New("invalid")
	slugRe     = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
)

const DateLayout = "2006-01-02"

// RequireBounded trims and ensures length bounds.
func RequireBounded(name, s string, min, max int) (string, error) {
	s = strings.TrimSpace(s)
	if n := utf8.RuneCountInString(s); n < min || n > max {
		return "", errors.New(name + " must be between " + strconv.Itoa(min) + " and " + strconv.Itoa(max) + " characters")
	}
	return s, nil
}

// Slug accepts lowercase dash-separated slugs up to 50 runes.
func Slug(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || !slugRe.MatchString(s) || utf8.RuneCountInString(s) > 50 {
		return "", errors.New("invalid slug: " + s)
	}
	return s, nil
}

// Date parses a YYYY-MM-DD date in UTC.
func Date(name, s string) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, errors.New(name + " must be a YYYY-MM-DD date")
	}
	return d, nil
}

// PositiveID parses a path id like "42". Zero, negatives and junk are rejected.
func PositiveID(raw string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || n <= 0 {
		return 0, ErrInvalid
	}
	return n, nil
}

// ClampPage parses 1-based page and page size. Bad input falls back to
// page 1 / def; size is capped at limit. page is capped so (page-1)*size
// always fits in an int.
func ClampPage(pageRaw, sizeRaw string, def, limit int) (page, size int) {
	page = 1
	if v, err := strconv.Atoi(strings.TrimSpace(pageRaw)); err == nil && v >= 1 {
		page = min(v, math.MaxInt/max(limit, def, 1))
	}
	size = def
	if v, err := strconv.Atoi(strings.TrimSpace(sizeRaw)); err == nil && v >= 1 && v <= limit {
		size = v
	}
	return page, size
}
