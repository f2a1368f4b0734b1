package catalog

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/jmoiron/sqlx"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxSlugLen = 50

var (
	reNonSlug = regexp.MustCompile(`[^a-z0-9]+`)
	reDashes  = regexp.MustCompile(`-+`)
)

// Slugify folds accents and collapses everything else to single dashes:
// "São Tomé Library" -> "sao-tome-library".
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}
	s = reNonSlug.ReplaceAllString(s, "-")
	s = reDashes.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > maxSlugLen {
		s = strings.TrimRight(s[:maxSlugLen], "-")
	}
	if s == "" {
		s = "library"
	}
	return s
}

// uniqueSlug returns base, or base-2, base-3, ... whichever is free first.
func uniqueSlug(ctx context.Context, tx *sqlx.Tx, base string, maxTries int) (string, error) {
	slug := base
	for i := 1; i <= maxTries; i++ {
		var exists bool
		if err := tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM libraries WHERE slug = $1)`, slug); err != nil {
			return "", fmt.Errorf("check slug: %w", err)
		}
		if !exists {
			return slug, nil
		}
		suffix := "-" + strconv.Itoa(i+1)
		trimmed := base
		if len(trimmed)+len(suffix) > maxSlugLen {
			trimmed = strings.TrimRight(trimmed[:maxSlugLen-len(suffix)], "-")
		}
		slug = trimmed + suffix
	}
	return "", fmt.Errorf("%w: could not create unique slug for %q", ErrConflict, base)
}
