package sanitize

import (
	"math"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/mrz1836/go-sanitize"

	reviewerr "github.com/reviewchain/reviewchain/pkg/errors"
)

// Rating bounds.
const (
	MinRating = 1
	MaxRating = 5
)

// MaxEmailLength is the longest email address accepted, in bytes.
const MaxEmailLength = 254

var (
	walletAddressPattern = regexp.MustCompile(`^0x[0-9a-f]{40}$`)
	emailPattern         = regexp.MustCompile(`^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}$`)
	mailHeader           = regexp.MustCompile(`(?i)(bcc|cc|to|from|reply-to|subject|content-type|mime-version)\s*:`)
	lineBreaks           = strings.NewReplacer("\r", "", "\n", "", "%0a", "", "%0A", "", "%0d", "", "%0D", "")
)

// WalletAddress strips markup from an EVM address, then trims and
// lowercases it. It returns "" when the result is not a 0x-prefixed,
// 40 hex digit address.
func WalletAddress(s string) string {
	addr := strings.ToLower(SingleLine(s))
	if !walletAddressPattern.MatchString(addr) {
		return ""
	}
	return addr
}

// Email normalises an email address. Line breaks and mail header names
// are removed first. It returns "" when the input is longer than
// MaxEmailLength or the address is not well formed.
func Email(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > MaxEmailLength {
		return ""
	}
	s = lineBreaks.Replace(s)
	for {
		next := mailHeader.ReplaceAllString(s, "")
		if next == s {
			break
		}
		s = next
	}
	email := sanitize.Email(s, false)
	if !emailPattern.MatchString(email) {
		return ""
	}
	return email
}

// ClampRating forces a rating into [MinRating, MaxRating].
func ClampRating(rating int) int {
	return min(max(rating, MinRating), MaxRating)
}

// ClampRatingFloat floors a fractional rating and clamps it.
// NaN maps to MinRating.
func ClampRatingFloat(rating float64) int {
	if math.IsNaN(rating) {
		return MinRating
	}
	floored := math.Floor(rating)
	switch {
	case floored < MinRating:
		return MinRating
	case floored > MaxRating:
		return MaxRating
	default:
		return int(floored)
	}
}

// ParseRating parses user-entered rating text and clamps it.
func ParseRating(s string) (int, error) {
	v, ok := Number(s, math.Inf(-1), math.Inf(1))
	if !ok {
		return 0, reviewerr.WithDetails(
			reviewerr.Newf(reviewerr.ErrValidationFailed, "rating must be a number"),
			map[string]string{"field": "rating"},
		)
	}
	return ClampRatingFloat(v), nil
}

// Number parses a decimal number from untrusted text and clamps it to
// [lo, hi]. The boolean is false when no number could be parsed.
func Number(s string, lo, hi float64) (float64, bool) {
	cleaned := sanitize.Decimal(strings.TrimSpace(s))
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return math.Min(math.Max(v, lo), hi), true
}

// Filename reduces a user-supplied file name to a storage-safe form,
// keeping a lowercased extension.
func Filename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	ext := filepath.Ext(base)
	stem := sanitize.PathName(strings.TrimSuffix(base, ext))
	if stem == "" {
		stem = "file"
	}
	ext = sanitize.AlphaNumeric(strings.TrimPrefix(ext, "."), false)
	if ext == "" {
		return stem
	}
	return stem + "." + strings.ToLower(ext)
}
