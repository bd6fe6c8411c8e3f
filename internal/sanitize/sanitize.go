// Package sanitize neutralises untrusted text before it is stored,
// rendered or written on-chain.
//
// Every function here is idempotent: applying it to its own output
// returns the output unchanged.
package sanitize

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mrz1836/go-sanitize"
)

// MaxTextLength is the maximum length of a sanitized field, in runes.
const MaxTextLength = 10000

var (
	scriptBlock = regexp.MustCompile(`(?is)<script[^>]*>.*?</script\s*>`)
	styleBlock  = regexp.MustCompile(`(?is)<style[^>]*>.*?</style\s*>`)
	strayScript = regexp.MustCompile(`(?i)<\s*/?\s*script`)
	pseudoURL   = regexp.MustCompile(`(?i)(java|vb)script\s*:`)
	dataURI     = regexp.MustCompile(`(?i)data\s*:`)
	cssExpr     = regexp.MustCompile(`(?i)expression\s*\(`)
	eventAttr   = regexp.MustCompile(`(?i)on\w+\s*=`)
	spaceRuns   = regexp.MustCompile(`[ ]{2,}`)
)

// Text sanitizes free-form multi-line text such as a review body.
func Text(s string) string {
	return clean(s, false)
}

// SingleLine sanitizes short fields (company name, category, title).
// Line breaks and tabs become single spaces.
func SingleLine(s string) string {
	return clean(s, true)
}

func clean(s string, singleLine bool) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	s = truncate(s, MaxTextLength)

	for {
		next := pass(s, singleLine)
		if next == s {
			break
		}
		s = next
	}

	return strings.TrimSpace(truncate(s, MaxTextLength))
}

// pass runs one round of removals. Each step either removes runes or
// leaves the input untouched, so repeated passes reach a fixpoint.
func pass(s string, singleLine bool) string {
	s = scriptBlock.ReplaceAllString(s, "")
	s = styleBlock.ReplaceAllString(s, "")
	s = sanitize.Scripts(s)
	s = sanitize.HTML(s)
	s = sanitize.XSS(s)
	s = strayScript.ReplaceAllString(s, "")
	s = pseudoURL.ReplaceAllString(s, "")
	s = dataURI.ReplaceAllString(s, "")
	s = cssExpr.ReplaceAllString(s, "")
	s = eventAttr.ReplaceAllString(s, "")
	s = stripControl(s, singleLine)
	if singleLine {
		s = spaceRuns.ReplaceAllString(s, " ")
	}
	return strings.TrimSpace(s)
}

func stripControl(s string, singleLine bool) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			if singleLine {
				return ' '
			}
			return r
		case unicode.IsControl(r), r == utf8.RuneError:
			return -1
		default:
			return r
		}
	}, s)
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
