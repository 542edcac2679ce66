package guardrail

import (
	"strings"
	"unicode/utf8"
)

// CheckBlockedTerms reports whether response contains any of the terms,
// ignoring case. Blank terms never match.
func CheckBlockedTerms(response string, terms []string) bool {
	lower := strings.ToLower(response)
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(term)) {
			return true
		}
	}
	return false
}

// CheckResponseFormat reports whether response is deliverable:
// non-blank, valid UTF-8 and at most maxLength characters (0 disables the limit).
func CheckResponseFormat(response string, maxLength int) bool {
	if strings.TrimSpace(response) == "" {
		return false
	}
	if !utf8.ValidString(response) {
		return false
	}
	if maxLength > 0 && utf8.RuneCountInString(response) > maxLength {
		return false
	}
	return true
}
