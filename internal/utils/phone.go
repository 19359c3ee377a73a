package utils

import (
	"errors"
	"strings"
	"unicode"
)

// ErrInvalidPhone is returned for phone numbers that are not 9 to 11
// digits once separators are removed.
var ErrInvalidPhone = errors.New("invalid phone number")

// NormalizePhone strips dashes, spaces, dots and parentheses and returns
// the remaining digits, so "010-1234-5678" and "010 1234 5678" both become
// "01012345678".  Any other character is rejected.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '.' || r == '(' || r == ')' || unicode.IsSpace(r):
		default:
			return "", ErrInvalidPhone
		}
	}
	digits := b.String()
	if len(digits) < 9 || len(digits) > 11 {
		return "", ErrInvalidPhone
	}
	return digits, nil
}
