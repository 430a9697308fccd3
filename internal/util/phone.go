package util

import (
	"regexp"
	"strconv"
	"strings"
)

var nonDigits = regexp.MustCompile(`[^\d]+`)

// NormalizePhone strips separators and a leading "+" or "00" from user input,
// leaving only the digits.
func NormalizePhone(raw string) string {
	s := nonDigits.ReplaceAllString(strings.TrimSpace(raw), "")
	if strings.HasPrefix(strings.TrimSpace(raw), "00") {
		s = strings.TrimPrefix(s, "00")
	}

	return s
}

// ParsePhone normalizes raw and returns it as a number. Phones need at least
// 10 digits and must fit an int64.
func ParsePhone(raw string) (int64, bool) {
	s := NormalizePhone(raw)
	if len(s) < 10 || len(s) > 18 {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ValidPhone reports whether n has at least 10 digits.
func ValidPhone(n int64) bool {
	return n >= 1_000_000_000
}
