package utils

import "strings"

// HasLetter returns true if s contains at least one ASCII letter (a-zA-Z)
func HasLetter(s string) bool {
	for _, r := range s {
		if ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') {
			return true
		}
	}
	return false
}

// HasNumber returns true if s contains at least one ASCII digit (0-9)
func HasNumber(s string) bool {
	for _, r := range s {
		if '0' <= r && r <= '9' {
			return true
		}
	}
	return false
}

// ValidPassword requires at least 8 characters with a letter and a digit.
func ValidPassword(s string) bool {
	return len(s) >= 8 && HasLetter(s) && HasNumber(s)
}

// ChatTitle derives a conversation name from its first message:
// whitespace collapsed, cut to max runes with a trailing ellipsis.
func ChatTitle(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
