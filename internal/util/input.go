package util

import (
	"net/mail"
	"strings"
)

// NormalizeEmail trims and lowercases an address so cache keys and primary keys agree.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail reports whether s parses as a bare address (no display name).
func ValidEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

// ContainsSuspicious flags markup or template fragments in free-text fields.
func ContainsSuspicious(s string) bool {
	for _, c := range []string{"<", ">", "{{", "}}"} {
		if strings.Contains(s, c) {
			return true
		}
	}
	return false
}
