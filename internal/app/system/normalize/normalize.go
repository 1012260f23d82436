// Package normalize provides helper functions for consistent string normalization
// across the application. Use these helpers instead of scattered strings.ToLower
// and strings.TrimSpace calls to ensure consistent behavior.
package normalize

import (
	"strings"

	"github.com/dalemusser/waffle/pantry/text"
)

// Email normalizes an email address by trimming whitespace and converting to lowercase.
// Notification targets are normalized with it before storage.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// UserIdentity trims a user identity. The stored form keeps its case.
func UserIdentity(s string) string {
	return strings.TrimSpace(s)
}

// UserIdentityKey is the case- and diacritic-insensitive lookup key for a
// user identity.
func UserIdentityKey(s string) string {
	return text.Fold(UserIdentity(s))
}

// DeviceID lowercases a MAC-style identifier and uses ':' as the octet
// separator, so "A4-55-90-55-CC-03" and "a4:55:90:55:cc:03" match.
func DeviceID(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", ":")
}

// QueryParam normalizes a query parameter by trimming whitespace.
func QueryParam(s string) string {
	return strings.TrimSpace(s)
}
