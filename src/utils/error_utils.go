// backend/src/utils/error_utils.go
package utils

import "strings"

// sanitizeRules maps backend-specific phrasing to user-friendly equivalents.
// Matching is case-insensitive on substrings; first hit wins, ordered from
// most to least specific.
var sanitizeRules = []struct {
	pattern string
	message string
}{
	{"unique constraint", "This record already exists."},
	{"foreign key constraint", "This record is referenced by other data and cannot be changed."},
	{"constraint failed", "The data provided is not valid."},
	{"database is locked", "The service is busy. Please try again."},
	{"sqlite", "A storage error occurred. Please try again."},
	{"sql:", "A storage error occurred. Please try again."},
	{"token is expired", "Your session has expired. Please sign in again."},
	{"signature is invalid", "Your session is no longer valid. Please sign in again."},
	{"jwt", "Your session is no longer valid. Please sign in again."},
	{"permission denied", "You do not have permission to perform this action."},
	{"no such table", "A storage error occurred. Please try again."},
	{"no such column", "A storage error occurred. Please try again."},
	{"connection refused", "The service is temporarily unavailable. Please try again."},
	{"context deadline exceeded", "The operation timed out. Please try again."},
}

const genericErrorMessage = "Something went wrong. Please try again."

// SanitizeErrorMessage converts a backend error into a message safe to show
// to users, stripping schema, driver and token details.
func SanitizeErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	lower := strings.ToLower(err.Error())
	for _, rule := range sanitizeRules {
		if strings.Contains(lower, rule.pattern) {
			return rule.message
		}
	}
	// Validation errors are written for users already; pass them through.
	if strings.Contains(lower, "validation failed") {
		return err.Error()
	}
	return genericErrorMessage
}
