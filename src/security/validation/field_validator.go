// backend/src/security/validation/field_validator.go
package validation

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/username/valorpme/backend/src/logger"
)

var ErrValidationFailed = fmt.Errorf("validation failed")

// Constants for lengths remain here
const (
	DefaultMaxStringLength = 255
	MaxSectorCodeLength    = 20
	MaxValuationNameLength = 120
	MaxDescriptionLength   = 1024

	// Calendar year bounds for fiscal year records and founding years.
	MinCalendarYear = 1800
	MaxCalendarYear = 2200
)

// --- String Validators ---

// ValidateStringNotEmpty checks if a string is not empty after trimming.
func ValidateStringNotEmpty(s, fieldName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s cannot be empty", ErrValidationFailed, fieldName)
	}
	return nil
}

// ValidateStringMaxLength checks if a string's UTF-8 character count is within max bounds.
func ValidateStringMaxLength(s string, maxLength int, fieldName string) error {
	if utf8.RuneCountInString(s) > maxLength {
		return fmt.Errorf("%w: %s exceeds maximum length of %d characters", ErrValidationFailed, fieldName, maxLength)
	}
	return nil
}

// ValidateStringRegex checks if a string matches a given regex pattern.
func ValidateStringRegex(s string, pattern *regexp.Regexp, fieldName, formatDescription string) error {
	if !pattern.MatchString(s) {
		return fmt.Errorf("%w: %s ('%s') is not in the expected format (%s)", ErrValidationFailed, fieldName, s, formatDescription)
	}
	return nil
}

// --- Numeric Validators ---

// ValidateFiniteNumber rejects NaN and infinities. Financial figures must be
// plain finite numbers before they ever reach the valuation engine.
func ValidateFiniteNumber(v float64, fieldName string) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s must be a finite number", ErrValidationFailed, fieldName)
	}
	return nil
}

// ValidateNonNegativeNumber checks finiteness and rejects negative values.
// Used for revenue, headcount and expense figures; EBITDA and net income are
// allowed to be negative (losses) and only go through ValidateFiniteNumber.
func ValidateNonNegativeNumber(v float64, fieldName string) error {
	if err := ValidateFiniteNumber(v, fieldName); err != nil {
		return err
	}
	if v < 0 {
		logger.L.Warn("Negative value not allowed for field", "field", fieldName, "value", v)
		return fmt.Errorf("%w: %s cannot be negative", ErrValidationFailed, fieldName)
	}
	return nil
}

// ValidateCalendarYear checks a year label is within plausible bounds.
func ValidateCalendarYear(year int, fieldName string) error {
	if year < MinCalendarYear || year > MaxCalendarYear {
		logger.L.Warn("Calendar year out of range", "field", fieldName, "value", year)
		return fmt.Errorf("%w: %s must be between %d and %d, got %d", ErrValidationFailed, fieldName, MinCalendarYear, MaxCalendarYear, year)
	}
	return nil
}

// --- Specific Format Validators ---

var (
	sectorCodeRegex = regexp.MustCompile(`^[a-z0-9_]+$`)
	ipv4Regex       = regexp.MustCompile(`^(\d{1,3}\.){3}\d{1,3}$`)
	ipv6Regex       = regexp.MustCompile(`^[0-9a-fA-F:]+$`)
)

// ValidateSectorCode checks format and length for a sector benchmark code.
func ValidateSectorCode(s string) error {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" { // optional: valuations may have no sector selected
		return nil
	}
	if err := ValidateStringMaxLength(trimmed, MaxSectorCodeLength, "Sector Code"); err != nil {
		return err
	}
	return ValidateStringRegex(trimmed, sectorCodeRegex, "Sector Code", "lowercase letters, digits and underscores")
}

// IsValidIPAddress reports whether s looks like an IPv4 or IPv6 address.
// Format validation only; reachability is not the point here.
func IsValidIPAddress(s string) bool {
	if ipv4Regex.MatchString(s) {
		// Each octet must fit in a byte.
		for _, part := range strings.Split(s, ".") {
			if len(part) > 1 && part[0] == '0' {
				return false
			}
			n := 0
			for _, c := range part {
				n = n*10 + int(c-'0')
			}
			if n > 255 {
				return false
			}
		}
		return true
	}
	return strings.Contains(s, ":") && ipv6Regex.MatchString(s)
}
