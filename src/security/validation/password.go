// backend/src/security/validation/password.go
package validation

import "unicode"

// PasswordStrengthResult mirrors the response shape of the password-strength
// endpoint: a verdict plus the list of unmet rules.
type PasswordStrengthResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

const (
	MinPasswordLength = 8
	MaxPasswordLength = 72 // bcrypt input limit
)

// CheckPasswordStrength evaluates a candidate password against the account
// policy. All rules are checked so the client can show every problem at once.
func CheckPasswordStrength(password string) PasswordStrengthResult {
	var errs []string

	if len(password) < MinPasswordLength {
		errs = append(errs, "password must be at least 8 characters long")
	}
	if len(password) > MaxPasswordLength {
		errs = append(errs, "password must be at most 72 characters long")
	}

	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasUpper {
		errs = append(errs, "password must contain at least one uppercase letter")
	}
	if !hasLower {
		errs = append(errs, "password must contain at least one lowercase letter")
	}
	if !hasDigit {
		errs = append(errs, "password must contain at least one digit")
	}

	return PasswordStrengthResult{Valid: len(errs) == 0, Errors: errs}
}
