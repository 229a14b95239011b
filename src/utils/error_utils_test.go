package utils

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil error", nil, ""},
		{"unique constraint", errors.New("UNIQUE constraint failed: users.email"), "This record already exists."},
		{"foreign key", errors.New("FOREIGN KEY constraint failed"), "This record is referenced by other data and cannot be changed."},
		{"sqlite internals", errors.New("sqlite: database disk image is malformed"), "A storage error occurred. Please try again."},
		{"expired token", errors.New("token is expired by 3h"), "Your session has expired. Please sign in again."},
		{"jwt internals", errors.New("failed to parse JWT claims"), "Your session is no longer valid. Please sign in again."},
		{"timeout", errors.New("Get \"https://api.ipify.org\": context deadline exceeded"), "The operation timed out. Please try again."},
		{"unknown error", errors.New("some internal detail"), "Something went wrong. Please try again."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeErrorMessage(tt.err))
		})
	}
}

func TestSanitizeErrorMessagePassesThroughValidationErrors(t *testing.T) {
	err := fmt.Errorf("validation failed: Name cannot be empty")
	assert.Equal(t, err.Error(), SanitizeErrorMessage(err))
}
