package validation

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/username/valorpme/backend/src/logger"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

func TestCheckPasswordStrength(t *testing.T) {
	tests := []struct {
		name     string
		password string
		valid    bool
		errCount int
	}{
		{"valid password", "Str0ngPass", true, 0},
		{"too short", "Ab1", false, 1},
		{"no uppercase", "weakpass1", false, 1},
		{"no lowercase", "WEAKPASS1", false, 1},
		{"no digit", "WeakPassword", false, 1},
		{"empty", "", false, 4},
		{"too long", strings.Repeat("Aa1", 25), false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CheckPasswordStrength(tt.password)
			assert.Equal(t, tt.valid, result.Valid)
			assert.Len(t, result.Errors, tt.errCount)
		})
	}
}

func TestValidateSectorCode(t *testing.T) {
	assert.NoError(t, ValidateSectorCode("software"))
	assert.NoError(t, ValidateSectorCode("it_services"))
	assert.NoError(t, ValidateSectorCode("")) // optional
	assert.Error(t, ValidateSectorCode("Software"))
	assert.Error(t, ValidateSectorCode("retail-shop"))
	assert.Error(t, ValidateSectorCode(strings.Repeat("a", MaxSectorCodeLength+1)))
}

func TestValidateFiniteNumber(t *testing.T) {
	assert.NoError(t, ValidateFiniteNumber(0, "x"))
	assert.NoError(t, ValidateFiniteNumber(-123.45, "x"))

	var zero float64
	assert.Error(t, ValidateFiniteNumber(1/zero, "x"))    // +Inf
	assert.Error(t, ValidateFiniteNumber(zero/zero, "x")) // NaN
}

func TestValidateNonNegativeNumber(t *testing.T) {
	assert.NoError(t, ValidateNonNegativeNumber(0, "Revenue"))
	assert.NoError(t, ValidateNonNegativeNumber(1500.5, "Revenue"))
	assert.Error(t, ValidateNonNegativeNumber(-1, "Revenue"))
}

func TestValidateCalendarYear(t *testing.T) {
	assert.NoError(t, ValidateCalendarYear(2024, "Year"))
	assert.NoError(t, ValidateCalendarYear(MinCalendarYear, "Year"))
	assert.NoError(t, ValidateCalendarYear(MaxCalendarYear, "Year"))
	assert.Error(t, ValidateCalendarYear(1500, "Year"))
	assert.Error(t, ValidateCalendarYear(3000, "Year"))
}

func TestIsValidIPAddress(t *testing.T) {
	assert.True(t, IsValidIPAddress("192.168.1.1"))
	assert.True(t, IsValidIPAddress("203.0.113.7"))
	assert.True(t, IsValidIPAddress("2001:db8::1"))
	assert.True(t, IsValidIPAddress("::1"))

	assert.False(t, IsValidIPAddress(""))
	assert.False(t, IsValidIPAddress("not-an-ip"))
	assert.False(t, IsValidIPAddress("999.1.1.1"))
	assert.False(t, IsValidIPAddress("192.168.01.1")) // leading zero
}

func TestSanitizeText(t *testing.T) {
	assert.Equal(t, "hello", SanitizeText("hello"))
	assert.Equal(t, "", SanitizeText("<script>alert(1)</script>"))
	assert.Equal(t, "bold", SanitizeText("<b>bold</b>"))
}
