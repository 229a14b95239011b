package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/valorpme/backend/src/config"
)

func init() {
	config.Cfg = &config.AppConfig{
		AccessTokenExpiry: 15 * time.Minute,
	}
}

func TestHashAndComparePassword(t *testing.T) {
	service := NewAuthService("test-secret-test-secret-test-secret")

	hash, err := service.HashPassword("Str0ngPass")
	require.NoError(t, err)
	assert.NotEqual(t, "Str0ngPass", hash)

	assert.NoError(t, service.CompareHashAndPassword(hash, "Str0ngPass"))
	assert.Error(t, service.CompareHashAndPassword(hash, "WrongPass1"))
}

func TestGenerateAndValidateToken(t *testing.T) {
	service := NewAuthService("test-secret-test-secret-test-secret")

	token, err := service.GenerateToken("42")
	require.NoError(t, err)

	sub, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "42", sub)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	issuer := NewAuthService("secret-one-secret-one-secret-one")
	verifier := NewAuthService("secret-two-secret-two-secret-two")

	token, err := issuer.GenerateToken("42")
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.Error(t, err)
}

func TestGenerateRefreshTokenIsUnique(t *testing.T) {
	service := NewAuthService("test-secret-test-secret-test-secret")

	first, err := service.GenerateRefreshToken()
	require.NoError(t, err)
	second, err := service.GenerateRefreshToken()
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.NotEmpty(t, first)
}
