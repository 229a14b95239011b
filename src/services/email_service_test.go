package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResendLimiterAllowsUpToMax(t *testing.T) {
	limiter := NewResendLimiter(time.Hour, 3)

	assert.True(t, limiter.Allow("user@example.com"))
	assert.True(t, limiter.Allow("USER@example.com")) // mesma chave, case-insensitive
	assert.True(t, limiter.Allow(" user@example.com "))
	assert.False(t, limiter.Allow("user@example.com"))

	// Outro endereço tem o seu próprio contador.
	assert.True(t, limiter.Allow("other@example.com"))
}

func TestResendLimiterWindowAnchoredAtFirstAttempt(t *testing.T) {
	limiter := NewResendLimiter(150*time.Millisecond, 2)

	assert.True(t, limiter.Allow("user@example.com"))
	assert.True(t, limiter.Allow("user@example.com"))
	assert.False(t, limiter.Allow("user@example.com"))

	// Tentativas negadas dentro da janela não podem prolongá-la.
	time.Sleep(80 * time.Millisecond)
	assert.False(t, limiter.Allow("user@example.com"))

	time.Sleep(150 * time.Millisecond)
	assert.True(t, limiter.Allow("user@example.com"))
}
