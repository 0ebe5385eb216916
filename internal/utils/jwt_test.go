package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccessToken_RoundTrip(t *testing.T) {
	tok, err := NewAccessToken("test-secret", 42, 15)
	assert.NoError(t, err)
	assert.NotEmpty(t, tok.Token)

	uid, err := ParseAccessToken("test-secret", tok.Token)
	assert.NoError(t, err)
	assert.Equal(t, uint64(42), uid)
}

func TestParseAccessToken_WrongSecret(t *testing.T) {
	tok, err := NewAccessToken("test-secret", 42, 15)
	assert.NoError(t, err)

	_, err = ParseAccessToken("other-secret", tok.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseAccessToken_Expired(t *testing.T) {
	// Negative TTL backdates the expiry, so the token is born expired.
	tok, err := NewAccessToken("test-secret", 42, -1)
	assert.NoError(t, err)

	_, err = ParseAccessToken("test-secret", tok.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseAccessToken_Garbage(t *testing.T) {
	_, err := ParseAccessToken("test-secret", "not.a.jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRandomHex(t *testing.T) {
	a, err := RandomHex(12)
	assert.NoError(t, err)
	assert.Len(t, a, 24) // 12 bytes -> 24 hex chars

	b, err := RandomHex(12)
	assert.NoError(t, err)
	assert.NotEqual(t, a, b)
}
