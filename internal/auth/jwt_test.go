package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilchat/veilchat/internal/auth"
)

func TestJWTService_GenerateAndValidateToken(t *testing.T) {
	svc := auth.NewJWTService(auth.JWTConfig{
		SigningKey: "test-secret-key-for-testing-only",
		Issuer:     "https://api.veilchat.im",
		Audience:   "veil-api",
	})

	// Generate token
	token, expiresAt, err := svc.GenerateToken("alice@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.True(t, expiresAt.After(time.Now()))
	assert.WithinDuration(t, time.Now().Add(auth.TokenExpiry), expiresAt, time.Minute)

	// Validate token
	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", claims.JID())
	assert.Equal(t, "alice@example.com", claims.Subject)
	assert.Equal(t, "https://api.veilchat.im", claims.Issuer)
}

func TestJWTService_InvalidToken(t *testing.T) {
	svc := auth.NewJWTService(auth.JWTConfig{
		SigningKey: "test-secret-key-for-testing-only",
		Issuer:     "https://api.veilchat.im",
		Audience:   "veil-api",
	})

	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"malformed token", "not.a.valid.jwt"},
		{"invalid base64", "xxx.yyy.zzz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateToken(tt.token)
			assert.Error(t, err)
		})
	}
}

func TestJWTService_WrongSigningKey(t *testing.T) {
	// Generate with one key
	svc1 := auth.NewJWTService(auth.JWTConfig{
		SigningKey: "key-one",
		Issuer:     "https://api.veilchat.im",
		Audience:   "veil-api",
	})

	token, _, err := svc1.GenerateToken("alice@example.com")
	require.NoError(t, err)

	// Validate with different key
	svc2 := auth.NewJWTService(auth.JWTConfig{
		SigningKey: "key-two",
		Issuer:     "https://api.veilchat.im",
		Audience:   "veil-api",
	})

	_, err = svc2.ValidateToken(token)
	assert.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestJWTService_WrongIssuer(t *testing.T) {
	// Generate with one issuer
	svc1 := auth.NewJWTService(auth.JWTConfig{
		SigningKey: "test-key",
		Issuer:     "issuer-one",
		Audience:   "veil-api",
	})

	token, _, err := svc1.GenerateToken("alice@example.com")
	require.NoError(t, err)

	// Validate with different issuer
	svc2 := auth.NewJWTService(auth.JWTConfig{
		SigningKey: "test-key",
		Issuer:     "issuer-two",
		Audience:   "veil-api",
	})

	_, err = svc2.ValidateToken(token)
	assert.Error(t, err)
}

func TestJWTService_WrongAudience(t *testing.T) {
	// Generate with one audience
	svc1 := auth.NewJWTService(auth.JWTConfig{
		SigningKey: "test-key",
		Issuer:     "https://api.veilchat.im",
		Audience:   "audience-one",
	})

	token, _, err := svc1.GenerateToken("alice@example.com")
	require.NoError(t, err)

	// Validate with different audience
	svc2 := auth.NewJWTService(auth.JWTConfig{
		SigningKey: "test-key",
		Issuer:     "https://api.veilchat.im",
		Audience:   "audience-two",
	})

	_, err = svc2.ValidateToken(token)
	assert.Error(t, err)
}

func TestJWTService_SubjectPreserved(t *testing.T) {
	svc := auth.NewJWTService(auth.JWTConfig{
		SigningKey: "test-key",
		Issuer:     "https://api.veilchat.im",
		Audience:   "veil-api",
	})

	jids := []string{
		"alice@example.com",
		"bob_42@chat.veilchat.im",
	}

	for _, jid := range jids {
		token, _, err := svc.GenerateToken(jid)
		require.NoError(t, err)

		claims, err := svc.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, jid, claims.JID())
	}
}
