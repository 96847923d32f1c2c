package middleware

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jerin288/jdt-tool-web/internal/models"
)

func TestLoginToken_RoundTrip(t *testing.T) {
	user := &models.User{ID: "u1", Email: "a@example.com"}
	token, err := GenerateJWT(user, "secret")
	require.NoError(t, err)

	claims, err := ParseJWT(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "a@example.com", claims.Email)
	assert.WithinDuration(t, time.Now().Add(LoginTokenTTL), claims.ExpiresAt.Time, time.Minute)
}

func TestParseToken_Rejects(t *testing.T) {
	user := &models.User{ID: "u1", Email: "a@example.com"}
	login, err := GenerateJWT(user, "secret")
	require.NoError(t, err)
	magic, err := GenerateMagicLinkToken(user, "secret")
	require.NoError(t, err)

	expired, err := signToken(user, "secret", purposeLogin, -time.Minute)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, JWTClaims{UserID: "u1", Purpose: purposeLogin}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		parse func() (*JWTClaims, error)
	}{
		{"wrong secret", func() (*JWTClaims, error) { return ParseJWT(login, "other") }},
		{"magic link used as login", func() (*JWTClaims, error) { return ParseJWT(magic, "secret") }},
		{"login used as magic link", func() (*JWTClaims, error) { return ParseMagicLinkToken(login, "secret") }},
		{"expired", func() (*JWTClaims, error) { return ParseJWT(expired, "secret") }},
		{"alg none", func() (*JWTClaims, error) { return ParseJWT(none, "secret") }},
		{"garbage", func() (*JWTClaims, error) { return ParseJWT("not.a.token", "secret") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.parse()
			assert.Error(t, err)
		})
	}

	claims, err := ParseMagicLinkToken(magic, "secret")
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
}
