// jwt.go issues and checks signed tokens. API clients send the login token
// as a Bearer header; magic sign-in links carry a short-lived token with
// its own purpose so one kind can never stand in for the other.
package middleware

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jerin288/jdt-tool-web/internal/models"
)

// Token lifetimes.
const (
	LoginTokenTTL     = 72 * time.Hour
	MagicLinkTokenTTL = 15 * time.Minute
)

const (
	purposeLogin     = "login"
	purposeMagicLink = "magic_link"
)

// ErrWrongTokenPurpose is returned when a valid token is used for the
// wrong job, such as a magic-link token sent as a Bearer token.
var ErrWrongTokenPurpose = errors.New("token not valid for this use")

// JWTClaims extends standard JWT claims with user info.
type JWTClaims struct {
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

func signToken(user *models.User, secret, purpose string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		UserID:  user.ID,
		Email:   user.Email,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   user.ID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func parseToken(tokenString, secret, purpose string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrSignatureInvalid
	}
	if claims.Purpose != purpose {
		return nil, ErrWrongTokenPurpose
	}
	return claims, nil
}

// GenerateJWT creates a login token for a user.
func GenerateJWT(user *models.User, secret string) (string, error) {
	return signToken(user, secret, purposeLogin, LoginTokenTTL)
}

// ParseJWT validates a login token.
func ParseJWT(tokenString, secret string) (*JWTClaims, error) {
	return parseToken(tokenString, secret, purposeLogin)
}

// GenerateMagicLinkToken creates the token embedded in an emailed sign-in link.
func GenerateMagicLinkToken(user *models.User, secret string) (string, error) {
	return signToken(user, secret, purposeMagicLink, MagicLinkTokenTTL)
}

// ParseMagicLinkToken validates a sign-in link token.
func ParseMagicLinkToken(tokenString, secret string) (*JWTClaims, error) {
	return parseToken(tokenString, secret, purposeMagicLink)
}
