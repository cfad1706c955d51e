// Package auth covers session credentials: JWT issue/verify and password
// hashing.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ebeckert/letterwell/internal/apperr"
	"github.com/ebeckert/letterwell/internal/model"
)

// SessionClaims is the payload of a signed session credential. The token is
// stateless: validity is a function of signature and expiry only, plus a
// database read at verification time to confirm the account still exists.
type SessionClaims struct {
	UserID uint   `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies session credentials with a shared HMAC
// secret.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer creates an issuer. ttl is the default credential lifetime;
// zero means 24 hours.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}
}

// Issue signs a session credential for the user with the default lifetime.
func (i *TokenIssuer) Issue(u *model.User) (string, error) {
	return i.IssueWithTTL(u, i.ttl)
}

// IssueWithTTL signs a session credential with an explicit lifetime. The
// profile-update reissue path uses a shorter one.
func (i *TokenIssuer) IssueWithTTL(u *model.User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		UserID: u.ID,
		Email:  u.Email,
		Name:   u.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the embedded claims. Expired
// and otherwise-invalid tokens fail with distinct codes so the client can
// decide between re-login and retry.
func (i *TokenIssuer) Verify(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.Wrap(apperr.CodeTokenExpired, "Token has expired", err)
		}
		return nil, apperr.Wrap(apperr.CodeInvalidToken, "Invalid token", err)
	}
	if !token.Valid {
		return nil, apperr.New(apperr.CodeInvalidToken, "Invalid token")
	}
	return claims, nil
}
