package auth

import (
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/caffeinepub/connect-dating/internal/domain/model"
)

const tokenIssuer = "connect-identity"

// TokenManager signs and verifies identity delegation tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}

	return &TokenManager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (m *TokenManager) IssueToken(principal model.Principal) (string, time.Time, error) {
	if len(m.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("token secret is empty")
	}
	if principal.IsZero() || principal.IsAnonymous() {
		return "", time.Time{}, fmt.Errorf("invalid token principal")
	}

	now := m.now().UTC()
	expiresAt := now.Add(m.ttl)
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   principal.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign identity token: %w", err)
	}
	return signed, expiresAt, nil
}

func (m *TokenManager) VerifyToken(raw string) (model.Principal, time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return "", time.Time{}, ErrUnauthorized
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(_ *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || token == nil || !token.Valid {
		return "", time.Time{}, ErrUnauthorized
	}

	principal, err := model.ParsePrincipal(claims.Subject)
	if err != nil || principal.IsAnonymous() {
		return "", time.Time{}, ErrUnauthorized
	}

	return principal, claims.ExpiresAt.Time, nil
}
