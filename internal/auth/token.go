// Package auth provides UI session authentication: an operator password
// verified against a bcrypt hash in settings, opaque session tokens stored
// in the database, short-lived JWT tokens for the browser WebSocket (which
// cannot send Authorization headers), and a per-source rate limiter for
// repeated authentication failures.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims holds the JWT payload for WebSocket access tokens.
type Claims struct {
	jwt.RegisteredClaims
	SessionToken string `json:"sid"`
}

// TokenService signs and validates short-lived WebSocket access tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService with the given signing secret and TTL.
func NewTokenService(secret []byte, ttl time.Duration) *TokenService {
	return &TokenService{secret: secret, ttl: ttl}
}

// IssueWSToken generates a signed JWT bound to the given UI session.
func (s *TokenService) IssueWSToken(sessionToken string) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			Issuer:    "panoptikon",
		},
		SessionToken: sessionToken,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign ws token: %w", err)
	}
	return signed, nil
}

// ValidateWSToken parses and validates a WebSocket token, returning the claims.
func (s *TokenService) ValidateWSToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// NewSessionToken returns a cryptographically random opaque session token.
func NewSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
