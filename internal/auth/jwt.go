// Package auth verifies session credentials issued by the external identity
// provider and resolves them to internal users.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenVerifier checks a raw bearer credential and returns the provider-side
// identity claims embedded in it.
type TokenVerifier interface {
	Verify(ctx context.Context, credential string) (*Claims, error)
}

// Claims is the session-token payload shared with the identity provider.
// Subject carries the provider's stable user id; the profile claims feed the
// first-sync user creation.
type Claims struct {
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	Avatar string `json:"avatar,omitempty"`
	jwt.RegisteredClaims
}

// JWTManager verifies (and, for tests and local providers, issues) HS256
// session tokens with a secret shared with the identity provider.
type JWTManager struct {
	secretKey string
	issuer    string
	duration  time.Duration
}

// NewJWTManager returns a configured JWTManager. issuer may be empty, in
// which case the issuer claim is not enforced.
func NewJWTManager(secretKey, issuer string, duration time.Duration) *JWTManager {
	return &JWTManager{
		secretKey: secretKey,
		issuer:    issuer,
		duration:  duration,
	}
}

// GenerateToken issues a signed session token for the given provider subject.
func (m *JWTManager) GenerateToken(externalID, name, email, avatar string) (string, time.Time, error) {
	expiresAt := time.Now().Add(m.duration)

	claims := &Claims{
		Name:   name,
		Email:  email,
		Avatar: avatar,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   externalID,
			Issuer:    m.issuer,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(m.secretKey))
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// Verify parses and validates a credential and returns its claims. Expired,
// malformed or foreign-issuer tokens all fail.
func (m *JWTManager) Verify(_ context.Context, credential string) (*Claims, error) {
	claims := &Claims{}

	parserOpts := []jwt.ParserOption{jwt.WithExpirationRequired()}
	if m.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(m.issuer))
	}

	token, err := jwt.ParseWithClaims(credential, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(m.secretKey), nil
	}, parserOpts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}

	return claims, nil
}
