// Competo - Multi-Tenant Competency Assessment Platform
// Copyright 2026 Competo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/competo/competo

package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/competo/competo/internal/config"
	"github.com/competo/competo/internal/models"
)

// Verification sentinels. Callers match with errors.Is.
var (
	// ErrExpiredToken means the token was well formed and correctly
	// signed but its lifetime has elapsed.
	ErrExpiredToken = errors.New("token expired")

	// ErrInvalidSignature means the signature did not verify against
	// the current secret. A token that is both expired and tampered
	// reports this error, not ErrExpiredToken.
	ErrInvalidSignature = errors.New("token signature invalid")

	// ErrMalformedToken means the input could not be parsed as a JWT
	// or its claims failed structural validation.
	ErrMalformedToken = errors.New("token malformed")
)

// Claims are the verified contents of a Competo bearer token.
type Claims struct {
	SubjectID string `json:"sub_id"`
	Role      string `json:"role"`
	TenantID  string `json:"tid,omitempty"`
	jwt.RegisteredClaims
}

// Manager creates and verifies bearer tokens. The zero value is not
// usable; construct with NewManager.
type Manager struct {
	secret          []byte
	userTTL         time.Duration
	privilegedTTL   time.Duration
	rotateThreshold time.Duration
}

// NewManager builds a token manager from the security configuration.
// The secret requirement is enforced here as well as at config load so
// a Manager can never be constructed unsigned.
func NewManager(cfg *config.SecurityConfig) (*Manager, error) {
	if cfg.JWTSecret == "" {
		return nil, &config.ConfigError{Field: "security.jwt_secret", Reason: "signing secret is required"}
	}

	return &Manager{
		secret:          []byte(cfg.JWTSecret),
		userTTL:         cfg.UserTokenTTL,
		privilegedTTL:   cfg.PrivilegedTokenTTL,
		rotateThreshold: cfg.RotateThreshold,
	}, nil
}

// ttlFor returns the lifetime for a role. Privileged roles get the
// short-lived TTL.
func (m *Manager) ttlFor(role models.Role) time.Duration {
	if role.Privileged() {
		return m.privilegedTTL
	}
	return m.userTTL
}

// Issue signs a new token for the given subject. The token lifetime
// depends on the role: privileged roles receive short-lived tokens.
func (m *Manager) Issue(subjectID string, role models.Role, tenantID string) (string, error) {
	if subjectID == "" {
		return "", fmt.Errorf("issue token: %w", models.ErrMissingSubjectID)
	}
	if !role.Valid() {
		return "", fmt.Errorf("issue token for role %q: %w", role, models.ErrUnknownRole)
	}

	now := time.Now()
	claims := &Claims{
		SubjectID: subjectID,
		Role:      string(role),
		TenantID:  tenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttlFor(role))),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token string, returning its claims.
// Failures map onto exactly one of the package sentinels:
//
//   - ErrExpiredToken for lifetime violations on otherwise valid tokens
//   - ErrInvalidSignature for signature mismatch or algorithm confusion
//   - ErrMalformedToken for anything that is not a parseable token
func (m *Manager) Verify(tokenString string) (*Claims, error) {
	tok, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, classifyParseError(err)
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, ErrMalformedToken
	}
	if claims.SubjectID == "" {
		return nil, ErrMalformedToken
	}
	if role := models.Role(claims.Role); !role.Valid() {
		return nil, ErrMalformedToken
	}

	return claims, nil
}

// classifyParseError maps jwt/v5 errors onto the package sentinels.
// Signature failures win over expiry: a tampered token must never be
// reported as merely expired.
func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %w", ErrExpiredToken, err)
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return fmt.Errorf("%w: %w", ErrExpiredToken, err)
	default:
		return fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}
}

// Rotate reissues a token with the same identity claims and a fresh
// lifetime. The caller must have verified the old claims first.
func (m *Manager) Rotate(claims *Claims) (string, error) {
	return m.Issue(claims.SubjectID, models.Role(claims.Role), claims.TenantID)
}

// NeedsRotation reports whether a verified token is close enough to
// expiry that the transport layer should issue a replacement.
func (m *Manager) NeedsRotation(claims *Claims) bool {
	if claims.ExpiresAt == nil || m.rotateThreshold <= 0 {
		return false
	}
	return time.Until(claims.ExpiresAt.Time) < m.rotateThreshold
}
