// Competo - Multi-Tenant Competency Assessment Platform
// Copyright 2026 Competo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/competo/competo

package token

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/competo/competo/internal/config"
	"github.com/competo/competo/internal/models"
)

func testSecurityConfig() *config.SecurityConfig {
	return &config.SecurityConfig{
		JWTSecret:          strings.Repeat("k", 32),
		UserTokenTTL:       time.Hour,
		PrivilegedTokenTTL: 30 * time.Minute,
		RotateThreshold:    10 * time.Minute,
	}
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(testSecurityConfig())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return m
}

func TestNewManagerRequiresSecret(t *testing.T) {
	cfg := testSecurityConfig()
	cfg.JWTSecret = ""

	_, err := NewManager(cfg)
	var cfgErr *config.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("NewManager() error = %v, want *config.ConfigError", err)
	}
}

func TestIssueVerifyRoundtrip(t *testing.T) {
	m := newTestManager(t)

	tests := []struct {
		name     string
		subject  string
		role     models.Role
		tenantID string
	}{
		{"tenant bound user", "u-123", models.RoleUser, "t-acme"},
		{"hr manager", "u-456", models.RoleHRManager, "t-acme"},
		{"system role without tenant", "u-789", models.RoleSysAdmin, ""},
		{"super admin", "u-root", models.RoleSuperAdmin, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signed, err := m.Issue(tt.subject, tt.role, tt.tenantID)
			if err != nil {
				t.Fatalf("Issue() error = %v", err)
			}

			claims, err := m.Verify(signed)
			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
			if claims.SubjectID != tt.subject {
				t.Errorf("SubjectID = %q, want %q", claims.SubjectID, tt.subject)
			}
			if claims.Role != string(tt.role) {
				t.Errorf("Role = %q, want %q", claims.Role, tt.role)
			}
			if claims.TenantID != tt.tenantID {
				t.Errorf("TenantID = %q, want %q", claims.TenantID, tt.tenantID)
			}
		})
	}
}

func TestIssueRejectsInvalidInput(t *testing.T) {
	m := newTestManager(t)

	if _, err := m.Issue("", models.RoleUser, "t-acme"); !errors.Is(err, models.ErrMissingSubjectID) {
		t.Errorf("Issue with empty subject: error = %v, want ErrMissingSubjectID", err)
	}
	if _, err := m.Issue("u-1", models.Role("wizard"), ""); !errors.Is(err, models.ErrUnknownRole) {
		t.Errorf("Issue with unknown role: error = %v, want ErrUnknownRole", err)
	}
}

func TestPrivilegedTokensAreShortLived(t *testing.T) {
	m := newTestManager(t)

	userTok, err := m.Issue("u-1", models.RoleUser, "t-acme")
	if err != nil {
		t.Fatalf("Issue(user) error = %v", err)
	}
	adminTok, err := m.Issue("u-2", models.RoleSuperAdmin, "")
	if err != nil {
		t.Fatalf("Issue(super_admin) error = %v", err)
	}

	userClaims, err := m.Verify(userTok)
	if err != nil {
		t.Fatalf("Verify(user) error = %v", err)
	}
	adminClaims, err := m.Verify(adminTok)
	if err != nil {
		t.Fatalf("Verify(admin) error = %v", err)
	}

	if !adminClaims.ExpiresAt.Time.Before(userClaims.ExpiresAt.Time) {
		t.Errorf("privileged expiry %v not before user expiry %v",
			adminClaims.ExpiresAt.Time, userClaims.ExpiresAt.Time)
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	cfg := testSecurityConfig()
	cfg.UserTokenTTL = -time.Minute
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	signed, err := m.Issue("u-1", models.RoleUser, "t-acme")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	_, err = m.Verify(signed)
	if !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Verify(expired) error = %v, want ErrExpiredToken", err)
	}
	if errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expired token must not report ErrInvalidSignature, got %v", err)
	}
}

func TestVerifyTamperedSignature(t *testing.T) {
	m := newTestManager(t)

	signed, err := m.Issue("u-1", models.RoleUser, "t-acme")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	// Flip a byte inside the signature segment.
	parts := strings.Split(signed, ".")
	if len(parts) != 3 {
		t.Fatalf("token has %d segments, want 3", len(parts))
	}
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	_, err = m.Verify(tampered)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("Verify(tampered) error = %v, want ErrInvalidSignature", err)
	}
}

func TestVerifyForeignSecret(t *testing.T) {
	m := newTestManager(t)

	other := testSecurityConfig()
	other.JWTSecret = strings.Repeat("x", 32)
	foreign, err := NewManager(other)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	signed, err := foreign.Issue("u-1", models.RoleUser, "t-acme")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if _, err := m.Verify(signed); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("Verify(foreign secret) error = %v, want ErrInvalidSignature", err)
	}
}

func TestVerifyMalformed(t *testing.T) {
	m := newTestManager(t)

	for _, input := range []string{"", "not-a-token", "a.b", "a.b.c.d"} {
		if _, err := m.Verify(input); !errors.Is(err, ErrMalformedToken) {
			t.Errorf("Verify(%q) error = %v, want ErrMalformedToken", input, err)
		}
	}
}

func TestRotatePreservesIdentity(t *testing.T) {
	m := newTestManager(t)

	signed, err := m.Issue("u-1", models.RoleHRManager, "t-acme")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	claims, err := m.Verify(signed)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	rotated, err := m.Rotate(claims)
	if err != nil {
		t.Fatalf("Rotate() error = %v", err)
	}
	newClaims, err := m.Verify(rotated)
	if err != nil {
		t.Fatalf("Verify(rotated) error = %v", err)
	}

	if newClaims.SubjectID != claims.SubjectID || newClaims.Role != claims.Role || newClaims.TenantID != claims.TenantID {
		t.Errorf("rotated claims %+v do not match original %+v", newClaims, claims)
	}
}

func TestNeedsRotation(t *testing.T) {
	cfg := testSecurityConfig()
	cfg.UserTokenTTL = 5 * time.Minute
	cfg.RotateThreshold = 10 * time.Minute
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	signed, err := m.Issue("u-1", models.RoleUser, "t-acme")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	claims, err := m.Verify(signed)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !m.NeedsRotation(claims) {
		t.Error("NeedsRotation() = false for token inside rotate window")
	}

	cfg.RotateThreshold = time.Minute
	m2, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	if m2.NeedsRotation(claims) {
		t.Error("NeedsRotation() = true for token well outside rotate window")
	}
}
