// Competo - Multi-Tenant Competency Assessment Platform
// Copyright 2026 Competo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/competo/competo

package guard

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/competo/competo/internal/config"
	"github.com/competo/competo/internal/models"
	"github.com/competo/competo/internal/rbac"
	"github.com/competo/competo/internal/store"
	"github.com/competo/competo/internal/token"
)

type fixture struct {
	guard  *Guard
	tokens *token.Manager
	store  *store.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := &config.SecurityConfig{
		JWTSecret:          strings.Repeat("s", 32),
		UserTokenTTL:       time.Hour,
		PrivilegedTokenTTL: 30 * time.Minute,
		RotateThreshold:    10 * time.Minute,
	}
	tokens, err := token.NewManager(cfg)
	if err != nil {
		t.Fatalf("token.NewManager() error = %v", err)
	}
	checker, err := rbac.NewChecker()
	if err != nil {
		t.Fatalf("rbac.NewChecker() error = %v", err)
	}
	s := store.NewMemoryStore()
	return &fixture{
		guard:  New(tokens, s, checker, time.Second),
		tokens: tokens,
		store:  s,
	}
}

func (f *fixture) addPrincipal(t *testing.T, p *models.Principal) string {
	t.Helper()
	if err := f.store.CreatePrincipal(context.Background(), p); err != nil {
		t.Fatalf("CreatePrincipal(%s) error = %v", p.SubjectID, err)
	}
	signed, err := f.tokens.Issue(p.SubjectID, p.Role, p.TenantID)
	if err != nil {
		t.Fatalf("Issue(%s) error = %v", p.SubjectID, err)
	}
	return signed
}

func protected(f *fixture, spec RouteSpec) http.Handler {
	return f.guard.Require(spec)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if PrincipalFromContext(r.Context()) == nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
}

func doReq(h http.Handler, bearer string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/resource", nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	h.ServeHTTP(rr, req)
	return rr
}

func TestRequireAdmitsValidPrincipal(t *testing.T) {
	f := newFixture(t)
	signed := f.addPrincipal(t, &models.Principal{
		SubjectID: "u-1", Role: models.RoleUser, TenantID: "t-acme",
	})

	h := protected(f, RouteSpec{Action: rbac.ActionAssessmentTake, TenantScoped: true})
	if rr := doReq(h, signed); rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200; body %s", rr.Code, rr.Body.String())
	}
}

func TestRequireUnauthenticated(t *testing.T) {
	f := newFixture(t)
	f.addPrincipal(t, &models.Principal{SubjectID: "u-1", Role: models.RoleUser, TenantID: "t-acme"})
	h := protected(f, RouteSpec{Action: rbac.ActionAssessmentTake, TenantScoped: true})

	tests := []struct {
		name   string
		bearer string
	}{
		{"no token", ""},
		{"garbage token", "not-a-token"},
		{"unknown subject", mustIssue(t, f, "u-ghost", models.RoleUser, "t-acme")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doReq(h, tt.bearer)
			if rr.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rr.Code)
			}
			if rr.Header().Get("WWW-Authenticate") == "" {
				t.Error("401 missing WWW-Authenticate")
			}
			// Bodies are identical across reasons.
			if !strings.Contains(rr.Body.String(), "authentication required") {
				t.Errorf("unexpected body: %s", rr.Body.String())
			}
		})
	}
}

func mustIssue(t *testing.T, f *fixture, sub string, role models.Role, tenant string) string {
	t.Helper()
	signed, err := f.tokens.Issue(sub, role, tenant)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	return signed
}

func TestRequireTombstonedIs401(t *testing.T) {
	f := newFixture(t)
	signed := f.addPrincipal(t, &models.Principal{SubjectID: "u-1", Role: models.RoleUser, TenantID: "t-acme"})
	if err := f.store.TombstonePrincipal(context.Background(), "u-1"); err != nil {
		t.Fatalf("TombstonePrincipal() error = %v", err)
	}

	h := protected(f, RouteSpec{Action: rbac.ActionAssessmentTake, TenantScoped: true})
	rr := doReq(h, signed)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("tombstoned status = %d, want 401", rr.Code)
	}
	// Same generic body as any other authentication failure.
	if !strings.Contains(rr.Body.String(), "authentication required") {
		t.Errorf("tombstoned body leaks state: %s", rr.Body.String())
	}
}

func TestRequireUnapprovedIs403(t *testing.T) {
	f := newFixture(t)
	signed := f.addPrincipal(t, &models.Principal{
		SubjectID: "u-admin", Role: models.RoleCompanyAdmin, TenantID: "t-acme",
	})

	h := protected(f, RouteSpec{Action: rbac.ActionUserManage, TenantScoped: true})
	rr := doReq(h, signed)
	if rr.Code != http.StatusForbidden {
		t.Errorf("unapproved status = %d, want 403", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "access denied") {
		t.Errorf("unexpected body: %s", rr.Body.String())
	}

	// The same route admits the principal once approved.
	if err := f.store.UpdateApproval(context.Background(), "u-admin", "u-root"); err != nil {
		t.Fatalf("UpdateApproval() error = %v", err)
	}
	if rr := doReq(h, signed); rr.Code != http.StatusOK {
		t.Errorf("approved status = %d, want 200", rr.Code)
	}
}

func TestRequireAllowUnapproved(t *testing.T) {
	f := newFixture(t)
	signed := f.addPrincipal(t, &models.Principal{
		SubjectID: "u-admin", Role: models.RoleCompanyAdmin, TenantID: "t-acme",
	})

	h := protected(f, RouteSpec{Action: rbac.ActionApprovalViewOwn, TenantScoped: true, AllowUnapproved: true})
	if rr := doReq(h, signed); rr.Code != http.StatusOK {
		t.Errorf("AllowUnapproved route status = %d, want 200", rr.Code)
	}
}

func TestRequireMinRole(t *testing.T) {
	f := newFixture(t)
	userTok := f.addPrincipal(t, &models.Principal{SubjectID: "u-1", Role: models.RoleUser, TenantID: "t-acme"})
	hrTok := f.addPrincipal(t, &models.Principal{
		SubjectID: "u-hr", Role: models.RoleHRManager, TenantID: "t-acme", Approved: true,
	})

	h := protected(f, RouteSpec{Action: rbac.ActionResultView, MinRole: models.RoleHRManager, TenantScoped: true})

	if rr := doReq(h, userTok); rr.Code != http.StatusForbidden {
		t.Errorf("user on hr route status = %d, want 403", rr.Code)
	}
	if rr := doReq(h, hrTok); rr.Code != http.StatusOK {
		t.Errorf("hr on hr route status = %d, want 200", rr.Code)
	}
}

func TestRequireActionPermission(t *testing.T) {
	f := newFixture(t)
	hrTok := f.addPrincipal(t, &models.Principal{
		SubjectID: "u-hr", Role: models.RoleHRManager, TenantID: "t-acme", Approved: true,
	})

	// hr_manager holds result.view but not user.manage.
	allowed := protected(f, RouteSpec{Action: rbac.ActionResultView, TenantScoped: true})
	denied := protected(f, RouteSpec{Action: rbac.ActionUserManage, TenantScoped: true})

	if rr := doReq(allowed, hrTok); rr.Code != http.StatusOK {
		t.Errorf("permitted action status = %d, want 200", rr.Code)
	}
	if rr := doReq(denied, hrTok); rr.Code != http.StatusForbidden {
		t.Errorf("unpermitted action status = %d, want 403", rr.Code)
	}
}

func TestRequireRotatesNearExpiryToken(t *testing.T) {
	cfg := &config.SecurityConfig{
		JWTSecret:          strings.Repeat("s", 32),
		UserTokenTTL:       5 * time.Minute,
		PrivilegedTokenTTL: 5 * time.Minute,
		RotateThreshold:    10 * time.Minute,
	}
	tokens, err := token.NewManager(cfg)
	if err != nil {
		t.Fatalf("token.NewManager() error = %v", err)
	}
	checker, err := rbac.NewChecker()
	if err != nil {
		t.Fatalf("rbac.NewChecker() error = %v", err)
	}
	s := store.NewMemoryStore()
	f := &fixture{guard: New(tokens, s, checker, time.Second), tokens: tokens, store: s}

	signed := f.addPrincipal(t, &models.Principal{SubjectID: "u-1", Role: models.RoleUser, TenantID: "t-acme"})

	h := protected(f, RouteSpec{Action: rbac.ActionAssessmentTake, TenantScoped: true})
	rr := doReq(h, signed)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	refreshed := rr.Header().Get("X-Refreshed-Token")
	if refreshed == "" {
		t.Fatal("missing X-Refreshed-Token for near-expiry token")
	}
	claims, err := tokens.Verify(refreshed)
	if err != nil {
		t.Fatalf("Verify(refreshed) error = %v", err)
	}
	if claims.SubjectID != "u-1" || claims.TenantID != "t-acme" {
		t.Errorf("refreshed claims wrong: %+v", claims)
	}
}
