// Competo - Multi-Tenant Competency Assessment Platform
// Copyright 2026 Competo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/competo/competo

package validation

import (
	"strings"
	"testing"
)

type registerRequest struct {
	Email    string `validate:"required,email"`
	Role     string `validate:"required,role"`
	TenantID string `validate:"omitempty,max=64"`
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name      string
		req       registerRequest
		wantField string
	}{
		{
			name: "valid",
			req:  registerRequest{Email: "alice@acme.example.com", Role: "company_admin", TenantID: "t-acme"},
		},
		{
			name:      "missing email",
			req:       registerRequest{Role: "user"},
			wantField: "Email",
		},
		{
			name:      "bad email",
			req:       registerRequest{Email: "not-an-email", Role: "user"},
			wantField: "Email",
		},
		{
			name:      "unknown role",
			req:       registerRequest{Email: "a@b.example.com", Role: "wizard"},
			wantField: "Role",
		},
		{
			name:      "tenant id too long",
			req:       registerRequest{Email: "a@b.example.com", Role: "user", TenantID: strings.Repeat("x", 65)},
			wantField: "TenantID",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.req)
			if tt.wantField == "" {
				if err != nil {
					t.Errorf("ValidateStruct() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("ValidateStruct() = nil, want error")
			}
			if got := err.Errors()[0].Field(); got != tt.wantField {
				t.Errorf("failed field = %s, want %s", got, tt.wantField)
			}
		})
	}
}

func TestValidationMessagesAreReadable(t *testing.T) {
	err := ValidateStruct(&registerRequest{Email: "nope", Role: "wizard"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "valid email") || !strings.Contains(msg, "known role") {
		t.Errorf("unhelpful message: %s", msg)
	}
}
