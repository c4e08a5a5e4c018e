// Competo - Multi-Tenant Competency Assessment Platform
// Copyright 2026 Competo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/competo/competo

package approval

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/competo/competo/internal/audit"
	"github.com/competo/competo/internal/logging"
	"github.com/competo/competo/internal/models"
	"github.com/competo/competo/internal/store"
)

type fixture struct {
	machine *Machine
	store   *store.MemoryStore
	sink    *audit.MemorySink
	rec     *audit.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := store.NewMemoryStore()
	sink := audit.NewMemorySink()
	rec := audit.NewRecorder(sink, 64, true)
	t.Cleanup(rec.Close)
	return &fixture{
		machine: NewMachine(s, s, rec),
		store:   s,
		sink:    sink,
		rec:     rec,
	}
}

func (f *fixture) addPrincipal(t *testing.T, p *models.Principal) *models.Principal {
	t.Helper()
	if err := f.store.CreatePrincipal(context.Background(), p); err != nil {
		t.Fatalf("CreatePrincipal(%s) error = %v", p.SubjectID, err)
	}
	return p
}

func superAdmin() *models.Principal {
	return &models.Principal{SubjectID: "u-root", Role: models.RoleSuperAdmin, Approved: true}
}

func pendingCompanyAdmin(id, tenant string) *models.Principal {
	return &models.Principal{SubjectID: id, Role: models.RoleCompanyAdmin, TenantID: tenant}
}

func TestSubmitFilesPendingRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	target := f.addPrincipal(t, pendingCompanyAdmin("u-alice", "t-acme"))

	req, err := f.machine.Submit(ctx, target)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if req.Outcome != models.OutcomePending {
		t.Errorf("new request outcome = %s, want pending", req.Outcome)
	}
	if req.TargetSubjectID != "u-alice" || req.TenantID != "t-acme" {
		t.Errorf("request fields wrong: %+v", req)
	}
}

func TestSubmitRejectsExemptRoles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, p := range []*models.Principal{
		{SubjectID: "u-plain", Role: models.RoleUser, TenantID: "t-acme"},
		{SubjectID: "u-root2", Role: models.RoleSuperAdmin},
	} {
		if _, err := f.machine.Submit(ctx, p); !errors.Is(err, ErrNoApprovalNeeded) {
			t.Errorf("Submit(%s) error = %v, want ErrNoApprovalNeeded", p.Role, err)
		}
	}
}

func TestApproveBySuperAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	target := f.addPrincipal(t, pendingCompanyAdmin("u-alice", "t-acme"))
	actor := f.addPrincipal(t, superAdmin())

	req, err := f.machine.Submit(ctx, target)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if err := f.machine.Approve(ctx, actor, req.ID); err != nil {
		t.Fatalf("Approve() error = %v", err)
	}

	got, err := f.store.GetPrincipal(ctx, "u-alice")
	if err != nil {
		t.Fatalf("GetPrincipal() error = %v", err)
	}
	if !got.Approved || got.ApprovedBy != "u-root" {
		t.Errorf("principal not approved: %+v", got)
	}

	decided, err := f.store.GetRequest(ctx, req.ID)
	if err != nil {
		t.Fatalf("GetRequest() error = %v", err)
	}
	if decided.Outcome != models.OutcomeApproved || decided.DecidedBy != "u-root" {
		t.Errorf("request not decided: %+v", decided)
	}
}

func TestDecisionIsMonotonic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	target := f.addPrincipal(t, pendingCompanyAdmin("u-alice", "t-acme"))
	actor := f.addPrincipal(t, superAdmin())

	req, err := f.machine.Submit(ctx, target)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if err := f.machine.Reject(ctx, actor, req.ID, "unverified company"); err != nil {
		t.Fatalf("Reject() error = %v", err)
	}

	if err := f.machine.Approve(ctx, actor, req.ID); !errors.Is(err, ErrAlreadyDecided) {
		t.Errorf("Approve(rejected) error = %v, want ErrAlreadyDecided", err)
	}
	if err := f.machine.Reject(ctx, actor, req.ID, "again"); !errors.Is(err, ErrAlreadyDecided) {
		t.Errorf("Reject(rejected) error = %v, want ErrAlreadyDecided", err)
	}

	// Rejection never approves the principal.
	got, err := f.store.GetPrincipal(ctx, "u-alice")
	if err != nil {
		t.Fatalf("GetPrincipal() error = %v", err)
	}
	if got.Approved {
		t.Error("rejected principal is approved")
	}
}

func TestDecisionAuthority(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	target := f.addPrincipal(t, pendingCompanyAdmin("u-alice", "t-acme"))
	req, err := f.machine.Submit(ctx, target)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	tests := []struct {
		name    string
		actor   *models.Principal
		wantErr error
	}{
		{
			name:    "self decision",
			actor:   target,
			wantErr: ErrSelfDecision,
		},
		{
			name:    "peer role is not strictly senior",
			actor:   &models.Principal{SubjectID: "u-peer", Role: models.RoleCompanyAdmin, TenantID: "t-acme", Approved: true},
			wantErr: ErrNotAuthorized,
		},
		{
			name:    "junior role",
			actor:   &models.Principal{SubjectID: "u-hr", Role: models.RoleHRManager, TenantID: "t-acme", Approved: true},
			wantErr: ErrNotAuthorized,
		},
		{
			name:    "unapproved senior",
			actor:   &models.Principal{SubjectID: "u-sys", Role: models.RoleSysAdmin, Approved: false},
			wantErr: ErrNotAuthorized,
		},
		{
			name: "tombstoned senior",
			actor: func() *models.Principal {
				now := time.Now()
				return &models.Principal{SubjectID: "u-dead", Role: models.RoleSuperAdmin, Approved: true, DeletedAt: &now}
			}(),
			wantErr: ErrNotAuthorized,
		},
		{
			name:    "approved sys_admin allowed",
			actor:   &models.Principal{SubjectID: "u-sys2", Role: models.RoleSysAdmin, Approved: true},
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.machine.Approve(ctx, tt.actor, req.ID)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Approve() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Approve() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestTenantBoundActorCannotDecideAcrossTenants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// hr_manager registration in t-acme; a company_admin of t-globex is
	// strictly senior but in the wrong tenant.
	target := f.addPrincipal(t, &models.Principal{SubjectID: "u-hr", Role: models.RoleHRManager, TenantID: "t-acme"})
	outsider := &models.Principal{SubjectID: "u-admin", Role: models.RoleCompanyAdmin, TenantID: "t-globex", Approved: true}
	insider := &models.Principal{SubjectID: "u-local", Role: models.RoleCompanyAdmin, TenantID: "t-acme", Approved: true}

	req, err := f.machine.Submit(ctx, target)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if err := f.machine.Approve(ctx, outsider, req.ID); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("cross-tenant Approve() error = %v, want ErrNotAuthorized", err)
	}
	if err := f.machine.Approve(ctx, insider, req.ID); err != nil {
		t.Errorf("same-tenant Approve() error = %v", err)
	}
}

func TestDecisionsLandInAuditTrail(t *testing.T) {
	f := newFixture(t)
	ctx := logging.ContextWithOriginAddress(context.Background(), "203.0.113.5:4000")

	target := f.addPrincipal(t, pendingCompanyAdmin("u-alice", "t-acme"))
	actor := f.addPrincipal(t, superAdmin())

	req, err := f.machine.Submit(ctx, target)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if err := f.machine.Approve(ctx, actor, req.ID); err != nil {
		t.Fatalf("Approve() error = %v", err)
	}
	f.rec.Close()

	got, err := f.sink.Read(ctx, audit.Query{Action: "approval.approve"})
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(got) != 1 || got[0].ActorID != "u-root" || got[0].TargetID != req.ID {
		t.Fatalf("audit trail missing approval record: %+v", got)
	}
	if got[0].OriginAddress != "203.0.113.5:4000" {
		t.Errorf("approval record OriginAddress = %q, want client address", got[0].OriginAddress)
	}

	subs, err := f.sink.Read(ctx, audit.Query{Action: "approval.submit"})
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(subs) != 1 || subs[0].OriginAddress != "203.0.113.5:4000" {
		t.Errorf("submit record missing origin: %+v", subs)
	}
}
