// Competo - Multi-Tenant Competency Assessment Platform
// Copyright 2026 Competo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/competo/competo

package models

import (
	"errors"
	"time"
)

// Principal is an authenticated, role- and tenant-scoped identity.
//
// Invariants enforced by Validate:
//   - tenant-bound roles (user, hr_manager, company_admin) carry a TenantID
//   - system roles (sys_admin, super_admin) carry none
//
// Principals are never hard-deleted; revocation sets DeletedAt so the audit
// trail stays intact.
type Principal struct {
	// SubjectID is the opaque stable identifier carried in token claims.
	SubjectID string `json:"subject_id"`

	// Role is the principal's privilege tier.
	Role Role `json:"role"`

	// TenantID scopes the principal to a company. Empty for system roles.
	TenantID string `json:"tenant_id,omitempty"`

	// Approved gates privileged actions for company-tier admins until a
	// senior principal confirms the registration.
	Approved bool `json:"approved"`

	// ApprovedBy is the subject ID of the deciding principal, if any.
	ApprovedBy string `json:"approved_by,omitempty"`

	// ApprovedAt is when the approval was granted.
	ApprovedAt *time.Time `json:"approved_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`

	// DeletedAt marks a tombstoned principal. Soft delete only.
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Validation errors for principal invariants.
var (
	ErrMissingSubjectID = errors.New("principal: subject id is required")
	ErrTenantRequired   = errors.New("principal: tenant-bound role requires a tenant id")
	ErrTenantForbidden  = errors.New("principal: system role must not carry a tenant id")
)

// Validate checks the role/tenant coupling invariant.
func (p *Principal) Validate() error {
	if p.SubjectID == "" {
		return ErrMissingSubjectID
	}
	if !p.Role.Valid() {
		return ErrUnknownRole
	}
	if p.Role.TenantBound() && p.TenantID == "" {
		return ErrTenantRequired
	}
	if !p.Role.TenantBound() && p.TenantID != "" {
		return ErrTenantForbidden
	}
	return nil
}

// Tombstoned reports whether the principal has been soft-deleted.
func (p *Principal) Tombstoned() bool {
	return p.DeletedAt != nil
}

// ApprovalOutcome is the state of an approval request.
type ApprovalOutcome string

const (
	OutcomePending  ApprovalOutcome = "pending"
	OutcomeApproved ApprovalOutcome = "approved"
	OutcomeRejected ApprovalOutcome = "rejected"
)

// Terminal reports whether the outcome can no longer change. Transitions are
// monotonic: pending moves to approved or rejected exactly once.
func (o ApprovalOutcome) Terminal() bool {
	return o == OutcomeApproved || o == OutcomeRejected
}

// ApprovalRequest represents a company-tier admin registration awaiting a
// decision by a strictly senior principal. Rejected requests are retained;
// re-appeal happens by filing a new request, never by mutating history.
type ApprovalRequest struct {
	ID string `json:"id"`

	// TargetSubjectID is the principal awaiting confirmation.
	TargetSubjectID string `json:"target_subject_id"`

	// TargetRole is the role the registration requested.
	TargetRole Role `json:"target_role"`

	// TenantID is the tenant the target registered under.
	TenantID string `json:"tenant_id"`

	RequestedAt time.Time `json:"requested_at"`

	// DecidedBy and DecidedAt are set on the pending -> terminal transition.
	DecidedBy string          `json:"decided_by,omitempty"`
	DecidedAt *time.Time      `json:"decided_at,omitempty"`
	Outcome   ApprovalOutcome `json:"outcome"`

	// Reason carries the optional rejection rationale.
	Reason string `json:"reason,omitempty"`
}
