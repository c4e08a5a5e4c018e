// Competo - Multi-Tenant Competency Assessment Platform
// Copyright 2026 Competo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/competo/competo

package store

import (
	"context"
	"errors"

	"github.com/competo/competo/internal/models"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrConflict is returned when a write collides with existing state,
	// such as registering a duplicate subject or deciding an already
	// decided approval request.
	ErrConflict = errors.New("store: conflict")
)

// PrincipalStore persists principals.
type PrincipalStore interface {
	// GetPrincipal looks up a principal by subject ID. Tombstoned
	// principals are still returned; callers check Tombstoned.
	GetPrincipal(ctx context.Context, subjectID string) (*models.Principal, error)

	// CreatePrincipal inserts a new principal. Returns ErrConflict if
	// the subject ID is already registered.
	CreatePrincipal(ctx context.Context, p *models.Principal) error

	// UpdateApproval marks a principal approved and records the decider.
	UpdateApproval(ctx context.Context, subjectID, approvedBy string) error

	// TombstonePrincipal soft-deletes a principal. Idempotent: a second
	// call on an already tombstoned principal returns ErrConflict.
	TombstonePrincipal(ctx context.Context, subjectID string) error

	// TombstoneTenant soft-deletes every live principal of a tenant and
	// returns how many were affected. Deleting a company never removes
	// rows, for the same audit reasons as TombstonePrincipal.
	TombstoneTenant(ctx context.Context, tenantID string) (int, error)

	// ListTenants summarizes tenants with at least one live principal.
	ListTenants(ctx context.Context) ([]*TenantSummary, error)
}

// TenantSummary is one row of the cross-tenant company listing.
type TenantSummary struct {
	TenantID   string `json:"tenant_id"`
	Principals int    `json:"principals"`
}

// ApprovalStore persists approval requests.
type ApprovalStore interface {
	// CreateRequest files a new pending approval request.
	CreateRequest(ctx context.Context, req *models.ApprovalRequest) error

	// GetRequest looks up a request by ID.
	GetRequest(ctx context.Context, id string) (*models.ApprovalRequest, error)

	// DecideRequest writes the terminal outcome for a pending request.
	// Returns ErrConflict if the request is already decided.
	DecideRequest(ctx context.Context, id, decidedBy string, outcome models.ApprovalOutcome, reason string) error

	// ListPending returns pending requests, scoped to a tenant when
	// tenantID is non-empty.
	ListPending(ctx context.Context, tenantID string) ([]*models.ApprovalRequest, error)

	// ListBySubject returns all requests filed for a subject, newest first.
	ListBySubject(ctx context.Context, subjectID string) ([]*models.ApprovalRequest, error)
}

// Store combines the persistence interfaces the service wires together.
type Store interface {
	PrincipalStore
	ApprovalStore
}
