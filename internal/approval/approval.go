// Competo - Multi-Tenant Competency Assessment Platform
// Copyright 2026 Competo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/competo/competo

package approval

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/competo/competo/internal/audit"
	"github.com/competo/competo/internal/logging"
	"github.com/competo/competo/internal/metrics"
	"github.com/competo/competo/internal/models"
	"github.com/competo/competo/internal/store"
)

var (
	// ErrAlreadyDecided is returned when deciding a request that has
	// already reached a terminal outcome.
	ErrAlreadyDecided = errors.New("approval: request already decided")

	// ErrNotAuthorized is returned when the actor lacks the seniority
	// or tenant authority to decide a request.
	ErrNotAuthorized = errors.New("approval: actor not authorized to decide")

	// ErrSelfDecision is returned when a principal tries to decide its
	// own approval request.
	ErrSelfDecision = errors.New("approval: cannot decide own request")

	// ErrNoApprovalNeeded is returned by Submit for roles that do not
	// go through the approval flow.
	ErrNoApprovalNeeded = errors.New("approval: role does not require approval")
)

// Machine drives approval requests through their lifecycle.
type Machine struct {
	principals store.PrincipalStore
	approvals  store.ApprovalStore
	recorder   *audit.Recorder
}

// NewMachine wires the state machine to its stores and the audit trail.
func NewMachine(principals store.PrincipalStore, approvals store.ApprovalStore, recorder *audit.Recorder) *Machine {
	return &Machine{
		principals: principals,
		approvals:  approvals,
		recorder:   recorder,
	}
}

// Submit files a pending approval request for a newly registered
// principal. Roles outside the approval flow are rejected here so a
// request can never exist for them.
func (m *Machine) Submit(ctx context.Context, target *models.Principal) (*models.ApprovalRequest, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	if !target.Role.RequiresApproval() {
		return nil, fmt.Errorf("%w: %s", ErrNoApprovalNeeded, target.Role)
	}

	req := &models.ApprovalRequest{
		ID:              uuid.New().String(),
		TargetSubjectID: target.SubjectID,
		TargetRole:      target.Role,
		TenantID:        target.TenantID,
		Outcome:         models.OutcomePending,
	}
	if err := m.approvals.CreateRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to file approval request: %w", err)
	}

	m.record(ctx, "approval.submit", target.SubjectID, req)
	return req, nil
}

// Approve moves a pending request to approved and marks the target
// principal approved. The actor must hold decision authority over the
// request.
func (m *Machine) Approve(ctx context.Context, actor *models.Principal, requestID string) error {
	req, err := m.decide(ctx, actor, requestID, models.OutcomeApproved, "")
	if err != nil {
		return err
	}

	if err := m.principals.UpdateApproval(ctx, req.TargetSubjectID, actor.SubjectID); err != nil {
		// The request is decided but the principal flag did not stick.
		// Surface it: the caller retries, the trail already shows intent.
		return fmt.Errorf("approval decided but principal update failed: %w", err)
	}

	metrics.ApprovalDecisions.WithLabelValues(string(models.OutcomeApproved)).Inc()
	m.record(ctx, "approval.approve", actor.SubjectID, req)
	return nil
}

// Reject moves a pending request to rejected. The target principal stays
// unapproved; re-appeal happens by filing a new request.
func (m *Machine) Reject(ctx context.Context, actor *models.Principal, requestID, reason string) error {
	req, err := m.decide(ctx, actor, requestID, models.OutcomeRejected, reason)
	if err != nil {
		return err
	}

	metrics.ApprovalDecisions.WithLabelValues(string(models.OutcomeRejected)).Inc()
	m.record(ctx, "approval.reject", actor.SubjectID, req)
	return nil
}

// decide validates authority and writes the terminal outcome.
func (m *Machine) decide(ctx context.Context, actor *models.Principal, requestID string, outcome models.ApprovalOutcome, reason string) (*models.ApprovalRequest, error) {
	req, err := m.approvals.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Outcome.Terminal() {
		return nil, ErrAlreadyDecided
	}
	if err := m.checkAuthority(actor, req); err != nil {
		return nil, err
	}

	if err := m.approvals.DecideRequest(ctx, requestID, actor.SubjectID, outcome, reason); err != nil {
		if errors.Is(err, store.ErrConflict) {
			// Lost the race to another decider.
			return nil, ErrAlreadyDecided
		}
		return nil, fmt.Errorf("failed to decide request: %w", err)
	}

	req.Outcome = outcome
	req.DecidedBy = actor.SubjectID
	req.Reason = reason
	return req, nil
}

// checkAuthority enforces who may decide a request:
//
//   - never the target itself
//   - the actor must be approved and not tombstoned
//   - the actor's role must be strictly senior to the requested role
//   - tenant-bound actors only decide within their own tenant
//
// super_admin passes all but the self-decision rule by construction.
func (m *Machine) checkAuthority(actor *models.Principal, req *models.ApprovalRequest) error {
	if actor.SubjectID == req.TargetSubjectID {
		return ErrSelfDecision
	}
	if actor.Tombstoned() || (!actor.Approved && actor.Role.RequiresApproval()) {
		return ErrNotAuthorized
	}
	if !actor.Role.SeniorTo(req.TargetRole) {
		return ErrNotAuthorized
	}
	if actor.Role.TenantBound() && actor.TenantID != req.TenantID {
		return ErrNotAuthorized
	}
	return nil
}

func (m *Machine) record(ctx context.Context, action, actorID string, req *models.ApprovalRequest) {
	if m.recorder == nil {
		return
	}
	m.recorder.Record(&audit.Record{
		ActorID:       actorID,
		Action:        action,
		TargetType:    "approval_request",
		TargetID:      req.ID,
		TenantID:      req.TenantID,
		Detail:        fmt.Sprintf("target=%s role=%s outcome=%s", req.TargetSubjectID, req.TargetRole, req.Outcome),
		OriginAddress: logging.OriginAddressFromContext(ctx),
		RequestID:     logging.RequestIDFromContext(ctx),
	})
}
