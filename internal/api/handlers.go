// Competo - Multi-Tenant Competency Assessment Platform
// Copyright 2026 Competo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/competo/competo

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/competo/competo/internal/approval"
	"github.com/competo/competo/internal/audit"
	"github.com/competo/competo/internal/guard"
	"github.com/competo/competo/internal/logging"
	"github.com/competo/competo/internal/middleware"
	"github.com/competo/competo/internal/models"
	"github.com/competo/competo/internal/store"
	"github.com/competo/competo/internal/token"
	"github.com/competo/competo/internal/validation"
)

// Handler bundles the service dependencies the routes need.
type Handler struct {
	store    store.Store
	tokens   *token.Manager
	machine  *approval.Machine
	recorder *audit.Recorder
}

// NewHandler wires the handler to its collaborators.
func NewHandler(s store.Store, tokens *token.Manager, machine *approval.Machine, recorder *audit.Recorder) *Handler {
	return &Handler{
		store:    s,
		tokens:   tokens,
		machine:  machine,
		recorder: recorder,
	}
}

// RegisterRequest is the body for POST /api/v1/register.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Role     string `json:"role" validate:"required,role"`
	TenantID string `json:"tenant_id" validate:"omitempty,max=64"`
}

// RegisterResponse returns the new subject and its approval state.
type RegisterResponse struct {
	SubjectID string `json:"subject_id"`
	Role      string `json:"role"`
	TenantID  string `json:"tenant_id,omitempty"`
	Approved  bool   `json:"approved"`
	RequestID string `json:"approval_request_id,omitempty"`
}

// Register creates a principal. Roles in the approval flow come back
// unapproved with a pending request attached.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, CodeBadRequest, "invalid request body", nil)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondError(w, r, http.StatusBadRequest, CodeValidationFailed, verr.Error(), nil)
		return
	}

	role := models.Role(req.Role)
	// super_admin is seeded at deploy time, never self-registered.
	if role == models.RoleSuperAdmin {
		respondError(w, r, http.StatusBadRequest, CodeValidationFailed, "role cannot be registered", nil)
		return
	}
	p := &models.Principal{
		SubjectID: uuid.New().String(),
		Role:      role,
		TenantID:  req.TenantID,
		// Roles outside the approval flow are live immediately.
		Approved:  !role.RequiresApproval(),
		CreatedAt: time.Now(),
	}
	if err := p.Validate(); err != nil {
		respondError(w, r, http.StatusBadRequest, CodeValidationFailed, err.Error(), nil)
		return
	}

	if err := h.store.CreatePrincipal(r.Context(), p); err != nil {
		if errors.Is(err, store.ErrConflict) {
			respondError(w, r, http.StatusConflict, CodeConflict, "subject already registered", nil)
			return
		}
		h.internalError(w, r, err, "failed to create principal")
		return
	}

	resp := RegisterResponse{
		SubjectID: p.SubjectID,
		Role:      string(p.Role),
		TenantID:  p.TenantID,
		Approved:  p.Approved,
	}

	if role.RequiresApproval() {
		approvalReq, err := h.machine.Submit(r.Context(), p)
		if err != nil {
			h.internalError(w, r, err, "failed to file approval request")
			return
		}
		resp.RequestID = approvalReq.ID
	}

	h.audit(r, p.SubjectID, "principal.register", "principal", p.SubjectID, p.TenantID, string(p.Role))
	respondData(w, r, http.StatusCreated, resp)
}

// TokenRequest is the body for POST /api/v1/token. Credential checking
// happens upstream at the identity provider; this endpoint exchanges a
// known subject for a signed bearer token.
type TokenRequest struct {
	SubjectID string `json:"subject_id" validate:"required,uuid"`
}

// TokenResponse carries the signed bearer token.
type TokenResponse struct {
	Token string `json:"token"`
}

// IssueToken signs a token for an existing live principal.
func (h *Handler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, CodeBadRequest, "invalid request body", nil)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondError(w, r, http.StatusBadRequest, CodeValidationFailed, verr.Error(), nil)
		return
	}

	p, err := h.store.GetPrincipal(r.Context(), req.SubjectID)
	if err != nil || p.Tombstoned() {
		// Unknown and tombstoned subjects get the same answer.
		respondError(w, r, http.StatusUnauthorized, CodeUnauthenticated, "authentication required", nil)
		return
	}

	signed, err := h.tokens.Issue(p.SubjectID, p.Role, p.TenantID)
	if err != nil {
		h.internalError(w, r, err, "failed to issue token")
		return
	}

	h.audit(r, p.SubjectID, "token.issue", "principal", p.SubjectID, p.TenantID, "")
	respondData(w, r, http.StatusOK, TokenResponse{Token: signed})
}

// Me returns the caller's principal.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p := guard.PrincipalFromContext(r.Context())
	respondData(w, r, http.StatusOK, p)
}

// MyApprovals lists the caller's own approval requests.
func (h *Handler) MyApprovals(w http.ResponseWriter, r *http.Request) {
	p := guard.PrincipalFromContext(r.Context())

	reqs, err := h.store.ListBySubject(r.Context(), p.SubjectID)
	if err != nil {
		h.internalError(w, r, err, "failed to list approval requests")
		return
	}
	respondData(w, r, http.StatusOK, reqs)
}

// PendingApprovals lists pending requests the caller may decide.
// Tenant-bound deciders see their own tenant; system roles see all.
func (h *Handler) PendingApprovals(w http.ResponseWriter, r *http.Request) {
	p := guard.PrincipalFromContext(r.Context())

	tenantID := ""
	if p.Role.TenantBound() {
		tenantID = p.TenantID
	}
	reqs, err := h.store.ListPending(r.Context(), tenantID)
	if err != nil {
		h.internalError(w, r, err, "failed to list pending requests")
		return
	}
	respondData(w, r, http.StatusOK, reqs)
}

// Approve decides a pending request in favor of the target.
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, models.OutcomeApproved)
}

// RejectRequest is the optional body for the reject route.
type RejectRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=512"`
}

// Reject decides a pending request against the target.
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, models.OutcomeRejected)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, outcome models.ApprovalOutcome) {
	actor := guard.PrincipalFromContext(r.Context())
	requestID := chi.URLParam(r, "id")

	reason := ""
	if outcome == models.OutcomeRejected && r.Body != nil {
		var req RejectRequest
		// A missing or empty body is fine; reason is optional.
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			if verr := validation.ValidateStruct(&req); verr != nil {
				respondError(w, r, http.StatusBadRequest, CodeValidationFailed, verr.Error(), nil)
				return
			}
			reason = req.Reason
		}
	}

	var err error
	if outcome == models.OutcomeApproved {
		err = h.machine.Approve(r.Context(), actor, requestID)
	} else {
		err = h.machine.Reject(r.Context(), actor, requestID, reason)
	}
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			respondError(w, r, http.StatusNotFound, CodeNotFound, "request not found", nil)
		case errors.Is(err, approval.ErrAlreadyDecided):
			respondError(w, r, http.StatusConflict, CodeConflict, "request already decided", nil)
		case errors.Is(err, approval.ErrSelfDecision), errors.Is(err, approval.ErrNotAuthorized):
			respondError(w, r, http.StatusForbidden, CodeForbidden, "access denied", nil)
		default:
			h.internalError(w, r, err, "failed to decide request")
		}
		return
	}

	respondData(w, r, http.StatusOK, map[string]string{
		"request_id": requestID,
		"outcome":    string(outcome),
	})
}

// TakeAssessmentRequest is the body for POST /api/v1/assessments.
type TakeAssessmentRequest struct {
	AssessmentID string `json:"assessment_id" validate:"required,max=64"`
}

// TakeAssessment records an assessment attempt by the caller. The
// assessment content itself lives in another service; this endpoint is
// the authorization and audit boundary for starting one.
func (h *Handler) TakeAssessment(w http.ResponseWriter, r *http.Request) {
	p := guard.PrincipalFromContext(r.Context())

	var req TakeAssessmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, CodeBadRequest, "invalid request body", nil)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondError(w, r, http.StatusBadRequest, CodeValidationFailed, verr.Error(), nil)
		return
	}

	h.audit(r, p.SubjectID, "assessment.take", "assessment", req.AssessmentID, p.TenantID, "")
	respondData(w, r, http.StatusAccepted, map[string]string{
		"assessment_id": req.AssessmentID,
		"subject_id":    p.SubjectID,
	})
}

// TombstoneUser soft-deletes a principal in the caller's tenant.
func (h *Handler) TombstoneUser(w http.ResponseWriter, r *http.Request) {
	actor := guard.PrincipalFromContext(r.Context())
	subjectID := chi.URLParam(r, "id")

	target, err := h.store.GetPrincipal(r.Context(), subjectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, r, http.StatusNotFound, CodeNotFound, "principal not found", nil)
			return
		}
		h.internalError(w, r, err, "failed to load principal")
		return
	}

	// Tenant-bound actors only remove principals of their own tenant,
	// and nobody removes a principal senior to themselves.
	if actor.Role.TenantBound() && target.TenantID != actor.TenantID {
		respondError(w, r, http.StatusForbidden, CodeForbidden, "access denied", nil)
		return
	}
	if !actor.Role.SeniorTo(target.Role) {
		respondError(w, r, http.StatusForbidden, CodeForbidden, "access denied", nil)
		return
	}

	if err := h.store.TombstonePrincipal(r.Context(), subjectID); err != nil {
		if errors.Is(err, store.ErrConflict) {
			respondError(w, r, http.StatusConflict, CodeConflict, "principal already removed", nil)
			return
		}
		h.internalError(w, r, err, "failed to tombstone principal")
		return
	}

	h.audit(r, actor.SubjectID, "user.tombstone", "principal", subjectID, target.TenantID, "")
	respondData(w, r, http.StatusOK, map[string]string{"subject_id": subjectID})
}

// ListCompanies returns the cross-tenant company summary.
func (h *Handler) ListCompanies(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.store.ListTenants(r.Context())
	if err != nil {
		h.internalError(w, r, err, "failed to list companies")
		return
	}
	respondData(w, r, http.StatusOK, tenants)
}

// DeleteCompany tombstones every principal of a tenant. A company
// admin can dissolve its own company; system roles can dissolve any.
func (h *Handler) DeleteCompany(w http.ResponseWriter, r *http.Request) {
	actor := guard.PrincipalFromContext(r.Context())
	tenantID := chi.URLParam(r, "id")

	// A company admin may only dissolve its own company. System roles
	// carry no tenant and reach any company.
	if actor.Role.TenantBound() && actor.TenantID != tenantID {
		respondError(w, r, http.StatusForbidden, CodeForbidden, "access denied", nil)
		return
	}

	n, err := h.store.TombstoneTenant(r.Context(), tenantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, r, http.StatusNotFound, CodeNotFound, "company not found", nil)
			return
		}
		h.internalError(w, r, err, "failed to delete company")
		return
	}

	h.audit(r, actor.SubjectID, "company.delete", "company", tenantID, tenantID, "")
	respondData(w, r, http.StatusOK, map[string]interface{}{
		"tenant_id":  tenantID,
		"principals": n,
	})
}

// AuditTrail queries the audit trail. System roles only.
func (h *Handler) AuditTrail(w http.ResponseWriter, r *http.Request) {
	q := audit.Query{
		ActorID:  r.URL.Query().Get("actor_id"),
		Action:   r.URL.Query().Get("action"),
		TenantID: r.URL.Query().Get("tenant_id"),
		Limit:    100,
	}
	if since := r.URL.Query().Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			respondError(w, r, http.StatusBadRequest, CodeBadRequest, "since must be RFC3339", nil)
			return
		}
		q.Since = t
	}

	records, err := h.recorder.Read(r.Context(), q)
	if err != nil {
		h.internalError(w, r, err, "failed to query audit trail")
		return
	}
	respondData(w, r, http.StatusOK, records)
}

// Healthz is the liveness endpoint.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	respondData(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	logging.Ctx(r.Context()).Err(err).Msg(msg)
	respondError(w, r, http.StatusInternalServerError, CodeInternalError, "internal error", nil)
}

func (h *Handler) audit(r *http.Request, actorID, action, targetType, targetID, tenantID, detail string) {
	h.recorder.Record(&audit.Record{
		ActorID:       actorID,
		Action:        action,
		TargetType:    targetType,
		TargetID:      targetID,
		TenantID:      tenantID,
		Detail:        detail,
		OriginAddress: r.RemoteAddr,
		RequestID:     middleware.GetRequestID(r.Context()),
	})
}
