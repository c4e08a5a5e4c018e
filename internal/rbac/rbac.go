// Competo - Multi-Tenant Competency Assessment Platform
// Copyright 2026 Competo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/competo/competo

package rbac

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/competo/competo/internal/logging"
	"github.com/competo/competo/internal/models"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

// Actions known to the policy. Handlers reference these constants
// rather than raw strings so typos fail at compile time.
const (
	ActionAssessmentTake  = "assessment.take"
	ActionResultViewOwn   = "result.view_own"
	ActionResultView      = "result.view"
	ActionUserView        = "user.view"
	ActionUserManage      = "user.manage"
	ActionUserTombstone   = "user.tombstone"
	ActionCompanyManage   = "company.manage"
	ActionCompanyDelete   = "company.delete"
	ActionCompanyListAll  = "company.list_all"
	ActionApprovalDecide  = "approval.decide"
	ActionApprovalViewOwn = "approval.view_own"
	ActionAuditView       = "audit.view"
)

// crossTenantActions operate across tenant boundaries and are reserved
// for system-tier roles regardless of what the policy file grants.
// Company deletion is absent: a company_admin deleting its own tenant
// stays inside the tenant boundary, and the usual tenant-match rule in
// CanPerform confines it there. System roles are not tenant-bound, so
// for them the same grant reaches any company.
var crossTenantActions = map[string]bool{
	ActionCompanyListAll: true,
	ActionAuditView:      true,
}

// CrossTenant reports whether an action reads or writes outside a
// single tenant.
func CrossTenant(action string) bool {
	return crossTenantActions[action]
}

// Checker evaluates role and action permissions.
type Checker struct {
	enforcer *casbin.SyncedEnforcer
}

// NewChecker builds a Checker from the embedded model and policy.
func NewChecker() (*Checker, error) {
	m, err := model.NewModelFromString(embeddedModel)
	if err != nil {
		return nil, fmt.Errorf("failed to load rbac model: %w", err)
	}

	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create rbac enforcer: %w", err)
	}
	if err := loadEmbeddedPolicy(enforcer, embeddedPolicy); err != nil {
		return nil, err
	}

	return &Checker{enforcer: enforcer}, nil
}

// loadEmbeddedPolicy parses the embedded policy CSV into the enforcer.
func loadEmbeddedPolicy(enforcer *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}

		switch parts[0] {
		case "p":
			if len(parts) < 3 {
				return fmt.Errorf("malformed policy rule: %q", line)
			}
			if _, err := enforcer.AddPolicy(parts[1], parts[2]); err != nil {
				return fmt.Errorf("failed to add policy %q: %w", line, err)
			}
		case "g":
			if len(parts) < 3 {
				return fmt.Errorf("malformed grouping rule: %q", line)
			}
			if _, err := enforcer.AddGroupingPolicy(parts[1], parts[2]); err != nil {
				return fmt.Errorf("failed to add grouping %q: %w", line, err)
			}
		default:
			return fmt.Errorf("unknown policy type in line: %q", line)
		}
	}
	return nil
}

// CanPerform reports whether a role may perform an action against a
// target tenant. actorTenant is the tenant bound into the actor's
// identity; targetTenant is the tenant the resource belongs to, empty
// for tenant-less resources.
//
// The decision is layered:
//
//  1. super_admin is allowed everything.
//  2. Cross-tenant actions require a system-tier role.
//  3. Tenant-bound roles only act within their own tenant.
//  4. The remaining question, "does this role carry this grant", goes
//     to the policy. Enforcement errors deny.
func (c *Checker) CanPerform(role models.Role, action string, actorTenant, targetTenant string) bool {
	if !role.Valid() || action == "" {
		return false
	}
	if role == models.RoleSuperAdmin {
		return true
	}
	if CrossTenant(action) && role != models.RoleSysAdmin {
		return false
	}
	if role.TenantBound() {
		if actorTenant == "" || (targetTenant != "" && actorTenant != targetTenant) {
			return false
		}
	}

	allowed, err := c.enforcer.Enforce(string(role), action)
	if err != nil {
		logging.Warn().Err(err).
			Str("role", string(role)).
			Str("action", action).
			Msg("rbac enforcement failed, denying")
		return false
	}
	return allowed
}
