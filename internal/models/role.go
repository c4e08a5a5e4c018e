// Competo - Multi-Tenant Competency Assessment Platform
// Copyright 2026 Competo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/competo/competo

package models

import (
	"errors"
	"fmt"
)

// Role is the closed set of privilege tiers. Free-form role strings are a
// defect: every boundary must go through ParseRole so unrecognized values
// fail instead of silently defaulting.
type Role string

const (
	RoleUser         Role = "user"
	RoleHRManager    Role = "hr_manager"
	RoleCompanyAdmin Role = "company_admin"
	RoleSysAdmin     Role = "sys_admin"
	RoleSuperAdmin   Role = "super_admin"
)

// ErrUnknownRole is returned by ParseRole for values outside the enumeration.
var ErrUnknownRole = errors.New("unknown role")

// seniority orders roles by approval authority. Higher wins.
var seniority = map[Role]int{
	RoleUser:         1,
	RoleHRManager:    2,
	RoleCompanyAdmin: 3,
	RoleSysAdmin:     4,
	RoleSuperAdmin:   5,
}

// ParseRole validates a role string against the closed enumeration.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if _, ok := seniority[r]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
	return r, nil
}

// Valid reports whether the role is a member of the closed enumeration.
func (r Role) Valid() bool {
	_, ok := seniority[r]
	return ok
}

// Seniority returns the role's position in the approval-authority order.
// Unknown roles rank below every valid role.
func (r Role) Seniority() int {
	return seniority[r]
}

// SeniorTo reports whether r strictly outranks other. Used by the approval
// state machine: an actor may only decide requests for roles below its own.
func (r Role) SeniorTo(other Role) bool {
	return r.Seniority() > other.Seniority()
}

// Privileged reports whether the role is an administrative tier. Privileged
// roles get short token lifetimes and session-timeout enforcement.
func (r Role) Privileged() bool {
	return r.Seniority() > seniority[RoleUser]
}

// TenantBound reports whether the role is confined to its own tenant.
// sys_admin and super_admin operate across tenants and carry no TenantID.
func (r Role) TenantBound() bool {
	switch r {
	case RoleSysAdmin, RoleSuperAdmin:
		return false
	default:
		return true
	}
}

// RequiresApproval reports whether a freshly registered principal with this
// role starts unapproved. End users and super admins are trusted on creation;
// company-tier admins wait for a senior decision.
func (r Role) RequiresApproval() bool {
	switch r {
	case RoleUser, RoleSuperAdmin:
		return false
	default:
		return true
	}
}

func (r Role) String() string {
	return string(r)
}
