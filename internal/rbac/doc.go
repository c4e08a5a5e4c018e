// Competo - Multi-Tenant Competency Assessment Platform
// Copyright 2026 Competo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/competo/competo

// Package rbac answers permission questions for role and action pairs.
// It wraps a Casbin enforcer loaded from an embedded model and policy.
// Role seniority is expressed as grouping rules so each role inherits
// everything the roles beneath it can do.
//
// Decisions are total: CanPerform returns a plain bool for every input,
// and any internal enforcement failure counts as a denial.
package rbac
