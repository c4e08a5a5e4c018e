// Competo - Multi-Tenant Competency Assessment Platform
// Copyright 2026 Competo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/competo/competo

// Package approval implements the registration approval state machine.
// Roles between user and super_admin start unapproved and need a strictly
// senior principal to confirm them before the guard admits privileged
// actions. Decisions are monotonic: a request moves from pending to
// approved or rejected exactly once, and rejected requests are retained
// rather than reopened.
package approval
