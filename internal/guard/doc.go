// Competo - Multi-Tenant Competency Assessment Platform
// Copyright 2026 Competo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/competo/competo

// Package guard is the authorization gate behind the security pipeline.
// Every protected route declares a RouteSpec; the guard verifies the
// bearer token, loads the principal, checks approval and permission, and
// attaches the principal to the request context.
//
// Denial reasons are tracked internally for logs and metrics. Clients
// only ever see two shapes: 401 authentication required, 403 access
// denied. Leaking whether an account exists, is unapproved, or is
// tombstoned would hand an attacker a reconnaissance primitive.
package guard
