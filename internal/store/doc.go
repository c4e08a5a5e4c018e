// Competo - Multi-Tenant Competency Assessment Platform
// Copyright 2026 Competo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/competo/competo

// Package store defines persistence for principals and approval requests.
// Two implementations exist: an in-memory store for tests and development,
// and a PostgreSQL store for production. Both honor the same semantics:
// principals are soft-deleted, approval decisions are written exactly once.
package store
