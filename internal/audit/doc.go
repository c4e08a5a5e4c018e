// Competo - Multi-Tenant Competency Assessment Platform
// Copyright 2026 Competo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/competo/competo

// Package audit records security-relevant actions to an append-only trail.
// Recording is asynchronous and never blocks or fails the primary action:
// a full buffer drops the record, a failing sink logs and counts. Both
// conditions surface through metrics so operators can see a degraded trail.
package audit
