// Competo - Multi-Tenant Competency Assessment Platform
// Copyright 2026 Competo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/competo/competo

// Package token implements the stateless bearer token codec. Tokens are
// HMAC-SHA256 signed JWTs carrying the subject identity, role, and tenant
// binding. Verification failures are classified into distinct sentinel
// errors so callers can log expiry separately from tampering without ever
// exposing the distinction to clients.
package token
