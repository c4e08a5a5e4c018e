// Competo - Multi-Tenant Competency Assessment Platform
// Copyright 2026 Competo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/competo/competo

// Package security implements the request hardening pipeline that fronts
// every API route. The stages run in a fixed order:
//
//	rate limit -> sanitize -> injection detect -> CORS -> session timeout
//
// Rate limiting runs first so hostile traffic is shed before any request
// body is read. The session stage runs last, closest to the guard, so an
// idle privileged session is cut even when the request is otherwise clean.
package security
