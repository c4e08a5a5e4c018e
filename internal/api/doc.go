// Competo - Multi-Tenant Competency Assessment Platform
// Copyright 2026 Competo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/competo/competo

// Package api implements the HTTP surface: the response envelope, the
// route handlers, and the chi router that mounts them behind the
// security pipeline and the guard.
package api
