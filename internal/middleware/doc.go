// Competo - Multi-Tenant Competency Assessment Platform
// Copyright 2026 Competo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/competo/competo

// Package middleware provides request plumbing shared by all routes:
// request-ID and origin-address propagation and Prometheus
// instrumentation.
package middleware
