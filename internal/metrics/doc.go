// Competo - Multi-Tenant Competency Assessment Platform
// Copyright 2026 Competo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/competo/competo

// Package metrics defines the Prometheus instrumentation for the
// authorization core. All collectors are registered on the default
// registry via promauto and exposed on /metrics.
package metrics
