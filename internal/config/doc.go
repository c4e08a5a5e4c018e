// Competo - Multi-Tenant Competency Assessment Platform
// Copyright 2026 Competo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/competo/competo

// Package config loads and validates the externally supplied configuration
// for the authorization core. Nothing security-relevant is hardcoded: the
// signing secret, rate-limit windows, CORS allow-list, session timeout, and
// privileged IP allow-list all arrive through this package, and a missing
// secret in production aborts startup instead of silently defaulting.
package config
