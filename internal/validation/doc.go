// Competo - Multi-Tenant Competency Assessment Platform
// Copyright 2026 Competo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/competo/competo

// Package validation wraps go-playground/validator v10 behind a thread-safe
// singleton. Request structs declare their rules with validate tags; the
// custom "role" tag checks against the platform role enumeration.
package validation
