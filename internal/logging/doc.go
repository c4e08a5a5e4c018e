// Competo - Multi-Tenant Competency Assessment Platform
// Copyright 2026 Competo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/competo/competo

// Package logging provides centralized zerolog-based logging for Competo.
//
// It offers zero-allocation structured logging with JSON output for
// production and console output for development, plus context-aware
// helpers that propagate request and correlation IDs.
//
// # Quick Start
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//	logging.Info().Msg("server starting")
//	logging.Ctx(ctx).Warn().Str("subject", id).Msg("approval denied")
//
// Always terminate log chains with .Msg() or .Send(); a chain without a
// terminator is never emitted.
package logging
