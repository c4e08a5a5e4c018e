// Competo - Multi-Tenant Competency Assessment Platform
// Copyright 2026 Competo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/competo/competo

// Package models defines the core identity domain: roles, principals,
// and approval requests shared by the authorization packages.
package models
