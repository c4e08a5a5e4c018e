// Competo - Multi-Tenant Competency Assessment Platform
// Copyright 2026 Competo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/competo/competo

package logging

import (
	"strings"

	"github.com/rs/zerolog"
)

// SecurityEvent represents a security-relevant event for internal logging.
// Client responses never carry these details; they exist so operators can
// reconstruct what a generic 400/401/403 actually was.
type SecurityEvent struct {
	// Event is the type of event (e.g. "injection_detected", "token_expired").
	Event string
	// SubjectID is the acting principal, if known.
	SubjectID string
	// TenantID is the tenant scope involved, if any.
	TenantID string
	// IPAddress is the client's network origin.
	IPAddress string
	// Path is the request path.
	Path string
	// Payload is the offending input, truncated before logging.
	Payload string
	// Success indicates whether the guarded operation went through.
	Success bool
	// Error is the internal error message if the operation failed.
	Error string
}

// SecurityLogger logs security events with automatic truncation of
// potentially attacker-controlled fields.
type SecurityLogger struct {
	logger zerolog.Logger
}

// NewSecurityLogger creates a security logger on the global logger.
func NewSecurityLogger() *SecurityLogger {
	return &SecurityLogger{
		logger: WithComponent("security"),
	}
}

// NewSecurityLoggerWithLogger creates a security logger with a custom logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewSecurityLoggerWithLogger(logger zerolog.Logger) *SecurityLogger {
	return &SecurityLogger{
		logger: logger.With().Str("component", "security").Logger(),
	}
}

// maxPayloadLen bounds logged attacker-controlled input.
const maxPayloadLen = 256

// LogEvent logs a security event.
func (l *SecurityLogger) LogEvent(event *SecurityEvent) {
	e := l.logger.Warn().Str("event", event.Event)

	if event.Success {
		e = e.Str("status", "success")
	} else {
		e = e.Str("status", "failed")
	}
	if event.SubjectID != "" {
		e = e.Str("subject_id", TruncateField(event.SubjectID, 64))
	}
	if event.TenantID != "" {
		e = e.Str("tenant_id", TruncateField(event.TenantID, 64))
	}
	if event.IPAddress != "" {
		e = e.Str("ip", event.IPAddress)
	}
	if event.Path != "" {
		e = e.Str("path", TruncateField(event.Path, 128))
	}
	if event.Payload != "" {
		e = e.Str("payload", TruncateField(event.Payload, maxPayloadLen))
	}
	if event.Error != "" {
		e = e.Str("error", event.Error)
	}

	e.Msg("security event")
}

// TruncateField shortens a field to at most n runes, stripping control
// characters so log lines stay single-line JSON.
func TruncateField(s string, n int) string {
	s = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return ' '
		}
		return r
	}, s)
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
