// Competo - Multi-Tenant Competency Assessment Platform
// Copyright 2026 Competo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/competo/competo

package security

import (
	"bytes"
	"io"
	"net/http"
	"regexp"

	"github.com/competo/competo/internal/logging"
	"github.com/competo/competo/internal/metrics"
)

// Injection signatures. Handlers use parameterized queries throughout, so
// the detector is defense in depth: it rejects obviously hostile input
// rather than trying to catch every encoding trick.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bunion\s+(all\s+)?select\b`),
	regexp.MustCompile(`(?i)\b(select|insert|update|delete|drop|alter|truncate)\b.*\b(from|into|table|database)\b`),
	regexp.MustCompile(`(?i)'\s*(or|and)\s+'?\d*'?\s*=\s*'?\d*`),
	regexp.MustCompile(`(?i);\s*(drop|delete|truncate|shutdown)\b`),
	regexp.MustCompile(`(?i)\bexec(ute)?\s*\(`),
	regexp.MustCompile("(?i)(;|\\||`|\\$\\()\\s*(cat|ls|rm|wget|curl|nc|bash|sh|powershell)\\b"),
	regexp.MustCompile(`\.\./\.\./`),
}

// InjectionDetector screens request inputs against the signature set.
type InjectionDetector struct {
	patterns []*regexp.Regexp
}

// NewInjectionDetector returns a detector with the built-in signatures.
func NewInjectionDetector() *InjectionDetector {
	return &InjectionDetector{patterns: injectionPatterns}
}

// Suspicious reports whether the input matches any signature.
func (d *InjectionDetector) Suspicious(in string) bool {
	for _, re := range d.patterns {
		if re.MatchString(in) {
			return true
		}
	}
	return false
}

// InjectionDetect is the pipeline stage. Matching requests are rejected
// with 400 before reaching any handler. Runs after the sanitizer: markup
// is already stripped, so what is left is what handlers would see.
func (p *Pipeline) InjectionDetect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hit, where := p.scanRequest(r); hit {
			metrics.InjectionRejected.Inc()
			p.secLog.LogEvent(&logging.SecurityEvent{
				Event:     "injection_rejected",
				IPAddress: p.clientIP(r),
				Path:      r.URL.Path,
				Payload:   logging.TruncateField(where, 256),
			})
			writeError(w, http.StatusBadRequest, "invalid_input", "request rejected")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// scanRequest checks the path, query values, and body. Returns the
// offending input for the security log.
func (p *Pipeline) scanRequest(r *http.Request) (bool, string) {
	if p.detector.Suspicious(r.URL.Path) {
		return true, r.URL.Path
	}
	for _, vals := range r.URL.Query() {
		for _, v := range vals {
			if p.detector.Suspicious(v) {
				return true, v
			}
		}
	}

	if bodyIsJSON(r) && r.Body != nil {
		raw, err := io.ReadAll(io.LimitReader(r.Body, maxSanitizeBody))
		if err == nil {
			r.Body = io.NopCloser(bytes.NewReader(raw))
			if p.detector.Suspicious(string(raw)) {
				return true, string(raw)
			}
		}
	}
	return false, ""
}
