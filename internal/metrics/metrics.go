// Competo - Multi-Tenant Competency Assessment Platform
// Copyright 2026 Competo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/competo/competo

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// APIRequestsTotal counts HTTP requests by method, path, and status.
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "competo_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	// APIRequestDuration observes request latency by method and path.
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "competo_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// APIActiveRequests gauges in-flight requests.
	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "competo_api_active_requests",
			Help: "Number of requests currently being served",
		},
	)

	// GuardDenials counts authorization failures by reason
	// (unauthenticated, unapproved, forbidden).
	GuardDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "competo_guard_denials_total",
			Help: "Authorization guard denials by reason",
		},
		[]string{"reason"},
	)

	// TokenRotations counts opportunistic token re-issues.
	TokenRotations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "competo_token_rotations_total",
			Help: "Tokens re-issued near expiry",
		},
	)

	// RateLimited counts requests rejected by the rate limiter, by route class.
	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "competo_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"class"},
	)

	// InjectionRejected counts requests rejected by the injection detector.
	InjectionRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "competo_injection_rejected_total",
			Help: "Requests rejected by the SQL injection detector",
		},
	)

	// SanitizerModified counts requests whose input the sanitizer changed.
	SanitizerModified = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "competo_sanitizer_modified_total",
			Help: "Requests with string fields altered by the input sanitizer",
		},
	)

	// SessionsExpired counts privileged sessions terminated by inactivity.
	SessionsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "competo_sessions_expired_total",
			Help: "Privileged sessions terminated by the inactivity timeout",
		},
	)

	// ApprovalDecisions counts approval state transitions by outcome.
	ApprovalDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "competo_approval_decisions_total",
			Help: "Approval request decisions by outcome",
		},
		[]string{"outcome"},
	)

	// AuditWriteFailures counts audit records that could not be persisted.
	// A non-zero rate is the degraded-mode alert signal: the primary action
	// still succeeded, but the trail is incomplete.
	AuditWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "competo_audit_write_failures_total",
			Help: "Audit records that failed to persist",
		},
	)

	// AuditRecordsDropped counts records dropped because the buffer was full.
	AuditRecordsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "competo_audit_records_dropped_total",
			Help: "Audit records dropped due to a full write buffer",
		},
	)
)

// TrackActiveRequest adjusts the in-flight request gauge.
func TrackActiveRequest(start bool) {
	if start {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordAPIRequest records the outcome of one HTTP request.
func RecordAPIRequest(method, path, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, path, status).Inc()
	APIRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
