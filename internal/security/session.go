// Competo - Multi-Tenant Competency Assessment Platform
// Copyright 2026 Competo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/competo/competo

package security

import (
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/competo/competo/internal/logging"
	"github.com/competo/competo/internal/metrics"
	"github.com/competo/competo/internal/models"
)

// ActivityTracker records last-seen times per subject. Backed by an
// expiring cache so abandoned sessions cost no memory past roughly twice
// the timeout.
type ActivityTracker struct {
	cache   *gocache.Cache
	timeout time.Duration
}

// NewActivityTracker tracks inactivity against the given timeout.
func NewActivityTracker(timeout time.Duration) *ActivityTracker {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &ActivityTracker{
		cache:   gocache.New(2*timeout, timeout),
		timeout: timeout,
	}
}

// Touch records activity for a subject and reports whether the session
// had already gone idle. A subject with no recorded activity is a fresh
// session, not an expired one.
func (t *ActivityTracker) Touch(subjectID string) (expired bool) {
	now := time.Now()
	if last, found := t.cache.Get(subjectID); found {
		if now.Sub(last.(time.Time)) > t.timeout {
			t.cache.Delete(subjectID)
			return true
		}
	}
	t.cache.Set(subjectID, now, gocache.DefaultExpiration)
	return false
}

// Forget drops a subject's activity record. Used after expiry so the
// next authenticated request starts a fresh session.
func (t *ActivityTracker) Forget(subjectID string) {
	t.cache.Delete(subjectID)
}

// SessionTimeout is the pipeline stage that cuts idle privileged
// sessions. It verifies the bearer token just enough to attribute the
// request; verification failures pass through untouched, the guard
// behind the pipeline rejects them with the proper error.
func (p *Pipeline) SessionTimeout(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := p.tokens.Verify(raw)
		if err != nil || !models.Role(claims.Role).Privileged() {
			next.ServeHTTP(w, r)
			return
		}

		if p.tracker.Touch(claims.SubjectID) {
			metrics.SessionsExpired.Inc()
			p.secLog.LogEvent(&logging.SecurityEvent{
				Event:     "session_expired",
				SubjectID: claims.SubjectID,
				IPAddress: p.clientIP(r),
				Path:      r.URL.Path,
			})
			w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
			writeError(w, http.StatusUnauthorized, "session_expired", "session expired, authenticate again")
			return
		}

		next.ServeHTTP(w, r)
	})
}
