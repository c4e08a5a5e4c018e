// Competo - Multi-Tenant Competency Assessment Platform
// Copyright 2026 Competo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/competo/competo

package security

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/httprate"
	"golang.org/x/time/rate"

	"github.com/competo/competo/internal/logging"
	"github.com/competo/competo/internal/metrics"
)

// RateLimit is the general per-address limiter fronting all routes.
func (p *Pipeline) RateLimit(next http.Handler) http.Handler {
	if p.cfg.RateLimitDisabled {
		return next
	}

	return httprate.Limit(
		p.cfg.RateLimitRequests,
		p.cfg.RateLimitWindow,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return p.clientIP(r), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			p.rejectRateLimited(w, r, "general", p.cfg.RateLimitWindow)
		}),
	)(next)
}

// LoginRateLimit is the stricter limiter for credential-bearing routes.
// Mounted per-route on top of the general limiter.
func (p *Pipeline) LoginRateLimit(next http.Handler) http.Handler {
	if p.cfg.RateLimitDisabled {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := p.clientIP(r)
		if !p.login.Allow(ip) {
			p.rejectRateLimited(w, r, "login", p.cfg.LoginRateLimitWindow)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (p *Pipeline) rejectRateLimited(w http.ResponseWriter, r *http.Request, class string, window time.Duration) {
	metrics.RateLimited.WithLabelValues(class).Inc()
	p.secLog.LogEvent(&logging.SecurityEvent{
		Event:     "rate_limited",
		IPAddress: p.clientIP(r),
		Path:      r.URL.Path,
		Payload:   class,
	})

	w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
	writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
}

// LoginLimiter tracks per-address token buckets for the login class.
// Entries idle past the cleanup threshold are removed by a background
// goroutine.
type LoginLimiter struct {
	mu       sync.Mutex
	limiters map[string]*loginLimiterEntry
	rate     rate.Limit
	burst    int
	stop     chan struct{}
	stopOnce sync.Once
}

type loginLimiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// NewLoginLimiter allows reqsPerWindow attempts per window per address.
func NewLoginLimiter(reqsPerWindow int, window time.Duration) *LoginLimiter {
	if reqsPerWindow <= 0 {
		reqsPerWindow = 1
	}
	if window <= 0 {
		window = 15 * time.Minute
	}

	l := &LoginLimiter{
		limiters: make(map[string]*loginLimiterEntry),
		rate:     rate.Every(window / time.Duration(reqsPerWindow)),
		burst:    reqsPerWindow,
		stop:     make(chan struct{}),
	}
	go l.cleanupLoop(10 * time.Minute)
	return l
}

// Allow reports whether another attempt from ip fits the budget.
func (l *LoginLimiter) Allow(ip string) bool {
	l.mu.Lock()
	entry, ok := l.limiters[ip]
	if !ok {
		entry = &loginLimiterEntry{
			limiter:    rate.NewLimiter(l.rate, l.burst),
			lastAccess: time.Now(),
		}
		l.limiters[ip] = entry
	} else {
		entry.lastAccess = time.Now()
	}
	limiter := entry.limiter
	l.mu.Unlock()

	return limiter.Allow()
}

// Stop ends the cleanup goroutine.
func (l *LoginLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *LoginLimiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stop:
			return
		}
	}
}

func (l *LoginLimiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	threshold := time.Now().Add(-time.Hour)
	for ip, entry := range l.limiters {
		if entry.lastAccess.Before(threshold) {
			delete(l.limiters, ip)
		}
	}
}
