// Competo - Multi-Tenant Competency Assessment Platform
// Copyright 2026 Competo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/competo/competo

package security

import (
	"net"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/competo/competo/internal/config"
	"github.com/competo/competo/internal/logging"
	"github.com/competo/competo/internal/token"
)

// Pipeline assembles the hardening stages from configuration.
type Pipeline struct {
	cfg       *config.SecurityConfig
	env       string
	tokens    *token.Manager
	tracker   *ActivityTracker
	login     *LoginLimiter
	secLog    *logging.SecurityLogger
	sanitizer *Sanitizer
	detector  *InjectionDetector
	allowNets []*net.IPNet
}

// NewPipeline builds the pipeline. The token manager is needed by the
// session stage to attribute activity to a subject.
func NewPipeline(cfg *config.Config, tokens *token.Manager) *Pipeline {
	return &Pipeline{
		cfg:       &cfg.Security,
		env:       cfg.Server.Environment,
		tokens:    tokens,
		tracker:   NewActivityTracker(cfg.Security.SessionTimeout),
		login:     NewLoginLimiter(cfg.Security.LoginRateLimitRequests, cfg.Security.LoginRateLimitWindow),
		secLog:    logging.NewSecurityLogger(),
		sanitizer: NewSanitizer(),
		detector:  NewInjectionDetector(),
		allowNets: parseAllowlist(cfg.Security.PrivilegedIPAllowlist),
	}
}

// parseAllowlist accepts plain IPs and CIDR blocks. Unparseable entries
// are logged and skipped so a typo narrows the list instead of opening it.
func parseAllowlist(entries []string) []*net.IPNet {
	var nets []*net.IPNet
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if _, ipNet, err := net.ParseCIDR(e); err == nil {
			nets = append(nets, ipNet)
			continue
		}
		ip := net.ParseIP(e)
		if ip == nil {
			logging.Warn().Str("entry", e).Msg("Ignoring invalid privileged IP allowlist entry")
			continue
		}
		bits := 32
		if ip.To4() == nil {
			bits = 128
		}
		nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}
	return nets
}

// PrivilegedIPAllow restricts a route to the configured source addresses.
// An empty allowlist imposes no restriction.
func (p *Pipeline) PrivilegedIPAllow(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(p.allowNets) == 0 {
			next.ServeHTTP(w, r)
			return
		}
		ipStr := p.clientIP(r)
		ip := net.ParseIP(ipStr)
		if ip != nil {
			for _, n := range p.allowNets {
				if n.Contains(ip) {
					next.ServeHTTP(w, r)
					return
				}
			}
		}
		p.secLog.LogEvent(&logging.SecurityEvent{
			Event:     "privileged_ip_blocked",
			IPAddress: ipStr,
			Path:      r.URL.Path,
			Success:   false,
		})
		writeError(w, http.StatusForbidden, "forbidden", "access denied")
	})
}

// Handler wraps next with all five stages in pipeline order. The outermost
// middleware runs first, so composition is written inside out.
func (p *Pipeline) Handler(next http.Handler) http.Handler {
	h := p.SessionTimeout(next)
	h = p.CORS(h)
	h = p.InjectionDetect(h)
	h = p.Sanitize(h)
	h = p.RateLimit(h)
	return h
}

// Close stops background goroutines owned by the pipeline.
func (p *Pipeline) Close() {
	p.login.Stop()
}

// clientIP resolves the caller address. X-Forwarded-For is honored only
// when the direct peer is a trusted proxy.
func (p *Pipeline) clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}

	if !p.trustedProxy(host) {
		return host
	}
	fwd := r.Header.Get("X-Forwarded-For")
	if fwd == "" {
		return host
	}
	// First hop is the original client.
	if idx := strings.Index(fwd, ","); idx >= 0 {
		fwd = fwd[:idx]
	}
	fwd = strings.TrimSpace(fwd)
	if net.ParseIP(fwd) == nil {
		return host
	}
	return fwd
}

func (p *Pipeline) trustedProxy(host string) bool {
	for _, proxy := range p.cfg.TrustedProxies {
		if proxy == host {
			return true
		}
	}
	return false
}

// errorBody mirrors the API response envelope so pipeline rejections look
// the same as handler errors to clients.
type errorBody struct {
	Success bool        `json:"success"`
	Error   errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // nothing to do about a failed error write
	json.NewEncoder(w).Encode(errorBody{
		Success: false,
		Error:   errorDetail{Code: code, Message: message},
	})
}

// bearerToken extracts the bearer credential from the Authorization
// header, or empty string when absent.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return ""
	}
	return auth[len(prefix):]
}
