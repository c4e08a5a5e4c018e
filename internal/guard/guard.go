// Competo - Multi-Tenant Competency Assessment Platform
// Copyright 2026 Competo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/competo/competo

package guard

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/competo/competo/internal/logging"
	"github.com/competo/competo/internal/metrics"
	"github.com/competo/competo/internal/models"
	"github.com/competo/competo/internal/rbac"
	"github.com/competo/competo/internal/store"
	"github.com/competo/competo/internal/token"
)

// Denial reasons for logs and metrics. Never sent to clients.
const (
	reasonNoToken       = "no_token"
	reasonExpired       = "token_expired"
	reasonBadSignature  = "bad_signature"
	reasonMalformed     = "token_malformed"
	reasonUnknown       = "principal_unknown"
	reasonTombstoned    = "principal_tombstoned"
	reasonUnapproved    = "unapproved"
	reasonInsufficient  = "insufficient_role"
	reasonNotPermitted  = "not_permitted"
	reasonLookupFailure = "lookup_failure"
)

// RouteSpec declares what a route requires from the caller.
type RouteSpec struct {
	// Action is the rbac action the route performs.
	Action string

	// MinRole is the least senior role admitted. Zero value admits any
	// valid role.
	MinRole models.Role

	// TenantScoped routes resolve the target tenant from the caller's
	// own binding; cross-tenant routes leave it false and rely on the
	// rbac cross-tenant action set.
	TenantScoped bool

	// AllowUnapproved admits callers whose approval is still pending.
	// Used by the routes a fresh registrant needs, like viewing their
	// own approval status.
	AllowUnapproved bool
}

// Guard wires token verification, principal lookup, and permission
// checks into one middleware.
type Guard struct {
	tokens        *token.Manager
	principals    store.PrincipalStore
	checker       *rbac.Checker
	lookupTimeout time.Duration
}

// New builds a guard. lookupTimeout bounds the principal fetch so a slow
// store cannot hold requests open indefinitely.
func New(tokens *token.Manager, principals store.PrincipalStore, checker *rbac.Checker, lookupTimeout time.Duration) *Guard {
	if lookupTimeout <= 0 {
		lookupTimeout = 5 * time.Second
	}
	return &Guard{
		tokens:        tokens,
		principals:    principals,
		checker:       checker,
		lookupTimeout: lookupTimeout,
	}
}

type contextKey string

const principalKey contextKey = "competo.principal"

// PrincipalFromContext returns the authenticated principal attached by
// Require, or nil for unauthenticated requests.
func PrincipalFromContext(ctx context.Context) *models.Principal {
	p, _ := ctx.Value(principalKey).(*models.Principal)
	return p
}

// ContextWithPrincipal attaches a principal. Exported for handler tests.
func ContextWithPrincipal(ctx context.Context, p *models.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// Require returns middleware enforcing a route's declared requirements.
func (g *Guard) Require(spec RouteSpec) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, claims, reason := g.admit(r, spec)
			if principal == nil {
				g.deny(w, r, reason)
				return
			}

			// Opportunistic rotation keeps active sessions from
			// expiring mid-use.
			if g.tokens.NeedsRotation(claims) {
				if rotated, err := g.tokens.Rotate(claims); err == nil {
					w.Header().Set("X-Refreshed-Token", rotated)
					metrics.TokenRotations.Inc()
				}
			}

			ctx := ContextWithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// admit runs the full admission sequence. A nil principal means denial
// with the returned reason.
func (g *Guard) admit(r *http.Request, spec RouteSpec) (*models.Principal, *token.Claims, string) {
	raw := bearerToken(r)
	if raw == "" {
		return nil, nil, reasonNoToken
	}

	claims, err := g.tokens.Verify(raw)
	if err != nil {
		switch {
		case errors.Is(err, token.ErrExpiredToken):
			return nil, nil, reasonExpired
		case errors.Is(err, token.ErrInvalidSignature):
			return nil, nil, reasonBadSignature
		default:
			return nil, nil, reasonMalformed
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), g.lookupTimeout)
	defer cancel()

	principal, err := g.principals.GetPrincipal(ctx, claims.SubjectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, reasonUnknown
		}
		logging.Ctx(r.Context()).Err(err).Msg("principal lookup failed")
		return nil, nil, reasonLookupFailure
	}
	if principal.Tombstoned() {
		return nil, nil, reasonTombstoned
	}

	// The store is authoritative over stale token claims.
	if !principal.Approved && principal.Role.RequiresApproval() && !spec.AllowUnapproved {
		return nil, nil, reasonUnapproved
	}

	if spec.MinRole != "" && spec.MinRole.Valid() {
		if principal.Role != spec.MinRole && !principal.Role.SeniorTo(spec.MinRole) {
			return nil, nil, reasonInsufficient
		}
	}

	if spec.Action != "" {
		targetTenant := ""
		if spec.TenantScoped {
			targetTenant = principal.TenantID
		}
		if !g.checker.CanPerform(principal.Role, spec.Action, principal.TenantID, targetTenant) {
			return nil, nil, reasonNotPermitted
		}
	}

	return principal, claims, ""
}

// deny writes the generic client error for a denial reason.
func (g *Guard) deny(w http.ResponseWriter, r *http.Request, reason string) {
	metrics.GuardDenials.WithLabelValues(reason).Inc()
	logging.Ctx(r.Context()).Warn().
		Str("component", "guard").
		Str("reason", reason).
		Str("path", r.URL.Path).
		Msg("request denied")

	switch reason {
	case reasonNoToken, reasonExpired, reasonBadSignature, reasonMalformed, reasonUnknown, reasonTombstoned:
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
		writeJSONError(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
	case reasonLookupFailure:
		writeJSONError(w, http.StatusServiceUnavailable, "unavailable", "temporarily unavailable")
	default:
		writeJSONError(w, http.StatusForbidden, "forbidden", "access denied")
	}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || auth[:len(prefix)] != prefix {
		return ""
	}
	return auth[len(prefix):]
}

type errorBody struct {
	Success bool `json:"success"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	var body errorBody
	body.Error.Code = code
	body.Error.Message = message

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // nothing to do about a failed error write
	json.NewEncoder(w).Encode(body)
}
