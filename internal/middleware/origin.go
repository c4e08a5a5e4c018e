// Competo - Multi-Tenant Competency Assessment Platform
// Copyright 2026 Competo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/competo/competo

package middleware

import (
	"net/http"

	"github.com/competo/competo/internal/logging"
)

// OriginAddress stamps the client network origin into the request
// context so audit records written below the HTTP layer carry it.
func OriginAddress(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.ContextWithOriginAddress(r.Context(), r.RemoteAddr)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
