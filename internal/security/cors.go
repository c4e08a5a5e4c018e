// Competo - Multi-Tenant Competency Assessment Platform
// Copyright 2026 Competo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/competo/competo

package security

import (
	"net/http"

	"github.com/go-chi/cors"

	"github.com/competo/competo/internal/config"
)

// CORS is the pipeline stage enforcing the origin allow-list. The list
// fails closed: an empty configuration admits no cross-origin caller,
// and development origins are only present when the environment is
// development (config.AllowedOrigins handles the split).
func (p *Pipeline) CORS(next http.Handler) http.Handler {
	origins := p.allowedOrigins()

	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-Refreshed-Token"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	return c.Handler(next)
}

func (p *Pipeline) allowedOrigins() []string {
	origins := append([]string{}, p.cfg.CORSOrigins...)
	if p.env == config.EnvDevelopment {
		origins = append(origins, p.cfg.DevCORSOrigins...)
	}
	return origins
}
