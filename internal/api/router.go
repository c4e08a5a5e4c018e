// Competo - Multi-Tenant Competency Assessment Platform
// Copyright 2026 Competo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/competo/competo

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/competo/competo/internal/guard"
	"github.com/competo/competo/internal/middleware"
	"github.com/competo/competo/internal/models"
	"github.com/competo/competo/internal/rbac"
	"github.com/competo/competo/internal/security"
)

// Router assembles the HTTP surface.
type Router struct {
	handler  *Handler
	pipeline *security.Pipeline
	guard    *guard.Guard
}

// NewRouter wires handlers, pipeline, and guard.
func NewRouter(h *Handler, p *security.Pipeline, g *guard.Guard) *Router {
	return &Router{handler: h, pipeline: p, guard: g}
}

// Setup mounts all routes. The API subtree sits behind the full
// security pipeline; health and metrics bypass it so probes and
// scrapers are never rate limited or CORS gated.
func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.OriginAddress)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)

	r.Get("/healthz", rt.handler.Healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.pipeline.Handler)

		// Public routes.
		r.Post("/register", rt.handler.Register)
		r.With(rt.pipeline.LoginRateLimit).Post("/token", rt.handler.IssueToken)

		// Routes a fresh registrant may use before approval.
		r.With(rt.guard.Require(guard.RouteSpec{AllowUnapproved: true})).
			Get("/me", rt.handler.Me)
		r.With(rt.guard.Require(guard.RouteSpec{
			Action: rbac.ActionApprovalViewOwn, TenantScoped: true, AllowUnapproved: true,
		})).Get("/approvals/mine", rt.handler.MyApprovals)

		// Tenant-scoped routes.
		r.With(rt.guard.Require(guard.RouteSpec{
			Action: rbac.ActionAssessmentTake, TenantScoped: true,
		})).Post("/assessments", rt.handler.TakeAssessment)

		r.With(rt.guard.Require(guard.RouteSpec{
			Action: rbac.ActionApprovalDecide, MinRole: models.RoleHRManager, TenantScoped: true,
		})).Get("/approvals", rt.handler.PendingApprovals)
		r.With(rt.guard.Require(guard.RouteSpec{
			Action: rbac.ActionApprovalDecide, MinRole: models.RoleHRManager, TenantScoped: true,
		})).Post("/approvals/{id}/approve", rt.handler.Approve)
		r.With(rt.guard.Require(guard.RouteSpec{
			Action: rbac.ActionApprovalDecide, MinRole: models.RoleHRManager, TenantScoped: true,
		})).Post("/approvals/{id}/reject", rt.handler.Reject)

		r.With(rt.guard.Require(guard.RouteSpec{
			Action: rbac.ActionUserTombstone, MinRole: models.RoleCompanyAdmin, TenantScoped: true,
		})).Delete("/users/{id}", rt.handler.TombstoneUser)

		// Company deletion is tenant-scoped for company admins; the
		// handler rejects a tenant-bound actor whose own tenant does
		// not match the target. System roles reach any company.
		r.With(rt.pipeline.PrivilegedIPAllow, rt.guard.Require(guard.RouteSpec{
			Action: rbac.ActionCompanyDelete, MinRole: models.RoleCompanyAdmin, TenantScoped: true,
		})).Delete("/companies/{id}", rt.handler.DeleteCompany)

		// Cross-tenant routes, system tier only. When a privileged IP
		// allowlist is configured these are the routes it protects.
		r.Group(func(r chi.Router) {
			r.Use(rt.pipeline.PrivilegedIPAllow)

			r.With(rt.guard.Require(guard.RouteSpec{
				Action: rbac.ActionCompanyListAll, MinRole: models.RoleSysAdmin,
			})).Get("/companies", rt.handler.ListCompanies)
			r.With(rt.guard.Require(guard.RouteSpec{
				Action: rbac.ActionAuditView, MinRole: models.RoleSysAdmin,
			})).Get("/audit", rt.handler.AuditTrail)
		})
	})

	return r
}
