// Competo - Multi-Tenant Competency Assessment Platform
// Copyright 2026 Competo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/competo/competo

package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/competo/competo/internal/logging"
	"github.com/competo/competo/internal/middleware"
)

// APIResponse is the envelope every endpoint returns.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *APIMeta    `json:"meta,omitempty"`
}

// APIError carries a machine-readable code and a human-readable message.
// Messages on 401 and 403 are deliberately generic.
type APIError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// APIMeta is optional response metadata.
type APIMeta struct {
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Error codes.
const (
	CodeBadRequest       = "bad_request"
	CodeValidationFailed = "validation_failed"
	CodeUnauthenticated  = "unauthenticated"
	CodeForbidden        = "forbidden"
	CodeNotFound         = "not_found"
	CodeConflict         = "conflict"
	CodeInternalError    = "internal_error"
)

func respond(w http.ResponseWriter, r *http.Request, status int, resp *APIResponse) {
	if resp.Meta == nil {
		resp.Meta = &APIMeta{Timestamp: time.Now().UTC()}
	}
	if resp.Meta.RequestID == "" {
		resp.Meta.RequestID = middleware.GetRequestID(r.Context())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.Ctx(r.Context()).Err(err).Msg("failed to encode response")
	}
}

// respondData writes a success envelope.
func respondData(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	respond(w, r, status, &APIResponse{Success: true, Data: data})
}

// respondError writes an error envelope.
func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, details interface{}) {
	respond(w, r, status, &APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: message, Details: details},
	})
}
