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
	"strings"

	"github.com/goccy/go-json"

	"github.com/competo/competo/internal/metrics"
)

// Markup stripping order matters: script blocks go first so their inner
// text disappears with them, then inline event handlers, then any
// remaining tags.
var (
	scriptRe    = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	eventAttrRe = regexp.MustCompile(`(?i)\son\w+\s*=\s*(?:"[^"]*"|'[^']*'|[^\s>]+)`)
	tagRe       = regexp.MustCompile(`(?s)<[^>]*>`)
)

// maxSanitizeBody bounds how much request body the sanitizer will buffer.
const maxSanitizeBody = 1 << 20

// Sanitizer strips HTML markup from string inputs before they reach
// handlers. Structure is preserved: only string leaves of a JSON body
// and query parameter values are rewritten.
type Sanitizer struct{}

// NewSanitizer returns a sanitizer.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{}
}

// CleanString removes script blocks, event handler attributes, and tags
// from a single value.
func (s *Sanitizer) CleanString(in string) string {
	out := scriptRe.ReplaceAllString(in, "")
	out = eventAttrRe.ReplaceAllString(out, "")
	out = tagRe.ReplaceAllString(out, "")
	return out
}

// cleanValue recursively sanitizes string leaves of decoded JSON.
func (s *Sanitizer) cleanValue(v interface{}) (interface{}, bool) {
	switch val := v.(type) {
	case string:
		cleaned := s.CleanString(val)
		return cleaned, cleaned != val
	case map[string]interface{}:
		changed := false
		for k, inner := range val {
			cleaned, c := s.cleanValue(inner)
			val[k] = cleaned
			changed = changed || c
		}
		return val, changed
	case []interface{}:
		changed := false
		for i, inner := range val {
			cleaned, c := s.cleanValue(inner)
			val[i] = cleaned
			changed = changed || c
		}
		return val, changed
	default:
		return v, false
	}
}

// Sanitize is the pipeline stage. It rewrites query parameters and JSON
// request bodies in place; non-JSON bodies pass through untouched.
func (p *Pipeline) Sanitize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		modified := false

		// Query parameters.
		q := r.URL.Query()
		qChanged := false
		for key, vals := range q {
			for i, v := range vals {
				cleaned := p.sanitizer.CleanString(v)
				if cleaned != v {
					vals[i] = cleaned
					qChanged = true
				}
			}
			q[key] = vals
		}
		if qChanged {
			r.URL.RawQuery = q.Encode()
			modified = true
		}

		// JSON body.
		if bodyIsJSON(r) && r.Body != nil {
			raw, err := io.ReadAll(io.LimitReader(r.Body, maxSanitizeBody))
			if err == nil && len(raw) > 0 {
				var decoded interface{}
				if json.Unmarshal(raw, &decoded) == nil {
					cleaned, changed := p.sanitizer.cleanValue(decoded)
					if changed {
						if reencoded, err := json.Marshal(cleaned); err == nil {
							raw = reencoded
							modified = true
						}
					}
				}
			}
			r.Body = io.NopCloser(bytes.NewReader(raw))
			r.ContentLength = int64(len(raw))
		}

		if modified {
			metrics.SanitizerModified.Inc()
		}
		next.ServeHTTP(w, r)
	})
}

func bodyIsJSON(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return strings.HasPrefix(ct, "application/json")
}
