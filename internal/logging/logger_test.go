// Competo - Multi-Tenant Competency Assessment Platform
// Copyright 2026 Competo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/competo/competo

package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestCtxAddsRequestAndCorrelationIDs(t *testing.T) {
	var buf bytes.Buffer
	old := Logger()
	SetLogger(NewTestLogger(&buf))
	defer SetLogger(old)

	ctx := ContextWithRequestID(context.Background(), "req-123")
	ctx = ContextWithCorrelationID(ctx, "corr-456")

	Ctx(ctx).Info().Msg("hello")

	out := buf.String()
	if !strings.Contains(out, `"request_id":"req-123"`) {
		t.Errorf("log output missing request_id: %s", out)
	}
	if !strings.Contains(out, `"correlation_id":"corr-456"`) {
		t.Errorf("log output missing correlation_id: %s", out)
	}
}

func TestRequestIDFromContextMissing(t *testing.T) {
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Errorf("RequestIDFromContext() = %q, want empty", got)
	}
}

func TestSecurityLoggerTruncatesPayload(t *testing.T) {
	var buf bytes.Buffer
	sl := NewSecurityLoggerWithLogger(NewTestLogger(&buf))

	sl.LogEvent(&SecurityEvent{
		Event:     "injection_detected",
		IPAddress: "203.0.113.9",
		Payload:   strings.Repeat("A", 1000),
	})

	out := buf.String()
	if !strings.Contains(out, "injection_detected") {
		t.Fatalf("missing event type: %s", out)
	}
	if strings.Contains(out, strings.Repeat("A", 300)) {
		t.Error("payload was not truncated")
	}
}

func TestTruncateFieldStripsControlChars(t *testing.T) {
	got := TruncateField("a\nb\tc", 10)
	if strings.ContainsAny(got, "\n\t") {
		t.Errorf("TruncateField() = %q, control chars not stripped", got)
	}
}

func TestParseLevelUnknownDefaultsToInfo(t *testing.T) {
	if parseLevel("verbose") != parseLevel("info") {
		t.Error("unknown level should default to info")
	}
}
