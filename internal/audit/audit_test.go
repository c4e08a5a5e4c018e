// Competo - Multi-Tenant Competency Assessment Platform
// Copyright 2026 Competo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/competo/competo

package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// failingSink always fails writes, for degraded-mode tests.
type failingSink struct {
	mu    sync.Mutex
	calls int
}

func (s *failingSink) Write(context.Context, *Record) error {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return errors.New("disk on fire")
}

func (s *failingSink) Read(context.Context, Query) ([]*Record, error) {
	return nil, nil
}

func TestRecorderWritesThroughSink(t *testing.T) {
	sink := NewMemorySink()
	rec := NewRecorder(sink, 16, true)

	rec.Record(&Record{ActorID: "u-1", Action: "approval.approve", TargetID: "u-2", TenantID: "t-acme"})
	rec.Record(&Record{ActorID: "u-1", Action: "user.tombstone", TargetID: "u-3", TenantID: "t-acme"})
	rec.Close()

	got, err := sink.Read(context.Background(), Query{})
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	for _, r := range got {
		if r.ID == "" || r.Timestamp.IsZero() {
			t.Errorf("record missing generated fields: %+v", r)
		}
	}
}

func TestRecorderCloseDrainsBuffer(t *testing.T) {
	sink := NewMemorySink()
	rec := NewRecorder(sink, 100, true)

	for i := 0; i < 50; i++ {
		rec.Record(&Record{ActorID: "u-1", Action: "assessment.take"})
	}
	rec.Close()

	got, err := sink.Read(context.Background(), Query{})
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(got) != 50 {
		t.Errorf("got %d records after Close, want all 50", len(got))
	}
}

func TestRecorderSinkFailureDoesNotPropagate(t *testing.T) {
	sink := &failingSink{}
	rec := NewRecorder(sink, 16, true)

	// Record has no error return: a failing sink must be invisible here.
	rec.Record(&Record{ActorID: "u-1", Action: "approval.approve"})
	rec.Close()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.calls != 1 {
		t.Errorf("sink.calls = %d, want 1", sink.calls)
	}
}

func TestRecorderDisabledIsNoop(t *testing.T) {
	sink := NewMemorySink()
	rec := NewRecorder(sink, 16, false)

	rec.Record(&Record{ActorID: "u-1", Action: "assessment.take"})
	rec.Close()

	got, _ := sink.Read(context.Background(), Query{})
	if len(got) != 0 {
		t.Errorf("disabled recorder wrote %d records", len(got))
	}
}

func TestMemorySinkQueryFilters(t *testing.T) {
	sink := NewMemorySink()
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	records := []*Record{
		{ID: "1", ActorID: "u-1", Action: "approval.approve", TenantID: "t-acme", Timestamp: base},
		{ID: "2", ActorID: "u-2", Action: "approval.reject", TenantID: "t-acme", Timestamp: base.Add(time.Hour)},
		{ID: "3", ActorID: "u-1", Action: "user.tombstone", TenantID: "t-globex", Timestamp: base.Add(2 * time.Hour)},
	}
	for _, r := range records {
		if err := sink.Write(ctx, r); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}

	tests := []struct {
		name    string
		q       Query
		wantIDs []string
	}{
		{"all newest first", Query{}, []string{"3", "2", "1"}},
		{"by actor", Query{ActorID: "u-1"}, []string{"3", "1"}},
		{"by action", Query{Action: "approval.reject"}, []string{"2"}},
		{"by tenant", Query{TenantID: "t-acme"}, []string{"2", "1"}},
		{"since", Query{Since: base.Add(30 * time.Minute)}, []string{"3", "2"}},
		{"until", Query{Until: base.Add(30 * time.Minute)}, []string{"1"}},
		{"limit", Query{Limit: 1}, []string{"3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sink.Read(ctx, tt.q)
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("got %d records, want %d", len(got), len(tt.wantIDs))
			}
			for i, want := range tt.wantIDs {
				if got[i].ID != want {
					t.Errorf("record[%d].ID = %s, want %s", i, got[i].ID, want)
				}
			}
		})
	}
}
