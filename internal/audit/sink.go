// Competo - Multi-Tenant Competency Assessment Platform
// Copyright 2026 Competo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/competo/competo

package audit

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/competo/competo/internal/logging"
)

// MemorySink keeps records in memory. Development and test use only.
type MemorySink struct {
	mu      sync.RWMutex
	records []*Record
}

// NewMemorySink returns an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Write(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.records = append(s.records, &cp)
	return nil
}

func (s *MemorySink) Read(_ context.Context, q Query) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Record
	for i := len(s.records) - 1; i >= 0; i-- {
		rec := s.records[i]
		if !matches(rec, q) {
			continue
		}
		cp := *rec
		out = append(out, &cp)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out, nil
}

func matches(rec *Record, q Query) bool {
	if q.ActorID != "" && rec.ActorID != q.ActorID {
		return false
	}
	if q.Action != "" && rec.Action != q.Action {
		return false
	}
	if q.TenantID != "" && rec.TenantID != q.TenantID {
		return false
	}
	if !q.Since.IsZero() && rec.Timestamp.Before(q.Since) {
		return false
	}
	if !q.Until.IsZero() && rec.Timestamp.After(q.Until) {
		return false
	}
	return true
}

// PostgresSink appends records to the audit_trail table.
type PostgresSink struct {
	db *sql.DB
}

// NewPostgresSink wraps an existing connection pool.
func NewPostgresSink(db *sql.DB) *PostgresSink {
	return &PostgresSink{db: db}
}

func (s *PostgresSink) Write(ctx context.Context, rec *Record) error {
	const q = `
		INSERT INTO audit_trail (id, actor_id, action, target_type, target_id, tenant_id, detail, origin_address, request_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.db.ExecContext(ctx, q,
		rec.ID, rec.ActorID, rec.Action, rec.TargetType, rec.TargetID,
		rec.TenantID, rec.Detail, rec.OriginAddress, rec.RequestID, rec.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}
	return nil
}

func (s *PostgresSink) Read(ctx context.Context, q Query) ([]*Record, error) {
	query := `
		SELECT id, actor_id, action, target_type, target_id, tenant_id, detail, origin_address, request_id, created_at
		FROM audit_trail
		WHERE 1=1`
	var args []interface{}

	add := func(clause, val string) {
		args = append(args, val)
		query += fmt.Sprintf(" AND %s = $%d", clause, len(args))
	}
	if q.ActorID != "" {
		add("actor_id", q.ActorID)
	}
	if q.Action != "" {
		add("action", q.Action)
	}
	if q.TenantID != "" {
		add("tenant_id", q.TenantID)
	}
	if !q.Since.IsZero() {
		args = append(args, q.Since)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if !q.Until.IsZero() {
		args = append(args, q.Until)
		query += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit trail: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(
			&rec.ID, &rec.ActorID, &rec.Action, &rec.TargetType, &rec.TargetID,
			&rec.TenantID, &rec.Detail, &rec.OriginAddress, &rec.RequestID, &rec.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit trail: %w", err)
	}
	return out, nil
}

// LogSink duplicates records into the structured log. Useful alongside a
// database sink when operators want the trail in their log aggregator.
type LogSink struct {
	next Sink
}

// NewLogSink wraps a sink with structured log output. next may be nil,
// in which case the log is the only destination and Read returns nothing.
func NewLogSink(next Sink) *LogSink {
	return &LogSink{next: next}
}

func (s *LogSink) Write(ctx context.Context, rec *Record) error {
	logging.Info().
		Str("event_type", "audit").
		Str("audit_id", rec.ID).
		Str("actor_id", rec.ActorID).
		Str("action", rec.Action).
		Str("target_type", rec.TargetType).
		Str("target_id", rec.TargetID).
		Str("tenant_id", rec.TenantID).
		Str("origin_address", rec.OriginAddress).
		Str("request_id", rec.RequestID).
		Time("audit_timestamp", rec.Timestamp).
		Msg("audit record")

	if s.next == nil {
		return nil
	}
	return s.next.Write(ctx, rec)
}

func (s *LogSink) Read(ctx context.Context, q Query) ([]*Record, error) {
	if s.next == nil {
		return nil, nil
	}
	return s.next.Read(ctx, q)
}
