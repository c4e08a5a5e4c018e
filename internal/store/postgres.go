// Competo - Multi-Tenant Competency Assessment Platform
// Copyright 2026 Competo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/competo/competo

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	// Registers the pgx stdlib driver.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/competo/competo/internal/config"
	"github.com/competo/competo/internal/models"
)

// PostgresStore persists principals and approval requests in PostgreSQL
// through the pgx stdlib driver.
type PostgresStore struct {
	db *sql.DB
}

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, cfg *config.DatabaseConfig) (*PostgresStore, error) {
	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStore wraps an existing connection pool. Used by tests.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Ping reports connection health for readiness checks.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// DB exposes the underlying pool so callers can share it with other
// persistence layers, such as the audit sink.
func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) GetPrincipal(ctx context.Context, subjectID string) (*models.Principal, error) {
	const q = `
		SELECT subject_id, role, tenant_id, approved, approved_by, approved_at, created_at, deleted_at
		FROM principals
		WHERE subject_id = $1`

	var (
		p          models.Principal
		role       string
		tenantID   sql.NullString
		approvedBy sql.NullString
		approvedAt sql.NullTime
		deletedAt  sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, q, subjectID).Scan(
		&p.SubjectID, &role, &tenantID, &p.Approved, &approvedBy, &approvedAt, &p.CreatedAt, &deletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query principal: %w", err)
	}

	p.Role = models.Role(role)
	p.TenantID = tenantID.String
	p.ApprovedBy = approvedBy.String
	if approvedAt.Valid {
		t := approvedAt.Time
		p.ApprovedAt = &t
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		p.DeletedAt = &t
	}
	return &p, nil
}

func (s *PostgresStore) CreatePrincipal(ctx context.Context, p *models.Principal) error {
	if err := p.Validate(); err != nil {
		return err
	}

	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	const q = `
		INSERT INTO principals (subject_id, role, tenant_id, approved, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (subject_id) DO NOTHING`

	res, err := s.db.ExecContext(ctx, q,
		p.SubjectID, string(p.Role), nullString(p.TenantID), p.Approved, createdAt)
	if err != nil {
		return fmt.Errorf("failed to insert principal: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read insert result: %w", err)
	}
	if rows == 0 {
		return ErrConflict
	}
	return nil
}

func (s *PostgresStore) UpdateApproval(ctx context.Context, subjectID, approvedBy string) error {
	const q = `
		UPDATE principals
		SET approved = TRUE, approved_by = $2, approved_at = $3
		WHERE subject_id = $1 AND deleted_at IS NULL`

	res, err := s.db.ExecContext(ctx, q, subjectID, approvedBy, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update approval: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) TombstonePrincipal(ctx context.Context, subjectID string) error {
	const q = `
		UPDATE principals
		SET deleted_at = $2
		WHERE subject_id = $1 AND deleted_at IS NULL`

	res, err := s.db.ExecContext(ctx, q, subjectID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to tombstone principal: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if rows == 0 {
		// Either missing or already tombstoned.
		if _, lookupErr := s.GetPrincipal(ctx, subjectID); errors.Is(lookupErr, ErrNotFound) {
			return ErrNotFound
		}
		return ErrConflict
	}
	return nil
}

func (s *PostgresStore) TombstoneTenant(ctx context.Context, tenantID string) (int, error) {
	if tenantID == "" {
		return 0, ErrNotFound
	}

	const q = `
		UPDATE principals
		SET deleted_at = $2
		WHERE tenant_id = $1 AND deleted_at IS NULL`

	res, err := s.db.ExecContext(ctx, q, tenantID, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to tombstone tenant: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read update result: %w", err)
	}
	return int(rows), nil
}

func (s *PostgresStore) ListTenants(ctx context.Context) ([]*TenantSummary, error) {
	const q = `
		SELECT tenant_id, COUNT(*)
		FROM principals
		WHERE tenant_id IS NOT NULL AND deleted_at IS NULL
		GROUP BY tenant_id
		ORDER BY tenant_id`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var out []*TenantSummary
	for rows.Next() {
		var t TenantSummary
		if err := rows.Scan(&t.TenantID, &t.Principals); err != nil {
			return nil, fmt.Errorf("failed to scan tenant summary: %w", err)
		}
		out = append(out, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tenants: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CreateRequest(ctx context.Context, req *models.ApprovalRequest) error {
	requestedAt := req.RequestedAt
	if requestedAt.IsZero() {
		requestedAt = time.Now()
	}
	outcome := req.Outcome
	if outcome == "" {
		outcome = models.OutcomePending
	}

	const q = `
		INSERT INTO approval_requests (id, target_subject_id, target_role, tenant_id, requested_at, outcome)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`

	res, err := s.db.ExecContext(ctx, q,
		req.ID, req.TargetSubjectID, string(req.TargetRole), req.TenantID, requestedAt, string(outcome))
	if err != nil {
		return fmt.Errorf("failed to insert approval request: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read insert result: %w", err)
	}
	if rows == 0 {
		return ErrConflict
	}
	return nil
}

func (s *PostgresStore) GetRequest(ctx context.Context, id string) (*models.ApprovalRequest, error) {
	const q = `
		SELECT id, target_subject_id, target_role, tenant_id, requested_at, decided_by, decided_at, outcome, reason
		FROM approval_requests
		WHERE id = $1`

	req, err := scanRequest(s.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query approval request: %w", err)
	}
	return req, nil
}

func (s *PostgresStore) DecideRequest(ctx context.Context, id, decidedBy string, outcome models.ApprovalOutcome, reason string) error {
	if !outcome.Terminal() {
		return ErrConflict
	}

	// The outcome guard in the WHERE clause makes the transition
	// monotonic even under concurrent deciders.
	const q = `
		UPDATE approval_requests
		SET outcome = $2, decided_by = $3, decided_at = $4, reason = $5
		WHERE id = $1 AND outcome = 'pending'`

	res, err := s.db.ExecContext(ctx, q, id, string(outcome), decidedBy, time.Now(), nullString(reason))
	if err != nil {
		return fmt.Errorf("failed to decide approval request: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if rows == 0 {
		if _, lookupErr := s.GetRequest(ctx, id); errors.Is(lookupErr, ErrNotFound) {
			return ErrNotFound
		}
		return ErrConflict
	}
	return nil
}

func (s *PostgresStore) ListPending(ctx context.Context, tenantID string) ([]*models.ApprovalRequest, error) {
	q := `
		SELECT id, target_subject_id, target_role, tenant_id, requested_at, decided_by, decided_at, outcome, reason
		FROM approval_requests
		WHERE outcome = 'pending'`
	args := []interface{}{}
	if tenantID != "" {
		q += " AND tenant_id = $1"
		args = append(args, tenantID)
	}
	q += " ORDER BY requested_at ASC"

	return s.queryRequests(ctx, q, args...)
}

func (s *PostgresStore) ListBySubject(ctx context.Context, subjectID string) ([]*models.ApprovalRequest, error) {
	const q = `
		SELECT id, target_subject_id, target_role, tenant_id, requested_at, decided_by, decided_at, outcome, reason
		FROM approval_requests
		WHERE target_subject_id = $1
		ORDER BY requested_at DESC`

	return s.queryRequests(ctx, q, subjectID)
}

func (s *PostgresStore) queryRequests(ctx context.Context, q string, args ...interface{}) ([]*models.ApprovalRequest, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query approval requests: %w", err)
	}
	defer rows.Close()

	var out []*models.ApprovalRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval request: %w", err)
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate approval requests: %w", err)
	}
	return out, nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRequest(row rowScanner) (*models.ApprovalRequest, error) {
	var (
		req        models.ApprovalRequest
		targetRole string
		outcome    string
		decidedBy  sql.NullString
		decidedAt  sql.NullTime
		reason     sql.NullString
	)
	err := row.Scan(
		&req.ID, &req.TargetSubjectID, &targetRole, &req.TenantID,
		&req.RequestedAt, &decidedBy, &decidedAt, &outcome, &reason,
	)
	if err != nil {
		return nil, err
	}

	req.TargetRole = models.Role(targetRole)
	req.Outcome = models.ApprovalOutcome(outcome)
	req.DecidedBy = decidedBy.String
	req.Reason = reason.String
	if decidedAt.Valid {
		t := decidedAt.Time
		req.DecidedAt = &t
	}
	return &req, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
