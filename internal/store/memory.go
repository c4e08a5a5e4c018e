// Competo - Multi-Tenant Competency Assessment Platform
// Copyright 2026 Competo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/competo/competo

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/competo/competo/internal/models"
)

// MemoryStore is an in-process Store used by tests and development mode.
// All methods are safe for concurrent use.
type MemoryStore struct {
	mu         sync.RWMutex
	principals map[string]*models.Principal
	approvals  map[string]*models.ApprovalRequest
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		principals: make(map[string]*models.Principal),
		approvals:  make(map[string]*models.ApprovalRequest),
	}
}

func (s *MemoryStore) GetPrincipal(_ context.Context, subjectID string) (*models.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.principals[subjectID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) CreatePrincipal(_ context.Context, p *models.Principal) error {
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.principals[p.SubjectID]; exists {
		return ErrConflict
	}
	cp := *p
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.principals[p.SubjectID] = &cp
	return nil
}

func (s *MemoryStore) UpdateApproval(_ context.Context, subjectID, approvedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.principals[subjectID]
	if !ok {
		return ErrNotFound
	}
	now := time.Now()
	p.Approved = true
	p.ApprovedBy = approvedBy
	p.ApprovedAt = &now
	return nil
}

func (s *MemoryStore) TombstonePrincipal(_ context.Context, subjectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.principals[subjectID]
	if !ok {
		return ErrNotFound
	}
	if p.DeletedAt != nil {
		return ErrConflict
	}
	now := time.Now()
	p.DeletedAt = &now
	return nil
}

func (s *MemoryStore) TombstoneTenant(_ context.Context, tenantID string) (int, error) {
	if tenantID == "" {
		return 0, ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	n := 0
	for _, p := range s.principals {
		if p.TenantID == tenantID && p.DeletedAt == nil {
			p.DeletedAt = &now
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) ListTenants(_ context.Context) ([]*TenantSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, p := range s.principals {
		if p.TenantID != "" && p.DeletedAt == nil {
			counts[p.TenantID]++
		}
	}

	out := make([]*TenantSummary, 0, len(counts))
	for id, n := range counts {
		out = append(out, &TenantSummary{TenantID: id, Principals: n})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].TenantID < out[j].TenantID
	})
	return out, nil
}

func (s *MemoryStore) CreateRequest(_ context.Context, req *models.ApprovalRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.approvals[req.ID]; exists {
		return ErrConflict
	}
	cp := *req
	if cp.RequestedAt.IsZero() {
		cp.RequestedAt = time.Now()
	}
	if cp.Outcome == "" {
		cp.Outcome = models.OutcomePending
	}
	s.approvals[req.ID] = &cp
	return nil
}

func (s *MemoryStore) GetRequest(_ context.Context, id string) (*models.ApprovalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.approvals[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *req
	return &cp, nil
}

func (s *MemoryStore) DecideRequest(_ context.Context, id, decidedBy string, outcome models.ApprovalOutcome, reason string) error {
	if !outcome.Terminal() {
		return ErrConflict
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.approvals[id]
	if !ok {
		return ErrNotFound
	}
	if req.Outcome.Terminal() {
		return ErrConflict
	}
	now := time.Now()
	req.Outcome = outcome
	req.DecidedBy = decidedBy
	req.DecidedAt = &now
	req.Reason = reason
	return nil
}

func (s *MemoryStore) ListPending(_ context.Context, tenantID string) ([]*models.ApprovalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.ApprovalRequest
	for _, req := range s.approvals {
		if req.Outcome != models.OutcomePending {
			continue
		}
		if tenantID != "" && req.TenantID != tenantID {
			continue
		}
		cp := *req
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RequestedAt.Before(out[j].RequestedAt)
	})
	return out, nil
}

func (s *MemoryStore) ListBySubject(_ context.Context, subjectID string) ([]*models.ApprovalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.ApprovalRequest
	for _, req := range s.approvals {
		if req.TargetSubjectID != subjectID {
			continue
		}
		cp := *req
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RequestedAt.After(out[j].RequestedAt)
	})
	return out, nil
}
