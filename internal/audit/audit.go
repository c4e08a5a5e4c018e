// Competo - Multi-Tenant Competency Assessment Platform
// Copyright 2026 Competo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/competo/competo

package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/competo/competo/internal/logging"
	"github.com/competo/competo/internal/metrics"
)

// Record is one entry in the audit trail.
type Record struct {
	ID string `json:"id"`

	// ActorID is the subject that performed the action. "anonymous"
	// for unauthenticated security events.
	ActorID string `json:"actor_id"`

	// Action names what happened, e.g. "approval.approve".
	Action string `json:"action"`

	// TargetType and TargetID identify what was acted on.
	TargetType string `json:"target_type,omitempty"`
	TargetID   string `json:"target_id,omitempty"`

	// TenantID scopes the record for tenant-filtered queries.
	TenantID string `json:"tenant_id,omitempty"`

	// Detail carries action-specific context, already sanitized.
	Detail string `json:"detail,omitempty"`

	// OriginAddress is the client address the action came from.
	OriginAddress string `json:"origin_address,omitempty"`

	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Query filters trail reads. Zero-value fields match everything.
type Query struct {
	ActorID  string
	Action   string
	TenantID string
	Since    time.Time
	Until    time.Time
	Limit    int
}

// Sink persists audit records.
type Sink interface {
	Write(ctx context.Context, rec *Record) error
	Read(ctx context.Context, q Query) ([]*Record, error)
}

// Recorder buffers records and writes them to a sink from a background
// worker. Close drains the buffer before returning.
type Recorder struct {
	sink     Sink
	records  chan *Record
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	enabled  bool
}

const defaultBufferSize = 1000

// NewRecorder starts a recorder over the given sink. A nil sink or
// enabled=false yields a no-op recorder.
func NewRecorder(sink Sink, bufferSize int, enabled bool) *Recorder {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}

	r := &Recorder{
		sink:     sink,
		records:  make(chan *Record, bufferSize),
		stopChan: make(chan struct{}),
		enabled:  enabled && sink != nil,
	}

	if r.enabled {
		r.wg.Add(1)
		go r.processRecords()
	}
	return r
}

// Record queues an audit record. Non-blocking: if the buffer is full the
// record is dropped and counted, never stalling the caller.
func (r *Recorder) Record(rec *Record) {
	if r == nil || !r.enabled {
		return
	}

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	select {
	case r.records <- rec:
	default:
		metrics.AuditRecordsDropped.Inc()
		logging.Warn().
			Str("actor_id", rec.ActorID).
			Str("action", rec.Action).
			Msg("audit buffer full, record dropped")
	}
}

// Read queries the trail through the sink.
func (r *Recorder) Read(ctx context.Context, q Query) ([]*Record, error) {
	if r == nil || r.sink == nil {
		return nil, nil
	}
	return r.sink.Read(ctx, q)
}

// Close stops the worker after draining buffered records.
func (r *Recorder) Close() {
	if r == nil || !r.enabled {
		return
	}
	r.stopOnce.Do(func() {
		close(r.stopChan)
	})
	r.wg.Wait()
}

func (r *Recorder) processRecords() {
	defer r.wg.Done()

	for {
		select {
		case <-r.stopChan:
			r.drain()
			return
		case rec := <-r.records:
			r.write(rec)
		}
	}
}

func (r *Recorder) drain() {
	for {
		select {
		case rec := <-r.records:
			r.write(rec)
		default:
			return
		}
	}
}

// write persists one record. Failure is degraded mode, not an error the
// caller sees: log it, count it, move on.
func (r *Recorder) write(rec *Record) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.sink.Write(ctx, rec); err != nil {
		metrics.AuditWriteFailures.Inc()
		logging.Err(err).
			Str("audit_id", rec.ID).
			Str("actor_id", rec.ActorID).
			Str("action", rec.Action).
			Msg("audit write failed, trail degraded")
	}
}
