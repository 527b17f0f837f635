package data

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/assistly/llm-jobs/internal/core"
	"github.com/assistly/llm-jobs/internal/domain/model"
	apperrors "github.com/assistly/llm-jobs/internal/errors"
)

// MemoryJobStore implements core.JobStore in process memory. It backs local
// development and unit tests; production deployments use the Redis or
// Postgres store.
type MemoryJobStore struct {
	retention    int
	timeProvider TimeProvider

	mu      sync.RWMutex
	records map[string]*model.JobRecord
}

var _ core.JobStore = (*MemoryJobStore)(nil)

// NewMemoryJobStore creates an empty in-memory store.
func NewMemoryJobStore(cfg JobStoreConfig) *MemoryJobStore {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	retention := cfg.RetentionDays
	if retention <= 0 {
		retention = model.DefaultRetentionDays
	}
	return &MemoryJobStore{
		retention:    retention,
		timeProvider: tp,
		records:      make(map[string]*model.JobRecord),
	}
}

// Create persists a new job record and returns a copy of it.
func (s *MemoryJobStore) Create(_ context.Context, params core.CreateJobParams) (*model.JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[params.JobID]; exists {
		return nil, apperrors.Conflict(fmt.Sprintf("job %s already tracked", params.JobID))
	}

	rec := newJobRecord(params, s.timeProvider.Now().UTC(), s.retention)
	s.records[rec.ID] = rec
	return cloneRecord(rec)
}

// Get returns a copy of the record, or ErrJobNotFound.
func (s *MemoryJobStore) Get(_ context.Context, jobID string) (*model.JobRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	return cloneRecord(rec)
}

// Update merges the partial fields into the stored record, synthesizing a
// shell when the record is absent.
func (s *MemoryJobStore) Update(_ context.Context, jobID string, params core.UpdateJobParams) (*model.JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.timeProvider.Now().UTC()
	rec, ok := s.records[jobID]
	if !ok {
		rec = shellJobRecord(jobID, now, s.retention)
		s.records[jobID] = rec
	}
	applyUpdate(rec, params, now)
	return cloneRecord(rec)
}

// Delete removes a record. Deleting an absent record is a no-op.
func (s *MemoryJobStore) Delete(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, jobID)
	return nil
}

// ListExpired returns a cursor over a snapshot of records whose retention
// deadline has passed.
func (s *MemoryJobStore) ListExpired(_ context.Context) core.ExpiredJobCursor {
	cutoff := s.timeProvider.Now().UTC()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var expired []*model.JobRecord
	for _, rec := range s.records {
		if !rec.ExpiresAt.After(cutoff) {
			cp, err := cloneRecord(rec)
			if err != nil {
				continue
			}
			expired = append(expired, cp)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].ID < expired[j].ID })

	return &sliceCursor{records: expired}
}

type sliceCursor struct {
	records []*model.JobRecord
}

func (c *sliceCursor) Next(_ context.Context) (*model.JobRecord, error) {
	if len(c.records) == 0 {
		return nil, core.ErrCursorDone
	}
	rec := c.records[0]
	c.records = c.records[1:]
	return rec, nil
}

// cloneRecord deep-copies a record through its JSON form so callers can never
// reach into store-owned state.
func cloneRecord(rec *model.JobRecord) (*model.JobRecord, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("clone job record %s: %w", rec.ID, err)
	}
	var out model.JobRecord
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("clone job record %s: %w", rec.ID, err)
	}
	return &out, nil
}
