package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/assistly/llm-jobs/internal/core"
	"github.com/assistly/llm-jobs/internal/domain/model"
)

const (
	defaultJobKeyPrefix = "llmjobs:job:"
	defaultScanCount    = 100
)

// JobStoreConfig holds configuration options shared by job store implementations.
type JobStoreConfig struct {
	// RetentionDays is the default retention window applied at creation.
	RetentionDays int
	// KeyPrefix namespaces job keys (Redis store only).
	KeyPrefix string
	// ScanCount is the page size for expired-record scans.
	ScanCount int
	Logger    *slog.Logger
	// TimeProvider overrides the clock for testing.
	TimeProvider TimeProvider
}

// RedisJobStore implements core.JobStore on Redis. Records are JSON documents
// under a namespaced key per job.
//
// Updates are read-modify-write with no transactional isolation: concurrent
// updates to the same job can lose writes. At most one completion callback and
// one cancellation are expected per job, and both paths are idempotent at the
// semantic level, so the window is accepted.
type RedisJobStore struct {
	client       redis.UniversalClient
	keyPrefix    string
	retention    int
	scanCount    int
	timeProvider TimeProvider
	logger       *slog.Logger
}

var _ core.JobStore = (*RedisJobStore)(nil)

// NewRedisJobStore creates a RedisJobStore with the given client and configuration.
func NewRedisJobStore(client redis.UniversalClient, cfg JobStoreConfig) *RedisJobStore {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = defaultJobKeyPrefix
	}
	scanCount := cfg.ScanCount
	if scanCount <= 0 {
		scanCount = defaultScanCount
	}
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	retention := cfg.RetentionDays
	if retention <= 0 {
		retention = model.DefaultRetentionDays
	}

	return &RedisJobStore{
		client:       client,
		keyPrefix:    prefix,
		retention:    retention,
		scanCount:    scanCount,
		timeProvider: tp,
		logger:       cfg.Logger,
	}
}

func (s *RedisJobStore) key(jobID string) string {
	return s.keyPrefix + jobID
}

// Create persists a new job record and returns it.
func (s *RedisJobStore) Create(ctx context.Context, params core.CreateJobParams) (*model.JobRecord, error) {
	if strings.TrimSpace(params.JobID) == "" {
		return nil, errors.New("job id is required")
	}

	rec := newJobRecord(params, s.timeProvider.Now().UTC(), s.retention)
	if err := s.persist(ctx, rec); err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.DebugContext(ctx, "job record created", "id", rec.ID, "type", rec.Type, "expires_at", rec.ExpiresAt)
	}
	return rec, nil
}

// Get loads a job record, returning ErrJobNotFound when the key is absent.
func (s *RedisJobStore) Get(ctx context.Context, jobID string) (*model.JobRecord, error) {
	raw, err := s.client.Get(ctx, s.key(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("redis get job: %w", err)
	}

	var rec model.JobRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode job record %s: %w", jobID, err)
	}
	return &rec, nil
}

// Update loads the existing record (synthesizing a minimal shell when absent),
// merges the partial fields, bumps UpdatedAt, and persists.
func (s *RedisJobStore) Update(ctx context.Context, jobID string, params core.UpdateJobParams) (*model.JobRecord, error) {
	now := s.timeProvider.Now().UTC()

	rec, err := s.Get(ctx, jobID)
	switch {
	case errors.Is(err, ErrJobNotFound):
		rec = shellJobRecord(jobID, now, s.retention)
	case err != nil:
		return nil, err
	}

	applyUpdate(rec, params, now)
	if err := s.persist(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Delete removes a job record. Deleting an absent key is a no-op.
func (s *RedisJobStore) Delete(ctx context.Context, jobID string) error {
	if err := s.client.Del(ctx, s.key(jobID)).Err(); err != nil {
		return fmt.Errorf("redis delete job: %w", err)
	}
	return nil
}

// ListExpired returns a cursor over records whose retention deadline has
// passed. The cursor is lazy, finite, and not restartable.
func (s *RedisJobStore) ListExpired(ctx context.Context) core.ExpiredJobCursor {
	return &redisExpiredCursor{
		store:  s,
		cutoff: s.timeProvider.Now().UTC(),
		match:  s.keyPrefix + "*",
	}
}

func (s *RedisJobStore) persist(ctx context.Context, rec *model.JobRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode job record %s: %w", rec.ID, err)
	}
	// Records carry their own ExpiresAt and are pruned by the retention sweep,
	// so no Redis TTL is set here.
	if err := s.client.Set(ctx, s.key(rec.ID), raw, 0).Err(); err != nil {
		return fmt.Errorf("redis set job: %w", err)
	}
	return nil
}

// redisExpiredCursor walks the job namespace with SCAN, yielding expired
// records one at a time. The expiry cutoff is fixed at cursor creation.
type redisExpiredCursor struct {
	store   *RedisJobStore
	cutoff  time.Time
	match   string
	cursor  uint64
	pending []string
	done    bool
}

// Next returns the next expired record, or core.ErrCursorDone once the
// namespace scan is exhausted.
func (c *redisExpiredCursor) Next(ctx context.Context) (*model.JobRecord, error) {
	for {
		if len(c.pending) == 0 {
			if c.done {
				return nil, core.ErrCursorDone
			}
			if err := c.fetchPage(ctx); err != nil {
				return nil, err
			}
			continue
		}

		key := c.pending[0]
		c.pending = c.pending[1:]

		rec, err := c.load(ctx, key)
		if err != nil {
			return nil, err
		}
		// Keys can disappear between the scan and the fetch.
		if rec == nil {
			continue
		}
		if rec.ExpiresAt.IsZero() || rec.ExpiresAt.After(c.cutoff) {
			continue
		}
		return rec, nil
	}
}

func (c *redisExpiredCursor) fetchPage(ctx context.Context) error {
	keys, next, err := c.store.client.Scan(ctx, c.cursor, c.match, int64(c.store.scanCount)).Result()
	if err != nil {
		return fmt.Errorf("redis scan jobs: %w", err)
	}
	c.pending = keys
	c.cursor = next
	if next == 0 {
		c.done = true
	}
	return nil
}

func (c *redisExpiredCursor) load(ctx context.Context, key string) (*model.JobRecord, error) {
	raw, err := c.store.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get job: %w", err)
	}
	var rec model.JobRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode job record %s: %w", key, err)
	}
	return &rec, nil
}
