package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	apperrors "github.com/assistly/llm-jobs/internal/errors"

	"github.com/assistly/llm-jobs/internal/core"
	"github.com/assistly/llm-jobs/internal/domain/model"
)

// maxUpdateRetries bounds the conditional-write retry loop. Two writers per
// job is the practical ceiling, so conflicts resolve within a retry or two.
const maxUpdateRetries = 5

// PostgresJobStore implements core.JobStore on PostgreSQL.
//
// Unlike the Redis store's relaxed read-modify-write, updates here use a
// version-stamped conditional write and retry on conflict, which removes the
// lost-update window without changing the external contract.
type PostgresJobStore struct {
	db           *sql.DB
	retention    int
	scanCount    int
	timeProvider TimeProvider
	logger       *slog.Logger
}

var _ core.JobStore = (*PostgresJobStore)(nil)

// NewPostgresJobStore creates a PostgresJobStore with the given connection and configuration.
func NewPostgresJobStore(db *sql.DB, cfg JobStoreConfig) *PostgresJobStore {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	retention := cfg.RetentionDays
	if retention <= 0 {
		retention = model.DefaultRetentionDays
	}
	scanCount := cfg.ScanCount
	if scanCount <= 0 {
		scanCount = defaultScanCount
	}

	return &PostgresJobStore{
		db:           db,
		retention:    retention,
		scanCount:    scanCount,
		timeProvider: tp,
		logger:       cfg.Logger,
	}
}

// Create persists a new job record and returns it.
func (s *PostgresJobStore) Create(ctx context.Context, params core.CreateJobParams) (*model.JobRecord, error) {
	if strings.TrimSpace(params.JobID) == "" {
		return nil, errors.New("job id is required")
	}

	rec := newJobRecord(params, s.timeProvider.Now().UTC(), s.retention)
	doc, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode job record %s: %w", rec.ID, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO llm_jobs (id, doc, expires_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $4)`,
		rec.ID, doc, rec.ExpiresAt, rec.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, apperrors.Wrapf(err, apperrors.ErrCodeConflict, "job %s already tracked", rec.ID)
		}
		return nil, fmt.Errorf("insert job record: %w", err)
	}

	if s.logger != nil {
		s.logger.DebugContext(ctx, "job record created", "id", rec.ID, "type", rec.Type, "expires_at", rec.ExpiresAt)
	}
	return rec, nil
}

// Get loads a job record, returning ErrJobNotFound when the row is absent.
func (s *PostgresJobStore) Get(ctx context.Context, jobID string) (*model.JobRecord, error) {
	rec, _, err := s.load(ctx, jobID)
	return rec, err
}

func (s *PostgresJobStore) load(ctx context.Context, jobID string) (*model.JobRecord, int64, error) {
	var (
		doc     []byte
		version int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT doc, version FROM llm_jobs WHERE id = $1`, jobID,
	).Scan(&doc, &version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, ErrJobNotFound
		}
		return nil, 0, fmt.Errorf("select job record: %w", err)
	}

	var rec model.JobRecord
	if err := json.Unmarshal(doc, &rec); err != nil {
		return nil, 0, fmt.Errorf("decode job record %s: %w", jobID, err)
	}
	return &rec, version, nil
}

// Update merges the partial fields into the stored record using a conditional
// write keyed on the row version, retrying on concurrent modification. A
// missing row is tolerated by synthesizing a minimal shell, to cover updates
// racing record creation.
func (s *PostgresJobStore) Update(ctx context.Context, jobID string, params core.UpdateJobParams) (*model.JobRecord, error) {
	for attempt := 0; attempt < maxUpdateRetries; attempt++ {
		now := s.timeProvider.Now().UTC()

		rec, version, err := s.load(ctx, jobID)
		switch {
		case errors.Is(err, ErrJobNotFound):
			shell := shellJobRecord(jobID, now, s.retention)
			applyUpdate(shell, params, now)
			inserted, insErr := s.insertShell(ctx, shell)
			if insErr != nil {
				return nil, insErr
			}
			if inserted {
				return shell, nil
			}
			// Lost the creation race; reload and merge into the winner's row.
			continue
		case err != nil:
			return nil, err
		}

		applyUpdate(rec, params, now)
		doc, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("encode job record %s: %w", jobID, err)
		}

		res, err := s.db.ExecContext(ctx,
			`UPDATE llm_jobs
			 SET doc = $2, version = version + 1, updated_at = $3
			 WHERE id = $1 AND version = $4`,
			jobID, doc, now, version,
		)
		if err != nil {
			return nil, fmt.Errorf("update job record: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("update job record rows: %w", err)
		}
		if affected == 1 {
			return rec, nil
		}
		// Version moved underneath us; retry against the fresh row.
	}

	return nil, fmt.Errorf("update job %s: too many concurrent modifications", jobID)
}

func (s *PostgresJobStore) insertShell(ctx context.Context, rec *model.JobRecord) (bool, error) {
	doc, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("encode job record %s: %w", rec.ID, err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO llm_jobs (id, doc, expires_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO NOTHING`,
		rec.ID, doc, rec.ExpiresAt, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert job shell: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert job shell rows: %w", err)
	}
	return affected == 1, nil
}

// Delete removes a job record. Deleting an absent row is a no-op.
func (s *PostgresJobStore) Delete(ctx context.Context, jobID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM llm_jobs WHERE id = $1`, jobID); err != nil {
		return fmt.Errorf("delete job record: %w", err)
	}
	return nil
}

// ListExpired returns a keyset-paginated cursor over records whose retention
// deadline has passed. The cursor is lazy, finite, and not restartable.
func (s *PostgresJobStore) ListExpired(ctx context.Context) core.ExpiredJobCursor {
	return &postgresExpiredCursor{
		store:  s,
		cutoff: s.timeProvider.Now().UTC(),
	}
}

type postgresExpiredCursor struct {
	store       *PostgresJobStore
	cutoff      time.Time
	lastExpires time.Time
	lastID      string
	pending     []*model.JobRecord
	started     bool
	done        bool
}

// Next returns the next expired record, or core.ErrCursorDone once the keyset
// scan is exhausted.
func (c *postgresExpiredCursor) Next(ctx context.Context) (*model.JobRecord, error) {
	for len(c.pending) == 0 {
		if c.done {
			return nil, core.ErrCursorDone
		}
		if err := c.fetchPage(ctx); err != nil {
			return nil, err
		}
	}

	rec := c.pending[0]
	c.pending = c.pending[1:]
	return rec, nil
}

func (c *postgresExpiredCursor) fetchPage(ctx context.Context) error {
	query := `SELECT doc, expires_at FROM llm_jobs
		 WHERE expires_at <= $1
		 ORDER BY expires_at, id
		 LIMIT $2`
	args := []any{c.cutoff, c.store.scanCount}
	if c.started {
		query = `SELECT doc, expires_at FROM llm_jobs
		 WHERE expires_at <= $1 AND (expires_at, id) > ($3, $4)
		 ORDER BY expires_at, id
		 LIMIT $2`
		args = append(args, c.lastExpires, c.lastID)
	}

	rows, err := c.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("scan expired jobs: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only cursor

	var page []*model.JobRecord
	for rows.Next() {
		var (
			doc       []byte
			expiresAt time.Time
		)
		if err := rows.Scan(&doc, &expiresAt); err != nil {
			return fmt.Errorf("scan expired job row: %w", err)
		}
		var rec model.JobRecord
		if err := json.Unmarshal(doc, &rec); err != nil {
			return fmt.Errorf("decode job record: %w", err)
		}
		page = append(page, &rec)
		c.lastExpires = expiresAt
		c.lastID = rec.ID
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("scan expired jobs: %w", err)
	}

	c.started = true
	c.pending = page
	if len(page) < c.store.scanCount {
		c.done = true
	}
	return nil
}
