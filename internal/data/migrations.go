package data

import (
	"context"
	"database/sql"
	"fmt"
)

// jobsSchema creates the job document table. The record itself is a JSON
// document; expires_at and version are lifted into columns for the retention
// scan and conditional writes.
const jobsSchema = `
CREATE TABLE IF NOT EXISTS llm_jobs (
    id         text PRIMARY KEY,
    doc        jsonb NOT NULL,
    expires_at timestamptz NOT NULL,
    version    bigint NOT NULL DEFAULT 1,
    created_at timestamptz NOT NULL DEFAULT now(),
    updated_at timestamptz NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS llm_jobs_expires_at_idx ON llm_jobs (expires_at, id);
`

// EnsureSchema applies the job table schema. Safe to run repeatedly.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, jobsSchema); err != nil {
		return fmt.Errorf("apply llm_jobs schema: %w", err)
	}
	return nil
}
