// Package core defines the ports shared between services and data adapters.
package core

import (
	"context"
	"errors"

	"github.com/assistly/llm-jobs/internal/domain/model"
)

// ErrCursorDone is returned by ExpiredJobCursor.Next once the scan is exhausted.
var ErrCursorDone = errors.New("cursor done")

// CreateJobParams holds the fields supplied when a job record is created at
// submission time. JobID is the identifier assigned by the completion provider.
type CreateJobParams struct {
	JobID         string
	Type          model.JobType
	Status        model.JobStatus
	Invoker       model.Invoker
	Request       model.RequestStats
	AuxiliaryData map[string]any
	VectorStats   *model.VectorStats
	Logs          []string

	// RetentionDays overrides the store's default retention window when > 0.
	RetentionDays int
}

// UpdateJobParams describes a partial mutation of a job record.
//
// Status is applied when non-empty. Result, Error, LLMCharacters and
// VectorStats are deep-replaced when non-nil. AuxiliaryData is merged into the
// existing map, never replaced. AppendWebhookIDs are unioned into the
// idempotency ledger. UpdatedAt is always bumped by the store.
type UpdateJobParams struct {
	Status           model.JobStatus
	Result           *model.JobResult
	Error            *model.JobError
	ClearError       bool
	LLMCharacters    *model.LLMCharacters
	VectorStats      *model.VectorStats
	AuxiliaryData    map[string]any
	AppendWebhookIDs []string
	AppendLogs       []string
}

// ExpiredJobCursor is a lazy, finite, non-restartable sequence of expired job
// records produced by a single ListExpired invocation.
type ExpiredJobCursor interface {
	// Next returns the next expired record, or ErrCursorDone once exhausted.
	Next(ctx context.Context) (*model.JobRecord, error)
}

// JobStore is the persistence contract for job records. Records are exclusively
// owned by the store; callers mutate them only through Update.
type JobStore interface {
	Create(ctx context.Context, params CreateJobParams) (*model.JobRecord, error)
	Get(ctx context.Context, jobID string) (*model.JobRecord, error)
	Update(ctx context.Context, jobID string, params UpdateJobParams) (*model.JobRecord, error)
	ListExpired(ctx context.Context) ExpiredJobCursor
	Delete(ctx context.Context, jobID string) error
}

// SecretSource resolves the shared secret used to authenticate inbound
// callbacks. Modeled as an explicit capability rather than ambient state so the
// webhook handler can be tested without process-wide configuration.
type SecretSource interface {
	WebhookSecret(ctx context.Context) (string, error)
}

// SecretSourceFunc adapts a function to the SecretSource interface.
type SecretSourceFunc func(ctx context.Context) (string, error)

// WebhookSecret implements the SecretSource interface.
func (f SecretSourceFunc) WebhookSecret(ctx context.Context) (string, error) {
	return f(ctx)
}
