// Package service implements the job lifecycle workflows on top of the store,
// provider client and notification fan-out.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/assistly/llm-jobs/internal/core"
	"github.com/assistly/llm-jobs/internal/data"
	"github.com/assistly/llm-jobs/internal/domain/model"
	apperrors "github.com/assistly/llm-jobs/internal/errors"
	"github.com/assistly/llm-jobs/internal/observability/metrics"
	"github.com/assistly/llm-jobs/internal/observability/notify"
	"github.com/assistly/llm-jobs/internal/observability/statsd"
	"github.com/assistly/llm-jobs/internal/provider"
)

// LifecycleNotifier publishes events for settled jobs.
type LifecycleNotifier interface {
	NotifyJobLifecycle(ctx context.Context, event notify.JobLifecycleEvent)
}

// JobServiceOptions groups dependencies for JobService.
type JobServiceOptions struct {
	Store    core.JobStore   // Required: job record persistence
	Provider provider.Client // Required: completion provider client
	Notifier LifecycleNotifier
	Logger   *slog.Logger
	Metrics  statsd.Sink
}

// JobService tracks provider jobs through their lifecycle: registration at
// submission time, status queries, and cancellation racing completion.
type JobService struct {
	store    core.JobStore
	provider provider.Client
	notifier LifecycleNotifier
	logger   *slog.Logger
	metrics  statsd.Sink
}

// NewJobService constructs a JobService.
func NewJobService(opts JobServiceOptions) (*JobService, error) {
	if opts.Store == nil {
		return nil, errors.New("JobStore is required")
	}
	if opts.Provider == nil {
		return nil, errors.New("provider client is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &JobService{
		store:    opts.Store,
		provider: opts.Provider,
		notifier: opts.Notifier,
		logger:   logger.With("component", "job_service"),
		metrics:  opts.Metrics,
	}, nil
}

// Create registers a freshly submitted provider job for tracking.
func (s *JobService) Create(ctx context.Context, params core.CreateJobParams) (*model.JobRecord, error) {
	if strings.TrimSpace(params.JobID) == "" {
		return nil, apperrors.Validation("job id is required")
	}
	if !params.Type.Valid() {
		return nil, apperrors.Validationf("unknown job type %q", params.Type)
	}

	rec, err := s.store.Create(ctx, params)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "job tracked",
		"job_id", rec.ID,
		"job_type", rec.Type,
		"tenant_id", rec.Invoker.TenantID,
		"expires_at", rec.ExpiresAt,
	)
	if s.metrics != nil {
		s.metrics.Count("job.created", 1, map[string]string{"job_type": string(rec.Type)})
	}

	return rec.Sanitized(), nil
}

// Status returns the current record for a tracked job with the idempotency
// ledger stripped.
func (s *JobService) Status(ctx context.Context, jobID string) (*model.JobRecord, error) {
	rec, err := s.store.Get(ctx, jobID)
	if errors.Is(err, data.ErrJobNotFound) {
		return nil, apperrors.NotFoundf("job %s is not tracked", jobID)
	}
	if err != nil {
		return nil, err
	}
	return rec.Sanitized(), nil
}

// CancelOutcome reports the result of a cancellation request.
type CancelOutcome struct {
	Job *model.JobRecord
	// AlreadySettled is true when the job was terminal before the request;
	// the record is returned unchanged and the provider is not called.
	AlreadySettled bool
}

// Cancel requests termination of an in-flight job. A job that already reached
// a terminal status is returned as-is: the caller lost the race against the
// completion callback and the settled outcome stands.
func (s *JobService) Cancel(ctx context.Context, jobID string) (*CancelOutcome, error) {
	rec, err := s.store.Get(ctx, jobID)
	if errors.Is(err, data.ErrJobNotFound) {
		return nil, apperrors.NotFoundf("job %s is not tracked", jobID)
	}
	if err != nil {
		return nil, err
	}

	if rec.Status.Terminal() {
		s.logger.InfoContext(ctx, "cancel requested for settled job",
			"job_id", rec.ID, "status", rec.Status)
		return &CancelOutcome{Job: rec.Sanitized(), AlreadySettled: true}, nil
	}

	// Best effort upstream: the caller asked for termination, so the record
	// reflects that intent even when the provider call fails.
	if err := s.provider.CancelJob(ctx, jobID); err != nil {
		s.logger.ErrorContext(ctx, "provider cancel failed",
			"job_id", jobID, "error", err)
	}

	updated, err := s.store.Update(ctx, jobID, core.UpdateJobParams{
		Status: model.JobStatusCancelled,
		Error:  &model.JobError{Code: model.ReasonCancelledByUser, Message: "cancelled on user request"},
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "job cancelled", "job_id", updated.ID, "job_type", updated.Type)
	metrics.EmitJobTransition(s.metrics, metrics.JobMetric{
		JobType:    string(updated.Type),
		Transition: "cancel",
		Result:     metrics.ResultSuccess,
		Reason:     model.ReasonCancelledByUser,
	})
	if s.notifier != nil {
		s.notifier.NotifyJobLifecycle(ctx, notify.NewJobLifecycleEvent(updated, notify.OutcomeCancelled, time.Now()))
	}

	return &CancelOutcome{Job: updated.Sanitized()}, nil
}
