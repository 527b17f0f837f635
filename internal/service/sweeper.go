package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/assistly/llm-jobs/config"
	"github.com/assistly/llm-jobs/internal/core"
	obserrors "github.com/assistly/llm-jobs/internal/observability/errors"
	"github.com/assistly/llm-jobs/internal/observability/metrics"
	"github.com/assistly/llm-jobs/internal/observability/statsd"
)

// SweeperServiceOptions groups dependencies for SweeperService.
type SweeperServiceOptions struct {
	Store   core.JobStore        // Required: job record persistence
	Config  config.SweeperConfig // Required: sweep interval
	Logger  *slog.Logger         // Optional: structured logger
	Metrics statsd.Sink          // Optional: metrics sink (StatsD-compatible)
}

// SweeperService prunes job records whose retention window has passed.
// Records are only ever deleted whole; a record that fails to delete is
// retried on the next sweep.
type SweeperService struct {
	store   core.JobStore
	config  config.SweeperConfig
	logger  *slog.Logger
	metrics statsd.Sink
}

// NewSweeperService constructs a SweeperService.
func NewSweeperService(opts SweeperServiceOptions) (*SweeperService, error) {
	if opts.Store == nil {
		return nil, errors.New("JobStore is required")
	}

	logger := opts.Logger
	if logger != nil {
		logger = logger.With("component", "sweeper_service")
	} else {
		logger = slog.Default().With("component", "sweeper_service")
	}

	return &SweeperService{
		store:   opts.Store,
		config:  opts.Config,
		logger:  logger,
		metrics: opts.Metrics,
	}, nil
}

// RunOnce performs a single sweep and returns the number of records pruned.
// Per-record deletion failures are logged and skipped, never fail the run:
// the record survives and the next sweep retries it. Only a broken scan or
// context cancellation aborts the sweep with an error.
func (s *SweeperService) RunOnce(ctx context.Context) (int64, error) {
	started := time.Now()

	var pruned, failed int64
	var runErr error
	cursor := s.store.ListExpired(ctx)
	for {
		rec, err := cursor.Next(ctx)
		if errors.Is(err, core.ErrCursorDone) {
			break
		}
		if err != nil {
			runErr = err
			break
		}

		if err := s.store.Delete(ctx, rec.ID); err != nil {
			if isContextCancellation(err) {
				runErr = err
				break
			}
			s.logger.ErrorContext(ctx, "failed to prune expired job", "job_id", rec.ID, "error", err)
			failed++
			continue
		}
		pruned++
		s.logger.DebugContext(ctx, "pruned expired job", "job_id", rec.ID, "expired_at", rec.ExpiresAt)
	}

	s.emitSweepMetrics(pruned, failed, time.Since(started), runErr)

	if pruned > 0 || failed > 0 {
		s.logger.InfoContext(ctx, "retention sweep finished", "pruned", pruned, "failed", failed)
	}
	if runErr != nil {
		return pruned, fmt.Errorf("retention sweep: %w", runErr)
	}
	return pruned, nil
}

// Run starts the sweep loop and runs until the context is cancelled.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *SweeperService) Run(ctx context.Context) error {
	interval := s.config.Interval
	if interval <= 0 {
		interval = config.DefaultSweepInterval
	}
	s.logger.InfoContext(ctx, "starting sweeper service", "interval", interval)

	// Jitter keeps replicas that started together from sweeping in lockstep.
	s.waitWithJitter(ctx, interval)

	if _, err := s.RunOnce(ctx); err != nil {
		s.logSweepError(err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "sweeper service stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logSweepError(err)
			}
		}
	}
}

// waitWithJitter sleeps a random duration up to 10% of the interval.
func (s *SweeperService) waitWithJitter(ctx context.Context, interval time.Duration) {
	maxJitter := int64(interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		return
	}
	jitter := time.Duration(int64(binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter))) // #nosec G115 - bounded by maxJitter

	select {
	case <-time.After(jitter):
	case <-ctx.Done():
	}
}

func (s *SweeperService) emitSweepMetrics(pruned, failed int64, elapsed time.Duration, err error) {
	if s.metrics == nil {
		return
	}

	result := metrics.ResultSuccess
	switch {
	case err != nil:
		result = metrics.ResultError
	case pruned == 0 && failed == 0:
		result = metrics.ResultNoop
	}

	tags := map[string]string{"result": result}
	if err != nil {
		if class := obserrors.Classify(err); class != "" {
			tags["error_class"] = class
		}
	}

	s.metrics.Count("sweeper.cleanup", 1, tags)
	if pruned > 0 {
		s.metrics.Count("sweeper.jobs_pruned", pruned, metrics.CloneTags(tags))
	}
	if failed > 0 {
		s.metrics.Count("sweeper.prune_failures", failed, metrics.CloneTags(tags))
	}
	if elapsed > 0 {
		s.metrics.Timing("sweeper.cleanup_duration", elapsed, metrics.CloneTags(tags))
	}
	if err == nil {
		s.metrics.Gauge("sweeper.last_success_epoch", float64(time.Now().Unix()), nil)
	}
}

func (s *SweeperService) logSweepError(err error) {
	if isContextCancellation(err) {
		s.logger.Debug("sweep cancelled by context", "error", err)
		return
	}
	s.logger.Error("sweep failed", "error", err)
}

func isContextCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
