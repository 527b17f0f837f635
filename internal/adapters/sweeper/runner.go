// Package sweeper provides an adapter for running the retention sweep loop
// as a standalone background worker.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/assistly/llm-jobs/config"
	"github.com/assistly/llm-jobs/internal/core"
	"github.com/assistly/llm-jobs/internal/observability/statsd"
	"github.com/assistly/llm-jobs/internal/service"
)

// Runner constructs the sweeper service and runs its loop.
type Runner struct {
	sweeper *service.SweeperService
	logger  *slog.Logger
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	Store   core.JobStore
	Config  config.SweeperConfig
	Logger  *slog.Logger
	Metrics statsd.Sink
}

// NewRunner creates a sweeper runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Store == nil {
		return nil, errors.New("job store is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	sweeper, err := service.NewSweeperService(service.SweeperServiceOptions{
		Store:   opts.Store,
		Config:  opts.Config,
		Logger:  opts.Logger,
		Metrics: opts.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("wire sweeper service: %w", err)
	}

	return &Runner{sweeper: sweeper, logger: opts.Logger}, nil
}

// Run starts the sweep loop and runs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting sweeper runner")
	return r.sweeper.Run(ctx)
}
