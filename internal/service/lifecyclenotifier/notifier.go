// Package lifecyclenotifier fans out job lifecycle events to registered
// sinks. Delivery is best effort: sink failures are logged and never surface
// to the job workflow that triggered the event.
package lifecyclenotifier

import (
	"context"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/assistly/llm-jobs/internal/observability/notify"
)

// SinkRegistration pairs a sink implementation with a human-readable name for
// logging. An empty Outcomes slice subscribes the sink to every outcome.
type SinkRegistration struct {
	Name     string
	Sink     notify.Sink
	Outcomes []string
}

// Options configures the lifecycle notifier service.
type Options struct {
	Logger *slog.Logger
	Sinks  []SinkRegistration
}

// Service dispatches lifecycle events to all subscribed sinks.
type Service struct {
	logger *slog.Logger
	sinks  []SinkRegistration
}

// NewService constructs a lifecycle notifier.
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "lifecycle_notifier")
	}

	var sinks []SinkRegistration
	for _, entry := range opts.Sinks {
		if entry.Sink == nil {
			continue
		}
		name := entry.Name
		if name == "" {
			name = "sink"
		}
		sinks = append(sinks, SinkRegistration{
			Name:     name,
			Sink:     entry.Sink,
			Outcomes: entry.Outcomes,
		})
	}

	return &Service{
		logger: logger,
		sinks:  sinks,
	}
}

// NotifyJobLifecycle fan-outs the event to every sink subscribed to its
// outcome and waits for all deliveries to finish. A nil Service is a valid
// no-op notifier so callers holding it behind an interface cannot panic.
func (s *Service) NotifyJobLifecycle(ctx context.Context, event notify.JobLifecycleEvent) {
	if s == nil || len(s.sinks) == 0 {
		return
	}

	var group errgroup.Group
	for _, entry := range s.sinks {
		if len(entry.Outcomes) > 0 && !slices.Contains(entry.Outcomes, event.Outcome) {
			continue
		}
		group.Go(func() error {
			if err := entry.Sink.SendJobLifecycle(ctx, event); err != nil {
				s.logger.ErrorContext(ctx, "lifecycle notifier delivery error",
					"sink", entry.Name,
					"event", event.Name,
					"job_id", event.JobID,
					"error", err,
				)
			}
			return nil
		})
	}
	_ = group.Wait() //nolint:errcheck // sink errors are logged, not returned
}

// Enabled reports whether the notifier has any active sinks.
func (s *Service) Enabled() bool {
	return s != nil && len(s.sinks) > 0
}
