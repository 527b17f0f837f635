// Package notify defines the lifecycle events published when a tracked job
// settles, and the sink contract that delivery fan-out is built on.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/assistly/llm-jobs/internal/domain/model"
)

// Outcome names the terminal transition a lifecycle event reports.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// JobLifecycleEvent is the canonical payload emitted when a job reaches a
// terminal status. Name follows the pattern "job-<type>-<outcome>", e.g.
// "job-analysis-completed".
type JobLifecycleEvent struct {
	EventID    string         `json:"event_id"`
	Name       string         `json:"name"`
	JobID      string         `json:"job_id"`
	JobType    model.JobType  `json:"job_type"`
	Outcome    string         `json:"outcome"`
	Reason     string         `json:"reason,omitempty"`
	TenantID   string         `json:"tenant_id,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// NewJobLifecycleEvent builds an event for a settled job record with a fresh
// event id.
func NewJobLifecycleEvent(rec *model.JobRecord, outcome string, occurredAt time.Time) JobLifecycleEvent {
	ev := JobLifecycleEvent{
		EventID:    uuid.NewString(),
		Name:       fmt.Sprintf("job-%s-%s", rec.Type, outcome),
		JobID:      rec.ID,
		JobType:    rec.Type,
		Outcome:    outcome,
		TenantID:   rec.Invoker.TenantID,
		OccurredAt: occurredAt.UTC(),
	}
	if rec.Error != nil {
		ev.Reason = rec.Error.Code
	}
	return ev
}

// OutcomeForStatus maps a terminal job status to its event outcome. The second
// return value is false for non-terminal statuses.
func OutcomeForStatus(status model.JobStatus) (string, bool) {
	switch status {
	case model.JobStatusCompleted:
		return OutcomeCompleted, true
	case model.JobStatusFailed:
		return OutcomeFailed, true
	case model.JobStatusCancelled:
		return OutcomeCancelled, true
	default:
		return "", false
	}
}

// Sink describes a destination capable of consuming job lifecycle events.
type Sink interface {
	SendJobLifecycle(ctx context.Context, event JobLifecycleEvent) error
}

// SinkFunc adapts a function to the Sink interface (useful for tests).
type SinkFunc func(ctx context.Context, event JobLifecycleEvent) error

// SendJobLifecycle implements the Sink interface.
func (f SinkFunc) SendJobLifecycle(ctx context.Context, event JobLifecycleEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}
