// Package devseed creates sample job records for local development so the
// HTTP API and sweeper have data to work against without a live provider.
package devseed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/assistly/llm-jobs/internal/core"
	"github.com/assistly/llm-jobs/internal/domain/model"
	apperrors "github.com/assistly/llm-jobs/internal/errors"
)

type seedJob struct {
	id      string
	jobType model.JobType
	status  model.JobStatus
	prompt  string
	system  string
	aux     map[string]any
}

func seedJobs() []seedJob {
	return []seedJob{
		{
			id:      "resp_dev_queued",
			jobType: model.JobTypeResponse,
			status:  model.JobStatusQueued,
			prompt:  "Customer asks how to reset their password.",
			system:  "You are a support assistant.",
			aux:     map[string]any{"ticket_id": "DEV-1"},
		},
		{
			id:      "resp_dev_running",
			jobType: model.JobTypeResponse,
			status:  model.JobStatusInProgress,
			prompt:  "Customer reports a duplicate charge on their invoice.",
			system:  "You are a support assistant.",
			aux:     map[string]any{"ticket_id": "DEV-2"},
		},
		{
			id:      "analysis_dev_queued",
			jobType: model.JobTypeAnalysis,
			status:  model.JobStatusQueued,
			prompt:  "Summarize this week's escalation threads.",
			aux:     map[string]any{"ticket_id": "DEV-3"},
		},
	}
}

// Run inserts the sample records, skipping any that already exist.
func Run(ctx context.Context, store core.JobStore, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	created := 0
	for _, s := range seedJobs() {
		_, err := store.Create(ctx, core.CreateJobParams{
			JobID:  s.id,
			Type:   s.jobType,
			Status: s.status,
			Invoker: model.Invoker{
				TenantID:    "dev-tenant",
				Environment: "development",
			},
			Request: model.RequestStats{
				PromptChars: len([]rune(s.prompt)),
				SystemChars: len([]rune(s.system)),
				Fingerprint: model.Fingerprint(s.prompt, s.system),
			},
			AuxiliaryData: s.aux,
			Logs:          []string{"seeded for development"},
		})
		if apperrors.IsConflict(err) {
			logger.DebugContext(ctx, "seed job already exists", "job_id", s.id)
			continue
		}
		if err != nil {
			return fmt.Errorf("seed job %s: %w", s.id, err)
		}
		created++
	}

	logger.InfoContext(ctx, "development seed complete", "created", created)
	return nil
}
