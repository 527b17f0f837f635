package webhook

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/assistly/llm-jobs/internal/core"
	"github.com/assistly/llm-jobs/internal/data"
	"github.com/assistly/llm-jobs/internal/domain/model"
	"github.com/assistly/llm-jobs/internal/observability/metrics"
	"github.com/assistly/llm-jobs/internal/observability/notify"
	"github.com/assistly/llm-jobs/internal/observability/statsd"
	"github.com/assistly/llm-jobs/internal/provider"
)

// Ack dispositions reported back to the webhook handler. Every disposition
// maps to an HTTP 200: once a delivery is authenticated it is always
// acknowledged, whatever became of the job.
const (
	AckProcessed      = "processed"
	AckIgnored        = "ignored"
	AckNotTracked     = "not_tracked"
	AckDuplicate      = "duplicate"
	AckAlreadySettled = "already_settled"
)

// Ack summarizes how a verified delivery was handled.
type Ack struct {
	Disposition string `json:"disposition"`
	JobID       string `json:"job_id,omitempty"`
}

// LifecycleNotifier publishes events for settled jobs.
type LifecycleNotifier interface {
	NotifyJobLifecycle(ctx context.Context, event notify.JobLifecycleEvent)
}

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	Store    core.JobStore
	Provider provider.Client
	Notifier LifecycleNotifier
	Verifier *Verifier
	Logger   *slog.Logger
	Metrics  statsd.Sink
	// OutputExpr overrides the JMESPath expression used to extract artifact
	// text; empty means provider.DefaultOutputExpr.
	OutputExpr string
}

// Dispatcher turns verified provider callbacks into job state transitions.
type Dispatcher struct {
	store      core.JobStore
	provider   provider.Client
	notifier   LifecycleNotifier
	verifier   *Verifier
	logger     *slog.Logger
	metrics    statsd.Sink
	outputExpr string
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(opts DispatcherOptions) (*Dispatcher, error) {
	if opts.Store == nil {
		return nil, errors.New("dispatcher requires a job store")
	}
	if opts.Provider == nil {
		return nil, errors.New("dispatcher requires a provider client")
	}
	verifier := opts.Verifier
	if verifier == nil {
		verifier = &Verifier{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "webhook_dispatcher")
	}

	return &Dispatcher{
		store:      opts.Store,
		provider:   opts.Provider,
		notifier:   opts.Notifier,
		verifier:   verifier,
		logger:     logger,
		metrics:    opts.Metrics,
		outputExpr: opts.OutputExpr,
	}, nil
}

// ProcessParams carries one delivery: the exact body bytes received, the
// request headers, and the resolved signing secret.
type ProcessParams struct {
	Body   []byte
	Header http.Header
	Secret string
}

// Process authenticates and applies one webhook delivery. A non-nil error
// means the delivery failed verification and must not be acknowledged;
// anything after successful verification resolves to an Ack.
func (d *Dispatcher) Process(ctx context.Context, params ProcessParams) (*Ack, error) {
	started := time.Now()

	event, err := d.verifier.Verify(params.Secret, params.Body, params.Header)
	if err != nil {
		d.logger.InfoContext(ctx, "webhook rejected", "error", err)
		d.count("webhook.rejected", nil)
		return nil, err
	}

	if event.Data.JobID == "" {
		d.logger.DebugContext(ctx, "webhook carries no job reference", "delivery_id", event.ID, "event_type", event.Type)
		d.count("webhook.ignored", nil)
		return &Ack{Disposition: AckIgnored}, nil
	}
	jobID := event.Data.JobID

	rec, err := d.store.Get(ctx, jobID)
	if errors.Is(err, data.ErrJobNotFound) {
		d.logger.DebugContext(ctx, "webhook for untracked job", "job_id", jobID, "delivery_id", event.ID)
		d.count("webhook.not_tracked", nil)
		return &Ack{Disposition: AckNotTracked, JobID: jobID}, nil
	}
	if err != nil {
		return nil, err
	}

	if rec.HasProcessedWebhook(event.ID) {
		d.logger.DebugContext(ctx, "duplicate webhook delivery", "job_id", jobID, "delivery_id", event.ID)
		d.count("webhook.duplicate", nil)
		return &Ack{Disposition: AckDuplicate, JobID: jobID}, nil
	}

	// A settled job never transitions again; record the delivery and stop.
	if rec.Status.Terminal() {
		if _, err := d.store.Update(ctx, jobID, core.UpdateJobParams{AppendWebhookIDs: []string{event.ID}}); err != nil {
			return nil, err
		}
		d.count("webhook.already_settled", nil)
		return &Ack{Disposition: AckAlreadySettled, JobID: jobID}, nil
	}

	artifact, err := d.provider.RetrieveJob(ctx, jobID)
	if err != nil {
		return d.settle(ctx, rec, event, settlement{
			status:   model.JobStatusFailed,
			reason:   model.ReasonRetrieveFailed,
			message:  err.Error(),
			err:      err,
			duration: time.Since(started),
		})
	}

	outcome := d.classifyArtifact(ctx, rec, artifact)
	if outcome == nil {
		// Artifact still running: leave the record untouched so a later
		// delivery can settle it.
		d.logger.InfoContext(ctx, "webhook arrived before artifact settled", "job_id", jobID, "delivery_id", event.ID)
		d.count("webhook.premature", nil)
		return &Ack{Disposition: AckIgnored, JobID: jobID}, nil
	}
	outcome.duration = time.Since(started)

	return d.settle(ctx, rec, event, *outcome)
}

// settlement captures the terminal transition a delivery resolved to.
type settlement struct {
	status   model.JobStatus
	reason   string
	message  string
	result   *model.JobResult
	chars    *model.LLMCharacters
	err      error
	duration time.Duration
}

func (d *Dispatcher) classifyArtifact(ctx context.Context, rec *model.JobRecord, artifact *provider.Artifact) *settlement {
	switch artifact.Status {
	case provider.ArtifactStatusCompleted:
		text, err := artifact.OutputText(d.outputExpr)
		if err != nil {
			d.logger.ErrorContext(ctx, "artifact output extraction failed", "job_id", rec.ID, "error", err)
		}
		if text == "" {
			return &settlement{
				status:  model.JobStatusFailed,
				reason:  model.ReasonNoOutput,
				message: "artifact completed without extractable output",
				err:     err,
			}
		}
		s := &settlement{
			status: model.JobStatusCompleted,
			result: model.ShapeResult(rec.Type, text),
		}
		if artifact.Usage != nil {
			s.chars = &model.LLMCharacters{Input: artifact.Usage.InputChars, Output: artifact.Usage.OutputChars}
		}
		return s
	case provider.ArtifactStatusCancelled:
		return &settlement{
			status:  model.JobStatusCancelled,
			reason:  model.ReasonProviderCancelled,
			message: "provider cancelled the job",
		}
	case provider.ArtifactStatusInProgress:
		return nil
	default:
		message := "provider reported the job failed"
		if artifact.Error != nil && artifact.Error.Message != "" {
			message = artifact.Error.Message
		}
		return &settlement{
			status:  model.JobStatusFailed,
			reason:  model.ReasonProviderFailed,
			message: message,
		}
	}
}

func (d *Dispatcher) settle(ctx context.Context, rec *model.JobRecord, event *Event, s settlement) (*Ack, error) {
	params := core.UpdateJobParams{
		Status:           s.status,
		AppendWebhookIDs: []string{event.ID},
		LLMCharacters:    s.chars,
	}
	if s.status == model.JobStatusCompleted {
		params.Result = s.result
		params.ClearError = true
	} else {
		params.Error = &model.JobError{Code: s.reason, Message: s.message}
	}

	updated, err := d.store.Update(ctx, rec.ID, params)
	if err != nil {
		return nil, err
	}

	d.logger.InfoContext(ctx, "job settled by webhook",
		"job_id", updated.ID,
		"job_type", updated.Type,
		"status", updated.Status,
		"reason", s.reason,
		"delivery_id", event.ID,
	)

	result := metrics.ResultSuccess
	if s.status != model.JobStatusCompleted {
		result = metrics.ResultError
	}
	metrics.EmitJobTransition(d.metrics, metrics.JobMetric{
		JobType:    string(updated.Type),
		Transition: "webhook",
		Result:     result,
		Reason:     s.reason,
		Duration:   s.duration,
		Err:        s.err,
	})

	d.notify(ctx, updated)

	return &Ack{Disposition: AckProcessed, JobID: updated.ID}, nil
}

func (d *Dispatcher) notify(ctx context.Context, rec *model.JobRecord) {
	if d.notifier == nil {
		return
	}
	outcome, ok := notify.OutcomeForStatus(rec.Status)
	if !ok {
		return
	}
	d.notifier.NotifyJobLifecycle(ctx, notify.NewJobLifecycleEvent(rec, outcome, time.Now()))
}

func (d *Dispatcher) count(name string, tags map[string]string) {
	if d.metrics == nil {
		return
	}
	d.metrics.Count(name, 1, tags)
}
