package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/assistly/llm-jobs/internal/core"
	"github.com/assistly/llm-jobs/internal/data"
	"github.com/assistly/llm-jobs/internal/domain/model"
	apperrors "github.com/assistly/llm-jobs/internal/errors"
	"github.com/assistly/llm-jobs/internal/mocks"
	"github.com/assistly/llm-jobs/internal/observability/notify"
	"github.com/assistly/llm-jobs/internal/service"
)

type notifyCapture struct {
	events []notify.JobLifecycleEvent
}

func (n *notifyCapture) NotifyJobLifecycle(_ context.Context, event notify.JobLifecycleEvent) {
	n.events = append(n.events, event)
}

type jobFixture struct {
	svc      *service.JobService
	store    *data.MemoryJobStore
	provider *mocks.MockClient
	notified *notifyCapture
}

func newJobFixture(t *testing.T) *jobFixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	store := data.NewMemoryJobStore(data.JobStoreConfig{})
	mockProvider := mocks.NewMockClient(ctrl)
	notified := &notifyCapture{}

	svc, err := service.NewJobService(service.JobServiceOptions{
		Store:    store,
		Provider: mockProvider,
		Notifier: notified,
	})
	require.NoError(t, err)

	return &jobFixture{svc: svc, store: store, provider: mockProvider, notified: notified}
}

func TestJobServiceCreate(t *testing.T) {
	f := newJobFixture(t)
	ctx := context.Background()

	t.Run("rejects empty job id", func(t *testing.T) {
		_, err := f.svc.Create(ctx, core.CreateJobParams{Type: model.JobTypeResponse})
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("rejects unknown job type", func(t *testing.T) {
		_, err := f.svc.Create(ctx, core.CreateJobParams{JobID: "job_1", Type: "summarize"})
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("returns sanitized record", func(t *testing.T) {
		rec, err := f.svc.Create(ctx, core.CreateJobParams{
			JobID:   "job_1",
			Type:    model.JobTypeResponse,
			Invoker: model.Invoker{TenantID: "tenant-1"},
			Logs:    []string{"submitted from ticket T-9"},
		})
		require.NoError(t, err)
		assert.Equal(t, "job_1", rec.ID)
		assert.Equal(t, model.JobStatusQueued, rec.Status)
		assert.Nil(t, rec.ProcessedWebhookIDs)
	})

	t.Run("duplicate id conflicts", func(t *testing.T) {
		_, err := f.svc.Create(ctx, core.CreateJobParams{JobID: "job_1", Type: model.JobTypeResponse})
		require.Error(t, err)
		assert.True(t, apperrors.IsConflict(err))
	})
}

func TestJobServiceStatus(t *testing.T) {
	f := newJobFixture(t)
	ctx := context.Background()

	t.Run("not tracked", func(t *testing.T) {
		_, err := f.svc.Status(ctx, "job_missing")
		require.Error(t, err)
		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("strips the idempotency ledger", func(t *testing.T) {
		_, err := f.store.Create(ctx, core.CreateJobParams{JobID: "job_1", Type: model.JobTypeAnalysis})
		require.NoError(t, err)
		_, err = f.store.Update(ctx, "job_1", core.UpdateJobParams{AppendWebhookIDs: []string{"evt_1"}})
		require.NoError(t, err)

		rec, err := f.svc.Status(ctx, "job_1")
		require.NoError(t, err)
		assert.Nil(t, rec.ProcessedWebhookIDs)
	})
}

func TestJobServiceCancel(t *testing.T) {
	ctx := context.Background()

	t.Run("not tracked", func(t *testing.T) {
		f := newJobFixture(t)
		_, err := f.svc.Cancel(ctx, "job_missing")
		require.Error(t, err)
		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("cancels an in-flight job", func(t *testing.T) {
		f := newJobFixture(t)
		_, err := f.store.Create(ctx, core.CreateJobParams{JobID: "job_1", Type: model.JobTypeResponse})
		require.NoError(t, err)

		f.provider.EXPECT().CancelJob(gomock.Any(), "job_1").Return(nil)

		outcome, err := f.svc.Cancel(ctx, "job_1")
		require.NoError(t, err)
		assert.False(t, outcome.AlreadySettled)
		assert.Equal(t, model.JobStatusCancelled, outcome.Job.Status)
		require.NotNil(t, outcome.Job.Error)
		assert.Equal(t, model.ReasonCancelledByUser, outcome.Job.Error.Code)

		require.Len(t, f.notified.events, 1)
		assert.Equal(t, "job-response-cancelled", f.notified.events[0].Name)
	})

	t.Run("settled job short-circuits without provider call", func(t *testing.T) {
		f := newJobFixture(t)
		_, err := f.store.Create(ctx, core.CreateJobParams{JobID: "job_1", Type: model.JobTypeResponse})
		require.NoError(t, err)
		_, err = f.store.Update(ctx, "job_1", core.UpdateJobParams{
			Status: model.JobStatusCompleted,
			Result: &model.JobResult{RawText: "done", Reply: "done"},
		})
		require.NoError(t, err)

		// No EXPECT on the provider: any call would fail the test.
		outcome, err := f.svc.Cancel(ctx, "job_1")
		require.NoError(t, err)
		assert.True(t, outcome.AlreadySettled)
		assert.Equal(t, model.JobStatusCompleted, outcome.Job.Status)
		assert.Empty(t, f.notified.events)
	})

	t.Run("provider failure is absorbed", func(t *testing.T) {
		f := newJobFixture(t)
		_, err := f.store.Create(ctx, core.CreateJobParams{JobID: "job_1", Type: model.JobTypeAnalysis})
		require.NoError(t, err)

		f.provider.EXPECT().CancelJob(gomock.Any(), "job_1").Return(errors.New("provider unreachable"))

		outcome, err := f.svc.Cancel(ctx, "job_1")
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusCancelled, outcome.Job.Status)
	})
}
