package httpx_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assistly/llm-jobs/config"
	"github.com/assistly/llm-jobs/internal/core"
	"github.com/assistly/llm-jobs/internal/data"
	"github.com/assistly/llm-jobs/internal/domain/model"
	httpx "github.com/assistly/llm-jobs/internal/http"
	"github.com/assistly/llm-jobs/internal/service"
)

// flakyDeleteStore fails deletes for one job id so a sweep makes partial
// progress.
type flakyDeleteStore struct {
	core.JobStore
	failID string
}

func (s *flakyDeleteStore) Delete(ctx context.Context, jobID string) error {
	if jobID == s.failID {
		return errors.New("transient store error")
	}
	return s.JobStore.Delete(ctx, jobID)
}

func TestSweepTriggerReportsPartialProgress(t *testing.T) {
	tp := data.NewFixedTimeProvider(handlerNow)
	store := data.NewMemoryJobStore(data.JobStoreConfig{TimeProvider: tp})
	ctx := context.Background()

	for _, id := range []string{"job_exp_1", "job_exp_2"} {
		_, err := store.Create(ctx, core.CreateJobParams{JobID: id, Type: model.JobTypeAnalysis, RetentionDays: 1})
		require.NoError(t, err)
	}
	tp.Advance(48 * time.Hour)

	sweepSvc, err := service.NewSweeperService(service.SweeperServiceOptions{
		Store:  &flakyDeleteStore{JobStore: store, failID: "job_exp_1"},
		Config: config.SweeperConfig{Interval: time.Hour},
	})
	require.NoError(t, err)

	h := &httpx.SweepHandlers{Svc: sweepSvc}
	rec := httptest.NewRecorder()
	h.Trigger(rec, httptest.NewRequest(http.MethodPost, "/api/maintenance/sweep", nil))

	// A record that fails to delete waits for the next sweep; the trigger
	// still reports what was pruned.
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(1), body["pruned"])
}
