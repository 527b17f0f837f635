package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assistly/llm-jobs/internal/domain/model"
	"github.com/assistly/llm-jobs/internal/observability/notify"
)

func testEvent() notify.JobLifecycleEvent {
	return notify.JobLifecycleEvent{
		EventID:    "ev-1",
		Name:       "job-response-failed",
		JobID:      "job_123",
		JobType:    model.JobTypeResponse,
		Outcome:    notify.OutcomeFailed,
		Reason:     model.ReasonRetrieveFailed,
		TenantID:   "tenant-1",
		OccurredAt: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
	}
}

func TestNewClientRequiresWebhookURL(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{WebhookURL: "  "})
	require.Error(t, err)
}

func TestSendJobLifecyclePostsMessage(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := NewClient(Config{WebhookURL: srv.URL, Channel: "#llm-alerts"})
	require.NoError(t, err)

	require.NoError(t, client.SendJobLifecycle(context.Background(), testEvent()))

	assert.Equal(t, "#llm-alerts", got["channel"])
	assert.Equal(t, "llmjobs", got["username"])
	text, _ := got["text"].(string)
	assert.Contains(t, text, "job-response-failed")
	assert.Contains(t, text, "job_123")
	assert.Contains(t, text, model.ReasonRetrieveFailed)
}

func TestSendJobLifecycleRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "try again", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := NewClient(Config{WebhookURL: srv.URL, RetryLimit: 2})
	require.NoError(t, err)

	require.NoError(t, client.SendJobLifecycle(context.Background(), testEvent()))
	assert.Equal(t, int32(2), calls.Load())
}

func TestSendJobLifecycleExhaustsRetries(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	client, err := NewClient(Config{WebhookURL: srv.URL, RetryLimit: 1})
	require.NoError(t, err)

	err = client.SendJobLifecycle(context.Background(), testEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
