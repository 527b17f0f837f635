package data

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assistly/llm-jobs/internal/core"
	"github.com/assistly/llm-jobs/internal/domain/model"
)

func testNow() time.Time {
	return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
}

func TestNewJobRecord(t *testing.T) {
	now := testNow()

	t.Run("sets expiry from retention days", func(t *testing.T) {
		rec := newJobRecord(core.CreateJobParams{JobID: "job-1", Type: model.JobTypeResponse, RetentionDays: 7}, now, 14)
		assert.Equal(t, now.Add(7*24*time.Hour), rec.ExpiresAt)
		assert.Equal(t, now, rec.CreatedAt)
		assert.Equal(t, now, rec.UpdatedAt)
	})

	t.Run("falls back to store default retention", func(t *testing.T) {
		rec := newJobRecord(core.CreateJobParams{JobID: "job-1"}, now, 3)
		assert.Equal(t, now.Add(3*24*time.Hour), rec.ExpiresAt)
	})

	t.Run("defaults status to queued", func(t *testing.T) {
		rec := newJobRecord(core.CreateJobParams{JobID: "job-1"}, now, 14)
		assert.Equal(t, model.JobStatusQueued, rec.Status)
	})

	t.Run("preserves an explicit initial status", func(t *testing.T) {
		rec := newJobRecord(core.CreateJobParams{JobID: "job-1", Status: model.JobStatusInProgress}, now, 14)
		assert.Equal(t, model.JobStatusInProgress, rec.Status)
	})

	t.Run("initializes an empty ledger", func(t *testing.T) {
		rec := newJobRecord(core.CreateJobParams{JobID: "job-1"}, now, 14)
		require.NotNil(t, rec.ProcessedWebhookIDs)
		assert.Empty(t, rec.ProcessedWebhookIDs)
	})

	t.Run("truncates oversized auxiliary strings", func(t *testing.T) {
		long := strings.Repeat("a", model.AuxValueLimit+10)
		rec := newJobRecord(core.CreateJobParams{
			JobID:         "job-1",
			AuxiliaryData: map[string]any{"ticket": long},
		}, now, 14)
		assert.True(t, strings.HasSuffix(rec.AuxiliaryData["ticket"].(string), model.TruncationMarker))
	})
}

func TestApplyUpdate(t *testing.T) {
	now := testNow()
	later := now.Add(time.Minute)

	base := func() *model.JobRecord {
		return newJobRecord(core.CreateJobParams{
			JobID:         "job-1",
			Type:          model.JobTypeResponse,
			AuxiliaryData: map[string]any{"keep": "me"},
		}, now, 14)
	}

	t.Run("applies status and bumps updated_at", func(t *testing.T) {
		rec := base()
		applyUpdate(rec, core.UpdateJobParams{Status: model.JobStatusCompleted}, later)
		assert.Equal(t, model.JobStatusCompleted, rec.Status)
		assert.Equal(t, later, rec.UpdatedAt)
		assert.Equal(t, now, rec.CreatedAt)
	})

	t.Run("empty status leaves current status", func(t *testing.T) {
		rec := base()
		applyUpdate(rec, core.UpdateJobParams{AppendLogs: []string{"line"}}, later)
		assert.Equal(t, model.JobStatusQueued, rec.Status)
	})

	t.Run("never recomputes expiry", func(t *testing.T) {
		rec := base()
		expires := rec.ExpiresAt
		applyUpdate(rec, core.UpdateJobParams{Status: model.JobStatusCompleted}, later)
		assert.Equal(t, expires, rec.ExpiresAt)
	})

	t.Run("merges auxiliary data instead of replacing", func(t *testing.T) {
		rec := base()
		applyUpdate(rec, core.UpdateJobParams{AuxiliaryData: map[string]any{"new": "value"}}, later)
		assert.Equal(t, "me", rec.AuxiliaryData["keep"])
		assert.Equal(t, "value", rec.AuxiliaryData["new"])
	})

	t.Run("deep replaces result and error", func(t *testing.T) {
		rec := base()
		rec.Error = &model.JobError{Code: model.ReasonRetrieveFailed, Message: "boom"}
		applyUpdate(rec, core.UpdateJobParams{
			Status:     model.JobStatusCompleted,
			Result:     &model.JobResult{RawText: "draft", Reply: "draft"},
			ClearError: true,
		}, later)
		assert.Nil(t, rec.Error)
		require.NotNil(t, rec.Result)
		assert.Equal(t, "draft", rec.Result.RawText)
	})

	t.Run("unions webhook ids without duplicates", func(t *testing.T) {
		rec := base()
		applyUpdate(rec, core.UpdateJobParams{AppendWebhookIDs: []string{"wh_1"}}, later)
		applyUpdate(rec, core.UpdateJobParams{AppendWebhookIDs: []string{"wh_1", "wh_2", ""}}, later)
		assert.Equal(t, []string{"wh_1", "wh_2"}, rec.ProcessedWebhookIDs)
	})

	t.Run("appends logs", func(t *testing.T) {
		rec := base()
		applyUpdate(rec, core.UpdateJobParams{AppendLogs: []string{"a", "b"}}, later)
		assert.Equal(t, []string{"a", "b"}, rec.Logs)
	})
}

func TestShellJobRecord(t *testing.T) {
	now := testNow()
	shell := shellJobRecord("job-raced", now, 14)

	assert.Equal(t, "job-raced", shell.ID)
	assert.Equal(t, model.JobStatusQueued, shell.Status)
	assert.Equal(t, now.Add(14*24*time.Hour), shell.ExpiresAt)
}
