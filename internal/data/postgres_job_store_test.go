package data_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assistly/llm-jobs/internal/core"
	"github.com/assistly/llm-jobs/internal/data"
	"github.com/assistly/llm-jobs/internal/domain/model"
	apperrors "github.com/assistly/llm-jobs/internal/errors"
	"github.com/assistly/llm-jobs/internal/testutil"
)

func setupPostgresStore(t *testing.T, tp data.TimeProvider) *data.PostgresJobStore {
	t.Helper()
	db := testutil.SetupTestDB(t)
	return data.NewPostgresJobStore(db, data.JobStoreConfig{
		RetentionDays: 14,
		ScanCount:     2, // force pagination in the expiry scan
		TimeProvider:  tp,
	})
}

func TestPostgresJobStore_CreateConflict(t *testing.T) {
	store := setupPostgresStore(t, nil)
	ctx := context.Background()
	jobID := testutil.UniqueJobID("pg-conflict")

	_, err := store.Create(ctx, core.CreateJobParams{JobID: jobID, Type: model.JobTypeAnalysis})
	require.NoError(t, err)

	_, err = store.Create(ctx, core.CreateJobParams{JobID: jobID, Type: model.JobTypeAnalysis})
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
}

func TestPostgresJobStore_UpdateRoundTrip(t *testing.T) {
	store := setupPostgresStore(t, nil)
	ctx := context.Background()
	jobID := testutil.UniqueJobID("pg-update")

	_, err := store.Create(ctx, core.CreateJobParams{
		JobID:         jobID,
		Type:          model.JobTypeResponse,
		AuxiliaryData: map[string]any{"ticket_id": "T-7"},
	})
	require.NoError(t, err)

	updated, err := store.Update(ctx, jobID, core.UpdateJobParams{
		Status:           model.JobStatusFailed,
		Error:            &model.JobError{Code: model.ReasonRetrieveFailed, Message: "provider timeout"},
		AppendWebhookIDs: []string{"wh_9"},
	})
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, updated.Status)
	require.NotNil(t, updated.Error)
	assert.Equal(t, model.ReasonRetrieveFailed, updated.Error.Code)

	got, err := store.Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, []string{"wh_9"}, got.ProcessedWebhookIDs)
	assert.Equal(t, "T-7", got.AuxiliaryData["ticket_id"])
}

func TestPostgresJobStore_UpdateSynthesizesShell(t *testing.T) {
	store := setupPostgresStore(t, nil)
	ctx := context.Background()
	jobID := testutil.UniqueJobID("pg-shell")

	rec, err := store.Update(ctx, jobID, core.UpdateJobParams{Status: model.JobStatusCancelled})
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCancelled, rec.Status)

	got, err := store.Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCancelled, got.Status)
}

func TestPostgresJobStore_ConcurrentUpdatesDoNotLoseWrites(t *testing.T) {
	store := setupPostgresStore(t, nil)
	ctx := context.Background()
	jobID := testutil.UniqueJobID("pg-race")

	_, err := store.Create(ctx, core.CreateJobParams{JobID: jobID, Type: model.JobTypeResponse})
	require.NoError(t, err)

	done := make(chan error, 2)
	go func() {
		_, err := store.Update(ctx, jobID, core.UpdateJobParams{AppendWebhookIDs: []string{"wh_a"}})
		done <- err
	}()
	go func() {
		_, err := store.Update(ctx, jobID, core.UpdateJobParams{AppendWebhookIDs: []string{"wh_b"}})
		done <- err
	}()
	require.NoError(t, <-done)
	require.NoError(t, <-done)

	got, err := store.Get(ctx, jobID)
	require.NoError(t, err)
	// The version-stamped conditional write keeps both appends.
	assert.ElementsMatch(t, []string{"wh_a", "wh_b"}, got.ProcessedWebhookIDs)
}

func TestPostgresJobStore_ListExpiredPaginates(t *testing.T) {
	tp := data.NewFixedTimeProvider(testutil.TestTime())
	store := setupPostgresStore(t, tp)
	ctx := context.Background()

	var expired []string
	for range 5 {
		id := testutil.UniqueJobID("pg-expired")
		expired = append(expired, id)
		_, err := store.Create(ctx, core.CreateJobParams{JobID: id, Type: model.JobTypeAnalysis, RetentionDays: 1})
		require.NoError(t, err)
	}
	freshID := testutil.UniqueJobID("pg-fresh")
	_, err := store.Create(ctx, core.CreateJobParams{JobID: freshID, Type: model.JobTypeAnalysis, RetentionDays: 30})
	require.NoError(t, err)

	tp.Advance(48 * time.Hour)

	var ids []string
	cursor := store.ListExpired(ctx)
	for {
		rec, err := cursor.Next(ctx)
		if errors.Is(err, core.ErrCursorDone) {
			break
		}
		require.NoError(t, err)
		ids = append(ids, rec.ID)
	}

	assert.ElementsMatch(t, expired, ids)
	assert.NotContains(t, ids, freshID)
}
