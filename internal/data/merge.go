package data

import (
	"time"

	"github.com/assistly/llm-jobs/internal/core"
	"github.com/assistly/llm-jobs/internal/domain/model"
)

// newJobRecord builds the initial record for a create call. ExpiresAt is set
// exactly once here and never recomputed.
func newJobRecord(params core.CreateJobParams, now time.Time, defaultRetentionDays int) *model.JobRecord {
	retention := params.RetentionDays
	if retention <= 0 {
		retention = defaultRetentionDays
	}
	if retention <= 0 {
		retention = model.DefaultRetentionDays
	}

	status := params.Status
	if status == "" {
		status = model.JobStatusQueued
	}

	return &model.JobRecord{
		ID:                  params.JobID,
		Type:                params.Type,
		Status:              status,
		CreatedAt:           now,
		UpdatedAt:           now,
		ExpiresAt:           now.Add(time.Duration(retention) * 24 * time.Hour),
		Invoker:             params.Invoker,
		Request:             params.Request,
		AuxiliaryData:       model.TruncateAux(params.AuxiliaryData),
		VectorStats:         params.VectorStats,
		Logs:                params.Logs,
		ProcessedWebhookIDs: []string{},
	}
}

// shellJobRecord synthesizes a minimal record for an update that raced record
// creation. The shell gets a fresh retention window; the creating writer's
// merge will not recompute it.
func shellJobRecord(jobID string, now time.Time, defaultRetentionDays int) *model.JobRecord {
	return newJobRecord(core.CreateJobParams{JobID: jobID}, now, defaultRetentionDays)
}

// applyUpdate merges a partial update into an existing record in place.
//
// Status and scalar sections are shallow-merged; Result, Error, LLMCharacters
// and VectorStats are deep-replaced when supplied; AuxiliaryData is merged key
// by key; webhook delivery IDs are unioned into the ledger. UpdatedAt always
// advances.
func applyUpdate(rec *model.JobRecord, params core.UpdateJobParams, now time.Time) {
	if params.Status != "" {
		rec.Status = params.Status
	}
	if params.Result != nil {
		rec.Result = params.Result
	}
	if params.ClearError {
		rec.Error = nil
	}
	if params.Error != nil {
		rec.Error = params.Error
	}
	if params.LLMCharacters != nil {
		rec.LLMCharacters = params.LLMCharacters
	}
	if params.VectorStats != nil {
		rec.VectorStats = params.VectorStats
	}

	if len(params.AuxiliaryData) > 0 {
		if rec.AuxiliaryData == nil {
			rec.AuxiliaryData = make(map[string]any, len(params.AuxiliaryData))
		}
		for k, v := range model.TruncateAux(params.AuxiliaryData) {
			rec.AuxiliaryData[k] = v
		}
	}

	for _, id := range params.AppendWebhookIDs {
		if id == "" || rec.HasProcessedWebhook(id) {
			continue
		}
		rec.ProcessedWebhookIDs = append(rec.ProcessedWebhookIDs, id)
	}

	rec.Logs = append(rec.Logs, params.AppendLogs...)
	rec.UpdatedAt = now
}
