package httpx

import (
	"net/http"

	"github.com/assistly/llm-jobs/internal/core"
	"github.com/assistly/llm-jobs/internal/domain/model"
	"github.com/assistly/llm-jobs/internal/service"
)

// JobHandlers serves the job tracking endpoints.
type JobHandlers struct {
	Svc *service.JobService
}

// createJobRequest is the submission payload. Prompt and system text are used
// only to derive traceability stats; the text itself is never persisted.
type createJobRequest struct {
	JobID         string             `json:"job_id"`
	Type          model.JobType      `json:"type"`
	Prompt        string             `json:"prompt,omitempty"`
	System        string             `json:"system,omitempty"`
	Invoker       model.Invoker      `json:"invoker,omitempty"`
	AuxiliaryData map[string]any     `json:"auxiliary_data,omitempty"`
	VectorStats   *model.VectorStats `json:"vector_stats,omitempty"`
	Logs          []string           `json:"logs,omitempty"`
	RetentionDays int                `json:"retention_days,omitempty"`
}

type jobResponse struct {
	Success bool             `json:"success"`
	Job     *model.JobRecord `json:"job"`
}

// Create registers a provider job for tracking.
func (h *JobHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	rec, err := h.Svc.Create(r.Context(), core.CreateJobParams{
		JobID:   req.JobID,
		Type:    req.Type,
		Invoker: req.Invoker,
		Request: model.RequestStats{
			PromptChars: len([]rune(req.Prompt)),
			SystemChars: len([]rune(req.System)),
			Fingerprint: model.Fingerprint(req.Prompt, req.System),
		},
		AuxiliaryData: req.AuxiliaryData,
		VectorStats:   req.VectorStats,
		Logs:          req.Logs,
		RetentionDays: req.RetentionDays,
	})
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, jobResponse{Success: true, Job: rec})
}

// Get returns the current state of a tracked job.
func (h *JobHandlers) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Svc.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, jobResponse{Success: true, Job: rec})
}

type cancelResponse struct {
	Success bool             `json:"success"`
	Job     *model.JobRecord `json:"job"`
	Message string           `json:"message,omitempty"`
}

// Cancel requests termination of an in-flight job.
func (h *JobHandlers) Cancel(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.Svc.Cancel(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteAppError(w, err)
		return
	}

	resp := cancelResponse{Success: true, Job: outcome.Job}
	if outcome.AlreadySettled {
		resp.Message = "job already settled; record returned unchanged"
	}
	WriteJSON(w, http.StatusOK, resp)
}
