// Package model defines the core data types for the assistly job tracking system.
package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// JobType represents the kind of work delegated to the completion provider.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type JobType string

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobTypeAnalysis represents a ticket analysis job.
	JobTypeAnalysis JobType = "analysis"
	// JobTypeResponse represents a reply drafting job.
	JobTypeResponse JobType = "response"

	// JobStatusQueued indicates the provider accepted the job but has not started it.
	JobStatusQueued JobStatus = "queued"
	// JobStatusInProgress indicates the provider is working on the job.
	JobStatusInProgress JobStatus = "in_progress"
	// JobStatusCompleted indicates the job finished successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusCancelled indicates the job was cancelled before completion.
	JobStatusCancelled JobStatus = "cancelled"
)

// Error reason codes recorded on failed or cancelled jobs. Provider error text
// goes into the message field, never into the code.
const (
	ReasonRetrieveFailed    = "retrieve_failed"
	ReasonCancelledByUser   = "cancelled_by_user"
	ReasonProviderFailed    = "provider_failed"
	ReasonProviderCancelled = "provider_cancelled"
	ReasonNoOutput          = "no_output"
)

// DefaultRetentionDays is the retention window applied when a job is created
// without an explicit override.
const DefaultRetentionDays = 14

// AuxValueLimit is the ceiling applied to string values inside auxiliary data
// before persistence.
const AuxValueLimit = 1024

// TruncationMarker is appended to auxiliary strings cut at AuxValueLimit.
const TruncationMarker = "...[truncated]"

// UnmarshalText implements encoding.TextUnmarshaler for JobType to allow env parsing.
func (t *JobType) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	jt := JobType(v)
	if jt.Valid() {
		*t = jt
		return nil
	}
	return fmt.Errorf("invalid JobType: %q", v)
}

// Valid returns true if the JobType is valid.
func (t JobType) Valid() bool {
	return t == JobTypeAnalysis || t == JobTypeResponse
}

// Valid returns true if the JobStatus is valid.
func (s JobStatus) Valid() bool {
	return s == JobStatusQueued || s == JobStatusInProgress ||
		s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Terminal returns true if the status permits no further transition.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Invoker identifies who submitted a job. Stored for audit, not used for
// authorization.
type Invoker struct {
	TenantID    string `json:"tenant_id,omitempty"`
	SiteID      string `json:"site_id,omitempty"`
	Environment string `json:"environment,omitempty"`
}

// RequestStats captures lengths and a content fingerprint of the submitted
// prompt for debugging and traceability.
type RequestStats struct {
	PromptChars int    `json:"prompt_chars"`
	SystemChars int    `json:"system_chars"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// LLMCharacters records character usage reported for the model invocation.
type LLMCharacters struct {
	Input  int `json:"input"`
	Output int `json:"output"`
}

// VectorStats records similarity-search activity captured at submission time.
type VectorStats struct {
	Queries  int     `json:"queries"`
	Matches  int     `json:"matches"`
	TopScore float64 `json:"top_score"`
}

// JobError carries a stable reason code plus a human-readable message.
type JobError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// JobResult is the structured payload of a completed job. RawText always holds
// the extracted provider output; the remaining fields depend on the job type.
type JobResult struct {
	RawText string `json:"rawText"`

	// Analysis shape
	Summary             string   `json:"summary,omitempty"`
	Plan                string   `json:"plan,omitempty"`
	KnowledgeReferences []string `json:"knowledgeReferences,omitempty"`

	// Response shape
	Reply string `json:"reply,omitempty"`
}

// JobRecord is the persistent record of one unit of asynchronous work.
type JobRecord struct {
	ID            string         `json:"id"`
	Type          JobType        `json:"type"`
	Status        JobStatus      `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	ExpiresAt     time.Time      `json:"expires_at"`
	Invoker       Invoker        `json:"invoker"`
	Request       RequestStats   `json:"request"`
	AuxiliaryData map[string]any `json:"auxiliary_data,omitempty"`
	LLMCharacters *LLMCharacters `json:"llm_characters,omitempty"`
	VectorStats   *VectorStats   `json:"vector_stats,omitempty"`
	Result        *JobResult     `json:"result,omitempty"`
	Error         *JobError      `json:"error,omitempty"`

	// ProcessedWebhookIDs is the idempotency ledger: delivery identifiers of
	// callbacks already applied to this record.
	ProcessedWebhookIDs []string `json:"processed_webhook_ids,omitempty"`

	Logs []string `json:"logs,omitempty"`
}

// HasProcessedWebhook reports whether the delivery identifier was already
// applied to this record.
func (j *JobRecord) HasProcessedWebhook(id string) bool {
	if id == "" {
		return false
	}
	for _, existing := range j.ProcessedWebhookIDs {
		if existing == id {
			return true
		}
	}
	return false
}

// Sanitized returns a copy of the record with the idempotency ledger stripped.
// Externally returned records must never expose the ledger.
func (j *JobRecord) Sanitized() *JobRecord {
	if j == nil {
		return nil
	}
	out := *j
	out.ProcessedWebhookIDs = nil
	return &out
}

// Fingerprint computes the request content fingerprint over the prompt and any
// system instructions.
func Fingerprint(prompt, system string) string {
	h := sha256.New()
	h.Write([]byte(prompt))
	h.Write([]byte{0})
	h.Write([]byte(system))
	return hex.EncodeToString(h.Sum(nil))
}

// TruncateAux returns a copy of the auxiliary data with oversized string
// values cut at AuxValueLimit runes and marked. Nested maps are truncated one
// level deep; other value types pass through unchanged.
func TruncateAux(aux map[string]any) map[string]any {
	if aux == nil {
		return nil
	}
	out := make(map[string]any, len(aux))
	for k, v := range aux {
		switch val := v.(type) {
		case string:
			out[k] = truncateString(val)
		case map[string]any:
			nested := make(map[string]any, len(val))
			for nk, nv := range val {
				if s, ok := nv.(string); ok {
					nested[nk] = truncateString(s)
				} else {
					nested[nk] = nv
				}
			}
			out[k] = nested
		default:
			out[k] = v
		}
	}
	return out
}

func truncateString(s string) string {
	runes := []rune(s)
	if len(runes) <= AuxValueLimit {
		return s
	}
	return string(runes[:AuxValueLimit]) + TruncationMarker
}

// analysisPayload is the JSON document an analysis job's output text is
// expected to contain.
type analysisPayload struct {
	Summary             string   `json:"summary"`
	Plan                string   `json:"plan"`
	KnowledgeReferences []string `json:"knowledgeReferences"`
}

// ShapeResult builds the type-specific result payload from extracted provider
// output text. Analysis output is parsed as a structured JSON document when
// possible; otherwise the raw text stands in as the summary.
func ShapeResult(jobType JobType, text string) *JobResult {
	result := &JobResult{RawText: text}

	switch jobType {
	case JobTypeAnalysis:
		var payload analysisPayload
		if err := json.Unmarshal([]byte(text), &payload); err == nil && payload.Summary != "" {
			result.Summary = payload.Summary
			result.Plan = payload.Plan
			result.KnowledgeReferences = payload.KnowledgeReferences
		} else {
			result.Summary = text
		}
	case JobTypeResponse:
		result.Reply = text
	}

	return result
}
