package httpx

import (
	"net/http"

	"github.com/assistly/llm-jobs/internal/service"
)

// SweepHandlers exposes the retention sweep as an on-demand maintenance
// endpoint for deployments that trigger sweeps from an external scheduler
// instead of the background loop.
type SweepHandlers struct {
	Svc *service.SweeperService
}

type sweepResponse struct {
	Success bool  `json:"success"`
	Pruned  int64 `json:"pruned"`
}

// Trigger runs one sweep and reports how many records were pruned.
func (h *SweepHandlers) Trigger(w http.ResponseWriter, r *http.Request) {
	pruned, err := h.Svc.RunOnce(r.Context())
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "sweep_failed", Err: err})
		return
	}
	WriteJSON(w, http.StatusOK, sweepResponse{Success: true, Pruned: pruned})
}
