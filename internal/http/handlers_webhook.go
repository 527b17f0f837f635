package httpx

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/assistly/llm-jobs/internal/core"
	"github.com/assistly/llm-jobs/internal/webhook"
)

// maxWebhookBody caps the delivery payload size.
const maxWebhookBody = 1 << 20

// WebhookHandlers serves the provider callback ingress.
type WebhookHandlers struct {
	Dispatcher *webhook.Dispatcher
	Secrets    core.SecretSource
	Logger     *slog.Logger
}

// Receive handles one provider delivery. The body is passed to verification
// exactly as received; any mutation would break the signature.
func (h *WebhookHandlers) Receive(w http.ResponseWriter, r *http.Request) {
	secret, err := h.Secrets.WebhookSecret(r.Context())
	if err != nil || secret == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "secret_not_configured",
			Err:     errors.New("no webhook signing secret is configured"),
		})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "unreadable_body", Err: err})
		return
	}

	ack, err := h.Dispatcher.Process(r.Context(), webhook.ProcessParams{
		Body:   body,
		Header: r.Header,
		Secret: secret,
	})
	if err != nil {
		h.writeDispatchError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, ack)
}

func (h *WebhookHandlers) writeDispatchError(w http.ResponseWriter, r *http.Request, err error) {
	errCode := ""
	switch {
	case errors.Is(err, webhook.ErrMissingSignature):
		errCode = "missing_signature"
	case errors.Is(err, webhook.ErrMalformedSignature):
		errCode = "malformed_signature"
	case errors.Is(err, webhook.ErrStaleTimestamp):
		errCode = "stale_timestamp"
	case errors.Is(err, webhook.ErrVerificationFailed):
		errCode = "verification_failed"
	}

	if errCode != "" {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: errCode, Err: err})
		return
	}

	if h.Logger != nil {
		h.Logger.ErrorContext(r.Context(), "webhook processing failed", "error", err)
	}
	WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "internal", Err: err})
}
