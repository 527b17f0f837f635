// Package httpx provides the HTTP surface: JSON helpers, middleware, handlers
// and routing.
package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/assistly/llm-jobs/internal/errors"
)

// DecodeJSON decodes JSON from the request body into the destination and
// handles errors. Returns true if successful, false if an error response was
// already written.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_json", Err: err})
		return false
	}
	return true
}

// WriteJSON writes a JSON response with the given status code and data.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := buf.WriteTo(w); err != nil {
		// Response writer errors (e.g., client disconnect) can't be recovered from here.
		return
	}
}

// ErrorParams groups parameters for WriteError.
type ErrorParams struct {
	Code    int
	ErrCode string
	Err     error
}

// WriteError writes a JSON error response using ErrorParams.
func WriteError(w http.ResponseWriter, p ErrorParams) {
	WriteJSON(w, p.Code, map[string]any{"success": false, "error": p.ErrCode, "message": p.Err.Error()})
}

// WriteAppError maps an application error to its HTTP status and writes it.
func WriteAppError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	errCode := "internal"

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		errCode = string(appErr.Code)
		switch appErr.Code {
		case apperrors.ErrCodeNotFound:
			code = http.StatusNotFound
		case apperrors.ErrCodeConflict:
			code = http.StatusConflict
		case apperrors.ErrCodeValidation:
			code = http.StatusBadRequest
		case apperrors.ErrCodeUnauthorized:
			code = http.StatusUnauthorized
		case apperrors.ErrCodeProvider:
			code = http.StatusBadGateway
		case apperrors.ErrCodeTimeout:
			code = http.StatusGatewayTimeout
		}
	}

	WriteError(w, ErrorParams{Code: code, ErrCode: errCode, Err: err})
}
