package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/assistly/llm-jobs/internal/errors"
)

func TestNewHTTPClientRequiresBaseURL(t *testing.T) {
	t.Parallel()

	_, err := NewHTTPClient(Options{BaseURL: "  "})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestRetrieveJob(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/jobs/job_abc", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		require.NoError(t, json.NewEncoder(w).Encode(Artifact{
			ID:     "job_abc",
			Status: ArtifactStatusCompleted,
			Output: []any{
				map[string]any{
					"type": "message",
					"content": []any{
						map[string]any{"type": "output_text", "text": "hello"},
					},
				},
			},
		}))
	}))
	defer srv.Close()

	client, err := NewHTTPClient(Options{BaseURL: srv.URL, APIKey: "sk-test"})
	require.NoError(t, err)

	artifact, err := client.RetrieveJob(context.Background(), "job_abc")
	require.NoError(t, err)
	assert.Equal(t, ArtifactStatusCompleted, artifact.Status)

	text, err := artifact.OutputText("")
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
}

func TestRetrieveJobNotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client, err := NewHTTPClient(Options{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.RetrieveJob(context.Background(), "job_missing")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestRetrieveJobProviderError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"overloaded"}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client, err := NewHTTPClient(Options{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.RetrieveJob(context.Background(), "job_abc")
	require.Error(t, err)
	assert.True(t, apperrors.IsProvider(err))
	assert.Contains(t, err.Error(), "overloaded")
}

func TestCancelJob(t *testing.T) {
	t.Parallel()

	var path, method string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		method = r.Method
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := NewHTTPClient(Options{BaseURL: srv.URL + "/"})
	require.NoError(t, err)

	require.NoError(t, client.CancelJob(context.Background(), "job_abc"))
	assert.Equal(t, "/jobs/job_abc/cancel", path)
	assert.Equal(t, http.MethodPost, method)
}

func TestArtifactOutputText(t *testing.T) {
	t.Parallel()

	t.Run("joins multiple text parts", func(t *testing.T) {
		artifact := &Artifact{Output: []any{
			map[string]any{"type": "reasoning", "content": []any{}},
			map[string]any{
				"type": "message",
				"content": []any{
					map[string]any{"type": "output_text", "text": "first"},
					map[string]any{"type": "refusal", "refusal": "nope"},
					map[string]any{"type": "output_text", "text": "second"},
				},
			},
		}}

		text, err := artifact.OutputText("")
		require.NoError(t, err)
		assert.Equal(t, "first\nsecond", text)
	})

	t.Run("empty output yields empty string", func(t *testing.T) {
		artifact := &Artifact{}
		text, err := artifact.OutputText("")
		require.NoError(t, err)
		assert.Empty(t, text)
	})

	t.Run("custom expression", func(t *testing.T) {
		artifact := &Artifact{Output: map[string]any{"text": "direct"}}
		text, err := artifact.OutputText("output.text")
		require.NoError(t, err)
		assert.Equal(t, "direct", text)
	})

	t.Run("invalid expression errors", func(t *testing.T) {
		artifact := &Artifact{Output: []any{}}
		_, err := artifact.OutputText("output[?")
		require.Error(t, err)
	})
}
