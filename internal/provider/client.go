// Package provider talks to the external completion provider that runs the
// asynchronous LLM jobs this service tracks.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/assistly/llm-jobs/internal/errors"
)

// DefaultTimeout bounds provider calls when no timeout is configured.
const DefaultTimeout = 15 * time.Second

// Client is the provider surface the dispatcher and job service depend on.
type Client interface {
	// RetrieveJob fetches the artifact for a provider job id.
	RetrieveJob(ctx context.Context, jobID string) (*Artifact, error)
	// CancelJob asks the provider to stop an in-flight job.
	CancelJob(ctx context.Context, jobID string) error
}

// Options configures the HTTP provider client.
type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// HTTPClient implements Client against the provider's REST API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient builds a provider client.
func NewHTTPClient(opts Options) (*HTTPClient, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, apperrors.Validation("provider base url is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, apperrors.Validationf("provider base url: %v", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "provider_client")
	}

	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  strings.TrimSpace(opts.APIKey),
		client:  hc,
		logger:  logger,
	}, nil
}

// RetrieveJob fetches the artifact for a provider job id.
func (c *HTTPClient) RetrieveJob(ctx context.Context, jobID string) (*Artifact, error) {
	resp, err := c.do(ctx, http.MethodGet, c.jobURL(jobID), "retrieve job")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort drain

	var artifact Artifact
	if err := json.NewDecoder(resp.Body).Decode(&artifact); err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeProvider, "decode artifact for job %s", jobID)
	}
	c.logger.DebugContext(ctx, "retrieved provider artifact", "job_id", jobID, "status", artifact.Status)
	return &artifact, nil
}

// CancelJob asks the provider to stop an in-flight job.
func (c *HTTPClient) CancelJob(ctx context.Context, jobID string) error {
	resp, err := c.do(ctx, http.MethodPost, c.jobURL(jobID)+"/cancel", "cancel job")
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort drain

	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		c.logger.DebugContext(ctx, "drain cancel response failed", "job_id", jobID, "error", err)
	}
	return nil
}

func (c *HTTPClient) jobURL(jobID string) string {
	return c.baseURL + "/jobs/" + url.PathEscape(jobID)
}

func (c *HTTPClient) do(ctx context.Context, method, target, action string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeProvider, "%s request", action)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeProvider, "%s", action)
	}

	if resp.StatusCode == http.StatusNotFound {
		c.closeBody(resp)
		return nil, apperrors.NotFoundf("%s: provider has no such job", action)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := readErrorBody(resp)
		c.closeBody(resp)
		return nil, apperrors.Provider(fmt.Sprintf("%s: provider returned %s%s", action, resp.Status, detail))
	}
	return resp, nil
}

func (c *HTTPClient) closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		c.logger.Debug("close provider response body failed", "error", err)
	}
}

func readErrorBody(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if err != nil {
		return ""
	}
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}
	return ": " + trimmed
}
