// Package provider contains clients for external generation services
// implementing the domain.ProviderClient contract.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
)

// Options controls how an HTTP provider client is configured.
type Options struct {
	Name       string
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Logger     *zerolog.Logger
}

// HTTPClient talks to a generation provider exposing the common async-job
// shape: POST /v1/jobs returns a job id, GET /v1/jobs/{id} reports status.
// Each call is a single attempt; retry policy lives with the poll scheduler.
type HTTPClient struct {
	name       string
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     zerolog.Logger
}

type submitResponse struct {
	ID    string `json:"id"`
	JobID string `json:"job_id"`
}

type statusResponse struct {
	Status string `json:"status"`
	Output struct {
		URL string `json:"url"`
	} `json:"output"`
	Error string `json:"error"`
}

// NewHTTPClient constructs a provider client. A nil HTTP client gets a
// reusable one with a conservative timeout.
func NewHTTPClient(opts Options) (*HTTPClient, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("provider: base url is required")
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	var logger zerolog.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	} else {
		logger = zerolog.New(io.Discard)
	}
	name := opts.Name
	if name == "" {
		name = "default"
	}
	return &HTTPClient{
		name:       name,
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(opts.APIKey),
		httpClient: client,
		logger:     logger,
	}, nil
}

// Name returns the configured provider name.
func (c *HTTPClient) Name() string {
	return c.name
}

func (c *HTTPClient) Submit(ctx context.Context, payload json.RawMessage) (string, error) {
	body := bytes.NewReader(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/jobs", body)
	if err != nil {
		return "", fmt.Errorf("provider %s: build submit request: %w", c.name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("provider %s: submit: %w", c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("provider %s: submit: %s", c.name, httpErrorDetail(resp))
	}

	var out submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("provider %s: decode submit response: %w", c.name, err)
	}
	id := out.ID
	if id == "" {
		id = out.JobID
	}
	if id == "" {
		return "", fmt.Errorf("provider %s: submit response carries no job id", c.name)
	}
	c.logger.Debug().Str("provider", c.name).Str("provider_job_id", id).Msg("provider: job submitted")
	return id, nil
}

func (c *HTTPClient) FetchStatus(ctx context.Context, providerJobID string) (domain.ProviderStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/jobs/"+providerJobID, nil)
	if err != nil {
		return domain.ProviderStatus{}, fmt.Errorf("provider %s: build status request: %w", c.name, err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.ProviderStatus{}, fmt.Errorf("provider %s: fetch status: %w", c.name, err)
	}
	defer resp.Body.Close()

	// A 4xx here is the provider's final word on this job (gone, expired,
	// never existed); retrying cannot change it.
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return domain.ProviderStatus{State: domain.ProviderStateFailed, Reason: httpErrorDetail(resp)}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.ProviderStatus{}, fmt.Errorf("provider %s: fetch status: %s", c.name, httpErrorDetail(resp))
	}

	var out statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.ProviderStatus{}, fmt.Errorf("provider %s: decode status response: %w", c.name, err)
	}
	return mapStatus(out), nil
}

func (c *HTTPClient) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// mapStatus folds the provider's status vocabulary into the three states the
// orchestrator cares about. Unknown statuses count as processing so a new
// provider-side state never fails a job prematurely.
func mapStatus(resp statusResponse) domain.ProviderStatus {
	switch strings.ToLower(strings.TrimSpace(resp.Status)) {
	case "completed", "succeeded", "success", "done":
		return domain.ProviderStatus{State: domain.ProviderStateCompleted, ArtifactRef: resp.Output.URL}
	case "failed", "error", "rejected", "cancelled":
		reason := resp.Error
		if reason == "" {
			reason = "provider reported failure"
		}
		return domain.ProviderStatus{State: domain.ProviderStateFailed, Reason: reason}
	default:
		return domain.ProviderStatus{State: domain.ProviderStateProcessing}
	}
}

func httpErrorDetail(resp *http.Response) string {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	detail := strings.TrimSpace(string(snippet))
	if detail == "" {
		return resp.Status
	}
	return fmt.Sprintf("%s: %s", resp.Status, detail)
}

var _ domain.ProviderClient = (*HTTPClient)(nil)
