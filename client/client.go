// Package client is the Go SDK for the pdplens HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pdplens/pdplens/api"
)

const (
	// DefaultTimeout bounds a single API call. Comparison runs on a budget
	// of several minutes server-side, so the client allows more.
	DefaultTimeout = 10 * time.Minute

	maxResponseBytes = 4 << 20
)

// APIError is a non-2xx or failure-envelope response from the service.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("pdplens: status %d: %s", e.Status, e.Message)
}

// HealthStatus is the body of the liveness probe.
type HealthStatus struct {
	Status   string `json:"status"`
	Database bool   `json:"database"`
	Redis    bool   `json:"redis"`
}

// Job is the wire view of an async analysis job.
type Job struct {
	ID        string          `json:"id"`
	Status    string          `json:"status"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Client talks to a pdplens deployment.
type Client struct {
	baseURL string
	token   string
	trial   bool
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets the bearer token sent on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = strings.TrimSpace(token) }
}

// WithTrial switches the client to the unauthenticated trial endpoints.
func WithTrial() Option {
	return func(c *Client) { c.trial = true }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithTimeout sets the per-call timeout on the underlying HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http = &http.Client{Timeout: d}
		}
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// DiscoverCompetitor finds the benchmark competitor for a product page.
func (c *Client) DiscoverCompetitor(ctx context.Context, sourceURL string) (*api.CompetitorDiscovery, error) {
	var out api.CompetitorDiscovery
	req := api.AnalysisRequest{SourceURL: sourceURL}
	if err := c.post(ctx, c.analysisPath("/discover"), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ComparePages scores a source page against a reference page.
func (c *Client) ComparePages(ctx context.Context, sourceURL, referenceURL string) (*api.AnalysisReport, error) {
	var out api.AnalysisReport
	req := api.AnalysisRequest{SourceURL: sourceURL, ReferenceURL: referenceURL}
	if err := c.post(ctx, c.analysisPath("/compare"), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AnalyzeFull runs discovery and comparison in one call. The combined body
// carries its own success flag, so a stage failure still decodes.
func (c *Client) AnalyzeFull(ctx context.Context, sourceURL string) (*api.CombinedAnalysis, error) {
	req := api.AnalysisRequest{SourceURL: sourceURL}
	var out api.CombinedAnalysis
	if err := c.postRaw(ctx, c.analysisPath("/full"), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitAnalysisJob queues a full analysis to run in the background.
func (c *Client) SubmitAnalysisJob(ctx context.Context, sourceURL string) (*Job, error) {
	var out Job
	req := api.AnalysisRequest{SourceURL: sourceURL}
	if err := c.post(ctx, "/api/v1/analysis/jobs", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AnalysisJob fetches the state of a previously submitted job.
func (c *Client) AnalysisJob(ctx context.Context, id string) (*Job, error) {
	var out Job
	if err := c.get(ctx, "/api/v1/analysis/jobs/"+id, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health probes the deployment. A degraded deployment is not an error;
// inspect Status on the result.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out HealthStatus
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return nil, fmt.Errorf("invalid health response: %w", err)
	}
	return &out, nil
}

func (c *Client) analysisPath(suffix string) string {
	if c.trial {
		return "/api/v1/trial/analysis" + suffix
	}
	return "/api/v1/analysis" + suffix
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	resp, err := c.send(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeEnvelope(resp, out)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	resp, err := c.send(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeEnvelope(resp, out)
}

// postRaw decodes the body directly, without the success envelope.
func (c *Client) postRaw(ctx context.Context, path string, body, out interface{}) error {
	resp, err := c.send(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errorFromBody(resp.StatusCode, raw)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("invalid response: %w", err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return c.http.Do(req)
}

func decodeEnvelope(resp *http.Response, out interface{}) error {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return err
	}

	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return errorFromBody(resp.StatusCode, raw)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !env.Success {
		msg := env.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("invalid response: %w", err)
		}
	}
	return nil
}

func errorFromBody(status int, raw []byte) error {
	if status >= 200 && status < 300 {
		return fmt.Errorf("invalid response body")
	}
	msg := strings.TrimSpace(string(raw))
	if len(msg) > 512 {
		msg = msg[:512]
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{Status: status, Message: msg}
}
