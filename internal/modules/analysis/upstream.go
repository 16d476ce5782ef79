package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pdplens/pdplens/internal/pkg/metrics"
	"go.uber.org/zap"
)

// Endpoint paths exposed by the analysis engine.
const (
	endpointFindCompetitor = "/find-competitor"
	endpointAnalyze        = "/analyze"
)

// Engine error bodies pass through verbatim, but an HTML error page from a
// proxy in between should not.
const maxErrorDetailBytes = 2048

// UpstreamClient issues JSON calls against the analysis engine. Calls are
// never retried; a slow call is cancelled when its budget elapses.
type UpstreamClient struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
	metrics *metrics.Manager
}

// UpstreamOption configures an UpstreamClient.
type UpstreamOption func(*UpstreamClient)

// WithUpstreamLogger sets the logger for the upstream client.
func WithUpstreamLogger(l *zap.Logger) UpstreamOption {
	return func(c *UpstreamClient) {
		if l != nil {
			c.logger = l.Named("UpstreamClient")
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) UpstreamOption {
	return func(c *UpstreamClient) {
		if h != nil {
			c.http = h
		}
	}
}

// WithUpstreamMetrics sets the metrics manager for the upstream client.
func WithUpstreamMetrics(m *metrics.Manager) UpstreamOption {
	return func(c *UpstreamClient) {
		if m != nil {
			c.metrics = m
		}
	}
}

func NewUpstreamClient(baseURL string, opts ...UpstreamOption) *UpstreamClient {
	c := &UpstreamClient{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{},
		logger:  zap.NewNop(),
		metrics: metrics.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Call posts payload to path and decodes the engine's JSON answer into out.
// The call gets its own deadline of timeout and is also aborted when ctx is
// cancelled.
func (c *UpstreamClient) Call(ctx context.Context, path string, payload, out interface{}, timeout time.Duration) error {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := c.call(callCtx, path, payload, out)
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = outcomeForError(err)
		c.logger.Warn("engine call failed",
			zap.String("path", path),
			zap.String("outcome", outcome),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
	}
	c.metrics.ObserveUpstream(strings.TrimPrefix(path, "/"), outcome, time.Since(start))
	return err
}

func (c *UpstreamClient) call(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return timeoutError(path, err)
		}
		return transportError(path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(ctx, err) {
			return timeoutError(path, err)
		}
		return transportError(path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return upstreamError(path, resp.StatusCode, extractDetail(raw))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return decodeError(path, err)
	}
	return nil
}

// isTimeout classifies budget exhaustion. net/http wraps deadline errors
// differently depending on which transport stage hit them, so the message
// is checked as well.
func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "deadline") ||
		strings.Contains(msg, "Client.Timeout")
}

// extractDetail pulls a human-readable message out of an engine error body.
// The engine reports errors as {"detail": ...}; other shapes fall back to
// the raw body.
func extractDetail(raw []byte) string {
	var probe struct {
		Detail  json.RawMessage `json:"detail"`
		Error   string          `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(raw, &probe); err == nil {
		if len(probe.Detail) > 0 {
			var s string
			if json.Unmarshal(probe.Detail, &s) == nil {
				return s
			}
			return string(probe.Detail)
		}
		if probe.Error != "" {
			return probe.Error
		}
		if probe.Message != "" {
			return probe.Message
		}
	}

	detail := strings.TrimSpace(string(raw))
	if len(detail) > maxErrorDetailBytes {
		detail = detail[:maxErrorDetailBytes]
	}
	return detail
}

func outcomeForError(err error) string {
	switch {
	case errors.Is(err, ErrTimeout):
		return metrics.OutcomeTimeout
	case errors.Is(err, ErrUpstream):
		return metrics.OutcomeUpstream
	case errors.Is(err, ErrDecode):
		return metrics.OutcomeDecode
	default:
		return metrics.OutcomeTransport
	}
}
