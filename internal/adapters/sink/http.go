package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/okian/cohort/internal/domain/model"
)

// Default HTTP sink configuration constants.
const (
	defaultRequestTimeout = 5 * time.Second
)

// HTTP posts each event as a JSON document to a collector endpoint.
// One event per request, no batching, no retry: the worst failure mode
// is a missing data point.
type HTTP struct {
	url    string
	client *http.Client
}

// HTTPOption applies a configuration option to the HTTP sink.
type HTTPOption func(*HTTP)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(s *HTTP) {
		if client != nil {
			s.client = client
		}
	}
}

// NewHTTP creates an HTTP sink posting to url.
func NewHTTP(url string, opts ...HTTPOption) *HTTP {
	s := &HTTP{
		url:    url,
		client: &http.Client{Timeout: defaultRequestTimeout},
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Deliver posts the event. Non-2xx responses count as delivery errors.
func (s *HTTP) Deliver(ctx context.Context, e model.AnalyticsEvent) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post event: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("post event: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Name identifies the sink.
func (s *HTTP) Name() string { return "http" }

var _ Sink = (*HTTP)(nil)
