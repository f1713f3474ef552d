package testsessions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// HTTPClient wraps http.Client with timeout
type HTTPClient struct {
	client  *http.Client
	timeout time.Duration
}

// newHTTPClient creates a new HTTP client with timeout
func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: timeout,
		},
		timeout: timeout,
	}
}

// Get performs a GET request
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with JSON body on behalf of a visitor.
func (c *HTTPClient) Post(ctx context.Context, url, visitorID string, body interface{}) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Visitor-Id", visitorID)
	return c.client.Do(req)
}

// readResponseBody reads and closes the response body
func readResponseBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// runVisits plays every visit against the service using a worker pool.
func runVisits(ctx context.Context, config *Config, visits []Visit, stats *Stats) ([]Result, error) {
	log.Printf("Running %d visits with %d workers...", len(visits), config.Workers)

	client := newHTTPClient(config.Timeout)

	var (
		completed int64
		failed    int64
	)

	visitChan := make(chan int, config.Workers*VisitChannelMultiplier)
	results := make([]Result, len(visits))
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for idx := range visitChan {
				select {
				case <-ctx.Done():
					return
				default:
					result := playVisit(ctx, client, config, visits[idx])
					results[idx] = result

					if result.Failed {
						atomic.AddInt64(&failed, 1)
					} else {
						atomic.AddInt64(&completed, 1)
					}

					if config.Verbose {
						log.Printf("visit %s: variant=%s source=%s sticky=%v",
							result.Visit.VisitorID, result.First.VariantID,
							result.First.TrafficSource, result.Sticky)
					}
				}
			}
		}()
	}

	go func() {
		defer close(visitChan)
		for i := range visits {
			select {
			case <-ctx.Done():
				return
			case visitChan <- i:
			}
		}
	}()

	wg.Wait()

	stats.VisitsCompleted = int(atomic.LoadInt64(&completed))
	stats.VisitsFailed = int(atomic.LoadInt64(&failed))

	log.Printf("Visit playback completed: %d ok, %d failed", stats.VisitsCompleted, stats.VisitsFailed)
	return results, nil
}

// playVisit drives one full session lifecycle and then re-opens a
// second session for the same visitor to check assignment stickiness.
func playVisit(ctx context.Context, client *HTTPClient, config *Config, visit Visit) Result {
	result := Result{Visit: visit}

	first, err := startSession(ctx, client, config, visit)
	if err != nil {
		result.Failed = true
		result.Message = err.Error()
		return result
	}
	result.First = first

	// Scroll to the bottom in a few hops, expand a FAQ, then leave.
	base := config.BaseURL + "/v1/sessions/" + first.SessionID
	for _, pos := range []float64{500, 1200, 2400} {
		_ = postBeacon(ctx, client, visit.VisitorID, base+"/scroll", map[string]interface{}{
			"position": pos, "page_height": 3000, "viewport": 600,
		})
	}
	_ = postBeacon(ctx, client, visit.VisitorID, base+"/events", map[string]interface{}{
		"name": "faq_expand", "params": map[string]string{"question": "pricing"},
	})
	_ = postBeacon(ctx, client, visit.VisitorID, base+"/leave", map[string]interface{}{})

	second, err := startSession(ctx, client, config, visit)
	if err != nil {
		result.Failed = true
		result.Message = err.Error()
		return result
	}
	result.Second = second
	result.Sticky = first.VariantID == second.VariantID

	_ = postBeacon(ctx, client, visit.VisitorID, config.BaseURL+"/v1/sessions/"+second.SessionID+"/leave", map[string]interface{}{})

	return result
}

// startSession opens a session and decodes the assignment.
func startSession(ctx context.Context, client *HTTPClient, config *Config, visit Visit) (SessionInfo, error) {
	resp, err := client.Post(ctx, config.BaseURL+"/v1/sessions", visit.VisitorID, map[string]string{
		"experiment": config.Experiment,
		"competitor": config.Competitor,
		"referrer":   visit.Referrer,
		"url":        visit.URL,
	})
	if err != nil {
		return SessionInfo{}, fmt.Errorf("start session: %w", err)
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return SessionInfo{}, fmt.Errorf("read session response: %w", err)
	}
	if resp.StatusCode != StatusCreated {
		return SessionInfo{}, fmt.Errorf("start session: unexpected status %d", resp.StatusCode)
	}

	var info SessionInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return SessionInfo{}, fmt.Errorf("decode session response: %w", err)
	}
	return info, nil
}

// postBeacon fires one fire-and-forget beacon.
func postBeacon(ctx context.Context, client *HTTPClient, visitorID, url string, body interface{}) error {
	resp, err := client.Post(ctx, url, visitorID, body)
	if err != nil {
		return fmt.Errorf("post beacon: %w", err)
	}
	_, _ = readResponseBody(resp)
	if resp.StatusCode != StatusAccepted {
		return fmt.Errorf("post beacon: unexpected status %d", resp.StatusCode)
	}
	return nil
}
