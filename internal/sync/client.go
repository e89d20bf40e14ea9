package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Pusher transmits a flush payload to the remote endpoint. The call is
// treated as atomic: any error means the whole payload is retried later.
type Pusher interface {
	Push(ctx context.Context, payload Payload) error
}

// HTTPPusher posts payloads as JSON to a single remote endpoint.
type HTTPPusher struct {
	endpoint string
	client   *http.Client
}

// NewHTTPPusher constructs a pusher for the given endpoint URL.
func NewHTTPPusher(endpoint string) *HTTPPusher {
	return &HTTPPusher{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Push sends the payload. Non-2xx responses are errors.
func (p *HTTPPusher) Push(ctx context.Context, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("post changes: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("remote returned %s", resp.Status)
	}
	return nil
}
