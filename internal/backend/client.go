// Package backend is a thin JSON client for the motion-control REST service.
// The bridge treats that service as opaque: it substitutes arguments into
// fixed URL templates and hands payloads back without interpreting device
// semantics.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client issues requests against the motion-control service.
type Client struct {
	base string
	http *http.Client
}

// New creates a client for the service at baseURL. Every call is bounded by
// timeout.
func New(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("backend url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("backend url %q: scheme and host required", baseURL)
	}
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: timeout},
	}, nil
}

// Do issues one request. path must already have its template segments
// substituted. body, when non-nil, is serialized as JSON. The decoded JSON
// payload is returned; a 2xx response that does not parse as JSON is returned
// as its raw text. Non-2xx statuses and transport failures are errors with a
// normalized message.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body interface{}) (interface{}, error) {
	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend call %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read backend response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("backend returned %s for %s %s: %s",
			resp.Status, method, path, excerpt(data))
	}

	if len(data) == 0 {
		return nil, nil
	}
	var payload interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		// Not JSON; hand it back as opaque text.
		return string(data), nil
	}
	return payload, nil
}

// Reachable reports whether the service answers its ping endpoint.
func (c *Client) Reachable(ctx context.Context) bool {
	_, err := c.Do(ctx, http.MethodGet, "/api/ping", nil, nil)
	return err == nil
}

// BaseURL returns the configured service address.
func (c *Client) BaseURL() string {
	return c.base
}

func excerpt(data []byte) string {
	s := strings.TrimSpace(string(data))
	if len(s) > 200 {
		return s[:200] + "..."
	}
	if s == "" {
		return "(empty body)"
	}
	return s
}
