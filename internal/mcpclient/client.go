// Package mcpclient speaks the bridge's JSON-RPC endpoint from the gateway
// side: one session per client, tool discovery, tool calls, teardown.
package mcpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mkessler-io/motionbridge/internal/mcp"
	"github.com/mkessler-io/motionbridge/internal/tools"
)

// Client holds one bridge session. It is safe for concurrent use, including
// a Terminate racing in-flight calls.
type Client struct {
	endpoint string
	http     *http.Client

	mu        sync.Mutex
	sessionID string
	seq       atomic.Int64
}

// New validates the bridge endpoint URL. No network traffic happens until
// Initialize.
func New(endpoint string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("bridge endpoint %q: %w", endpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("bridge endpoint %q: scheme must be http or https", endpoint)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("bridge endpoint %q: missing host", endpoint)
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		http:     &http.Client{Timeout: timeout},
	}, nil
}

// SessionID returns the live session id, empty before Initialize.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *Client) setSession(id string) {
	c.mu.Lock()
	c.sessionID = id
	c.mu.Unlock()
}

// Initialize opens a session and sends the initialized notification. The
// session id comes back in the response header, not the body.
func (c *Client) Initialize(ctx context.Context) error {
	resp, header, err := c.post(ctx, "", "initialize", map[string]interface{}{
		"protocolVersion": mcp.ProtocolVersion,
		"clientInfo":      map[string]string{"name": "motionbridge-gateway"},
		"capabilities":    map[string]interface{}{},
	})
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	if resp.Error != nil {
		return fmt.Errorf("initialize: bridge error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	id := header.Get(mcp.SessionHeader)
	if id == "" {
		return fmt.Errorf("initialize: bridge returned no %s header", mcp.SessionHeader)
	}
	c.setSession(id)

	if _, _, err := c.post(ctx, id, "notifications/initialized", nil); err != nil {
		return fmt.Errorf("initialized notification: %w", err)
	}
	return nil
}

// ListTools fetches the bridge's tool inventory and converts each wire
// schema into a local descriptor.
func (c *Client) ListTools(ctx context.Context) ([]tools.Descriptor, error) {
	resp, _, err := c.post(ctx, c.SessionID(), "tools/list", nil)
	if err != nil {
		return nil, fmt.Errorf("tools/list: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("tools/list: bridge error %d: %s", resp.Error.Code, resp.Error.Message)
	}

	var payload struct {
		Tools []mcp.Tool `json:"tools"`
	}
	if err := remarshal(resp.Result, &payload); err != nil {
		return nil, fmt.Errorf("tools/list result: %w", err)
	}

	descs := make([]tools.Descriptor, 0, len(payload.Tools))
	for _, t := range payload.Tools {
		d, err := tools.ParseInputSchema(t.Name, t.Description, t.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("tool %q schema: %w", t.Name, err)
		}
		descs = append(descs, d)
	}
	return descs, nil
}

// CallTool invokes one tool over the session. A CallToolResult with IsError
// set is returned as-is, not as a Go error; transport and protocol failures
// are errors.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	resp, _, err := c.post(ctx, c.SessionID(), "tools/call", mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		return nil, fmt.Errorf("tools/call %s: %w", name, err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("tools/call %s: bridge error %d: %s", name, resp.Error.Code, resp.Error.Message)
	}

	var result mcp.CallToolResult
	if err := remarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("tools/call %s result: %w", name, err)
	}
	return &result, nil
}

// Ping probes the session. A session-not-found error means the bridge
// evicted us and the caller should re-initialize.
func (c *Client) Ping(ctx context.Context) error {
	resp, _, err := c.post(ctx, c.SessionID(), "ping", nil)
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return fmt.Errorf("ping: bridge error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	return nil
}

// Terminate tears the session down. Safe to call on a never-initialized
// client.
func (c *Client) Terminate(ctx context.Context) error {
	id := c.SessionID()
	if id == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set(mcp.SessionHeader, id)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("terminate: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	c.setSession("")
	return nil
}

func (c *Client) post(ctx context.Context, session, method string, params interface{}) (*mcp.Response, http.Header, error) {
	body := map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  method,
	}
	// Notifications carry no id.
	if !strings.HasPrefix(method, "notifications/") {
		body["id"] = c.seq.Add(1)
	}
	if params != nil {
		body["params"] = params
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if session != "" {
		req.Header.Set(mcp.SessionHeader, session)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusAccepted || resp.StatusCode == http.StatusNoContent {
		return &mcp.Response{JSONRPC: "2.0"}, resp.Header, nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, nil, err
	}
	var rpc mcp.Response
	if err := json.Unmarshal(data, &rpc); err != nil {
		return nil, nil, fmt.Errorf("bridge returned %s with non-JSON body", resp.Status)
	}
	return &rpc, resp.Header, nil
}

func remarshal(from, to interface{}) error {
	raw, err := json.Marshal(from)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, to)
}
