package mcpclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mkessler-io/motionbridge/internal/backend"
	"github.com/mkessler-io/motionbridge/internal/mcp"
	"github.com/mkessler-io/motionbridge/internal/tools"
)

// setupClient wires a real bridge handler behind httptest and a client
// pointed at it.
func setupClient(t *testing.T) *Client {
	t.Helper()

	controller := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	t.Cleanup(controller.Close)

	bc, err := backend.New(controller.URL, 5*time.Second)
	if err != nil {
		t.Fatalf("backend.New() error = %v", err)
	}

	registry := tools.NewRegistry(nil)
	registry.Populate(context.Background())
	dispatcher := tools.NewDispatcher(registry, bc, nil)
	sessions := mcp.NewSessionRegistry()
	t.Cleanup(sessions.Close)

	srv := httptest.NewServer(mcp.NewHandler(sessions, registry, dispatcher, "motionbridge", "test"))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, 5*time.Second)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestNewRejectsBadEndpoints(t *testing.T) {
	for _, u := range []string{"", "ftp://bridge", "bridge:8720"} {
		if _, err := New(u, time.Second); err == nil {
			t.Errorf("New(%q) error = nil, want error", u)
		}
	}
}

func TestInitializeAndListTools(t *testing.T) {
	c := setupClient(t)
	ctx := context.Background()

	if err := c.Initialize(ctx); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if c.SessionID() == "" {
		t.Fatal("SessionID() empty after Initialize()")
	}

	descs, err := c.ListTools(ctx)
	if err != nil {
		t.Fatalf("ListTools() error = %v", err)
	}
	if len(descs) != len(tools.Catalog()) {
		t.Errorf("tools = %d, want %d", len(descs), len(tools.Catalog()))
	}

	// The schema round trip preserves the parameter contract.
	for _, d := range descs {
		if d.Name != "move_axis" {
			continue
		}
		p, ok := d.Param("device")
		if !ok {
			t.Fatal("move_axis lost its device parameter")
		}
		if !p.Required {
			t.Error("device parameter not required after round trip")
		}
		if !p.EntityRef {
			t.Error("device parameter lost entity-reference role")
		}
	}
}

func TestCallToolOverSession(t *testing.T) {
	c := setupClient(t)
	ctx := context.Background()

	if err := c.Initialize(ctx); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	res, err := c.CallTool(ctx, "ping", map[string]interface{}{})
	if err != nil {
		t.Fatalf("CallTool() error = %v", err)
	}
	if res.IsError {
		t.Errorf("IsError = true, want false; content = %v", res.Content)
	}

	// Tool-level failures are surfaced in the result, not as Go errors.
	res, err = c.CallTool(ctx, "get_device_status", map[string]interface{}{"device": "servo-01"})
	if err != nil {
		t.Fatalf("CallTool() error = %v", err)
	}
	if !res.IsError {
		t.Error("IsError = false, want true for placeholder rejection")
	}
	if len(res.Content) == 0 || !strings.Contains(res.Content[0].Text, "placeholder") {
		t.Errorf("content = %v, want placeholder hint", res.Content)
	}
}

func TestCallWithoutInitialize(t *testing.T) {
	c := setupClient(t)

	if _, err := c.ListTools(context.Background()); err == nil {
		t.Error("ListTools() without session error = nil, want bridge error")
	}
}

func TestTerminate(t *testing.T) {
	c := setupClient(t)
	ctx := context.Background()

	if err := c.Initialize(ctx); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if err := c.Terminate(ctx); err != nil {
		t.Fatalf("Terminate() error = %v", err)
	}
	if c.SessionID() != "" {
		t.Error("SessionID() non-empty after Terminate()")
	}

	// Terminate on a never-initialized client is a no-op.
	fresh := setupClient(t)
	if err := fresh.Terminate(ctx); err != nil {
		t.Errorf("Terminate() on fresh client error = %v", err)
	}
}

func TestTerminateRacesInFlightCalls(t *testing.T) {
	c := setupClient(t)
	ctx := context.Background()

	if err := c.Initialize(ctx); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	// Pings racing a Terminate may fail with session errors; the client
	// itself must stay consistent.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Ping(ctx)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := c.Terminate(ctx); err != nil {
			t.Errorf("Terminate() error = %v", err)
		}
	}()
	wg.Wait()

	if c.SessionID() != "" {
		t.Error("SessionID() non-empty after Terminate()")
	}
}

func TestPingReportsEvictedSession(t *testing.T) {
	c := setupClient(t)
	ctx := context.Background()

	if err := c.Initialize(ctx); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if err := c.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}

	id := c.SessionID()
	if err := c.Terminate(ctx); err != nil {
		t.Fatalf("Terminate() error = %v", err)
	}
	c.setSession(id) // simulate a client that missed the teardown
	if err := c.Ping(ctx); err == nil {
		t.Error("Ping() on evicted session error = nil, want session error")
	}
}
