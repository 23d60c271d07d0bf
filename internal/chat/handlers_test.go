package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mkessler-io/motionbridge/internal/tools"
)

type failingLLM struct {
	err error
}

func (f *failingLLM) Complete(ctx context.Context, msgs []Message, descs []tools.Descriptor) (*Message, error) {
	return nil, f.err
}

func setupGateway(t *testing.T, llm Completer) *Server {
	t.Helper()

	registry := tools.NewRegistry(nil)
	registry.Populate(context.Background())

	orch := NewOrchestrator(llm, &stubInvoker{})
	return NewServer(":0", registry, orch, nil, "test-model")
}

func TestHandleChat(t *testing.T) {
	llm := &scriptedLLM{replies: []*Message{
		{Role: "assistant", Content: "hello"},
	}}
	s := setupGateway(t, llm)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"prompt":"hi"}`))
	rec := httptest.NewRecorder()
	s.handleChat(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body = %s", rec.Code, rec.Body.String())
	}
	var payload struct {
		OK           bool     `json:"ok"`
		Answer       string   `json:"answer"`
		ToolsInvoked []string `json:"tools_invoked"`
		Debug        struct {
			Model          string `json:"model"`
			ToolsAvailable int    `json:"tools_available"`
			ToolsInvoked   int    `json:"tools_invoked"`
		} `json:"debug"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if !payload.OK {
		t.Error("ok = false, want true")
	}
	if payload.Answer != "hello" {
		t.Errorf("answer = %q, want hello", payload.Answer)
	}
	if len(payload.ToolsInvoked) != 0 {
		t.Errorf("tools_invoked = %v, want none", payload.ToolsInvoked)
	}
	if payload.Debug.Model != "test-model" {
		t.Errorf("debug.model = %q, want test-model", payload.Debug.Model)
	}
	if payload.Debug.ToolsAvailable != len(tools.Catalog()) {
		t.Errorf("debug.tools_available = %d, want %d", payload.Debug.ToolsAvailable, len(tools.Catalog()))
	}
}

func TestHandleChatEmptyPrompt(t *testing.T) {
	s := setupGateway(t, &scriptedLLM{})

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"prompt":"  "}`))
	rec := httptest.NewRecorder()
	s.handleChat(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleChatUpstreamFailureIsBadGateway(t *testing.T) {
	s := setupGateway(t, &failingLLM{err: &UpstreamError{Status: 429, Body: "rate limited"}})

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"prompt":"hi"}`))
	rec := httptest.NewRecorder()
	s.handleChat(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
	var body map[string]string
	json.NewDecoder(rec.Body).Decode(&body)
	if !strings.Contains(body["error"], "429") {
		t.Errorf("error = %q, want upstream status echoed", body["error"])
	}
}

func TestHandleChatMethodGuard(t *testing.T) {
	s := setupGateway(t, &scriptedLLM{})

	req := httptest.NewRequest(http.MethodGet, "/api/chat", nil)
	rec := httptest.NewRecorder()
	s.handleChat(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestHandleTools(t *testing.T) {
	s := setupGateway(t, &scriptedLLM{})

	req := httptest.NewRequest(http.MethodGet, "/api/tools", nil)
	rec := httptest.NewRecorder()
	s.handleTools(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var payload struct {
		Tools  []map[string]interface{} `json:"tools"`
		Source string                   `json:"source"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if len(payload.Tools) != len(tools.Catalog()) {
		t.Errorf("tools = %d, want %d", len(payload.Tools), len(tools.Catalog()))
	}
	if payload.Source != string(tools.ProvenanceFallback) {
		t.Errorf("source = %q, want %q", payload.Source, tools.ProvenanceFallback)
	}
}

func TestHandleStatusWithoutBridge(t *testing.T) {
	s := setupGateway(t, &scriptedLLM{})

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	s.handleStatus(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var payload map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["bridge_connected"] != false {
		t.Errorf("bridge_connected = %v, want false", payload["bridge_connected"])
	}
	if payload["model"] != "test-model" {
		t.Errorf("model = %v, want test-model", payload["model"])
	}
}
