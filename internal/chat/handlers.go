package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/mkessler-io/motionbridge/internal/mcp"
	"github.com/mkessler-io/motionbridge/internal/mcpclient"
	"github.com/mkessler-io/motionbridge/internal/tools"
)

// Server is the chat gateway: a small HTTP API in front of the orchestrator
// and the bridge session.
type Server struct {
	addr     string
	registry *tools.Registry
	orch     *Orchestrator
	bridge   *mcpclient.Client
	model    string
	started  time.Time

	srv *http.Server
}

// NewServer assembles the gateway. The registry should already be populated
// (discovery against the bridge, or the static fallback).
func NewServer(addr string, registry *tools.Registry, orch *Orchestrator, bridge *mcpclient.Client, model string) *Server {
	return &Server{
		addr:     addr,
		registry: registry,
		orch:     orch,
		bridge:   bridge,
		model:    model,
		started:  time.Now(),
	}
}

// Start blocks serving the gateway API until the listener fails or Stop is
// called.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/api/tools", s.handleTools)
	mux.HandleFunc("/api/status", s.handleStatus)

	s.srv = &http.Server{
		Addr:         s.addr,
		Handler:      s.corsMiddleware(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Minute, // chat turns can poll long operations
	}

	log.Printf("gateway listening on %s (tools: %d, source: %s)",
		s.addr, s.registry.Len(), s.registry.Provenance())
	return s.srv.ListenAndServe()
}

// Stop gracefully stops the server.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var req struct {
		Prompt  string    `json:"prompt"`
		History []Message `json:"history,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		s.errorResponse(w, http.StatusBadRequest, "prompt is required")
		return
	}

	descs := s.registry.List()
	reply, err := s.orch.Converse(r.Context(), req.History, req.Prompt, descs)
	if err != nil {
		var upstream *UpstreamError
		if errors.As(err, &upstream) {
			log.Printf("chat: completion api failed: %v", err)
			s.errorResponse(w, http.StatusBadGateway,
				fmt.Sprintf("completion api returned %d", upstream.Status))
			return
		}
		log.Printf("chat: %v", err)
		s.errorResponse(w, http.StatusBadGateway, "chat exchange failed")
		return
	}

	s.jsonResponse(w, map[string]interface{}{
		"ok":            true,
		"answer":        reply.Answer,
		"tools_invoked": reply.ToolNames(),
		"tool_calls":    reply.Turns,
		"debug": map[string]interface{}{
			"model":           s.model,
			"tools_available": len(descs),
			"tools_invoked":   len(reply.Turns),
		},
	})
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, http.StatusMethodNotAllowed, "GET required")
		return
	}

	type wireTool struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		InputSchema json.RawMessage `json:"inputSchema"`
	}
	descs := s.registry.List()
	out := make([]wireTool, 0, len(descs))
	for _, d := range descs {
		out = append(out, wireTool{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: d.InputSchema(),
		})
	}
	s.jsonResponse(w, map[string]interface{}{
		"tools":  out,
		"source": string(s.registry.Provenance()),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, http.StatusMethodNotAllowed, "GET required")
		return
	}

	bridgeUp := false
	session := ""
	if s.bridge != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		bridgeUp = s.bridge.Ping(ctx) == nil
		session = s.bridge.SessionID()
	}

	s.jsonResponse(w, map[string]interface{}{
		"bridge_connected": bridgeUp,
		"session_id":       session,
		"tool_count":       s.registry.Len(),
		"tool_source":      string(s.registry.Provenance()),
		"model":            s.model,
		"uptime_seconds":   int(time.Since(s.started).Seconds()),
		"timestamp":        time.Now().Format(time.RFC3339),
	})
}

// JSON response helper
func (s *Server) jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

// Error response helper
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// BridgeInvoker routes orchestrator tool calls over the bridge session.
type BridgeInvoker struct {
	Client *mcpclient.Client
}

func (b *BridgeInvoker) Invoke(ctx context.Context, name string, args map[string]interface{}) tools.CallResult {
	res, err := b.Client.CallTool(ctx, name, args)
	if err != nil {
		return tools.CallResult{Name: name, Error: err.Error()}
	}
	text := firstText(res.Content)

	// The bridge serializes its result envelope as the content text; reuse
	// it when it parses, otherwise wrap the raw text.
	var parsed tools.CallResult
	if json.Unmarshal([]byte(text), &parsed) == nil && parsed.Name != "" {
		return parsed
	}
	if res.IsError {
		return tools.CallResult{Name: name, Error: text}
	}
	return tools.CallResult{Name: name, OK: true, Value: text}
}

func firstText(items []mcp.ContentItem) string {
	for _, it := range items {
		if it.Type == "text" {
			return it.Text
		}
	}
	return ""
}
