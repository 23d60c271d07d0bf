package mcp

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/mkessler-io/motionbridge/internal/tools"
)

// Handler is the transport multiplexer: one HTTP endpoint that branches on
// request kind. POST carries JSON-RPC exchanges (initialize creates a
// session; everything else requires a live one), GET opens the session's SSE
// push stream, DELETE terminates the session.
type Handler struct {
	sessions   *SessionRegistry
	registry   *tools.Registry
	dispatcher *tools.Dispatcher

	name    string
	version string
}

// NewHandler wires the multiplexer. The registry must already be populated.
func NewHandler(sessions *SessionRegistry, registry *tools.Registry, dispatcher *tools.Dispatcher, name, version string) *Handler {
	return &Handler{
		sessions:   sessions,
		registry:   registry,
		dispatcher: dispatcher,
		name:       name,
		version:    version,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handlePost(w, r)
	case http.MethodGet:
		h.handleSubscribe(w, r)
	case http.MethodDelete:
		h.handleTerminate(w, r)
	default:
		w.Header().Set("Allow", "GET, POST, DELETE")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		h.sendError(w, http.StatusBadRequest, nil, CodeParseError, "unreadable request body", nil)
		return
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		h.sendError(w, http.StatusBadRequest, nil, CodeParseError, "parse error", err.Error())
		return
	}

	// Initialize is the only exchange allowed without a session header, and
	// the only one that must not carry it. Minting a fresh session for a
	// client that already holds one would leak the old session.
	if req.Method == "initialize" {
		if r.Header.Get(SessionHeader) != "" {
			h.sendError(w, http.StatusBadRequest, req.ID, CodeInvalidRequest,
				"initialize must not carry a "+SessionHeader+" header", nil)
			return
		}
		h.handleInitialize(w, &req)
		return
	}

	sess, ok := h.lookup(r)
	if !ok {
		h.sendSessionNotFound(w, &req)
		return
	}

	switch req.Method {
	case "notifications/initialized":
		w.WriteHeader(http.StatusAccepted)

	case "ping":
		h.sendResult(w, req.ID, map[string]interface{}{})

	case "tools/list":
		h.handleToolsList(w, &req)

	case "tools/call":
		h.handleToolsCall(w, r, &req, sess)

	default:
		h.sendError(w, http.StatusOK, req.ID, CodeMethodNotFound, "method not found", req.Method)
	}
}

func (h *Handler) handleInitialize(w http.ResponseWriter, req *Request) {
	sess := h.sessions.Create()
	log.Printf("mcp: session %s created", sess.ID)

	w.Header().Set(SessionHeader, sess.ID)
	h.sendResult(w, req.ID, map[string]interface{}{
		"protocolVersion": ProtocolVersion,
		"serverInfo":      ServerInfo{Name: h.name, Version: h.version},
		"capabilities":    ServerCapabilities{Tools: &ToolsCapability{}},
	})
}

func (h *Handler) handleToolsList(w http.ResponseWriter, req *Request) {
	descs := h.registry.List()
	wire := make([]Tool, 0, len(descs))
	for _, d := range descs {
		wire = append(wire, Tool{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: d.InputSchema(),
		})
	}
	h.sendResult(w, req.ID, map[string]interface{}{"tools": wire})
}

func (h *Handler) handleToolsCall(w http.ResponseWriter, r *http.Request, req *Request, sess *Session) {
	var params CallToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		h.sendError(w, http.StatusOK, req.ID, CodeInvalidParams, "invalid params", err.Error())
		return
	}
	if params.Name == "" {
		h.sendError(w, http.StatusOK, req.ID, CodeInvalidParams, "missing tool name", nil)
		return
	}

	// The dispatch (and any poll loop inside it) runs on this request's
	// goroutine and holds no session-level lock; other exchanges on the same
	// session proceed concurrently. Progress lands on the push stream.
	sess.Notify(Event{Type: "tool/call", Data: map[string]interface{}{"tool": params.Name}})
	res := h.dispatcher.DispatchWithProgress(r.Context(), tools.CallRequest{
		Session: sess.ID,
		Name:    params.Name,
		Args:    params.Arguments,
	}, func(stage string, detail interface{}) {
		sess.Notify(Event{Type: "tool/progress", Data: map[string]interface{}{
			"tool":  params.Name,
			"stage": stage,
			"value": detail,
		}})
	})
	sess.Notify(Event{Type: "tool/result", Data: map[string]interface{}{
		"tool": params.Name,
		"ok":   res.OK,
	}})

	h.sendResult(w, req.ID, CallToolResult{
		Content: []ContentItem{{Type: "text", Text: res.Payload()}},
		IsError: !res.OK,
	})
}

func (h *Handler) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(r)
	if !ok {
		h.sendSessionNotFound(w, nil)
		return
	}
	serveStream(w, r, sess)
}

func (h *Handler) handleTerminate(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(SessionHeader)
	if id == "" || !h.sessions.Destroy(id) {
		h.sendSessionNotFound(w, nil)
		return
	}
	log.Printf("mcp: session %s terminated", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) lookup(r *http.Request) (*Session, bool) {
	id := r.Header.Get(SessionHeader)
	if id == "" {
		return nil, false
	}
	return h.sessions.Lookup(id)
}

// sendSessionNotFound emits the structured protocol error for an unknown or
// missing session header. The bridge never retries these.
func (h *Handler) sendSessionNotFound(w http.ResponseWriter, req *Request) {
	var id interface{}
	if req != nil {
		id = req.ID
	}
	h.sendError(w, http.StatusNotFound, id, CodeSessionNotFound, "session not found",
		"no live session matches the "+SessionHeader+" header; initialize first")
}

func (h *Handler) sendResult(w http.ResponseWriter, id, result interface{}) {
	h.send(w, http.StatusOK, Response{JSONRPC: "2.0", ID: id, Result: result})
}

func (h *Handler) sendError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	h.send(w, status, Response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &RPCError{Code: code, Message: message, Data: data},
	})
}

func (h *Handler) send(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("mcp: write response: %v", err)
	}
}
