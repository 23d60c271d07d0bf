package chat

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mkessler-io/motionbridge/internal/tools"
)

// scriptedLLM returns canned messages in order and records what it was sent.
type scriptedLLM struct {
	replies []*Message
	calls   [][]Message
	toolSet [][]tools.Descriptor
}

func (s *scriptedLLM) Complete(ctx context.Context, msgs []Message, descs []tools.Descriptor) (*Message, error) {
	s.calls = append(s.calls, msgs)
	s.toolSet = append(s.toolSet, descs)
	reply := s.replies[len(s.calls)-1]
	return reply, nil
}

// stubInvoker records invocations and answers from a fixed table.
type stubInvoker struct {
	results map[string]tools.CallResult
	calls   []string
}

func (s *stubInvoker) Invoke(ctx context.Context, name string, args map[string]interface{}) tools.CallResult {
	s.calls = append(s.calls, name)
	if r, ok := s.results[name]; ok {
		return r
	}
	return tools.CallResult{Name: name, Error: "unknown tool"}
}

func toolCall(id, name, args string) ToolCall {
	tc := ToolCall{ID: id, Type: "function"}
	tc.Function.Name = name
	tc.Function.Arguments = args
	return tc
}

func TestConverseDirectAnswer(t *testing.T) {
	llm := &scriptedLLM{replies: []*Message{
		{Role: "assistant", Content: "All axes are idle."},
	}}
	inv := &stubInvoker{}
	orch := NewOrchestrator(llm, inv)

	reply, err := orch.Converse(context.Background(), nil, "what's the status?", tools.Catalog())
	if err != nil {
		t.Fatalf("Converse() error = %v", err)
	}
	if reply.Answer != "All axes are idle." {
		t.Errorf("Answer = %q, want direct model text", reply.Answer)
	}
	if len(reply.Turns) != 0 {
		t.Errorf("Turns = %d, want 0", len(reply.Turns))
	}
	if len(inv.calls) != 0 {
		t.Errorf("invoker calls = %v, want none", inv.calls)
	}
	if len(llm.calls) != 1 {
		t.Errorf("completion calls = %d, want 1", len(llm.calls))
	}
}

func TestConverseTwoPhase(t *testing.T) {
	llm := &scriptedLLM{replies: []*Message{
		{Role: "assistant", ToolCalls: []ToolCall{
			toolCall("c1", "ping", "{}"),
			toolCall("c2", "get_position", `{"device":"line3-gantry","axis":"x"}`),
		}},
		{Role: "assistant", Content: "Controller is up; X is at 42.5."},
	}}
	inv := &stubInvoker{results: map[string]tools.CallResult{
		"ping":         {Name: "ping", OK: true, Value: "pong"},
		"get_position": {Name: "get_position", OK: true, Value: map[string]interface{}{"position": 42.5}},
	}}
	orch := NewOrchestrator(llm, inv)

	reply, err := orch.Converse(context.Background(), nil, "where is the gantry?", tools.Catalog())
	if err != nil {
		t.Fatalf("Converse() error = %v", err)
	}
	if reply.Answer != "Controller is up; X is at 42.5." {
		t.Errorf("Answer = %q, want second-phase text", reply.Answer)
	}
	if len(reply.Turns) != 2 {
		t.Fatalf("Turns = %d, want 2", len(reply.Turns))
	}
	if len(inv.calls) != 2 {
		t.Fatalf("invoker calls = %v, want both tools", inv.calls)
	}

	// Second call: tool definitions withheld, one tool message per result,
	// correlated by call id.
	if len(llm.calls) != 2 {
		t.Fatalf("completion calls = %d, want 2", len(llm.calls))
	}
	if len(llm.toolSet[1]) != 0 {
		t.Errorf("second call carried %d tool defs, want 0", len(llm.toolSet[1]))
	}
	second := llm.calls[1]
	var toolMsgs []Message
	for _, m := range second {
		if m.Role == "tool" {
			toolMsgs = append(toolMsgs, m)
		}
	}
	if len(toolMsgs) != 2 {
		t.Fatalf("tool messages = %d, want 2", len(toolMsgs))
	}
	if toolMsgs[0].ToolCallID != "c1" || toolMsgs[1].ToolCallID != "c2" {
		t.Errorf("tool call ids = %q, %q; want c1, c2", toolMsgs[0].ToolCallID, toolMsgs[1].ToolCallID)
	}
	// The assistant turn with the tool calls precedes the tool turns.
	if second[2].Role != "assistant" || len(second[2].ToolCalls) != 2 {
		t.Errorf("third message = %+v, want assistant turn with tool calls", second[2])
	}
}

func TestConverseCarriesHistory(t *testing.T) {
	llm := &scriptedLLM{replies: []*Message{
		{Role: "assistant", Content: "Yes, still homed."},
	}}
	orch := NewOrchestrator(llm, &stubInvoker{})

	history := []Message{
		{Role: "user", Content: "home the gantry"},
		{Role: "assistant", Content: "Homed all axes."},
		{Role: "tool", Content: `{"ok":true}`, ToolCallID: "c9"},
		{Role: "assistant", Content: ""},
	}
	_, err := orch.Converse(context.Background(), history, "is it still homed?", tools.Catalog())
	if err != nil {
		t.Fatalf("Converse() error = %v", err)
	}

	// system + two conversational turns + new prompt; tool plumbing
	// and empty turns dropped.
	first := llm.calls[0]
	if len(first) != 4 {
		t.Fatalf("first call carried %d messages, want 4", len(first))
	}
	if first[1].Content != "home the gantry" || first[2].Content != "Homed all axes." {
		t.Errorf("history turns = %q, %q", first[1].Content, first[2].Content)
	}
	if first[3].Role != "user" || first[3].Content != "is it still homed?" {
		t.Errorf("final message = %+v, want new prompt", first[3])
	}
}

func TestConverseToolFailureFlowsToModel(t *testing.T) {
	llm := &scriptedLLM{replies: []*Message{
		{Role: "assistant", ToolCalls: []ToolCall{
			toolCall("c1", "move_axis", `{"device":"servo-01","axis":"x","position":5}`),
		}},
		{Role: "assistant", Content: "I couldn't move: that device name looks made up."},
	}}
	inv := &stubInvoker{results: map[string]tools.CallResult{
		"move_axis": {Name: "move_axis", Error: `invalid argument "device": "servo-01" looks like a placeholder`},
	}}
	orch := NewOrchestrator(llm, inv)

	reply, err := orch.Converse(context.Background(), nil, "move it", tools.Catalog())
	if err != nil {
		t.Fatalf("Converse() error = %v", err)
	}
	if reply.Turns[0].OK {
		t.Error("Turns[0].OK = true, want false")
	}

	// The failure rides to the model as a structured error payload.
	second := llm.calls[1]
	last := second[len(second)-1]
	if last.Role != "tool" {
		t.Fatalf("last message role = %q, want tool", last.Role)
	}
	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(last.Content), &payload); err != nil {
		t.Fatalf("tool payload is not JSON: %v", err)
	}
	if payload["ok"] != false {
		t.Errorf("payload ok = %v, want false", payload["ok"])
	}
	if payload["error"] == "" || payload["error"] == nil {
		t.Error("payload error is empty, want rejection text")
	}
}

func TestConverseMalformedToolArgs(t *testing.T) {
	llm := &scriptedLLM{replies: []*Message{
		{Role: "assistant", ToolCalls: []ToolCall{
			toolCall("c1", "ping", `{broken`),
		}},
		{Role: "assistant", Content: "done"},
	}}
	inv := &stubInvoker{results: map[string]tools.CallResult{
		"ping": {Name: "ping", OK: true, Value: "pong"},
	}}
	orch := NewOrchestrator(llm, inv)

	reply, err := orch.Converse(context.Background(), nil, "ping it", tools.Catalog())
	if err != nil {
		t.Fatalf("Converse() error = %v", err)
	}
	// Malformed arguments never reach the invoker.
	if len(inv.calls) != 0 {
		t.Errorf("invoker calls = %v, want none", inv.calls)
	}
	if reply.Turns[0].OK {
		t.Error("Turns[0].OK = true, want false")
	}
}
