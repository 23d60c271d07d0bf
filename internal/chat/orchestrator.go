package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/mkessler-io/motionbridge/internal/tools"
)

const systemPrompt = "You are a motion-control assistant. You operate real " +
	"servo and axis hardware through the tools provided. Use exact device " +
	"and axis identifiers from earlier tool results or from the user; never " +
	"invent them. When no tool is needed, just answer."

// Invoker executes one tool call. The gateway backs it with the bridge
// session; tests back it with a stub.
type Invoker interface {
	Invoke(ctx context.Context, name string, args map[string]interface{}) tools.CallResult
}

// Completer is the slice of LLMClient the orchestrator needs.
type Completer interface {
	Complete(ctx context.Context, msgs []Message, descs []tools.Descriptor) (*Message, error)
}

// Turn summarizes one executed tool call for the chat response.
type Turn struct {
	Tool    string        `json:"tool"`
	Args    interface{}   `json:"args,omitempty"`
	OK      bool          `json:"ok"`
	Detail  string        `json:"detail,omitempty"`
	Elapsed time.Duration `json:"-"`
}

// Reply is the gateway's answer to one prompt.
type Reply struct {
	Answer string `json:"answer"`
	Turns  []Turn `json:"tool_calls,omitempty"`
}

// ToolNames lists the tools actually invoked, in dispatch order.
func (r *Reply) ToolNames() []string {
	names := make([]string, 0, len(r.Turns))
	for _, t := range r.Turns {
		names = append(names, t.Tool)
	}
	return names
}

// Orchestrator runs the two-phase exchange: one completion with tools
// attached, then (if the model called any) one more with the results.
type Orchestrator struct {
	llm     Completer
	invoker Invoker
}

func NewOrchestrator(llm Completer, invoker Invoker) *Orchestrator {
	return &Orchestrator{llm: llm, invoker: invoker}
}

// Converse answers one prompt, with optional prior turns, against the given
// tool inventory. Tool failures never abort the exchange; they flow back to
// the model as error payloads so the final answer can explain them.
func (o *Orchestrator) Converse(ctx context.Context, history []Message, prompt string, descs []tools.Descriptor) (*Reply, error) {
	msgs := make([]Message, 0, len(history)+2)
	msgs = append(msgs, Message{Role: "system", Content: systemPrompt})
	for _, m := range history {
		// Only plain conversational turns carry over; stale tool plumbing
		// from earlier exchanges would confuse the completion API.
		if (m.Role == "user" || m.Role == "assistant") && m.Content != "" {
			msgs = append(msgs, Message{Role: m.Role, Content: m.Content})
		}
	}
	msgs = append(msgs, Message{Role: "user", Content: prompt})

	first, err := o.llm.Complete(ctx, msgs, descs)
	if err != nil {
		return nil, err
	}
	if len(first.ToolCalls) == 0 {
		return &Reply{Answer: first.Content}, nil
	}

	msgs = append(msgs, *first)
	reply := &Reply{}
	for _, tc := range first.ToolCalls {
		args, argErr := decodeArgs(tc.Function.Arguments)

		var res tools.CallResult
		if argErr != nil {
			res = tools.CallResult{
				Name:  tc.Function.Name,
				Error: fmt.Sprintf("malformed tool arguments: %v", argErr),
			}
		} else {
			res = o.invoker.Invoke(ctx, tc.Function.Name, args)
		}
		log.Printf("chat: tool %s ok=%v", tc.Function.Name, res.OK)

		reply.Turns = append(reply.Turns, Turn{
			Tool:   tc.Function.Name,
			Args:   args,
			OK:     res.OK,
			Detail: res.Payload(),
		})
		msgs = append(msgs, Message{
			Role:       "tool",
			ToolCallID: tc.ID,
			Content:    res.Payload(),
		})
	}

	// Second phase carries no tool definitions: the model must answer in
	// text now, not queue more calls.
	second, err := o.llm.Complete(ctx, msgs, nil)
	if err != nil {
		return nil, err
	}
	reply.Answer = second.Content
	return reply, nil
}

func decodeArgs(raw string) (map[string]interface{}, error) {
	if raw == "" {
		return map[string]interface{}{}, nil
	}
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	return args, nil
}
