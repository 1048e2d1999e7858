// Package agent implements the iterative agentic loop: prompt the
// oracle, parse its chosen action, execute one tool, feed the result
// back, repeat until the oracle responds or the budget runs out.
package agent

import "context"

// ActionKind distinguishes the two things an oracle reply can ask for.
type ActionKind int

const (
	// ActionRespond ends the turn with a final message.
	ActionRespond ActionKind = iota

	// ActionCallTool executes one tool and continues the loop.
	ActionCallTool
)

// Action is the structured decision extracted from an oracle reply.
// Exactly one variant is selected per iteration.
type Action struct {
	Kind      ActionKind
	Tool      string
	Arguments map[string]any
	Message   string
	Thinking  string
	Status    string
}

// ExecutionStep records one completed tool invocation in the turn's
// trace. Failed invocations are recorded too, with the error folded
// into Result so the oracle sees it on the next iteration.
type ExecutionStep struct {
	Step      int            `json:"step"`
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
	Result    any            `json:"result"`
	Succeeded bool           `json:"success"`
	Reasoning string         `json:"-"`
}

// Response is the complete result of processing one user turn.
type Response struct {
	Message     string          `json:"message"`
	Steps       []ExecutionStep `json:"steps,omitempty"`
	Reasoning   string          `json:"reasoning,omitempty"`
	ToolsCalled []string        `json:"tools_called,omitempty"`
	Success     bool            `json:"success"`
	Error       string          `json:"error,omitempty"`
}

// ToolSource is the tool catalog as the loop consumes it: a rendered
// schema for prompts, membership checks for parsing, and invocation.
type ToolSource interface {
	// Describe renders the tool schema block for the turn prompt.
	Describe() string

	// Has reports whether a tool name was discovered.
	Has(name string) bool

	// Len returns the number of discovered tools.
	Len() int

	// Connected reports whether the tool server handshake completed.
	Connected() bool

	// Invoke calls a tool and returns its parsed JSON result.
	Invoke(ctx context.Context, name string, args map[string]any) (any, error)
}

// Summarizer turns a completed trace into the final user-facing
// message. It is total: implementations degrade to a deterministic
// fallback rather than returning an error.
type Summarizer interface {
	Render(ctx context.Context, userMessage string, steps []ExecutionStep) string
}
