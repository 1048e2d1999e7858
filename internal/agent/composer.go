package agent

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fleetmind/fleetmind-agent/internal/memory"
	"github.com/fleetmind/fleetmind-agent/internal/prompts"
)

// Composer renders the per-iteration oracle prompt from the session's
// memory, the tool schema, and the execution trace so far.
type Composer struct {
	mem   *memory.Memory
	tools ToolSource

	// now is swappable for tests.
	now func() time.Time
}

// NewComposer creates a prompt composer over the given memory and tools.
func NewComposer(mem *memory.Memory, tools ToolSource) *Composer {
	return &Composer{
		mem:   mem,
		tools: tools,
		now:   time.Now,
	}
}

// Render assembles the complete prompt for one loop iteration. The
// trace rendering includes every prior step's arguments and full
// result, which is what lets the oracle thread values (coordinates,
// IDs) from one tool call into the next.
func (c *Composer) Render(userMessage string, trace []ExecutionStep) string {
	return prompts.TurnPrompt(prompts.TurnParams{
		Context:          c.mem.RenderContext(c.now(), c.tools.Connected(), c.tools.Len()),
		RecentHistory:    c.mem.RenderRecent(),
		ToolSchema:       c.tools.Describe(),
		ExecutionHistory: renderTrace(trace),
		UserMessage:      userMessage,
	})
}

// renderTrace formats the executed steps for the prompt. Returns "" on
// the first iteration so the block is absent entirely.
func renderTrace(trace []ExecutionStep) string {
	if len(trace) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n\n## EXECUTION HISTORY (What you've done so far)\n")
	for _, step := range trace {
		fmt.Fprintf(&b, "\n### Step %d: Called %s\n", step.Step, step.Tool)
		fmt.Fprintf(&b, "Arguments: %s\n", indentJSON(step.Arguments))
		fmt.Fprintf(&b, "Result: %s\n", indentJSON(step.Result))
	}
	return b.String()
}

// indentJSON renders v as indented JSON, falling back to %v for values
// that don't marshal.
func indentJSON(v any) string {
	if v == nil {
		return "null"
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
