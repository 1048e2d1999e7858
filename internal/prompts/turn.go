package prompts

import (
	"fmt"
	"strings"
)

// turnTemplate is the per-iteration prompt. Format verbs, in order:
// system prompt, context block, recent-history block, tool schema,
// execution-history block, user message.
const turnTemplate = `%s

═══════════════════════════════════════════════════════════════
CRITICAL: ITERATIVE AGENTIC REASONING
═══════════════════════════════════════════════════════════════

You are in an ITERATIVE LOOP. Each turn, you can call ONE tool or finish.
After each tool call, you will see the result and decide the NEXT step.

**WORKFLOW:**
1. Analyze what the user wants
2. Determine the NEXT SINGLE action needed
3. Either call a tool OR provide final response

**RESPONSE FORMAT (STRICT JSON):**

If you need to call a tool:
` + "```json" + `
{
    "thinking": "My reasoning about what to do next...",
    "action": "call_tool",
    "tool": "tool_name",
    "arguments": {},
    "status": "in_progress"
}
` + "```" + `

If you're DONE (all steps complete):
` + "```json" + `
{
    "thinking": "Summarizing what was accomplished...",
    "action": "respond",
    "message": "Your final response to the user",
    "status": "complete"
}
` + "```" + `

**IMPORTANT RULES:**
1. Call ONE tool at a time - you'll see the result before deciding next step
2. USE ACTUAL DATA from previous tool results (coordinates, IDs, etc.)
3. Don't guess values - use what the tools returned
4. After geocoding, USE the lat/lng from the result in subsequent calls
5. After creating order, USE the order_id for assignment

═══════════════════════════════════════════════════════════════

## Context
%s
%s
## Available Tools Schema
%s
%s
## Current User Request
%s

## Your Next Action (JSON only, no other text)
`

// TurnParams carries the variable parts of the per-iteration prompt.
// All blocks arrive pre-rendered; this package only assembles them.
type TurnParams struct {
	// Context is the session context block (timestamps, connection
	// status, rolling summary, preferences).
	Context string

	// RecentHistory is the recent-conversation block, or "" for a
	// fresh session.
	RecentHistory string

	// ToolSchema is the rendered tool catalog.
	ToolSchema string

	// ExecutionHistory is the execution-so-far block, or "" on the
	// first iteration.
	ExecutionHistory string

	// UserMessage is the raw user request for this turn.
	UserMessage string
}

// TurnPrompt assembles the full per-iteration prompt for the agent loop.
func TurnPrompt(p TurnParams) string {
	history := p.RecentHistory
	if history != "" && !strings.HasSuffix(history, "\n") {
		history += "\n"
	}
	return fmt.Sprintf(turnTemplate,
		SystemPrompt(),
		p.Context,
		history,
		p.ToolSchema,
		p.ExecutionHistory,
		p.UserMessage,
	)
}
