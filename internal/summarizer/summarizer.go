// Package summarizer turns a turn's execution trace into the final
// user-facing message: an oracle-written digest plus deterministic
// tables for list-shaped results.
package summarizer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fleetmind/fleetmind-agent/internal/agent"
	"github.com/fleetmind/fleetmind-agent/internal/llm"
	"github.com/fleetmind/fleetmind-agent/internal/prompts"
)

// maxInlineResult caps how much of a non-list result is quoted in the
// digest prompt.
const maxInlineResult = 2000

// Summarizer renders final responses. It satisfies agent.Summarizer
// and is total: when the oracle digest fails, it degrades to a
// deterministic completion line plus the data table.
type Summarizer struct {
	oracle llm.Oracle
	logger *slog.Logger
}

// New creates a summarizer over the given oracle.
func New(oracle llm.Oracle, logger *slog.Logger) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{
		oracle: oracle,
		logger: logger.With("component", "summarizer"),
	}
}

// Render produces the final message for a completed turn. The prose
// comes from the oracle; the table, when a step returned list-shaped
// data, is rendered deterministically from the records themselves so
// IDs and names reach the user exactly as the tool server sent them.
func (s *Summarizer) Render(ctx context.Context, userMessage string, steps []agent.ExecutionStep) string {
	summaryText, items := digestSteps(steps)
	table := renderTable(items)

	prompt := prompts.FinalResponsePrompt(userMessage, summaryText)
	text, err := s.oracle.Generate(ctx, prompt)
	if err != nil {
		s.logger.Warn("final response generation failed, using fallback", "error", err)
		return fmt.Sprintf("Completed %d operation(s).", len(steps)) + table
	}

	return strings.TrimSpace(text) + table
}

// digestSteps renders each step for the digest prompt and collects the
// most recent list-shaped result for tabular display.
func digestSteps(steps []agent.ExecutionStep) (string, []any) {
	var lines []string
	var items []any

	for _, step := range steps {
		var resultStr string

		switch result := step.Result.(type) {
		case map[string]any:
			if list, ok := result["orders"].([]any); ok {
				items = list
				resultStr = fmt.Sprintf("Found %d orders", len(list))
			} else if list, ok := result["drivers"].([]any); ok {
				items = list
				resultStr = fmt.Sprintf("Found %d drivers", len(list))
			} else if list, ok := result["assignments"].([]any); ok {
				items = list
				resultStr = fmt.Sprintf("Found %d assignments", len(list))
			} else {
				resultStr = truncate(indentJSON(result), maxInlineResult)
			}
		case []any:
			items = result
			resultStr = fmt.Sprintf("Found %d items", len(result))
		case nil:
			resultStr = ""
		default:
			resultStr = truncate(fmt.Sprint(result), maxInlineResult)
		}

		lines = append(lines, fmt.Sprintf("Step %d: %s\nTool: %s\nResult: %s",
			step.Step, step.Reasoning, step.Tool, resultStr))
	}

	return strings.Join(lines, "\n"), items
}

// renderTable picks the table shape from the first record's keys.
// Returns "" when there is nothing tabular to show.
func renderTable(items []any) string {
	if len(items) == 0 {
		return ""
	}
	first, ok := items[0].(map[string]any)
	if !ok {
		return ""
	}

	switch {
	case hasKey(first, "order_id"):
		return renderOrdersTable(items)
	case hasKey(first, "driver_id"):
		return renderDriversTable(items)
	case hasKey(first, "assignment_id"):
		return renderAssignmentsTable(items)
	default:
		return ""
	}
}

func hasKey(m map[string]any, key string) bool {
	_, ok := m[key]
	return ok
}
