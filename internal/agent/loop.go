package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fleetmind/fleetmind-agent/internal/llm"
	"github.com/fleetmind/fleetmind-agent/internal/memory"
)

// exhaustionMessage is the fallback when the iteration budget runs out
// before the oracle produces an explicit final response.
const exhaustionMessage = "I completed several operations. Please check the results above."

// Loop drives the iterate-call-observe cycle for one session. Within a
// turn, tool calls are strictly sequential: iteration N's prompt
// includes the full result of iteration N-1's call, and no two calls
// are ever in flight at once. That ordering is what lets the oracle
// feed one tool's output (say, geocoded coordinates) into the next
// call's arguments verbatim.
type Loop struct {
	oracle     llm.Oracle
	tools      ToolSource
	mem        *memory.Memory
	composer   *Composer
	summarizer Summarizer
	logger     *slog.Logger

	maxToolCalls int
}

// LoopConfig wires a Loop's collaborators.
type LoopConfig struct {
	Oracle     llm.Oracle
	Tools      ToolSource
	Memory     *memory.Memory
	Summarizer Summarizer

	// MaxToolCalls caps tool invocations per turn. Zero means 5.
	MaxToolCalls int

	Logger *slog.Logger
}

// NewLoop creates the agentic loop for one session.
func NewLoop(cfg LoopConfig) *Loop {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxToolCalls := cfg.MaxToolCalls
	if maxToolCalls <= 0 {
		maxToolCalls = 5
	}
	return &Loop{
		oracle:       cfg.Oracle,
		tools:        cfg.Tools,
		mem:          cfg.Memory,
		composer:     NewComposer(cfg.Memory, cfg.Tools),
		summarizer:   cfg.Summarizer,
		logger:       logger.With("component", "agent"),
		maxToolCalls: maxToolCalls,
	}
}

// ProcessMessage runs one full user turn through the loop.
func (l *Loop) ProcessMessage(ctx context.Context, userMessage string) (*Response, error) {
	return l.process(ctx, userMessage, nil)
}

// ProcessMessageObserved is ProcessMessage with a step callback, used
// by the live-reasoning stream. onStep fires after each tool call
// completes, in order.
func (l *Loop) ProcessMessageObserved(ctx context.Context, userMessage string, onStep func(ExecutionStep)) (*Response, error) {
	return l.process(ctx, userMessage, onStep)
}

func (l *Loop) process(ctx context.Context, userMessage string, onStep func(ExecutionStep)) (*Response, error) {
	// Compact before the turn if the history has grown long. Failure
	// here is absorbed; the turn runs against the uncompacted history.
	l.mem.MaybeCompact(ctx, l.oracle)

	var (
		trace       []ExecutionStep
		toolsCalled []string
		reasoning   []string
		finalMsg    string
	)

	// The +2 allows iterations that only reason or finish without
	// spending a tool call.
	budget := l.maxToolCalls + 2

	for iteration := 1; iteration <= budget; iteration++ {
		l.logger.Debug("loop iteration", "iteration", iteration, "budget", budget)

		prompt := l.composer.Render(userMessage, trace)

		text, err := l.oracle.Generate(ctx, prompt)
		if err != nil {
			// The one unconditionally fatal failure: the turn aborts
			// and nothing is written to memory.
			l.logger.Error("oracle call failed", "iteration", iteration, "error", err)
			return &Response{
				Message: fmt.Sprintf("Error generating AI response: %v", err),
				Success: false,
				Error:   err.Error(),
			}, fmt.Errorf("oracle generate: %w", err)
		}

		action := ParseAction(text, l.tools.Has)
		if action.Thinking != "" {
			reasoning = append(reasoning, fmt.Sprintf("Step %d: %s", iteration, action.Thinking))
		}

		if action.Kind == ActionRespond {
			finalMsg = action.Message
			l.logger.Debug("oracle finished turn", "iteration", iteration)
			break
		}

		step := l.invokeTool(ctx, action, len(trace)+1)
		trace = append(trace, step)
		toolsCalled = append(toolsCalled, step.Tool)
		if onStep != nil {
			onStep(step)
		}
	}

	// Budget exhausted without an explicit Respond. Degraded but
	// terminating: the summarizer below usually replaces this text.
	if finalMsg == "" {
		finalMsg = exhaustionMessage
	}

	// Whenever tools ran, the final message is re-generated from the
	// trace, superseding whatever the oracle (or the exhaustion
	// fallback) said.
	if len(trace) > 0 {
		finalMsg = l.summarizer.Render(ctx, userMessage, trace)
	}

	l.mem.Append(memory.RoleUser, userMessage)
	l.mem.Append(memory.RoleAssistant, finalMsg)
	l.mem.ExtractPreferences(userMessage)

	return &Response{
		Message:     finalMsg,
		Steps:       trace,
		Reasoning:   strings.Join(reasoning, "\n"),
		ToolsCalled: toolsCalled,
		Success:     true,
	}, nil
}

// invokeTool executes one tool call and records the outcome. A failed
// invocation is not an error path: the failure is folded into the
// step's result as {"error": message} and the loop continues, so the
// oracle can see it and retry with corrected arguments or give up.
func (l *Loop) invokeTool(ctx context.Context, action Action, stepNumber int) ExecutionStep {
	l.logger.Info("calling tool", "tool", action.Tool, "step", stepNumber)

	result, err := l.tools.Invoke(ctx, action.Tool, action.Arguments)
	succeeded := err == nil
	if err != nil {
		l.logger.Warn("tool call failed", "tool", action.Tool, "error", err)
		result = map[string]any{"error": err.Error()}
	}

	return ExecutionStep{
		Step:      stepNumber,
		Tool:      action.Tool,
		Arguments: action.Arguments,
		Result:    result,
		Succeeded: succeeded,
		Reasoning: action.Thinking,
	}
}
