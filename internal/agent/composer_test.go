package agent

import (
	"strings"
	"testing"

	"github.com/fleetmind/fleetmind-agent/internal/memory"
)

func TestComposer_Render(t *testing.T) {
	mem := memory.New(memory.DefaultOptions(), nil)
	mem.Append(memory.RoleUser, "earlier question")
	mem.Append(memory.RoleAssistant, "earlier answer")

	c := NewComposer(mem, &fakeTools{results: map[string]any{"fetch_orders": nil}})

	trace := []ExecutionStep{{
		Step:      1,
		Tool:      "geocode_address",
		Arguments: map[string]any{"address": "1 Main St"},
		Result:    map[string]any{"latitude": 37.4224, "longitude": -122.0842},
		Succeeded: true,
	}}

	got := c.Render("create an order there", trace)

	if !strings.Contains(got, "Connected to MCP Server: true") {
		t.Error("context block missing connection status")
	}
	if !strings.Contains(got, "USER: earlier question") {
		t.Error("recent history missing")
	}
	if !strings.Contains(got, "### Step 1: Called geocode_address") {
		t.Error("trace step header missing")
	}
	// The full result is inlined so the oracle can thread values forward.
	if !strings.Contains(got, "37.4224") {
		t.Error("trace result values missing")
	}
	if !strings.Contains(got, "## Current User Request\ncreate an order there") {
		t.Error("user message missing")
	}
}

func TestRenderTrace_EmptyIsAbsent(t *testing.T) {
	if got := renderTrace(nil); got != "" {
		t.Errorf("renderTrace(nil) = %q, want empty", got)
	}
}

func TestIndentJSON(t *testing.T) {
	if got := indentJSON(nil); got != "null" {
		t.Errorf("indentJSON(nil) = %q", got)
	}
	got := indentJSON(map[string]any{"a": 1})
	if !strings.Contains(got, `"a": 1`) {
		t.Errorf("indentJSON(map) = %q", got)
	}
}
