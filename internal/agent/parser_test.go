package agent

import (
	"strings"
	"testing"
)

func knownTools(names ...string) func(string) bool {
	set := map[string]bool{}
	for _, n := range names {
		set[n] = true
	}
	return func(name string) bool { return set[name] }
}

func TestParseAction_DirectJSON(t *testing.T) {
	raw := `{"thinking": "need coordinates first", "action": "call_tool", "tool": "geocode_address", "arguments": {"address": "1 Main St"}, "status": "in_progress"}`

	action := ParseAction(raw, knownTools("geocode_address"))

	if action.Kind != ActionCallTool {
		t.Fatalf("Kind = %v, want ActionCallTool", action.Kind)
	}
	if action.Tool != "geocode_address" {
		t.Errorf("Tool = %q", action.Tool)
	}
	if action.Arguments["address"] != "1 Main St" {
		t.Errorf("Arguments = %v", action.Arguments)
	}
	if action.Thinking != "need coordinates first" {
		t.Errorf("Thinking = %q", action.Thinking)
	}
}

func TestParseAction_FencedBlock(t *testing.T) {
	raw := "Here's what I'll do next:\n```json\n{\"action\": \"call_tool\", \"tool\": \"fetch_orders\", \"arguments\": {}}\n```\nLet me know."

	action := ParseAction(raw, knownTools("fetch_orders"))

	if action.Kind != ActionCallTool {
		t.Fatalf("Kind = %v, want ActionCallTool", action.Kind)
	}
	if action.Tool != "fetch_orders" {
		t.Errorf("Tool = %q", action.Tool)
	}
}

func TestParseAction_UntaggedFencedBlock(t *testing.T) {
	raw := "```\n{\"action\": \"respond\", \"message\": \"All done.\"}\n```"

	action := ParseAction(raw, knownTools())

	if action.Kind != ActionRespond {
		t.Fatalf("Kind = %v, want ActionRespond", action.Kind)
	}
	if action.Message != "All done." {
		t.Errorf("Message = %q", action.Message)
	}
}

func TestParseAction_EmbeddedObject(t *testing.T) {
	raw := `Sure! {"action": "respond", "message": "Your fleet has 3 drivers.", "status": "complete"} hope that helps`

	action := ParseAction(raw, knownTools())

	if action.Kind != ActionRespond {
		t.Fatalf("Kind = %v, want ActionRespond", action.Kind)
	}
	if action.Message != "Your fleet has 3 drivers." {
		t.Errorf("Message = %q", action.Message)
	}
}

func TestParseAction_RawTextFallback(t *testing.T) {
	raw := "I created the order and it should arrive by 5pm."

	action := ParseAction(raw, knownTools())

	if action.Kind != ActionRespond {
		t.Fatalf("Kind = %v, want ActionRespond", action.Kind)
	}
	if action.Message != raw {
		t.Errorf("Message = %q, want raw text verbatim", action.Message)
	}
}

// ParseAction is total: any input yields a valid action.
func TestParseAction_Total(t *testing.T) {
	inputs := []string{
		"",
		"{not valid json",
		"```json\nstill broken\n```",
		"{\"action\": \"call_tool\"", // unbalanced
		strings.Repeat("}", 50),
		"null",
		`"just a string"`,
		"42",
	}

	for _, raw := range inputs {
		action := ParseAction(raw, knownTools())
		if action.Kind != ActionRespond && action.Kind != ActionCallTool {
			t.Errorf("ParseAction(%q) produced invalid kind %v", raw, action.Kind)
		}
	}
}

// An oracle naming a tool the catalog doesn't have must be demoted to
// Respond, never invoked.
func TestParseAction_UnknownToolDemoted(t *testing.T) {
	raw := `{"action":"call_tool","tool":"delete_all_orders","arguments":{}}`

	action := ParseAction(raw, knownTools("geocode_address", "create_order"))

	if action.Kind != ActionRespond {
		t.Fatalf("Kind = %v, want ActionRespond for unknown tool", action.Kind)
	}
	if action.Tool == "delete_all_orders" {
		t.Error("demoted action still carries the unknown tool")
	}
}

func TestParseAction_MissingToolDemoted(t *testing.T) {
	raw := `{"thinking": "hmm", "action": "call_tool", "arguments": {}, "message": "I wasn't sure which tool to use."}`

	action := ParseAction(raw, knownTools("geocode_address"))

	if action.Kind != ActionRespond {
		t.Fatalf("Kind = %v, want ActionRespond", action.Kind)
	}
	if action.Message != "I wasn't sure which tool to use." {
		t.Errorf("Message = %q, want the reply's message text", action.Message)
	}
}

func TestParseAction_DemotionFallsBackToThinking(t *testing.T) {
	raw := `{"thinking": "no tool fits this request", "action": "call_tool", "tool": "nonexistent"}`

	action := ParseAction(raw, knownTools())

	if action.Kind != ActionRespond {
		t.Fatalf("Kind = %v, want ActionRespond", action.Kind)
	}
	if action.Message != "no tool fits this request" {
		t.Errorf("Message = %q, want thinking text", action.Message)
	}
}

// A call_tool reply already marked complete is treated as a final
// response, matching the loop's contract with the prompt format.
func TestParseAction_CompleteStatusMeansRespond(t *testing.T) {
	raw := `{"action": "call_tool", "tool": "fetch_orders", "status": "complete", "message": "done"}`

	action := ParseAction(raw, knownTools("fetch_orders"))

	if action.Kind != ActionRespond {
		t.Fatalf("Kind = %v, want ActionRespond", action.Kind)
	}
}

func TestParseAction_NilArgumentsBecomeEmptyMap(t *testing.T) {
	raw := `{"action": "call_tool", "tool": "fetch_orders"}`

	action := ParseAction(raw, knownTools("fetch_orders"))

	if action.Kind != ActionCallTool {
		t.Fatalf("Kind = %v, want ActionCallTool", action.Kind)
	}
	if action.Arguments == nil {
		t.Error("Arguments = nil, want empty map")
	}
}
