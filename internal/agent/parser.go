package agent

import (
	"encoding/json"
	"regexp"
	"strings"
)

// oracleReply mirrors the JSON contract the turn prompt instructs the
// oracle to follow.
type oracleReply struct {
	Thinking  string         `json:"thinking"`
	Action    string         `json:"action"`
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
	Message   string         `json:"message"`
	Status    string         `json:"status"`
}

// fencedBlock matches a triple-backtick code block, optionally tagged
// json, capturing its interior.
var fencedBlock = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)\\s*```")

// embeddedObject matches the first-{ to last-} span in free text.
var embeddedObject = regexp.MustCompile(`\{[\s\S]*\}`)

// ParseAction extracts a structured action from raw oracle output.
// Layered fallback, first success wins: direct JSON parse, fenced code
// block, embedded {...} span, and finally the raw text as a Respond
// action. This is best-effort recovery from free-text output, not
// type-safe parsing: it never fails, and the worst case is the raw
// text becoming the final message.
//
// A parsed reply asking for a tool the catalog doesn't have (or naming
// no tool at all) is demoted to Respond. An unresolvable tool must
// never be invoked.
func ParseAction(raw string, knownTool func(name string) bool) Action {
	reply, ok := decodeReply(raw)
	if !ok {
		return Action{
			Kind:     ActionRespond,
			Message:  raw,
			Thinking: "Direct response",
			Status:   "complete",
		}
	}

	if reply.Action == "call_tool" && reply.Status != "complete" {
		if reply.Tool != "" && knownTool(reply.Tool) {
			args := reply.Arguments
			if args == nil {
				args = map[string]any{}
			}
			return Action{
				Kind:      ActionCallTool,
				Tool:      reply.Tool,
				Arguments: args,
				Thinking:  reply.Thinking,
				Status:    reply.Status,
			}
		}
		// Unknown or missing tool: demote to Respond with whatever
		// text is available.
		message := reply.Message
		if message == "" {
			message = reply.Thinking
		}
		return Action{
			Kind:     ActionRespond,
			Message:  message,
			Thinking: reply.Thinking,
			Status:   "complete",
		}
	}

	message := reply.Message
	if message == "" {
		message = reply.Thinking
	}
	return Action{
		Kind:     ActionRespond,
		Message:  message,
		Thinking: reply.Thinking,
		Status:   reply.Status,
	}
}

// decodeReply runs the JSON extraction tiers. ok=false means no tier
// produced a JSON object.
func decodeReply(raw string) (oracleReply, bool) {
	// Tier 1: the whole text is the object.
	if reply, ok := tryDecode(raw); ok {
		return reply, true
	}

	// Tier 2: object inside a fenced code block.
	if m := fencedBlock.FindStringSubmatch(raw); m != nil {
		if reply, ok := tryDecode(m[1]); ok {
			return reply, true
		}
	}

	// Tier 3: first-{ to last-} span.
	if m := embeddedObject.FindString(raw); m != "" {
		if reply, ok := tryDecode(m); ok {
			return reply, true
		}
	}

	return oracleReply{}, false
}

func tryDecode(s string) (oracleReply, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") {
		return oracleReply{}, false
	}
	var reply oracleReply
	if err := json.Unmarshal([]byte(s), &reply); err != nil {
		return oracleReply{}, false
	}
	return reply, true
}
