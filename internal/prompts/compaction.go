package prompts

import "fmt"

// compactionTemplate is the prompt sent to the oracle to condense older
// conversation history during memory compaction. The single format verb
// is the serialized message list.
const compactionTemplate = `Summarize the following conversation history concisely.
Focus on:
1. Key actions taken (orders created, drivers assigned, etc.)
2. User preferences or patterns
3. Important context for future requests

Conversation:
%s

Provide a concise summary in 3-4 sentences.`

// CompactionPrompt returns the interpolated compaction prompt. The
// caller passes the serialized older messages (everything being pruned
// from the in-memory history).
func CompactionPrompt(conversationText string) string {
	return fmt.Sprintf(compactionTemplate, conversationText)
}
