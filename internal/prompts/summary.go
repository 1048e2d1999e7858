package prompts

import "fmt"

// finalResponseTemplate asks the oracle to digest the executed steps
// into a short user-facing answer. Format verbs: user request, rendered
// execution results.
const finalResponseTemplate = `Based on the following tool execution results, provide a CONCISE response to the user.

User's original request: %s

Execution Results:
%s

Guidelines:
- Be brief and direct (2-3 sentences max for simple queries)
- State the key result/answer first
- Only mention relevant details
- Don't repeat the user's question
- Don't explain what tools were used unless there was an error

Respond naturally as if talking to the user.`

// FinalResponsePrompt returns the interpolated final-response prompt.
func FinalResponsePrompt(userMessage, executionSummary string) string {
	return fmt.Sprintf(finalResponseTemplate, userMessage, executionSummary)
}
