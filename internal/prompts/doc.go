// Package prompts centralizes every prompt template sent to the
// reasoning oracle: the agent system prompt, the per-iteration turn
// prompt, the memory compaction prompt, and the final-response prompt.
//
// Keeping the templates in one package makes prompt changes reviewable
// in isolation and keeps interpolation logic out of the agent loop.
package prompts
