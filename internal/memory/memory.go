// Package memory implements conversation memory for an agent session:
// message history, a rolling summary produced by compaction, and
// learned user preferences.
package memory

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Preference keys learned from user messages.
const (
	PrefUrgent  = "prefers_urgent"
	PrefFragile = "handles_fragile"
)

// Message is a single conversation entry.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options tunes memory retention behavior.
type Options struct {
	// CompactionThreshold is the history length that triggers compaction.
	CompactionThreshold int

	// KeepRecent is how many messages survive a compaction.
	KeepRecent int

	// KeepPreferencesOnClear keeps learned preferences across Clear.
	KeepPreferencesOnClear bool
}

// DefaultOptions returns the retention defaults: compact at 20
// messages, keep the 6 most recent, preserve preferences on clear.
func DefaultOptions() Options {
	return Options{
		CompactionThreshold:    20,
		KeepRecent:             6,
		KeepPreferencesOnClear: true,
	}
}

// Memory holds one session's conversation state. A single in-flight
// turn owns all mutation; the lock exists so the API layer can read
// history while a turn is running.
type Memory struct {
	opts   Options
	logger *slog.Logger

	mu          sync.RWMutex
	history     []Message
	summary     string
	preferences map[string]bool
}

// New creates an empty conversation memory.
func New(opts Options, logger *slog.Logger) *Memory {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.CompactionThreshold <= 0 {
		opts.CompactionThreshold = 20
	}
	if opts.KeepRecent <= 0 {
		opts.KeepRecent = 6
	}
	return &Memory{
		opts:        opts,
		logger:      logger.With("component", "memory"),
		preferences: map[string]bool{},
	}
}

// Append adds a message to the history. Unknown roles are stored as
// given; the agent never produces them but malformed input must not
// panic here.
func (m *Memory) Append(role, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, Message{Role: role, Content: content})
}

// Len returns the current history length.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.history)
}

// History returns a copy of the message history.
func (m *Memory) History() []Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Message, len(m.history))
	copy(out, m.history)
	return out
}

// Summary returns the rolling summary, or "" if no compaction has run.
func (m *Memory) Summary() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.summary
}

// Preferences returns a copy of the learned preference flags.
func (m *Memory) Preferences() map[string]bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]bool, len(m.preferences))
	for k, v := range m.preferences {
		out[k] = v
	}
	return out
}

// ExtractPreferences applies the substring heuristics against a raw
// user message and records matching preference flags. Rules are purely
// additive: a flag, once set, is never unset by later messages. This is
// simple pattern matching, not a classifier; it errs toward missing a
// preference rather than inventing one.
func (m *Memory) ExtractPreferences(userMessage string) {
	lower := strings.ToLower(userMessage)

	m.mu.Lock()
	defer m.mu.Unlock()
	if strings.Contains(lower, "urgent") || strings.Contains(lower, "asap") {
		m.preferences[PrefUrgent] = true
	}
	if strings.Contains(lower, "fragile") {
		m.preferences[PrefFragile] = true
	}
}

// Clear resets the history and rolling summary. Learned preferences
// survive or reset according to KeepPreferencesOnClear.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = nil
	m.summary = ""
	if !m.opts.KeepPreferencesOnClear {
		m.preferences = map[string]bool{}
	}
}

// RenderContext produces the context block consumed by the turn prompt:
// current time, the default delivery deadline (now + 2 hours) for
// requests that omit one, connection status, the rolling summary, and
// learned preferences.
func (m *Memory) RenderContext(now time.Time, connected bool, toolCount int) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var b strings.Builder
	fmt.Fprintf(&b, "Current Date/Time: %s\n", now.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Default Expected Delivery Time (if not specified): %s\n", now.Add(2*time.Hour).Format("2006-01-02T15:04:05"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Connected to MCP Server: %t\n", connected)
	fmt.Fprintf(&b, "Available Tools: %d\n", toolCount)

	if m.summary != "" {
		fmt.Fprintf(&b, "\n**Conversation Summary**: %s\n", m.summary)
	}

	if len(m.preferences) > 0 {
		b.WriteString("\n**Learned User Preferences**:\n")
		if m.preferences[PrefUrgent] {
			b.WriteString("- User often creates urgent deliveries\n")
		}
		if m.preferences[PrefFragile] {
			b.WriteString("- User frequently handles fragile items\n")
		}
	}

	return b.String()
}

// recentWindow is how many trailing messages appear verbatim in the
// turn prompt.
const recentWindow = 4

// maxRenderedContent caps per-message content in the rendered history.
const maxRenderedContent = 500

// RenderRecent formats the last few messages as "ROLE: content" lines
// for the turn prompt, truncating long messages. Returns "" for an
// empty history.
func (m *Memory) RenderRecent() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.history) == 0 {
		return ""
	}

	start := len(m.history) - recentWindow
	if start < 0 {
		start = 0
	}

	var b strings.Builder
	b.WriteString("\n**Recent Conversation**:\n")
	for _, msg := range m.history[start:] {
		content := msg.Content
		if len(content) > maxRenderedContent {
			content = content[:maxRenderedContent]
		}
		fmt.Fprintf(&b, "%s: %s\n", strings.ToUpper(msg.Role), content)
	}
	return b.String()
}
