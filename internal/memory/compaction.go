package memory

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/fleetmind/fleetmind-agent/internal/llm"
	"github.com/fleetmind/fleetmind-agent/internal/prompts"
)

// MaybeCompact condenses older history into the rolling summary when
// the history has grown past the compaction threshold. Everything
// except the most recent KeepRecent messages is summarized by the
// oracle and dropped.
//
// Compaction is best-effort: if the oracle call fails, the history and
// summary are left untouched and the turn proceeds with the full
// history. The error is logged, never surfaced to the user.
func (m *Memory) MaybeCompact(ctx context.Context, oracle llm.Oracle) {
	m.mu.RLock()
	needed := len(m.history) >= m.opts.CompactionThreshold
	var older []Message
	if needed {
		older = make([]Message, len(m.history)-m.opts.KeepRecent)
		copy(older, m.history[:len(m.history)-m.opts.KeepRecent])
	}
	m.mu.RUnlock()

	if !needed {
		return
	}

	serialized, err := json.MarshalIndent(older, "", "  ")
	if err != nil {
		m.logger.Warn("compaction skipped: serialize history", "error", err)
		return
	}

	summary, err := oracle.Generate(ctx, prompts.CompactionPrompt(string(serialized)))
	if err != nil {
		m.logger.Warn("compaction skipped: oracle call failed", "error", err)
		return
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		m.logger.Warn("compaction skipped: oracle returned empty summary")
		return
	}

	m.mu.Lock()
	// Re-check under the write lock; the history only grows between
	// the snapshot above and here, so pruning by count stays correct.
	if len(m.history) >= m.opts.CompactionThreshold {
		kept := make([]Message, m.opts.KeepRecent)
		copy(kept, m.history[len(m.history)-m.opts.KeepRecent:])
		m.history = kept
		m.summary = summary
	}
	pruned := len(older)
	m.mu.Unlock()

	m.logger.Info("conversation compacted", "pruned", pruned, "kept", m.opts.KeepRecent)
}
