package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fleetmind/fleetmind-agent/internal/agent"
	"github.com/fleetmind/fleetmind-agent/internal/llm"
	"github.com/fleetmind/fleetmind-agent/internal/memory"
)

// Session owns one conversation: its memory, its loop, and a mutex
// that serializes turns. A second message arriving before the first
// turn finishes queues behind it rather than interleaving, because
// memory is mutated non-atomically across a turn.
type Session struct {
	ID        string
	Memory    *memory.Memory
	Loop      *agent.Loop
	CreatedAt time.Time

	mu         sync.Mutex
	lastActive time.Time
}

// Process runs one user turn, queuing behind any in-flight turn.
func (s *Session) Process(ctx context.Context, message string, onStep func(agent.ExecutionStep)) (*agent.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = time.Now()
	return s.Loop.ProcessMessageObserved(ctx, message, onStep)
}

// Clear resets the session's conversation state.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Memory.Clear()
}

// SessionManager creates and looks up sessions. All sessions share the
// tool catalog, oracle, and summarizer; each gets its own memory.
type SessionManager struct {
	oracle     llm.Oracle
	tools      agent.ToolSource
	summarizer agent.Summarizer
	memOpts    memory.Options
	maxCalls   int
	logger     *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionManager creates a session manager.
func NewSessionManager(oracle llm.Oracle, tools agent.ToolSource, summarizer agent.Summarizer, memOpts memory.Options, maxCalls int, logger *slog.Logger) *SessionManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionManager{
		oracle:     oracle,
		tools:      tools,
		summarizer: summarizer,
		memOpts:    memOpts,
		maxCalls:   maxCalls,
		logger:     logger,
		sessions:   map[string]*Session{},
	}
}

// GetOrCreate returns the session with the given ID, creating it (with
// a fresh UUID when id is empty) if it doesn't exist.
func (m *SessionManager) GetOrCreate(id string) *Session {
	m.mu.RLock()
	if id != "" {
		if sess, ok := m.sessions[id]; ok {
			m.mu.RUnlock()
			return sess
		}
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if id == "" {
		id = uuid.NewString()
	} else if sess, ok := m.sessions[id]; ok {
		return sess
	}

	mem := memory.New(m.memOpts, m.logger)
	sess := &Session{
		ID:     id,
		Memory: mem,
		Loop: agent.NewLoop(agent.LoopConfig{
			Oracle:       m.oracle,
			Tools:        m.tools,
			Memory:       mem,
			Summarizer:   m.summarizer,
			MaxToolCalls: m.maxCalls,
			Logger:       m.logger.With("session", id),
		}),
		CreatedAt:  time.Now(),
		lastActive: time.Now(),
	}
	m.sessions[id] = sess

	m.logger.Info("session created", "session", id)
	return sess
}

// Get returns an existing session, or nil.
func (m *SessionManager) Get(id string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

// Count returns the number of live sessions.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
