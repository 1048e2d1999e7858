// Package archive persists completed turns to SQLite so fleet
// operators can audit what the agent did and why after the fact. The
// in-memory conversation state never depends on it; archiving is
// write-behind and best-effort.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/fleetmind/fleetmind-agent/internal/agent"
)

const schema = `
CREATE TABLE IF NOT EXISTS turns (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	created_at TEXT NOT NULL,
	user_message TEXT NOT NULL,
	assistant_message TEXT NOT NULL,
	success INTEGER NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	steps_json TEXT NOT NULL DEFAULT '[]',
	reasoning TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id, created_at);
`

// TurnRecord is one archived turn.
type TurnRecord struct {
	ID               string                `json:"id"`
	SessionID        string                `json:"session_id"`
	CreatedAt        time.Time             `json:"created_at"`
	UserMessage      string                `json:"user_message"`
	AssistantMessage string                `json:"assistant_message"`
	Success          bool                  `json:"success"`
	Error            string                `json:"error,omitempty"`
	Steps            []agent.ExecutionStep `json:"steps,omitempty"`
	Reasoning        string                `json:"reasoning,omitempty"`
}

// Store is the SQLite-backed turn archive.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the archive database at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive db: %w", err)
	}

	// SQLite allows one writer; serialize through a single connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init archive schema: %w", err)
	}

	logger.Info("turn archive ready", "path", path)
	return &Store{db: db, logger: logger.With("component", "archive")}, nil
}

// RecordTurn archives a completed turn. Errors are returned for the
// caller to log; a failed write never affects the turn result.
func (s *Store) RecordTurn(ctx context.Context, sessionID, userMessage string, resp *agent.Response) error {
	stepsJSON, err := json.Marshal(resp.Steps)
	if err != nil {
		return fmt.Errorf("marshal steps: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO turns (id, session_id, created_at, user_message, assistant_message, success, error, steps_json, reasoning)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(),
		sessionID,
		time.Now().UTC().Format(time.RFC3339Nano),
		userMessage,
		resp.Message,
		boolToInt(resp.Success),
		resp.Error,
		string(stepsJSON),
		resp.Reasoning,
	)
	if err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}
	return nil
}

// RecentTurns returns up to limit archived turns for a session, newest
// first.
func (s *Store) RecentTurns(ctx context.Context, sessionID string, limit int) ([]TurnRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, created_at, user_message, assistant_message, success, error, steps_json, reasoning
		FROM turns WHERE session_id = ?
		ORDER BY created_at DESC LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var records []TurnRecord
	for rows.Next() {
		var (
			rec       TurnRecord
			createdAt string
			success   int
			stepsJSON string
		)
		if err := rows.Scan(&rec.ID, &rec.SessionID, &createdAt, &rec.UserMessage,
			&rec.AssistantMessage, &success, &rec.Error, &stepsJSON, &rec.Reasoning); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}

		rec.Success = success != 0
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			rec.CreatedAt = t
		}
		if err := json.Unmarshal([]byte(stepsJSON), &rec.Steps); err != nil {
			s.logger.Warn("corrupt steps_json in archive", "turn_id", rec.ID, "error", err)
		}

		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
