package archive

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/fleetmind/fleetmind-agent/internal/agent"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "turns.db"), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_RecordAndRecall(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	resp := &agent.Response{
		Message: "Created order ORD-1 for Sarah.",
		Steps: []agent.ExecutionStep{
			{
				Step:      1,
				Tool:      "create_order",
				Arguments: map[string]any{"customer_name": "Sarah"},
				Result:    map[string]any{"order_id": "ORD-1"},
				Succeeded: true,
			},
		},
		ToolsCalled: []string{"create_order"},
		Reasoning:   "Step 1: creating the order",
		Success:     true,
	}

	if err := store.RecordTurn(ctx, "sess-1", "create an order for Sarah", resp); err != nil {
		t.Fatalf("RecordTurn: %v", err)
	}

	turns, err := store.RecentTurns(ctx, "sess-1", 10)
	if err != nil {
		t.Fatalf("RecentTurns: %v", err)
	}
	if len(turns) != 1 {
		t.Fatalf("got %d turns, want 1", len(turns))
	}

	turn := turns[0]
	if turn.UserMessage != "create an order for Sarah" {
		t.Errorf("UserMessage = %q", turn.UserMessage)
	}
	if turn.AssistantMessage != "Created order ORD-1 for Sarah." {
		t.Errorf("AssistantMessage = %q", turn.AssistantMessage)
	}
	if !turn.Success {
		t.Error("Success = false")
	}
	if turn.CreatedAt.IsZero() {
		t.Error("CreatedAt not recorded")
	}
	if len(turn.Steps) != 1 || turn.Steps[0].Tool != "create_order" {
		t.Errorf("Steps = %+v", turn.Steps)
	}
	if turn.Reasoning != "Step 1: creating the order" {
		t.Errorf("Reasoning = %q", turn.Reasoning)
	}
}

func TestStore_RecentTurnsIsolatesSessions(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		resp := &agent.Response{Message: fmt.Sprintf("reply %d", i), Success: true}
		if err := store.RecordTurn(ctx, "sess-a", fmt.Sprintf("question %d", i), resp); err != nil {
			t.Fatalf("RecordTurn: %v", err)
		}
	}
	if err := store.RecordTurn(ctx, "sess-b", "other session", &agent.Response{Message: "ok", Success: true}); err != nil {
		t.Fatalf("RecordTurn: %v", err)
	}

	turns, err := store.RecentTurns(ctx, "sess-a", 0)
	if err != nil {
		t.Fatalf("RecentTurns: %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("got %d turns for sess-a, want 3", len(turns))
	}
	for _, turn := range turns {
		if turn.SessionID != "sess-a" {
			t.Errorf("leaked turn from session %q", turn.SessionID)
		}
	}
}

func TestStore_RecentTurnsNewestFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		resp := &agent.Response{Message: fmt.Sprintf("reply %d", i), Success: true}
		if err := store.RecordTurn(ctx, "sess-1", fmt.Sprintf("question %d", i), resp); err != nil {
			t.Fatalf("RecordTurn: %v", err)
		}
	}

	turns, err := store.RecentTurns(ctx, "sess-1", 2)
	if err != nil {
		t.Fatalf("RecentTurns: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("got %d turns, want 2 (limit)", len(turns))
	}
	if turns[0].UserMessage != "question 4" {
		t.Errorf("turns[0].UserMessage = %q, want the newest", turns[0].UserMessage)
	}
}

func TestStore_RecordsFailedTurn(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	resp := &agent.Response{
		Message: "Error generating AI response: quota exceeded",
		Success: false,
		Error:   "quota exceeded",
	}
	if err := store.RecordTurn(ctx, "sess-1", "hello", resp); err != nil {
		t.Fatalf("RecordTurn: %v", err)
	}

	turns, err := store.RecentTurns(ctx, "sess-1", 1)
	if err != nil {
		t.Fatalf("RecentTurns: %v", err)
	}
	if turns[0].Success {
		t.Error("failed turn archived as success")
	}
	if turns[0].Error != "quota exceeded" {
		t.Errorf("Error = %q", turns[0].Error)
	}
}

func TestStore_EmptySession(t *testing.T) {
	store := openTestStore(t)

	turns, err := store.RecentTurns(context.Background(), "never-seen", 10)
	if err != nil {
		t.Fatalf("RecentTurns: %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("got %d turns for unknown session, want 0", len(turns))
	}
}
