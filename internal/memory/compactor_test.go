package memory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hattiebot/hattiebot/internal/core"
	"github.com/hattiebot/hattiebot/internal/openrouter"
	"github.com/hattiebot/hattiebot/internal/store"
	_ "modernc.org/sqlite"
)

type stubClient struct {
	response string
}

func (s *stubClient) ChatCompletion(ctx context.Context, messages []core.Message) (string, error) {
	return s.response, nil
}

func (s *stubClient) ChatCompletionWithTools(ctx context.Context, messages []core.Message, tools []core.ToolDefinition) (string, []core.ToolCall, error) {
	return s.response, nil, nil
}

func (s *stubClient) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, core.ErrEmbedUnsupported
}

func seedThread(t *testing.T, db *store.DB, userID, threadID string, turns int) []openrouter.Message {
	t.Helper()
	ctx := context.Background()
	var history []openrouter.Message
	for i := 0; i < turns; i++ {
		role := "user"
		sender := userID
		if i%2 == 1 {
			role = "assistant"
			sender = "hattiebot"
		}
		if _, err := db.InsertMessage(ctx, role, "turn content", "", sender, "test", threadID, "", "", ""); err != nil {
			t.Fatalf("seeding turn %d: %v", i, err)
		}
		history = append(history, openrouter.Message{Role: role, Content: "turn content"})
	}
	return history
}

func TestCompactBelowThresholdNoOp(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("opening db: %v", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(context.Background(), `INSERT INTO users (id, name, platform) VALUES ('u1', 'Test', 'test')`); err != nil {
		t.Fatalf("seeding user: %v", err)
	}

	history := seedThread(t, db, "u1", "thread1", 10)
	c := NewCompactor(&stubClient{response: "[]"})

	result, changed, err := c.Compact(context.Background(), db, "u1", "thread1", history)
	if err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if changed {
		t.Error("expected no compaction below the turn threshold")
	}
	if len(result) != len(history) {
		t.Errorf("expected history unchanged, got %d vs %d", len(result), len(history))
	}
}

func TestCompactEvictsOldestTurnsAndPersistsFacts(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("opening db: %v", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(context.Background(), `INSERT INTO users (id, name, platform) VALUES ('u1', 'Test', 'test')`); err != nil {
		t.Fatalf("seeding user: %v", err)
	}

	history := seedThread(t, db, "u1", "thread1", turnsBeforeCompaction)
	c := NewCompactor(&stubClient{response: `[{"key":"favorite_color","value":"blue","confidence":0.8}]`})

	result, changed, err := c.Compact(context.Background(), db, "u1", "thread1", history)
	if err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if !changed {
		t.Fatal("expected compaction to trigger at the turn threshold")
	}
	if len(result) != len(history)-evictedTurnCount {
		t.Errorf("expected %d remaining turns, got %d", len(history)-evictedTurnCount, len(result))
	}

	var remainingInDB int
	if err := db.QueryRowContext(context.Background(), `SELECT COUNT(*) FROM messages WHERE thread_id = 'thread1'`).Scan(&remainingInDB); err != nil {
		t.Fatalf("counting messages: %v", err)
	}
	if remainingInDB != turnsBeforeCompaction-evictedTurnCount {
		t.Errorf("expected %d messages left in store, got %d", turnsBeforeCompaction-evictedTurnCount, remainingInDB)
	}

	fact, err := db.GetFact(context.Background(), "u1", "favorite_color")
	if err != nil {
		t.Fatalf("GetFact: %v", err)
	}
	if fact == nil {
		t.Fatal("expected extracted fact to be persisted")
	}
	if fact.Category != "Context" {
		t.Errorf("expected extracted fact to be a Context memory entry, got %q", fact.Category)
	}
}
