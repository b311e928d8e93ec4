package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("Failed to create DB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestSetFactWithConfidenceHigherWins covers spec's testable property #4:
// learn(v1, 0.9) then learn(v2, 0.7) must leave v1 in place.
func TestSetFactWithConfidenceHigherWins(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, `INSERT INTO users (id, name, platform) VALUES ('u1', 'Test', 'test')`); err != nil {
		t.Fatalf("seeding user: %v", err)
	}

	if err := db.SetFactWithConfidence(ctx, "u1", "fav_color", "blue", "Preference", 0.9); err != nil {
		t.Fatalf("first learn: %v", err)
	}
	if err := db.SetFactWithConfidence(ctx, "u1", "fav_color", "red", "Preference", 0.7); err != nil {
		t.Fatalf("second learn: %v", err)
	}

	fact, err := db.GetFact(ctx, "u1", "fav_color")
	if err != nil {
		t.Fatalf("GetFact: %v", err)
	}
	if fact == nil {
		t.Fatal("expected fact to exist")
	}
	if fact.Value != "blue" {
		t.Errorf("expected higher-confidence value 'blue' to win, got %q", fact.Value)
	}

	// A later write with equal-or-higher confidence should overwrite.
	if err := db.SetFactWithConfidence(ctx, "u1", "fav_color", "green", "Preference", 0.95); err != nil {
		t.Fatalf("third learn: %v", err)
	}
	fact, _ = db.GetFact(ctx, "u1", "fav_color")
	if fact.Value != "green" {
		t.Errorf("expected higher-confidence write to win, got %q", fact.Value)
	}
}

// TestFactsUniquePerCategory covers the fix to the (user_id, key) UNIQUE
// constraint: two categories sharing a key for one user must not collide.
func TestFactsUniquePerCategory(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, `INSERT INTO users (id, name, platform) VALUES ('u1', 'Test', 'test')`); err != nil {
		t.Fatalf("seeding user: %v", err)
	}

	if err := db.SetFact(ctx, "u1", "name", "buy milk", "Instruction"); err != nil {
		t.Fatalf("set Instruction fact: %v", err)
	}
	if err := db.SetFact(ctx, "u1", "name", "Alice", "Fact"); err != nil {
		t.Fatalf("set Fact fact: %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM facts WHERE user_id = 'u1' AND key = 'name'`).Scan(&count); err != nil {
		t.Fatalf("counting facts: %v", err)
	}
	if count != 2 {
		t.Errorf("expected two distinct rows for the same key in different categories, got %d", count)
	}
}

// TestNonExpiredFacts covers Tier 2's "non-expired entries" filter (spec.md
// §4.3): a fact whose expiry has already passed must not be rendered.
func TestNonExpiredFacts(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, `INSERT INTO users (id, name, platform) VALUES ('u1', 'Test', 'test')`); err != nil {
		t.Fatalf("seeding user: %v", err)
	}

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	if err := db.SetFactFull(ctx, "u1", "expired_key", "gone", "Fact", 1.0, "test", &past); err != nil {
		t.Fatalf("set expired fact: %v", err)
	}
	if err := db.SetFactFull(ctx, "u1", "live_key", "still here", "Fact", 1.0, "test", &future); err != nil {
		t.Fatalf("set live fact: %v", err)
	}
	if err := db.SetFactFull(ctx, "u1", "eternal_key", "forever", "Fact", 1.0, "test", nil); err != nil {
		t.Fatalf("set eternal fact: %v", err)
	}

	facts, err := db.NonExpiredFacts(ctx, "u1")
	if err != nil {
		t.Fatalf("NonExpiredFacts: %v", err)
	}
	keys := map[string]bool{}
	for _, f := range facts {
		keys[f.Key] = true
	}
	if keys["expired_key"] {
		t.Error("expected expired fact to be excluded")
	}
	if !keys["live_key"] || !keys["eternal_key"] {
		t.Error("expected non-expired and never-expiring facts to be included")
	}
}
