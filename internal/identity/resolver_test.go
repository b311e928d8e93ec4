package identity

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hattiebot/hattiebot/internal/store"
	_ "modernc.org/sqlite"
)

func TestResolveCreatesAndReuses(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("opening db: %v", err)
	}
	defer db.Close()

	r, err := NewResolver(db)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	ctx := context.Background()
	user, created, err := r.Resolve(ctx, "telegram", "12345")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !created {
		t.Error("expected first Resolve to create a user")
	}

	again, created2, err := r.Resolve(ctx, "telegram", "12345")
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if created2 {
		t.Error("second Resolve of the same identity should not create a new user")
	}
	if again.ID != user.ID {
		t.Errorf("expected same user id, got %s vs %s", again.ID, user.ID)
	}
}

func TestSelfLinkMergesIdentity(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("opening db: %v", err)
	}
	defer db.Close()

	r, err := NewResolver(db)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	ctx := context.Background()
	primary, _, err := r.Resolve(ctx, "telegram", "abc")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if err := r.SelfLink(ctx, "sms", "+15555550100", primary.ID); err != nil {
		t.Fatalf("SelfLink: %v", err)
	}

	linked, created, err := r.Resolve(ctx, "sms", "+15555550100")
	if err != nil {
		t.Fatalf("Resolve after link: %v", err)
	}
	if created {
		t.Error("linked identity should resolve to the existing user, not create a new one")
	}
	if linked.ID != primary.ID {
		t.Errorf("expected linked identity to resolve to %s, got %s", primary.ID, linked.ID)
	}
}

func TestSessionKeyRoundTrip(t *testing.T) {
	key := SessionKey("u1", "telegram", "12345")
	userID, channel, suffix, ok := ParseSessionKey(key)
	if !ok {
		t.Fatal("expected ParseSessionKey to succeed")
	}
	if userID != "u1" || channel != "telegram" || suffix != "12345" {
		t.Errorf("unexpected parse result: %s %s %s", userID, channel, suffix)
	}
}
