package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/hattiebot/hattiebot/internal/config"
	"github.com/hattiebot/hattiebot/internal/openrouter"
	"github.com/hattiebot/hattiebot/internal/store"
)

func joinTiers(msgs []openrouter.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString(m.Content)
	}
	return b.String()
}

func TestBuildSystemPrompt_contains_SelfImprovement(t *testing.T) {
	ctx := context.Background()
	db, err := store.Open(ctx, ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	cfg := &config.Config{ConfigDir: t.TempDir(), WorkspaceDir: t.TempDir(), AgentName: "Test"}
	tiers, err := BuildSystemPrompt(ctx, db, cfg, "user1")
	if err != nil {
		t.Fatal(err)
	}
	prompt := joinTiers(tiers)
	if !strings.Contains(prompt, "Self-Improvement") {
		t.Error("expected prompt to contain Self-Improvement block")
	}
	if !strings.Contains(prompt, "manage_submind") {
		t.Error("expected prompt to mention manage_submind")
	}
}

func TestBuildSystemPrompt_injects_broken_tools(t *testing.T) {
	ctx := context.Background()
	db, err := store.Open(ctx, ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	_, err = db.InsertTool(ctx, "broken_one", "/bin/broken", "desc", "{}")
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		_ = db.RecordToolFailure(ctx, "broken_one", "invalid json output")
	}
	cfg := &config.Config{ConfigDir: t.TempDir(), WorkspaceDir: t.TempDir(), AgentName: "Test"}
	tiers, err := BuildSystemPrompt(ctx, db, cfg, "user1")
	if err != nil {
		t.Fatal(err)
	}
	prompt := joinTiers(tiers)
	if !strings.Contains(prompt, "== BROKEN TOOLS ==") {
		t.Error("expected prompt to contain BROKEN TOOLS block")
	}
	if !strings.Contains(prompt, "broken_one") {
		t.Error("expected prompt to contain broken tool name")
	}
	if !strings.Contains(prompt, "invalid json output") {
		t.Error("expected prompt to contain last_error")
	}
}

func TestBuildSystemPrompt_no_broken_tools_block_when_empty(t *testing.T) {
	ctx := context.Background()
	db, err := store.Open(ctx, ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	cfg := &config.Config{ConfigDir: t.TempDir(), WorkspaceDir: t.TempDir(), AgentName: "Test"}
	tiers, err := BuildSystemPrompt(ctx, db, cfg, "user1")
	if err != nil {
		t.Fatal(err)
	}
	prompt := joinTiers(tiers)
	if strings.Contains(prompt, "== BROKEN TOOLS ==") {
		t.Error("expected no BROKEN TOOLS block when no broken tools")
	}
}

func TestBuildSystemPrompt_tiers_have_cache_breakpoints(t *testing.T) {
	ctx := context.Background()
	db, err := store.Open(ctx, ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	cfg := &config.Config{ConfigDir: t.TempDir(), WorkspaceDir: t.TempDir(), AgentName: "Test"}
	tiers, err := BuildSystemPrompt(ctx, db, cfg, "user1")
	if err != nil {
		t.Fatal(err)
	}
	if len(tiers) != 3 {
		t.Fatalf("expected 3 tiers, got %d", len(tiers))
	}
	if !tiers[0].CacheBreakpoint {
		t.Error("expected Tier 1 to carry a cache breakpoint")
	}
	if !tiers[1].CacheBreakpoint {
		t.Error("expected Tier 2 to carry a cache breakpoint")
	}
	if tiers[2].CacheBreakpoint {
		t.Error("expected Tier 3 (volatile) to never carry a cache breakpoint")
	}
}

func TestBuildSystemPrompt_tier1_truncates_large_context_docs(t *testing.T) {
	ctx := context.Background()
	db, err := store.Open(ctx, ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	big := strings.Repeat("x", 25000)
	if _, err := db.CreateContextDoc(ctx, "big-doc", big, "big doc"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetContextDocActive(ctx, "big-doc", true); err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{ConfigDir: t.TempDir(), WorkspaceDir: t.TempDir(), AgentName: "Test"}
	tiers, err := BuildSystemPrompt(ctx, db, cfg, "user1")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(tiers[0].Content, elisionMarker) {
		t.Error("expected Tier 1 to elide an oversized context doc")
	}
	if len(tiers[0].Content) > tierOneAggregateLimit+10000 {
		t.Errorf("Tier 1 content grew far beyond the aggregate cap: %d bytes", len(tiers[0].Content))
	}
}
