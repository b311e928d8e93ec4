package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/hattiebot/hattiebot/internal/core"
	"github.com/hattiebot/hattiebot/internal/openrouter"
	"github.com/hattiebot/hattiebot/internal/store"
)

// turnsBeforeCompaction is the trigger threshold: once a session accumulates
// this many turns, the oldest evictedTurnCount of them are summarized into
// memory facts and dropped (spec.md §4.3).
const turnsBeforeCompaction = 40

// evictedTurnCount is how many of the oldest turns are removed per
// compaction pass.
const evictedTurnCount = 20

// maxExtractedFacts caps how many atomic facts one compaction pass writes.
const maxExtractedFacts = 10

// Compactor extracts durable facts out of a session's oldest turns and
// deletes those turns once they've been reduced to memory entries, keeping
// the live context window bounded without silently discarding information.
type Compactor struct {
	Client core.LLMClient
}

func NewCompactor(client core.LLMClient) *Compactor {
	return &Compactor{Client: client}
}

type extractedFactJSON struct {
	Key        string  `json:"key"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// Compact checks whether the session has reached the turn-count trigger and,
// if so, extracts atomic facts from the oldest turns, persists them as
// Context memory entries, and deletes those turns from the store in one
// transaction. It returns the (possibly trimmed) in-memory history and
// whether compaction ran.
func (c *Compactor) Compact(ctx context.Context, db *store.DB, userID, threadID string, history []openrouter.Message) ([]openrouter.Message, bool, error) {
	if len(history) < turnsBeforeCompaction {
		return history, false, nil
	}

	evict := evictedTurnCount
	if evict > len(history) {
		evict = len(history)
	}
	toEvict := history[:evict]
	remaining := history[evict:]

	facts, err := c.extractFacts(ctx, toEvict)
	if err != nil {
		compactorHealth.RecordError(err)
		return history, false, fmt.Errorf("extracting facts for compaction: %w", err)
	}

	ids, err := db.OldestMessageIDs(ctx, threadID, evict)
	if err != nil {
		compactorHealth.RecordError(err)
		return history, false, fmt.Errorf("locating turns to evict: %w", err)
	}

	if err := db.CompactThread(ctx, userID, threadID, facts, ids); err != nil {
		compactorHealth.RecordError(err)
		return history, false, fmt.Errorf("persisting compaction: %w", err)
	}

	compactorHealth.RecordCompaction(len(ids))
	log.Printf("[COMPACTOR] Evicted %d turns from thread %s, extracted %d facts", len(ids), threadID, len(facts))
	return remaining, true, nil
}

// extractFacts asks the model to reduce a block of turns to at most
// maxExtractedFacts atomic facts, expressed as JSON.
func (c *Compactor) extractFacts(ctx context.Context, turns []openrouter.Message) ([]store.ExtractedFact, error) {
	var sb strings.Builder
	for _, m := range turns {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		sb.WriteString(fmt.Sprintf("%s: %s\n", m.Role, m.Content))
	}

	prompt := fmt.Sprintf(
		"Extract at most %d atomic, durable facts from the conversation excerpt below "+
			"(user preferences, stated goals, decisions, names, ongoing tasks — not small talk). "+
			"Respond with a JSON array only, no prose, no markdown fences, each element "+
			`shaped like {"key": "short_snake_case_label", "value": "the fact", "confidence": 0.0-1.0}. `+
			"If nothing durable is worth keeping, respond with an empty array.\n\n%s",
		maxExtractedFacts, sb.String(),
	)

	req := []openrouter.Message{
		{Role: "system", Content: "You compress conversation history into durable memory facts."},
		{Role: "user", Content: prompt},
	}

	raw, err := c.Client.ChatCompletion(ctx, req)
	if err != nil {
		return nil, err
	}

	items := parseExtractedFacts(raw)
	if len(items) > maxExtractedFacts {
		items = items[:maxExtractedFacts]
	}

	out := make([]store.ExtractedFact, 0, len(items))
	for _, it := range items {
		if it.Key == "" || it.Value == "" {
			continue
		}
		out = append(out, store.ExtractedFact{Key: it.Key, Value: it.Value, Confidence: it.Confidence})
	}
	return out, nil
}

// parseExtractedFacts tolerates the model wrapping its JSON array in a
// markdown code fence despite being asked not to.
func parseExtractedFacts(raw string) []extractedFactJSON {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start == -1 || end == -1 || end < start {
		return nil
	}
	s = s[start : end+1]

	var items []extractedFactJSON
	if err := json.Unmarshal([]byte(s), &items); err != nil {
		return nil
	}
	return items
}
