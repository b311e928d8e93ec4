package store

import (
	"context"
	"sort"
	"strings"
)

// RecordToolCall logs a tool invocation for hot-index scoring (spec.md §4.5).
func (db *DB) RecordToolCall(ctx context.Context, userID, toolName string) error {
	_, err := db.ExecContext(ctx, `INSERT INTO tool_calls (user_id, tool_name) VALUES (?, ?)`, userID, toolName)
	return err
}

// TopToolNames returns up to limit tool names most frequently called in the
// last `days` days, most-called first.
func (db *DB) TopToolNames(ctx context.Context, days, limit int) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT tool_name, COUNT(*) c FROM tool_calls
		 WHERE called_at >= datetime('now', printf('-%d days', ?))
		 GROUP BY tool_name ORDER BY c DESC LIMIT ?`,
		days, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		var count int
		if err := rows.Scan(&name, &count); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// HotIndexTopics scores active knowledge entries by tag overlap with the
// last 30 days' top 20 tool names and returns up to `limit` topic titles,
// highest overlap first. Returns an empty slice (not an error) when no
// entries have tags, per spec.md §9's guidance to emit no hot-index
// section rather than guess.
func (db *DB) HotIndexTopics(ctx context.Context, limit int) ([]string, error) {
	toolNames, err := db.TopToolNames(ctx, 30, 20)
	if err != nil || len(toolNames) == 0 {
		return nil, err
	}
	toolSet := make(map[string]bool, len(toolNames))
	for _, n := range toolNames {
		toolSet[strings.ToLower(n)] = true
	}

	rows, err := db.QueryContext(ctx, `SELECT title, tags FROM context_documents WHERE is_active = 1 AND tags != ''`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type scored struct {
		title string
		score int
	}
	var candidates []scored
	for rows.Next() {
		var title, tags string
		if err := rows.Scan(&title, &tags); err != nil {
			return nil, err
		}
		score := 0
		for _, tag := range strings.Split(tags, ",") {
			if toolSet[strings.ToLower(strings.TrimSpace(tag))] {
				score++
			}
		}
		if score > 0 {
			candidates = append(candidates, scored{title: title, score: score})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.title
	}
	return out, nil
}
