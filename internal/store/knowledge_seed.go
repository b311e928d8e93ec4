package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
)

// seedKnowledgeDocuments scans ~/.skynet/knowledge/*.md on startup. Each
// filename (sans extension) becomes a topic; an optional first line of the
// form "tags: a,b,c" is parsed off and stored separately. Existing topics
// are never overwritten by seeding (spec.md §4.5 "existing topics in DB
// are preserved").
func seedKnowledgeDocuments(ctx context.Context, db *sql.DB) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	dir := filepath.Join(home, ".skynet", "knowledge")
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		topic := strings.TrimSuffix(e.Name(), ".md")

		var exists int
		if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM context_documents WHERE title = ?`, topic).Scan(&exists); err != nil {
			return err
		}
		if exists > 0 {
			continue
		}

		raw, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return err
		}
		content := string(raw)
		tags := ""
		lines := strings.SplitN(content, "\n", 2)
		if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[0]), "tags:") {
			tags = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(lines[0]), "tags:"))
			if len(lines) > 1 {
				content = lines[1]
			} else {
				content = ""
			}
		}
		content = strings.TrimLeft(content, "\n")

		if _, err := db.ExecContext(ctx,
			`INSERT INTO context_documents (title, content, description, tags, source, is_active) VALUES (?, ?, ?, ?, 'seed', 1)`,
			topic, content, "seeded from "+e.Name(), tags,
		); err != nil {
			return err
		}
	}
	return nil
}
