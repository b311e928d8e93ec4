package store

import "context"

// ExtractedFact is one atomic fact pulled out of a block of turns being
// compacted away, destined for the "Context" memory category.
type ExtractedFact struct {
	Key        string
	Value      string
	Confidence float64
}

// CompactThread persists the facts extracted from the oldest turns of a
// thread and deletes those turns, in one transaction, so a crash between
// the two never leaves facts written but source turns intact (or vice
// versa) (spec.md §4.3 compaction, scenario E6).
func (db *DB) CompactThread(ctx context.Context, userID, threadID string, facts []ExtractedFact, deleteIDs []int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, f := range facts {
		if f.Key == "" {
			continue
		}
		conf := f.Confidence
		if conf <= 0 {
			conf = 0.75
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO facts (user_id, key, value, category, confidence, updated_at)
			 VALUES (?, ?, ?, 'Context', ?, CURRENT_TIMESTAMP)
			 ON CONFLICT(user_id, category, key) DO UPDATE SET
				value=excluded.value,
				confidence=excluded.confidence,
				updated_at=CURRENT_TIMESTAMP
			 WHERE excluded.confidence >= facts.confidence`,
			userID, f.Key, f.Value, conf,
		); err != nil {
			return err
		}
	}

	for _, id := range deleteIDs {
		if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// OldestMessageIDs returns the ids of the oldest n messages in a thread,
// oldest first, for compaction's turn-eviction step.
func (db *DB) OldestMessageIDs(ctx context.Context, threadID string, n int) ([]int64, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id FROM messages WHERE thread_id = ? ORDER BY id ASC LIMIT ?`,
		threadID, n,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
