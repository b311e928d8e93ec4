package store

import (
	"context"
	"database/sql"
	"time"
)

type Fact struct {
	ID         int64      `json:"id"`
	UserID     string     `json:"user_id"`
	Key        string     `json:"key"`
	Value      string     `json:"value"`
	Category   string     `json:"category"`
	Confidence float64    `json:"confidence"`
	Source     string     `json:"source,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// SetFact creates or updates a fact for a user with confidence 1.0.
func (db *DB) SetFact(ctx context.Context, userID, key, value, category string) error {
	return db.SetFactWithConfidence(ctx, userID, key, value, category, 1.0)
}

// SetFactWithConfidence creates or updates a fact, recording how sure the
// learn call was (spec.md §4.5 "learn" — knowledge entries carry a
// confidence score).
func (db *DB) SetFactWithConfidence(ctx context.Context, userID, key, value, category string, confidence float64) error {
	return db.SetFactFull(ctx, userID, key, value, category, confidence, "", nil)
}

// SetFactFull is the full form of learn(user, category, key, value,
// confidence, source, expiry?) from spec.md §4.5/§3. source and expiresAt
// may be zero-valued; expiresAt nil means the entry never expires.
func (db *DB) SetFactFull(ctx context.Context, userID, key, value, category string, confidence float64, source string, expiresAt *time.Time) error {
	// Higher confidence wins on conflict, otherwise the newer write wins
	// (spec.md §3, §8 property #4): learn(v1, 0.9) then learn(v2, 0.7)
	// must leave v1 in place.
	_, err := db.ExecContext(ctx,
		`INSERT INTO facts (user_id, key, value, category, confidence, source, expires_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(user_id, category, key) DO UPDATE SET
			value=excluded.value,
			confidence=excluded.confidence,
			source=excluded.source,
			expires_at=excluded.expires_at,
			updated_at=CURRENT_TIMESTAMP
		 WHERE excluded.confidence >= facts.confidence`,
		userID, key, value, category, confidence, source, expiresAt,
	)
	return err
}

// GetFact retrieves a fact by user and key. Returns nil, nil if not found.
func (db *DB) GetFact(ctx context.Context, userID, key string) (*Fact, error) {
	var f Fact
	var cat, src sql.NullString
	var conf sql.NullFloat64
	var exp sql.NullTime
	err := db.QueryRowContext(ctx,
		`SELECT id, user_id, key, value, category, confidence, source, expires_at, created_at, updated_at FROM facts WHERE user_id = ? AND key = ?`,
		userID, key,
	).Scan(&f.ID, &f.UserID, &f.Key, &f.Value, &cat, &conf, &src, &exp, &f.CreatedAt, &f.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if cat.Valid {
		f.Category = cat.String
	}
	if conf.Valid {
		f.Confidence = conf.Float64
	}
	if src.Valid {
		f.Source = src.String
	}
	if exp.Valid {
		t := exp.Time
		f.ExpiresAt = &t
	}
	return &f, nil
}

// DeleteFact removes a fact for a user by category and key. Category may
// be empty to match on key alone (memory.forget).
func (db *DB) DeleteFact(ctx context.Context, userID, category, key string) error {
	if category != "" {
		_, err := db.ExecContext(ctx, `DELETE FROM facts WHERE user_id = ? AND category = ? AND key = ?`, userID, category, key)
		return err
	}
	_, err := db.ExecContext(ctx, `DELETE FROM facts WHERE user_id = ? AND key = ?`, userID, key)
	return err
}

// SearchFacts ranks facts for a user by FTS5 relevance over (key, value),
// falling back to a LIKE scan if the query doesn't parse as FTS5 syntax
// (e.g. it contains bare punctuation FTS5's query parser rejects).
func (db *DB) SearchFacts(ctx context.Context, userID, query string) ([]Fact, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT f.id, f.user_id, f.key, f.value, f.category, f.confidence, f.source, f.expires_at, f.created_at, f.updated_at
		 FROM facts f JOIN facts_fts ON facts_fts.rowid = f.id
		 WHERE f.user_id = ? AND facts_fts MATCH ?
		 ORDER BY bm25(facts_fts) LIMIT 20`,
		userID, query,
	)
	if err != nil {
		return db.searchFactsLike(ctx, userID, query)
	}
	defer rows.Close()
	return scanFacts(rows)
}

// searchFactsLike is the pre-FTS substring fallback, used when query isn't
// valid FTS5 MATCH syntax.
func (db *DB) searchFactsLike(ctx context.Context, userID, query string) ([]Fact, error) {
	wildcard := "%" + query + "%"
	rows, err := db.QueryContext(ctx,
		`SELECT id, user_id, key, value, category, confidence, source, expires_at, created_at, updated_at
		 FROM facts
		 WHERE user_id = ? AND (key LIKE ? OR value LIKE ?)
		 ORDER BY updated_at DESC LIMIT 20`,
		userID, wildcard, wildcard,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFacts(rows)
}

// NonExpiredFacts returns every fact for a user whose expiry (if any) has
// not passed, for Tier 2 user-memory rendering (spec.md §4.3).
func (db *DB) NonExpiredFacts(ctx context.Context, userID string) ([]Fact, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, user_id, key, value, category, confidence, source, expires_at, created_at, updated_at
		 FROM facts
		 WHERE user_id = ? AND (expires_at IS NULL OR expires_at > CURRENT_TIMESTAMP)`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFacts(rows)
}

func scanFacts(rows *sql.Rows) ([]Fact, error) {
	var out []Fact
	for rows.Next() {
		var f Fact
		var cat, src sql.NullString
		var conf sql.NullFloat64
		var exp sql.NullTime
		if err := rows.Scan(&f.ID, &f.UserID, &f.Key, &f.Value, &cat, &conf, &src, &exp, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, err
		}
		if cat.Valid {
			f.Category = cat.String
		}
		if conf.Valid {
			f.Confidence = conf.Float64
		}
		if src.Valid {
			f.Source = src.String
		}
		if exp.Valid {
			t := exp.Time
			f.ExpiresAt = &t
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
