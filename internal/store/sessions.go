package store

import "context"

// UpsertSession records (or bumps the last-active timestamp for) a session
// key, backing sessions.list without needing to scan all of messages
// (spec.md §6 sessions table).
func (db *DB) UpsertSession(ctx context.Context, sessionKey, userID, channel, contextSuffix string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO sessions (session_key, user_id, channel, context_suffix, last_active_at)
		 VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(session_key) DO UPDATE SET last_active_at = CURRENT_TIMESTAMP`,
		sessionKey, userID, channel, contextSuffix,
	)
	return err
}

// Session is one row of the sessions table.
type Session struct {
	SessionKey    string `json:"session_key"`
	UserID        string `json:"user_id"`
	Channel       string `json:"channel"`
	ContextSuffix string `json:"context_suffix"`
}

// ListSessionsByUser returns a user's sessions, most recently active first.
func (db *DB) ListSessionsByUser(ctx context.Context, userID string) ([]Session, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT session_key, user_id, channel, context_suffix FROM sessions WHERE user_id = ? ORDER BY last_active_at DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.SessionKey, &s.UserID, &s.Channel, &s.ContextSuffix); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
