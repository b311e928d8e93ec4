package store

import (
	"context"
	"database/sql"
)

// GetUserIdentity looks up the user linked to a (channel, external_id)
// pair. Returns sql.ErrNoRows if the pair hasn't been seen before.
func (db *DB) GetUserIdentity(ctx context.Context, channel, externalID string) (string, error) {
	var userID string
	err := db.QueryRowContext(ctx,
		`SELECT user_id FROM user_identities WHERE channel = ? AND external_id = ?`,
		channel, externalID,
	).Scan(&userID)
	return userID, err
}

// LinkUserIdentity records that (channel, external_id) resolves to userID.
// Idempotent: re-linking the same pair to the same user is a no-op.
func (db *DB) LinkUserIdentity(ctx context.Context, channel, externalID, userID string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO user_identities (channel, external_id, user_id) VALUES (?, ?, ?)
		 ON CONFLICT(channel, external_id) DO UPDATE SET user_id = excluded.user_id`,
		channel, externalID, userID,
	)
	return err
}

// ListUserIdentities returns every channel/external_id pair linked to a user.
func (db *DB) ListUserIdentities(ctx context.Context, userID string) ([]struct{ Channel, ExternalID string }, error) {
	rows, err := db.QueryContext(ctx, `SELECT channel, external_id FROM user_identities WHERE user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []struct{ Channel, ExternalID string }
	for rows.Next() {
		var rec struct{ Channel, ExternalID string }
		if err := rows.Scan(&rec.Channel, &rec.ExternalID); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ErrIdentityNotFound mirrors sql.ErrNoRows for callers outside the store
// package that don't want to import database/sql just to compare.
var ErrIdentityNotFound = sql.ErrNoRows
