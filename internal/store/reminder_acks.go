package store

import "context"

// RecordReminderAck logs a user's acknowledgement of a fired reminder
// (spec.md §6 reminder_acks), e.g. a "done"/"snooze" reply, kept separate
// from scheduled_plans so a recurring plan accumulates a history of acks
// across its fires.
func (db *DB) RecordReminderAck(ctx context.Context, planID int64, userID, response string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO reminder_acks (plan_id, user_id, response) VALUES (?, ?, ?)`,
		planID, userID, response,
	)
	return err
}

// ReminderAck is one acknowledgement of a fired reminder.
type ReminderAck struct {
	ID       int64
	PlanID   int64
	UserID   string
	AckedAt  string
	Response string
}

// ListReminderAcks returns a plan's acknowledgement history, most recent first.
func (db *DB) ListReminderAcks(ctx context.Context, planID int64) ([]ReminderAck, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, plan_id, user_id, acked_at, response FROM reminder_acks
		 WHERE plan_id = ? ORDER BY acked_at DESC`, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReminderAck
	for rows.Next() {
		var a ReminderAck
		var response *string
		if err := rows.Scan(&a.ID, &a.PlanID, &a.UserID, &a.AckedAt, &response); err != nil {
			return nil, err
		}
		if response != nil {
			a.Response = *response
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
