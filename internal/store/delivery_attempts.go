package store

import "context"

// RecordDeliveryAttempt logs one dispatch attempt for a scheduled plan,
// distinct from the plan's own last-status columns (spec.md §6
// delivery_attempts) so a retried or missed delivery keeps its full
// history instead of being overwritten in place.
func (db *DB) RecordDeliveryAttempt(ctx context.Context, planID int64, channel, status, reason string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO delivery_attempts (plan_id, channel, status, reason) VALUES (?, ?, ?, ?)`,
		planID, channel, status, reason,
	)
	return err
}

// DeliveryAttempt is one row of a scheduled plan's dispatch history.
type DeliveryAttempt struct {
	ID          int64
	PlanID      int64
	Channel     string
	Status      string
	Reason      string
	AttemptedAt string
}

// ListDeliveryAttempts returns a plan's dispatch history, most recent first.
func (db *DB) ListDeliveryAttempts(ctx context.Context, planID int64) ([]DeliveryAttempt, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, plan_id, channel, status, reason, attempted_at FROM delivery_attempts
		 WHERE plan_id = ? ORDER BY attempted_at DESC`, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DeliveryAttempt
	for rows.Next() {
		var a DeliveryAttempt
		var channel, reason *string
		if err := rows.Scan(&a.ID, &a.PlanID, &channel, &a.Status, &reason, &a.AttemptedAt); err != nil {
			return nil, err
		}
		if channel != nil {
			a.Channel = *channel
		}
		if reason != nil {
			a.Reason = *reason
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
