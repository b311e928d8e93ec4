package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type ScheduledPlan struct {
	ID            int64      `json:"id"`
	UserID        string     `json:"user_id"`
	Description   string     `json:"description"`
	ActionType    string     `json:"action_type"`    // "remind", "execute_tool"
	ActionPayload string     `json:"action_payload"` // JSON
	ScheduleType  string     `json:"schedule_type"`  // "once", "daily", "weekly"
	ScheduleValue string     `json:"schedule_value"` // time or datetime
	NextRunAt     *time.Time `json:"next_run_at"`
	LastRunAt     *time.Time `json:"last_run_at"`
	LockedUntil   *time.Time `json:"locked_until"`
	Status        string     `json:"status"` // active, paused, completed
	CreatedAt     time.Time  `json:"created_at"`
}

// CreatePlan creates a new scheduled plan.
func (db *DB) CreatePlan(ctx context.Context, userID, description, actionType, actionPayload, scheduleType, scheduleValue string, nextRunAt time.Time) (int64, error) {
	res, err := db.ExecContext(ctx,
		`INSERT INTO scheduled_plans (user_id, description, action_type, action_payload, schedule_type, schedule_value, next_run_at, status) 
		 VALUES (?, ?, ?, ?, ?, ?, ?, 'active')`,
		userID, description, actionType, actionPayload, scheduleType, scheduleValue, nextRunAt,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListPlans returns all plans for a user with optional status filter.
func (db *DB) ListPlans(ctx context.Context, userID, status string) ([]ScheduledPlan, error) {
	query := `SELECT id, user_id, description, action_type, action_payload, schedule_type, schedule_value, next_run_at, last_run_at, status, created_at FROM scheduled_plans WHERE user_id = ?`
	args := []interface{}{userID}
	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	query += " ORDER BY next_run_at ASC"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ScheduledPlan
	for rows.Next() {
		var p ScheduledPlan
		var nextRun, lastRun sql.NullTime
		var payload sql.NullString
		if err := rows.Scan(&p.ID, &p.UserID, &p.Description, &p.ActionType, &payload, &p.ScheduleType, &p.ScheduleValue, &nextRun, &lastRun, &p.Status, &p.CreatedAt); err != nil {
			return nil, err
		}
		if nextRun.Valid {
			p.NextRunAt = &nextRun.Time
		}
		if lastRun.Valid {
			p.LastRunAt = &lastRun.Time
		}
		if payload.Valid {
			p.ActionPayload = payload.String
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetDuePlans returns plans that should run now or in the past (global, for scheduler).
func (db *DB) GetDuePlans(ctx context.Context) ([]ScheduledPlan, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, user_id, description, action_type, action_payload, schedule_type, schedule_value, next_run_at, last_run_at, status, created_at 
		 FROM scheduled_plans 
		 WHERE status = 'active' AND next_run_at <= ?`,
		time.Now(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ScheduledPlan
	for rows.Next() {
		var p ScheduledPlan
		var nextRun, lastRun sql.NullTime
		var payload sql.NullString
		if err := rows.Scan(&p.ID, &p.UserID, &p.Description, &p.ActionType, &payload, &p.ScheduleType, &p.ScheduleValue, &nextRun, &lastRun, &p.Status, &p.CreatedAt); err != nil {
			return nil, err
		}
		if nextRun.Valid {
			p.NextRunAt = &nextRun.Time
		}
		if lastRun.Valid {
			p.LastRunAt = &lastRun.Time
		}
		if payload.Valid {
			p.ActionPayload = payload.String
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ClaimDuePlans atomically locks and returns plans that are due (global, for scheduler).
func (db *DB) ClaimDuePlans(ctx context.Context, lockTimeout time.Duration) ([]ScheduledPlan, error) {
	now := time.Now()
	lockUntil := now.Add(lockTimeout)

	// Attempt using UPDATE ... RETURNING (SQLite 3.35+)
	query := `
		UPDATE scheduled_plans 
		SET locked_until = ? 
		WHERE status = 'active' 
		  AND next_run_at <= ? 
		  AND (locked_until IS NULL OR locked_until < ?)
		RETURNING id, user_id, description, action_type, action_payload, schedule_type, schedule_value, next_run_at, last_run_at, locked_until, status, created_at
	`
	
	rows, err := db.QueryContext(ctx, query, lockUntil, now, now)
	if err != nil {
		return nil, fmt.Errorf("claiming plans: %w", err)
	}
	defer rows.Close()

	var out []ScheduledPlan
	for rows.Next() {
		var p ScheduledPlan
		var nextRun, lastRun, lockedUntil sql.NullTime
		var payload sql.NullString
		if err := rows.Scan(&p.ID, &p.UserID, &p.Description, &p.ActionType, &payload, &p.ScheduleType, &p.ScheduleValue, &nextRun, &lastRun, &lockedUntil, &p.Status, &p.CreatedAt); err != nil {
			return nil, err
		}
		if nextRun.Valid { p.NextRunAt = &nextRun.Time }
		if lastRun.Valid { p.LastRunAt = &lastRun.Time }
		if lockedUntil.Valid { p.LockedUntil = &lockedUntil.Time }
		if payload.Valid { p.ActionPayload = payload.String }
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkPlanRun updates last_run_at, increments total_runs, resets the
// consecutive-error counter, and calculates next_run_at for recurring
// plans (spec.md §3 "Scheduled job" invariant: next_fire is always
// recomputed on successful fire; Once jobs are disabled after firing).
// scheduleValue is interpreted per scheduleType: "once" carries an
// RFC3339 timestamp (unused here, kept for symmetry), "interval" a
// second count, "daily" "HH:MM", "weekly" "weekday,HH:MM", and "cron" a
// standard 5-field cron expression (spec.md §9 Open Question i).
func (db *DB) MarkPlanRun(ctx context.Context, id int64, scheduleType, scheduleValue string) error {
	now := time.Now()

	if scheduleType == "once" {
		_, err := db.ExecContext(ctx,
			`UPDATE scheduled_plans SET last_run_at = ?, status = 'completed', enabled = 0,
			 total_runs = total_runs + 1, consecutive_errors = 0, locked_until = NULL, last_status = 'Completed' WHERE id = ?`,
			now, id,
		)
		return err
	}

	next, err := NextFire(scheduleType, scheduleValue, now)
	if err != nil {
		return fmt.Errorf("computing next fire for plan %d: %w", id, err)
	}

	_, err = db.ExecContext(ctx,
		`UPDATE scheduled_plans SET last_run_at = ?, next_run_at = ?, locked_until = NULL,
		 total_runs = total_runs + 1, consecutive_errors = 0, last_status = 'Completed' WHERE id = ?`,
		now, next, id,
	)
	return err
}

// MarkPlanFailed records a failed dispatch attempt (e.g. CHANNEL_OFFLINE)
// without treating it as a fire for next_run_at purposes, incrementing
// the consecutive-error counter (spec.md §4.6 "Actions").
func (db *DB) MarkPlanFailed(ctx context.Context, id int64) error {
	_, err := db.ExecContext(ctx,
		`UPDATE scheduled_plans SET last_run_at = ?, consecutive_errors = consecutive_errors + 1,
		 total_runs = total_runs + 1, locked_until = NULL, last_status = 'Failed' WHERE id = ?`,
		time.Now(), id,
	)
	return err
}

// MarkPlanMissed recomputes next_run_at for a badly overdue recurring plan
// (past due by more than 24h) without dispatching it, per spec.md §4.6
// missed-run recovery: "mark last status Missed, recompute next_fire, skip
// execution".
func (db *DB) MarkPlanMissed(ctx context.Context, id int64, scheduleType, scheduleValue string) error {
	next, err := NextFire(scheduleType, scheduleValue, time.Now())
	if err != nil {
		return fmt.Errorf("computing next fire for missed plan %d: %w", id, err)
	}
	_, err = db.ExecContext(ctx,
		`UPDATE scheduled_plans SET next_run_at = ?, locked_until = NULL, last_status = 'Missed' WHERE id = ?`,
		next, id,
	)
	return err
}

// DisablePlan clears the enabled flag, e.g. when missed-run recovery
// marks a badly overdue recurring job Missed and skips execution.
func (db *DB) DisablePlan(ctx context.Context, id int64) error {
	_, err := db.ExecContext(ctx, `UPDATE scheduled_plans SET enabled = 0 WHERE id = ?`, id)
	return err
}

// UpdatePlanStatus changes the status of a plan.
func (db *DB) UpdatePlanStatus(ctx context.Context, id int64, status string) error {
	_, err := db.ExecContext(ctx, `UPDATE scheduled_plans SET status = ? WHERE id = ?`, status, id)
	return err
}

// DeletePlan removes a plan.
func (db *DB) DeletePlan(ctx context.Context, id int64) error {
	_, err := db.ExecContext(ctx, `DELETE FROM scheduled_plans WHERE id = ?`, id)
	return err
}
