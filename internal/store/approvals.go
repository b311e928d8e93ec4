package store

import (
	"context"
	"database/sql"
	"time"
)

// Approval is a queued tool call awaiting an admin's decision (spec.md §3
// approval_queue, backing the manage_approvals tool).
type Approval struct {
	ID          int64      `json:"id"`
	UserID      string     `json:"user_id"`
	ToolName    string     `json:"tool_name"`
	ArgsJSON    string     `json:"args_json"`
	Status      string     `json:"status"` // pending, approved, denied
	RequestedAt time.Time  `json:"requested_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy  string     `json:"resolved_by,omitempty"`
}

// CreateApproval enqueues a tool call for admin review and returns its id.
func (db *DB) CreateApproval(ctx context.Context, userID, toolName, argsJSON string) (int64, error) {
	res, err := db.ExecContext(ctx,
		`INSERT INTO approval_queue (user_id, tool_name, args_json, status) VALUES (?, ?, ?, 'pending')`,
		userID, toolName, argsJSON,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListPendingApprovals returns all approvals awaiting a decision, oldest first.
func (db *DB) ListPendingApprovals(ctx context.Context) ([]Approval, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, user_id, tool_name, COALESCE(args_json, ''), status, requested_at, resolved_at, COALESCE(resolved_by, '')
		 FROM approval_queue WHERE status = 'pending' ORDER BY requested_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Approval
	for rows.Next() {
		var a Approval
		var resolvedAt sql.NullTime
		if err := rows.Scan(&a.ID, &a.UserID, &a.ToolName, &a.ArgsJSON, &a.Status, &a.RequestedAt, &resolvedAt, &a.ResolvedBy); err != nil {
			return nil, err
		}
		if resolvedAt.Valid {
			a.ResolvedAt = &resolvedAt.Time
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetApproval fetches one approval row by id.
func (db *DB) GetApproval(ctx context.Context, id int64) (*Approval, error) {
	var a Approval
	var resolvedAt sql.NullTime
	err := db.QueryRowContext(ctx,
		`SELECT id, user_id, tool_name, COALESCE(args_json, ''), status, requested_at, resolved_at, COALESCE(resolved_by, '')
		 FROM approval_queue WHERE id = ?`, id,
	).Scan(&a.ID, &a.UserID, &a.ToolName, &a.ArgsJSON, &a.Status, &a.RequestedAt, &resolvedAt, &a.ResolvedBy)
	if err != nil {
		return nil, err
	}
	if resolvedAt.Valid {
		a.ResolvedAt = &resolvedAt.Time
	}
	return &a, nil
}

// ResolveApproval marks a pending approval approved or denied by an admin.
func (db *DB) ResolveApproval(ctx context.Context, id int64, approve bool, resolvedBy string) error {
	status := "denied"
	if approve {
		status = "approved"
	}
	_, err := db.ExecContext(ctx,
		`UPDATE approval_queue SET status = ?, resolved_at = CURRENT_TIMESTAMP, resolved_by = ? WHERE id = ? AND status = 'pending'`,
		status, resolvedBy, id,
	)
	return err
}
