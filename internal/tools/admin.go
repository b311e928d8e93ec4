package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hattiebot/hattiebot/internal/store"
)

// isAdminCaller reports whether the calling context is either the coarse
// trust_level "admin" or the fine-grained role "admin" — either axis is
// sufficient to perform admin-only actions.
func isAdminCaller(ctx context.Context) bool {
	trustLevel, _ := ctx.Value("user_trust").(string)
	role, _ := ctx.Value("user_role").(string)
	return trustLevel == "admin" || role == store.RoleAdmin
}

// ApproveUser approves a pending user, updates their trust level, and/or
// assigns their role and capability flags.
func ApproveUser(ctx context.Context, db *store.DB, argsJSON string) (string, error) {
	if !isAdminCaller(ctx) {
		return "", fmt.Errorf("unauthorized: only admins can approve users")
	}

	// 2. Parse Args
	var args struct {
		UserID                string `json:"user_id"`
		Level                 string `json:"level"` // optional, default "trusted"
		Role                  string `json:"role"`  // optional: admin, user, child
		MayInstallSoftware    bool   `json:"may_install_software"`
		MayExecuteCommands    bool   `json:"may_execute_commands"`
		MayUseBrowser         bool   `json:"may_use_browser"`
		RequiresAdminApproval bool   `json:"requires_admin_approval"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}

	if args.Level == "" {
		args.Level = "trusted"
	}

	// 3. Validation
	validLevels := map[string]bool{"admin": true, "trusted": true, "guest": true, "restricted": true, "blocked": true}
	if !validLevels[args.Level] {
		return "", fmt.Errorf("invalid level: %s", args.Level)
	}

	// 4. Update
	if err := db.UpdateUserTrust(ctx, args.UserID, args.Level); err != nil {
		return "", err
	}

	result := fmt.Sprintf("User %s updated to trust level '%s'", args.UserID, args.Level)

	if args.Role != "" {
		validRoles := map[string]bool{store.RoleAdmin: true, store.RoleUser: true, store.RoleChild: true}
		if !validRoles[args.Role] {
			return "", fmt.Errorf("invalid role: %s", args.Role)
		}
		if err := db.SetUserRole(ctx, args.UserID, args.Role, args.MayInstallSoftware, args.MayExecuteCommands, args.MayUseBrowser, args.RequiresAdminApproval); err != nil {
			return "", err
		}
		result += fmt.Sprintf(" and role '%s'", args.Role)
	}

	return result, nil
}

// BlockUser blocks a user.
func BlockUser(ctx context.Context, db *store.DB, argsJSON string) (string, error) {
	if !isAdminCaller(ctx) {
		return "", fmt.Errorf("unauthorized: only admins can block users")
	}

	// 2. Parse Args
	var args struct {
		UserID string `json:"user_id"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}

	// 3. Update
	if err := db.UpdateUserTrust(ctx, args.UserID, "blocked"); err != nil {
		return "", err
	}

	return fmt.Sprintf("User %s blocked", args.UserID), nil
}

// ListUsers lists users (optionally filtered by trust level).
func ListUsers(ctx context.Context, db *store.DB, argsJSON string) (string, error) {
	if !isAdminCaller(ctx) {
		return "", fmt.Errorf("unauthorized: only admins can list users")
	}

	// 2. Parse Args
	var args struct {
		FilterLevel string `json:"filter_level"`
	}
	json.Unmarshal([]byte(argsJSON), &args) // Ignore error, optional

	query := `SELECT id, name, role, trust_level, platform, may_install_software, may_execute_commands, may_use_browser, requires_admin_approval, daily_token_budget, tokens_consumed_today, last_seen FROM users`
	var params []interface{}
	if args.FilterLevel != "" {
		query += ` WHERE trust_level = ?`
		params = append(params, args.FilterLevel)
	}
	query += ` ORDER BY last_seen DESC LIMIT 50`

	rows, err := db.QueryContext(ctx, query, params...)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	var users []map[string]interface{}
	for rows.Next() {
		var id, name, role, level, platform string
		var mayInstall, mayExecute, mayBrowse, requiresApproval bool
		var dailyBudget, consumed int64
		var lastSeen interface{}
		if err := rows.Scan(&id, &name, &role, &level, &platform, &mayInstall, &mayExecute, &mayBrowse, &requiresApproval, &dailyBudget, &consumed, &lastSeen); err != nil {
			continue
		}
		users = append(users, map[string]interface{}{
			"id":                      id,
			"name":                    name,
			"role":                    role,
			"trust_level":             level,
			"platform":                platform,
			"may_install_software":    mayInstall,
			"may_execute_commands":    mayExecute,
			"may_use_browser":         mayBrowse,
			"requires_admin_approval": requiresApproval,
			"daily_token_budget":      dailyBudget,
			"tokens_consumed_today":   consumed,
			"last_seen":               lastSeen,
		})
	}

	bytes, _ := json.MarshalIndent(users, "", "  ")
	return string(bytes), nil
}

// ManageApprovals lists, approves, or denies queued tool calls that
// capability-restricted users can't run unattended (approval_queue).
func ManageApprovals(ctx context.Context, db *store.DB, argsJSON string) (string, error) {
	if !isAdminCaller(ctx) {
		return "", fmt.Errorf("unauthorized: only admins can manage approvals")
	}

	var args struct {
		Action string `json:"action"` // list, approve, deny
		ID     int64  `json:"id"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}

	switch args.Action {
	case "", "list":
		pending, err := db.ListPendingApprovals(ctx)
		if err != nil {
			return "", err
		}
		bytes, _ := json.MarshalIndent(pending, "", "  ")
		return string(bytes), nil

	case "approve", "deny":
		if args.ID == 0 {
			return "", fmt.Errorf("id is required for action %q", args.Action)
		}
		resolvedBy, _ := ctx.Value("user_id").(string)
		if err := db.ResolveApproval(ctx, args.ID, args.Action == "approve", resolvedBy); err != nil {
			return "", err
		}
		return fmt.Sprintf("Approval %d %sd", args.ID, args.Action), nil

	default:
		return "", fmt.Errorf("unknown action: %s", args.Action)
	}
}
