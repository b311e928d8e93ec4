package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Role is the fine-grained capability axis, independent of TrustLevel
// (which is the coarse admission gate teacher already had — admin,
// trusted, guest, restricted, blocked).
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
	RoleChild = "child"
)

// User represents a user interaction identity.
type User struct {
	ID                    string    `json:"id"`
	Name                  string    `json:"name"`
	Role                  string    `json:"role"` // admin, user, child
	Platform              string    `json:"platform"`
	TrustLevel            string    `json:"trust_level"`
	MayInstallSoftware    bool      `json:"may_install_software"`
	MayExecuteCommands    bool      `json:"may_execute_commands"`
	MayUseBrowser         bool      `json:"may_use_browser"`
	RequiresAdminApproval bool      `json:"requires_admin_approval"`
	DailyTokenBudget      int64     `json:"daily_token_budget"` // 0 = unlimited
	TokensConsumedToday   int64     `json:"tokens_consumed_today"`
	BudgetResetDate       string    `json:"budget_reset_date"` // YYYY-MM-DD
	Metadata              string    `json:"metadata"`          // JSON
	FirstSeen             time.Time `json:"first_seen"`
	LastSeen              time.Time `json:"last_seen"`
}

// HasCapability reports whether the user's role/flag combination grants a
// named capability. Child denies everything beyond base chat/memory access
// regardless of the per-user flags (spec.md §3): the flags only matter for
// admin/user roles.
func (u *User) HasCapability(capability string) bool {
	if u.Role == RoleAdmin {
		return true
	}
	if u.Role == RoleChild {
		return false
	}
	switch capability {
	case "install_software":
		return u.MayInstallSoftware
	case "execute_commands":
		return u.MayExecuteCommands
	case "use_browser":
		return u.MayUseBrowser
	default:
		return true
	}
}

// GetOrCreateUser retrieves a user by ID, or creates one if not exists.
func (db *DB) GetOrCreateUser(ctx context.Context, id, name, platform string) (*User, error) {
	// Try to get
	u, err := db.GetUser(ctx, id)
	if err == nil {
		// Update last_seen
		db.ExecContext(ctx, "UPDATE users SET last_seen=CURRENT_TIMESTAMP WHERE id=?", id)
		return u, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	// Create. Default role "user" gets the default capability flags the
	// schema already assigns (may_execute_commands=1, may_use_browser=1,
	// may_install_software=0, requires_admin_approval=0); a Child is
	// created explicitly via SetUserRole, never as the default.
	if name == "" {
		name = "User " + id // Fallback name
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO users (id, name, role, platform) VALUES (?, ?, ?, ?)`,
		id, name, RoleUser, platform,
	)
	if err != nil {
		return nil, err
	}

	return db.GetUser(ctx, id)
}

const userColumns = `id, name, role, platform, trust_level,
	may_install_software, may_execute_commands, may_use_browser, requires_admin_approval,
	daily_token_budget, tokens_consumed_today, COALESCE(budget_reset_date, ''),
	COALESCE(metadata, ''), first_seen, last_seen`

func scanUser(row interface{ Scan(...interface{}) error }) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Role, &u.Platform, &u.TrustLevel,
		&u.MayInstallSoftware, &u.MayExecuteCommands, &u.MayUseBrowser, &u.RequiresAdminApproval,
		&u.DailyTokenBudget, &u.TokensConsumedToday, &u.BudgetResetDate,
		&u.Metadata, &u.FirstSeen, &u.LastSeen)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUser retrieves a user by ID.
func (db *DB) GetUser(ctx context.Context, id string) (*User, error) {
	row := db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// UpdateUserTrust updates a user's trust level (the coarse admission gate:
// admin, trusted, guest, restricted, blocked).
func (db *DB) UpdateUserTrust(ctx context.Context, id, level string) error {
	_, err := db.ExecContext(ctx, "UPDATE users SET trust_level = ? WHERE id = ?", level, id)
	return err
}

// SetUserRole assigns a role and resets that role's default capability
// flags. Child denies all capabilities beyond base chat/memory access
// (spec.md §3); User gets the caller-supplied defaults; Admin's flags are
// irrelevant since HasCapability always returns true for admins.
func (db *DB) SetUserRole(ctx context.Context, id, role string, mayInstall, mayExecute, mayBrowse, requiresApproval bool) error {
	switch role {
	case RoleChild:
		mayInstall, mayExecute, mayBrowse, requiresApproval = false, false, false, true
	case RoleAdmin:
		mayInstall, mayExecute, mayBrowse, requiresApproval = true, true, true, false
	}
	_, err := db.ExecContext(ctx,
		`UPDATE users SET role = ?, may_install_software = ?, may_execute_commands = ?, may_use_browser = ?, requires_admin_approval = ? WHERE id = ?`,
		role, mayInstall, mayExecute, mayBrowse, requiresApproval, id,
	)
	return err
}

// SetUserTokenBudget sets a user's daily token budget (0 = unlimited).
func (db *DB) SetUserTokenBudget(ctx context.Context, id string, budget int64) error {
	_, err := db.ExecContext(ctx, `UPDATE users SET daily_token_budget = ? WHERE id = ?`, budget, id)
	return err
}

// ConsumeTokenBudget adds tokens to today's usage counter, resetting the
// counter first if budget_reset_date is stale. Returns the user's state
// after the update so the caller can compare tokens_consumed_today against
// daily_token_budget.
func (db *DB) ConsumeTokenBudget(ctx context.Context, id string, tokens int64, today string) (*User, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var resetDate string
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(budget_reset_date, '') FROM users WHERE id = ?`, id).Scan(&resetDate); err != nil {
		return nil, err
	}
	if resetDate != today {
		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET tokens_consumed_today = ?, budget_reset_date = ? WHERE id = ?`,
			tokens, today, id,
		); err != nil {
			return nil, err
		}
	} else {
		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET tokens_consumed_today = tokens_consumed_today + ? WHERE id = ?`,
			tokens, id,
		); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return db.GetUser(ctx, id)
}

// UpdateUserMetadata updates the metadata JSON for a user.
func (db *DB) UpdateUserMetadata(ctx context.Context, id, metadata string) error {
	_, err := db.ExecContext(ctx, "UPDATE users SET metadata = ? WHERE id = ?", metadata, id)
	return err
}

// SetUserMetadataField patches a single dotted-path key in a user's
// metadata JSON blob without disturbing sibling keys (e.g. a
// notification preference alongside unrelated settings another tool wrote).
func (db *DB) SetUserMetadataField(ctx context.Context, id, path string, value interface{}) error {
	u, err := db.GetUser(ctx, id)
	if err != nil {
		return err
	}
	current := u.Metadata
	if current == "" {
		current = "{}"
	}
	patched, err := sjson.Set(current, path, value)
	if err != nil {
		return err
	}
	return db.UpdateUserMetadata(ctx, id, patched)
}

// GetUserMetadataField reads a single dotted-path key from a user's
// metadata JSON blob. Returns "" if the user, blob, or key is absent.
func (db *DB) GetUserMetadataField(ctx context.Context, id, path string) (string, error) {
	u, err := db.GetUser(ctx, id)
	if err != nil {
		return "", err
	}
	if u.Metadata == "" {
		return "", nil
	}
	return gjson.Get(u.Metadata, path).String(), nil
}
