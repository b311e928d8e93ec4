package middleware

import (
	"context"
	"fmt"

	"github.com/hattiebot/hattiebot/internal/core"
	"github.com/hattiebot/hattiebot/internal/store"
)

// ConfirmationFunc is a callback to ask the user for permission
type ConfirmationFunc func(msg string) (bool, error)

// requiredCapability maps a tool name to the capability flag a caller must
// have to invoke it (spec.md §3: may_install_software, may_execute_commands,
// may_use_browser). Tools not listed here require no capability beyond
// whatever their Policy already enforces.
var requiredCapability = map[string]string{
	"run_terminal_cmd":        "execute_commands",
	"run_sandboxed":           "execute_commands",
	"execute_registered_tool": "execute_commands",
	"install_skill":           "install_software",
	"register_tool":           "install_software",
	"delete_tool":             "install_software",
}

// childAllowed is the base chat/memory tool surface a Child role keeps
// regardless of capability flags — "Child denies all capabilities beyond
// base chat/memory access" (spec.md §3).
var childAllowed = map[string]bool{
	"memorize":        true,
	"recall_memories":  true,
	"manage_context_doc": true,
	"set_user_preference": true,
}

// PolicyMiddleware wraps a ToolExecutor and enforces both the teacher's
// original policy string (safe/restricted/admin_only, resolved via
// confirmation callback) and the role/capability model layered on top of
// it: a Child role is confined to childAllowed tools, and any role missing
// a tool's required capability is denied outright. Users flagged
// requires_admin_approval have their restricted/admin_only calls queued
// for an admin to resolve instead of asked for live confirmation.
type PolicyMiddleware struct {
	next     core.ToolExecutor
	confirm  ConfirmationFunc
	toolDefs map[string]core.ToolDefinition
	db       *store.DB
}

// NewPolicyMiddleware creates a new middleware.
// It builds a lookup map of tool definitions to check policies at runtime.
func NewPolicyMiddleware(next core.ToolExecutor, tools []core.ToolDefinition, confirm ConfirmationFunc, db *store.DB) *PolicyMiddleware {
	defs := make(map[string]core.ToolDefinition)
	for _, t := range tools {
		defs[t.Function.Name] = t
	}
	return &PolicyMiddleware{
		next:     next,
		confirm:  confirm,
		toolDefs: defs,
		db:       db,
	}
}

func (m *PolicyMiddleware) Execute(ctx context.Context, toolName string, argsJSON string) (string, error) {
	def, ok := m.toolDefs[toolName]

	// If tool not found in definitions, assume it's safe OR fail?
	// Let's default to safe but log warning, or maybe it's dynamic.
	// For "safe" tools, we just proceed.
	policy := "safe"
	if ok {
		policy = def.Policy
	}

	role, _ := ctx.Value("user_role").(string)

	if role == store.RoleChild && !childAllowed[toolName] {
		return "Error: this account's role does not permit that action.", nil
	}

	if capName, needed := requiredCapability[toolName]; needed {
		userID, _ := ctx.Value("user_id").(string)
		if m.db != nil && userID != "" {
			user, err := m.db.GetUser(ctx, userID)
			if err == nil && !user.HasCapability(capName) {
				return fmt.Sprintf("Error: this account lacks the '%s' capability required for '%s'.", capName, toolName), nil
			}
		}
	}

	if policy == "restricted" || policy == "admin_only" {
		userID, _ := ctx.Value("user_id").(string)
		requiresApproval := false
		if m.db != nil && userID != "" {
			if user, err := m.db.GetUser(ctx, userID); err == nil {
				requiresApproval = user.RequiresAdminApproval
			}
		}

		if requiresApproval && m.db != nil {
			if _, err := m.db.CreateApproval(ctx, userID, toolName, argsJSON); err != nil {
				return "", fmt.Errorf("queuing approval: %w", err)
			}
			return fmt.Sprintf("This action ('%s') requires admin approval and has been queued. You'll be notified once it's resolved.", toolName), nil
		}

		// Ask for confirmation
		if m.confirm != nil {
			approved, err := m.confirm(fmt.Sprintf("Allow tool '%s'? Policy: %s", toolName, policy))
			if err != nil {
				return "", fmt.Errorf("confirmation error: %w", err)
			}
			if !approved {
				return "Error: User denied permission to execute this tool.", nil
			}
		}
	}

	if m.db != nil {
		userID, _ := ctx.Value("user_id").(string)
		_ = m.db.RecordToolCall(ctx, userID, toolName) // best-effort usage log for hot-index scoring
	}

	return m.next.Execute(ctx, toolName, argsJSON)
}

func (m *PolicyMiddleware) SetSpawner(spawner core.SubmindSpawner) {
	m.next.SetSpawner(spawner)
}
