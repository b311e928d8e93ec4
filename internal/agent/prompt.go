package agent

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/hattiebot/hattiebot/internal/config"
	"github.com/hattiebot/hattiebot/internal/openrouter"
	"github.com/hattiebot/hattiebot/internal/store"
)

// StaticInstructions are prepended to the system prompt (safety, tool use, architecture reference).
const StaticInstructions = `
You have access to tools. Use them when the user asks to list files, read files, run commands, create tools, or similar; do not output shell commands as a code block for the user to run—invoke list_dir, read_file, run_terminal_cmd, etc. within the conversation. Prefer structured tool output (JSON).
Do not execute destructive commands (rm -rf /) without user confirmation.
You run inside a container; the host is not directly accessible. Use mounted paths for persistence.

Create Tools Autonomously:
When the user asks for a new capability (e.g. "make a tool that does X"):
1. USE 'autohand_cli' to write the Go source in $CONFIG_DIR/tools/<toolname>/main.go (or use the Config Dir path from RUNTIME). Provide a detailed instruction to it (e.g. "Write a Go tool that..."). It is a specialized coding agent; delegate the coding to it.
2. Build it: "go build -o $CONFIG_DIR/bin/<toolname> $CONFIG_DIR/tools/<toolname>" (use the Config Dir from RUNTIME if $CONFIG_DIR is empty).
3. TEST IT: Run the binary with sample input to verify it works. If it fails or errors, DELETE the source file ($CONFIG_DIR/tools/<toolname>/main.go) and use the 'autohand_cli' tool again to write fixed code from scratch. This prevents stale code from persisting.
4. Only after it passes your test, run "register_tool" with the tool name, binary path, and description.
5. Finally, USE the tool to fulfill the user's request.
NEVER ask the user to run commands for you. You must execute the build, test, and register commands yourself.
Always make sure your builds complete successfully before considering your job done. Verify the output of your build commands.

Problem-solving:
If you need a tool you don't have, create it using the steps above. Do not stop at "I can't do X".

Multi-step diagnosis: When investigating an issue (e.g. "why didn't my reminder send?"), run ALL diagnostic tools in the SAME turn before replying. Do NOT output text like "Let me dig deeper" or "I'll check the logs" and then stop—emit the tool calls (read_logs, self_reflect, system_status) immediately. Only after you have the results should you summarize for the user.

Self-Improvement:
When you need a new capability, decide: new tool (new binary/behavior), new sub-mind (focused workflow with its own prompt/tools), existing tool/submind (use or resume), or user help.
- Tool: for one-off actions or reusable CLI-style behavior → create Go binary, validate, register.
- Sub-mind: for multi-step workflows (e.g. "plan then execute") or isolated context → use manage_submind create then spawn_submind. You can copy from $CONFIG_DIR/templates/submind_example.json as a scaffold.

Context Management:
You can manage your own context by loading and unloading documents.
- If you need specific knowledge (e.g. how to write tools, project architecture) that isn't in your immediate context, use 'manage_context_doc' with action="list" to see available documents, then action="toggle" active=true to load one.
- "Prime" yourself with this knowledge, complete the task, and then UNLOAD it (action="toggle" active=false) to keep your context clean.
- If you learn something valuable that you might need later (e.g. a complex procedure), create a new context document for it.

In your final reply, never include raw XML-like tags such as <function_calls>; allow the platform to render tool outputs.

Critical: If you intend to run more tools (e.g. read_logs, self_reflect, system_status), you MUST emit those tool calls in the same response. Never output text promising to "dig deeper" or "check the logs" and then stop—the loop will end and the user will not get the diagnosis. Run all needed tools first, then summarize.

Status updates: You CAN return both text and tool calls in a single response. When you do, the user sees your text immediately while tools run. Use this sparingly: (a) when you make a major decision about your approach (e.g. "Switching to plan B—checking the scheduler logs"), or (b) when processing has taken several tool rounds and the user has had no feedback. Do NOT include a status update for every tool call—only when it would help the user understand progress.

Self-modification log: When you modify core code (internal/*, cmd/*, Dockerfile, etc.) or config that lives in the workspace, call log_self_modification immediately after. Include file paths, change_type (core_code or config), and a brief description of what you changed and why. This log survives rebuilds—if a software update wipes your changes, you or the user can reference it via read_self_modification_log to re-apply them. Do NOT log changes to $CONFIG_DIR/tools (registered tools)—those persist in the data volume.

Custom webhooks: You can add webhook endpoints for external services (GitHub, Stripe, etc.) without editing the main codebase. Use add_webhook_route with path (e.g. /webhook/github), id, secret_header, secret_env, and auth_type (header or hmac_sha256). The config lives in $CONFIG_DIR/webhook_routes.json and survives rebuilds. Use list_webhook_routes to see current routes. After adding, the endpoint is active immediately—no restart needed. Replies to webhook messages are forwarded to the admin.
`

const (
	// tierOneDocLimit truncates a single workspace identity document.
	tierOneDocLimit = 20000
	// tierOneAggregateLimit caps the total size of all Tier 1 documents combined.
	tierOneAggregateLimit = 100000
	// tierTwoLimit caps rendered user memory.
	tierTwoLimit = 6000
	elisionMarker = "\n... [truncated] ...\n"
)

// truncateDoc applies the 70% head / 10% elision marker / 20% tail split
// used for Tier 1 workspace documents (spec.md §4.3).
func truncateDoc(content string, limit int) string {
	if len(content) <= limit {
		return content
	}
	headLen := limit * 70 / 100
	tailLen := limit * 20 / 100
	if headLen+tailLen >= limit {
		tailLen = limit - headLen
	}
	head := content[:headLen]
	tail := content[len(content)-tailLen:]
	return head + elisionMarker + tail
}

// factCategoryRank orders Tier 2 memory by category priority
// (Instruction > Preference > Fact > Context), unknown categories last.
func factCategoryRank(category string) int {
	switch category {
	case "Instruction":
		return 0
	case "Preference":
		return 1
	case "Fact":
		return 2
	case "Context":
		return 3
	default:
		return 4
	}
}

// BuildSystemPrompt assembles the three-tier system prompt (spec.md §4.3):
// Tier 1 static/cacheable workspace content, Tier 2 per-user memory, Tier 3
// volatile state. Returns one openrouter.Message per tier, in order, so
// providers with native prompt caching (see llmrouter.AnthropicProvider)
// can pin cache breakpoints at tier boundaries; providers that don't
// support that just see the concatenation as plain system text.
func BuildSystemPrompt(ctx context.Context, db *store.DB, cfg *config.Config, userID string) ([]openrouter.Message, error) {
	tier1, err := buildTierOne(ctx, db, cfg)
	if err != nil {
		return nil, err
	}
	tier2, err := buildTierTwo(ctx, db, userID)
	if err != nil {
		return nil, err
	}
	tier3 := buildTierThree(ctx, db)

	return []openrouter.Message{
		{Role: "system", Content: tier1, CacheBreakpoint: true},
		{Role: "system", Content: tier2, CacheBreakpoint: true},
		{Role: "system", Content: tier3, CacheBreakpoint: false},
	}, nil
}

// buildTierOne renders the static, most-cacheable tier: SOUL.md identity,
// workspace identity docs (fixed load order, truncated per-doc and
// aggregate-capped), safety rules, and tool definitions.
func buildTierOne(ctx context.Context, db *store.DB, cfg *config.Config) (string, error) {
	var b strings.Builder

	soul, err := LoadIdentity(cfg.ConfigDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to load SOUL.md: %v\n", err)
	}
	b.WriteString(FormatIdentityPrompt(soul))
	b.WriteString(fmt.Sprintf("\n\n== WORKSPACE ==\nOS: %s\nWorkspace: %s\nConfig Dir: %s\nAgent Name: %s\n", runtime.GOOS, cfg.WorkspaceDir, cfg.ConfigDir, cfg.AgentName))

	// Fixed load order: active context documents are the workspace's other
	// identity .md files, loaded in the order stored (spec.md §4.3 "fixed
	// load order"). Each is truncated individually, then the running total
	// is capped.
	docs, _ := db.ListActiveContextDocs(ctx)
	aggregate := 0
	if len(docs) > 0 {
		b.WriteString("\n\n== ACTIVE CONTEXT DOCUMENTS ==\n")
		for _, doc := range docs {
			truncated := truncateDoc(doc.Content, tierOneDocLimit)
			if aggregate+len(truncated) > tierOneAggregateLimit {
				remaining := tierOneAggregateLimit - aggregate
				if remaining <= 0 {
					break
				}
				truncated = truncated[:remaining]
			}
			aggregate += len(truncated)
			b.WriteString(fmt.Sprintf("### %s\n%s\n\n", doc.Title, truncated))
			if aggregate >= tierOneAggregateLimit {
				break
			}
		}
		b.WriteString("===============================\n")
	}

	allDocs, _ := db.ListContextDocs(ctx)
	inactiveDocs := ""
	for _, doc := range allDocs {
		if !doc.IsActive {
			inactiveDocs += fmt.Sprintf("- %s: %s\n", doc.Title, doc.Description)
		}
	}
	if inactiveDocs != "" {
		b.WriteString("\n\n== AVAILABLE CONTEXT DOCUMENTS ==\n(Load these using 'manage_context_doc' with action='activate' ONLY if needed for current task)\n" + inactiveDocs + "===============================\n")
	}

	broken, _ := db.ListBrokenTools(ctx)
	if len(broken) > 0 {
		b.WriteString("\n\n== BROKEN TOOLS ==\n")
		for _, t := range broken {
			b.WriteString(fmt.Sprintf("- %s: %s\n", t.Name, t.LastError))
		}
		b.WriteString("[ACTION]: Consider repairing or deprecating. Use spawn_submind with mode tool_creation and the tool name and last_error.\n===============================\n")
	}

	regTools, _ := db.AllTools(ctx)
	if len(regTools) > 0 {
		b.WriteString("\n\n== REGISTERED TOOLS ==\nTo use these, call 'execute_registered_tool' with {\"name\": \"<name>\", \"args\": { ... }}\n")
		for _, t := range regTools {
			b.WriteString(fmt.Sprintf("- %s: %s\n  Schema: %s\n", t.Name, t.Description, t.InputSchema))
		}
		b.WriteString("===============================\n")
	}

	// Hot-index: knowledge topics whose tags overlap the tools used most in
	// the last 30 days (spec.md §4.5/§9). Belongs in Tier 1 since it's
	// derived from workspace-wide tool usage, not per-user state.
	if topics, herr := db.HotIndexTopics(ctx, 5); herr == nil && len(topics) > 0 {
		b.WriteString("\n== RELEVANT KNOWLEDGE TOPICS ==\n" + strings.Join(topics, ", ") + "\n")
	}

	b.WriteString("\n")
	b.WriteString(strings.TrimSpace(StaticInstructions))
	return b.String(), nil
}

// buildTierTwo renders the per-user tier: ranked non-expired memory,
// connected-channel/linked-identity list, current-session identity,
// pending job/plan context.
func buildTierTwo(ctx context.Context, db *store.DB, userID string) (string, error) {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("== USER CONTEXT ==\n- ID: %s", userID))

	facts, _ := db.NonExpiredFacts(ctx, userID)
	sort.SliceStable(facts, func(i, j int) bool {
		ri, rj := factCategoryRank(facts[i].Category), factCategoryRank(facts[j].Category)
		if ri != rj {
			return ri < rj
		}
		return facts[i].Confidence > facts[j].Confidence
	})
	if len(facts) > 0 {
		memBlock := "\n- Memories/Facts:"
		for _, f := range facts {
			line := fmt.Sprintf("\n  * [%s] %s: %s", f.Category, f.Key, f.Value)
			if len(memBlock)+len(line) > tierTwoLimit {
				break
			}
			memBlock += line
		}
		b.WriteString(memBlock)
	}

	identities, _ := db.ListUserIdentities(ctx, userID)
	if len(identities) > 0 {
		seen := map[string]bool{}
		var channels []string
		var linked []string
		for _, id := range identities {
			if !seen[id.Channel] {
				seen[id.Channel] = true
				channels = append(channels, id.Channel)
			}
			linked = append(linked, fmt.Sprintf("%s:%s", id.Channel, id.ExternalID))
		}
		b.WriteString("\n- Connected channels: " + strings.Join(channels, ", "))
		b.WriteString("\n- Linked identities: " + strings.Join(linked, ", "))
	}

	job, _ := db.GetActiveJob(ctx, userID)
	if job != nil {
		b.WriteString(fmt.Sprintf("\n\n== EPIC CONTEXT / ACTIVE JOB ==\nTitle: %s\nStatus: %s\nDescription: %s\n", job.Title, job.Status, job.Description))
		if job.Status == "blocked" {
			b.WriteString(fmt.Sprintf("BLOCKED REASON: %s\n[ACTION REQUIRED]: This job is BLOCKED. You must prioritize resolving this block or asking the user for help.\n", job.BlockedReason))
		}
		b.WriteString("===============================\n")
	}

	blockedJobs, _ := db.ListJobs(ctx, userID, "blocked")
	activePlans, _ := db.ListPlans(ctx, userID, "active")
	if len(blockedJobs) > 0 || len(activePlans) > 0 {
		b.WriteString("\n\n[PENDING ITEMS - ASK USER TO RESOLVE]:")
		for _, j := range blockedJobs {
			b.WriteString(fmt.Sprintf("\n- Job #%d: %s (BLOCKED: %s) [TIP: Use snooze action if user needs time]", j.ID, j.Title, j.BlockedReason))
		}
		now := time.Now()
		for _, p := range activePlans {
			if p.NextRunAt != nil && p.NextRunAt.Before(now) {
				b.WriteString(fmt.Sprintf("\n- Plan #%d: %s (Overdue since %s)", p.ID, p.Description, p.NextRunAt))
			}
		}
	}

	return b.String(), nil
}

// buildTierThree renders the volatile tier: wall-clock time and provider
// health. Never cached. The caller (loop.go) appends the live turn
// counter on each pass, since that's per-request state this builder
// doesn't have.
func buildTierThree(ctx context.Context, db *store.DB) string {
	now := time.Now().Format(time.RFC1123)
	health := openrouter.GetHealth().Summary()
	return fmt.Sprintf("\n\n== RUNTIME ==\nTime: %s\nProvider health: %s\n", now, health)
}
