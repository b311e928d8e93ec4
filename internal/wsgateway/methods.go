package wsgateway

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/hattiebot/hattiebot/internal/agent"
	"github.com/hattiebot/hattiebot/internal/wireproto"
)

// ProviderStatusSource reports per-provider health for provider.status
// and /health.
type ProviderStatusSource interface {
	Status() []ProviderStatus
}

// ProviderStatus is one provider's health summary.
type ProviderStatus struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// SessionSource backs sessions.list / sessions.get.
type SessionSource interface {
	ListSessions(ctx context.Context, userID string) ([]string, error)
	GetSession(ctx context.Context, sessionKey string, limit int) (interface{}, error)
}

// MemorySource backs memory.search / memory.learn / memory.forget.
type MemorySource interface {
	Search(ctx context.Context, userID, query string, limit int) (interface{}, error)
	Learn(ctx context.Context, userID, category, key, value string, confidence float64) error
	Forget(ctx context.Context, userID, category, key string) error
}

// CronSource backs cron.list / cron.add / cron.remove.
type CronSource interface {
	ListJobs(ctx context.Context, userID string) (interface{}, error)
	AddJob(ctx context.Context, userID string, spec json.RawMessage) (interface{}, error)
	RemoveJob(ctx context.Context, userID string, jobID string) error
}

// UpdateSource backs system.check_update, throttled to once per 24h by the
// implementation (internal/selfupdate's update-check.json state file).
type UpdateSource interface {
	CheckUpdate(ctx context.Context) (UpdateStatus, error)
}

// UpdateStatus is the result of an update-check.json lookup.
type UpdateStatus struct {
	UpdateAvailable bool   `json:"update_available"`
	CurrentVersion  string `json:"current_version"`
	LatestVersion   string `json:"latest_version,omitempty"`
	ReleaseURL      string `json:"release_url,omitempty"`
}

// TerminalSource backs the terminal.* method family.
type TerminalSource interface {
	Exec(ctx context.Context, params json.RawMessage) (interface{}, error)
	Create(ctx context.Context, params json.RawMessage) (interface{}, error)
	Write(ctx context.Context, params json.RawMessage) error
	Read(ctx context.Context, params json.RawMessage) (interface{}, error)
	Kill(ctx context.Context, params json.RawMessage) error
	List(ctx context.Context) (interface{}, error)
	ExecBackground(ctx context.Context, params json.RawMessage) (interface{}, error)
	JobStatus(ctx context.Context, jobID string) (interface{}, error)
	JobList(ctx context.Context) (interface{}, error)
	JobKill(ctx context.Context, jobID string) error
}

// buildMethodTable wires the required method set from spec.md §4.1.
// Unknown methods fall through to the UNKNOWN_METHOD response in dispatchMethod.
func (g *Gateway) buildMethodTable() map[string]HandlerFunc {
	m := map[string]HandlerFunc{}

	m["ping"] = func(ctx context.Context, c *Conn, req wireproto.Request) (interface{}, string, string) {
		return map[string]bool{"pong": true}, "", ""
	}

	m["chat.send"] = g.handleChatSend
	m["agent.status"] = g.handleAgentStatus
	m["agent.model"] = g.handleAgentModel
	m["provider.status"] = g.handleProviderStatus
	m["sessions.list"] = g.handleSessionsList
	m["sessions.get"] = g.handleSessionsGet
	m["memory.search"] = g.handleMemorySearch
	m["memory.learn"] = g.handleMemoryLearn
	m["memory.forget"] = g.handleMemoryForget
	m["cron.list"] = g.handleCronList
	m["cron.add"] = g.handleCronAdd
	m["cron.remove"] = g.handleCronRemove
	m["terminal.exec"] = g.handleTerminalExec
	m["terminal.create"] = g.handleTerminalCreate
	m["terminal.write"] = g.handleTerminalWrite
	m["terminal.read"] = g.handleTerminalRead
	m["terminal.kill"] = g.handleTerminalKill
	m["terminal.list"] = g.handleTerminalList
	m["terminal.exec_bg"] = g.handleTerminalExecBG
	m["terminal.job_status"] = g.handleTerminalJobStatus
	m["terminal.job_list"] = g.handleTerminalJobList
	m["terminal.job_kill"] = g.handleTerminalJobKill
	m["system.version"] = g.handleSystemVersion
	m["system.check_update"] = g.handleSystemCheckUpdate
	m["system.update"] = g.handleSystemUpdate

	return m
}

func (g *Gateway) handleChatSend(ctx context.Context, c *Conn, req wireproto.Request) (interface{}, string, string) {
	if g.backend.Pipeline == nil {
		return nil, "UNAVAILABLE", "pipeline not configured"
	}
	var params struct {
		Text       string `json:"text"`
		SessionKey string `json:"session_key"`
		Channel    string `json:"channel"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil, "BAD_PARAMS", err.Error()
	}
	if params.Channel == "" {
		params.Channel = "gateway"
	}

	deltas := func(kind, text string) {
		_ = c.SendReqEvent(req.ID, "chat.delta", map[string]interface{}{"kind": kind, "text": text})
	}

	result, err := g.backend.Pipeline.Handle(ctx, params.SessionKey, params.Channel, params.Text, deltas)
	if err != nil {
		if errors.Is(err, agent.ErrIterationLimit) {
			return nil, "ITERATION_LIMIT", err.Error()
		}
		return nil, "LLM_ERROR", err.Error()
	}
	return result, "", ""
}

func (g *Gateway) handleAgentStatus(ctx context.Context, c *Conn, req wireproto.Request) (interface{}, string, string) {
	return map[string]interface{}{"connections": g.ConnCount()}, "", ""
}

func (g *Gateway) handleAgentModel(ctx context.Context, c *Conn, req wireproto.Request) (interface{}, string, string) {
	return map[string]interface{}{"model": g.backend.Version.Version}, "", ""
}

func (g *Gateway) handleProviderStatus(ctx context.Context, c *Conn, req wireproto.Request) (interface{}, string, string) {
	if g.backend.Providers == nil {
		return []ProviderStatus{}, "", ""
	}
	return g.backend.Providers.Status(), "", ""
}

func (g *Gateway) handleSessionsList(ctx context.Context, c *Conn, req wireproto.Request) (interface{}, string, string) {
	if g.backend.Sessions == nil {
		return nil, "UNAVAILABLE", "sessions store not configured"
	}
	var params struct {
		UserID string `json:"user_id"`
	}
	_ = json.Unmarshal(req.Params, &params)
	out, err := g.backend.Sessions.ListSessions(ctx, params.UserID)
	if err != nil {
		return nil, "INTERNAL", err.Error()
	}
	return out, "", ""
}

func (g *Gateway) handleSessionsGet(ctx context.Context, c *Conn, req wireproto.Request) (interface{}, string, string) {
	if g.backend.Sessions == nil {
		return nil, "UNAVAILABLE", "sessions store not configured"
	}
	var params struct {
		SessionKey string `json:"session_key"`
		Limit      int    `json:"limit"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil, "BAD_PARAMS", err.Error()
	}
	if params.Limit <= 0 {
		params.Limit = 40
	}
	out, err := g.backend.Sessions.GetSession(ctx, params.SessionKey, params.Limit)
	if err != nil {
		return nil, "INTERNAL", err.Error()
	}
	return out, "", ""
}

func (g *Gateway) handleMemorySearch(ctx context.Context, c *Conn, req wireproto.Request) (interface{}, string, string) {
	if g.backend.Memory == nil {
		return nil, "UNAVAILABLE", "memory store not configured"
	}
	var params struct {
		UserID string `json:"user_id"`
		Query  string `json:"query"`
		Limit  int    `json:"limit"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil, "BAD_PARAMS", err.Error()
	}
	if params.Limit <= 0 || params.Limit > 50 {
		params.Limit = 50
	}
	out, err := g.backend.Memory.Search(ctx, params.UserID, params.Query, params.Limit)
	if err != nil {
		return nil, "INTERNAL", err.Error()
	}
	return out, "", ""
}

func (g *Gateway) handleMemoryLearn(ctx context.Context, c *Conn, req wireproto.Request) (interface{}, string, string) {
	if g.backend.Memory == nil {
		return nil, "UNAVAILABLE", "memory store not configured"
	}
	var params struct {
		UserID     string  `json:"user_id"`
		Category   string  `json:"category"`
		Key        string  `json:"key"`
		Value      string  `json:"value"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil, "BAD_PARAMS", err.Error()
	}
	if err := g.backend.Memory.Learn(ctx, params.UserID, params.Category, params.Key, params.Value, params.Confidence); err != nil {
		return nil, "INTERNAL", err.Error()
	}
	return map[string]bool{"ok": true}, "", ""
}

func (g *Gateway) handleMemoryForget(ctx context.Context, c *Conn, req wireproto.Request) (interface{}, string, string) {
	if g.backend.Memory == nil {
		return nil, "UNAVAILABLE", "memory store not configured"
	}
	var params struct {
		UserID   string `json:"user_id"`
		Category string `json:"category"`
		Key      string `json:"key"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil, "BAD_PARAMS", err.Error()
	}
	if err := g.backend.Memory.Forget(ctx, params.UserID, params.Category, params.Key); err != nil {
		return nil, "INTERNAL", err.Error()
	}
	return map[string]bool{"ok": true}, "", ""
}

func (g *Gateway) handleCronList(ctx context.Context, c *Conn, req wireproto.Request) (interface{}, string, string) {
	if g.backend.Cron == nil {
		return nil, "UNAVAILABLE", "scheduler not configured"
	}
	var params struct {
		UserID string `json:"user_id"`
	}
	_ = json.Unmarshal(req.Params, &params)
	out, err := g.backend.Cron.ListJobs(ctx, params.UserID)
	if err != nil {
		return nil, "INTERNAL", err.Error()
	}
	return out, "", ""
}

func (g *Gateway) handleCronAdd(ctx context.Context, c *Conn, req wireproto.Request) (interface{}, string, string) {
	if g.backend.Cron == nil {
		return nil, "UNAVAILABLE", "scheduler not configured"
	}
	var params struct {
		UserID string `json:"user_id"`
	}
	_ = json.Unmarshal(req.Params, &params)
	out, err := g.backend.Cron.AddJob(ctx, params.UserID, req.Params)
	if err != nil {
		return nil, "INTERNAL", err.Error()
	}
	return out, "", ""
}

func (g *Gateway) handleCronRemove(ctx context.Context, c *Conn, req wireproto.Request) (interface{}, string, string) {
	if g.backend.Cron == nil {
		return nil, "UNAVAILABLE", "scheduler not configured"
	}
	var params struct {
		UserID string `json:"user_id"`
		JobID  string `json:"job_id"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil, "BAD_PARAMS", err.Error()
	}
	if err := g.backend.Cron.RemoveJob(ctx, params.UserID, params.JobID); err != nil {
		return nil, "INTERNAL", err.Error()
	}
	return map[string]bool{"ok": true}, "", ""
}

func (g *Gateway) handleTerminalExec(ctx context.Context, c *Conn, req wireproto.Request) (interface{}, string, string) {
	return terminalCall(ctx, g, req, func(t TerminalSource) (interface{}, error) { return t.Exec(ctx, req.Params) })
}
func (g *Gateway) handleTerminalCreate(ctx context.Context, c *Conn, req wireproto.Request) (interface{}, string, string) {
	return terminalCall(ctx, g, req, func(t TerminalSource) (interface{}, error) { return t.Create(ctx, req.Params) })
}
func (g *Gateway) handleTerminalWrite(ctx context.Context, c *Conn, req wireproto.Request) (interface{}, string, string) {
	if g.backend.Terminal == nil {
		return nil, "UNAVAILABLE", "terminal not configured"
	}
	if err := g.backend.Terminal.Write(ctx, req.Params); err != nil {
		return nil, "INTERNAL", err.Error()
	}
	return map[string]bool{"ok": true}, "", ""
}
func (g *Gateway) handleTerminalRead(ctx context.Context, c *Conn, req wireproto.Request) (interface{}, string, string) {
	return terminalCall(ctx, g, req, func(t TerminalSource) (interface{}, error) { return t.Read(ctx, req.Params) })
}
func (g *Gateway) handleTerminalKill(ctx context.Context, c *Conn, req wireproto.Request) (interface{}, string, string) {
	if g.backend.Terminal == nil {
		return nil, "UNAVAILABLE", "terminal not configured"
	}
	if err := g.backend.Terminal.Kill(ctx, req.Params); err != nil {
		return nil, "INTERNAL", err.Error()
	}
	return map[string]bool{"ok": true}, "", ""
}
func (g *Gateway) handleTerminalList(ctx context.Context, c *Conn, req wireproto.Request) (interface{}, string, string) {
	return terminalCall(ctx, g, req, func(t TerminalSource) (interface{}, error) { return t.List(ctx) })
}
func (g *Gateway) handleTerminalExecBG(ctx context.Context, c *Conn, req wireproto.Request) (interface{}, string, string) {
	return terminalCall(ctx, g, req, func(t TerminalSource) (interface{}, error) { return t.ExecBackground(ctx, req.Params) })
}
func (g *Gateway) handleTerminalJobStatus(ctx context.Context, c *Conn, req wireproto.Request) (interface{}, string, string) {
	var params struct {
		JobID string `json:"job_id"`
	}
	_ = json.Unmarshal(req.Params, &params)
	return terminalCall(ctx, g, req, func(t TerminalSource) (interface{}, error) { return t.JobStatus(ctx, params.JobID) })
}
func (g *Gateway) handleTerminalJobList(ctx context.Context, c *Conn, req wireproto.Request) (interface{}, string, string) {
	return terminalCall(ctx, g, req, func(t TerminalSource) (interface{}, error) { return t.JobList(ctx) })
}
func (g *Gateway) handleTerminalJobKill(ctx context.Context, c *Conn, req wireproto.Request) (interface{}, string, string) {
	if g.backend.Terminal == nil {
		return nil, "UNAVAILABLE", "terminal not configured"
	}
	var params struct {
		JobID string `json:"job_id"`
	}
	_ = json.Unmarshal(req.Params, &params)
	if err := g.backend.Terminal.JobKill(ctx, params.JobID); err != nil {
		return nil, "INTERNAL", err.Error()
	}
	return map[string]bool{"ok": true}, "", ""
}

func terminalCall(ctx context.Context, g *Gateway, req wireproto.Request, fn func(TerminalSource) (interface{}, error)) (interface{}, string, string) {
	if g.backend.Terminal == nil {
		return nil, "UNAVAILABLE", "terminal not configured"
	}
	out, err := fn(g.backend.Terminal)
	if err != nil {
		if pe, ok := err.(interface{ SafetyBlocked() bool }); ok && pe.SafetyBlocked() {
			return nil, "SAFETY_BLOCKED", err.Error()
		}
		return nil, "INTERNAL", err.Error()
	}
	return out, "", ""
}

func (g *Gateway) handleSystemVersion(ctx context.Context, c *Conn, req wireproto.Request) (interface{}, string, string) {
	return map[string]interface{}{
		"version":  g.backend.Version.Version,
		"git_sha":  g.backend.Version.GitSHA,
		"install":  g.backend.Version.Install,
		"protocol": wireproto.ProtocolVersion,
	}, "", ""
}

func (g *Gateway) handleSystemCheckUpdate(ctx context.Context, c *Conn, req wireproto.Request) (interface{}, string, string) {
	if g.backend.Update == nil {
		return map[string]bool{"update_available": false}, "", ""
	}
	status, err := g.backend.Update.CheckUpdate(ctx)
	if err != nil {
		return nil, "INTERNAL", err.Error()
	}
	return status, "", ""
}

func (g *Gateway) handleSystemUpdate(ctx context.Context, c *Conn, req wireproto.Request) (interface{}, string, string) {
	// Applying an update touches the running binary and (for git installs)
	// rebuilds it; that's not something to trigger from an unattended RPC
	// call, so it stays a CLI-only action (`hattiebot update`).
	return nil, "UNAVAILABLE", "system.update must be run via the CLI 'update' subcommand"
}
