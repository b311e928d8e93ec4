package wsgateway

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Pipeline is the subset of the agentic pipeline the gateway needs to
// service chat.send and the HTTP chat surfaces. It is satisfied by
// internal/agent.Pipeline.
type Pipeline interface {
	Handle(ctx context.Context, sessionKey, channel, text string, deltas func(kind, text string)) (PipelineResult, error)
}

// PipelineResult is the terminal payload of one tool-loop run.
type PipelineResult struct {
	Content    string `json:"content"`
	Model      string `json:"model"`
	TokensIn   int    `json:"tokens_in"`
	TokensOut  int    `json:"tokens_out"`
	StopReason string `json:"stop_reason"`
}

// Backend bundles the subsystems the method table dispatches into.
// Any field may be nil in tests that only exercise the frame/handshake
// layer; handlers report UNAVAILABLE for a nil dependency.
type Backend struct {
	Pipeline  Pipeline
	Providers ProviderStatusSource
	Sessions  SessionSource
	Memory    MemorySource
	Cron      CronSource
	Terminal  TerminalSource
	Update    UpdateSource
	Version   VersionInfo
}

// VersionInfo is returned by system.version and /health.
type VersionInfo struct {
	Version string
	GitSHA  string
	Install string
}

// Gateway owns the set of live connections and the dispatch table.
type Gateway struct {
	log              zerolog.Logger
	upgrader         websocket.Upgrader
	authMode         string
	authToken        string
	authPasswordHash string
	features         []string

	backend Backend
	methods map[string]HandlerFunc

	mu    sync.RWMutex
	conns map[string]*Conn
}

// Config configures a new Gateway.
type Config struct {
	AuthMode  string // "token" | "none" | "password"
	AuthToken string
	// AuthPasswordHash is a bcrypt hash checked against connect requests
	// when AuthMode is "password". Never a plaintext password.
	AuthPasswordHash string
	Features         []string
	Backend          Backend
	Log              zerolog.Logger
}

// New builds a Gateway with the standard method table wired in.
func New(cfg Config) *Gateway {
	g := &Gateway{
		log:              cfg.Log,
		upgrader:         websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096, CheckOrigin: func(*http.Request) bool { return true }},
		authMode:         cfg.AuthMode,
		authToken:        cfg.AuthToken,
		authPasswordHash: cfg.AuthPasswordHash,
		features:         cfg.Features,
		backend:          cfg.Backend,
		conns:            make(map[string]*Conn),
	}
	g.methods = g.buildMethodTable()
	return g
}

func (g *Gateway) addConn(c *Conn) {
	g.mu.Lock()
	g.conns[c.ID] = c
	g.mu.Unlock()
}

func (g *Gateway) removeConn(c *Conn) {
	g.mu.Lock()
	delete(g.conns, c.ID)
	g.mu.Unlock()
}

// ConnCount reports the number of currently tracked connections, used by
// GET /health.
func (g *Gateway) ConnCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.conns)
}

// ServeWS upgrades an HTTP request to a WebSocket and runs Serve on it
// until the client disconnects.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	c := NewConn(ws, g.log, g.checkAuth)
	g.addConn(c)
	defer g.removeConn(c)

	if err := g.Serve(r.Context(), c); err != nil {
		g.log.Debug().Err(err).Str("conn", c.ID).Msg("connection closed")
	}
}
