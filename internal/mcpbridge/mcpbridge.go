// Package mcpbridge exposes the knowledge and memory tools over the Model
// Context Protocol (JSON-RPC 2.0 over stdio), so an IDE or another agent can
// search context docs and read/write user memory without going through a
// chat turn (spec.md §6 `mcp-bridge`).
package mcpbridge

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/hattiebot/hattiebot/internal/store"
	"github.com/hattiebot/hattiebot/internal/wiring"
)

// Tool describes one MCP tool's JSON Schema, following the same
// name/description/inputSchema shape the Anthropic and OpenAI tool-calling
// APIs use elsewhere in this codebase (see internal/core.ToolDefinition).
type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"inputSchema"`
}

type InputSchema struct {
	Type       string                 `json:"type"`
	Properties map[string]Property    `json:"properties,omitempty"`
	Required   []string               `json:"required,omitempty"`
}

type Property struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

type ToolHandler func(ctx context.Context, args json.RawMessage) (*ToolResult, error)

type ToolResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

func textResult(text string) *ToolResult {
	return &ToolResult{Content: []ContentBlock{{Type: "text", Text: text}}}
}

func errorResult(err error) *ToolResult {
	return &ToolResult{Content: []ContentBlock{{Type: "text", Text: err.Error()}}, IsError: true}
}

// Request/Response/Error mirror JSON-RPC 2.0 as used by every MCP transport.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type Response struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id,omitempty"`
	Result  any    `json:"result,omitempty"`
	Error   *RPCError `json:"error,omitempty"`
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

const (
	errCodeParse         = -32700
	errCodeMethodNotFound = -32601
	errCodeInvalidParams = -32602
	errCodeInternal      = -32603
)

// Server owns the fixed set of knowledge/memory tools and dispatches
// tools/list and tools/call over stdio.
type Server struct {
	mu    sync.Mutex
	tools map[string]Tool
	fns   map[string]ToolHandler
}

// New wires up the knowledge and memory tools against db, following the same
// adapters (internal/wiring.MemorySource, store.DB.SearchContextDocs) the
// websocket gateway uses for the equivalent memory.* and chat-time knowledge
// lookups.
func New(db *store.DB) *Server {
	s := &Server{tools: map[string]Tool{}, fns: map[string]ToolHandler{}}
	mem := wiring.MemorySource{DB: db}

	s.register(Tool{
		Name:        "search_knowledge",
		Description: "Search workspace context documents by keyword.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"query": {Type: "string", Description: "search text"},
				"limit": {Type: "integer", Description: "max results (default 5)"},
			},
			Required: []string{"query"},
		},
	}, func(ctx context.Context, raw json.RawMessage) (*ToolResult, error) {
		var args struct {
			Query string `json:"query"`
			Limit int    `json:"limit"`
		}
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, err
		}
		if args.Limit <= 0 {
			args.Limit = 5
		}
		docs, err := db.SearchContextDocs(ctx, args.Query, args.Limit)
		if err != nil {
			return errorResult(err), nil
		}
		out, _ := json.MarshalIndent(docs, "", "  ")
		return textResult(string(out)), nil
	})

	s.register(Tool{
		Name:        "search_memory",
		Description: "Search a user's remembered facts, preferences, and instructions.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"user_id": {Type: "string"},
				"query":   {Type: "string"},
				"limit":   {Type: "integer", Description: "max results (default 20)"},
			},
			Required: []string{"user_id", "query"},
		},
	}, func(ctx context.Context, raw json.RawMessage) (*ToolResult, error) {
		var args struct {
			UserID string `json:"user_id"`
			Query  string `json:"query"`
			Limit  int    `json:"limit"`
		}
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, err
		}
		if args.Limit <= 0 {
			args.Limit = 20
		}
		facts, err := mem.Search(ctx, args.UserID, args.Query, args.Limit)
		if err != nil {
			return errorResult(err), nil
		}
		out, _ := json.MarshalIndent(facts, "", "  ")
		return textResult(string(out)), nil
	})

	s.register(Tool{
		Name:        "learn_fact",
		Description: "Record or update a user memory entry.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"user_id":    {Type: "string"},
				"category":   {Type: "string", Description: "Instruction, Preference, Fact, or Context"},
				"key":        {Type: "string"},
				"value":      {Type: "string"},
				"confidence": {Type: "number"},
			},
			Required: []string{"user_id", "category", "key", "value"},
		},
	}, func(ctx context.Context, raw json.RawMessage) (*ToolResult, error) {
		var args struct {
			UserID     string  `json:"user_id"`
			Category   string  `json:"category"`
			Key        string  `json:"key"`
			Value      string  `json:"value"`
			Confidence float64 `json:"confidence"`
		}
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, err
		}
		if err := mem.Learn(ctx, args.UserID, args.Category, args.Key, args.Value, args.Confidence); err != nil {
			return errorResult(err), nil
		}
		return textResult("ok"), nil
	})

	s.register(Tool{
		Name:        "forget_fact",
		Description: "Delete a user memory entry by category and key.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"user_id":  {Type: "string"},
				"category": {Type: "string"},
				"key":      {Type: "string"},
			},
			Required: []string{"user_id", "category", "key"},
		},
	}, func(ctx context.Context, raw json.RawMessage) (*ToolResult, error) {
		var args struct {
			UserID   string `json:"user_id"`
			Category string `json:"category"`
			Key      string `json:"key"`
		}
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, err
		}
		if err := mem.Forget(ctx, args.UserID, args.Category, args.Key); err != nil {
			return errorResult(err), nil
		}
		return textResult("ok"), nil
	})

	return s
}

func (s *Server) register(t Tool, fn ToolHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tools[t.Name] = t
	s.fns[t.Name] = fn
}

// ServeStdio reads newline-delimited JSON-RPC requests from r and writes
// responses to w until r is exhausted or ctx is canceled. Each request is
// handled synchronously, in arrival order, matching the single in-flight
// request MCP stdio clients assume.
func (s *Server) ServeStdio(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	enc := json.NewEncoder(w)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			enc.Encode(Response{JSONRPC: "2.0", Error: &RPCError{Code: errCodeParse, Message: "invalid JSON"}})
			continue
		}
		resp := s.handle(ctx, req)
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("writing mcp response: %w", err)
		}
	}
	return scanner.Err()
}

func (s *Server) handle(ctx context.Context, req Request) Response {
	base := Response{JSONRPC: "2.0", ID: req.ID}
	switch req.Method {
	case "initialize":
		base.Result = map[string]any{
			"protocolVersion": "2024-11-05",
			"capabilities":    map[string]any{"tools": map[string]any{"listChanged": false}},
			"serverInfo":      map[string]string{"name": "hattiebot-mcp-bridge", "version": "1"},
		}
	case "notifications/initialized", "ping":
		base.Result = map[string]any{}
	case "tools/list":
		s.mu.Lock()
		list := make([]Tool, 0, len(s.tools))
		for _, t := range s.tools {
			list = append(list, t)
		}
		s.mu.Unlock()
		base.Result = map[string]any{"tools": list}
	case "tools/call":
		var params struct {
			Name      string          `json:"name"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := json.Unmarshal(req.Params, &params); err != nil {
			base.Error = &RPCError{Code: errCodeInvalidParams, Message: "invalid tools/call params"}
			return base
		}
		s.mu.Lock()
		fn, ok := s.fns[params.Name]
		s.mu.Unlock()
		if !ok {
			base.Result = errorResult(fmt.Errorf("unknown tool: %s", params.Name))
			return base
		}
		result, err := fn(ctx, params.Arguments)
		if err != nil {
			base.Error = &RPCError{Code: errCodeInternal, Message: err.Error()}
			return base
		}
		base.Result = result
	default:
		base.Error = &RPCError{Code: errCodeMethodNotFound, Message: fmt.Sprintf("method not found: %s", req.Method)}
	}
	return base
}
