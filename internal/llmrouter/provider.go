package llmrouter

import (
	"context"
	"time"

	"github.com/hattiebot/hattiebot/internal/core"
)

// StreamEvent is one item of a provider's streamed response (spec.md §4.2).
type StreamEvent struct {
	Kind       string // "text_delta" | "tool_use" | "thinking" | "done" | "error"
	Text       string
	ToolCall   *core.ToolCall
	StopReason string
	Usage      Usage
	Err        error
}

// Usage carries the provider-reported token accounting for one request.
type Usage struct {
	InputTokens      int
	OutputTokens     int
	CacheReadTokens  int
	CacheWriteTokens int
}

// PromptTier is one segment of the three-tier system prompt (spec.md
// §4.3): Tier 1 (static, most cacheable) and Tier 2 (per-user) carry
// CacheBreakpoint=true; Tier 3 (volatile) does not.
type PromptTier struct {
	Content         string
	CacheBreakpoint bool
}

// Request is the provider-agnostic request shape assembled by the pipeline.
type Request struct {
	Model        string
	SystemPrompt string
	// SystemPromptTiers, when non-empty, is the tiered form of SystemPrompt
	// (spec.md §4.3). Providers that support native prompt caching
	// (AnthropicProvider) use it to place cache breakpoints; providers that
	// don't just fall back to SystemPrompt, the flat concatenation.
	SystemPromptTiers []PromptTier
	Messages          []core.Message
	Tools             []core.ToolDefinition
	ThinkingBudget    int
	StopHints         []string
}

// Response is a provider's final, non-streaming reply.
type Response struct {
	Text       string
	Usage      Usage
	StopReason string
	ToolCalls  []core.ToolCall
}

// TokenInfo describes a provider's current credential state, for
// providers whose auth can expire and be refreshed.
type TokenInfo struct {
	Kind        string // "static" | "oauth" | "exchange" | "signed" | "jwt" | "none"
	ExpiresAt   time.Time
	Refreshable bool
}

// Provider is the polymorphic contract every upstream implements
// (spec.md §4.2).
type Provider interface {
	Name() string
	Send(ctx context.Context, req Request) (Response, error)
	SendStream(ctx context.Context, req Request, sink func(StreamEvent)) error
}

// Refreshable is implemented by providers with an auth lifecycle that can
// expire (OAuth, token exchange, JWT-signed access tokens).
type Refreshable interface {
	TokenInfo() TokenInfo
	RefreshAuth(ctx context.Context) error
}

// LLMClientProvider adapts the teacher's existing core.LLMClient
// (static-key OpenRouter/OpenAI-compatible providers) to the Provider
// contract, so the priority router can front them uniformly.
type LLMClientProvider struct {
	name   string
	client core.LLMClient
}

// NewLLMClientProvider wraps client as a static-key Provider named name.
func NewLLMClientProvider(name string, client core.LLMClient) *LLMClientProvider {
	return &LLMClientProvider{name: name, client: client}
}

func (p *LLMClientProvider) Name() string { return p.name }

func (p *LLMClientProvider) Send(ctx context.Context, req Request) (Response, error) {
	// The legacy client expects the system prompt as a leading message in
	// the slice (ClientAdapter strips it out before building Request), so
	// put it back for providers routed through this static-key wrapper
	// (e.g. the OpenRouter fallback path).
	messages := req.Messages
	if req.SystemPrompt != "" {
		messages = append([]core.Message{{Role: "system", Content: req.SystemPrompt}}, messages...)
	}
	text, calls, err := p.client.ChatCompletionWithTools(ctx, messages, req.Tools)
	if err != nil {
		return Response{}, err
	}
	stop := "end_turn"
	if len(calls) > 0 {
		stop = "tool_use"
	}
	return Response{Text: text, StopReason: stop, ToolCalls: calls}, nil
}

// SendStream has no native streaming transport in the wrapped client, so
// it performs one blocking Send and delivers the whole text as a single
// delta followed by Done — a valid (if non-incremental) implementation
// of the Provider streaming contract.
func (p *LLMClientProvider) SendStream(ctx context.Context, req Request, sink func(StreamEvent)) error {
	res, err := p.Send(ctx, req)
	if err != nil {
		sink(StreamEvent{Kind: "error", Err: err})
		return err
	}
	if res.Text != "" {
		sink(StreamEvent{Kind: "text_delta", Text: res.Text})
	}
	for _, tc := range res.ToolCalls {
		tc := tc
		sink(StreamEvent{Kind: "tool_use", ToolCall: &tc})
	}
	sink(StreamEvent{Kind: "done", StopReason: res.StopReason, Usage: res.Usage})
	return nil
}
