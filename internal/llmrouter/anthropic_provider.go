package llmrouter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/hattiebot/hattiebot/internal/core"
)

// AnthropicProvider talks to the Messages API directly through the vendor
// SDK, giving true incremental streaming instead of LLMClientProvider's
// single-shot fan-out.
type AnthropicProvider struct {
	client    *anthropic.Client
	name      string
	model     string
	maxTokens int64
}

// NewAnthropicProvider builds a static-API-key Anthropic provider. name
// lets Anthropic-compatible endpoints (Kimi, etc.) register under their
// own router slot.
func NewAnthropicProvider(name, apiKey, model string) *AnthropicProvider {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	if model == "" {
		model = "claude-opus-4-6"
	}
	return &AnthropicProvider{client: &client, name: name, model: model, maxTokens: 8192}
}

// NewAnthropicProviderWithAuth builds a provider fronted by an OAuth or
// JWT-signed service-account lifecycle (auth.go): a transport rewrites
// every outgoing request's Authorization header from the current access
// token, refreshing lazily via bearerToken when the caller detects
// expiry (spec.md §4.2 "auth lifecycle").
func NewAnthropicProviderWithAuth(name string, bearerToken func(ctx context.Context) (string, error), model string) *AnthropicProvider {
	client := anthropic.NewClient(
		option.WithHTTPClient(&http.Client{Transport: &bearerTransport{base: http.DefaultTransport, token: bearerToken}}),
		option.WithAPIKey("bearer-managed"),
	)
	if model == "" {
		model = "claude-opus-4-6"
	}
	return &AnthropicProvider{client: &client, name: name, model: model, maxTokens: 8192}
}

// bearerTransport swaps the Anthropic SDK's static x-api-key header for a
// freshly resolved bearer token on every request.
type bearerTransport struct {
	base  http.RoundTripper
	token func(ctx context.Context) (string, error)
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	tok, err := t.token(req.Context())
	if err != nil {
		return nil, fmt.Errorf("resolving bearer token: %w", err)
	}
	clone := req.Clone(req.Context())
	clone.Header.Del("X-Api-Key")
	clone.Header.Set("Authorization", "Bearer "+tok)
	return t.base.RoundTrip(clone)
}

func (p *AnthropicProvider) Name() string { return p.name }

func (p *AnthropicProvider) buildParams(req Request) anthropic.MessageNewParams {
	messages := toAnthropicMessages(req.Messages)

	model := req.Model
	if model == "" {
		model = p.model
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: p.maxTokens,
		Messages:  messages,
	}
	if len(req.SystemPromptTiers) > 0 {
		blocks := make([]anthropic.TextBlockParam, 0, len(req.SystemPromptTiers))
		for _, tier := range req.SystemPromptTiers {
			block := anthropic.TextBlockParam{Text: tier.Content}
			if tier.CacheBreakpoint {
				block.CacheControl = anthropic.NewCacheControlEphemeralParam()
			}
			blocks = append(blocks, block)
		}
		params.System = blocks
	} else if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}
	if len(req.Tools) > 0 {
		params.Tools = toAnthropicTools(req.Tools)
	}
	return params
}

func toAnthropicMessages(msgs []core.Message) []anthropic.MessageParam {
	var out []anthropic.MessageParam
	for _, m := range msgs {
		switch m.Role {
		case "user", "tool":
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case "assistant":
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		case "system":
			// The Messages API has no mid-turn system role; fold a stray
			// in-conversation system nudge (e.g. an empty-response
			// self-correction hint) into a user turn so it isn't lost.
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock("[system note] "+m.Content)))
		}
	}
	return out
}

func toAnthropicTools(defs []core.ToolDefinition) []anthropic.ToolUnionParam {
	var out []anthropic.ToolUnionParam
	for _, t := range defs {
		props, _ := t.Function.Parameters.(map[string]interface{})
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Function.Name,
				Description: anthropic.String(t.Function.Description),
				InputSchema: anthropic.ToolInputSchemaParam{Properties: props},
			},
		})
	}
	return out
}

func (p *AnthropicProvider) Send(ctx context.Context, req Request) (Response, error) {
	params := p.buildParams(req)
	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return Response{}, fmt.Errorf("anthropic: %w", err)
	}
	return anthropicToResponse(msg), nil
}

func (p *AnthropicProvider) SendStream(ctx context.Context, req Request, sink func(StreamEvent)) error {
	params := p.buildParams(req)
	stream := p.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	acc := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := acc.Accumulate(event); err != nil {
			sink(StreamEvent{Kind: "error", Err: err})
			return err
		}
		switch delta := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if text := delta.Delta.Text; text != "" {
				sink(StreamEvent{Kind: "text_delta", Text: text})
			}
			if thinking := delta.Delta.Thinking; thinking != "" {
				sink(StreamEvent{Kind: "thinking", Text: thinking})
			}
		}
	}
	if err := stream.Err(); err != nil {
		sink(StreamEvent{Kind: "error", Err: err})
		return fmt.Errorf("anthropic stream: %w", err)
	}

	res := anthropicToResponse(&acc)
	for _, tc := range res.ToolCalls {
		tc := tc
		sink(StreamEvent{Kind: "tool_use", ToolCall: &tc})
	}
	sink(StreamEvent{Kind: "done", StopReason: res.StopReason, Usage: res.Usage})
	return nil
}

func anthropicToResponse(msg *anthropic.Message) Response {
	var text string
	var calls []core.ToolCall
	for _, block := range msg.Content {
		switch v := block.AsAny().(type) {
		case anthropic.TextBlock:
			text += v.Text
		case anthropic.ToolUseBlock:
			inputJSON, _ := json.Marshal(v.Input)
			tc := core.ToolCall{ID: v.ID, Type: "function"}
			tc.Function.Name = v.Name
			tc.Function.Arguments = string(inputJSON)
			calls = append(calls, tc)
		}
	}
	stop := string(msg.StopReason)
	if stop == "" {
		stop = "end_turn"
	}
	return Response{
		Text:       text,
		StopReason: stop,
		ToolCalls:  calls,
		Usage: Usage{
			InputTokens:      int(msg.Usage.InputTokens),
			OutputTokens:     int(msg.Usage.OutputTokens),
			CacheReadTokens:  int(msg.Usage.CacheReadInputTokens),
			CacheWriteTokens: int(msg.Usage.CacheCreationInputTokens),
		},
	}
}
