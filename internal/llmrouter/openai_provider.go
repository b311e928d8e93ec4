package llmrouter

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hattiebot/hattiebot/internal/core"
)

// OpenAIProvider talks to the Chat Completions API through the vendor
// SDK. name lets OpenAI-compatible endpoints (via WithBaseURL) register
// under their own router slot the way the Anthropic-compatible providers
// do.
type OpenAIProvider struct {
	client *openai.Client
	name   string
	model  string
}

// NewOpenAIProvider builds a static-API-key OpenAI provider.
func NewOpenAIProvider(name, apiKey, model string) *OpenAIProvider {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := openai.NewClient(opts...)
	if model == "" {
		model = "gpt-5"
	}
	return &OpenAIProvider{client: &client, name: name, model: model}
}

// NewOpenAICompatProvider builds a provider against any OpenAI-compatible
// base URL (spec.md §4.2 generic provider slot).
func NewOpenAICompatProvider(name, baseURL, apiKey, model string) *OpenAIProvider {
	opts := []option.RequestOption{option.WithBaseURL(baseURL)}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := openai.NewClient(opts...)
	return &OpenAIProvider{client: &client, name: name, model: model}
}

func (p *OpenAIProvider) Name() string { return p.name }

func (p *OpenAIProvider) buildParams(req Request) openai.ChatCompletionNewParams {
	var messages []openai.ChatCompletionMessageParamUnion
	// The Chat Completions API has no per-block cache_control (OpenAI's
	// prompt caching is automatic prefix matching), so tiers are just
	// concatenated in order; the tier boundaries only matter to
	// AnthropicProvider.
	if len(req.SystemPromptTiers) > 0 {
		var b []byte
		for _, tier := range req.SystemPromptTiers {
			b = append(b, tier.Content...)
		}
		if len(b) > 0 {
			messages = append(messages, openai.SystemMessage(string(b)))
		}
	} else if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			messages = append(messages, openai.SystemMessage(m.Content))
		case "user", "tool":
			messages = append(messages, openai.UserMessage(m.Content))
		case "assistant":
			messages = append(messages, openai.AssistantMessage(m.Content))
		}
	}

	model := req.Model
	if model == "" {
		model = p.model
	}
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: messages,
	}
	for _, t := range req.Tools {
		params.Tools = append(params.Tools, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        t.Function.Name,
				Description: openai.String(t.Function.Description),
				Parameters:  openai.FunctionParameters(toParamsMap(t.Function.Parameters)),
			},
		})
	}
	return params
}

func toParamsMap(v interface{}) map[string]interface{} {
	if m, ok := v.(map[string]interface{}); ok {
		return m
	}
	return map[string]interface{}{}
}

func (p *OpenAIProvider) Send(ctx context.Context, req Request) (Response, error) {
	params := p.buildParams(req)
	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return Response{}, fmt.Errorf("openai: %w", err)
	}
	return openaiToResponse(completion), nil
}

func (p *OpenAIProvider) SendStream(ctx context.Context, req Request, sink func(StreamEvent)) error {
	params := p.buildParams(req)
	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	acc := openai.ChatCompletionAccumulator{}
	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)
		if len(chunk.Choices) > 0 {
			if delta := chunk.Choices[0].Delta.Content; delta != "" {
				sink(StreamEvent{Kind: "text_delta", Text: delta})
			}
		}
	}
	if err := stream.Err(); err != nil {
		sink(StreamEvent{Kind: "error", Err: err})
		return fmt.Errorf("openai stream: %w", err)
	}

	res := openaiToResponse(&acc.ChatCompletion)
	for _, tc := range res.ToolCalls {
		tc := tc
		sink(StreamEvent{Kind: "tool_use", ToolCall: &tc})
	}
	sink(StreamEvent{Kind: "done", StopReason: res.StopReason, Usage: res.Usage})
	return nil
}

func openaiToResponse(c *openai.ChatCompletion) Response {
	var text, stop string
	var calls []core.ToolCall
	if len(c.Choices) > 0 {
		choice := c.Choices[0]
		text = choice.Message.Content
		stop = string(choice.FinishReason)
		for _, tc := range choice.Message.ToolCalls {
			call := core.ToolCall{ID: tc.ID, Type: "function"}
			call.Function.Name = tc.Function.Name
			call.Function.Arguments = tc.Function.Arguments
			calls = append(calls, call)
		}
	}
	if stop == "" {
		stop = "stop"
	}
	return Response{
		Text:       text,
		StopReason: stop,
		ToolCalls:  calls,
		Usage: Usage{
			InputTokens:  int(c.Usage.PromptTokens),
			OutputTokens: int(c.Usage.CompletionTokens),
		},
	}
}
