package llmrouter

import (
	"context"
	"strings"

	"github.com/hattiebot/hattiebot/internal/core"
)

// ClientAdapter presents a PriorityRouter as a core.LLMClient, so the
// agent loop's existing single-client plumbing can run over the
// priority/failover routing added for native SDK-backed providers.
// Embed is delegated to a fallback client since Provider carries no
// embedding contract.
type ClientAdapter struct {
	Router   *PriorityRouter
	Model    string
	EmbedVia core.LLMClient
}

// splitSystemTiers pulls the leading run of Role=="system" messages out of
// messages (the agent loop emits one per prompt tier — spec.md §4.3) and
// returns them as PromptTiers plus a flat concatenation, alongside the
// remaining non-system messages.
func splitSystemTiers(messages []core.Message) ([]PromptTier, string, []core.Message) {
	i := 0
	for i < len(messages) && messages[i].Role == "system" {
		i++
	}
	if i == 0 {
		return nil, "", messages
	}
	tiers := make([]PromptTier, 0, i)
	var flat strings.Builder
	for _, m := range messages[:i] {
		tiers = append(tiers, PromptTier{Content: m.Content, CacheBreakpoint: m.CacheBreakpoint})
		flat.WriteString(m.Content)
	}
	return tiers, flat.String(), messages[i:]
}

func (a *ClientAdapter) ChatCompletion(ctx context.Context, messages []core.Message) (string, error) {
	tiers, flat, rest := splitSystemTiers(messages)
	res, err := a.Router.Send(ctx, Request{Model: a.Model, SystemPrompt: flat, SystemPromptTiers: tiers, Messages: rest})
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

func (a *ClientAdapter) ChatCompletionWithTools(ctx context.Context, messages []core.Message, tools []core.ToolDefinition) (string, []core.ToolCall, error) {
	tiers, flat, rest := splitSystemTiers(messages)
	res, err := a.Router.Send(ctx, Request{Model: a.Model, SystemPrompt: flat, SystemPromptTiers: tiers, Messages: rest, Tools: tools})
	if err != nil {
		return "", nil, err
	}
	return res.Text, res.ToolCalls, nil
}

func (a *ClientAdapter) Embed(ctx context.Context, text string) ([]float32, error) {
	if a.EmbedVia == nil {
		return nil, core.ErrEmbedUnsupported
	}
	return a.EmbedVia.Embed(ctx, text)
}
