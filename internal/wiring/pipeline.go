package wiring

import (
	"context"
	"log"

	"github.com/hattiebot/hattiebot/internal/agent"
	"github.com/hattiebot/hattiebot/internal/gateway"
	"github.com/hattiebot/hattiebot/internal/identity"
	"github.com/hattiebot/hattiebot/internal/wsgateway"
)

// LoopPipeline adapts *agent.Loop to wsgateway.Pipeline so chat.send and
// the HTTP chat surfaces run through the same tool loop as every other
// channel. The loop has no incremental token stream of its own, so the
// full reply is delivered as a single delta before the terminal result,
// matching the same non-incremental fallback llmrouter.LLMClientProvider
// uses for providers without native streaming.
type LoopPipeline struct {
	Loop     *agent.Loop
	Resolver *identity.Resolver
}

func (p *LoopPipeline) Handle(ctx context.Context, sessionKey, channel string, text string, deltas func(kind, text string)) (wsgateway.PipelineResult, error) {
	senderID := sessionKey
	threadID := sessionKey

	if p.Resolver != nil {
		user, newlyCreated, err := p.Resolver.Resolve(ctx, channel, sessionKey)
		if err != nil {
			log.Printf("[PIPELINE] Identity resolution failed for %s/%s: %v", channel, sessionKey, err)
		} else {
			if newlyCreated {
				log.Printf("[PIPELINE] New user %s created for %s/%s", user.ID, channel, sessionKey)
			}
			senderID = user.ID
			threadID = identity.SessionKey(user.ID, channel, sessionKey)
			if p.Loop != nil && p.Loop.DB != nil {
				if err := p.Loop.DB.UpsertSession(ctx, threadID, user.ID, channel, sessionKey); err != nil {
					log.Printf("[PIPELINE] Failed to record session %s: %v", threadID, err)
				}
			}
		}
	}

	msg := gateway.Message{
		SenderID: senderID,
		Content:  text,
		Channel:  channel,
		ThreadID: threadID,
	}
	content, err := p.Loop.RunOneTurn(ctx, msg)
	if err != nil {
		return wsgateway.PipelineResult{}, err
	}
	if deltas != nil && content != "" {
		deltas("text", content)
	}
	return wsgateway.PipelineResult{Content: content, StopReason: "end_turn"}, nil
}
