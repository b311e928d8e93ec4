package wiring

import (
	"github.com/hattiebot/hattiebot/internal/llmrouter"
	"github.com/hattiebot/hattiebot/internal/wsgateway"
)

// ProviderStatusAdapter bridges a llmrouter.PriorityRouter's health tracker
// to the wsgateway.ProviderStatusSource interface consumed by the
// provider.status method and /health.
type ProviderStatusAdapter struct {
	Router *llmrouter.PriorityRouter
}

func (a ProviderStatusAdapter) Status() []wsgateway.ProviderStatus {
	if a.Router == nil {
		return nil
	}
	snaps := a.Router.Health.All()
	out := make([]wsgateway.ProviderStatus, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, wsgateway.ProviderStatus{Name: s.Name, Status: string(s.Status)})
	}
	return out
}
