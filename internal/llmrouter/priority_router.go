package llmrouter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrAllProvidersFailed is returned when every slot in priority order
// returned a retriable error.
var ErrAllProvidersFailed = errors.New("llmrouter: all providers failed")

// slot pairs a provider with its priority; lower Priority tries first.
type slot struct {
	priority int
	provider Provider
}

// PriorityRouter holds an ordered list of provider slots plus a shared
// health tracker, and implements failover per spec.md §4.2.
type PriorityRouter struct {
	slots   []slot
	Health  *HealthTracker
}

// NewPriorityRouter builds an empty router.
func NewPriorityRouter() *PriorityRouter {
	return &PriorityRouter{Health: NewHealthTracker()}
}

// AddProvider registers a provider at the given priority. Lower values
// are tried first.
func (r *PriorityRouter) AddProvider(priority int, p Provider) {
	r.slots = append(r.slots, slot{priority: priority, provider: p})
	sortSlots(r.slots)
}

func sortSlots(s []slot) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j].priority < s[j-1].priority; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

// Send tries each slot in priority order, applying the health tracker and
// the retriable/terminal classification from spec.md §7.
func (r *PriorityRouter) Send(ctx context.Context, req Request) (Response, error) {
	var lastErr error
	for _, s := range r.slots {
		start := time.Now()
		res, err := s.provider.Send(ctx, req)
		if err == nil {
			r.Health.Record(s.provider.Name(), true, ErrorNone)
			_ = time.Since(start)
			return res, nil
		}
		class := Classify(err)
		r.Health.Record(s.provider.Name(), false, class)
		if class == ErrorTerminal || class == ErrorAuth {
			return Response{}, fmt.Errorf("llmrouter: %s: %w", s.provider.Name(), err)
		}
		lastErr = err
	}
	if lastErr == nil {
		return Response{}, ErrAllProvidersFailed
	}
	return Response{}, fmt.Errorf("%w: %v", ErrAllProvidersFailed, lastErr)
}

// SendStream tries each slot in priority order and streams from the
// first that accepts the request without a terminal error.
func (r *PriorityRouter) SendStream(ctx context.Context, req Request, sink func(StreamEvent)) error {
	var lastErr error
	for _, s := range r.slots {
		err := s.provider.SendStream(ctx, req, sink)
		if err == nil {
			r.Health.Record(s.provider.Name(), true, ErrorNone)
			return nil
		}
		class := Classify(err)
		r.Health.Record(s.provider.Name(), false, class)
		if class == ErrorTerminal || class == ErrorAuth {
			return fmt.Errorf("llmrouter: %s: %w", s.provider.Name(), err)
		}
		lastErr = err
	}
	if lastErr == nil {
		return ErrAllProvidersFailed
	}
	return fmt.Errorf("%w: %v", ErrAllProvidersFailed, lastErr)
}

// Classify maps a provider error to a retriable/terminal/rate-limit/auth
// class using conventional HTTP-status and message heuristics, grounded
// on the teacher's own provider_failures.go classification in
// internal/openrouter.
func Classify(err error) ErrorClass {
	if err == nil {
		return ErrorNone
	}
	msg := strings.ToLower(err.Error())

	var statusErr interface{ StatusCode() int }
	if errors.As(err, &statusErr) {
		return classifyStatus(statusErr.StatusCode())
	}

	switch {
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "429"):
		return ErrorRateLimit
	case strings.Contains(msg, "unauthorized") || strings.Contains(msg, "401") || strings.Contains(msg, "403") || strings.Contains(msg, "auth"):
		return ErrorAuth
	case strings.Contains(msg, "400") || strings.Contains(msg, "bad request") || strings.Contains(msg, "invalid"):
		return ErrorTerminal
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "connection") || strings.Contains(msg, "5"):
		return ErrorRetriable
	default:
		return ErrorRetriable
	}
}

func classifyStatus(code int) ErrorClass {
	switch {
	case code == http.StatusTooManyRequests:
		return ErrorRateLimit
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrorAuth
	case code >= 400 && code < 500:
		return ErrorTerminal
	case code >= 500:
		return ErrorRetriable
	default:
		return ErrorRetriable
	}
}
