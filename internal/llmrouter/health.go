package llmrouter

import (
	"sync"
	"time"
)

// Status is a provider's derived health classification (spec.md §4.2).
type Status string

const (
	StatusOK          Status = "ok"
	StatusDegraded    Status = "degraded"
	StatusDown        Status = "down"
	StatusRateLimited Status = "rate_limited"
	StatusAuthExpired Status = "auth_expired"
	StatusUnknown     Status = "unknown"
)

// ErrorClass classifies a provider failure for router failover policy.
type ErrorClass int

const (
	ErrorNone ErrorClass = iota
	ErrorRetriable
	ErrorTerminal
	ErrorRateLimit
	ErrorAuth
)

const healthWindow = 5 * time.Minute

type outcome struct {
	at      time.Time
	success bool
	class   ErrorClass
}

// HealthTracker holds a lock-free-style rolling 5-minute window of
// outcomes per provider (a mutex-guarded ring in this implementation;
// contention is negligible next to provider network latency).
type HealthTracker struct {
	mu      sync.Mutex
	windows map[string][]outcome
}

// NewHealthTracker builds an empty tracker.
func NewHealthTracker() *HealthTracker {
	return &HealthTracker{windows: make(map[string][]outcome)}
}

// Record appends one attempt outcome for provider name.
func (h *HealthTracker) Record(name string, success bool, class ErrorClass) {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := time.Now()
	h.windows[name] = append(prune(h.windows[name], now), outcome{at: now, success: success, class: class})
}

func prune(w []outcome, now time.Time) []outcome {
	cutoff := now.Add(-healthWindow)
	i := 0
	for i < len(w) && w[i].at.Before(cutoff) {
		i++
	}
	return w[i:]
}

// Status derives the current status for a provider from its window.
func (h *HealthTracker) Status(name string) Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	w := prune(h.windows[name], time.Now())
	h.windows[name] = w

	if len(w) == 0 {
		return StatusUnknown
	}

	last := w[len(w)-1]
	if !last.success {
		switch last.class {
		case ErrorRateLimit:
			return StatusRateLimited
		case ErrorAuth:
			return StatusAuthExpired
		}
	}

	successes := 0
	for _, o := range w {
		if o.success {
			successes++
		}
	}
	rate := float64(successes) / float64(len(w))
	switch {
	case rate > 0.8:
		return StatusOK
	case rate >= 0.5:
		return StatusDegraded
	default:
		return StatusDown
	}
}

// Snapshot is a per-provider health summary for provider.status/'/health'
// and for rendering into the volatile prompt tier.
type Snapshot struct {
	Name   string `json:"name"`
	Status Status `json:"status"`
}

// All returns a snapshot for every provider the tracker has seen.
func (h *HealthTracker) All() []Snapshot {
	h.mu.Lock()
	names := make([]string, 0, len(h.windows))
	for n := range h.windows {
		names = append(names, n)
	}
	h.mu.Unlock()

	out := make([]Snapshot, 0, len(names))
	for _, n := range names {
		out = append(out, Snapshot{Name: n, Status: h.Status(n)})
	}
	return out
}

// Summary renders a one-line-per-provider status block for Tier 3 of the
// prompt (spec.md §4.3), so the model is aware of degraded siblings.
func (h *HealthTracker) Summary() string {
	snaps := h.All()
	if len(snaps) == 0 {
		return ""
	}
	s := "provider health:"
	for _, sn := range snaps {
		s += " " + sn.Name + "=" + string(sn.Status)
	}
	return s
}
