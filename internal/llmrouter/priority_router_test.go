package llmrouter

import (
	"context"
	"errors"
	"testing"
)

type stubProvider struct {
	name string
	fail bool
	err  error
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Send(ctx context.Context, req Request) (Response, error) {
	if s.fail {
		return Response{}, s.err
	}
	return Response{Text: "ok from " + s.name, StopReason: "end_turn"}, nil
}

func (s *stubProvider) SendStream(ctx context.Context, req Request, sink func(StreamEvent)) error {
	res, err := s.Send(ctx, req)
	if err != nil {
		return err
	}
	sink(StreamEvent{Kind: "text_delta", Text: res.Text})
	return nil
}

// TestRouterFailover exercises spec.md §8 property 7: a router with
// slots [always_retriable_error, always_ok] returns the ok slot's
// response and records one failure and one success.
func TestRouterFailover(t *testing.T) {
	r := NewPriorityRouter()
	r.AddProvider(1, &stubProvider{name: "flaky", fail: true, err: errors.New("connection timeout")})
	r.AddProvider(2, &stubProvider{name: "stable", fail: false})

	res, err := r.Send(context.Background(), Request{})
	if err != nil {
		t.Fatalf("expected success via fallback, got %v", err)
	}
	if res.Text != "ok from stable" {
		t.Fatalf("expected response from stable provider, got %q", res.Text)
	}

	if got := r.Health.Status("flaky"); got != StatusDown {
		t.Fatalf("expected flaky provider marked down after its only sample failed, got %s", got)
	}
	if got := r.Health.Status("stable"); got != StatusOK {
		t.Fatalf("expected stable provider ok, got %s", got)
	}
}

func TestRouterTerminalErrorFailsFast(t *testing.T) {
	r := NewPriorityRouter()
	r.AddProvider(1, &stubProvider{name: "unauthorized", fail: true, err: errors.New("401 unauthorized")})
	r.AddProvider(2, &stubProvider{name: "stable", fail: false})

	_, err := r.Send(context.Background(), Request{})
	if err == nil {
		t.Fatal("expected terminal auth error to fail fast without trying the next slot")
	}
}

func TestHealthTrackerUnknownWithNoSamples(t *testing.T) {
	h := NewHealthTracker()
	if got := h.Status("nothing-yet"); got != StatusUnknown {
		t.Fatalf("expected unknown status, got %s", got)
	}
}
