package providers

import (
	"context"
	"testing"
	"time"

	"github.com/loomgate/loomgate/internal/chatmodel"
)

type stubProvider struct {
	name  string
	calls int
	fail  func(call int) error
	reply string
}

func (s *stubProvider) Name() string        { return s.name }
func (s *stubProvider) DefaultModel() string { return "default" }

func (s *stubProvider) Chat(_ context.Context, req ChatRequest) (*ChatResponse, error) {
	s.calls++
	if s.fail != nil {
		if err := s.fail(s.calls); err != nil {
			return nil, err
		}
	}
	return &ChatResponse{Content: s.reply, FinishReason: "stop"}, nil
}

func fastChain(primary Provider, models []string, fallbacks ...FallbackTarget) *ProviderChain {
	c := NewChain(primary, models, fallbacks...)
	c.RetryDelay = time.Millisecond
	return c
}

func TestChainSucceedsOnFirstModel(t *testing.T) {
	p := &stubProvider{name: "primary", reply: "hi"}
	chain := fastChain(p, []string{"model-a", "model-b"})

	resp, err := chain.Chat(context.Background(), ChatRequest{Messages: []chatmodel.Message{chatmodel.NewUser("hello")}})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != "hi" {
		t.Fatalf("unexpected content %q", resp.Content)
	}
	if p.calls != 1 {
		t.Fatalf("expected exactly one call, got %d", p.calls)
	}
}

func TestChainRetriesThenSucceedsOnSameModel(t *testing.T) {
	p := &stubProvider{
		name: "primary",
		fail: func(call int) error {
			if call < 2 {
				return &HTTPError{Status: 500, Body: "boom"}
			}
			return nil
		},
		reply: "recovered",
	}
	chain := fastChain(p, []string{"model-a"})

	resp, err := chain.Chat(context.Background(), ChatRequest{})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != "recovered" {
		t.Fatalf("unexpected content %q", resp.Content)
	}
	if p.calls != 2 {
		t.Fatalf("expected 2 attempts before success, got %d", p.calls)
	}
}

func TestChainFallsBackToSecondProvider(t *testing.T) {
	primary := &stubProvider{
		name: "primary",
		fail: func(int) error { return &HTTPError{Status: 500, Body: "down"} },
	}
	fallback := &stubProvider{name: "fallback", reply: "from fallback"}

	chain := fastChain(primary, []string{"model-a"}, FallbackTarget{Provider: fallback, Models: []string{"model-b"}})

	resp, err := chain.Chat(context.Background(), ChatRequest{})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != "from fallback" {
		t.Fatalf("expected fallback response, got %q", resp.Content)
	}
	if primary.calls != chain.MaxModelRetries {
		t.Fatalf("expected primary exhausted after %d attempts, got %d", chain.MaxModelRetries, primary.calls)
	}
	if fallback.calls != 1 {
		t.Fatalf("expected fallback called once, got %d", fallback.calls)
	}
}

func TestChainReturnsLastErrorAfterExhaustingEverything(t *testing.T) {
	alwaysFails := func(int) error { return &HTTPError{Status: 503, Body: "unavailable"} }
	primary := &stubProvider{name: "primary", fail: alwaysFails}
	fallback := &stubProvider{name: "fallback", fail: alwaysFails}

	chain := fastChain(primary, []string{"model-a"}, FallbackTarget{Provider: fallback, Models: []string{"model-b"}})

	_, err := chain.Chat(context.Background(), ChatRequest{})
	if err == nil {
		t.Fatal("expected an error once every target is exhausted")
	}
}

func TestChainTriesRequestedModelFirst(t *testing.T) {
	p := &stubProvider{name: "primary", reply: "ok"}
	chain := fastChain(p, []string{"configured-model"})

	var seenModel string
	wrapped := &modelCapturingProvider{stubProvider: p, seen: &seenModel}
	chain.Primary = wrapped

	_, err := chain.Chat(context.Background(), ChatRequest{Model: "explicit-model"})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if seenModel != "explicit-model" {
		t.Fatalf("expected explicit model to be tried first, got %q", seenModel)
	}
}

type modelCapturingProvider struct {
	*stubProvider
	seen *string
}

func (m *modelCapturingProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if *m.seen == "" {
		*m.seen = req.Model
	}
	return m.stubProvider.Chat(ctx, req)
}
