package orchestrator

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/loomgate/loomgate/internal/chatmodel"
	"github.com/loomgate/loomgate/internal/compaction"
	"github.com/loomgate/loomgate/internal/providers"
	"github.com/loomgate/loomgate/internal/router"
	"github.com/loomgate/loomgate/internal/store"
	"github.com/loomgate/loomgate/internal/tokencount"
)

func openTestSessions(t *testing.T) store.SessionStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := store.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s.Sessions()
}

type scriptedProvider struct {
	mu        sync.Mutex
	responses []*providers.ChatResponse
	calls     int
}

func (p *scriptedProvider) Chat(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.calls >= len(p.responses) {
		return &providers.ChatResponse{Content: "done"}, nil
	}
	r := p.responses[p.calls]
	p.calls++
	return r, nil
}

func (p *scriptedProvider) Name() string         { return "scripted" }
func (p *scriptedProvider) DefaultModel() string { return "scripted-model" }

type fakeTools struct {
	results map[string]string
}

func (f *fakeTools) Execute(ctx context.Context, name string, arguments map[string]any) (string, bool) {
	if r, ok := f.results[name]; ok {
		return r, false
	}
	return "unknown tool: " + name, true
}

type recordingReplier struct {
	mu     sync.Mutex
	chunks []string
	firsts []bool
}

func (r *recordingReplier) Reply(ctx context.Context, location, text string, isFirst bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunks = append(r.chunks, text)
	r.firsts = append(r.firsts, isFirst)
	return nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeNotifier) Notify(ctx context.Context, target ReportBackTarget, location, summary string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, target.Label+":"+summary)
	return nil
}

func newTestOrchestrator(t *testing.T, provider providers.Provider, tools ToolExecutor, replier Replier, opts ...Option) (*Orchestrator, store.SessionStore) {
	t.Helper()
	sessions := openTestSessions(t)
	counter := tokencount.New()
	compactor := compaction.New(sessions, nil, counter, compaction.WithBudget(1_000_000, 500_000))
	chain := providers.NewChain(provider, []string{"scripted-model"})
	rtr := router.New(nil, "", chain)

	o := New(sessions, compactor, chain, rtr, tools, nil, replier, counter, opts...)
	return o, sessions
}

func TestHandleMessageReturnsTextWithNoToolCalls(t *testing.T) {
	provider := &scriptedProvider{responses: []*providers.ChatResponse{
		{Content: "hello there"},
	}}
	replier := &recordingReplier{}
	o, sessions := newTestOrchestrator(t, provider, &fakeTools{}, replier)

	got, err := o.HandleMessage(context.Background(), "loc-1", "hi")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if got != "hello there" {
		t.Fatalf("got %q", got)
	}
	if len(replier.chunks) != 1 || !replier.firsts[0] {
		t.Fatalf("expected one reply-with-reference chunk, got %+v / %+v", replier.chunks, replier.firsts)
	}

	msgs, err := sessions.Messages(context.Background(), "loc-1", false)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 persisted messages (user + assistant), got %d", len(msgs))
	}
	if msgs[0].Message.Role != chatmodel.RoleUser || msgs[1].Message.Role != chatmodel.RoleAssistant {
		t.Fatalf("unexpected roles: %+v", msgs)
	}
}

func TestHandleMessageRunsToolCallThenFinalizes(t *testing.T) {
	provider := &scriptedProvider{responses: []*providers.ChatResponse{
		{
			ToolCalls: []chatmodel.ToolCall{{ID: "call-1", Name: "lookup", Arguments: map[string]any{"q": "weather"}}},
		},
		{Content: "it is sunny"},
	}}
	tools := &fakeTools{results: map[string]string{"lookup": "sunny, 72F"}}
	replier := &recordingReplier{}
	o, sessions := newTestOrchestrator(t, provider, tools, replier)

	got, err := o.HandleMessage(context.Background(), "loc-1", "what's the weather")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if got != "it is sunny" {
		t.Fatalf("got %q", got)
	}

	msgs, err := sessions.Messages(context.Background(), "loc-1", false)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	// user, assistant(tool_call), tool, assistant(final)
	if len(msgs) != 4 {
		t.Fatalf("expected 4 persisted messages, got %d: %+v", len(msgs), msgs)
	}
	if msgs[2].Message.Role != chatmodel.RoleTool || msgs[2].Message.Content != "sunny, 72F" {
		t.Fatalf("unexpected tool message: %+v", msgs[2])
	}
}

func TestHandleMessageDropsConcurrentTurnForSameLocation(t *testing.T) {
	provider := &scriptedProvider{responses: []*providers.ChatResponse{{Content: "reply"}}}
	o, _ := newTestOrchestrator(t, provider, &fakeTools{}, &recordingReplier{})

	if !o.acquire("loc-1") {
		t.Fatal("expected first acquire to succeed")
	}
	defer o.release("loc-1")

	got, err := o.HandleMessage(context.Background(), "loc-1", "hi")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if got != "" {
		t.Fatalf("expected dropped message to return empty string, got %q", got)
	}
}

func TestHandleMessageExhaustsToolRounds(t *testing.T) {
	responses := make([]*providers.ChatResponse, 0, 5)
	for i := 0; i < 5; i++ {
		responses = append(responses, &providers.ChatResponse{
			ToolCalls: []chatmodel.ToolCall{{ID: "call", Name: "loop", Arguments: map[string]any{}}},
		})
	}
	provider := &scriptedProvider{responses: responses}
	tools := &fakeTools{results: map[string]string{"loop": "still going"}}
	o, _ := newTestOrchestrator(t, provider, tools, &recordingReplier{}, WithMaxToolRounds(3))

	got, err := o.HandleMessage(context.Background(), "loc-1", "go")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if got != "Reached maximum tool-call rounds without completing the task." {
		t.Fatalf("got %q", got)
	}
}

func TestHandleMessageAppliesContinuationNudge(t *testing.T) {
	provider := &scriptedProvider{responses: []*providers.ChatResponse{
		{Content: "Let me check that for you."},
		{Content: "Here is the answer."},
	}}
	o, sessions := newTestOrchestrator(t, provider, &fakeTools{}, &recordingReplier{}, WithContinuationNudge(true))

	got, err := o.HandleMessage(context.Background(), "loc-1", "question")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if got != "Here is the answer." {
		t.Fatalf("got %q", got)
	}

	msgs, _ := sessions.Messages(context.Background(), "loc-1", false)
	foundNudge := false
	for _, m := range msgs {
		if m.Message.Role == chatmodel.RoleUser && m.Message.Content == "Use your tools now." {
			foundNudge = true
		}
	}
	if !foundNudge {
		t.Fatalf("expected a persisted nudge message, got %+v", msgs)
	}
}

func TestHandleMessageDeliversReportBack(t *testing.T) {
	provider := &scriptedProvider{responses: []*providers.ChatResponse{{Content: "status update"}}}
	notifier := &fakeNotifier{}
	targets := map[string]ReportBackTarget{"exec-loc": {Label: "CEO", WebhookURL: "https://example.invalid/hook"}}
	o, _ := newTestOrchestrator(t, provider, &fakeTools{}, &recordingReplier{}, WithReportBack(targets, notifier))

	if _, err := o.HandleMessage(context.Background(), "exec-loc", "status?"); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}

	if len(notifier.calls) != 1 || notifier.calls[0] != "CEO:status update" {
		t.Fatalf("expected one report-back call, got %+v", notifier.calls)
	}
}
