package compaction

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/loomgate/loomgate/internal/chatmodel"
	"github.com/loomgate/loomgate/internal/store"
	"github.com/loomgate/loomgate/internal/tokencount"
)

type fakeSummarizer struct {
	calls []string
	reply string
	err   error
}

func (f *fakeSummarizer) Summarize(_ context.Context, _ string, prompt string) (string, error) {
	f.calls = append(f.calls, prompt)
	if f.err != nil {
		return "", f.err
	}
	if f.reply != "" {
		return f.reply, nil
	}
	return "summary of earlier conversation", nil
}

func openSessions(t *testing.T) store.SessionStore {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "compact.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s.Sessions()
}

func TestMaybeCompactNoOpBelowThreshold(t *testing.T) {
	ctx := context.Background()
	sessions := openSessions(t)
	counter := tokencount.New()
	sim := &fakeSummarizer{}
	c := New(sessions, sim, counter, WithBudget(1000, 600))

	for i := 0; i < 5; i++ {
		if _, err := sessions.Append(ctx, "loc", chatmodel.NewUser("hi"), 10); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	compacted, err := c.MaybeCompact(ctx, "loc")
	if err != nil {
		t.Fatalf("MaybeCompact: %v", err)
	}
	if compacted {
		t.Fatal("expected no compaction below threshold")
	}
	if len(sim.calls) != 0 {
		t.Fatal("summarizer should not be called when under budget")
	}
}

func TestMaybeCompactSummarizesAndKeepsTail(t *testing.T) {
	ctx := context.Background()
	sessions := openSessions(t)
	counter := tokencount.New()
	sim := &fakeSummarizer{reply: "dense summary"}
	c := New(sessions, sim, counter, WithBudget(100, 40))

	for i := 0; i < 20; i++ {
		if _, err := sessions.Append(ctx, "loc", chatmodel.NewUser("message body"), 20); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	compacted, err := c.MaybeCompact(ctx, "loc")
	if err != nil {
		t.Fatalf("MaybeCompact: %v", err)
	}
	if !compacted {
		t.Fatal("expected compaction to run over budget")
	}
	if len(sim.calls) != 1 {
		t.Fatalf("expected exactly one summarize call, got %d", len(sim.calls))
	}

	active, err := sessions.Messages(ctx, "loc", false)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(active) < 2 {
		t.Fatal("expected at least the recent tail to remain active")
	}
	last := active[len(active)-1]
	if last.Message.Role != chatmodel.RoleSystem || !strings.Contains(last.Message.Content, "dense summary") {
		t.Fatalf("expected trailing summary message, got %+v", last.Message)
	}
	if !strings.HasPrefix(last.Message.Content, summaryPrefix) {
		t.Fatalf("expected summary content to carry the standard prefix, got %q", last.Message.Content)
	}
}

func TestMaybeCompactKeepsToolResultsWithParentAssistant(t *testing.T) {
	ctx := context.Background()
	sessions := openSessions(t)
	counter := tokencount.New()
	sim := &fakeSummarizer{}
	c := New(sessions, sim, counter, WithBudget(100, 1))

	for i := 0; i < 16; i++ {
		if _, err := sessions.Append(ctx, "loc", chatmodel.NewUser("filler"), 20); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	tc := chatmodel.ToolCall{ID: "call-1", Name: "lookup", Arguments: map[string]any{"q": "x"}}
	if _, err := sessions.Append(ctx, "loc", chatmodel.NewAssistant("", []chatmodel.ToolCall{tc}), 20); err != nil {
		t.Fatalf("Append assistant: %v", err)
	}
	if _, err := sessions.Append(ctx, "loc", chatmodel.NewToolResult("call-1", "lookup", "result"), 20); err != nil {
		t.Fatalf("Append tool result: %v", err)
	}

	if _, err := c.MaybeCompact(ctx, "loc"); err != nil {
		t.Fatalf("MaybeCompact: %v", err)
	}

	active, err := sessions.Messages(ctx, "loc", false)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	for i, m := range active {
		if m.Message.Role == chatmodel.RoleTool {
			if i == 0 || active[i-1].Message.Role != chatmodel.RoleAssistant {
				t.Fatalf("tool result at %d is missing its parent assistant message", i)
			}
		}
	}
}

func TestMaybeCompactLeavesStateUnchangedOnSummarizeFailure(t *testing.T) {
	ctx := context.Background()
	sessions := openSessions(t)
	counter := tokencount.New()
	sim := &fakeSummarizer{err: context.DeadlineExceeded}
	c := New(sessions, sim, counter, WithBudget(100, 40))

	for i := 0; i < 20; i++ {
		if _, err := sessions.Append(ctx, "loc", chatmodel.NewUser("message body"), 20); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	compacted, err := c.MaybeCompact(ctx, "loc")
	if err != nil {
		t.Fatalf("MaybeCompact should swallow summarizer errors: %v", err)
	}
	if compacted {
		t.Fatal("expected compaction to report false on summarizer failure")
	}

	active, err := sessions.Messages(ctx, "loc", false)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(active) != 20 {
		t.Fatalf("expected all 20 messages still active after failed summarization, got %d", len(active))
	}
}
