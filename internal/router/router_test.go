package router

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/loomgate/loomgate/internal/providers"
)

func TestRouteReturnsMatchedPersonaOrDefault(t *testing.T) {
	cto := &Persona{Name: "CTO", ChannelIDs: []string{"chan-1"}}
	ava := &Persona{Name: "AVA", ChannelIDs: []string{"chan-2"}}
	r := New([]*Persona{cto, ava}, "AVA", nil)

	if got := r.Route("chan-1"); got != cto {
		t.Fatalf("expected CTO for chan-1, got %+v", got)
	}
	if got := r.Route("unmapped-chan"); got != ava {
		t.Fatalf("expected default AVA for unmapped channel, got %+v", got)
	}
}

func TestRouteWithNoDefaultReturnsNil(t *testing.T) {
	r := New([]*Persona{{Name: "CTO", ChannelIDs: []string{"chan-1"}}}, "", nil)
	if got := r.Route("unmapped"); got != nil {
		t.Fatalf("expected nil for unmapped channel with no default, got %+v", got)
	}
}

func TestRoutedChannel(t *testing.T) {
	r := New([]*Persona{{Name: "CTO", ChannelIDs: []string{"chan-1"}}}, "", nil)
	if !r.RoutedChannel("chan-1") {
		t.Fatal("expected chan-1 to be reported as routed")
	}
	if r.RoutedChannel("chan-2") {
		t.Fatal("expected an unmapped channel to be reported as not routed")
	}
}

func TestSystemPromptForConcatenatesFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "AGENTS.md"), []byte("You are the CTO persona."), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "STYLE.md"), []byte("Be terse."), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	p := &Persona{Name: "CTO", Workspace: dir, PromptFiles: []string{"AGENTS.md", "STYLE.md"}}
	r := New([]*Persona{p}, "", nil)

	prompt := r.SystemPromptFor(context.Background(), p)
	want := "You are the CTO persona.\n\n---\n\nBe terse."
	if prompt != want {
		t.Fatalf("got %q, want %q", prompt, want)
	}
}

func TestSystemPromptForFallsBackWhenNoFilesExist(t *testing.T) {
	p := &Persona{Name: "Ghost", Workspace: t.TempDir()}
	r := New([]*Persona{p}, "", nil)

	prompt := r.SystemPromptFor(context.Background(), p)
	if prompt != "You are Ghost." {
		t.Fatalf("unexpected fallback prompt: %q", prompt)
	}
}

type fakeMemory struct{ recall string }

func (f fakeMemory) Recall(_ context.Context, _ string) (string, error) { return f.recall, nil }

func TestSystemPromptForAppendsMemoryRecall(t *testing.T) {
	p := &Persona{Name: "Aria", Workspace: t.TempDir()}
	r := New([]*Persona{p}, "", nil, WithMemoryRecall(fakeMemory{recall: "previously discussed X"}))

	prompt := r.SystemPromptFor(context.Background(), p)
	if prompt != "You are Aria.\n\n## Persistent Memory\npreviously discussed X" {
		t.Fatalf("unexpected prompt: %q", prompt)
	}
}

func TestChainForReturnsSharedChainByDefault(t *testing.T) {
	shared := providers.NewChain(nil, nil)
	p := &Persona{Name: "AVA"}
	r := New([]*Persona{p}, "", shared)

	if got := r.ChainFor(p); got != shared {
		t.Fatalf("expected shared chain for persona without base_url override")
	}
}

func TestChainForBuildsAndCachesPerPersonaChain(t *testing.T) {
	shared := providers.NewChain(nil, nil)
	p := &Persona{Name: "CTO", BaseURL: "https://custom.example/v1"}
	built := 0
	r := New([]*Persona{p}, "", shared, WithChainFactory(func(persona *Persona) *providers.ProviderChain {
		built++
		return providers.NewChain(nil, nil)
	}))

	first := r.ChainFor(p)
	second := r.ChainFor(p)
	if first != second {
		t.Fatal("expected per-persona chain to be cached")
	}
	if built != 1 {
		t.Fatalf("expected chain factory called exactly once, got %d", built)
	}
}

func TestPersonaAuthorized(t *testing.T) {
	open := &Persona{Name: "open"}
	if !open.Authorized("anyone", true) {
		t.Fatal("expected nil authorized_users to defer to global default")
	}
	if open.Authorized("anyone", false) {
		t.Fatal("expected nil authorized_users to defer to global default (false case)")
	}

	restricted := &Persona{Name: "restricted", AuthorizedUsers: []string{"user-1"}}
	if !restricted.Authorized("user-1", false) {
		t.Fatal("expected listed user to be authorized regardless of global default")
	}
	if restricted.Authorized("user-2", true) {
		t.Fatal("expected unlisted user to be denied even if global default allows")
	}

	webhooksOnly := &Persona{Name: "webhooks-only", AuthorizedUsers: []string{}}
	if webhooksOnly.Authorized("anyone", true) {
		t.Fatal("expected empty (non-nil) authorized_users to deny all users")
	}
}
