package tools

import (
	"context"
	"testing"
)

type stubTool struct {
	name   string
	result string
	isErr  bool
}

func (s *stubTool) Name() string                 { return s.name }
func (s *stubTool) Description() string          { return "stub" }
func (s *stubTool) Parameters() map[string]any   { return map[string]any{"type": "object"} }
func (s *stubTool) Execute(ctx context.Context, args map[string]any) (string, bool) {
	return s.result, s.isErr
}

func TestRegistryExecuteRoutesToRegisteredTool(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubTool{name: "echo", result: "hello"})

	out, isErr := r.Execute(context.Background(), "echo", nil)
	if isErr {
		t.Fatalf("unexpected error result")
	}
	if out != "hello" {
		t.Fatalf("got %q, want %q", out, "hello")
	}
}

func TestRegistryExecuteUnknownTool(t *testing.T) {
	r := NewRegistry()
	out, isErr := r.Execute(context.Background(), "missing", nil)
	if !isErr {
		t.Fatalf("expected error result for unknown tool")
	}
	if out == "" {
		t.Fatalf("expected a descriptive message")
	}
}

func TestRegistryDefinitionsSortedByName(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubTool{name: "zeta"})
	r.Register(&stubTool{name: "alpha"})
	r.Register(&stubTool{name: "mid"})

	defs := r.Definitions()
	if len(defs) != 3 {
		t.Fatalf("got %d definitions, want 3", len(defs))
	}
	if defs[0].Name != "alpha" || defs[1].Name != "mid" || defs[2].Name != "zeta" {
		t.Fatalf("definitions not sorted: %+v", defs)
	}
}

func TestRegistryRegisterOverwritesSameName(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubTool{name: "echo", result: "first"})
	r.Register(&stubTool{name: "echo", result: "second"})

	out, _ := r.Execute(context.Background(), "echo", nil)
	if out != "second" {
		t.Fatalf("got %q, want %q", out, "second")
	}
}
