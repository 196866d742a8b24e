package tools

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestExecToolRunsCommandAndCapturesStdout(t *testing.T) {
	tool := NewExecTool(t.TempDir())
	out, isErr := tool.Execute(context.Background(), map[string]any{"command": "echo hello"})
	if isErr {
		t.Fatalf("unexpected error: %s", out)
	}
	if strings.TrimSpace(out) != "hello" {
		t.Fatalf("got %q, want %q", out, "hello")
	}
}

func TestExecToolCapturesStderr(t *testing.T) {
	tool := NewExecTool(t.TempDir())
	out, isErr := tool.Execute(context.Background(), map[string]any{"command": "echo oops 1>&2"})
	if isErr {
		t.Fatalf("unexpected error result: %s", out)
	}
	if !strings.Contains(out, "STDERR:") || !strings.Contains(out, "oops") {
		t.Fatalf("expected stderr to be captured, got %q", out)
	}
}

func TestExecToolDeniesDangerousCommand(t *testing.T) {
	tool := NewExecTool(t.TempDir())
	out, isErr := tool.Execute(context.Background(), map[string]any{"command": "rm -rf /"})
	if !isErr {
		t.Fatalf("expected denial, got success: %s", out)
	}
	if !strings.Contains(out, "denied") {
		t.Fatalf("expected denial message, got %q", out)
	}
}

func TestExecToolRequiresCommand(t *testing.T) {
	tool := NewExecTool(t.TempDir())
	_, isErr := tool.Execute(context.Background(), map[string]any{})
	if !isErr {
		t.Fatalf("expected error for missing command")
	}
}

func TestExecToolTimesOut(t *testing.T) {
	tool := NewExecTool(t.TempDir())
	tool.timeout = 50 * time.Millisecond

	out, isErr := tool.Execute(context.Background(), map[string]any{"command": "sleep 5"})
	if !isErr {
		t.Fatalf("expected timeout error, got success: %s", out)
	}
	if !strings.Contains(out, "timed out") {
		t.Fatalf("expected timeout message, got %q", out)
	}
}

func TestExecToolNonZeroExitIsError(t *testing.T) {
	tool := NewExecTool(t.TempDir())
	out, isErr := tool.Execute(context.Background(), map[string]any{"command": "exit 3"})
	if !isErr {
		t.Fatalf("expected error result for nonzero exit, got: %s", out)
	}
}
