package chatmodel

import "testing"

func TestMessageValidate(t *testing.T) {
	cases := []struct {
		name    string
		msg     Message
		wantErr bool
	}{
		{"valid system", NewSystem("hi"), false},
		{"valid user", NewUser("hi"), false},
		{"valid assistant with calls", NewAssistant("", []ToolCall{{ID: "1", Name: "exec"}}), false},
		{"valid tool result", NewToolResult("1", "exec", "ok"), false},
		{"invalid role", Message{Role: "bogus"}, true},
		{"tool without call id", Message{Role: RoleTool, ToolName: "exec"}, true},
		{"tool without name", Message{Role: RoleTool, ToolCallID: "1"}, true},
		{"call id on non-tool message", Message{Role: RoleUser, ToolCallID: "1"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.msg.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestHasToolCalls(t *testing.T) {
	if NewUser("hi").HasToolCalls() {
		t.Fatal("user message should never have tool calls")
	}
	if !NewAssistant("", []ToolCall{{ID: "1", Name: "exec"}}).HasToolCalls() {
		t.Fatal("assistant message with calls should report HasToolCalls")
	}
}

func TestToolCallRawArguments(t *testing.T) {
	tc := ToolCall{Name: "exec", Arguments: map[string]any{"cmd": "ls"}}
	if got := tc.RawArguments(); got != `{"cmd":"ls"}` {
		t.Fatalf("RawArguments() = %q", got)
	}
	if got := (ToolCall{}).RawArguments(); got != "{}" {
		t.Fatalf("RawArguments() on nil args = %q, want {}", got)
	}
}

func TestToolCallUnparseableArguments(t *testing.T) {
	tc := ToolCall{Arguments: map[string]any{"_raw": "not json"}}
	raw, ok := tc.UnparseableArguments()
	if !ok || raw != "not json" {
		t.Fatalf("UnparseableArguments() = (%q, %v), want (\"not json\", true)", raw, ok)
	}

	normal := ToolCall{Arguments: map[string]any{"cmd": "ls"}}
	if _, ok := normal.UnparseableArguments(); ok {
		t.Fatal("UnparseableArguments() should be false for well-formed arguments")
	}
}
