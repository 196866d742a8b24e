package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"time"
)

// denyPatterns blocks the most dangerous classes of shell command: destructive
// file ops, exfiltration, reverse shells, and privilege escalation. Grounded
// on internal/tools/shell.go's defaultDenyPatterns, trimmed to the
// categories that apply without the teacher's sandbox/container layer.
var denyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\brm\s+-[rf]{1,2}\b`),
	regexp.MustCompile(`\bdd\s+if=`),
	regexp.MustCompile(`\b(shutdown|reboot|poweroff)\b`),
	regexp.MustCompile(`:\(\)\s*\{.*\};\s*:`), // fork bomb
	regexp.MustCompile(`\bcurl\b.*\|\s*(ba)?sh\b`),
	regexp.MustCompile(`\bwget\b.*-O\s*-\s*\|\s*(ba)?sh\b`),
	regexp.MustCompile(`\b(nc|ncat|netcat)\b.*-[el]\b`),
	regexp.MustCompile(`\bsudo\b`),
	regexp.MustCompile(`\bmkfs|diskpart\b`),
	regexp.MustCompile(`/dev/tcp/`),
}

const defaultExecMaxOutput = 64 * 1024

// ExecTool runs a shell command on the host and returns its combined output.
type ExecTool struct {
	workingDir string
	timeout    time.Duration
	maxOutput  int
}

// NewExecTool builds an ExecTool rooted at workingDir with the spec's
// default 60s command timeout and 64KB output cap.
func NewExecTool(workingDir string) *ExecTool {
	return &ExecTool{workingDir: workingDir, timeout: 60 * time.Second, maxOutput: defaultExecMaxOutput}
}

// WithTimeout overrides the default command timeout (agent.exec_timeout).
func (t *ExecTool) WithTimeout(d time.Duration) *ExecTool {
	if d > 0 {
		t.timeout = d
	}
	return t
}

// WithMaxOutput overrides the default output cap (agent.exec_max_output).
func (t *ExecTool) WithMaxOutput(n int) *ExecTool {
	if n > 0 {
		t.maxOutput = n
	}
	return t
}

func (t *ExecTool) Name() string        { return "exec" }
func (t *ExecTool) Description() string { return "Execute a shell command and return its output." }

func (t *ExecTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{
				"type":        "string",
				"description": "The shell command to execute.",
			},
		},
		"required": []string{"command"},
	}
}

func (t *ExecTool) Execute(ctx context.Context, args map[string]any) (string, bool) {
	command, _ := args["command"].(string)
	if command == "" {
		return "command is required", true
	}

	for _, pattern := range denyPatterns {
		if pattern.MatchString(command) {
			return fmt.Sprintf("command denied by safety policy: matches %s", pattern.String()), true
		}
	}

	execCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, "sh", "-c", command)
	cmd.Dir = t.workingDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	var result string
	if stdout.Len() > 0 {
		result = stdout.String()
	}
	if stderr.Len() > 0 {
		if result != "" {
			result += "\n"
		}
		result += "STDERR:\n" + stderr.String()
	}

	if err != nil {
		if execCtx.Err() == context.DeadlineExceeded {
			return fmt.Sprintf("command timed out after %s", t.timeout), true
		}
		if result == "" {
			result = err.Error()
		}
		return result, true
	}

	if result == "" {
		result = "(command completed with no output)"
	}
	if len(result) > t.maxOutput {
		result = result[:t.maxOutput] + fmt.Sprintf("\n... (truncated, %d bytes total)", len(result))
	}
	return result, false
}
