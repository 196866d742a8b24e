package tools

import (
	"context"
	"fmt"
	"time"
)

// Spawner is the subset of agentmanager.Manager a SpawnTool needs, kept as a
// narrow interface here so internal/tools never imports internal/
// agentmanager directly. cmd wires a thin adapter over agentmanager.Manager
// that drops its returned *SubAgent down to just the id.
type Spawner interface {
	Spawn(ctx context.Context, task, targetLocation, model string, timeout time.Duration, label string) (id string, err error)
}

// SpawnTool exposes spec §4.7's in-session "spawn sub-agent" request as a
// model-callable tool: spawn(task, target_location, model?, timeout, label?).
// Grounded on the teacher's internal/tools/subagent.go SpawnTool, adapted to
// call agentmanager.Manager (via the Spawner seam) instead of the teacher's
// own SubagentManager.
type SpawnTool struct {
	spawner        Spawner
	defaultTimeout time.Duration
}

// NewSpawnTool builds a SpawnTool. defaultTimeout is used when the model
// omits the timeout argument.
func NewSpawnTool(spawner Spawner, defaultTimeout time.Duration) *SpawnTool {
	if defaultTimeout <= 0 {
		defaultTimeout = 5 * time.Minute
	}
	return &SpawnTool{spawner: spawner, defaultTimeout: defaultTimeout}
}

func (t *SpawnTool) Name() string { return "spawn" }
func (t *SpawnTool) Description() string {
	return "Dispatch a background sub-agent to work on a task and deliver its result back to a target location."
}

func (t *SpawnTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"task":            map[string]any{"type": "string", "description": "The task for the sub-agent to perform."},
			"target_location": map[string]any{"type": "string", "description": "Location to deliver the result to."},
			"model":           map[string]any{"type": "string", "description": "Optional model override."},
			"timeout_seconds": map[string]any{"type": "integer", "description": "Optional timeout in seconds."},
			"label":           map[string]any{"type": "string", "description": "Optional short label for the sub-agent."},
		},
		"required": []string{"task", "target_location"},
	}
}

func (t *SpawnTool) Execute(ctx context.Context, args map[string]any) (string, bool) {
	task, _ := args["task"].(string)
	target, _ := args["target_location"].(string)
	if task == "" || target == "" {
		return "task and target_location are required", true
	}

	model, _ := args["model"].(string)
	label, _ := args["label"].(string)

	timeout := t.defaultTimeout
	if secs, ok := args["timeout_seconds"].(float64); ok && secs > 0 {
		timeout = time.Duration(secs) * time.Second
	}

	id, err := t.spawner.Spawn(ctx, task, target, model, timeout, label)
	if err != nil {
		return fmt.Sprintf("failed to spawn sub-agent: %s", err), true
	}
	return fmt.Sprintf("sub-agent %s spawned, will deliver result to %s", id, target), false
}
