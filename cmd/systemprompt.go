package cmd

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/loomgate/loomgate/internal/config"
)

const defaultGlobalSystemPrompt = "You are a helpful assistant."

// loadGlobalSystemPrompt concatenates agent.system_prompt_files, the same
// convention router.SystemPromptFor uses per-persona, for the orchestrator's
// fallback prompt when a location matches no persona.
func loadGlobalSystemPrompt(cfg *config.Config) string {
	files := cfg.Agent.SystemPromptFiles
	if len(files) == 0 {
		files = []string{"AGENTS.md"}
	}

	var parts []string
	for _, fname := range files {
		content, err := os.ReadFile(filepath.Join(cfg.Agent.Workspace, fname))
		if err != nil {
			continue
		}
		parts = append(parts, strings.TrimSpace(string(content)))
	}
	if len(parts) == 0 {
		return defaultGlobalSystemPrompt
	}
	return strings.Join(parts, "\n\n---\n\n")
}
