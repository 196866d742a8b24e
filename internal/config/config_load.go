package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/titanous/json5"
)

// Default returns a Config with sensible defaults, the same shape as the
// teacher's Default(): a struct literal callers overlay a decoded document
// onto.
func Default() *Config {
	return &Config{
		Models: ModelsConfig{
			Primary:     "claude-sonnet-4-5-20250929",
			Temperature: 0.7,
			MaxTokens:   8192,
		},
		Agent: AgentConfig{
			Workspace:     "~/.loomgate/workspace",
			ExecTimeout:   60,
			ExecMaxOutput: 64 * 1024,
			MaxSubagents:  5,
			MaxToolRounds: 25,
			ChunkLength:   2000,
		},
		Compaction: CompactionConfig{
			Enabled:          true,
			MaxContextTokens: 100_000,
			TargetTokens:     60_000,
		},
		Sessions: SessionsConfig{
			Storage: "~/.loomgate/sessions.db",
		},
		Scheduler: SchedulerConfig{
			Storage:      "~/.loomgate/cron.db",
			TickInterval: 15,
		},
		Discord: DiscordConfig{
			MaxMessageLength: 2000,
		},
		Router: RouterConfig{
			AuthorizeByDefault: true,
		},
	}
}

// resolveConfigPath implements the teacher's flag > env var > cwd fallback
// convention, generalized to also check os.UserConfigDir().
func resolveConfigPath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	if v := os.Getenv("LOOMGATE_CONFIG"); v != "" {
		return v
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "loomgate", "config.json")
	}
	return "config.json"
}

// Load reads config from a JSON5 file, then overlays env vars. path may be
// empty, in which case resolveConfigPath's fallback chain is used.
func Load(flagPath string) (*Config, error) {
	cfg := Default()
	path := resolveConfigPath(flagPath)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays LOOMGATE_* env vars onto the config. Env vars
// take precedence over file values, same two-phase shape as the teacher's
// Load()/applyEnvOverrides().
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	envStr("LOOMGATE_ANTHROPIC_API_KEY", &c.Providers.Anthropic.APIKey)
	envStr("LOOMGATE_OPENAI_API_KEY", &c.Providers.OpenAI.APIKey)
	envStr("LOOMGATE_OPENROUTER_API_KEY", &c.Providers.OpenRouter.APIKey)
	envStr("LOOMGATE_GROQ_API_KEY", &c.Providers.Groq.APIKey)
	envStr("LOOMGATE_GEMINI_API_KEY", &c.Providers.Gemini.APIKey)
	envStr("LOOMGATE_DEEPSEEK_API_KEY", &c.Providers.DeepSeek.APIKey)
	envStr("LOOMGATE_MISTRAL_API_KEY", &c.Providers.Mistral.APIKey)
	envStr("LOOMGATE_XAI_API_KEY", &c.Providers.XAI.APIKey)
	envStr("LOOMGATE_MINIMAX_API_KEY", &c.Providers.MiniMax.APIKey)
	envStr("LOOMGATE_COHERE_API_KEY", &c.Providers.Cohere.APIKey)
	envStr("LOOMGATE_PERPLEXITY_API_KEY", &c.Providers.Perplexity.APIKey)

	envStr("LOOMGATE_DISCORD_TOKEN", &c.Discord.Token)
	envStr("LOOMGATE_TELEGRAM_TOKEN", &c.Telegram.Token)

	envStr("LOOMGATE_WORKSPACE", &c.Agent.Workspace)
	envStr("LOOMGATE_SESSIONS_STORAGE", &c.Sessions.Storage)
	envStr("LOOMGATE_SCHEDULER_STORAGE", &c.Scheduler.Storage)
	envStr("LOOMGATE_PROXY_BASE_URL", &c.Models.Proxy.BaseURL)
	envStr("LOOMGATE_PROXY_API_KEY", &c.Models.Proxy.APIKey)

	if v := os.Getenv("LOOMGATE_MAX_TOOL_ROUNDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Agent.MaxToolRounds = n
		}
	}
	if v := os.Getenv("LOOMGATE_CONTINUATION_NUDGE"); v != "" {
		c.Agent.ContinuationNudge = v == "true" || v == "1"
	}
	if v := os.Getenv("LOOMGATE_OWNER_IDS"); v != "" {
		c.Discord.DMAllowlist = append(c.Discord.DMAllowlist, strings.Split(v, ",")...)
	}
}

// Save writes the config to a JSON file.
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o600)
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if len(path) > 1 && path[1] == '/' {
		return filepath.Join(home, path[2:])
	}
	return home
}
