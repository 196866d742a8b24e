// Package config loads the gateway's JSON5 configuration document and
// resolves environment-variable overrides on top of it, mirroring the
// teacher's internal/config two-phase (decode, then env overlay) shape.
package config

// Config is the root configuration tree. Field groups mirror the
// recognized options enumerated in the gateway's configuration reference:
// models.*, discord.*, telegram.*, agent.*, compaction.*, router.*,
// daemon.*, reportback.*.
type Config struct {
	Models     ModelsConfig     `json:"models"`
	Discord    DiscordConfig    `json:"discord"`
	Telegram   TelegramConfig   `json:"telegram"`
	Agent      AgentConfig      `json:"agent"`
	Compaction CompactionConfig `json:"compaction"`
	Router     RouterConfig     `json:"router"`
	Daemon     DaemonConfig     `json:"daemon"`
	Reportback ReportbackConfig `json:"reportback"`
	Sessions   SessionsConfig   `json:"sessions"`
	Scheduler  SchedulerConfig  `json:"scheduler"`
	Providers  ProvidersConfig  `json:"providers"`
}

// ModelsConfig configures the provider fallback chain used by every persona
// that doesn't override it.
type ModelsConfig struct {
	Primary     string      `json:"primary"`
	Fallbacks   []string    `json:"fallbacks,omitempty"`
	Proxy       ProxyConfig `json:"proxy"`
	Temperature float64     `json:"temperature,omitempty"`
	MaxTokens   int         `json:"max_tokens,omitempty"`
}

// ProxyConfig points the provider chain at an OpenAI-compatible (or local
// model) REST endpoint instead of a named provider's default base URL.
type ProxyConfig struct {
	BaseURL string `json:"base_url,omitempty"`
	APIKey  string `json:"api_key,omitempty"`
	Timeout int    `json:"timeout,omitempty"` // seconds
}

// DiscordConfig configures the Discord ChatPlatform capability.
type DiscordConfig struct {
	Token            string   `json:"token"`
	GuildIDs         []string `json:"guild_ids,omitempty"`
	RequireMention   bool     `json:"require_mention,omitempty"`
	DMPolicy         string   `json:"dm_policy,omitempty"` // "open" (default), "allowlist"
	DMAllowlist      []string `json:"dm_allowlist,omitempty"`
	StatusMessage    string   `json:"status_message,omitempty"`
	MaxMessageLength int      `json:"max_message_length,omitempty"` // default 2000
}

// TelegramConfig configures the Telegram ChatPlatform capability, the
// second concrete chat-platform adapter SPEC_FULL.md's domain stack wires
// in to prove the ChatPlatform capability is not Discord-shaped.
type TelegramConfig struct {
	Token          string   `json:"token"`
	AllowFrom      []string `json:"allow_from,omitempty"`
	DMPolicy       string   `json:"dm_policy,omitempty"`    // "open" (default), "allowlist", "disabled"
	GroupPolicy    string   `json:"group_policy,omitempty"` // "open" (default), "allowlist", "disabled"
	RequireMention bool     `json:"require_mention,omitempty"`
}

// AgentConfig configures the orchestrator's per-turn loop and workspace.
type AgentConfig struct {
	Workspace         string   `json:"workspace"`
	SystemPromptFiles []string `json:"system_prompt_files,omitempty"`
	ExecTimeout       int      `json:"exec_timeout,omitempty"`    // seconds
	ExecMaxOutput     int      `json:"exec_max_output,omitempty"` // bytes
	MaxSubagents      int      `json:"max_subagents,omitempty"`
	MaxToolRounds     int      `json:"max_tool_rounds,omitempty"` // default 25
	ContinuationNudge bool     `json:"continuation_nudge,omitempty"`
	ChunkLength       int      `json:"chunk_length,omitempty"` // default 2000
}

// CompactionConfig configures the session compactor.
type CompactionConfig struct {
	Enabled          bool   `json:"enabled"`
	MaxContextTokens int    `json:"max_context_tokens,omitempty"`
	TargetTokens     int    `json:"target_tokens,omitempty"`
	SummaryModel     string `json:"summary_model,omitempty"`
}

// RouterConfig configures channel-to-persona routing.
type RouterConfig struct {
	Personas       []PersonaConfig `json:"personas,omitempty"`
	DefaultPersona string          `json:"default_persona,omitempty"`

	// AuthorizeByDefault is the fallback used by Persona.Authorized when a
	// persona sets no authorized_users override.
	AuthorizeByDefault bool `json:"authorize_by_default,omitempty"`
}

// PersonaConfig is the on-disk shape of a router.Persona.
type PersonaConfig struct {
	Name            string   `json:"name"`
	ChannelIDs      []string `json:"channel_ids"`
	Workspace       string   `json:"workspace,omitempty"`
	PromptFiles     []string `json:"prompt_files,omitempty"`
	Model           string   `json:"model,omitempty"`
	BaseURL         string   `json:"base_url,omitempty"`
	Temperature     float64  `json:"temperature,omitempty"`
	MaxTokens       int      `json:"max_tokens,omitempty"`
	AuthorizedUsers []string `json:"authorized_users,omitempty"`
	RequireMention  *bool    `json:"require_mention,omitempty"`
}

// DaemonConfig configures process supervision when running detached.
type DaemonConfig struct {
	AutoRestart   bool `json:"auto_restart,omitempty"`
	MaxRestarts   int  `json:"max_restarts,omitempty"`
	RestartWindow int  `json:"restart_window,omitempty"` // seconds
}

// ReportbackConfig configures the executive report-back side channel
// (spec §4.5): a static {location -> label, webhook} mapping, config-driven
// per the Open Question resolution rather than hard-coded.
type ReportbackConfig struct {
	Executives []ReportbackExecutive `json:"executives,omitempty"`
}

type ReportbackExecutive struct {
	Location   string `json:"location"`
	Label      string `json:"label"`
	WebhookURL string `json:"webhook_url"`
}

// SessionsConfig configures where the session/message SQLite store lives.
type SessionsConfig struct {
	Storage string `json:"storage"`
}

// SchedulerConfig configures where the cron job/run SQLite store lives and
// how often the tick loop polls for due jobs.
type SchedulerConfig struct {
	Storage      string `json:"storage"`
	TickInterval int    `json:"tick_interval,omitempty"` // seconds, default 15
}

// ProvidersConfig holds API credentials for each named LLM provider the
// ProviderChain can route `models.primary`/`models.fallbacks` through.
type ProvidersConfig struct {
	Anthropic  ProviderCreds `json:"anthropic"`
	OpenAI     ProviderCreds `json:"openai"`
	OpenRouter ProviderCreds `json:"openrouter"`
	Groq       ProviderCreds `json:"groq"`
	Gemini     ProviderCreds `json:"gemini"`
	DeepSeek   ProviderCreds `json:"deepseek"`
	Mistral    ProviderCreds `json:"mistral"`
	XAI        ProviderCreds `json:"xai"`
	MiniMax    ProviderCreds `json:"minimax"`
	Cohere     ProviderCreds `json:"cohere"`
	Perplexity ProviderCreds `json:"perplexity"`
}

type ProviderCreds struct {
	APIKey  string `json:"api_key"`
	APIBase string `json:"api_base,omitempty"`
}
