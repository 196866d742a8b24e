package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/loomgate/loomgate/internal/config"
	"github.com/loomgate/loomgate/internal/providers"
)

// providerEndpoint is a named OpenAI-compatible API target: name, default
// base URL, and the accessor that picks that vendor's credentials out of
// config.ProvidersConfig.
type providerEndpoint struct {
	name       string
	baseURL    string
	defaultKey func(config.ProvidersConfig) config.ProviderCreds
}

// knownProviders is the base-URL table for every vendor that speaks an
// OpenAI-compatible /chat/completions endpoint — the one transport
// internal/providers.OpenAIProvider implements.
var knownProviders = []providerEndpoint{
	{"anthropic", "https://api.anthropic.com/v1", func(p config.ProvidersConfig) config.ProviderCreds { return p.Anthropic }},
	{"openai", "https://api.openai.com/v1", func(p config.ProvidersConfig) config.ProviderCreds { return p.OpenAI }},
	{"openrouter", "https://openrouter.ai/api/v1", func(p config.ProvidersConfig) config.ProviderCreds { return p.OpenRouter }},
	{"groq", "https://api.groq.com/openai/v1", func(p config.ProvidersConfig) config.ProviderCreds { return p.Groq }},
	{"gemini", "https://generativelanguage.googleapis.com/v1beta/openai", func(p config.ProvidersConfig) config.ProviderCreds { return p.Gemini }},
	{"deepseek", "https://api.deepseek.com/v1", func(p config.ProvidersConfig) config.ProviderCreds { return p.DeepSeek }},
	{"mistral", "https://api.mistral.ai/v1", func(p config.ProvidersConfig) config.ProviderCreds { return p.Mistral }},
	{"xai", "https://api.x.ai/v1", func(p config.ProvidersConfig) config.ProviderCreds { return p.XAI }},
	{"minimax", "https://api.minimax.io/v1", func(p config.ProvidersConfig) config.ProviderCreds { return p.MiniMax }},
	{"cohere", "https://api.cohere.com/compatibility/v1", func(p config.ProvidersConfig) config.ProviderCreds { return p.Cohere }},
	{"perplexity", "https://api.perplexity.ai", func(p config.ProvidersConfig) config.ProviderCreds { return p.Perplexity }},
}

// buildProviderRegistry instantiates one OpenAIProvider per configured
// credential, plus an optional "proxy" provider pointed at models.proxy for
// OpenAI-compatible local/self-hosted endpoints.
func buildProviderRegistry(cfg *config.Config) map[string]providers.Provider {
	reg := make(map[string]providers.Provider)

	for _, p := range knownProviders {
		creds := p.defaultKey(cfg.Providers)
		if creds.APIKey == "" {
			continue
		}
		base := creds.APIBase
		if base == "" {
			base = p.baseURL
		}
		prov := providers.NewOpenAIProvider(p.name, creds.APIKey, base, "")
		if p.name == "minimax" && strings.Contains(base, "minimax.io") {
			prov = prov.WithChatPath("/text/chatcompletion_v2")
		}
		reg[p.name] = prov
		slog.Info("registered provider", "name", p.name)
	}

	if cfg.Models.Proxy.BaseURL != "" {
		reg["proxy"] = providers.NewOpenAIProvider("proxy", cfg.Models.Proxy.APIKey, cfg.Models.Proxy.BaseURL, "")
		slog.Info("registered provider", "name", "proxy")
	}

	return reg
}

// parseModelRef splits a "provider/model" reference. A ref with no slash is
// assumed to name a model on the proxy provider when one is configured,
// otherwise on the sole registered provider (an error if there isn't
// exactly one, since the ambiguity can't otherwise be resolved).
func parseModelRef(ref string, reg map[string]providers.Provider, hasProxy bool) (providers.Provider, string, error) {
	if idx := strings.Index(ref, "/"); idx > 0 {
		name, model := ref[:idx], ref[idx+1:]
		prov, ok := reg[name]
		if !ok {
			return nil, "", fmt.Errorf("model ref %q names unknown provider %q", ref, name)
		}
		return prov, model, nil
	}

	if hasProxy {
		return reg["proxy"], ref, nil
	}
	if len(reg) == 1 {
		for _, prov := range reg {
			return prov, ref, nil
		}
	}
	return nil, "", fmt.Errorf("model ref %q has no provider prefix and more than one provider is configured", ref)
}

// buildProviderChain resolves models.primary/fallbacks into a ProviderChain
// per spec §4.3: a requested-model-first / primary-model-list / fallback-
// provider-list precedence, all under the chain's shared retry policy.
func buildProviderChain(cfg *config.Config, reg map[string]providers.Provider) (*providers.ProviderChain, error) {
	if len(reg) == 0 {
		return nil, fmt.Errorf("no model provider configured: set at least one providers.* api_key or models.proxy.base_url")
	}
	hasProxy := cfg.Models.Proxy.BaseURL != ""

	primaryProvider, primaryModel, err := parseModelRef(cfg.Models.Primary, reg, hasProxy)
	if err != nil {
		return nil, fmt.Errorf("models.primary: %w", err)
	}

	byProvider := make(map[string][]string)
	order := []string{primaryProvider.Name()}
	byProvider[primaryProvider.Name()] = []string{primaryModel}

	for _, ref := range cfg.Models.Fallbacks {
		prov, model, err := parseModelRef(ref, reg, hasProxy)
		if err != nil {
			return nil, fmt.Errorf("models.fallbacks: %w", err)
		}
		name := prov.Name()
		if _, seen := byProvider[name]; !seen {
			order = append(order, name)
			byProvider[name] = nil
		}
		byProvider[name] = append(byProvider[name], model)
	}

	var fallbacks []providers.FallbackTarget
	for _, name := range order[1:] {
		fallbacks = append(fallbacks, providers.FallbackTarget{
			Provider: reg[name],
			Models:   byProvider[name],
		})
	}

	return providers.NewChain(primaryProvider, byProvider[order[0]], fallbacks...), nil
}
