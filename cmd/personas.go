package cmd

import (
	"github.com/loomgate/loomgate/internal/config"
	"github.com/loomgate/loomgate/internal/providers"
	"github.com/loomgate/loomgate/internal/router"
)

// buildPersonas converts the on-disk persona list into router.Persona
// values, a direct field-for-field mapping (config.PersonaConfig mirrors
// router.Persona's shape exactly).
func buildPersonas(cfg *config.Config) []*router.Persona {
	personas := make([]*router.Persona, 0, len(cfg.Router.Personas))
	for _, p := range cfg.Router.Personas {
		personas = append(personas, &router.Persona{
			Name:            p.Name,
			ChannelIDs:      p.ChannelIDs,
			Workspace:       config.ExpandHome(p.Workspace),
			PromptFiles:     p.PromptFiles,
			Model:           p.Model,
			BaseURL:         p.BaseURL,
			Temperature:     p.Temperature,
			MaxTokens:       p.MaxTokens,
			RequireMention:  p.RequireMention,
			AuthorizedUsers: p.AuthorizedUsers,
		})
	}
	return personas
}

// buildChainFactory returns a router.ChainFactory that builds a dedicated
// ProviderChain for personas pinning their own base_url: an ad hoc
// OpenAI-compatible provider pointed at that base_url, using the persona's
// pinned model as its only entry. The chain has no fallback targets: the
// global models.fallbacks are not tried for such a persona, and a failure of
// its one model is the chain's final error. Router.ChainFor only calls this when a persona's base_url is
// non-empty, so there's no fallback-to-shared-chain case to handle here.
func buildChainFactory() router.ChainFactory {
	return func(p *router.Persona) *providers.ProviderChain {
		prov := providers.NewOpenAIProvider(p.Name, "", p.BaseURL, p.Model)
		return providers.NewChain(prov, []string{p.Model})
	}
}
