// Package router maps a location's channel to an agent persona and, from
// there, to the ProviderChain and system prompt that persona should use.
// Grounded on original_source/plug/router.py's AgentPersona/AgentRouter and
// the teacher's internal/agent/resolver.go caching-by-name pattern,
// generalized down to spec §4.4's simpler single-tier contract (no
// teams/delegation machinery).
package router

// Persona is a named agent persona bound to specific channel locations.
// Field shape mirrors original_source/plug/router.py's AgentPersona
// dataclass.
type Persona struct {
	Name            string
	ChannelIDs      []string
	Workspace       string
	PromptFiles     []string // defaults to ["AGENTS.md"] if empty
	Model           string   // "" = use chain's default model
	BaseURL         string   // "" = use the shared provider's base URL
	Temperature     float64
	MaxTokens       int
	RequireMention  *bool    // nil = use global config default
	AuthorizedUsers []string // nil = global config; []string{} = webhooks only
}

func (p *Persona) promptFiles() []string {
	if len(p.PromptFiles) == 0 {
		return []string{"AGENTS.md"}
	}
	return p.PromptFiles
}
