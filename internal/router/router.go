package router

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/loomgate/loomgate/internal/providers"
)

// MemoryRecall is the persistent cross-session memory capability spec §6
// names as out-of-scope to implement but in-scope to call through. No
// concrete backing store ships with this module; callers wire their own.
type MemoryRecall interface {
	Recall(ctx context.Context, persona string) (string, error)
}

// ChainFactory builds a ProviderChain for a persona that pins its own
// model/base_url, distinct from the shared default chain.
type ChainFactory func(p *Persona) *providers.ProviderChain

// Router implements spec §4.4.
type Router struct {
	channelMap map[string]*Persona
	personas   map[string]*Persona
	defaultP   *Persona

	sharedChain  *providers.ProviderChain
	chainFactory ChainFactory
	chainCache   sync.Map // persona name -> *providers.ProviderChain

	memory MemoryRecall
	log    *slog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithMemoryRecall wires the persistent cross-session memory capability
// (spec §12's supplemented persona-memory-recall feature).
func WithMemoryRecall(m MemoryRecall) Option {
	return func(r *Router) { r.memory = m }
}

// WithChainFactory sets the builder used to construct a per-persona
// ProviderChain when a persona pins a distinct base_url/model.
func WithChainFactory(f ChainFactory) Option {
	return func(r *Router) { r.chainFactory = f }
}

// New builds a Router from a persona list and an optional default persona
// name, mirroring original_source/plug/router.py's AgentRouter.from_config.
func New(personas []*Persona, defaultName string, sharedChain *providers.ProviderChain, opts ...Option) *Router {
	r := &Router{
		channelMap:  make(map[string]*Persona),
		personas:    make(map[string]*Persona),
		sharedChain: sharedChain,
		log:         slog.Default().With("component", "router"),
	}
	for _, opt := range opts {
		opt(r)
	}

	for _, p := range personas {
		r.personas[p.Name] = p
		for _, ch := range p.ChannelIDs {
			r.channelMap[ch] = p
			r.log.Info("routing channel to persona", "channel", ch, "persona", p.Name)
		}
	}
	if defaultName != "" {
		r.defaultP = r.personas[defaultName]
	}
	return r
}

// Route returns the persona bound to location, or the configured default
// (which may be nil) if no persona claims it.
func (r *Router) Route(location string) *Persona {
	if p, ok := r.channelMap[location]; ok {
		return p
	}
	return r.defaultP
}

// RoutedChannel reports whether location is mapped to a persona. Spec §6's
// admission rule: once routing is active for a channel, only messages
// addressed to its mapped persona are accepted there.
func (r *Router) RoutedChannel(location string) bool {
	_, ok := r.channelMap[location]
	return ok
}

// Persona looks up a persona by name.
func (r *Router) Persona(name string) (*Persona, bool) {
	p, ok := r.personas[name]
	return p, ok
}

// Personas lists every configured persona.
func (r *Router) Personas() []*Persona {
	out := make([]*Persona, 0, len(r.personas))
	for _, p := range r.personas {
		out = append(out, p)
	}
	return out
}

// ChainFor returns the ProviderChain a persona should use: the shared chain
// unless the persona pins a distinct base_url, in which case a per-persona
// chain is built once (via ChainFactory) and cached.
func (r *Router) ChainFor(p *Persona) *providers.ProviderChain {
	if p == nil || p.BaseURL == "" {
		return r.sharedChain
	}
	if cached, ok := r.chainCache.Load(p.Name); ok {
		return cached.(*providers.ProviderChain)
	}
	if r.chainFactory == nil {
		return r.sharedChain
	}
	chain := r.chainFactory(p)
	actual, _ := r.chainCache.LoadOrStore(p.Name, chain)
	return actual.(*providers.ProviderChain)
}

// SystemPromptFor concatenates a persona's prompt files (joined with the
// standard separator) and, when a MemoryRecall capability is wired, appends
// a recalled-memory block — matching original_source's AgentPersona.system_prompt
// property exactly, but with the COMB store made pluggable.
func (r *Router) SystemPromptFor(ctx context.Context, p *Persona) string {
	if p == nil {
		return ""
	}

	var parts []string
	for _, fname := range p.promptFiles() {
		fpath := filepath.Join(p.Workspace, fname)
		content, err := os.ReadFile(fpath)
		if err != nil {
			r.log.Warn("persona prompt file not found", "persona", p.Name, "path", fpath)
			continue
		}
		parts = append(parts, strings.TrimSpace(string(content)))
	}

	prompt := fmt.Sprintf("You are %s.", p.Name)
	if len(parts) > 0 {
		prompt = strings.Join(parts, "\n\n---\n\n")
	}

	if r.memory != nil {
		if recalled, err := r.memory.Recall(ctx, p.Name); err == nil && recalled != "" {
			prompt = fmt.Sprintf("%s\n\n## Persistent Memory\n%s", prompt, recalled)
		} else if err != nil {
			r.log.Debug("memory recall skipped", "persona", p.Name, "error", err)
		}
	}

	return prompt
}

// Authorized reports whether userID may trigger persona p, per its
// authorized_users override (nil defers to the caller's global default).
func (p *Persona) Authorized(userID string, globalDefault bool) bool {
	if p == nil || p.AuthorizedUsers == nil {
		return globalDefault
	}
	for _, id := range p.AuthorizedUsers {
		if id == userID {
			return true
		}
	}
	return false
}
