// Package orchestrator implements the main per-turn agent loop: persist the
// inbound message, assemble context, run a bounded tool-calling round trip
// against a ProviderChain, persist every turn, and reply.
//
// Grounded on internal/agent/loop.go's runLoop (iteration loop shape,
// sequential tool-call message bookkeeping, final-content fallback) adapted
// to call store.SessionStore/compaction.Compactor/providers.ProviderChain/
// router.Router instead of the teacher's in-memory SessionData and single
// hardcoded provider.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/loomgate/loomgate/internal/chatmodel"
	"github.com/loomgate/loomgate/internal/chunker"
	"github.com/loomgate/loomgate/internal/compaction"
	"github.com/loomgate/loomgate/internal/providers"
	"github.com/loomgate/loomgate/internal/router"
	"github.com/loomgate/loomgate/internal/store"
	"github.com/loomgate/loomgate/internal/tokencount"
	"github.com/loomgate/loomgate/internal/tracing"
)

// DefaultMaxToolRounds is spec §6's agent.max_tool_rounds default.
const DefaultMaxToolRounds = 25

const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 4096
	interChunkDelay    = 500 * time.Millisecond
)

// ToolExecutor is the external tool-executor capability (spec §4.5): given a
// tool name and parsed arguments, return the string persisted as the
// tool-result message. isError only affects logging, never the persisted
// content.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, arguments map[string]any) (result string, isError bool)
}

// Replier delivers one chunk of a reply to a location. isFirst marks the
// chunk that should be sent as a reply-with-reference (spec §4.5 response
// delivery); later chunks are plain sends.
type Replier interface {
	Reply(ctx context.Context, location, text string, isFirst bool) error
}

// ReportBackTarget names one "executive" location's side-channel webhook
// (spec §4.5's report-back side channel, resolved to be config-driven).
type ReportBackTarget struct {
	Label      string
	WebhookURL string
}

// ReportBackNotifier dispatches a report-back summary to a target's webhook.
type ReportBackNotifier interface {
	Notify(ctx context.Context, target ReportBackTarget, location, summary string) error
}

// Orchestrator implements spec §4.5.
type Orchestrator struct {
	sessions   store.SessionStore
	compactor  *compaction.Compactor
	defaultChain *providers.ProviderChain
	router     *router.Router
	tools      ToolExecutor
	toolDefs   []providers.ToolDefinition
	replier    Replier
	counter    *tokencount.Counter

	maxToolRounds      int
	continuationNudge  bool
	globalSystemPrompt string
	chunkLength        int

	reportBack map[string]ReportBackTarget
	notifier   ReportBackNotifier

	tracer tracing.Collector

	mu         sync.Mutex
	inProgress map[string]struct{}

	log *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMaxToolRounds overrides DefaultMaxToolRounds.
func WithMaxToolRounds(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxToolRounds = n
		}
	}
}

// WithContinuationNudge enables the off-by-default continuation nudge.
func WithContinuationNudge(enabled bool) Option {
	return func(o *Orchestrator) { o.continuationNudge = enabled }
}

// WithGlobalSystemPrompt sets the system prompt used when no persona matches
// a location.
func WithGlobalSystemPrompt(prompt string) Option {
	return func(o *Orchestrator) { o.globalSystemPrompt = prompt }
}

// WithChunkLength overrides chunker.DefaultMaxLength.
func WithChunkLength(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.chunkLength = n
		}
	}
}

// WithReportBack wires the executive report-back side channel: a static
// {location -> target} mapping plus the notifier that actually posts.
func WithReportBack(targets map[string]ReportBackTarget, notifier ReportBackNotifier) Option {
	return func(o *Orchestrator) {
		o.reportBack = targets
		o.notifier = notifier
	}
}

// WithTracer installs the span collector a turn's "turn"/"tool_call" spans
// emit to (the ProviderChain emits its own "llm_call" spans directly, pulled
// off the same context). Omitting this option leaves tracing inactive.
func WithTracer(collector tracing.Collector) Option {
	return func(o *Orchestrator) { o.tracer = collector }
}

// New builds an Orchestrator.
func New(
	sessions store.SessionStore,
	compactor *compaction.Compactor,
	defaultChain *providers.ProviderChain,
	rtr *router.Router,
	tools ToolExecutor,
	toolDefs []providers.ToolDefinition,
	replier Replier,
	counter *tokencount.Counter,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		sessions:           sessions,
		compactor:          compactor,
		defaultChain:       defaultChain,
		router:             rtr,
		tools:              tools,
		toolDefs:           toolDefs,
		replier:            replier,
		counter:            counter,
		maxToolRounds:      DefaultMaxToolRounds,
		globalSystemPrompt: "You are a helpful assistant.",
		chunkLength:        chunker.DefaultMaxLength,
		inProgress:         make(map[string]struct{}),
		log:                slog.Default().With("component", "orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// acquire claims location for the duration of one turn. Returns false if a
// turn for this location is already in progress (spec §4.5's concurrency
// gate: drop, don't queue).
func (o *Orchestrator) acquire(location string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inProgress[location]; busy {
		return false
	}
	o.inProgress[location] = struct{}{}
	return true
}

func (o *Orchestrator) release(location string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inProgress, location)
}

// HandleMessage runs one inbound message through the full orchestrator
// contract and returns the final text that was delivered (empty if the
// message was dropped by the concurrency gate).
func (o *Orchestrator) HandleMessage(ctx context.Context, location, message string) (result string, err error) {
	if !o.acquire(location) {
		o.log.Debug("dropping message: turn already in progress", "location", location)
		return "", nil
	}
	defer o.release(location)

	if o.tracer != nil {
		ctx = tracing.WithCollector(ctx, o.tracer)
		ctx = tracing.WithTraceID(ctx, uuid.Nil)
	}
	var turnSpan *tracing.Active
	ctx, turnSpan = tracing.Start(ctx, "turn", location)
	defer func() { turnSpan.End(err) }()

	if err = o.persist(ctx, location, chatmodel.NewUser(message)); err != nil {
		return "", fmt.Errorf("orchestrator: persist user message: %w", err)
	}

	if _, err := o.compactor.MaybeCompact(ctx, location); err != nil {
		o.log.Warn("compaction failed", "location", location, "error", err)
	}

	persona := o.router.Route(location)

	chain := o.defaultChain
	systemPrompt := o.globalSystemPrompt
	model := ""
	temperature := defaultTemperature
	maxTokens := defaultMaxTokens
	if persona != nil {
		chain = o.router.ChainFor(persona)
		systemPrompt = o.router.SystemPromptFor(ctx, persona)
		model = persona.Model
		if persona.Temperature > 0 {
			temperature = persona.Temperature
		}
		if persona.MaxTokens > 0 {
			maxTokens = persona.MaxTokens
		}
	}

	stored, err := o.sessions.Messages(ctx, location, false)
	if err != nil {
		return "", fmt.Errorf("orchestrator: load messages: %w", err)
	}

	conversation := make([]chatmodel.Message, 0, len(stored)+1)
	conversation = append(conversation, chatmodel.NewSystem(systemPrompt))
	for _, sm := range stored {
		conversation = append(conversation, sm.Message)
	}

	finalContent, err := o.runRounds(ctx, conversation, chain, model, temperature, maxTokens, location)
	if err != nil {
		return "", err
	}

	if err := o.deliver(ctx, location, finalContent); err != nil {
		o.log.Warn("delivery failed", "location", location, "error", err)
	}

	o.maybeReportBack(ctx, location, finalContent)

	return finalContent, nil
}

func (o *Orchestrator) runRounds(ctx context.Context, conversation []chatmodel.Message, chain *providers.ProviderChain, model string, temperature float64, maxTokens int, location string) (string, error) {
	for round := 1; round <= o.maxToolRounds; round++ {
		req := providers.ChatRequest{
			Messages:    conversation,
			Tools:       o.toolDefs,
			Model:       model,
			Temperature: temperature,
			MaxTokens:   maxTokens,
		}

		resp, err := chain.Chat(ctx, req)
		if err != nil {
			return "", fmt.Errorf("orchestrator: provider chat (round %d): %w", round, err)
		}

		assistantMsg := chatmodel.NewAssistant(resp.Content, resp.ToolCalls)
		if err := o.persist(ctx, location, assistantMsg); err != nil {
			return "", fmt.Errorf("orchestrator: persist assistant message: %w", err)
		}
		conversation = append(conversation, assistantMsg)

		if len(resp.ToolCalls) == 0 {
			roundsLeft := o.maxToolRounds - round
			if o.continuationNudge && roundsLeft >= 2 && looksLikeContinuation(resp.Content) {
				nudge := chatmodel.NewUser("Use your tools now.")
				if err := o.persist(ctx, location, nudge); err != nil {
					return "", fmt.Errorf("orchestrator: persist nudge: %w", err)
				}
				conversation = append(conversation, nudge)
				continue
			}
			return resp.Content, nil
		}

		for _, tc := range resp.ToolCalls {
			toolCtx, toolSpan := tracing.Start(ctx, "tool_call", tc.Name)
			result, isError := o.tools.Execute(toolCtx, tc.Name, tc.Arguments)
			var toolErr error
			if isError {
				toolErr = fmt.Errorf("%s", result)
				o.log.Warn("tool call error", "tool", tc.Name, "location", location)
			}
			toolSpan.End(toolErr)
			toolMsg := chatmodel.NewToolResult(tc.ID, tc.Name, result)
			if err := o.persist(ctx, location, toolMsg); err != nil {
				return "", fmt.Errorf("orchestrator: persist tool result: %w", err)
			}
			conversation = append(conversation, toolMsg)
		}
	}

	return "Reached maximum tool-call rounds without completing the task.", nil
}

func (o *Orchestrator) persist(ctx context.Context, location string, msg chatmodel.Message) error {
	tokens := o.counter.CountMessage(msg)
	_, err := o.sessions.Append(ctx, location, msg, tokens)
	return err
}

// deliver splits the final text and sends it chunk by chunk, the first as a
// reply-with-reference and the rest as plain sends, with inter-chunk
// backpressure (spec §4.5 response delivery).
func (o *Orchestrator) deliver(ctx context.Context, location, text string) error {
	chunks := chunker.Split(text, o.chunkLength)
	for i, chunk := range chunks {
		if err := o.replier.Reply(ctx, location, chunk, i == 0); err != nil {
			return fmt.Errorf("reply chunk %d/%d: %w", i+1, len(chunks), err)
		}
		if i < len(chunks)-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(interChunkDelay):
			}
		}
	}
	return nil
}

func (o *Orchestrator) maybeReportBack(ctx context.Context, location, finalContent string) {
	target, ok := o.reportBack[location]
	if !ok || o.notifier == nil {
		return
	}
	summary := finalContent
	if len(summary) > 1500 {
		summary = summary[:1500]
	}
	if err := o.notifier.Notify(ctx, target, location, summary); err != nil {
		o.log.Warn("report-back notify failed", "location", location, "target", target.Label, "error", err)
	}
}

// continuationPhrases are the stock self-narrating phrases spec §4.5 names
// as signals that the model announced an action instead of taking it.
var continuationPhrases = []string{"let me", "i'll now", "simultaneously"}

func looksLikeContinuation(content string) bool {
	lower := strings.ToLower(content)
	for _, phrase := range continuationPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
