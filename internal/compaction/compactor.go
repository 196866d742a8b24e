// Package compaction summarizes the oldest active messages of a session
// once its token budget is exceeded, keeping the most recent turns intact.
// Grounded on original_source/plug/sessions/compactor.py, restructured
// around internal/store's SessionStore and the teacher's
// internal/agent/loop_history.go maybeSummarize background-compaction
// shape.
package compaction

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/loomgate/loomgate/internal/chatmodel"
	"github.com/loomgate/loomgate/internal/store"
	"github.com/loomgate/loomgate/internal/tokencount"
)

// Defaults mirror original_source/plug/sessions/compactor.py's Compactor.__init__.
const (
	DefaultMaxContextTokens = 100_000
	DefaultTargetTokens     = 60_000
	maxSummaryInputChars    = 80_000
	summaryTemperature      = 0.3
	summaryMaxTokens        = 2048
)

const summaryPrefix = "[Previous conversation summary]\n"

// Summarizer is the minimal capability Compactor needs from a chat
// provider: a single-turn completion at a fixed temperature/max_tokens.
// internal/providers.ProviderChain satisfies this.
type Summarizer interface {
	Summarize(ctx context.Context, model, prompt string) (string, error)
}

// Compactor implements spec §4.2.
type Compactor struct {
	store        store.SessionStore
	summarizer   Summarizer
	counter      *tokencount.Counter
	maxContext   int
	target       int
	summaryModel string
	log          *slog.Logger
}

// Option configures a Compactor.
type Option func(*Compactor)

// WithSummaryModel pins the model used for summarization; empty uses the
// primary model (spec: "defaults to the primary model").
func WithSummaryModel(model string) Option {
	return func(c *Compactor) { c.summaryModel = model }
}

// WithBudget overrides the default max_context_tokens/target_tokens pair.
func WithBudget(maxContextTokens, targetTokens int) Option {
	return func(c *Compactor) {
		c.maxContext = maxContextTokens
		c.target = targetTokens
	}
}

// New builds a Compactor over the given session store and summarizer.
func New(sessions store.SessionStore, summarizer Summarizer, counter *tokencount.Counter, opts ...Option) *Compactor {
	c := &Compactor{
		store:      sessions,
		summarizer: summarizer,
		counter:    counter,
		maxContext: DefaultMaxContextTokens,
		target:     DefaultTargetTokens,
		log:        slog.Default().With("component", "compaction"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MaybeCompact runs the full check-and-compact algorithm for one location.
// Returns true iff compaction actually happened.
func (c *Compactor) MaybeCompact(ctx context.Context, location string) (bool, error) {
	currentTokens, err := c.store.TokenSum(ctx, location)
	if err != nil {
		return false, fmt.Errorf("compaction: token sum for %s: %w", location, err)
	}
	if currentTokens <= c.maxContext {
		return false, nil
	}

	c.log.Info("compaction needed", "location", location, "tokens", currentTokens, "max", c.maxContext)

	active, err := c.store.Messages(ctx, location, false)
	if err != nil {
		return false, fmt.Errorf("compaction: load messages for %s: %w", location, err)
	}
	if len(active) < 4 {
		return false, nil
	}

	keepFrom := len(active)
	keepTokens := 0
	for i := len(active) - 1; i >= 0; i-- {
		msgTokens := active[i].TokenCount
		if msgTokens == 0 {
			msgTokens = c.counter.CountMessage(active[i].Message)
		}
		if keepTokens+msgTokens > c.target {
			break
		}
		keepTokens += msgTokens
		keepFrom = i
	}

	if keepFrom > len(active)-2 {
		keepFrom = len(active) - 2
	}
	if keepFrom <= 0 {
		return false, nil
	}

	// Integrity adjustment: never let the kept set start on a tool result;
	// walk backward onto the assistant message that issued the tool_call.
	for keepFrom > 0 && active[keepFrom].Message.Role == chatmodel.RoleTool {
		keepFrom--
	}
	if keepFrom <= 0 {
		return false, nil
	}

	toCompact := active[:keepFrom]

	summary, err := c.summarize(ctx, toCompact)
	if err != nil {
		c.log.Warn("compaction summary failed, leaving state unchanged", "location", location, "error", err)
		return false, nil
	}
	if summary == "" {
		return false, nil
	}

	compactUpTo := active[keepFrom-1].ID
	marked, err := c.store.MarkCompacted(ctx, location, compactUpTo)
	if err != nil {
		return false, fmt.Errorf("compaction: mark_compacted for %s: %w", location, err)
	}

	summaryMsg := chatmodel.NewSystem(summaryPrefix + summary)
	summaryTokens := c.counter.CountMessage(summaryMsg)
	if _, err := c.store.Append(ctx, location, summaryMsg, summaryTokens); err != nil {
		return false, fmt.Errorf("compaction: append summary for %s: %w", location, err)
	}

	c.log.Info("compacted session",
		"location", location,
		"messages_summarized", marked,
		"messages_kept", len(active)-keepFrom,
		"summary_tokens", summaryTokens,
	)
	return true, nil
}

func (c *Compactor) summarize(ctx context.Context, messages []store.StoredMessage) (string, error) {
	var b strings.Builder
	for i, m := range messages {
		if i > 0 {
			b.WriteByte('\n')
		}
		prefix := strings.ToUpper(string(m.Message.Role))
		if m.Message.ToolName != "" {
			prefix += " (" + m.Message.ToolName + ")"
		}
		switch {
		case m.Message.Content != "":
			fmt.Fprintf(&b, "[%s]: %s", prefix, m.Message.Content)
		case len(m.Message.ToolCalls) > 0:
			names := make([]string, len(m.Message.ToolCalls))
			for j, tc := range m.Message.ToolCalls {
				names[j] = tc.Name
			}
			fmt.Fprintf(&b, "[%s]: [Called tools: %s]", prefix, strings.Join(names, ", "))
		}
	}

	text := b.String()
	if len(text) > maxSummaryInputChars {
		text = text[:maxSummaryInputChars] + "\n[...truncated...]"
	}

	prompt := buildCompactionPrompt(text)
	return c.summarizer.Summarize(ctx, c.summaryModel, prompt)
}

func buildCompactionPrompt(messages string) string {
	return "You are summarizing a conversation segment for context continuity.\n\n" +
		"Summarize the following conversation messages into a concise but comprehensive summary.\n" +
		"Preserve:\n" +
		"- Key decisions and their reasoning\n" +
		"- Important facts, names, IDs, file paths, and technical details\n" +
		"- Action items and outcomes\n" +
		"- The current state of any ongoing work\n\n" +
		"Keep the summary factual and dense. No filler. Format as a structured summary.\n\n" +
		"Messages to summarize:\n---\n" + messages + "\n---\n\n" +
		"Write the summary:"
}

// SummaryTemperature and SummaryMaxTokens report the fixed sampling
// parameters for compaction summaries. ProviderChain.Summarize does not
// read them; it sets the same values (0.3, 2048) itself.
func SummaryTemperature() float64 { return summaryTemperature }
func SummaryMaxTokens() int       { return summaryMaxTokens }
