// Package tokencount estimates LLM token usage for messages. It prefers a
// BPE-style encoder when one is wired in and otherwise falls back to a
// character-based approximation.
package tokencount

import (
	"encoding/json"

	"github.com/loomgate/loomgate/internal/chatmodel"
)

// messageOverhead approximates the per-message framing cost (role tag,
// separators) that every chat-completion wire format pays, mirroring
// plug/sessions/compactor.py's count_message_tokens.
const messageOverhead = 4

// Encoder counts tokens in a raw string. The stdlib fallback below
// implements it directly; a real BPE tokenizer can be substituted by
// anything satisfying this one-method interface.
type Encoder interface {
	Count(text string) int
}

// charFallbackEncoder implements the ceil(len/4) approximation spec §4.9
// requires when no BPE encoder is available.
type charFallbackEncoder struct{}

func (charFallbackEncoder) Count(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

// Counter estimates token counts for messages using a pluggable Encoder.
type Counter struct {
	enc Encoder
}

// New returns a Counter using the stdlib character-based fallback encoder.
// No known-BPE encoder is wired into this implementation — see DESIGN.md
// for why tiktoken-equivalent libraries were not adopted from the pack.
func New() *Counter {
	return &Counter{enc: charFallbackEncoder{}}
}

// NewWithEncoder returns a Counter backed by a caller-supplied Encoder,
// letting callers plug in a real BPE tokenizer without changing call sites.
func NewWithEncoder(enc Encoder) *Counter {
	return &Counter{enc: enc}
}

// CountText estimates the token count of a raw string.
func (c *Counter) CountText(text string) int {
	return c.enc.Count(text)
}

// CountMessage estimates the token count of a full message: overhead plus
// content plus, for each tool call, its name and JSON-encoded arguments.
func (c *Counter) CountMessage(m chatmodel.Message) int {
	total := messageOverhead
	if m.Content != "" {
		total += c.enc.Count(m.Content)
	}
	if m.ToolName != "" {
		total += c.enc.Count(m.ToolName)
	}
	for _, tc := range m.ToolCalls {
		total += c.enc.Count(tc.Name)
		if b, err := json.Marshal(tc.Arguments); err == nil {
			total += c.enc.Count(string(b))
		}
	}
	return total
}

// CountMessages sums CountMessage over a slice, used for rough context-window
// estimates outside the durable per-message token_count bookkeeping.
func (c *Counter) CountMessages(msgs []chatmodel.Message) int {
	total := 0
	for _, m := range msgs {
		total += c.CountMessage(m)
	}
	return total
}
