// Package channels provides the ChatPlatform capability abstraction (spec
// §6): admission-filtered inbound delivery and outbound reply/send, with
// concrete Discord and Telegram adapters.
//
// Adapted from the teacher's internal/channels (BaseChannel, DM/group
// policy, allowlist matching), trimmed of its pairing/DB-instance/streaming
// machinery — spec §6's admission filter only needs DM-open-or-allowlisted,
// guild-whitelisted-with-mention-gating, and routed-channel mention
// suppression.
package channels

import (
	"context"
	"strings"

	"github.com/loomgate/loomgate/internal/bus"
)

// InternalChannels are system channels excluded from outbound dispatch.
var InternalChannels = map[string]bool{
	"cli":      true,
	"system":   true,
	"subagent": true,
	"cron":     true,
}

// IsInternalChannel checks if a channel name is internal.
func IsInternalChannel(name string) bool {
	return InternalChannels[name]
}

// Channel defines the interface every ChatPlatform adapter satisfies.
type Channel interface {
	// Name returns the channel identifier (e.g., "telegram", "discord").
	Name() string

	// Start begins listening for messages. Should be non-blocking after setup.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the channel.
	Stop(ctx context.Context) error

	// Send delivers an outbound message to the channel.
	Send(ctx context.Context, msg bus.OutboundMessage) error

	// IsRunning returns whether the channel is actively processing messages.
	IsRunning() bool

	// IsAllowed checks if a sender is permitted by the channel's allowlist.
	IsAllowed(senderID string) bool
}

// BaseChannel provides shared admission-filter and lifecycle bookkeeping.
// Channel implementations embed this struct.
type BaseChannel struct {
	name      string
	bus       *bus.MessageBus
	running   bool
	allowList []string
}

// NewBaseChannel creates a new BaseChannel with the given parameters.
func NewBaseChannel(name string, msgBus *bus.MessageBus, allowList []string) *BaseChannel {
	return &BaseChannel{
		name:      name,
		bus:       msgBus,
		allowList: allowList,
	}
}

// Name returns the channel name.
func (c *BaseChannel) Name() string { return c.name }

// IsRunning returns whether the channel is running.
func (c *BaseChannel) IsRunning() bool { return c.running }

// SetRunning updates the running state.
func (c *BaseChannel) SetRunning(running bool) { c.running = running }

// Bus returns the message bus reference.
func (c *BaseChannel) Bus() *bus.MessageBus { return c.bus }

// HasAllowList returns true if an allowlist is configured (non-empty).
func (c *BaseChannel) HasAllowList() bool { return len(c.allowList) > 0 }

// IsAllowed checks if a sender is permitted by the allowlist. Empty
// allowlist means all senders are allowed.
func (c *BaseChannel) IsAllowed(senderID string) bool {
	if len(c.allowList) == 0 {
		return true
	}
	for _, allowed := range c.allowList {
		if senderID == allowed || senderID == strings.TrimPrefix(allowed, "@") {
			return true
		}
	}
	return false
}

// CheckDMPolicy evaluates the DM admission filter for a sender: accept if
// policy is "open" or the sender is allowlisted; reject on "disabled" or a
// failed allowlist check.
func (c *BaseChannel) CheckDMPolicy(policy, senderID string) bool {
	switch policy {
	case "disabled":
		return false
	case "allowlist":
		return c.IsAllowed(senderID)
	default: // "open"
		return true
	}
}

// CheckGroupPolicy evaluates the group admission filter: accept if the
// group is whitelisted (guildAllowed) and, when mention gating is active,
// the bot was mentioned.
func (c *BaseChannel) CheckGroupPolicy(guildAllowed, requireMention, mentioned bool) bool {
	if !guildAllowed {
		return false
	}
	if requireMention && !mentioned {
		return false
	}
	return true
}

// HandleMessage creates an InboundMessage and publishes it to the bus.
func (c *BaseChannel) HandleMessage(senderID, chatID, content string, peerKind string, metadata map[string]string) {
	if !c.IsAllowed(senderID) {
		return
	}
	c.bus.PublishInbound(bus.InboundMessage{
		Channel:  c.name,
		SenderID: senderID,
		ChatID:   chatID,
		Content:  content,
		PeerKind: peerKind,
		UserID:   senderID,
		Metadata: metadata,
	})
}

// Truncate shortens a string to maxLen, appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
