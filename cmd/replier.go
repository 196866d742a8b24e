package cmd

import (
	"context"
	"strings"

	"github.com/loomgate/loomgate/internal/bus"
	"github.com/loomgate/loomgate/internal/channels"
)

// busReplier implements orchestrator.Replier by decoding a location back
// into a channel + chatID and publishing the reply onto the bus for
// channels.Manager's outbound dispatcher to route.
//
// subagent:* and cron:* locations (internal channels, see
// channels.InternalChannels) have no real chatID to reply to — their
// results are delivered separately by agentmanager.Deliverer and
// scheduler.Executor, so Reply is a no-op for those.
type busReplier struct {
	bus *bus.MessageBus
}

func newBusReplier(b *bus.MessageBus) *busReplier {
	return &busReplier{bus: b}
}

// Reply implements orchestrator.Replier.
func (r *busReplier) Reply(ctx context.Context, location, text string, isFirst bool) error {
	channel, chatID, ok := splitLocation(location)
	if !ok {
		return nil
	}
	if channels.IsInternalChannel(channel) {
		return nil
	}
	r.bus.PublishOutbound(bus.OutboundMessage{
		Channel: channel,
		ChatID:  chatID,
		Content: text,
	})
	return nil
}

// splitLocation decodes a {channel}:{direct|group}:{chatID} location (or
// its forum-topic variant) back into a channel name and chatID.
func splitLocation(location string) (channel, chatID string, ok bool) {
	parts := strings.SplitN(location, ":", 3)
	if len(parts) < 3 {
		return "", "", false
	}
	return parts[0], parts[2], true
}
