package bus

import "context"

// InboundMessage represents a message received from a channel (Telegram, Discord, etc.)
type InboundMessage struct {
	Channel  string            `json:"channel"`
	SenderID string            `json:"sender_id"`
	ChatID   string            `json:"chat_id"`
	Content  string            `json:"content"`
	PeerKind string            `json:"peer_kind,omitempty"` // "direct" or "group"
	UserID   string            `json:"user_id,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// OutboundMessage represents a message to be sent to a channel.
type OutboundMessage struct {
	Channel  string            `json:"channel"`
	ChatID   string            `json:"chat_id"`
	Content  string            `json:"content"`
	Media    []MediaAttachment `json:"media,omitempty"`    // optional media attachments
	Metadata map[string]string `json:"metadata,omitempty"` // channel-specific metadata
}

// MediaAttachment represents a media file to be sent with a message.
type MediaAttachment struct {
	URL         string `json:"url"`                    // file path or URL
	ContentType string `json:"content_type,omitempty"` // MIME type (e.g. "image/jpeg", "video/mp4")
	Caption     string `json:"caption,omitempty"`       // optional caption for media
}

// Event represents a named event that Broadcast hands to every subscribed
// EventHandler in the process.
type Event struct {
	Name    string      `json:"name"`              // event name (e.g. "agent", "chat", "health")
	Payload interface{} `json:"payload,omitempty"`
}

// MessageHandler handles an inbound message from a specific channel.
type MessageHandler func(InboundMessage) error

// EventHandler handles a broadcast event.
type EventHandler func(Event)

// EventPublisher abstracts event broadcast + subscription.
// MessageBus implements it; callers can depend on this interface instead.
type EventPublisher interface {
	Subscribe(id string, handler EventHandler)
	Unsubscribe(id string)
	Broadcast(event Event)
}

// MessageRouter abstracts inbound/outbound message routing between channels and the agent runtime.
type MessageRouter interface {
	PublishInbound(msg InboundMessage)
	ConsumeInbound(ctx context.Context) (InboundMessage, bool)
	PublishOutbound(msg OutboundMessage)
	SubscribeOutbound(ctx context.Context) (OutboundMessage, bool)
}
