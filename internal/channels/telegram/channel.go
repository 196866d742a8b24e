// Package telegram implements the second concrete ChatPlatform capability
// (spec §6), proving the interface isn't Discord-shaped: long-polling via
// the Bot API instead of a gateway connection, admission-filtered the same
// way (DM open/allowlist/disabled, group open/allowlist/disabled with
// optional @mention gating).
//
// Adapted from the teacher's internal/channels/telegram, trimmed of its
// slash-command menu, media/voice-note handling, streaming draft preview,
// pairing flow, and forum-topic thread routing — SPEC_FULL.md's Telegram
// adapter only needs to move plain text in and out.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/loomgate/loomgate/internal/bus"
	"github.com/loomgate/loomgate/internal/channels"
	"github.com/loomgate/loomgate/internal/chunker"
	"github.com/loomgate/loomgate/internal/config"
)

// Channel connects to Telegram via the Bot API using long polling.
type Channel struct {
	*channels.BaseChannel
	bot        *telego.Bot
	config     config.TelegramConfig
	botUserID  int64
	pollCancel context.CancelFunc
	pollDone   chan struct{}
}

// New creates a Telegram channel from config.
func New(cfg config.TelegramConfig, msgBus *bus.MessageBus) (*Channel, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram: token is required")
	}

	bot, err := telego.NewBot(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram: create bot: %w", err)
	}

	base := channels.NewBaseChannel("telegram", msgBus, cfg.AllowFrom)

	return &Channel{
		BaseChannel: base,
		bot:         bot,
		config:      cfg,
	}, nil
}

// Start begins long polling for Telegram updates.
func (c *Channel) Start(ctx context.Context) error {
	pollCtx, cancel := context.WithCancel(ctx)
	c.pollCancel = cancel
	c.pollDone = make(chan struct{})

	updates, err := c.bot.UpdatesViaLongPolling(pollCtx, &telego.GetUpdatesParams{
		Timeout:        30,
		AllowedUpdates: []string{"message"},
	})
	if err != nil {
		cancel()
		return fmt.Errorf("telegram: start long polling: %w", err)
	}

	if me, err := c.bot.GetMe(pollCtx); err == nil {
		c.botUserID = me.ID
	}

	c.SetRunning(true)
	slog.Info("telegram bot connected")

	go func() {
		defer close(c.pollDone)
		for {
			select {
			case <-pollCtx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message != nil {
					c.handleMessage(pollCtx, update.Message)
				}
			}
		}
	}()

	return nil
}

// Stop cancels long polling and waits for the goroutine to exit so the next
// getUpdates call doesn't race this one for the Telegram-side lock.
func (c *Channel) Stop(_ context.Context) error {
	c.SetRunning(false)
	if c.pollCancel != nil {
		c.pollCancel()
	}
	if c.pollDone != nil {
		select {
		case <-c.pollDone:
		case <-time.After(10 * time.Second):
			slog.Warn("telegram polling goroutine did not exit within timeout")
		}
	}
	return nil
}

func (c *Channel) handleMessage(ctx context.Context, message *telego.Message) {
	if message.From == nil || message.From.ID == c.botUserID || message.From.IsBot {
		return
	}
	text := strings.TrimSpace(message.Text)
	if text == "" {
		return
	}

	senderID := fmt.Sprintf("%d", message.From.ID)
	chatID := fmt.Sprintf("%d", message.Chat.ID)
	isGroup := message.Chat.Type == "group" || message.Chat.Type == "supergroup"
	mentioned := mentionsBot(message, c.bot.Username())

	if !isGroup {
		if !c.CheckDMPolicy(c.config.DMPolicy, senderID) {
			return
		}
		c.HandleMessage(senderID, chatID, stripMention(text, c.bot.Username()), "direct", map[string]string{
			"username": message.From.Username,
		})
		return
	}

	groupAllowed := c.config.GroupPolicy != "disabled" && (c.config.GroupPolicy != "allowlist" || c.IsAllowed(chatID))
	if !c.CheckGroupPolicy(groupAllowed, c.config.RequireMention, mentioned) {
		return
	}
	c.HandleMessage(senderID, chatID, stripMention(text, c.bot.Username()), "group", map[string]string{
		"username":  message.From.Username,
		"chat_id":   chatID,
		"mentioned": strconv.FormatBool(mentioned),
	})
}

// Send delivers an outbound reply, splitting it into Telegram-sized chunks.
func (c *Channel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	var chatID int64
	if _, err := fmt.Sscanf(msg.ChatID, "%d", &chatID); err != nil {
		return fmt.Errorf("telegram: invalid chat id %q: %w", msg.ChatID, err)
	}

	for _, chunk := range chunker.Split(msg.Content, chunker.DefaultMaxLength) {
		if _, err := c.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), chunk)); err != nil {
			return fmt.Errorf("telegram: send message: %w", err)
		}
	}
	return nil
}

func mentionsBot(message *telego.Message, username string) bool {
	if username == "" || message.Entities == nil {
		return false
	}
	needle := "@" + username
	for _, e := range message.Entities {
		if e.Type == "mention" {
			offset, length := e.Offset, e.Length
			if offset+length <= len(message.Text) && message.Text[offset:offset+length] == needle {
				return true
			}
		}
	}
	return false
}

func stripMention(text, username string) string {
	if username == "" {
		return text
	}
	return strings.TrimSpace(strings.ReplaceAll(text, "@"+username, ""))
}
