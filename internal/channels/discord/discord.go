// Package discord implements the ChatPlatform capability (spec §6) over the
// Discord gateway: DM-open-or-allowlisted admission, guild-whitelist with
// optional @mention gating in groups, and chunked outbound replies.
//
// Adapted from the teacher's internal/channels/discord/discord.go, trimmed
// of its pairing flow, typing-indicator controller, "Thinking..." placeholder
// editing, and group-history prefetch — none of those have a place in
// SPEC_FULL.md's admission filter or orchestrator turn loop, which receives
// the raw inbound message and manages its own history via internal/store.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/loomgate/loomgate/internal/bus"
	"github.com/loomgate/loomgate/internal/channels"
	"github.com/loomgate/loomgate/internal/chunker"
	"github.com/loomgate/loomgate/internal/config"
)

// Channel connects to Discord via the Bot API using gateway events.
type Channel struct {
	*channels.BaseChannel
	session   *discordgo.Session
	config    config.DiscordConfig
	guildIDs  map[string]bool
	botUserID string
	mu        sync.RWMutex
}

// New creates a Discord channel from config.
func New(cfg config.DiscordConfig, msgBus *bus.MessageBus) (*Channel, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("discord: token is required")
	}

	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	guildIDs := make(map[string]bool, len(cfg.GuildIDs))
	for _, id := range cfg.GuildIDs {
		guildIDs[id] = true
	}

	base := channels.NewBaseChannel("discord", msgBus, cfg.DMAllowlist)

	return &Channel{
		BaseChannel: base,
		session:     session,
		config:      cfg,
		guildIDs:    guildIDs,
	}, nil
}

// Start opens the gateway connection and registers the message handler.
func (c *Channel) Start(ctx context.Context) error {
	c.session.AddHandler(c.onMessageCreate)
	c.session.AddHandler(c.onReady)

	if err := c.session.Open(); err != nil {
		return fmt.Errorf("discord: open session: %w", err)
	}
	c.SetRunning(true)

	if c.config.StatusMessage != "" {
		_ = c.session.UpdateGameStatus(0, c.config.StatusMessage)
	}
	return nil
}

// Stop closes the gateway connection.
func (c *Channel) Stop(ctx context.Context) error {
	c.SetRunning(false)
	return c.session.Close()
}

func (c *Channel) onReady(s *discordgo.Session, r *discordgo.Ready) {
	c.mu.Lock()
	c.botUserID = r.User.ID
	c.mu.Unlock()
	slog.Info("discord channel ready", "bot_user_id", r.User.ID)
}

func (c *Channel) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	c.mu.RLock()
	botUserID := c.botUserID
	c.mu.RUnlock()

	if m.Author == nil || m.Author.ID == botUserID || m.Author.Bot {
		return
	}

	content := strings.TrimSpace(m.Content)
	if content == "" {
		return
	}

	mentioned := mentionsUser(m.Mentions, botUserID)

	if m.GuildID == "" {
		if !c.CheckDMPolicy(c.config.DMPolicy, m.Author.ID) {
			return
		}
		c.HandleMessage(m.Author.ID, m.ChannelID, stripMention(content, botUserID), "direct", map[string]string{
			"username": m.Author.Username,
		})
		return
	}

	guildAllowed := len(c.guildIDs) == 0 || c.guildIDs[m.GuildID]
	if !c.CheckGroupPolicy(guildAllowed, c.config.RequireMention, mentioned) {
		return
	}
	c.HandleMessage(m.Author.ID, m.ChannelID, stripMention(content, botUserID), "group", map[string]string{
		"username":  m.Author.Username,
		"guild_id":  m.GuildID,
		"mentioned": strconv.FormatBool(mentioned),
	})
}

// Send delivers an outbound reply, splitting it into Discord-sized chunks.
func (c *Channel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	maxLen := c.config.MaxMessageLength
	if maxLen <= 0 {
		maxLen = chunker.DefaultMaxLength
	}
	for _, chunk := range chunker.Split(msg.Content, maxLen) {
		if _, err := c.session.ChannelMessageSend(msg.ChatID, chunk); err != nil {
			return fmt.Errorf("discord: send message: %w", err)
		}
	}
	return nil
}

func mentionsUser(mentions []*discordgo.User, userID string) bool {
	if userID == "" {
		return false
	}
	for _, u := range mentions {
		if u.ID == userID {
			return true
		}
	}
	return false
}

func stripMention(content, userID string) string {
	if userID == "" {
		return content
	}
	content = strings.ReplaceAll(content, fmt.Sprintf("<@%s>", userID), "")
	content = strings.ReplaceAll(content, fmt.Sprintf("<@!%s>", userID), "")
	return strings.TrimSpace(content)
}
