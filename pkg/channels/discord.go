package channels

import (
	"context"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/tinyland-inc/aobridge/pkg/bus"
	"github.com/tinyland-inc/aobridge/pkg/logger"
)

const discordMaxMessageLength = 2000

type DiscordConfig struct {
	Token     string
	ChannelID string
	AllowFrom []string
}

// DiscordChannel bridges a single Discord text channel.
type DiscordChannel struct {
	*BaseChannel
	session   *discordgo.Session
	channelID string

	mu        sync.RWMutex
	ctx       context.Context
	botUserID string
}

func NewDiscordChannel(cfg DiscordConfig, mb *bus.MessageBus) (*DiscordChannel, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentGuilds |
		discordgo.IntentGuildMessages |
		discordgo.IntentMessageContent

	base := NewBaseChannel("discord", mb, cfg.AllowFrom, WithMaxMessageLength(discordMaxMessageLength))
	return &DiscordChannel{
		BaseChannel: base,
		session:     session,
		channelID:   cfg.ChannelID,
		ctx:         context.Background(),
	}, nil
}

func (c *DiscordChannel) Start(ctx context.Context) error {
	logger.InfoC("discord", "Starting Discord bot")

	c.mu.Lock()
	c.ctx = ctx
	c.mu.Unlock()

	c.session.AddHandler(c.handleMessage)
	if err := c.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}

	botUser, err := c.session.User("@me")
	if err != nil {
		c.session.Close()
		return fmt.Errorf("failed to get bot user: %w", err)
	}

	c.mu.Lock()
	c.botUserID = botUser.ID
	c.mu.Unlock()
	c.SetRunning(true)

	logger.InfoCF("discord", "Discord bot connected", map[string]any{
		"username":   botUser.Username,
		"user_id":    botUser.ID,
		"channel_id": c.channelID,
	})
	return nil
}

func (c *DiscordChannel) Stop(ctx context.Context) error {
	logger.InfoC("discord", "Stopping Discord bot")
	c.SetRunning(false)
	if err := c.session.Close(); err != nil {
		return fmt.Errorf("failed to close discord session: %w", err)
	}
	return nil
}

// Send posts msg to its chat, defaulting to the bridged channel.
func (c *DiscordChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("discord bot not running")
	}
	chatID := msg.ChatID
	if chatID == "" {
		chatID = c.channelID
	}
	if msg.Content == "" {
		return nil
	}

	if _, err := c.session.ChannelMessageSend(chatID, msg.Content, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to send discord message: %w", err)
	}
	return nil
}

func (c *DiscordChannel) handleMessage(_ *discordgo.Session, m *discordgo.MessageCreate) {
	c.mu.RLock()
	ctx, self := c.ctx, c.botUserID
	c.mu.RUnlock()

	ev, ok := chatEventFromMessage(m.Message, c.channelID, self)
	if !ok {
		return
	}
	logger.DebugCF("discord", "Received message", map[string]any{
		"author":     ev.AuthorName,
		"provenance": ev.Provenance.String(),
	})
	c.HandleMessage(ctx, ev)
}

// chatEventFromMessage converts a Discord message from the bridged channel.
// Messages from bots, the bridge's own included, are marked as relayed so
// the bridge never loops them back.
func chatEventFromMessage(m *discordgo.Message, channelID, selfID string) (bus.ChatEvent, bool) {
	if m == nil || m.Author == nil {
		return bus.ChatEvent{}, false
	}
	if channelID != "" && m.ChannelID != channelID {
		return bus.ChatEvent{}, false
	}

	prov := bus.UserOriginated
	if m.Author.Bot || (selfID != "" && m.Author.ID == selfID) {
		prov = bus.RelayOriginated
	}
	return bus.ChatEvent{
		MessageID:  m.ID,
		AuthorID:   m.Author.ID,
		AuthorName: m.Author.Username,
		ChannelID:  m.ChannelID,
		Content:    m.Content,
		Provenance: prov,
	}, true
}
