package channels

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/tinyland-inc/aobridge/pkg/bus"
	"github.com/tinyland-inc/aobridge/pkg/logger"
)

type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Send(ctx context.Context, msg bus.OutboundMessage) error
	IsRunning() bool
	IsAllowed(senderID string) bool
}

// BaseChannelOption is a functional option for configuring a BaseChannel.
type BaseChannelOption func(*BaseChannel)

// WithMaxMessageLength sets the maximum message length (in runes) for a channel.
// Messages exceeding this limit are split by the Manager.
// A value of 0 means no limit.
func WithMaxMessageLength(n int) BaseChannelOption {
	return func(c *BaseChannel) { c.maxMessageLength = n }
}

// MessageLengthProvider is an opt-in interface that channels implement
// to advertise their maximum message length.
type MessageLengthProvider interface {
	MaxMessageLength() int
}

type BaseChannel struct {
	bus              *bus.MessageBus
	running          atomic.Bool
	name             string
	allowList        []string
	maxMessageLength int
}

func NewBaseChannel(name string, mb *bus.MessageBus, allowList []string, opts ...BaseChannelOption) *BaseChannel {
	bc := &BaseChannel{
		bus:       mb,
		name:      name,
		allowList: allowList,
	}
	for _, opt := range opts {
		opt(bc)
	}
	return bc
}

func (c *BaseChannel) MaxMessageLength() int {
	return c.maxMessageLength
}

func (c *BaseChannel) Name() string {
	return c.name
}

func (c *BaseChannel) IsRunning() bool {
	return c.running.Load()
}

// IsAllowed matches senderID against the allow-list. Both sides may use the
// compound "id|username" form; an empty list allows everyone.
func (c *BaseChannel) IsAllowed(senderID string) bool {
	if len(c.allowList) == 0 {
		return true
	}

	idPart, userPart := splitCompound(senderID)
	for _, allowed := range c.allowList {
		trimmed := strings.TrimPrefix(allowed, "@")
		allowedID, allowedUser := splitCompound(trimmed)

		if senderID == trimmed ||
			idPart == trimmed ||
			idPart == allowedID ||
			(allowedUser != "" && senderID == allowedUser) ||
			(userPart != "" && (userPart == trimmed || userPart == allowedUser)) {
			return true
		}
	}
	return false
}

func splitCompound(s string) (id, user string) {
	if idx := strings.Index(s, "|"); idx > 0 {
		return s[:idx], s[idx+1:]
	}
	return s, ""
}

// HandleMessage publishes a chat event for the bridge. Senders outside the
// allow-list are dropped here.
func (c *BaseChannel) HandleMessage(ctx context.Context, ev bus.ChatEvent) {
	if !c.IsAllowed(ev.AuthorID + "|" + ev.AuthorName) {
		logger.DebugCF(c.name, "Sender not in allow-list", map[string]any{"author_id": ev.AuthorID})
		return
	}
	if err := c.bus.PublishEvent(ctx, ev); err != nil {
		logger.WarnCF(c.name, "Failed to publish chat event", map[string]any{"error": err.Error()})
	}
}

func (c *BaseChannel) SetRunning(running bool) {
	c.running.Store(running)
}
