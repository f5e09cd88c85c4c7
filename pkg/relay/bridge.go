// Package relay holds the bridge's decision logic: the chat-side handler,
// the ledger poller and the ledger submitter.
package relay

import (
	"context"
	"strings"
	"sync"

	"github.com/tinyland-inc/aobridge/pkg/bus"
	"github.com/tinyland-inc/aobridge/pkg/commands"
	"github.com/tinyland-inc/aobridge/pkg/dedup"
	"github.com/tinyland-inc/aobridge/pkg/langpref"
	"github.com/tinyland-inc/aobridge/pkg/logger"
	"github.com/tinyland-inc/aobridge/pkg/transport"
)

// LanguageResolver returns a user's language, falling back to fallback.
type LanguageResolver interface {
	Resolve(userID, fallback string) string
}

// ChatSubmitter is the slice of Submitter the chat half needs.
type ChatSubmitter interface {
	Submit(ctx context.Context, content, sender, lang string) (string, error)
}

// BridgeConfig wires the chat half together. Transport may be nil when no
// ledger half is listening.
type BridgeConfig struct {
	Bus         *bus.MessageBus
	Languages   LanguageResolver
	Window      *dedup.Window
	Interpreter *commands.Interpreter
	Submitter   ChatSubmitter
	Transport   transport.Sender
	// ChatID is the channel replies and relayed messages are posted to.
	ChatID string
}

// Bridge is the chat half. All of its handlers run on the single goroutine
// draining the bus; only command lookups run elsewhere.
type Bridge struct {
	bus       *bus.MessageBus
	langs     LanguageResolver
	window    *dedup.Window
	interp    *commands.Interpreter
	submitter ChatSubmitter
	transport transport.Sender
	chatID    string

	lookups sync.WaitGroup
}

func NewBridge(cfg BridgeConfig) *Bridge {
	return &Bridge{
		bus:       cfg.Bus,
		langs:     cfg.Languages,
		window:    cfg.Window,
		interp:    cfg.Interpreter,
		submitter: cfg.Submitter,
		transport: cfg.Transport,
		chatID:    cfg.ChatID,
	}
}

// Run consumes the bus until ctx is cancelled or the bus closes, then waits
// for in-flight lookups.
func (b *Bridge) Run(ctx context.Context) error {
	logger.InfoC("relay", "Bridge started")
	defer b.lookups.Wait()

	for {
		msg, ok := b.bus.ConsumeInbound(ctx)
		if !ok {
			logger.InfoC("relay", "Bridge stopped")
			return nil
		}
		switch {
		case msg.Event != nil:
			b.HandleChatEvent(ctx, *msg.Event)
		case msg.Envelope != nil:
			b.HandleEnvelope(ctx, *msg.Envelope)
		}
	}
}

// HandleChatEvent processes one message observed in the chat channel.
func (b *Bridge) HandleChatEvent(ctx context.Context, ev bus.ChatEvent) {
	if !bus.Relayable(ev.Provenance) {
		logger.DebugCF("relay", "Ignoring non-user chat message", map[string]any{
			"author_id":  ev.AuthorID,
			"provenance": ev.Provenance.String(),
		})
		return
	}
	if strings.TrimSpace(ev.Content) == "" {
		return
	}

	lang := b.langs.Resolve(ev.AuthorID, langpref.Default)

	if reply := b.interp.Interpret(ev.Content, lang, ev.AuthorID); reply != nil {
		b.reply(ctx, reply)
		if reply.SetLang != "" {
			// The ledger side keeps its own view of the user's language.
			if _, err := b.submitter.Submit(ctx, ev.Content, senderName(ev), reply.SetLang); err != nil {
				logger.DebugCF("relay", "Language change not propagated", map[string]any{
					"author_id": ev.AuthorID,
					"lang":      reply.SetLang,
				})
			}
		}
		return
	}

	if !b.window.ShouldForward(dedup.ToLedger, ev.Content) {
		logger.DebugCF("relay", "Dropping duplicate chat message", map[string]any{"author_id": ev.AuthorID})
		return
	}

	if b.transport != nil {
		env := bus.RelayMessage{Content: ev.Content, Lang: lang, UserID: ev.AuthorID}
		if err := b.transport.Send(ctx, env); err != nil {
			logger.DebugCF("relay", "Transport broadcast skipped", map[string]any{"error": err.Error()})
		}
	}

	if _, err := b.submitter.Submit(ctx, ev.Content, senderName(ev), lang); err != nil {
		return
	}
	b.window.MarkForwarded(dedup.ToLedger, ev.Content)
}

// HandleEnvelope processes one envelope received from the ledger half.
func (b *Bridge) HandleEnvelope(ctx context.Context, env bus.RelayMessage) {
	if env.Command == commands.SetLang {
		if reply := b.interp.Interpret(commands.SetLang+" "+env.Lang, env.Lang, env.UserID); reply != nil {
			b.reply(ctx, reply)
		}
		return
	}

	if commands.IsCommand(env.Command) {
		lang := b.langs.Resolve(env.UserID, env.Lang)
		if reply := b.interp.Interpret(env.Command, lang, env.UserID); reply != nil {
			b.reply(ctx, reply)
			return
		}
	}

	if env.Content == "" || !b.window.ShouldForward(dedup.ToChat, env.Content) {
		return
	}
	if b.say(ctx, env.Content) {
		b.window.MarkForwarded(dedup.ToChat, env.Content)
	}
}

// reply posts a command reply, running lookups off the event loop.
func (b *Bridge) reply(ctx context.Context, r *commands.Reply) {
	if !r.IsAsync() {
		b.say(ctx, r.Text)
		return
	}

	b.lookups.Add(1)
	go func() {
		defer b.lookups.Done()
		b.say(ctx, r.Resolve(ctx))
	}()
}

func (b *Bridge) say(ctx context.Context, content string) bool {
	err := b.bus.PublishOutbound(ctx, bus.OutboundMessage{ChatID: b.chatID, Content: content})
	if err != nil {
		logger.ErrorCF("relay", "Failed to queue chat message", map[string]any{"error": err.Error()})
		return false
	}
	return true
}

func senderName(ev bus.ChatEvent) string {
	if ev.AuthorName != "" {
		return ev.AuthorName
	}
	return ev.AuthorID
}
