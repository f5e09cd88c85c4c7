package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyland-inc/aobridge/pkg/bus"
	"github.com/tinyland-inc/aobridge/pkg/commands"
	"github.com/tinyland-inc/aobridge/pkg/dedup"
	"github.com/tinyland-inc/aobridge/pkg/langpref"
	"github.com/tinyland-inc/aobridge/pkg/ledger"
	"github.com/tinyland-inc/aobridge/pkg/transport"
)

type sentMessage struct {
	ProcessID string
	Tags      ledger.Tags
	Data      string
}

type fakeLedger struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (f *fakeLedger) Send(_ context.Context, processID string, tags ledger.Tags, data string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, sentMessage{ProcessID: processID, Tags: tags, Data: data})
	return "msg-id", nil
}

func (f *fakeLedger) calls() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

type fakeTransport struct {
	mu   sync.Mutex
	sent []bus.RelayMessage
	err  error
}

func (f *fakeTransport) Send(_ context.Context, msg bus.RelayMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeTransport) envelopes() []bus.RelayMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bus.RelayMessage(nil), f.sent...)
}

type failingPrices struct{}

func (failingPrices) Rate(context.Context, string) (float64, error) {
	return 0, errors.New("upstream down")
}

const bridgePID = "bridge-process-id"

type bridgeFixture struct {
	bridge    *Bridge
	bus       *bus.MessageBus
	store     *langpref.Store
	ledger    *fakeLedger
	transport *fakeTransport
}

func newBridgeFixture(t *testing.T) *bridgeFixture {
	t.Helper()

	mb := bus.NewMessageBus()
	store := langpref.NewStore("")
	window := dedup.New(dedup.DefaultTTL)
	fl := &fakeLedger{}
	ft := &fakeTransport{}
	t.Cleanup(func() {
		window.Stop()
		mb.Close()
	})

	interp := commands.NewInterpreter(store, nil, failingPrices{}, commands.WithPicker(func(int) int { return 0 }))
	b := NewBridge(BridgeConfig{
		Bus:         mb,
		Languages:   store,
		Window:      window,
		Interpreter: interp,
		Submitter:   NewSubmitter(fl, bridgePID, "", ""),
		Transport:   ft,
		ChatID:      "chan-1",
	})
	return &bridgeFixture{bridge: b, bus: mb, store: store, ledger: fl, transport: ft}
}

func (f *bridgeFixture) nextChat(t *testing.T) bus.OutboundMessage {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	msg, ok := f.bus.SubscribeOutbound(ctx)
	require.True(t, ok, "expected a chat message")
	return msg
}

func (f *bridgeFixture) assertNoChat(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if msg, ok := f.bus.SubscribeOutbound(ctx); ok {
		t.Fatalf("unexpected chat message %q", msg.Content)
	}
}

func userEvent(id, name, content string) bus.ChatEvent {
	return bus.ChatEvent{AuthorID: id, AuthorName: name, ChannelID: "chan-1", Content: content}
}

func TestBridge_JokeRepliesToChatOnly(t *testing.T) {
	f := newBridgeFixture(t)

	f.bridge.HandleChatEvent(context.Background(), userEvent("A", "A", "!joke"))

	msg := f.nextChat(t)
	assert.Equal(t, "chan-1", msg.ChatID)
	assert.Equal(t, "**"+commands.Jokes(langpref.English)[0]+"**", msg.Content)
	assert.Empty(t, f.ledger.calls())
	assert.Empty(t, f.transport.envelopes())
}

func TestBridge_HelloIsForwardedOnceWithinWindow(t *testing.T) {
	f := newBridgeFixture(t)
	ctx := context.Background()

	f.bridge.HandleChatEvent(ctx, userEvent("user-b", "B", "hello"))

	envs := f.transport.envelopes()
	require.Len(t, envs, 1)
	assert.Equal(t, bus.RelayMessage{Content: "hello", Lang: "en", UserID: "user-b"}, envs[0])

	calls := f.ledger.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, bridgePID, calls[0].ProcessID)
	assert.Equal(t, "hello", calls[0].Data)
	assert.Equal(t, ledger.Tags{
		{Name: "Action", Value: DefaultSubmitAction},
		{Name: "Content", Value: "hello"},
		{Name: "Sender", Value: "B"},
		{Name: "Language", Value: "en"},
		{Name: "FromAOS", Value: "true"},
	}, calls[0].Tags)

	f.bridge.HandleChatEvent(ctx, userEvent("user-b", "B", "hello"))
	assert.Len(t, f.ledger.calls(), 1)
	assert.Len(t, f.transport.envelopes(), 1)
	f.assertNoChat(t)
}

func TestBridge_FailedSubmitIsNotMarked(t *testing.T) {
	f := newBridgeFixture(t)
	ctx := context.Background()

	f.ledger.err = errors.New("mu unavailable")
	f.bridge.HandleChatEvent(ctx, userEvent("u", "u", "retry me"))
	assert.Empty(t, f.ledger.calls())

	f.ledger.err = nil
	f.bridge.HandleChatEvent(ctx, userEvent("u", "u", "retry me"))
	assert.Len(t, f.ledger.calls(), 1)
}

func TestBridge_TransportDownStillSubmits(t *testing.T) {
	f := newBridgeFixture(t)
	f.transport.err = transport.ErrNotConnected

	f.bridge.HandleChatEvent(context.Background(), userEvent("u", "u", "gm"))
	assert.Len(t, f.ledger.calls(), 1)
}

func TestBridge_FailingPriceLookup(t *testing.T) {
	f := newBridgeFixture(t)

	f.bridge.HandleChatEvent(context.Background(), userEvent("u", "u", "!price xyz"))

	assert.Equal(t, "**Failed to fetch xyz price.**", f.nextChat(t).Content)
	assert.Empty(t, f.ledger.calls())
	assert.Empty(t, f.transport.envelopes())
}

func TestBridge_SetLangStoresAndPropagates(t *testing.T) {
	f := newBridgeFixture(t)
	ctx := context.Background()

	f.bridge.HandleChatEvent(ctx, userEvent("u", "alice", "!setlang tr"))
	assert.Equal(t, "Language set to Turkish", f.nextChat(t).Content)

	code, ok := f.store.Get("u")
	require.True(t, ok)
	assert.Equal(t, "tr", code)

	calls := f.ledger.calls()
	require.Len(t, calls, 1)
	assert.True(t, calls[0].Tags.Has("Language", "tr"))
	assert.True(t, calls[0].Tags.Has("Content", "!setlang tr"))

	f.bridge.HandleChatEvent(ctx, userEvent("u", "alice", "!setlang xx"))
	assert.Equal(t, "Invalid language. Use !setlang en or !setlang tr", f.nextChat(t).Content)
	code, _ = f.store.Get("u")
	assert.Equal(t, "tr", code)
	assert.Len(t, f.ledger.calls(), 1)
}

func TestBridge_SetLangSurvivesFailedPropagation(t *testing.T) {
	f := newBridgeFixture(t)
	f.ledger.err = errors.New("messenger unit down")

	f.bridge.HandleChatEvent(context.Background(), userEvent("u", "alice", "!setlang tr"))
	assert.Equal(t, "Language set to Turkish", f.nextChat(t).Content)
	f.assertNoChat(t)

	code, ok := f.store.Get("u")
	require.True(t, ok)
	assert.Equal(t, "tr", code)
	assert.Empty(t, f.ledger.calls())
}

func TestBridge_IgnoresNonUserProvenance(t *testing.T) {
	f := newBridgeFixture(t)

	for _, p := range []bus.Provenance{bus.RelayOriginated, bus.EchoOriginated} {
		ev := userEvent("bot", "bot", "hello")
		ev.Provenance = p
		f.bridge.HandleChatEvent(context.Background(), ev)
	}

	assert.Empty(t, f.ledger.calls())
	assert.Empty(t, f.transport.envelopes())
	f.assertNoChat(t)
}

func TestBridge_EnvelopeSetLangUpdatesStoreWithoutSubmitting(t *testing.T) {
	f := newBridgeFixture(t)

	f.bridge.HandleEnvelope(context.Background(), bus.RelayMessage{
		Command: commands.SetLang, Lang: "tr", Content: "!setlang tr", UserID: "dev-user",
	})

	assert.Equal(t, "Language set to Turkish", f.nextChat(t).Content)
	code, _ := f.store.Get("dev-user")
	assert.Equal(t, "tr", code)
	assert.Empty(t, f.ledger.calls())
}

func TestBridge_EnvelopeCommandRepliesInChat(t *testing.T) {
	f := newBridgeFixture(t)
	require.NoError(t, f.store.Set("dev-user", "tr"))

	f.bridge.HandleEnvelope(context.Background(), bus.RelayMessage{
		Content: "dev: **!quote**", Command: "!quote", Lang: "en", UserID: "dev-user", FromDevChat: true,
	})

	assert.Equal(t, "**"+commands.Quotes(langpref.Turkish)[0]+"**", f.nextChat(t).Content)
}

func TestBridge_EnvelopeContentRelayedOnce(t *testing.T) {
	f := newBridgeFixture(t)
	ctx := context.Background()
	env := bus.RelayMessage{Content: "dev: **gm**", Command: "gm", Lang: "en", FromDevChat: true}

	f.bridge.HandleEnvelope(ctx, env)
	assert.Equal(t, "dev: **gm**", f.nextChat(t).Content)

	f.bridge.HandleEnvelope(ctx, env)
	f.assertNoChat(t)
}

func TestBridge_RunDrainsBus(t *testing.T) {
	f := newBridgeFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- f.bridge.Run(ctx) }()

	require.NoError(t, f.bus.PublishEvent(ctx, userEvent("A", "A", "!joke")))
	require.NoError(t, f.bus.PublishEnvelope(ctx, bus.RelayMessage{Content: "dev: **hi**"}))

	assert.Equal(t, "**"+commands.Jokes(langpref.English)[0]+"**", f.nextChat(t).Content)
	assert.Equal(t, "dev: **hi**", f.nextChat(t).Content)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}
