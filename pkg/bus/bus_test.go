package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageBus_PreservesInboundOrder(t *testing.T) {
	mb := NewMessageBus()
	ctx := context.Background()

	require.NoError(t, mb.PublishEvent(ctx, ChatEvent{AuthorID: "1", Content: "first"}))
	require.NoError(t, mb.PublishEnvelope(ctx, RelayMessage{Content: "second"}))

	msg, ok := mb.ConsumeInbound(ctx)
	require.True(t, ok)
	require.NotNil(t, msg.Event)
	assert.Equal(t, "first", msg.Event.Content)
	assert.Nil(t, msg.Envelope)

	msg, ok = mb.ConsumeInbound(ctx)
	require.True(t, ok)
	require.NotNil(t, msg.Envelope)
	assert.Equal(t, "second", msg.Envelope.Content)
}

func TestMessageBus_ClosedRejectsPublish(t *testing.T) {
	mb := NewMessageBus()
	mb.Close()
	mb.Close()

	err := mb.PublishOutbound(context.Background(), OutboundMessage{Content: "x"})
	assert.ErrorIs(t, err, ErrBusClosed)

	_, ok := mb.ConsumeInbound(context.Background())
	assert.False(t, ok)
}

func TestMessageBus_ConsumeHonoursContext(t *testing.T) {
	mb := NewMessageBus()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, ok := mb.SubscribeOutbound(ctx)
	assert.False(t, ok)
}

func TestRelayable(t *testing.T) {
	assert.True(t, Relayable(UserOriginated))
	assert.False(t, Relayable(RelayOriginated))
	assert.False(t, Relayable(EchoOriginated))
	assert.Equal(t, "echo", EchoOriginated.String())
}

func TestMessageBus_CloseWakesBlockedPublisher(t *testing.T) {
	mb := NewMessageBus()
	ctx := context.Background()
	for i := 0; i < queueSize; i++ {
		require.NoError(t, mb.PublishOutbound(ctx, OutboundMessage{ChatID: "c", Content: "x"}))
	}

	errc := make(chan error, 1)
	go func() {
		errc <- mb.PublishOutbound(ctx, OutboundMessage{ChatID: "c", Content: "overflow"})
	}()

	select {
	case err := <-errc:
		t.Fatalf("publish on a full queue returned early: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	mb.Close()
	mb.Close()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrBusClosed)
	case <-time.After(time.Second):
		t.Fatal("publisher still blocked after Close")
	}
}
