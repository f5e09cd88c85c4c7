package bus

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrBusClosed is returned when publishing to a closed MessageBus.
var ErrBusClosed = errors.New("message bus closed")

const queueSize = 100

// MessageBus connects the gateway's producers to the bridge. Discord
// events and transport envelopes share the inbound queue so the bridge
// sees them one at a time in delivery order; replies and relayed ledger
// messages wait on the outbound queue for the channel manager.
type MessageBus struct {
	inbound  chan InboundMessage
	outbound chan OutboundMessage
	done     chan struct{}
	closed   atomic.Bool
}

func NewMessageBus() *MessageBus {
	return &MessageBus{
		inbound:  make(chan InboundMessage, queueSize),
		outbound: make(chan OutboundMessage, queueSize),
		done:     make(chan struct{}),
	}
}

// PublishInbound queues work for the bridge. It blocks while the queue is
// full, until ctx ends or the bus closes.
func (mb *MessageBus) PublishInbound(ctx context.Context, msg InboundMessage) error {
	return publish(ctx, mb, mb.inbound, msg)
}

// PublishEvent queues a message seen in the chat channel.
func (mb *MessageBus) PublishEvent(ctx context.Context, ev ChatEvent) error {
	return mb.PublishInbound(ctx, InboundMessage{Event: &ev})
}

// PublishEnvelope queues an envelope received from the ledger half.
func (mb *MessageBus) PublishEnvelope(ctx context.Context, env RelayMessage) error {
	return mb.PublishInbound(ctx, InboundMessage{Envelope: &env})
}

// ConsumeInbound returns the next unit of work. ok is false once ctx ends
// or the bus is closed; pending work is then abandoned.
func (mb *MessageBus) ConsumeInbound(ctx context.Context) (InboundMessage, bool) {
	return consume(ctx, mb, mb.inbound)
}

// PublishOutbound queues text for the chat channel.
func (mb *MessageBus) PublishOutbound(ctx context.Context, msg OutboundMessage) error {
	return publish(ctx, mb, mb.outbound, msg)
}

// SubscribeOutbound returns the next message for the chat channel.
func (mb *MessageBus) SubscribeOutbound(ctx context.Context) (OutboundMessage, bool) {
	return consume(ctx, mb, mb.outbound)
}

// Close wakes every blocked publisher and consumer. It is safe to call
// more than once.
func (mb *MessageBus) Close() {
	if mb.closed.CompareAndSwap(false, true) {
		close(mb.done)
	}
}

func publish[T any](ctx context.Context, mb *MessageBus, queue chan<- T, msg T) error {
	if mb.closed.Load() {
		return ErrBusClosed
	}
	select {
	case queue <- msg:
		return nil
	case <-mb.done:
		return ErrBusClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func consume[T any](ctx context.Context, mb *MessageBus, queue <-chan T) (T, bool) {
	var zero T
	select {
	case msg, ok := <-queue:
		return msg, ok
	case <-mb.done:
		return zero, false
	case <-ctx.Done():
		return zero, false
	}
}
