// Package transport is the loopback duplex channel between the chat-facing
// half and the ledger-facing half of the bridge. Envelopes are JSON
// bus.RelayMessage values carried as WebSocket text frames.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/tinyland-inc/aobridge/pkg/bus"
)

var (
	// ErrNotConnected is returned by Send when there is no peer to write to.
	ErrNotConnected = errors.New("transport: no peer connected")
	// ErrMalformed wraps envelopes that cannot be decoded.
	ErrMalformed = errors.New("transport: malformed envelope")
)

// Handler receives each decoded envelope.
type Handler func(ctx context.Context, msg bus.RelayMessage)

// Sender is implemented by both ends of the transport.
type Sender interface {
	Send(ctx context.Context, msg bus.RelayMessage) error
}

// Encode assigns an id if the envelope has none and marshals it.
func Encode(msg bus.RelayMessage) ([]byte, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	return json.Marshal(msg)
}

// Decode parses one envelope. Invalid JSON and envelopes with neither
// content nor command are rejected with ErrMalformed.
func Decode(data []byte) (bus.RelayMessage, error) {
	var msg bus.RelayMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return bus.RelayMessage{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if msg.Content == "" && msg.Command == "" {
		return bus.RelayMessage{}, fmt.Errorf("%w: empty envelope", ErrMalformed)
	}
	return msg, nil
}
