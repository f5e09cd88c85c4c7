package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tinyland-inc/aobridge/pkg/bus"
	"github.com/tinyland-inc/aobridge/pkg/logger"
)

// DefaultReconnectDelay is the fixed wait between connection attempts.
const DefaultReconnectDelay = 10 * time.Second

// Client is the ledger-half end of the transport. It keeps one connection
// to the server open, reconnecting after a fixed delay whenever it drops.
type Client struct {
	url     string
	handler Handler
	delay   time.Duration
	dialer  *websocket.Dialer

	mu      sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithReconnectDelay overrides DefaultReconnectDelay.
func WithReconnectDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.delay = d
		}
	}
}

// NewClient returns a client for the ws:// url. handler may be nil.
func NewClient(url string, handler Handler, opts ...ClientOption) *Client {
	c := &Client{
		url:     url,
		handler: handler,
		delay:   DefaultReconnectDelay,
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connected reports whether a connection is currently open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Run connects and reads until ctx is cancelled. Every lost or failed
// connection is retried after the reconnect delay.
func (c *Client) Run(ctx context.Context) error {
	for {
		if err := c.session(ctx); err != nil {
			logger.WarnCF("transport", "Transport connection lost, reconnecting", map[string]any{
				"url":   c.url,
				"delay": c.delay.String(),
				"error": err.Error(),
			})
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.delay):
		}
	}
}

// session dials once and reads until the connection closes.
func (c *Client) session(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	logger.InfoCF("transport", "Transport connected", map[string]any{"url": c.url})

	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	defer func() {
		close(stop)
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		dispatch(ctx, c.handler, data)
	}
}

// Send writes msg to the server. It returns ErrNotConnected while the
// client is between connections.
func (c *Client) Send(_ context.Context, msg bus.RelayMessage) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	data, err := Encode(msg)
	if err != nil {
		return fmt.Errorf("encoding envelope: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write envelope: %w", err)
	}
	return nil
}
