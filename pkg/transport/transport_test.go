package transport

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyland-inc/aobridge/pkg/bus"
)

func collector() (Handler, <-chan bus.RelayMessage) {
	ch := make(chan bus.RelayMessage, 16)
	return func(_ context.Context, msg bus.RelayMessage) { ch <- msg }, ch
}

func receive(t *testing.T, ch <-chan bus.RelayMessage) bus.RelayMessage {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for envelope")
		return bus.RelayMessage{}
	}
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

// startPair runs a server behind httptest and a connected client.
func startPair(t *testing.T, serverHandler, clientHandler Handler) (*Server, *Client, func()) {
	t.Helper()

	srv := NewServer("127.0.0.1:0", serverHandler)
	ts := httptest.NewServer(srv)

	client := NewClient(wsURL(ts.URL), clientHandler, WithReconnectDelay(20*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		client.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return client.Connected() && srv.Peers() == 1 },
		2*time.Second, 10*time.Millisecond)

	return srv, client, func() {
		cancel()
		<-done
		srv.Stop(context.Background())
		ts.Close()
	}
}

func TestClientToServer(t *testing.T) {
	handler, got := collector()
	_, client, stop := startPair(t, handler, nil)
	defer stop()

	require.NoError(t, client.Send(context.Background(), bus.RelayMessage{
		Content: "alice: **gm**", Command: "gm", Lang: "en", FromDevChat: true,
	}))

	msg := receive(t, got)
	assert.Equal(t, "alice: **gm**", msg.Content)
	assert.Equal(t, "gm", msg.Command)
	assert.True(t, msg.FromDevChat)
	assert.NotEmpty(t, msg.ID)
}

func TestServerBroadcastToClient(t *testing.T) {
	handler, got := collector()
	srv, _, stop := startPair(t, nil, handler)
	defer stop()

	require.NoError(t, srv.Send(context.Background(), bus.RelayMessage{Content: "hello", UserID: "42"}))

	msg := receive(t, got)
	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, "42", msg.UserID)
}

func TestServer_DropsMalformedFrames(t *testing.T) {
	handler, got := collector()
	srv := NewServer("127.0.0.1:0", handler)
	ts := httptest.NewServer(srv)
	defer ts.Close()
	defer srv.Stop(context.Background())

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts.URL), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"content":"ok"}`)))

	assert.Equal(t, "ok", receive(t, got).Content)
	select {
	case extra := <-got:
		t.Fatalf("unexpected envelope %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSend_NotConnected(t *testing.T) {
	srv := NewServer("127.0.0.1:0", nil)
	assert.ErrorIs(t, srv.Send(context.Background(), bus.RelayMessage{Content: "x"}), ErrNotConnected)

	client := NewClient("ws://127.0.0.1:1", nil)
	assert.ErrorIs(t, client.Send(context.Background(), bus.RelayMessage{Content: "x"}), ErrNotConnected)
}

func TestClient_ReconnectsAfterDrop(t *testing.T) {
	srv, client, stop := startPair(t, nil, nil)
	defer stop()

	// Dropping every peer server-side forces the client to redial.
	srv.Stop(context.Background())
	require.Eventually(t, func() bool { return srv.Peers() == 1 && client.Connected() },
		2*time.Second, 10*time.Millisecond)
}

func TestClient_RunReturnsOnCancel(t *testing.T) {
	client := NewClient("ws://127.0.0.1:1/unreachable", nil, WithReconnectDelay(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- client.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestDecode(t *testing.T) {
	msg, err := Decode([]byte(`{"command":"!setlang","lang":"tr","content":"!setlang tr","userId":"7"}`))
	require.NoError(t, err)
	assert.Equal(t, bus.RelayMessage{Command: "!setlang", Lang: "tr", Content: "!setlang tr", UserID: "7"}, msg)

	_, err = Decode([]byte(`[1,2]`))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Decode([]byte(`{"lang":"en"}`))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestServer_StartAndStop(t *testing.T) {
	srv := NewServer("127.0.0.1:0", nil)
	require.NoError(t, srv.Start(context.Background()))
	assert.NotEqual(t, "127.0.0.1:0", srv.Addr())

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+srv.Addr()+"/", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return srv.Peers() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, srv.Stop(context.Background()))
	assert.Equal(t, 0, srv.Peers())
}
