package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tinyland-inc/aobridge/pkg/bus"
	"github.com/tinyland-inc/aobridge/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 64 << 10
	sendBuffer     = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// Peers are local processes, not browsers.
		return r.Header.Get("Origin") == ""
	},
}

// Server is the chat-half end of the transport. It accepts any number of
// local peers and broadcasts envelopes to all of them.
type Server struct {
	addr    string
	handler Handler

	mu      sync.RWMutex
	ctx     context.Context
	peers   map[*peer]struct{}
	httpSrv *http.Server
	ln      net.Listener
}

type peer struct {
	conn   *websocket.Conn
	send   chan []byte
	closed chan struct{}
	once   sync.Once
}

func (p *peer) close() {
	p.once.Do(func() {
		close(p.closed)
		p.conn.Close()
	})
}

// NewServer returns a server that will listen on addr and pass every
// decoded envelope to handler.
func NewServer(addr string, handler Handler) *Server {
	return &Server{
		addr:    addr,
		handler: handler,
		ctx:     context.Background(),
		peers:   make(map[*peer]struct{}),
	}
}

// Start listens and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("transport listen on %s: %w", s.addr, err)
	}

	s.mu.Lock()
	s.ctx = ctx
	s.ln = ln
	s.httpSrv = &http.Server{Handler: s, ReadHeaderTimeout: 10 * time.Second}
	srv := s.httpSrv
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorCF("transport", "Transport server error", map[string]any{"error": err.Error()})
		}
	}()

	logger.InfoCF("transport", "Transport server started", map[string]any{"addr": ln.Addr().String()})
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ln == nil {
		return s.addr
	}
	return s.ln.Addr().String()
}

// Stop closes the listener and every peer connection.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpSrv
	peers := make([]*peer, 0, len(s.peers))
	for p := range s.peers {
		peers = append(peers, p)
		delete(s.peers, p)
	}
	s.mu.Unlock()

	for _, p := range peers {
		p.close()
	}
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// Peers returns the number of connected peers.
func (s *Server) Peers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.peers)
}

// ServeHTTP upgrades the request and serves the peer.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.ErrorCF("transport", "WebSocket upgrade failed", map[string]any{"error": err.Error()})
		return
	}

	p := &peer{
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		closed: make(chan struct{}),
	}

	s.mu.Lock()
	s.peers[p] = struct{}{}
	ctx := s.ctx
	s.mu.Unlock()

	logger.InfoCF("transport", "Transport connection established", map[string]any{
		"remote": conn.RemoteAddr().String(),
	})

	go s.writePump(p)
	go s.readPump(ctx, p)
}

// Send broadcasts msg to every connected peer. Slow peers whose buffer is
// full are disconnected.
func (s *Server) Send(_ context.Context, msg bus.RelayMessage) error {
	data, err := Encode(msg)
	if err != nil {
		return fmt.Errorf("encoding envelope: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.peers) == 0 {
		return ErrNotConnected
	}
	for p := range s.peers {
		select {
		case p.send <- data:
		default:
			logger.WarnC("transport", "Dropping slow transport peer")
			delete(s.peers, p)
			p.close()
		}
	}
	return nil
}

func (s *Server) unregister(p *peer) {
	s.mu.Lock()
	delete(s.peers, p)
	s.mu.Unlock()
	p.close()
}

func (s *Server) readPump(ctx context.Context, p *peer) {
	defer func() {
		s.unregister(p)
		logger.InfoC("transport", "Transport connection closed")
	}()

	p.conn.SetReadLimit(maxMessageSize)
	p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			return
		}
		p.conn.SetReadDeadline(time.Now().Add(pongWait))
		dispatch(ctx, s.handler, data)
	}
}

func (s *Server) writePump(p *peer) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		p.close()
	}()

	for {
		select {
		case <-p.closed:
			return
		case data := <-p.send:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// dispatch decodes one frame and hands it to handler. Malformed frames are
// logged and dropped.
func dispatch(ctx context.Context, handler Handler, data []byte) {
	msg, err := Decode(data)
	if err != nil {
		logger.ErrorCF("transport", "Dropping malformed envelope", map[string]any{
			"bytes": len(data),
			"error": err.Error(),
		})
		return
	}
	if handler != nil {
		handler(ctx, msg)
	}
}
