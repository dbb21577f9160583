// Package wsserver broadcasts tagged news to connected UI clients over
// websockets.
package wsserver

import (
	"context"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ArslanKamchybekov/trademaxxer/internal/metrics"
	"github.com/ArslanKamchybekov/trademaxxer/internal/news"
	"github.com/ArslanKamchybekov/trademaxxer/internal/pubsub"
)

const (
	clientSendBuffer = 64
	clientWriteWait  = 10 * time.Second
)

// closed is guarded by Server.mu: sends and close(send) both happen under
// the lock, so a broadcast can never race a disconnecting client into a
// send on a closed channel.
type client struct {
	conn   *websocket.Conn
	send   chan []byte
	closed bool
}

// Server fans tagged items out to every connected websocket client. A slow
// client gets dropped rather than backing up the pipeline.
type Server struct {
	addr string
	bus  *pubsub.Bus
	log  zerolog.Logger

	upgrader  websocket.Upgrader
	httpSrv   *http.Server
	sub       *pubsub.Subscription
	boundAddr string

	mu      sync.Mutex
	clients map[*client]struct{}

	totalConns atomic.Int64
	broadcasts atomic.Int64
}

// New builds a broadcast server bound to addr, fed from the bus's global
// channel.
func New(addr string, bus *pubsub.Bus, log zerolog.Logger) *Server {
	return &Server{
		addr: addr,
		bus:  bus,
		log:  log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Stats summarizes broadcast activity.
type Stats struct {
	ConnectedClients int
	TotalConnections int64
	Broadcasts       int64
}

// Stats returns a snapshot.
func (s *Server) Stats() Stats {
	s.mu.Lock()
	connected := len(s.clients)
	s.mu.Unlock()
	return Stats{
		ConnectedClients: connected,
		TotalConnections: s.totalConns.Load(),
		Broadcasts:       s.broadcasts.Load(),
	}
}

// Start begins accepting clients and subscribes to the global channel.
// Returns once the listener is bound.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	s.httpSrv = &http.Server{Handler: mux}
	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error().Err(err).Msg("broadcast server stopped")
		}
	}()

	s.boundAddr = ln.Addr().String()
	s.sub = s.bus.Subscribe(s.onItem, pubsub.ChannelAll)
	s.log.Info().Str("addr", s.boundAddr).Msg("broadcast server up")
	return nil
}

// Addr returns the bound address, useful when the configured addr was ":0".
func (s *Server) Addr() string {
	if s.boundAddr != "" {
		return s.boundAddr
	}
	return s.addr
}

// Stop unsubscribes, closes all clients, and shuts the listener down.
func (s *Server) Stop(ctx context.Context) {
	if s.sub != nil {
		s.bus.Unsubscribe(s.sub)
		s.sub = nil
	}

	s.mu.Lock()
	for c := range s.clients {
		if !c.closed {
			c.closed = true
			close(c.send)
		}
		delete(s.clients, c)
	}
	s.mu.Unlock()

	if s.httpSrv != nil {
		_ = s.httpSrv.Shutdown(ctx)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientSendBuffer)}
	s.mu.Lock()
	s.clients[c] = struct{}{}
	count := len(s.clients)
	s.mu.Unlock()
	s.totalConns.Add(1)
	metrics.ConnectedClients.Set(float64(count))
	s.log.Info().Str("remote", conn.RemoteAddr().String()).Int("clients", count).Msg("client connected")

	go s.writeLoop(c)
	go s.readLoop(c)
}

// writeLoop drains the client's send queue; it exits when the queue closes.
func (s *Server) writeLoop(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(clientWriteWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			s.drop(c)
			return
		}
	}
}

// readLoop discards inbound frames; its only job is detecting disconnects.
func (s *Server) readLoop(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			s.drop(c)
			return
		}
	}
}

func (s *Server) drop(c *client) {
	s.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	delete(s.clients, c)
	count := len(s.clients)
	s.mu.Unlock()
	metrics.ConnectedClients.Set(float64(count))
	_ = c.conn.Close()
}

// onItem is the bus callback: serialize once, enqueue to every client,
// dropping any client whose queue is full.
func (s *Server) onItem(_ context.Context, payload any) {
	item, ok := payload.(*news.TaggedItem)
	if !ok {
		return
	}
	data, err := item.MarshalWire()
	if err != nil {
		s.log.Error().Err(err).Str("news_id", item.ID).Msg("serialize broadcast item")
		return
	}

	// enqueue under the lock: a client dropped concurrently is either gone
	// from the map already or still has an open send channel
	s.mu.Lock()
	delivered := 0
	var slow []*client
	for c := range s.clients {
		select {
		case c.send <- data:
			delivered++
		default:
			slow = append(slow, c)
		}
	}
	s.mu.Unlock()

	for _, c := range slow {
		s.log.Warn().Msg("dropping slow broadcast client")
		s.drop(c)
	}
	if delivered > 0 {
		s.broadcasts.Add(1)
	}
}
