package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ArslanKamchybekov/trademaxxer/internal/metrics"
	"github.com/ArslanKamchybekov/trademaxxer/internal/news"
)

// Callback types registered on the client before Connect.
type (
	MessageFunc   func(ctx context.Context, item *news.RawItem)
	ErrorFunc     func(err error)
	ReconnectFunc func()
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultPingInterval     = 20 * time.Second
	defaultPongTimeout      = 30 * time.Second
	writeTimeout            = 5 * time.Second
)

// Client maintains one persistent websocket connection to the news feed.
// It reconnects with exponential backoff on any failure except an
// authentication rejection, and hands every normalized item to the
// registered message callback. Malformed frames are dropped, never fatal.
type Client struct {
	url     string
	log     zerolog.Logger
	backoff *Backoff

	pingInterval time.Duration
	pongTimeout  time.Duration

	onMessage   MessageFunc
	onError     ErrorFunc
	onReconnect ReconnectFunc

	mu          sync.Mutex
	conn        *websocket.Conn
	connected   bool
	stopped     bool
	cancel      context.CancelFunc
	pingCancel  context.CancelFunc
	connectedAt time.Time

	received    atomic.Int64
	lastMessage atomic.Int64 // unix nanos, 0 = never
	wg          sync.WaitGroup
}

// Option configures Client construction parameters.
type Option func(*Client)

// WithKeepalive overrides the ping interval and pong timeout.
func WithKeepalive(pingInterval, pongTimeout time.Duration) Option {
	return func(c *Client) {
		if pingInterval > 0 {
			c.pingInterval = pingInterval
		}
		if pongTimeout > 0 {
			c.pongTimeout = pongTimeout
		}
	}
}

// WithBackoff overrides the reconnect backoff schedule.
func WithBackoff(b *Backoff) Option {
	return func(c *Client) {
		if b != nil {
			c.backoff = b
		}
	}
}

// NewClient constructs a feed client for the given websocket URL. The URL
// carries credentials in its userinfo section; they are masked in logs.
func NewClient(wsURL string, log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		url:          wsURL,
		log:          log,
		backoff:      NewBackoff(),
		pingInterval: defaultPingInterval,
		pongTimeout:  defaultPongTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnMessage registers the callback invoked with every normalized item.
func (c *Client) OnMessage(fn MessageFunc) { c.onMessage = fn }

// OnError registers the callback invoked on retryable connection failures.
func (c *Client) OnError(fn ErrorFunc) { c.onError = fn }

// OnReconnect registers the callback invoked after a successful reconnect.
func (c *Client) OnReconnect(fn ReconnectFunc) { c.onReconnect = fn }

// Stats is a snapshot of connection health.
type Stats struct {
	Connected         bool
	MessagesReceived  int64
	LastMessageAt     time.Time
	Uptime            time.Duration
	ReconnectAttempts int
}

// Stats returns current connection statistics.
func (c *Client) Stats() Stats {
	c.mu.Lock()
	connected := c.connected
	connectedAt := c.connectedAt
	c.mu.Unlock()

	s := Stats{
		Connected:         connected,
		MessagesReceived:  c.received.Load(),
		ReconnectAttempts: c.backoff.Attempts(),
	}
	if ns := c.lastMessage.Load(); ns > 0 {
		s.LastMessageAt = time.Unix(0, ns)
	}
	if connected && !connectedAt.IsZero() {
		s.Uptime = time.Since(connectedAt)
	}
	return s
}

// Connected reports whether a live connection is up.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Connect establishes the first connection, retrying with backoff until it
// succeeds, the context is cancelled, or the feed rejects the credentials
// (AuthError, non-retryable). On success a background receive loop keeps the
// connection alive and reconnects on drops until Disconnect is called.
func (c *Client) Connect(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	c.stopped = false
	c.cancel = cancel
	c.mu.Unlock()

	if err := c.connectWithRetry(runCtx, false); err != nil {
		cancel()
		return err
	}

	c.wg.Add(1)
	go c.run(runCtx)
	return nil
}

// run keeps the receive loop alive across connection drops.
func (c *Client) run(ctx context.Context) {
	defer c.wg.Done()
	for {
		c.receiveLoop(ctx)
		if ctx.Err() != nil || c.isStopped() {
			return
		}
		c.log.Warn().Msg("feed connection lost, reconnecting")
		if err := c.connectWithRetry(ctx, true); err != nil {
			c.log.Error().Err(err).Msg("reconnect aborted")
			return
		}
	}
}

func (c *Client) connectWithRetry(ctx context.Context, isReconnect bool) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		wasRetry := isReconnect || c.backoff.Attempts() > 0
		err := c.establish(ctx)
		if err == nil {
			c.backoff.Reset()
			if wasRetry && c.onReconnect != nil {
				c.safely("reconnect callback", func() { c.onReconnect() })
			}
			return nil
		}

		var authErr *AuthError
		if errors.As(err, &authErr) {
			return err
		}

		delay := c.backoff.Next()
		connErr := &ConnError{Attempt: c.backoff.Attempts(), Err: err}
		c.log.Warn().Err(err).Int("attempt", connErr.Attempt).Dur("delay", delay).
			Msg("feed connection failed, retrying")
		if c.onError != nil {
			c.safely("error callback", func() { c.onError(connErr) })
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// establish performs one connection attempt and, on success, installs the
// keepalive machinery.
func (c *Client) establish(ctx context.Context) error {
	c.log.Info().Str("url", maskURL(c.url)).Msg("connecting to news feed")

	dialer := websocket.Dialer{HandshakeTimeout: defaultHandshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return &AuthError{Status: resp.StatusCode}
		}
		return err
	}

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(c.pongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.pongTimeout))
	})

	pingCtx, pingCancel := context.WithCancel(ctx)
	go c.pingLoop(pingCtx, conn)

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.connectedAt = time.Now()
	c.pingCancel = pingCancel
	c.mu.Unlock()

	c.log.Info().Str("url", maskURL(c.url)).Msg("connected to news feed")
	return nil
}

func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.log.Warn().Err(err).Msg("feed ping failed")
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// receiveLoop reads frames until the connection closes or the context is
// cancelled. One bad frame or one panicking consumer never breaks the loop.
func (c *Client) receiveLoop(ctx context.Context) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return
	}

	defer func() {
		c.mu.Lock()
		c.connected = false
		if c.pingCancel != nil {
			c.pingCancel()
			c.pingCancel = nil
		}
		c.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, frame, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !c.isStopped() {
				c.log.Warn().Err(err).Msg("feed read failed")
			}
			return
		}
		c.handleFrame(ctx, frame)
	}
}

func (c *Client) handleFrame(ctx context.Context, frame []byte) {
	c.received.Add(1)
	c.lastMessage.Store(time.Now().UnixNano())
	metrics.FramesTotal.Inc()

	var rec Record
	if err := json.Unmarshal(frame, &rec); err != nil {
		metrics.FramesDropped.WithLabelValues("decode").Inc()
		c.log.Warn().Err(err).Str("preview", preview(frame)).Msg("dropping undecodable frame")
		return
	}

	item, err := Normalize(rec)
	if err != nil {
		metrics.FramesDropped.WithLabelValues("normalize").Inc()
		c.log.Warn().Err(err).Str("news_id", rec.ID).Msg("dropping unnormalizable frame")
		return
	}

	if c.onMessage != nil {
		c.safely("message callback", func() { c.onMessage(ctx, item) })
	}
}

// Disconnect stops the client: cancels the receive loop, closes the socket,
// and waits for in-flight work. Safe to call repeatedly or when never
// connected.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	cancel := c.cancel
	conn := c.conn
	c.connected = false
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
	c.wg.Wait()
	c.log.Info().Int64("messages_received", c.received.Load()).Msg("disconnected from news feed")
}

func (c *Client) isStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

// safely runs a registered callback, logging panics instead of letting one
// consumer take down the receive loop.
func (c *Client) safely(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Interface("panic", r).Msgf("%s panicked", name)
		}
	}()
	fn()
}

// maskURL hides userinfo credentials for log output.
func maskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	u.User = url.UserPassword("***", "***")
	return u.String()
}

func preview(frame []byte) string {
	const max = 200
	if len(frame) > max {
		return string(frame[:max])
	}
	return string(frame)
}
