package websocket

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/wricardo/pair-relay/relay/room"
)

var (
	ErrClientClosed   = errors.New("client closed")
	ErrSendQueueFull  = errors.New("send queue full")
	ErrHandlerStopped = errors.New("handler stopped")
)

// Dispatcher receives inbound frames and close events.
type Dispatcher interface {
	HandleMessage(c room.Conn, frame []byte)
	HandleClose(c room.Conn)
}

// Options tunes the per-connection plumbing.
type Options struct {
	// Time allowed to write a message to the peer.
	WriteWait time.Duration

	// Time allowed to read the next pong message from the peer.
	PongWait time.Duration

	// Maximum message size allowed from peer.
	MaxMessageSize int64

	// Outbound frames buffered per connection.
	SendBufferSize int

	// Allowed Origin header values. Empty allows every origin.
	AllowedOrigins []string
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		MaxMessageSize: 64 * 1024,
		SendBufferSize: 256,
	}
}

// pingPeriod must be less than PongWait.
func (o Options) pingPeriod() time.Duration {
	return (o.PongWait * 9) / 10
}

// Client is one WebSocket connection. It implements room.Conn.
type Client struct {
	id      string
	handler *Handler
	conn    *websocket.Conn

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// ID implements room.Conn.
func (c *Client) ID() string {
	return c.id
}

// Send implements room.Conn. It never blocks.
func (c *Client) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClientClosed
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Open implements room.Conn.
func (c *Client) Open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

// shutdown stops accepting frames and lets the write pump flush and exit.
func (c *Client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Handler upgrades HTTP requests and tracks live clients.
type Handler struct {
	dispatcher Dispatcher
	opts       Options
	upgrader   websocket.Upgrader
	log        zerolog.Logger

	mu      sync.Mutex
	clients map[string]*Client
	stopped bool
	wg      sync.WaitGroup
}

// NewHandler creates a WebSocket handler feeding the given dispatcher.
func NewHandler(d Dispatcher, opts Options, log zerolog.Logger) *Handler {
	h := &Handler{
		dispatcher: d,
		opts:       opts,
		log:        log.With().Str("component", "websocket").Logger(),
		clients:    make(map[string]*Client),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// ServeHTTP upgrades the request and starts the client's pumps.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error response.
		h.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	client := &Client{
		id:      uuid.NewString(),
		handler: h,
		conn:    conn,
		send:    make(chan []byte, h.opts.SendBufferSize),
	}

	if err := h.register(client); err != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(h.opts.WriteWait))
		conn.Close()
		return
	}

	h.log.Debug().Str("conn", client.id).Str("remote", r.RemoteAddr).Msg("client connected")

	go client.writePump()
	go client.readPump()
}

// Count returns the number of live clients.
func (h *Handler) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and waits for their pumps to finish.
// New connections are refused afterwards.
func (h *Handler) Close() {
	h.mu.Lock()
	h.stopped = true
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.shutdown()
	}
	h.wg.Wait()
}

func (h *Handler) register(c *Client) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return ErrHandlerStopped
	}
	h.clients[c.id] = c
	// One for each pump.
	h.wg.Add(2)
	return nil
}

func (h *Handler) unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c.id)
	remaining := len(h.clients)
	h.mu.Unlock()

	h.log.Debug().Str("conn", c.id).Int("remaining", remaining).Msg("client disconnected")
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		// Non-browser clients do not send an Origin header.
		return true
	}
	for _, allowed := range h.opts.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// readPump pumps frames from the WebSocket connection to the dispatcher.
func (c *Client) readPump() {
	h := c.handler
	defer func() {
		h.dispatcher.HandleClose(c)
		c.shutdown()
		h.unregister(c)
		c.conn.Close()
		h.wg.Done()
	}()

	c.conn.SetReadLimit(h.opts.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(h.opts.PongWait))
		return nil
	})

	for {
		kind, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.log.Warn().Err(err).Str("conn", c.id).Msg("websocket read error")
			}
			return
		}
		if kind != websocket.TextMessage {
			h.log.Debug().Str("conn", c.id).Int("kind", kind).Msg("ignoring non-text frame")
			continue
		}
		h.dispatcher.HandleMessage(c, frame)
	}
}

// writePump pumps frames from the send queue to the WebSocket connection.
func (c *Client) writePump() {
	h := c.handler
	ticker := time.NewTicker(h.opts.pingPeriod())
	defer func() {
		ticker.Stop()
		c.conn.Close()
		h.wg.Done()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(h.opts.WriteWait))
			if !ok {
				// The queue was closed.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				h.log.Debug().Err(err).Str("conn", c.id).Msg("websocket write failed")
				c.shutdown()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(h.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.shutdown()
				return
			}
		}
	}
}
