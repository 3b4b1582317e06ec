package relay

import (
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	// pongWait is how long a connection may stay silent before the read
	// loop gives up on it.
	pongWait = 60 * time.Second
	// pingPeriod must be shorter than pongWait.
	pingPeriod = 54 * time.Second
	// writeWait bounds every outbound write so a slow recipient cannot
	// stall the write pump indefinitely.
	writeWait = 10 * time.Second

	// sendBufferSize is the per-client outbound queue. A client that falls
	// this far behind is treated as unreachable and culled.
	sendBufferSize = 256
)

// Client is one live WebSocket connection in a single room. Its inbound
// stream is processed strictly sequentially by readPump, which is what
// preserves per-sender ordering; writePump serializes outbound traffic.
type Client struct {
	conn     *websocket.Conn
	relay    *Relay
	log      zerolog.Logger
	room     Room
	identity string
	addr     string

	send chan []byte
	done chan struct{}

	closed    atomic.Bool
	closeOnce sync.Once
	voiceOnce sync.Once

	limiter *rateLimiter
}

func newClient(conn *websocket.Conn, r *Relay, room Room, identity, addr string) *Client {
	if conn != nil {
		conn.SetReadLimit(r.cfg.MaxMessageSize)
	}

	return &Client{
		conn:     conn,
		relay:    r,
		log:      r.log.With().Str("room", string(room)).Str("identity", identity).Str("addr", addr).Logger(),
		room:     room,
		identity: identity,
		addr:     addr,
		send:     make(chan []byte, sendBufferSize),
		done:     make(chan struct{}),
		limiter:  newRateLimiter(r.cfg.RateLimitBurst, r.cfg.RateLimitRefill),
	}
}

// Identity returns the stable identity this client registered under.
func (c *Client) Identity() string {
	return c.identity
}

// IsOpen reports whether the connection is still considered live.
func (c *Client) IsOpen() bool {
	return !c.closed.Load()
}

// trySend queues a payload for delivery without blocking. It returns false
// when the client is closed or its outbound buffer is full; the caller
// treats either as a failed send isolated to this recipient.
func (c *Client) trySend(payload []byte) bool {
	if c.closed.Load() {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *Client) setupReadDeadlines() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Warn().Err(err).Msg("failed to set initial read deadline")
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
}

// readPump reads frames off the connection one at a time and dispatches
// each to the room's routing logic. It exits on the first read error and
// triggers the client's cleanup.
func (c *Client) readPump() {
	defer c.relay.removeClient(c)

	c.setupReadDeadlines()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}

		if !c.limiter.allow() {
			c.log.Warn().Msg("rate limit exceeded; discarding frame")
			continue
		}

		c.relay.dispatch(c, raw)
	}
}

func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.log.Warn().Int64("limit", c.relay.cfg.MaxMessageSize).Msg("frame exceeded maximum size")
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		c.log.Debug().Err(err).Msg("client disconnected")
	case errors.Is(err, io.EOF), isExpectedCloseError(err):
		c.log.Debug().Err(err).Msg("connection closed")
	default:
		c.log.Warn().Err(err).Msg("websocket read error")
	}
}

// writePump drains the send queue onto the wire and keeps the connection
// alive with periodic pings. It exits when the client is closed.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Debug().Err(err).Msg("error closing connection")
		}
	}()

	for {
		select {
		case message := <-c.send:
			if !c.writeMessage(message) {
				return
			}
		case <-ticker.C:
			if !c.writePing() {
				return
			}
		case <-c.done:
			c.writeClose()
			return
		}
	}
}

// writeMessage writes one payload plus anything already queued behind it,
// newline-separated, in a single WebSocket frame.
func (c *Client) writeMessage(message []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return false
	}

	w, err := c.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return false
	}

	if _, err := w.Write(message); err != nil {
		return false
	}

	queued := len(c.send)
	for i := 0; i < queued; i++ {
		if _, err := w.Write([]byte{'\n'}); err != nil {
			return false
		}
		if _, err := w.Write(<-c.send); err != nil {
			return false
		}
	}

	return w.Close() == nil
}

func (c *Client) writePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return false
	}
	return c.conn.WriteMessage(websocket.PingMessage, nil) == nil
}

func (c *Client) writeClose() {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil && !isExpectedCloseError(err) {
		c.log.Debug().Err(err).Msg("error writing close message")
	}
}

// isExpectedCloseError checks if an error is expected during connection
// teardown.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
