package relay

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kojihq/relay/internal/config"
	"github.com/kojihq/relay/internal/metrics"
	"github.com/kojihq/relay/internal/store"
)

// storeTimeout bounds individual store calls on the directed and presence
// paths. A slow store may delay the calling connection's next message but
// never blocks other connections.
const storeTimeout = 5 * time.Second

// Relay owns the shared routing state for all three rooms: the connection
// registry, the batch buffer, and the store adapters. One Relay instance
// lives for the lifetime of the process.
type Relay struct {
	log      zerolog.Logger
	cfg      *config.Config
	registry *Registry
	buffer   *Buffer
	messages store.MessageStore
	presence store.PresenceStore
	origins  *originPolicy

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a relay wired to the given stores.
func New(cfg *config.Config, messages store.MessageStore, presence store.PresenceStore, log zerolog.Logger) *Relay {
	ctx, cancel := context.WithCancel(context.Background())

	return &Relay{
		log:      log,
		cfg:      cfg,
		registry: NewRegistry(),
		buffer:   NewBuffer(messages, cfg.BatchSize, cfg.FlushInterval, log),
		messages: messages,
		presence: presence,
		origins:  newOriginPolicy(cfg.AllowedOrigins, log),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Registry exposes the connection registry, mainly for tests and
// operational introspection.
func (r *Relay) Registry() *Registry {
	return r.registry
}

// Start launches the flush scheduler.
func (r *Relay) Start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.buffer.Run(r.ctx)
	}()
	r.log.Info().Msg("relay started")
}

// Shutdown closes every live connection and waits for their goroutines and
// the flush scheduler to finish, or until the timeout elapses.
func (r *Relay) Shutdown(timeout time.Duration) error {
	r.log.Info().Msg("shutting down relay")
	r.cancel()

	for _, room := range []Room{RoomGeneral, RoomP2P, RoomVoice} {
		for _, c := range r.registry.Snapshot(room) {
			r.removeClient(c)
		}
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.log.Info().Msg("relay shutdown complete")
		return nil
	case <-time.After(timeout):
		r.log.Warn().Msg("relay shutdown timeout reached")
		return context.DeadlineExceeded
	}
}

// attach registers a client and starts its pump goroutines. A displaced
// connection holding the same identity is closed explicitly rather than
// left dangling.
func (r *Relay) attach(c *Client) {
	if displaced := r.registry.Register(c.room, c.identity, c); displaced != nil {
		displaced.log.Info().Msg("identity re-registered; closing displaced connection")
		r.removeClient(displaced)
	}

	metrics.ConnectionsActive.WithLabelValues(string(c.room)).Inc()
	c.log.Info().Int("total", r.registry.Count(c.room)).Msg("client connected")

	r.wg.Add(2)
	go func() {
		defer r.wg.Done()
		c.writePump()
	}()
	go func() {
		defer r.wg.Done()
		c.readPump()
	}()
}

// removeClient tears a client down exactly once: it is unregistered, its
// voice cleanup runs if applicable, and its pumps are released. Safe to call
// from any goroutine and from multiple paths (read error, failed send,
// explicit leave, shutdown).
func (r *Relay) removeClient(c *Client) {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		r.registry.Unregister(c.room, c.identity, c)

		if c.room == RoomVoice {
			r.cleanupVoice(c)
		}

		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}

		metrics.ConnectionsActive.WithLabelValues(string(c.room)).Dec()
		c.log.Info().Int("total", r.registry.Count(c.room)).Msg("client disconnected")
	})
}

// dispatch routes one inbound frame according to the client's room. Called
// only from the client's readPump, which keeps per-connection ordering.
func (r *Relay) dispatch(c *Client, raw []byte) {
	switch c.room {
	case RoomGeneral:
		r.handleGeneral(c, raw)
	case RoomP2P:
		r.handleDirect(c, raw)
	case RoomVoice:
		r.handleSignal(c, raw)
	}
}

// broadcast fans a payload out to every open client in a room, optionally
// excluding one connection. A failed send is isolated: the recipient is
// culled and delivery continues to the rest.
func (r *Relay) broadcast(room Room, payload []byte, exclude *Client) {
	for _, c := range r.registry.Snapshot(room) {
		if c == exclude || !c.IsOpen() {
			continue
		}
		if !c.trySend(payload) {
			metrics.SendFailures.WithLabelValues(string(room)).Inc()
			c.log.Warn().Msg("send buffer full; dropping client")
			r.removeClient(c)
		}
	}
}

// storeCtx derives a bounded context for a store call. Deliberately not
// tied to the relay's lifetime: cleanup writes (presence deletes, final
// acks) must still reach the store during shutdown.
func (r *Relay) storeCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), storeTimeout)
}
