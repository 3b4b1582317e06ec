package relay

import (
	"github.com/kojihq/relay/internal/metrics"
)

// joinVoice registers a voice participant and records its presence. Called
// once per connection after a successful handshake; the upsert is idempotent
// so a re-join of the same identity is harmless.
func (r *Relay) joinVoice(c *Client) {
	r.attach(c)

	ctx, cancel := r.storeCtx()
	defer cancel()

	if err := r.presence.UpsertPresence(ctx, c.identity); err != nil {
		// Presence is a side store; a failed upsert never blocks signaling.
		c.log.Error().Err(err).Msg("failed to record voice presence")
	}
	metrics.PresenceUpdates.WithLabelValues("join").Inc()
}

// handleSignal relays a voice control frame to every other participant, or
// winds the connection down on an explicit leave. Unknown types are logged
// and ignored.
func (r *Relay) handleSignal(c *Client, raw []byte) {
	signalType, frame, err := parseSignal(raw)
	if err != nil {
		c.log.Warn().Err(err).Msg("dropping malformed frame")
		return
	}

	switch {
	case signalType.relayable():
		payload, err := annotateSender(frame, c.identity)
		if err != nil {
			c.log.Warn().Err(err).Msg("failed to annotate signal frame")
			return
		}
		r.broadcast(RoomVoice, payload, c)
		metrics.MessagesRelayed.WithLabelValues(string(RoomVoice)).Inc()

	case signalType == SignalLeave:
		c.log.Debug().Msg("voice participant left")
		r.cleanupVoice(c)
		r.removeClient(c)

	default:
		c.log.Warn().Str("type", string(signalType)).Msg("ignoring unknown signal type")
	}
}

// cleanupVoice unregisters a voice participant and deletes its presence
// record exactly once, no matter how many teardown paths fire. The explicit
// leave message and the channel-close path both land here, so a late or
// duplicate close event is a no-op.
func (r *Relay) cleanupVoice(c *Client) {
	c.voiceOnce.Do(func() {
		r.registry.Unregister(RoomVoice, c.identity, c)

		ctx, cancel := r.storeCtx()
		defer cancel()

		if err := r.presence.DeletePresence(ctx, c.identity); err != nil {
			c.log.Error().Err(err).Msg("failed to delete voice presence")
		}
		metrics.PresenceUpdates.WithLabelValues("leave").Inc()
	})
}
