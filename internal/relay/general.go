package relay

import (
	"encoding/json"
	"time"

	"github.com/kojihq/relay/internal/metrics"
	"github.com/kojihq/relay/internal/model"
)

// handleGeneral relays a general-room frame to every member and enqueues
// untyped frames for batched persistence. Typed control frames (thread,
// post, or anything else tagged) are relay-only.
func (r *Relay) handleGeneral(c *Client, raw []byte) {
	kind, err := classifyGeneral(raw)
	if err != nil {
		c.log.Warn().Err(err).Msg("dropping malformed frame")
		return
	}

	r.broadcast(RoomGeneral, wrapBroadcast(raw), nil)
	metrics.MessagesRelayed.WithLabelValues(string(RoomGeneral)).Inc()

	if kind != GeneralChat {
		return
	}

	var msg model.ChatMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.log.Warn().Err(err).Msg("chat frame does not match history schema; not persisted")
		return
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	r.buffer.Enqueue(msg)
}
