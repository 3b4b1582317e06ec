package relay

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/kojihq/relay/internal/metrics"
	"github.com/kojihq/relay/internal/model"
	"github.com/kojihq/relay/internal/store"
)

const ackFailure = "Failed to process message"

// handleDirect routes one directed message: build the record, resolve the
// optional parent, persist, attempt live delivery, and acknowledge the
// sender. Durability is promised to the sender explicitly, so unlike the
// broadcast path a store failure here surfaces as a failed ack.
func (r *Relay) handleDirect(c *Client, raw []byte) {
	var in directInbound
	if err := json.Unmarshal(raw, &in); err != nil {
		c.log.Warn().Err(err).Msg("dropping malformed frame")
		return
	}

	metrics.MessagesRelayed.WithLabelValues(string(RoomP2P)).Inc()

	dm := &model.DirectMessage{
		SenderID:    c.identity,
		RecipientID: in.RecipientID,
		Content:     in.Content,
		ParentID:    in.ParentID,
		Read:        false,
		Timestamp:   time.Now(),
	}

	ctx, cancel := r.storeCtx()
	defer cancel()

	// Thread reconstruction is best-effort: a missing or unreadable parent
	// never blocks the send, the snapshot is simply omitted.
	if in.ParentID != "" {
		parent, err := r.messages.GetDirectMessage(ctx, in.ParentID)
		switch {
		case err == nil:
			dm.ParentContent = parent.Content
		case errors.Is(err, store.ErrNotFound):
			c.log.Debug().Str("parentId", in.ParentID).Msg("parent message not found")
		default:
			c.log.Warn().Err(err).Str("parentId", in.ParentID).Msg("parent lookup failed")
		}
	}

	id, err := r.messages.CreateDirectMessage(ctx, dm)
	if err != nil {
		c.log.Error().Err(err).Msg("failed to persist direct message")
		metrics.DirectMessagesSent.WithLabelValues("failed").Inc()
		r.ackDirect(c, directAck{Success: false, Message: ackFailure})
		return
	}

	delivered := false
	if recipient := r.registry.Lookup(RoomP2P, in.RecipientID); recipient != nil {
		payload, merr := json.Marshal(directOutbound{
			SenderID:      c.identity,
			ParentID:      dm.ParentID,
			ParentContent: dm.ParentContent,
			Content:       dm.Content,
			Timestamp:     dm.Timestamp.UTC().Format(time.RFC3339),
			ID:            id,
		})
		if merr == nil && recipient.trySend(payload) {
			delivered = true
		} else {
			metrics.SendFailures.WithLabelValues(string(RoomP2P)).Inc()
			c.log.Debug().Str("recipientId", in.RecipientID).Msg("live delivery failed; leaving message unread")
		}
	} else {
		c.log.Debug().Str("recipientId", in.RecipientID).Msg("recipient not connected")
	}

	if delivered {
		if err := r.messages.MarkDirectMessageRead(ctx, id); err != nil {
			c.log.Error().Err(err).Str("id", id).Msg("failed to mark message read")
			metrics.DirectMessagesSent.WithLabelValues("failed").Inc()
			r.ackDirect(c, directAck{Success: false, Message: ackFailure})
			return
		}
		metrics.DirectMessagesSent.WithLabelValues("delivered").Inc()
	} else {
		metrics.DirectMessagesSent.WithLabelValues("stored").Inc()
	}

	r.ackDirect(c, directAck{Success: true, ID: id})
}

func (r *Relay) ackDirect(c *Client, ack directAck) {
	payload, err := json.Marshal(ack)
	if err != nil {
		return
	}
	if !c.trySend(payload) {
		c.log.Warn().Msg("failed to deliver ack to sender")
	}
}
