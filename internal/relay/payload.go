package relay

import (
	"encoding/json"
	"fmt"
)

// GeneralKind classifies a general-room frame by its optional "type" tag.
type GeneralKind int

const (
	// GeneralChat is an untyped frame: relayed and persisted as history.
	GeneralChat GeneralKind = iota
	// GeneralThread is a thread control frame: relay-only.
	GeneralThread
	// GeneralPost is a post control frame: relay-only.
	GeneralPost
	// GeneralOther is any other typed frame: relay-only, contents opaque.
	GeneralOther
)

// classifyGeneral probes a raw frame for the "type" tag without decoding the
// rest of the payload. An absent or null tag marks a persistable chat
// message; anything else is a relay-only control frame.
func classifyGeneral(raw []byte) (GeneralKind, error) {
	var probe struct {
		Type *string `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return GeneralOther, fmt.Errorf("malformed general frame: %w", err)
	}

	if probe.Type == nil {
		return GeneralChat, nil
	}
	switch *probe.Type {
	case "thread":
		return GeneralThread, nil
	case "post":
		return GeneralPost, nil
	default:
		return GeneralOther, nil
	}
}

// wrapBroadcast envelopes the original frame for fan-out to the general
// room: {"message": <original>}.
func wrapBroadcast(raw []byte) []byte {
	envelope := struct {
		Message json.RawMessage `json:"message"`
	}{Message: raw}

	payload, err := json.Marshal(envelope)
	if err != nil {
		// raw already round-tripped through Unmarshal, so this cannot fail
		// for frames that reach the broadcast path.
		return raw
	}
	return payload
}

// SignalType tags a voice-room control frame.
type SignalType string

const (
	SignalOffer     SignalType = "offer"
	SignalAnswer    SignalType = "answer"
	SignalCandidate SignalType = "candidate"
	SignalLeave     SignalType = "leave"
)

// relayable reports whether a signal is forwarded to the other voice peers.
func (t SignalType) relayable() bool {
	switch t {
	case SignalOffer, SignalAnswer, SignalCandidate:
		return true
	}
	return false
}

// parseSignal decodes a voice frame into its type tag and the raw field set,
// preserving the payload opaquely for relaying.
func parseSignal(raw []byte) (SignalType, map[string]json.RawMessage, error) {
	var frame map[string]json.RawMessage
	if err := json.Unmarshal(raw, &frame); err != nil {
		return "", nil, fmt.Errorf("malformed signal frame: %w", err)
	}

	var t SignalType
	if typeField, ok := frame["type"]; ok {
		var s string
		if err := json.Unmarshal(typeField, &s); err != nil {
			return "", nil, fmt.Errorf("malformed signal type: %w", err)
		}
		t = SignalType(s)
	}

	return t, frame, nil
}

// annotateSender stamps the sending identity onto a signal frame before it
// is relayed to the other participants.
func annotateSender(frame map[string]json.RawMessage, sender string) ([]byte, error) {
	senderField, err := json.Marshal(sender)
	if err != nil {
		return nil, err
	}
	frame["sender"] = senderField
	return json.Marshal(frame)
}

// directInbound is the frame a p2p client submits.
type directInbound struct {
	RecipientID string `json:"recipientId"`
	Content     string `json:"content"`
	ParentID    string `json:"parentId"`
}

// directOutbound is the payload delivered to a reachable recipient.
type directOutbound struct {
	SenderID      string `json:"senderId"`
	ParentID      string `json:"parentId,omitempty"`
	ParentContent string `json:"parentMessageContent,omitempty"`
	Content       string `json:"content"`
	Timestamp     string `json:"timestamp"`
	ID            string `json:"_id"`
}

// directAck is the acknowledgement returned to the sender.
type directAck struct {
	Success bool   `json:"success"`
	ID      string `json:"_id,omitempty"`
	Message string `json:"message,omitempty"`
}
