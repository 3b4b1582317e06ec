// Package model defines the record types persisted by the relay's store
// adapters.
package model

import "time"

// ChatMessage is a general-room chat message kept as best-effort history.
// Only untyped frames (no "type" tag) are ever persisted; typed control
// frames are relay-only.
type ChatMessage struct {
	Username   string    `json:"username"`
	Content    string    `json:"content"`
	ProfilePic string    `json:"profilePic"`
	UserID     string    `json:"userId"`
	CreatedAt  time.Time `json:"createdAt"`
}

// DirectMessage is a peer-to-peer message with delivery tracking. A record
// is created once per inbound directed frame and updated at most once, to
// flip Read after a successful live delivery.
type DirectMessage struct {
	ID            string    `json:"_id"`
	SenderID      string    `json:"senderId"`
	RecipientID   string    `json:"recipientId"`
	Content       string    `json:"content"`
	ParentID      string    `json:"parentId,omitempty"`
	ParentContent string    `json:"parentMessageContent,omitempty"`
	Read          bool      `json:"read"`
	Timestamp     time.Time `json:"timestamp"`
}

// PresenceRecord marks an identity as active in the voice room. Keyed
// uniquely by UserID; created on join, removed on leave or disconnect.
type PresenceRecord struct {
	UserID   string    `json:"userId"`
	JoinedAt time.Time `json:"joinedAt"`
}
