// Package store provides the persistent store adapters backing the relay:
// PostgreSQL for message history and directed messages, Redis for voice
// presence. The relay treats every adapter failure as recoverable; nothing
// in this package is allowed to block routing.
package store

import (
	"context"
	"errors"

	"github.com/kojihq/relay/internal/model"
)

// ErrNotFound is returned when a record lookup matches nothing. Callers use
// it to tell a miss apart from an infrastructure failure.
var ErrNotFound = errors.New("store: record not found")

// MessageStore persists broadcast history and directed messages.
type MessageStore interface {
	// InsertMessages bulk-inserts a drained batch of general-room messages.
	InsertMessages(ctx context.Context, msgs []model.ChatMessage) error

	// CreateDirectMessage persists a new directed message and returns its
	// durable id.
	CreateDirectMessage(ctx context.Context, dm *model.DirectMessage) (string, error)

	// GetDirectMessage fetches a directed message by id. Returns ErrNotFound
	// when no record exists.
	GetDirectMessage(ctx context.Context, id string) (*model.DirectMessage, error)

	// MarkDirectMessageRead flips the read flag on an existing record.
	MarkDirectMessageRead(ctx context.Context, id string) error
}

// PresenceStore tracks which identities are active in the voice room.
type PresenceStore interface {
	// UpsertPresence records an identity as active. Idempotent.
	UpsertPresence(ctx context.Context, userID string) error

	// DeletePresence removes an identity's presence record. Removing an
	// absent identity is a no-op.
	DeletePresence(ctx context.Context, userID string) error

	// ActiveVoiceUsers lists the identities currently marked active.
	ActiveVoiceUsers(ctx context.Context) ([]string, error)
}
