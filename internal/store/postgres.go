package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/kojihq/relay/internal/model"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool and
// bootstraps the schema.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	s := &PostgresStore{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

// initSchema creates tables if they don't exist.
func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		id BIGSERIAL PRIMARY KEY,
		username TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		profile_pic TEXT NOT NULL DEFAULT '',
		user_id TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS p2p_messages (
		id TEXT PRIMARY KEY,
		sender_id TEXT NOT NULL,
		recipient_id TEXT NOT NULL,
		content TEXT NOT NULL,
		parent_id TEXT,
		parent_content TEXT,
		read BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS idx_messages_created_at ON messages(created_at);
	CREATE INDEX IF NOT EXISTS idx_p2p_recipient ON p2p_messages(recipient_id, created_at);
	`

	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// InsertMessages bulk-inserts a batch of general-room messages in one
// round trip.
func (s *PostgresStore) InsertMessages(ctx context.Context, msgs []model.ChatMessage) error {
	if len(msgs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, m := range msgs {
		createdAt := m.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		batch.Queue(`
			INSERT INTO messages (username, content, profile_pic, user_id, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, m.Username, m.Content, m.ProfilePic, m.UserID, createdAt)
	}

	return s.pool.SendBatch(ctx, batch).Close()
}

// CreateDirectMessage persists a directed message and returns the generated
// ULID.
func (s *PostgresStore) CreateDirectMessage(ctx context.Context, dm *model.DirectMessage) (string, error) {
	if dm.ID == "" {
		dm.ID = ulid.Make().String()
	}
	if dm.Timestamp.IsZero() {
		dm.Timestamp = time.Now()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO p2p_messages (id, sender_id, recipient_id, content, parent_id, parent_content, read, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, $8)
	`, dm.ID, dm.SenderID, dm.RecipientID, dm.Content, dm.ParentID, dm.ParentContent, dm.Read, dm.Timestamp)
	if err != nil {
		return "", err
	}

	return dm.ID, nil
}

// GetDirectMessage fetches a directed message by id.
func (s *PostgresStore) GetDirectMessage(ctx context.Context, id string) (*model.DirectMessage, error) {
	dm := &model.DirectMessage{}
	var parentID, parentContent *string

	err := s.pool.QueryRow(ctx, `
		SELECT id, sender_id, recipient_id, content, parent_id, parent_content, read, created_at
		FROM p2p_messages
		WHERE id = $1
	`, id).Scan(
		&dm.ID,
		&dm.SenderID,
		&dm.RecipientID,
		&dm.Content,
		&parentID,
		&parentContent,
		&dm.Read,
		&dm.Timestamp,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if parentID != nil {
		dm.ParentID = *parentID
	}
	if parentContent != nil {
		dm.ParentContent = *parentContent
	}

	return dm, nil
}

// MarkDirectMessageRead flips the read flag on an existing record.
func (s *PostgresStore) MarkDirectMessageRead(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE p2p_messages SET read = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
