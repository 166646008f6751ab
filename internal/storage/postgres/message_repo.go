package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/zapfesta/zapfesta/internal/storage"
	"github.com/zapfesta/zapfesta/internal/storage/model"
)

type messageRepo struct {
	db *DB
}

func NewMessageRepository(db *DB) *messageRepo {
	return &messageRepo{db: db}
}

const messageColumns = `id, conversation_id, provider_id, from_me, type, COALESCE(content, ''),
	media_url, media_key, media_direct_path, COALESCE(mime_type, ''), status, timestamp, created_at`

func scanMessage(row pgx.Row) (model.Message, error) {
	var msg model.Message
	err := row.Scan(
		&msg.ID, &msg.ConversationID, &msg.ProviderID, &msg.FromMe, &msg.Type, &msg.Content,
		&msg.MediaURL, &msg.MediaKey, &msg.MediaDirectPath, &msg.MimeType, &msg.Status,
		&msg.Timestamp, &msg.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Message{}, storage.ErrNotFound
	}
	if err != nil {
		return model.Message{}, err
	}
	return msg, nil
}

func (r *messageRepo) Create(ctx context.Context, msg model.Message) (model.Message, error) {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	msg.CreatedAt = time.Now()

	query := `
		INSERT INTO messages (
			id, conversation_id, provider_id, from_me, type, content, media_url, media_key,
			media_direct_path, mime_type, status, timestamp, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING ` + messageColumns

	return scanMessage(r.db.Pool.QueryRow(ctx, query,
		msg.ID, msg.ConversationID, msg.ProviderID, msg.FromMe, msg.Type, nullIfEmpty(msg.Content),
		msg.MediaURL, msg.MediaKey, msg.MediaDirectPath, nullIfEmpty(msg.MimeType), string(msg.Status),
		msg.Timestamp, msg.CreatedAt,
	))
}

func (r *messageRepo) GetByID(ctx context.Context, id string) (model.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`
	return scanMessage(r.db.Pool.QueryRow(ctx, query, id))
}

func (r *messageRepo) ListByConversation(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE conversation_id = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []model.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}

	return msgs, rows.Err()
}

func (r *messageRepo) Update(ctx context.Context, msg model.Message) error {
	query := `
		UPDATE messages
		SET provider_id = $2, content = $3, media_url = $4, media_key = $5,
			media_direct_path = $6, mime_type = $7, status = $8
		WHERE id = $1
	`
	result, err := r.db.Pool.Exec(ctx, query,
		msg.ID, msg.ProviderID, nullIfEmpty(msg.Content), msg.MediaURL, msg.MediaKey,
		msg.MediaDirectPath, nullIfEmpty(msg.MimeType), string(msg.Status),
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}
