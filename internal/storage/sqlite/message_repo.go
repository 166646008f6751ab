package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/zapfesta/zapfesta/internal/storage"
	"github.com/zapfesta/zapfesta/internal/storage/model"
)

type messageRepo struct {
	db *DB
}

func NewMessageRepository(db *DB) *messageRepo {
	return &messageRepo{db: db}
}

const messageColumns = `id, conversation_id, provider_id, from_me, type, content, media_url,
	media_key, media_direct_path, mime_type, status, timestamp, created_at`

func scanMessage(row rowScanner) (model.Message, error) {
	var msg model.Message
	var providerID, content, mediaURL, mediaKey, mediaDirectPath, mimeType sql.NullString
	var timestamp, createdAt string

	err := row.Scan(
		&msg.ID, &msg.ConversationID, &providerID, &msg.FromMe, &msg.Type, &content, &mediaURL,
		&mediaKey, &mediaDirectPath, &mimeType, &msg.Status, &timestamp, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Message{}, storage.ErrNotFound
	}
	if err != nil {
		return model.Message{}, err
	}

	msg.ProviderID = ps(providerID)
	msg.Content = content.String
	msg.MediaURL = ps(mediaURL)
	msg.MediaKey = ps(mediaKey)
	msg.MediaDirectPath = ps(mediaDirectPath)
	msg.MimeType = mimeType.String
	msg.Timestamp = parseTime(timestamp)
	msg.CreatedAt = parseTime(createdAt)
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
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Conn.ExecContext(ctx, query,
		msg.ID, msg.ConversationID, ns(msg.ProviderID), msg.FromMe, msg.Type, nsv(msg.Content),
		ns(msg.MediaURL), ns(msg.MediaKey), ns(msg.MediaDirectPath), nsv(msg.MimeType),
		string(msg.Status), fmtTime(msg.Timestamp), fmtTime(msg.CreatedAt),
	)
	if err != nil {
		return model.Message{}, err
	}
	return msg, nil
}

func (r *messageRepo) GetByID(ctx context.Context, id string) (model.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = ?`
	return scanMessage(r.db.Conn.QueryRowContext(ctx, query, id))
}

func (r *messageRepo) ListByConversation(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE conversation_id = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`

	rows, err := r.db.Conn.QueryContext(ctx, query, conversationID, limit)
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
		SET provider_id = ?, content = ?, media_url = ?, media_key = ?,
			media_direct_path = ?, mime_type = ?, status = ?
		WHERE id = ?
	`
	result, err := r.db.Conn.ExecContext(ctx, query,
		ns(msg.ProviderID), nsv(msg.Content), ns(msg.MediaURL), ns(msg.MediaKey),
		ns(msg.MediaDirectPath), nsv(msg.MimeType), string(msg.Status), msg.ID,
	)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
