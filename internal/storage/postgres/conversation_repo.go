package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/zapfesta/zapfesta/internal/storage"
	"github.com/zapfesta/zapfesta/internal/storage/model"
)

type conversationRepo struct {
	db *DB
}

func NewConversationRepository(db *DB) *conversationRepo {
	return &conversationRepo{db: db}
}

const conversationColumns = `id, instance_id, phone, COALESCE(contact_name, ''), COALESCE(contact_picture, ''),
	lead_id, bot_enabled, bot_step, bot_data, closed, favorite, is_team, is_freelancer, has_scheduled_visit,
	COALESCE(last_message_content, ''), last_message_from_me, last_message_at, created_at, updated_at`

func scanConversation(row pgx.Row) (model.Conversation, error) {
	var conv model.Conversation
	var botData []byte
	err := row.Scan(
		&conv.ID, &conv.InstanceID, &conv.Phone, &conv.ContactName, &conv.ContactPicture,
		&conv.LeadID, &conv.BotEnabled, &conv.BotStep, &botData, &conv.Closed, &conv.Favorite,
		&conv.IsTeam, &conv.IsFreelancer, &conv.HasScheduledVisit,
		&conv.LastMessageContent, &conv.LastMessageFromMe, &conv.LastMessageAt,
		&conv.CreatedAt, &conv.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Conversation{}, storage.ErrNotFound
	}
	if err != nil {
		return model.Conversation{}, err
	}
	if len(botData) > 0 {
		if err := json.Unmarshal(botData, &conv.BotData); err != nil {
			return model.Conversation{}, err
		}
	}
	return conv, nil
}

func marshalBotData(data map[string]string) ([]byte, error) {
	if data == nil {
		data = map[string]string{}
	}
	return json.Marshal(data)
}

func (r *conversationRepo) Create(ctx context.Context, conv model.Conversation) (model.Conversation, error) {
	if conv.ID == "" {
		conv.ID = uuid.New().String()
	}
	now := time.Now()
	conv.CreatedAt = now
	conv.UpdatedAt = now

	botData, err := marshalBotData(conv.BotData)
	if err != nil {
		return model.Conversation{}, err
	}

	query := `
		INSERT INTO conversations (
			id, instance_id, phone, contact_name, contact_picture, lead_id, bot_enabled, bot_step,
			bot_data, closed, favorite, is_team, is_freelancer, has_scheduled_visit,
			last_message_content, last_message_from_me, last_message_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING ` + conversationColumns

	return scanConversation(r.db.Pool.QueryRow(ctx, query,
		conv.ID, conv.InstanceID, conv.Phone, nullIfEmpty(conv.ContactName), nullIfEmpty(conv.ContactPicture),
		conv.LeadID, conv.BotEnabled, conv.BotStep, botData, conv.Closed, conv.Favorite,
		conv.IsTeam, conv.IsFreelancer, conv.HasScheduledVisit,
		nullIfEmpty(conv.LastMessageContent), conv.LastMessageFromMe, conv.LastMessageAt,
		conv.CreatedAt, conv.UpdatedAt,
	))
}

func (r *conversationRepo) GetByID(ctx context.Context, id string) (model.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = $1`
	return scanConversation(r.db.Pool.QueryRow(ctx, query, id))
}

func (r *conversationRepo) GetByInstanceAndPhone(ctx context.Context, instanceID, phone string) (model.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE instance_id = $1 AND phone = $2`
	return scanConversation(r.db.Pool.QueryRow(ctx, query, instanceID, phone))
}

func (r *conversationRepo) GetByLead(ctx context.Context, leadID string) (model.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE lead_id = $1 ORDER BY updated_at DESC LIMIT 1`
	return scanConversation(r.db.Pool.QueryRow(ctx, query, leadID))
}

func (r *conversationRepo) ListByInstance(ctx context.Context, instanceID string, limit int) ([]model.Conversation, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE instance_id = $1
		ORDER BY last_message_at DESC NULLS LAST
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, instanceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []model.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, conv)
	}

	return convs, rows.Err()
}

func (r *conversationRepo) Update(ctx context.Context, conv model.Conversation) (model.Conversation, error) {
	conv.UpdatedAt = time.Now()

	botData, err := marshalBotData(conv.BotData)
	if err != nil {
		return model.Conversation{}, err
	}

	query := `
		UPDATE conversations
		SET contact_name = $2, contact_picture = $3, lead_id = $4, bot_enabled = $5, bot_step = $6,
			bot_data = $7, closed = $8, favorite = $9, is_team = $10, is_freelancer = $11,
			has_scheduled_visit = $12, updated_at = $13
		WHERE id = $1
		RETURNING ` + conversationColumns

	return scanConversation(r.db.Pool.QueryRow(ctx, query,
		conv.ID, nullIfEmpty(conv.ContactName), nullIfEmpty(conv.ContactPicture), conv.LeadID,
		conv.BotEnabled, conv.BotStep, botData, conv.Closed, conv.Favorite, conv.IsTeam,
		conv.IsFreelancer, conv.HasScheduledVisit, conv.UpdatedAt,
	))
}

func (r *conversationRepo) UpdateLastMessage(ctx context.Context, id, content string, fromMe bool, at time.Time) error {
	query := `
		UPDATE conversations
		SET last_message_content = $2, last_message_from_me = $3, last_message_at = $4, updated_at = $4
		WHERE id = $1
	`
	result, err := r.db.Pool.Exec(ctx, query, id, content, fromMe, at)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}
