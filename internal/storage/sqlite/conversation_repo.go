package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/zapfesta/zapfesta/internal/storage"
	"github.com/zapfesta/zapfesta/internal/storage/model"
)

type conversationRepo struct {
	db *DB
}

func NewConversationRepository(db *DB) *conversationRepo {
	return &conversationRepo{db: db}
}

const conversationColumns = `id, instance_id, phone, contact_name, contact_picture, lead_id,
	bot_enabled, bot_step, bot_data, closed, favorite, is_team, is_freelancer, has_scheduled_visit,
	last_message_content, last_message_from_me, last_message_at, created_at, updated_at`

func scanConversation(row rowScanner) (model.Conversation, error) {
	var conv model.Conversation
	var contactName, contactPicture, leadID, botStep, botData, lastContent, lastAt sql.NullString
	var botEnabled sql.NullBool
	var createdAt, updatedAt string

	err := row.Scan(
		&conv.ID, &conv.InstanceID, &conv.Phone, &contactName, &contactPicture, &leadID,
		&botEnabled, &botStep, &botData, &conv.Closed, &conv.Favorite, &conv.IsTeam,
		&conv.IsFreelancer, &conv.HasScheduledVisit, &lastContent, &conv.LastMessageFromMe,
		&lastAt, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Conversation{}, storage.ErrNotFound
	}
	if err != nil {
		return model.Conversation{}, err
	}

	conv.ContactName = contactName.String
	conv.ContactPicture = contactPicture.String
	conv.LeadID = ps(leadID)
	conv.BotEnabled = pb(botEnabled)
	conv.BotStep = ps(botStep)
	conv.LastMessageContent = lastContent.String
	conv.LastMessageAt = parseTimePtr(lastAt)
	conv.CreatedAt = parseTime(createdAt)
	conv.UpdatedAt = parseTime(updatedAt)

	if botData.Valid && botData.String != "" {
		if err := json.Unmarshal([]byte(botData.String), &conv.BotData); err != nil {
			return model.Conversation{}, err
		}
	}

	return conv, nil
}

func marshalBotData(data map[string]string) (string, error) {
	if data == nil {
		data = map[string]string{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return string(raw), nil
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
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.Conn.ExecContext(ctx, query,
		conv.ID, conv.InstanceID, conv.Phone, nsv(conv.ContactName), nsv(conv.ContactPicture),
		ns(conv.LeadID), nb(conv.BotEnabled), ns(conv.BotStep), botData, conv.Closed, conv.Favorite,
		conv.IsTeam, conv.IsFreelancer, conv.HasScheduledVisit, nsv(conv.LastMessageContent),
		conv.LastMessageFromMe, fmtTimePtr(conv.LastMessageAt), fmtTime(conv.CreatedAt), fmtTime(conv.UpdatedAt),
	)
	if err != nil {
		return model.Conversation{}, err
	}
	return conv, nil
}

func (r *conversationRepo) GetByID(ctx context.Context, id string) (model.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = ?`
	return scanConversation(r.db.Conn.QueryRowContext(ctx, query, id))
}

func (r *conversationRepo) GetByInstanceAndPhone(ctx context.Context, instanceID, phone string) (model.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE instance_id = ? AND phone = ?`
	return scanConversation(r.db.Conn.QueryRowContext(ctx, query, instanceID, phone))
}

func (r *conversationRepo) GetByLead(ctx context.Context, leadID string) (model.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE lead_id = ? ORDER BY updated_at DESC LIMIT 1`
	return scanConversation(r.db.Conn.QueryRowContext(ctx, query, leadID))
}

func (r *conversationRepo) ListByInstance(ctx context.Context, instanceID string, limit int) ([]model.Conversation, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE instance_id = ?
		ORDER BY last_message_at DESC
		LIMIT ?
	`

	rows, err := r.db.Conn.QueryContext(ctx, query, instanceID, limit)
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
		SET contact_name = ?, contact_picture = ?, lead_id = ?, bot_enabled = ?, bot_step = ?,
			bot_data = ?, closed = ?, favorite = ?, is_team = ?, is_freelancer = ?,
			has_scheduled_visit = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.Conn.ExecContext(ctx, query,
		nsv(conv.ContactName), nsv(conv.ContactPicture), ns(conv.LeadID), nb(conv.BotEnabled),
		ns(conv.BotStep), botData, conv.Closed, conv.Favorite, conv.IsTeam, conv.IsFreelancer,
		conv.HasScheduledVisit, fmtTime(conv.UpdatedAt), conv.ID,
	)
	if err != nil {
		return model.Conversation{}, err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return model.Conversation{}, storage.ErrNotFound
	}
	return conv, nil
}

func (r *conversationRepo) UpdateLastMessage(ctx context.Context, id, content string, fromMe bool, at time.Time) error {
	query := `
		UPDATE conversations
		SET last_message_content = ?, last_message_from_me = ?, last_message_at = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.Conn.ExecContext(ctx, query, content, fromMe, fmtTime(at), fmtTime(at), id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
