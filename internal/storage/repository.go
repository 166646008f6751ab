package storage

import (
	"context"
	"errors"
	"time"

	"github.com/zapfesta/zapfesta/internal/storage/model"
)

var ErrNotFound = errors.New("not found")

type InstanceRepository interface {
	Create(ctx context.Context, instance model.Instance) (model.Instance, error)
	GetByID(ctx context.Context, id string) (model.Instance, error)
	GetByPublicKey(ctx context.Context, publicKey string) (model.Instance, error)
	GetConnectedByUnit(ctx context.Context, unitID string) (model.Instance, error)
	List(ctx context.Context) ([]model.Instance, error)
	Update(ctx context.Context, instance model.Instance) (model.Instance, error)
	Delete(ctx context.Context, id string) error
}

type ConversationRepository interface {
	Create(ctx context.Context, conv model.Conversation) (model.Conversation, error)
	GetByID(ctx context.Context, id string) (model.Conversation, error)
	GetByInstanceAndPhone(ctx context.Context, instanceID, phone string) (model.Conversation, error)
	GetByLead(ctx context.Context, leadID string) (model.Conversation, error)
	ListByInstance(ctx context.Context, instanceID string, limit int) ([]model.Conversation, error)
	Update(ctx context.Context, conv model.Conversation) (model.Conversation, error)
	UpdateLastMessage(ctx context.Context, id, content string, fromMe bool, at time.Time) error
}

type MessageRepository interface {
	Create(ctx context.Context, msg model.Message) (model.Message, error)
	GetByID(ctx context.Context, id string) (model.Message, error)
	ListByConversation(ctx context.Context, conversationID string, limit int) ([]model.Message, error)
	Update(ctx context.Context, msg model.Message) error
}

type BotSettingsRepository interface {
	GetByInstance(ctx context.Context, instanceID string) (model.BotSettings, error)
	Save(ctx context.Context, settings model.BotSettings) (model.BotSettings, error)
}

type BotQuestionRepository interface {
	ListActiveByInstance(ctx context.Context, instanceID string) ([]model.BotQuestion, error)
	Save(ctx context.Context, question model.BotQuestion) (model.BotQuestion, error)
	Delete(ctx context.Context, id string) error
}

type LeadRepository interface {
	Create(ctx context.Context, lead model.Lead) (model.Lead, error)
	GetByID(ctx context.Context, id string) (model.Lead, error)
	GetByPhone(ctx context.Context, phone string) (model.Lead, error)
	Update(ctx context.Context, lead model.Lead) (model.Lead, error)
	List(ctx context.Context, unitID string, limit int) ([]model.Lead, error)
}

type LeadHistoryRepository interface {
	Append(ctx context.Context, entry model.LeadHistory) (model.LeadHistory, error)
	ListByLead(ctx context.Context, leadID string) ([]model.LeadHistory, error)
	HasAction(ctx context.Context, leadID, action string) (bool, error)
	// LeadIDsWithActionBetween retorna leads cujo histórico registra a ação
	// com o valor dado dentro da janela [from, to].
	LeadIDsWithActionBetween(ctx context.Context, action, newValue string, from, to time.Time) ([]string, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, n model.Notification) (model.Notification, error)
	ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]model.Notification, error)
	MarkRead(ctx context.Context, id string) error
}

type VipNumberRepository interface {
	Add(ctx context.Context, vip model.VipNumber) (model.VipNumber, error)
	Remove(ctx context.Context, id string) error
	ListByInstance(ctx context.Context, instanceID string) ([]model.VipNumber, error)
	Exists(ctx context.Context, instanceID, phone string) (bool, error)
}

type UserRepository interface {
	Create(ctx context.Context, user model.User) (model.User, error)
	GetByID(ctx context.Context, id string) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	// ListNotifiable retorna os usuários com permissão na unidade (ou em
	// todas) mais os administradores, sem duplicatas.
	ListNotifiable(ctx context.Context, unitID string) ([]model.User, error)
	GrantPermission(ctx context.Context, perm model.UserPermission) error
}
