package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zapfesta/zapfesta/internal/storage"
	"github.com/zapfesta/zapfesta/internal/storage/model"
)

// Event descreve um acontecimento a ser distribuído aos usuários elegíveis
// da unidade: permissionados na unidade (ou em todas) mais administradores.
type Event struct {
	Type     string
	UnitID   string
	Title    string
	Message  string
	Priority model.NotificationPriority
	Data     map[string]interface{}
}

// Service é um fan-out puro: grava uma Notification por destinatário e nada
// mais; a entrega em tempo real observa as linhas inseridas.
type Service struct {
	users         storage.UserRepository
	notifications storage.NotificationRepository
	log           *zap.Logger
}

func NewService(users storage.UserRepository, notifications storage.NotificationRepository, log *zap.Logger) *Service {
	return &Service{users: users, notifications: notifications, log: log}
}

func (s *Service) FanOut(ctx context.Context, ev Event) error {
	recipients, err := s.users.ListNotifiable(ctx, ev.UnitID)
	if err != nil {
		return fmt.Errorf("notify: listar destinatários: %w", err)
	}

	priority := ev.Priority
	if priority == "" {
		priority = model.PriorityNormal
	}

	created := 0
	for _, user := range recipients {
		n := model.Notification{
			ID:        uuid.New().String(),
			UserID:    user.ID,
			Type:      ev.Type,
			Title:     ev.Title,
			Message:   ev.Message,
			Data:      ev.Data,
			Priority:  priority,
			CreatedAt: time.Now(),
		}
		if _, err := s.notifications.Create(ctx, n); err != nil {
			// Um destinatário com falha não bloqueia os demais.
			s.log.Error("notify: criar notificação",
				zap.String("userId", user.ID),
				zap.String("type", ev.Type),
				zap.Error(err),
			)
			continue
		}
		created++
	}

	s.log.Debug("notify: fan-out concluído",
		zap.String("type", ev.Type),
		zap.String("unitId", ev.UnitID),
		zap.Int("recipients", created),
	)
	return nil
}
