package conversation

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zapfesta/zapfesta/internal/provider"
	"github.com/zapfesta/zapfesta/internal/storage"
	"github.com/zapfesta/zapfesta/internal/storage/model"
)

var nonDigitRe = regexp.MustCompile(`\D`)

// NormalizePhone reduz o identificador de contato do provedor a dígitos,
// descartando sufixos de JID ("5511999999999@s.whatsapp.net").
func NormalizePhone(raw string) string {
	if at := strings.IndexByte(raw, '@'); at >= 0 {
		raw = raw[:at]
	}
	return nonDigitRe.ReplaceAllString(raw, "")
}

type Service struct {
	conversations storage.ConversationRepository
	messages      storage.MessageRepository
	leads         storage.LeadRepository
	log           *zap.Logger
}

func NewService(conversations storage.ConversationRepository, messages storage.MessageRepository, leads storage.LeadRepository, log *zap.Logger) *Service {
	return &Service{
		conversations: conversations,
		messages:      messages,
		leads:         leads,
		log:           log,
	}
}

// Resolve carrega ou cria a conversa do contato nesta instância. Na criação,
// um lead pré-existente com o mesmo telefone é vinculado automaticamente.
func (s *Service) Resolve(ctx context.Context, inst model.Instance, ev provider.InboundEvent) (model.Conversation, error) {
	phone := NormalizePhone(ev.Phone)
	if phone == "" {
		return model.Conversation{}, fmt.Errorf("conversa: telefone inválido: %q", ev.Phone)
	}

	conv, err := s.conversations.GetByInstanceAndPhone(ctx, inst.ID, phone)
	if err == nil {
		return s.refreshContact(ctx, conv, ev)
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return model.Conversation{}, fmt.Errorf("conversa: buscar: %w", err)
	}

	conv = model.Conversation{
		ID:             uuid.New().String(),
		InstanceID:     inst.ID,
		Phone:          phone,
		ContactName:    ev.ContactName,
		ContactPicture: ev.ContactPicture,
	}

	if lead, err := s.leads.GetByPhone(ctx, phone); err == nil {
		conv.LeadID = &lead.ID
	} else if !errors.Is(err, storage.ErrNotFound) {
		return model.Conversation{}, fmt.Errorf("conversa: buscar lead: %w", err)
	}

	conv, err = s.conversations.Create(ctx, conv)
	if err != nil {
		return model.Conversation{}, fmt.Errorf("conversa: criar: %w", err)
	}

	s.log.Info("conversa criada",
		zap.String("conversationId", conv.ID),
		zap.String("instanceId", inst.ID),
		zap.Bool("leadLinked", conv.LeadID != nil),
	)
	return conv, nil
}

func (s *Service) refreshContact(ctx context.Context, conv model.Conversation, ev provider.InboundEvent) (model.Conversation, error) {
	changed := false
	if ev.ContactName != "" && ev.ContactName != conv.ContactName {
		conv.ContactName = ev.ContactName
		changed = true
	}
	if ev.ContactPicture != "" && ev.ContactPicture != conv.ContactPicture {
		conv.ContactPicture = ev.ContactPicture
		changed = true
	}
	if !changed {
		return conv, nil
	}

	updated, err := s.conversations.Update(ctx, conv)
	if err != nil {
		return model.Conversation{}, fmt.Errorf("conversa: atualizar contato: %w", err)
	}
	return updated, nil
}

// RecordInbound persiste a mensagem recebida e atualiza o resumo da conversa.
// Esse cache é atualizado mesmo quando o bot não vai processar a mensagem.
func (s *Service) RecordInbound(ctx context.Context, conv model.Conversation, ev provider.InboundEvent) (model.Message, error) {
	now := time.Now()

	msg := model.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		FromMe:         ev.FromMe,
		Type:           messageType(ev.MessageType),
		Content:        ev.Content,
		MimeType:       ev.MimeType,
		Status:         model.MessageStatusReceived,
		Timestamp:      now,
	}
	if ev.MessageID != "" {
		providerID := ev.MessageID
		msg.ProviderID = &providerID
	}
	if ev.MediaURL != "" {
		mediaURL := ev.MediaURL
		msg.MediaURL = &mediaURL
	}
	if ev.MediaKey != "" {
		key := ev.MediaKey
		msg.MediaKey = &key
	}
	if ev.MediaDirectPath != "" {
		path := ev.MediaDirectPath
		msg.MediaDirectPath = &path
	}

	msg, err := s.messages.Create(ctx, msg)
	if err != nil {
		return model.Message{}, fmt.Errorf("conversa: persistir mensagem: %w", err)
	}

	if err := s.conversations.UpdateLastMessage(ctx, conv.ID, previewOf(msg), ev.FromMe, now); err != nil {
		s.log.Error("conversa: atualizar resumo",
			zap.String("conversationId", conv.ID),
			zap.Error(err),
		)
	}

	return msg, nil
}

func messageType(t string) string {
	switch t {
	case "image", "audio", "video", "document":
		return t
	default:
		return "text"
	}
}

func previewOf(msg model.Message) string {
	switch msg.Type {
	case "image":
		return "📷 Imagem"
	case "audio":
		return "🎤 Áudio"
	case "video":
		return "🎥 Vídeo"
	case "document":
		return "📄 Documento"
	default:
		return msg.Content
	}
}
