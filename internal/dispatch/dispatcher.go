package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zapfesta/zapfesta/internal/provider"
	"github.com/zapfesta/zapfesta/internal/storage"
	"github.com/zapfesta/zapfesta/internal/storage/model"
)

type Kind string

const (
	KindText     Kind = "text"
	KindImage    Kind = "image"
	KindAudio    Kind = "audio"
	KindVideo    Kind = "video"
	KindDocument Kind = "document"
)

// Payload carrega o conteúdo do envio; os campos usados dependem do Kind.
type Payload struct {
	Text     string
	MediaURL string
	Caption  string
	FileName string
	MimeType string
}

// Provider é a fatia do cliente do provedor que o dispatcher consome.
type Provider interface {
	SendText(ctx context.Context, creds provider.Credentials, to, text string) (string, error)
	SendImage(ctx context.Context, creds provider.Credentials, to, mediaURL, caption string) (string, error)
	SendAudio(ctx context.Context, creds provider.Credentials, to, mediaURL string) (string, error)
	SendVideo(ctx context.Context, creds provider.Credentials, to, mediaURL, caption string) (string, error)
	SendDocument(ctx context.Context, creds provider.Credentials, to, mediaURL, fileName string) (string, error)
}

// Dispatcher envia mensagens pelo provedor e, apenas em caso de sucesso,
// persiste a Message e atualiza o resumo da conversa. Falha do provedor não
// grava nada; retry é responsabilidade do chamador.
type Dispatcher struct {
	provider      Provider
	messages      storage.MessageRepository
	conversations storage.ConversationRepository
	log           *zap.Logger
}

func New(p Provider, messages storage.MessageRepository, conversations storage.ConversationRepository, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		provider:      p,
		messages:      messages,
		conversations: conversations,
		log:           log,
	}
}

func (d *Dispatcher) Send(ctx context.Context, kind Kind, creds provider.Credentials, conv model.Conversation, p Payload) (model.Message, error) {
	providerID, err := d.callProvider(ctx, kind, creds, conv.Phone, p)
	if err != nil {
		d.log.Warn("dispatch: envio falhou",
			zap.String("kind", string(kind)),
			zap.String("conversationId", conv.ID),
			zap.Error(err),
		)
		return model.Message{}, err
	}

	now := time.Now()
	msg := model.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		FromMe:         true,
		Type:           string(kind),
		Content:        contentOf(kind, p),
		MimeType:       p.MimeType,
		Status:         model.MessageStatusSent,
		Timestamp:      now,
	}
	if providerID != "" {
		msg.ProviderID = &providerID
	}
	if p.MediaURL != "" {
		mediaURL := p.MediaURL
		msg.MediaURL = &mediaURL
	}

	msg, err = d.messages.Create(ctx, msg)
	if err != nil {
		return model.Message{}, fmt.Errorf("dispatch: persistir mensagem: %w", err)
	}

	if err := d.conversations.UpdateLastMessage(ctx, conv.ID, Preview(kind, p), true, now); err != nil {
		// A mensagem já foi enviada e gravada; só registra a falha do cache.
		d.log.Error("dispatch: atualizar resumo da conversa",
			zap.String("conversationId", conv.ID),
			zap.Error(err),
		)
	}

	return msg, nil
}

func (d *Dispatcher) callProvider(ctx context.Context, kind Kind, creds provider.Credentials, to string, p Payload) (string, error) {
	switch kind {
	case KindText:
		return d.provider.SendText(ctx, creds, to, p.Text)
	case KindImage:
		return d.provider.SendImage(ctx, creds, to, p.MediaURL, p.Caption)
	case KindAudio:
		return d.provider.SendAudio(ctx, creds, to, p.MediaURL)
	case KindVideo:
		return d.provider.SendVideo(ctx, creds, to, p.MediaURL, p.Caption)
	case KindDocument:
		return d.provider.SendDocument(ctx, creds, to, p.MediaURL, p.FileName)
	default:
		return "", fmt.Errorf("dispatch: tipo de envio desconhecido: %s", kind)
	}
}

func contentOf(kind Kind, p Payload) string {
	if kind == KindText {
		return p.Text
	}
	if p.Caption != "" {
		return p.Caption
	}
	return p.FileName
}
