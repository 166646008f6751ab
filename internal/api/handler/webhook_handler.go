package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/zapfesta/zapfesta/internal/bot"
	"github.com/zapfesta/zapfesta/internal/provider"
	"github.com/zapfesta/zapfesta/internal/service/conversation"
	"github.com/zapfesta/zapfesta/internal/storage"
)

// webhookPayload é o evento bruto do provedor de WhatsApp.
type webhookPayload struct {
	MessageID  string `json:"messageId"`
	From       string `json:"from"`
	FromMe     bool   `json:"fromMe"`
	PushName   string `json:"pushName"`
	ProfilePic string `json:"profilePic"`
	Type       string `json:"type"`
	Body       string `json:"body"`
	Media      *struct {
		URL        string `json:"url"`
		Key        string `json:"mediaKey"`
		DirectPath string `json:"directPath"`
		MimeType   string `json:"mimetype"`
	} `json:"media"`
}

// WebhookHandler recebe eventos do provedor, resolve a conversa e delega ao
// motor do bot. Responde 200 independentemente do desfecho do bot: o provedor
// não reentrega eventos.
type WebhookHandler struct {
	instances     storage.InstanceRepository
	conversations *conversation.Service
	engine        *bot.Engine
	log           *zap.Logger
}

func NewWebhookHandler(instances storage.InstanceRepository, conversations *conversation.Service, engine *bot.Engine, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		instances:     instances,
		conversations: conversations,
		engine:        engine,
		log:           log,
	}
}

func (h *WebhookHandler) Register(r *gin.RouterGroup) {
	r.POST("/webhook/:instanceKey", h.receive)
}

func (h *WebhookHandler) receive(c *gin.Context) {
	instanceKey := c.Param("instanceKey")

	var payload webhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.log.Warn("webhook: payload malformado",
			zap.String("instanceKey", instanceKey),
			zap.Error(err),
		)
		c.JSON(http.StatusBadRequest, gin.H{"error": "payload inválido"})
		return
	}

	inst, err := h.instances.GetByPublicKey(c.Request.Context(), instanceKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "instância não encontrada"})
			return
		}
		h.log.Error("webhook: resolver instância", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "erro interno"})
		return
	}

	ev := provider.InboundEvent{
		InstanceKey:    instanceKey,
		Phone:          payload.From,
		ContactName:    payload.PushName,
		ContactPicture: payload.ProfilePic,
		MessageID:      payload.MessageID,
		MessageType:    payload.Type,
		Content:        payload.Body,
		FromMe:         payload.FromMe,
	}
	if payload.Media != nil {
		ev.MediaURL = payload.Media.URL
		ev.MediaKey = payload.Media.Key
		ev.MediaDirectPath = payload.Media.DirectPath
		ev.MimeType = payload.Media.MimeType
	}

	// Ecos das próprias mensagens só atualizam o cache, nunca o bot.
	conv, err := h.conversations.Resolve(c.Request.Context(), inst, ev)
	if err != nil {
		// Falha de resolução de contato: loga e descarta o evento.
		h.log.Error("webhook: resolver conversa",
			zap.String("instanceId", inst.ID),
			zap.Error(err),
		)
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	if _, err := h.conversations.RecordInbound(c.Request.Context(), conv, ev); err != nil {
		h.log.Error("webhook: registrar mensagem",
			zap.String("conversationId", conv.ID),
			zap.Error(err),
		)
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	if !payload.FromMe {
		if err := h.engine.HandleInbound(c.Request.Context(), inst, conv, payload.Body); err != nil {
			// O bot falhar não muda a resposta: o evento já foi aceito.
			h.log.Error("webhook: processar bot",
				zap.String("conversationId", conv.ID),
				zap.Error(err),
			)
		}
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
