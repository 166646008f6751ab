package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/zapfesta/zapfesta/internal/dispatch"
	"github.com/zapfesta/zapfesta/internal/media"
	"github.com/zapfesta/zapfesta/internal/pkg/response"
	"github.com/zapfesta/zapfesta/internal/provider"
	"github.com/zapfesta/zapfesta/internal/storage"
)

// actionRequest é o envelope da API interna de ações: um único endpoint, o
// campo action seleciona a operação.
type actionRequest struct {
	Action         string `json:"action"`
	InstanceID     string `json:"instanceId"`
	Token          string `json:"token"`
	UnitID         string `json:"unitId"`
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId"`
	To             string `json:"to"`
	Text           string `json:"text"`
	MediaURL       string `json:"mediaUrl"`
	Caption        string `json:"caption"`
	FileName       string `json:"fileName"`
	Phone          string `json:"phone"`
}

type DispatchHandler struct {
	dispatcher    *dispatch.Dispatcher
	resolver      *dispatch.Resolver
	pipeline      *media.Pipeline
	providerAPI   *provider.Client
	conversations storage.ConversationRepository
	messages      storage.MessageRepository
	log           *zap.Logger
}

func NewDispatchHandler(
	dispatcher *dispatch.Dispatcher,
	resolver *dispatch.Resolver,
	pipeline *media.Pipeline,
	providerAPI *provider.Client,
	conversations storage.ConversationRepository,
	messages storage.MessageRepository,
	log *zap.Logger,
) *DispatchHandler {
	return &DispatchHandler{
		dispatcher:    dispatcher,
		resolver:      resolver,
		pipeline:      pipeline,
		providerAPI:   providerAPI,
		conversations: conversations,
		messages:      messages,
		log:           log,
	}
}

func (h *DispatchHandler) Register(r *gin.RouterGroup) {
	r.POST("/actions", h.dispatchAction)
}

var sendKinds = map[string]dispatch.Kind{
	"send_text":     dispatch.KindText,
	"send_image":    dispatch.KindImage,
	"send_audio":    dispatch.KindAudio,
	"send_video":    dispatch.KindVideo,
	"send_document": dispatch.KindDocument,
}

func (h *DispatchHandler) dispatchAction(c *gin.Context) {
	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithMessage(c, http.StatusBadRequest, "corpo da requisição inválido")
		return
	}

	if kind, ok := sendKinds[req.Action]; ok {
		h.send(c, kind, req)
		return
	}

	switch req.Action {
	case "persist_media":
		h.persistMedia(c, req)
	case "qr_code":
		h.qrCode(c, req)
	case "pairing_code":
		h.pairingCode(c, req)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "acao_desconhecida"})
	}
}

func (h *DispatchHandler) resolveCreds(c *gin.Context, req actionRequest) (provider.Credentials, bool) {
	var explicit *provider.Credentials
	if req.InstanceID != "" && req.Token != "" {
		explicit = &provider.Credentials{InstanceID: req.InstanceID, Token: req.Token}
	}

	creds, err := h.resolver.Resolve(c.Request.Context(), explicit, req.UnitID, c.GetString("instanceID"))
	if err != nil {
		switch {
		case errors.Is(err, dispatch.ErrNoConnectedInstance), errors.Is(err, dispatch.ErrInstanceNotFound):
			response.Error(c, http.StatusNotFound, err)
		case errors.Is(err, dispatch.ErrMissingCredentials):
			response.Error(c, http.StatusUnauthorized, err)
		default:
			h.log.Error("actions: resolver credenciais", zap.Error(err))
			response.ErrorWithMessage(c, http.StatusInternalServerError, "erro interno")
		}
		return provider.Credentials{}, false
	}
	return creds, true
}

func (h *DispatchHandler) send(c *gin.Context, kind dispatch.Kind, req actionRequest) {
	if req.ConversationID == "" {
		response.ErrorWithMessage(c, http.StatusBadRequest, "conversationId é obrigatório")
		return
	}

	conv, err := h.conversations.GetByID(c.Request.Context(), req.ConversationID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			response.ErrorWithMessage(c, http.StatusNotFound, "conversa não encontrada")
			return
		}
		response.Error(c, http.StatusInternalServerError, err)
		return
	}

	creds, ok := h.resolveCreds(c, req)
	if !ok {
		return
	}

	msg, err := h.dispatcher.Send(c.Request.Context(), kind, creds, conv, dispatch.Payload{
		Text:     req.Text,
		MediaURL: req.MediaURL,
		Caption:  req.Caption,
		FileName: req.FileName,
	})
	if err != nil {
		response.Error(c, http.StatusBadGateway, err)
		return
	}

	response.Success(c, http.StatusOK, msg)
}

func (h *DispatchHandler) persistMedia(c *gin.Context, req actionRequest) {
	if req.MessageID == "" {
		response.ErrorWithMessage(c, http.StatusBadRequest, "messageId é obrigatório")
		return
	}

	msg, err := h.messages.GetByID(c.Request.Context(), req.MessageID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			response.ErrorWithMessage(c, http.StatusNotFound, "mensagem não encontrada")
			return
		}
		response.Error(c, http.StatusInternalServerError, err)
		return
	}

	creds, ok := h.resolveCreds(c, req)
	if !ok {
		return
	}

	url, err := h.pipeline.Persist(c.Request.Context(), creds, msg)
	if err != nil {
		if media.IsRetryable(err) {
			response.Success(c, http.StatusOK, gin.H{"retryable": true, "error": err.Error()})
			return
		}
		response.Error(c, http.StatusGone, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"mediaUrl": url})
}

func (h *DispatchHandler) qrCode(c *gin.Context, req actionRequest) {
	creds, ok := h.resolveCreds(c, req)
	if !ok {
		return
	}

	code, err := h.providerAPI.QRCode(c.Request.Context(), creds)
	if err != nil {
		response.Error(c, http.StatusBadGateway, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"code": code})
}

func (h *DispatchHandler) pairingCode(c *gin.Context, req actionRequest) {
	if req.Phone == "" {
		response.ErrorWithMessage(c, http.StatusBadRequest, "phone é obrigatório")
		return
	}

	creds, ok := h.resolveCreds(c, req)
	if !ok {
		return
	}

	code, err := h.providerAPI.PairingCode(c.Request.Context(), creds, req.Phone)
	if err != nil {
		response.Error(c, http.StatusBadGateway, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"code": code})
}
