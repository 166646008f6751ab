package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/zapfesta/zapfesta/internal/pkg/response"
	"github.com/zapfesta/zapfesta/internal/storage"
)

// ConversationHandler é superfície de leitura para a UI externa; sem lógica
// de negócio, só repositório.
type ConversationHandler struct {
	conversations storage.ConversationRepository
	messages      storage.MessageRepository
}

func NewConversationHandler(conversations storage.ConversationRepository, messages storage.MessageRepository) *ConversationHandler {
	return &ConversationHandler{conversations: conversations, messages: messages}
}

func (h *ConversationHandler) Register(r *gin.RouterGroup) {
	r.GET("/instances/:id/conversations", h.list)
	r.GET("/conversations/:id", h.get)
	r.GET("/conversations/:id/messages", h.listMessages)
}

func (h *ConversationHandler) list(c *gin.Context) {
	limit := intQuery(c, "limit", 50)
	conversations, err := h.conversations.ListByInstance(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err)
		return
	}
	response.Success(c, http.StatusOK, conversations)
}

func (h *ConversationHandler) get(c *gin.Context) {
	conv, err := h.conversations.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			response.ErrorWithMessage(c, http.StatusNotFound, "conversa não encontrada")
			return
		}
		response.Error(c, http.StatusInternalServerError, err)
		return
	}
	response.Success(c, http.StatusOK, conv)
}

func (h *ConversationHandler) listMessages(c *gin.Context) {
	limit := intQuery(c, "limit", 100)
	messages, err := h.messages.ListByConversation(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err)
		return
	}
	response.Success(c, http.StatusOK, messages)
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
