package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zapfesta/zapfesta/internal/pkg/response"
	"github.com/zapfesta/zapfesta/internal/storage"
)

type NotificationHandler struct {
	notifications storage.NotificationRepository
}

func NewNotificationHandler(notifications storage.NotificationRepository) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

func (h *NotificationHandler) Register(r *gin.RouterGroup) {
	r.GET("/notifications", h.list)
	r.PUT("/notifications/:id/read", h.markRead)
}

func (h *NotificationHandler) list(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		response.ErrorWithMessage(c, http.StatusUnauthorized, "usuário não autenticado")
		return
	}

	unreadOnly := c.Query("unread") == "true"
	limit := intQuery(c, "limit", 50)

	notifications, err := h.notifications.ListByUser(c.Request.Context(), userID, unreadOnly, limit)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err)
		return
	}
	response.Success(c, http.StatusOK, notifications)
}

func (h *NotificationHandler) markRead(c *gin.Context) {
	if err := h.notifications.MarkRead(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, http.StatusInternalServerError, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "notificação lida"})
}
