package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zapfesta/zapfesta/internal/pkg/response"
	"github.com/zapfesta/zapfesta/internal/storage"
	"github.com/zapfesta/zapfesta/internal/storage/model"
)

// BotConfigHandler administra as configurações e perguntas do bot por
// instância, além da lista de números VIP.
type BotConfigHandler struct {
	settings  storage.BotSettingsRepository
	questions storage.BotQuestionRepository
	vips      storage.VipNumberRepository
}

func NewBotConfigHandler(settings storage.BotSettingsRepository, questions storage.BotQuestionRepository, vips storage.VipNumberRepository) *BotConfigHandler {
	return &BotConfigHandler{settings: settings, questions: questions, vips: vips}
}

func (h *BotConfigHandler) Register(r *gin.RouterGroup) {
	r.GET("/instances/:id/bot/settings", h.getSettings)
	r.PUT("/instances/:id/bot/settings", h.saveSettings)
	r.GET("/instances/:id/bot/questions", h.listQuestions)
	r.PUT("/instances/:id/bot/questions", h.saveQuestion)
	r.DELETE("/bot/questions/:id", h.deleteQuestion)
	r.GET("/instances/:id/vips", h.listVips)
	r.POST("/instances/:id/vips", h.addVip)
	r.DELETE("/vips/:id", h.removeVip)
}

func (h *BotConfigHandler) getSettings(c *gin.Context) {
	settings, err := h.settings.GetByInstance(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			response.ErrorWithMessage(c, http.StatusNotFound, "configurações não encontradas")
			return
		}
		response.Error(c, http.StatusInternalServerError, err)
		return
	}
	response.Success(c, http.StatusOK, settings)
}

func (h *BotConfigHandler) saveSettings(c *gin.Context) {
	var settings model.BotSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		response.Error(c, http.StatusBadRequest, err)
		return
	}
	settings.InstanceID = c.Param("id")

	saved, err := h.settings.Save(c.Request.Context(), settings)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err)
		return
	}
	response.Success(c, http.StatusOK, saved)
}

func (h *BotConfigHandler) listQuestions(c *gin.Context) {
	questions, err := h.questions.ListActiveByInstance(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err)
		return
	}
	response.Success(c, http.StatusOK, questions)
}

func (h *BotConfigHandler) saveQuestion(c *gin.Context) {
	var question model.BotQuestion
	if err := c.ShouldBindJSON(&question); err != nil {
		response.Error(c, http.StatusBadRequest, err)
		return
	}
	if question.StepKey == "" {
		response.ErrorWithMessage(c, http.StatusBadRequest, "stepKey é obrigatório")
		return
	}
	question.InstanceID = c.Param("id")

	saved, err := h.questions.Save(c.Request.Context(), question)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err)
		return
	}
	response.Success(c, http.StatusOK, saved)
}

func (h *BotConfigHandler) deleteQuestion(c *gin.Context) {
	if err := h.questions.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, http.StatusInternalServerError, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "pergunta removida"})
}

func (h *BotConfigHandler) listVips(c *gin.Context) {
	vips, err := h.vips.ListByInstance(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err)
		return
	}
	response.Success(c, http.StatusOK, vips)
}

type addVipRequest struct {
	Phone string `json:"phone" binding:"required"`
	Label string `json:"label"`
}

func (h *BotConfigHandler) addVip(c *gin.Context) {
	var req addVipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err)
		return
	}

	vip, err := h.vips.Add(c.Request.Context(), model.VipNumber{
		InstanceID: c.Param("id"),
		Phone:      req.Phone,
		Label:      req.Label,
	})
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err)
		return
	}
	response.Success(c, http.StatusCreated, vip)
}

func (h *BotConfigHandler) removeVip(c *gin.Context) {
	if err := h.vips.Remove(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, http.StatusInternalServerError, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "número removido"})
}
