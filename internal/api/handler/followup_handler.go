package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zapfesta/zapfesta/internal/followup"
	"github.com/zapfesta/zapfesta/internal/pkg/response"
)

// FollowupHandler expõe o gatilho de cron para o scheduler; o agendamento em
// si é de um timer externo.
type FollowupHandler struct {
	scheduler *followup.Scheduler
}

func NewFollowupHandler(scheduler *followup.Scheduler) *FollowupHandler {
	return &FollowupHandler{scheduler: scheduler}
}

func (h *FollowupHandler) Register(r *gin.RouterGroup) {
	r.POST("/cron/followups", h.run)
}

func (h *FollowupHandler) run(c *gin.Context) {
	result := h.scheduler.Run(c.Request.Context())
	response.Success(c, http.StatusOK, result)
}
