package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zapfesta/zapfesta/internal/pkg/response"
	"github.com/zapfesta/zapfesta/internal/storage"
	"github.com/zapfesta/zapfesta/internal/storage/model"
)

type LeadHandler struct {
	leads   storage.LeadRepository
	history storage.LeadHistoryRepository
}

func NewLeadHandler(leads storage.LeadRepository, history storage.LeadHistoryRepository) *LeadHandler {
	return &LeadHandler{leads: leads, history: history}
}

func (h *LeadHandler) Register(r *gin.RouterGroup) {
	r.GET("/leads", h.list)
	r.GET("/leads/:id", h.get)
	r.GET("/leads/:id/history", h.listHistory)
	r.PUT("/leads/:id/status", h.updateStatus)
}

var validLeadStatuses = map[model.LeadStatus]bool{
	model.LeadStatusNew:              true,
	model.LeadStatusInContact:        true,
	model.LeadStatusQuoteSent:        true,
	model.LeadStatusAwaitingResponse: true,
	model.LeadStatusClosed:           true,
	model.LeadStatusLost:             true,
	model.LeadStatusTransferred:      true,
}

func (h *LeadHandler) list(c *gin.Context) {
	limit := intQuery(c, "limit", 100)
	leads, err := h.leads.List(c.Request.Context(), c.Query("unitId"), limit)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err)
		return
	}
	response.Success(c, http.StatusOK, leads)
}

func (h *LeadHandler) get(c *gin.Context) {
	lead, err := h.leads.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			response.ErrorWithMessage(c, http.StatusNotFound, "lead não encontrado")
			return
		}
		response.Error(c, http.StatusInternalServerError, err)
		return
	}
	response.Success(c, http.StatusOK, lead)
}

func (h *LeadHandler) updateStatus(c *gin.Context) {
	var req struct {
		Status model.LeadStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithMessage(c, http.StatusBadRequest, "status obrigatório")
		return
	}
	if !validLeadStatuses[req.Status] {
		response.ErrorWithMessage(c, http.StatusBadRequest, "status inválido")
		return
	}

	ctx := c.Request.Context()
	lead, err := h.leads.GetByID(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			response.ErrorWithMessage(c, http.StatusNotFound, "lead não encontrado")
			return
		}
		response.Error(c, http.StatusInternalServerError, err)
		return
	}

	oldStatus := lead.Status
	if oldStatus == req.Status {
		response.Success(c, http.StatusOK, lead)
		return
	}

	lead.Status = req.Status
	lead, err = h.leads.Update(ctx, lead)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err)
		return
	}

	actor := c.GetString("userID")
	if actor == "" {
		actor = "sistema"
	}
	if _, err := h.history.Append(ctx, model.LeadHistory{
		LeadID:   lead.ID,
		Action:   model.HistoryActionStatus,
		OldValue: string(oldStatus),
		NewValue: string(req.Status),
		Actor:    actor,
	}); err != nil {
		// O status já mudou; a falha no histórico não reverte a operação.
		response.Error(c, http.StatusInternalServerError, err)
		return
	}

	response.Success(c, http.StatusOK, lead)
}

func (h *LeadHandler) listHistory(c *gin.Context) {
	entries, err := h.history.ListByLead(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err)
		return
	}
	response.Success(c, http.StatusOK, entries)
}
