package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/zapfesta/zapfesta/internal/dispatch"
	"github.com/zapfesta/zapfesta/internal/pkg/response"
	"github.com/zapfesta/zapfesta/internal/provider"
	"github.com/zapfesta/zapfesta/internal/service/instance"
	"github.com/zapfesta/zapfesta/internal/storage"
	"github.com/zapfesta/zapfesta/internal/storage/model"
)

type InstanceHandler struct {
	service     *instance.Service
	resolver    *dispatch.Resolver
	providerAPI *provider.Client
}

func NewInstanceHandler(service *instance.Service, resolver *dispatch.Resolver, providerAPI *provider.Client) *InstanceHandler {
	return &InstanceHandler{service: service, resolver: resolver, providerAPI: providerAPI}
}

func (h *InstanceHandler) Register(r *gin.RouterGroup) {
	r.POST("/instances", h.create)
	r.GET("/instances", h.list)
	r.GET("/instances/:id", h.get)
	r.DELETE("/instances/:id", h.delete)
	r.POST("/instances/:id/token", h.rotateToken)
	r.PUT("/instances/:id/status", h.updateStatus)
	r.GET("/instances/:id/qr.png", h.qrPNG)
}

type createInstanceRequest struct {
	Name          string `json:"name" binding:"required"`
	UnitID        string `json:"unitId" binding:"required"`
	ProviderToken string `json:"providerToken" binding:"required"`
}

func (h *InstanceHandler) create(c *gin.Context) {
	var req createInstanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err)
		return
	}

	inst, err := h.service.Create(c.Request.Context(), instance.CreateInput{
		Name:          req.Name,
		UnitID:        req.UnitID,
		ProviderToken: req.ProviderToken,
	})
	if err != nil {
		if errors.Is(err, instance.ErrInvalidName) || errors.Is(err, instance.ErrInvalidUnit) || errors.Is(err, instance.ErrInvalidToken) {
			response.Error(c, http.StatusBadRequest, err)
			return
		}
		response.Error(c, http.StatusInternalServerError, err)
		return
	}

	response.Success(c, http.StatusCreated, inst)
}

func (h *InstanceHandler) list(c *gin.Context) {
	instances, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err)
		return
	}
	response.Success(c, http.StatusOK, instances)
}

func (h *InstanceHandler) get(c *gin.Context) {
	inst, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			response.ErrorWithMessage(c, http.StatusNotFound, "instância não encontrada")
			return
		}
		response.Error(c, http.StatusInternalServerError, err)
		return
	}
	response.Success(c, http.StatusOK, inst)
}

func (h *InstanceHandler) delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			response.ErrorWithMessage(c, http.StatusNotFound, "instância não encontrada")
			return
		}
		response.Error(c, http.StatusInternalServerError, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "instância removida"})
}

type rotateTokenRequest struct {
	ProviderToken string `json:"providerToken" binding:"required"`
}

func (h *InstanceHandler) rotateToken(c *gin.Context) {
	var req rotateTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err)
		return
	}

	inst, err := h.service.RotateToken(c.Request.Context(), c.Param("id"), req.ProviderToken)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			response.ErrorWithMessage(c, http.StatusNotFound, "instância não encontrada")
			return
		}
		response.Error(c, http.StatusInternalServerError, err)
		return
	}
	response.Success(c, http.StatusOK, inst)
}

type updateStatusRequest struct {
	Status model.InstanceStatus `json:"status" binding:"required"`
}

func (h *InstanceHandler) updateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err)
		return
	}

	switch req.Status {
	case model.InstanceStatusPending, model.InstanceStatusConnected, model.InstanceStatusError, model.InstanceStatusDisconnected:
	default:
		response.ErrorWithMessage(c, http.StatusBadRequest, "status inválido")
		return
	}

	inst, err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			response.ErrorWithMessage(c, http.StatusNotFound, "instância não encontrada")
			return
		}
		response.Error(c, http.StatusInternalServerError, err)
		return
	}
	response.Success(c, http.StatusOK, inst)
}

// qrPNG busca o conteúdo do QR no provedor e devolve a imagem pronta para a
// UI exibir.
func (h *InstanceHandler) qrPNG(c *gin.Context) {
	inst, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			response.ErrorWithMessage(c, http.StatusNotFound, "instância não encontrada")
			return
		}
		response.Error(c, http.StatusInternalServerError, err)
		return
	}

	creds, err := h.resolver.CredentialsOf(inst)
	if err != nil {
		response.Error(c, http.StatusUnauthorized, err)
		return
	}

	code, err := h.providerAPI.QRCode(c.Request.Context(), creds)
	if err != nil {
		response.Error(c, http.StatusBadGateway, err)
		return
	}

	png, err := qrcode.Encode(code, qrcode.Medium, 256)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err)
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}
