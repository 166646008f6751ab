package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	mediastore "github.com/zapfesta/zapfesta/internal/storage/media"
)

// MediaHandler serve mídia persistida mediante URL assinada (exp + sig).
type MediaHandler struct {
	store *mediastore.Storage
}

func NewMediaHandler(store *mediastore.Storage) *MediaHandler {
	return &MediaHandler{store: store}
}

func (h *MediaHandler) Register(r *gin.RouterGroup) {
	r.GET("/media/:instanceId/:mediaId", h.serve)
}

func (h *MediaHandler) serve(c *gin.Context) {
	instanceID := c.Param("instanceId")
	mediaID := c.Param("mediaId")

	exp, err := strconv.ParseInt(c.Query("exp"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "assinatura ausente"})
		return
	}

	if !h.store.Verify(instanceID, mediaID, exp, c.Query("sig")) {
		c.JSON(http.StatusForbidden, gin.H{"error": "assinatura inválida ou expirada"})
		return
	}

	path, err := h.store.Open(instanceID, mediaID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "mídia não encontrada"})
		return
	}

	c.File(path)
}
