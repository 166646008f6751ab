package handler

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/zapfesta/zapfesta/internal/config"
	"github.com/zapfesta/zapfesta/internal/pkg/ratelimiter"
	"github.com/zapfesta/zapfesta/internal/service/conversation"
	"github.com/zapfesta/zapfesta/internal/storage"
	"github.com/zapfesta/zapfesta/internal/storage/model"
)

var (
	forbiddenCharsRe = regexp.MustCompile(`[<>{}]`)
	emailRe          = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

var validMonths = map[string]bool{
	"Janeiro": true, "Fevereiro": true, "Março": true, "Abril": true,
	"Maio": true, "Junho": true, "Julho": true, "Agosto": true,
	"Setembro": true, "Outubro": true, "Novembro": true, "Dezembro": true,
}

// LeadPublicHandler recebe cadastros públicos de leads (campanhas e B2B) com
// validação estrita e janela fixa de limitação por identidade normalizada.
type LeadPublicHandler struct {
	leads   storage.LeadRepository
	limiter ratelimiter.Limiter
	cfg     config.IngestConfig
	units   []string
	log     *zap.Logger
}

func NewLeadPublicHandler(leads storage.LeadRepository, limiter ratelimiter.Limiter, cfg config.IngestConfig, units []string, log *zap.Logger) *LeadPublicHandler {
	return &LeadPublicHandler{
		leads:   leads,
		limiter: limiter,
		cfg:     cfg,
		units:   units,
		log:     log,
	}
}

func (h *LeadPublicHandler) Register(r *gin.RouterGroup) {
	r.POST("/public/leads", h.createLead)
	r.POST("/public/leads/b2b", h.createB2BLead)
}

type publicLeadRequest struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	UnitID     string `json:"unitId"`
	EventMonth string `json:"eventMonth"`
	Source     string `json:"source"`
}

func (h *LeadPublicHandler) createLead(c *gin.Context) {
	var req publicLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "corpo da requisição inválido"})
		return
	}

	if msg := h.validateCommon(req.Name, req.UnitID, req.EventMonth); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	phone := conversation.NormalizePhone(req.Phone)
	if len(phone) < 10 || len(phone) > 13 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "telefone inválido"})
		return
	}

	if !h.allow(c, "ingest:lead:"+phone, h.cfg.LeadRequests) {
		return
	}

	lead := model.Lead{
		Name:       strings.TrimSpace(req.Name),
		Phone:      phone,
		UnitID:     req.UnitID,
		EventMonth: req.EventMonth,
		Status:     model.LeadStatusNew,
		Source:     sourceOrDefault(req.Source, "landing_page"),
	}
	if _, err := h.leads.Create(c.Request.Context(), lead); err != nil {
		h.log.Error("ingestão: criar lead", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "não foi possível registrar o lead"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

type publicB2BLeadRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Company string `json:"company"`
	UnitID  string `json:"unitId"`
}

func (h *LeadPublicHandler) createB2BLead(c *gin.Context) {
	var req publicB2BLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "corpo da requisição inválido"})
		return
	}

	if msg := h.validateCommon(req.Name, req.UnitID, ""); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}
	if len(req.Company) > 120 || forbiddenCharsRe.MatchString(req.Company) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empresa inválida"})
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if len(email) > 254 || !emailRe.MatchString(email) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "e-mail inválido"})
		return
	}

	if !h.allow(c, "ingest:b2b:"+email, h.cfg.B2BRequests) {
		return
	}

	notes := ""
	if req.Company != "" {
		notes = "Empresa: " + strings.TrimSpace(req.Company)
	}

	lead := model.Lead{
		Name:   strings.TrimSpace(req.Name),
		Email:  email,
		UnitID: req.UnitID,
		Status: model.LeadStatusNew,
		Notes:  notes,
		Source: "b2b",
	}
	if _, err := h.leads.Create(c.Request.Context(), lead); err != nil {
		h.log.Error("ingestão: criar lead b2b", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "não foi possível registrar o lead"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// validateCommon cobre nome, unidade e mês; campos vazios opcionais passam.
func (h *LeadPublicHandler) validateCommon(name, unitID, eventMonth string) string {
	name = strings.TrimSpace(name)
	if len(name) < 2 || len(name) > 120 {
		return "nome deve ter entre 2 e 120 caracteres"
	}
	if forbiddenCharsRe.MatchString(name) {
		return "nome contém caracteres não permitidos"
	}

	if unitID == "" || !h.validUnit(unitID) {
		return "unidade inválida"
	}

	if eventMonth != "" && !validMonths[eventMonth] {
		return "mês inválido"
	}
	return ""
}

func (h *LeadPublicHandler) validUnit(unitID string) bool {
	if len(h.units) == 0 {
		// Sem catálogo configurado, aceita qualquer unidade bem formada.
		return !forbiddenCharsRe.MatchString(unitID) && len(unitID) <= 64
	}
	for _, u := range h.units {
		if u == unitID {
			return true
		}
	}
	return false
}

// allow aplica a janela fixa por identidade; 429 encerra a requisição.
func (h *LeadPublicHandler) allow(c *gin.Context, key string, limit int) bool {
	window := time.Duration(h.cfg.WindowSeconds) * time.Second
	res, err := h.limiter.Allow(c.Request.Context(), key, limit, window)
	if err != nil {
		h.log.Error("ingestão: limiter indisponível", zap.Error(err))
		// Limiter fora do ar não bloqueia a captação.
		return true
	}
	if !res.Allowed {
		c.Header("Retry-After", fmt.Sprintf("%d", int(res.RetryAfter.Seconds())))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "muitas tentativas. tente novamente mais tarde"})
		return false
	}
	return true
}

func sourceOrDefault(source, fallback string) string {
	source = strings.TrimSpace(source)
	if source == "" || len(source) > 64 || forbiddenCharsRe.MatchString(source) {
		return fallback
	}
	return source
}
