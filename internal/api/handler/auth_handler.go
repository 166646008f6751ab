package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zapfesta/zapfesta/internal/pkg/response"
	"github.com/zapfesta/zapfesta/internal/service/user"
	"github.com/zapfesta/zapfesta/internal/storage/model"
)

type AuthHandler struct {
	users *user.Service
}

func NewAuthHandler(users *user.Service) *AuthHandler {
	return &AuthHandler{users: users}
}

// Register registra a rota pública de login.
func (h *AuthHandler) Register(r *gin.RouterGroup) {
	r.POST("/auth/login", h.login)
}

// RegisterProtected registra as rotas de gestão de usuários (admin).
func (h *AuthHandler) RegisterProtected(r *gin.RouterGroup) {
	r.POST("/users", h.createUser)
	r.POST("/users/:id/permissions", h.grantPermission)
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err)
		return
	}

	token, u, err := h.users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, user.ErrInvalidCredentials) {
			response.ErrorWithMessage(c, http.StatusUnauthorized, "credenciais inválidas")
			return
		}
		response.Error(c, http.StatusInternalServerError, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"token": token, "user": u})
}

type createUserRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
}

func (h *AuthHandler) createUser(c *gin.Context) {
	if c.GetString("userRole") != model.RoleAdmin {
		response.ErrorWithMessage(c, http.StatusForbidden, "apenas administradores podem criar usuários")
		return
	}

	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err)
		return
	}

	u, err := h.users.Create(c.Request.Context(), user.CreateInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		if errors.Is(err, user.ErrInvalidInput) {
			response.Error(c, http.StatusBadRequest, err)
			return
		}
		response.Error(c, http.StatusInternalServerError, err)
		return
	}

	response.Success(c, http.StatusCreated, u)
}

type grantPermissionRequest struct {
	UnitID string `json:"unitId" binding:"required"`
}

func (h *AuthHandler) grantPermission(c *gin.Context) {
	if c.GetString("userRole") != model.RoleAdmin {
		response.ErrorWithMessage(c, http.StatusForbidden, "apenas administradores podem conceder permissões")
		return
	}

	var req grantPermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err)
		return
	}

	if err := h.users.GrantPermission(c.Request.Context(), c.Param("id"), req.UnitID); err != nil {
		response.Error(c, http.StatusInternalServerError, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"message": "permissão concedida"})
}
