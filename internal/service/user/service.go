package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/zapfesta/zapfesta/internal/config"
	"github.com/zapfesta/zapfesta/internal/storage"
	"github.com/zapfesta/zapfesta/internal/storage/model"
)

var (
	ErrInvalidCredentials = errors.New("credenciais inválidas")
	ErrInvalidInput       = errors.New("dados de usuário inválidos")
)

type Service struct {
	repo storage.UserRepository
	jwt  config.JWTConfig
}

func NewService(repo storage.UserRepository, jwtCfg config.JWTConfig) *Service {
	return &Service{repo: repo, jwt: jwtCfg}
}

type CreateInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

func (s *Service) Create(ctx context.Context, input CreateInput) (model.User, error) {
	if strings.TrimSpace(input.Name) == "" || strings.TrimSpace(input.Email) == "" || len(input.Password) < 6 {
		return model.User{}, ErrInvalidInput
	}

	role := input.Role
	if role != model.RoleAdmin {
		role = model.RoleAtendente
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return model.User{}, fmt.Errorf("usuário: gerar hash: %w", err)
	}

	return s.repo.Create(ctx, model.User{
		Name:         strings.TrimSpace(input.Name),
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		PasswordHash: string(hash),
		Role:         role,
	})
}

// Login valida a senha e emite o JWT de sessão.
func (s *Service) Login(ctx context.Context, email, password string) (string, model.User, error) {
	user, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", model.User{}, ErrInvalidCredentials
		}
		return "", model.User{}, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", model.User{}, ErrInvalidCredentials
	}

	expHours := s.jwt.ExpHours
	if expHours <= 0 {
		expHours = 24
	}

	claims := jwt.MapClaims{
		"sub":  user.ID,
		"role": user.Role,
		"exp":  time.Now().Add(time.Duration(expHours) * time.Hour).Unix(),
		"iat":  time.Now().Unix(),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.jwt.Secret))
	if err != nil {
		return "", model.User{}, fmt.Errorf("usuário: assinar token: %w", err)
	}

	return token, user, nil
}

func (s *Service) GrantPermission(ctx context.Context, userID, unitID string) error {
	if strings.TrimSpace(unitID) == "" {
		return ErrInvalidInput
	}
	return s.repo.GrantPermission(ctx, model.UserPermission{UserID: userID, UnitID: unitID})
}
