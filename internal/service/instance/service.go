package instance

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/zapfesta/zapfesta/internal/pkg/crypto"
	"github.com/zapfesta/zapfesta/internal/storage"
	"github.com/zapfesta/zapfesta/internal/storage/model"
)

var (
	ErrInvalidName  = errors.New("nome da instância inválido")
	ErrInvalidUnit  = errors.New("unidade da instância é obrigatória")
	ErrInvalidToken = errors.New("token do provedor é obrigatório")
)

// Service gerencia as conexões de WhatsApp configuradas pelo operador. O
// token do provedor é criptografado em repouso (AES-GCM).
type Service struct {
	repo     storage.InstanceRepository
	tokenKey string
}

func NewService(repo storage.InstanceRepository, tokenKey string) *Service {
	return &Service{repo: repo, tokenKey: tokenKey}
}

type CreateInput struct {
	Name          string
	UnitID        string
	ProviderToken string
}

func (s *Service) Create(ctx context.Context, input CreateInput) (model.Instance, error) {
	if strings.TrimSpace(input.Name) == "" {
		return model.Instance{}, ErrInvalidName
	}
	if strings.TrimSpace(input.UnitID) == "" {
		return model.Instance{}, ErrInvalidUnit
	}
	if strings.TrimSpace(input.ProviderToken) == "" {
		return model.Instance{}, ErrInvalidToken
	}

	tokenEnc, err := crypto.Encrypt([]byte(strings.TrimSpace(input.ProviderToken)), s.tokenKey)
	if err != nil {
		return model.Instance{}, fmt.Errorf("instância: criptografar token: %w", err)
	}

	instance := model.Instance{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(input.Name),
		PublicKey: uuid.NewString(),
		UnitID:    strings.TrimSpace(input.UnitID),
		TokenEnc:  tokenEnc,
		Status:    model.InstanceStatusPending,
	}

	return s.repo.Create(ctx, instance)
}

func (s *Service) List(ctx context.Context) ([]model.Instance, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id string) (model.Instance, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// RotateToken troca o token do provedor mantendo a chave pública do webhook.
func (s *Service) RotateToken(ctx context.Context, id, providerToken string) (model.Instance, error) {
	if strings.TrimSpace(providerToken) == "" {
		return model.Instance{}, ErrInvalidToken
	}

	instance, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return model.Instance{}, err
	}

	tokenEnc, err := crypto.Encrypt([]byte(strings.TrimSpace(providerToken)), s.tokenKey)
	if err != nil {
		return model.Instance{}, fmt.Errorf("instância: criptografar token: %w", err)
	}

	instance.TokenEnc = tokenEnc
	return s.repo.Update(ctx, instance)
}

func (s *Service) UpdateStatus(ctx context.Context, id string, status model.InstanceStatus) (model.Instance, error) {
	instance, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return model.Instance{}, err
	}
	instance.Status = status
	return s.repo.Update(ctx, instance)
}
