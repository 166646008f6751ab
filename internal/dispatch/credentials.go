package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/zapfesta/zapfesta/internal/pkg/crypto"
	"github.com/zapfesta/zapfesta/internal/provider"
	"github.com/zapfesta/zapfesta/internal/storage"
	"github.com/zapfesta/zapfesta/internal/storage/model"
)

var (
	ErrNoConnectedInstance = errors.New("dispatch: nenhuma instância conectada para a unidade")
	ErrInstanceNotFound    = errors.New("dispatch: instância não encontrada")
	ErrMissingCredentials  = errors.New("dispatch: credenciais de instância ausentes")
)

// Resolver resolve as credenciais de envio na precedência: credenciais
// explícitas > instância conectada da unidade > instância do chamador.
type Resolver struct {
	instances storage.InstanceRepository
	tokenKey  string
}

func NewResolver(instances storage.InstanceRepository, tokenKey string) *Resolver {
	return &Resolver{instances: instances, tokenKey: tokenKey}
}

// CredentialsOf descriptografa o token da instância e monta as credenciais.
func (r *Resolver) CredentialsOf(inst model.Instance) (provider.Credentials, error) {
	if len(inst.TokenEnc) == 0 {
		return provider.Credentials{}, ErrMissingCredentials
	}
	token, err := crypto.Decrypt(inst.TokenEnc, r.tokenKey)
	if err != nil {
		return provider.Credentials{}, fmt.Errorf("dispatch: descriptografar token: %w", err)
	}
	return provider.Credentials{InstanceID: inst.ID, Token: string(token)}, nil
}

// Resolve aplica a precedência de credenciais. Cada camada falha com um erro
// próprio, sem cair silenciosamente para a próxima.
func (r *Resolver) Resolve(ctx context.Context, explicit *provider.Credentials, unitID, callerInstanceID string) (provider.Credentials, error) {
	if explicit != nil {
		if explicit.InstanceID == "" || explicit.Token == "" {
			return provider.Credentials{}, ErrMissingCredentials
		}
		return *explicit, nil
	}

	if unitID != "" {
		inst, err := r.instances.GetConnectedByUnit(ctx, unitID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return provider.Credentials{}, ErrNoConnectedInstance
			}
			return provider.Credentials{}, err
		}
		return r.CredentialsOf(inst)
	}

	if callerInstanceID != "" {
		inst, err := r.instances.GetByID(ctx, callerInstanceID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return provider.Credentials{}, ErrInstanceNotFound
			}
			return provider.Credentials{}, err
		}
		return r.CredentialsOf(inst)
	}

	return provider.Credentials{}, ErrMissingCredentials
}
