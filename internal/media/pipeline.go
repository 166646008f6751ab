package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/zapfesta/zapfesta/internal/provider"
	"github.com/zapfesta/zapfesta/internal/storage"
	"github.com/zapfesta/zapfesta/internal/storage/model"
	mediastore "github.com/zapfesta/zapfesta/internal/storage/media"
)

// ErrMediaExpired indica que a mídia não está mais disponível no provedor;
// não adianta tentar de novo.
var ErrMediaExpired = errors.New("media: mídia expirada no provedor")

type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// IsRetryable separa falhas transitórias (rede, storage) das definitivas,
// para a UI decidir se oferece o botão de nova tentativa.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, ErrMediaExpired) {
		return false
	}
	var re *retryableError
	if errors.As(err, &re) {
		return true
	}
	var apiErr *provider.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return false
}

// Downloader é a fatia do cliente do provedor usada pelo pipeline.
type Downloader interface {
	DownloadMedia(ctx context.Context, creds provider.Credentials, req provider.DownloadRequest) (*provider.DownloadResult, error)
	FetchFile(ctx context.Context, fileURL string) (io.ReadCloser, int64, error)
}

// Pipeline converte URLs efêmeras de mídia do provedor em URLs duráveis
// assinadas, tentando em ordem: URL já durável, CDN direto, API dedicada de
// download. A primeira etapa que rende bytes encerra a cadeia.
type Pipeline struct {
	downloader Downloader
	store      *mediastore.Storage
	messages   storage.MessageRepository
	http       *http.Client
	threshold  int64
	log        *zap.Logger
}

func NewPipeline(downloader Downloader, store *mediastore.Storage, messages storage.MessageRepository, threshold int64, log *zap.Logger) *Pipeline {
	if threshold <= 0 {
		threshold = 10 << 20
	}
	return &Pipeline{
		downloader: downloader,
		store:      store,
		messages:   messages,
		http:       &http.Client{},
		threshold:  threshold,
		log:        log,
	}
}

// Persist garante que a mensagem tenha mídia em armazenamento durável e
// retorna a URL final. O registro da mensagem é atualizado: MediaURL passa a
// apontar para o storage e MediaKey/MediaDirectPath são limpos.
func (p *Pipeline) Persist(ctx context.Context, creds provider.Credentials, msg model.Message) (string, error) {
	// 1. Já persistida: nada a fazer, nenhuma chamada de rede.
	if msg.MediaURL != nil && p.store.IsDurable(*msg.MediaURL) {
		return *msg.MediaURL, nil
	}

	// 2. CDN direto do provedor.
	if msg.MediaURL != nil && *msg.MediaURL != "" {
		url, err := p.fromCDN(ctx, creds, msg)
		if err == nil {
			return url, nil
		}
		if IsRetryable(err) {
			return "", err
		}
		p.log.Debug("media: CDN indisponível, tentando download dedicado",
			zap.String("messageId", msg.ID),
			zap.Error(err),
		)
	}

	// 3. API dedicada de download, com chave e caminho do provedor.
	if msg.MediaKey != nil && msg.MediaDirectPath != nil {
		return p.fromDownloadAPI(ctx, creds, msg)
	}

	// 4. Sem fonte restante: expirada de vez.
	return "", ErrMediaExpired
}

func (p *Pipeline) fromCDN(ctx context.Context, creds provider.Credentials, msg model.Message) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, *msg.MediaURL, nil)
	if err != nil {
		return "", fmt.Errorf("media: requisição CDN: %w", err)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return "", &retryableError{err: fmt.Errorf("media: buscar CDN: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode >= 500 {
			return "", &retryableError{err: fmt.Errorf("media: CDN retornou %d", resp.StatusCode)}
		}
		// 403/404/410: URL efêmera vencida, segue para o download dedicado.
		return "", fmt.Errorf("media: CDN retornou %d", resp.StatusCode)
	}

	mimeType := msg.MimeType
	if ct := resp.Header.Get("Content-Type"); mimeType == "" && ct != "" {
		mimeType = ct
	}

	return p.persistBytes(ctx, creds.InstanceID, msg, resp.Body, mimeType)
}

func (p *Pipeline) fromDownloadAPI(ctx context.Context, creds provider.Credentials, msg model.Message) (string, error) {
	result, err := p.downloader.DownloadMedia(ctx, creds, provider.DownloadRequest{
		MessageID:  msg.ID,
		Type:       msg.Type,
		MimeType:   msg.MimeType,
		MediaKey:   *msg.MediaKey,
		DirectPath: *msg.MediaDirectPath,
	})
	if err != nil {
		var apiErr *provider.APIError
		if errors.As(err, &apiErr) && !apiErr.Retryable() {
			return "", ErrMediaExpired
		}
		return "", err
	}

	switch {
	case result.Base64 != "":
		url, err := p.store.SaveBase64(creds.InstanceID, msg.ID, result.Base64, msg.MimeType)
		if err != nil {
			return "", &retryableError{err: err}
		}
		return url, p.markPersisted(ctx, msg, url)

	case result.FileURL != "":
		body, size, err := p.downloader.FetchFile(ctx, result.FileURL)
		if err != nil {
			return "", err
		}
		defer body.Close()

		if size > p.threshold {
			// Acima do limiar: fluxo direto para o disco, sem base64.
			return p.persistBytes(ctx, creds.InstanceID, msg, body, msg.MimeType)
		}

		data, err := io.ReadAll(body)
		if err != nil {
			return "", &retryableError{err: fmt.Errorf("media: ler arquivo: %w", err)}
		}
		encoded := encodeChunked(data)
		url, err := p.store.SaveBase64(creds.InstanceID, msg.ID, encoded, msg.MimeType)
		if err != nil {
			return "", &retryableError{err: err}
		}
		return url, p.markPersisted(ctx, msg, url)

	default:
		return "", ErrMediaExpired
	}
}

func (p *Pipeline) persistBytes(ctx context.Context, instanceID string, msg model.Message, r io.Reader, mimeType string) (string, error) {
	url, err := p.store.Save(instanceID, msg.ID, r, mimeType)
	if err != nil {
		return "", &retryableError{err: err}
	}
	return url, p.markPersisted(ctx, msg, url)
}

// markPersisted grava o estado final: URL durável presente, chave e caminho
// do provedor limpos (estados mutuamente exclusivos).
func (p *Pipeline) markPersisted(ctx context.Context, msg model.Message, url string) error {
	msg.MediaURL = &url
	msg.MediaKey = nil
	msg.MediaDirectPath = nil
	if err := p.messages.Update(ctx, msg); err != nil {
		return &retryableError{err: fmt.Errorf("media: atualizar mensagem: %w", err)}
	}
	return nil
}

// encodeChunked codifica em blocos limitados para não estourar limites de
// argumento/pilha com payloads grandes. O tamanho do bloco é múltiplo de 3
// para a concatenação dos blocos ser um base64 válido.
const chunkSize = 3 * 64 * 1024

func encodeChunked(data []byte) string {
	var b bytes.Buffer
	for len(data) > 0 {
		n := chunkSize
		if n > len(data) {
			n = len(data)
		}
		b.WriteString(base64.StdEncoding.EncodeToString(data[:n]))
		data = data[n:]
	}
	return b.String()
}
