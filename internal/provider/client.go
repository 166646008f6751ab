package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/zapfesta/zapfesta/internal/config"
)

// Client fala com a API HTTP do provedor de WhatsApp. Todas as chamadas são
// single-shot: retry fica a cargo do chamador (ou do scheduler de follow-up).
type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

func NewClient(cfg config.ProviderConfig, log *zap.Logger) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

type sendRequest struct {
	To       string `json:"to"`
	Text     string `json:"text,omitempty"`
	MediaURL string `json:"mediaUrl,omitempty"`
	Caption  string `json:"caption,omitempty"`
	FileName string `json:"fileName,omitempty"`
}

type sendResponse struct {
	MessageID string `json:"messageId"`
}

func (c *Client) SendText(ctx context.Context, creds Credentials, to, text string) (string, error) {
	return c.send(ctx, creds, "send-text", sendRequest{To: to, Text: text})
}

func (c *Client) SendImage(ctx context.Context, creds Credentials, to, mediaURL, caption string) (string, error) {
	return c.send(ctx, creds, "send-image", sendRequest{To: to, MediaURL: mediaURL, Caption: caption})
}

func (c *Client) SendAudio(ctx context.Context, creds Credentials, to, mediaURL string) (string, error) {
	return c.send(ctx, creds, "send-audio", sendRequest{To: to, MediaURL: mediaURL})
}

func (c *Client) SendVideo(ctx context.Context, creds Credentials, to, mediaURL, caption string) (string, error) {
	return c.send(ctx, creds, "send-video", sendRequest{To: to, MediaURL: mediaURL, Caption: caption})
}

func (c *Client) SendDocument(ctx context.Context, creds Credentials, to, mediaURL, fileName string) (string, error) {
	return c.send(ctx, creds, "send-document", sendRequest{To: to, MediaURL: mediaURL, FileName: fileName})
}

func (c *Client) send(ctx context.Context, creds Credentials, op string, req sendRequest) (string, error) {
	var resp sendResponse
	if err := c.post(ctx, creds, op, req, &resp); err != nil {
		return "", err
	}
	return resp.MessageID, nil
}

// DownloadMedia chama a API dedicada de download; a resposta traz base64
// inline ou um link de arquivo de curta duração.
func (c *Client) DownloadMedia(ctx context.Context, creds Credentials, req DownloadRequest) (*DownloadResult, error) {
	var resp DownloadResult
	if err := c.post(ctx, creds, "download-media", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QRCode retorna o conteúdo do QR de pareamento da instância.
func (c *Client) QRCode(ctx context.Context, creds Credentials) (string, error) {
	var resp struct {
		Code string `json:"code"`
	}
	if err := c.post(ctx, creds, "qr-code", struct{}{}, &resp); err != nil {
		return "", err
	}
	return resp.Code, nil
}

// PairingCode solicita o código de pareamento por número de telefone.
func (c *Client) PairingCode(ctx context.Context, creds Credentials, phone string) (string, error) {
	var resp struct {
		Code string `json:"code"`
	}
	req := struct {
		Phone string `json:"phone"`
	}{Phone: phone}
	if err := c.post(ctx, creds, "pairing-code", req, &resp); err != nil {
		return "", err
	}
	return resp.Code, nil
}

// FetchFile baixa um link de arquivo retornado pelo download-media. O corpo
// retornado deve ser fechado pelo chamador.
func (c *Client) FetchFile(ctx context.Context, fileURL string) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("provider: fetch file: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, &APIError{Status: http.StatusBadGateway, Message: err.Error()}
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, 0, &APIError{Status: resp.StatusCode, Message: "falha ao baixar arquivo de mídia"}
	}

	return resp.Body, resp.ContentLength, nil
}

func (c *Client) post(ctx context.Context, creds Credentials, op string, body, out interface{}) error {
	url := fmt.Sprintf("%s/instances/%s/%s", c.baseURL, creds.InstanceID, op)

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("provider: marshal %s: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("provider: request %s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+creds.Token)

	resp, err := c.http.Do(req)
	if err != nil {
		// Erros de rede/timeouts são tratados como transitórios.
		return &APIError{Status: http.StatusBadGateway, Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("provider: read %s response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Message: "erro do provedor"}
		var payload struct {
			Error   string `json:"error"`
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &payload) == nil {
			if payload.Message != "" {
				apiErr.Message = payload.Message
			} else if payload.Error != "" {
				apiErr.Message = payload.Error
			}
			apiErr.Code = payload.Code
		}

		c.log.Warn("provider: chamada falhou",
			zap.String("op", op),
			zap.String("instanceId", creds.InstanceID),
			zap.Int("status", resp.StatusCode),
		)
		return apiErr
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("provider: decode %s response: %w", op, err)
		}
	}

	return nil
}
