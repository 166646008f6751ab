package media

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Storage guarda mídia em disco sob data_dir/media/<instanceId>/<mediaId> e
// serve URLs assinadas com HMAC e validade limitada.
type Storage struct {
	baseDir string
	baseURL string
	signKey []byte
	ttl     time.Duration
	log     *zap.Logger
}

func NewStorage(dataDir, baseURL, signKey string, ttl time.Duration, log *zap.Logger) (*Storage, error) {
	baseDir := filepath.Join(dataDir, "media")
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("media storage: criar diretório: %w", err)
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Storage{
		baseDir: baseDir,
		baseURL: strings.TrimRight(baseURL, "/"),
		signKey: []byte(signKey),
		ttl:     ttl,
		log:     log,
	}, nil
}

// Save grava os bytes sob um caminho determinístico por mensagem e retorna a
// URL assinada correspondente.
func (s *Storage) Save(instanceID, mediaID string, r io.Reader, mimeType string) (string, error) {
	dir := filepath.Join(s.baseDir, instanceID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("media storage: criar diretório: %w", err)
	}

	path := filepath.Join(dir, mediaID+extensionFor(mimeType))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("media storage: criar arquivo: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("media storage: gravar arquivo: %w", err)
	}

	return s.SignedURL(instanceID, mediaID), nil
}

// SaveBase64 decodifica e grava um payload inline do provedor.
func (s *Storage) SaveBase64(instanceID, mediaID, data, mimeType string) (string, error) {
	dec := base64.NewDecoder(base64.StdEncoding, strings.NewReader(data))
	return s.Save(instanceID, mediaID, dec, mimeType)
}

// SignedURL gera a URL de 7 dias servida pelo handler de mídia.
func (s *Storage) SignedURL(instanceID, mediaID string) string {
	exp := time.Now().Add(s.ttl).Unix()
	sig := s.sign(instanceID, mediaID, exp)
	return fmt.Sprintf("%s/api/media/%s/%s?exp=%d&sig=%s", s.baseURL, instanceID, mediaID, exp, sig)
}

// Verify confere assinatura e validade de uma URL servida.
func (s *Storage) Verify(instanceID, mediaID string, exp int64, sig string) bool {
	if time.Now().Unix() > exp {
		return false
	}
	expected := s.sign(instanceID, mediaID, exp)
	return hmac.Equal([]byte(expected), []byte(sig))
}

// IsDurable informa se a URL já aponta para o próprio armazenamento.
func (s *Storage) IsDurable(url string) bool {
	return strings.HasPrefix(url, s.baseURL+"/api/media/")
}

// Open localiza o arquivo de uma mídia persistida, qualquer que seja a
// extensão gravada.
func (s *Storage) Open(instanceID, mediaID string) (string, error) {
	dir := filepath.Join(s.baseDir, instanceID)
	matches, err := filepath.Glob(filepath.Join(dir, mediaID+"*"))
	if err != nil || len(matches) == 0 {
		return "", fmt.Errorf("media storage: mídia não encontrada: %s/%s", instanceID, mediaID)
	}
	return matches[0], nil
}

func (s *Storage) sign(instanceID, mediaID string, exp int64) string {
	mac := hmac.New(sha256.New, s.signKey)
	mac.Write([]byte(instanceID + "|" + mediaID + "|" + strconv.FormatInt(exp, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "audio/ogg", "audio/ogg; codecs=opus":
		return ".ogg"
	}
	exts, err := mime.ExtensionsByType(mimeType)
	if err != nil || len(exts) == 0 {
		return ""
	}
	return exts[0]
}
