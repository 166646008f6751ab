package provider

import "fmt"

// Credentials identificam uma instância junto ao provedor externo.
type Credentials struct {
	InstanceID string
	Token      string
}

// InboundEvent é o evento de webhook já normalizado para o formato interno.
type InboundEvent struct {
	InstanceKey     string
	Phone           string
	ContactName     string
	ContactPicture  string
	MessageID       string
	MessageType     string
	Content         string
	MediaURL        string
	MediaKey        string
	MediaDirectPath string
	MimeType        string
	FromMe          bool
}

// DownloadRequest descreve a mídia a ser baixada pela API dedicada do provedor.
type DownloadRequest struct {
	MessageID  string `json:"messageId"`
	Type       string `json:"type"`
	MimeType   string `json:"mimetype"`
	MediaKey   string `json:"mediaKey"`
	DirectPath string `json:"directPath"`
}

// DownloadResult carrega o retorno do download-media: base64 inline OU um
// link de arquivo de curta duração, nunca ambos.
type DownloadResult struct {
	Base64  string `json:"base64,omitempty"`
	FileURL string `json:"fileUrl,omitempty"`
}

// APIError é um erro estruturado do provedor, com o status HTTP original.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("provider: %s (%s, status %d)", e.Message, e.Code, e.Status)
	}
	return fmt.Sprintf("provider: %s (status %d)", e.Message, e.Status)
}

// Retryable indica falha transitória (5xx ou throttling); 4xx são definitivos.
func (e *APIError) Retryable() bool {
	return e.Status >= 500 || e.Status == 429
}
