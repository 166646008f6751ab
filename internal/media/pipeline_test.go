package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zapfesta/zapfesta/internal/provider"
	"github.com/zapfesta/zapfesta/internal/storage"
	mediastore "github.com/zapfesta/zapfesta/internal/storage/media"
	"github.com/zapfesta/zapfesta/internal/storage/model"
)

type fakeDownloader struct {
	downloadCalls int
	fetchCalls    int
	result        *provider.DownloadResult
	downloadErr   error
	fileBody      []byte
	fileSize      int64
}

func (d *fakeDownloader) DownloadMedia(ctx context.Context, creds provider.Credentials, req provider.DownloadRequest) (*provider.DownloadResult, error) {
	d.downloadCalls++
	if d.downloadErr != nil {
		return nil, d.downloadErr
	}
	return d.result, nil
}

func (d *fakeDownloader) FetchFile(ctx context.Context, fileURL string) (io.ReadCloser, int64, error) {
	d.fetchCalls++
	size := d.fileSize
	if size == 0 {
		size = int64(len(d.fileBody))
	}
	return io.NopCloser(bytes.NewReader(d.fileBody)), size, nil
}

type fakeMessages struct {
	updates []model.Message
}

func (r *fakeMessages) Create(ctx context.Context, msg model.Message) (model.Message, error) {
	return msg, nil
}

func (r *fakeMessages) GetByID(ctx context.Context, id string) (model.Message, error) {
	return model.Message{}, storage.ErrNotFound
}

func (r *fakeMessages) ListByConversation(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	return nil, nil
}

func (r *fakeMessages) Update(ctx context.Context, msg model.Message) error {
	r.updates = append(r.updates, msg)
	return nil
}

const testBaseURL = "http://localhost:8080"

func newTestPipeline(t *testing.T, downloader *fakeDownloader, messages *fakeMessages) (*Pipeline, *mediastore.Storage) {
	t.Helper()
	store, err := mediastore.NewStorage(t.TempDir(), testBaseURL, "segredo-de-teste", time.Hour, zap.NewNop())
	require.NoError(t, err)
	return NewPipeline(downloader, store, messages, 1<<20, zap.NewNop()), store
}

func strPtr(s string) *string { return &s }

func testCreds() provider.Credentials {
	return provider.Credentials{InstanceID: "inst-1", Token: "token"}
}

func TestPersistDurableURLPassthrough(t *testing.T) {
	downloader := &fakeDownloader{}
	messages := &fakeMessages{}
	p, store := newTestPipeline(t, downloader, messages)

	durable := store.SignedURL("inst-1", "msg-1")
	msg := model.Message{ID: "msg-1", MediaURL: &durable}

	url, err := p.Persist(context.Background(), testCreds(), msg)
	require.NoError(t, err)
	assert.Equal(t, durable, url)

	assert.Zero(t, downloader.downloadCalls)
	assert.Zero(t, downloader.fetchCalls)
	assert.Empty(t, messages.updates)
}

func TestPersistFromCDN(t *testing.T) {
	payload := []byte("conteudo-da-imagem")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(payload)
	}))
	defer srv.Close()

	downloader := &fakeDownloader{}
	messages := &fakeMessages{}
	p, store := newTestPipeline(t, downloader, messages)

	msg := model.Message{ID: "msg-1", Type: "image", MediaURL: strPtr(srv.URL + "/media")}

	url, err := p.Persist(context.Background(), testCreds(), msg)
	require.NoError(t, err)
	assert.True(t, store.IsDurable(url))

	path, err := store.Open("inst-1", "msg-1")
	require.NoError(t, err)
	saved, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, payload, saved)

	require.Len(t, messages.updates, 1)
	updated := messages.updates[0]
	require.NotNil(t, updated.MediaURL)
	assert.Equal(t, url, *updated.MediaURL)
	assert.Nil(t, updated.MediaKey)
	assert.Nil(t, updated.MediaDirectPath)
}

func TestPersistCDNExpiredFallsBackToDownloadAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	payload := []byte("audio-em-base64")
	downloader := &fakeDownloader{
		result: &provider.DownloadResult{Base64: base64.StdEncoding.EncodeToString(payload)},
	}
	messages := &fakeMessages{}
	p, store := newTestPipeline(t, downloader, messages)

	msg := model.Message{
		ID:              "msg-2",
		Type:            "audio",
		MediaURL:        strPtr(srv.URL + "/media"),
		MediaKey:        strPtr("chave"),
		MediaDirectPath: strPtr("/v/caminho"),
	}

	url, err := p.Persist(context.Background(), testCreds(), msg)
	require.NoError(t, err)
	assert.True(t, store.IsDurable(url))
	assert.Equal(t, 1, downloader.downloadCalls)

	path, err := store.Open("inst-1", "msg-2")
	require.NoError(t, err)
	saved, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, payload, saved)
}

func TestPersistCDNServerErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	downloader := &fakeDownloader{}
	p, _ := newTestPipeline(t, downloader, &fakeMessages{})

	msg := model.Message{ID: "msg-3", MediaURL: strPtr(srv.URL + "/media")}

	_, err := p.Persist(context.Background(), testCreds(), msg)
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.Zero(t, downloader.downloadCalls)
}

func TestPersistNoSourceIsExpired(t *testing.T) {
	p, _ := newTestPipeline(t, &fakeDownloader{}, &fakeMessages{})

	_, err := p.Persist(context.Background(), testCreds(), model.Message{ID: "msg-4"})
	require.ErrorIs(t, err, ErrMediaExpired)
	assert.False(t, IsRetryable(err))
}

func TestPersistDownloadAPINotFoundIsExpired(t *testing.T) {
	downloader := &fakeDownloader{downloadErr: &provider.APIError{Status: 404, Message: "not found"}}
	p, _ := newTestPipeline(t, downloader, &fakeMessages{})

	msg := model.Message{
		ID:              "msg-5",
		MediaKey:        strPtr("chave"),
		MediaDirectPath: strPtr("/v/caminho"),
	}

	_, err := p.Persist(context.Background(), testCreds(), msg)
	require.ErrorIs(t, err, ErrMediaExpired)
}

func TestPersistDownloadAPIServerErrorIsRetryable(t *testing.T) {
	downloader := &fakeDownloader{downloadErr: &provider.APIError{Status: 503, Message: "unavailable"}}
	p, _ := newTestPipeline(t, downloader, &fakeMessages{})

	msg := model.Message{
		ID:              "msg-6",
		MediaKey:        strPtr("chave"),
		MediaDirectPath: strPtr("/v/caminho"),
	}

	_, err := p.Persist(context.Background(), testCreds(), msg)
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
}

func TestPersistFileURLSmallPayload(t *testing.T) {
	payload := []byte(strings.Repeat("x", 1024))
	downloader := &fakeDownloader{
		result:   &provider.DownloadResult{FileURL: "http://provider/file"},
		fileBody: payload,
	}
	messages := &fakeMessages{}
	p, store := newTestPipeline(t, downloader, messages)

	msg := model.Message{
		ID:              "msg-7",
		MediaKey:        strPtr("chave"),
		MediaDirectPath: strPtr("/v/caminho"),
	}

	url, err := p.Persist(context.Background(), testCreds(), msg)
	require.NoError(t, err)
	assert.True(t, store.IsDurable(url))
	assert.Equal(t, 1, downloader.fetchCalls)

	path, err := store.Open("inst-1", "msg-7")
	require.NoError(t, err)
	saved, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, payload, saved)
}

func TestPersistFileURLLargePayloadStreams(t *testing.T) {
	payload := []byte(strings.Repeat("y", 4096))
	downloader := &fakeDownloader{
		result:   &provider.DownloadResult{FileURL: "http://provider/file"},
		fileBody: payload,
		fileSize: 2 << 20, // acima do limiar do pipeline de teste
	}
	messages := &fakeMessages{}
	p, store := newTestPipeline(t, downloader, messages)

	msg := model.Message{
		ID:              "msg-8",
		MediaKey:        strPtr("chave"),
		MediaDirectPath: strPtr("/v/caminho"),
	}

	url, err := p.Persist(context.Background(), testCreds(), msg)
	require.NoError(t, err)
	assert.True(t, store.IsDurable(url))

	path, err := store.Open("inst-1", "msg-8")
	require.NoError(t, err)
	saved, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, payload, saved)
}

func TestEncodeChunkedMatchesPlainEncoding(t *testing.T) {
	sizes := []int{0, 1, 100, chunkSize - 1, chunkSize, chunkSize + 1, 2*chunkSize + 17}
	for _, size := range sizes {
		data := bytes.Repeat([]byte{0xAB}, size)
		assert.Equal(t, base64.StdEncoding.EncodeToString(data), encodeChunked(data), "size %d", size)
	}
}

func TestIsRetryableClassification(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(ErrMediaExpired))
	assert.True(t, IsRetryable(&retryableError{err: assert.AnError}))
	assert.True(t, IsRetryable(&provider.APIError{Status: 500}))
	assert.True(t, IsRetryable(&provider.APIError{Status: 429}))
	assert.False(t, IsRetryable(&provider.APIError{Status: 404}))
	assert.False(t, IsRetryable(assert.AnError))
}
