package media

import (
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := NewStorage(t.TempDir(), "http://localhost:8080/", "chave-hmac", time.Hour, zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestSignedURLVerifies(t *testing.T) {
	s := newTestStorage(t)

	signed := s.SignedURL("inst-1", "media-1")
	assert.True(t, strings.HasPrefix(signed, "http://localhost:8080/api/media/inst-1/media-1?"))

	u, err := url.Parse(signed)
	require.NoError(t, err)
	exp, err := strconv.ParseInt(u.Query().Get("exp"), 10, 64)
	require.NoError(t, err)
	sig := u.Query().Get("sig")

	assert.True(t, s.Verify("inst-1", "media-1", exp, sig))
	assert.False(t, s.Verify("inst-1", "outra-media", exp, sig))
	assert.False(t, s.Verify("inst-1", "media-1", exp, "assinatura-falsa"))
}

func TestVerifyRejectsExpired(t *testing.T) {
	s := newTestStorage(t)

	exp := time.Now().Add(-time.Minute).Unix()
	sig := s.sign("inst-1", "media-1", exp)
	assert.False(t, s.Verify("inst-1", "media-1", exp, sig))
}

func TestSaveAndOpen(t *testing.T) {
	s := newTestStorage(t)

	url, err := s.Save("inst-1", "media-1", strings.NewReader("dados"), "image/jpeg")
	require.NoError(t, err)
	assert.True(t, s.IsDurable(url))

	path, err := s.Open("inst-1", "media-1")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "media-1.jpg"))

	_, err = s.Open("inst-1", "inexistente")
	assert.Error(t, err)
}

func TestIsDurable(t *testing.T) {
	s := newTestStorage(t)

	assert.True(t, s.IsDurable("http://localhost:8080/api/media/inst/m?exp=1&sig=a"))
	assert.False(t, s.IsDurable("https://cdn.provedor.com/arquivo.enc"))
	assert.False(t, s.IsDurable(""))
}
