package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zapfesta/zapfesta/internal/pkg/ratelimiter/memory"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newIPLimitedRouter(opts IPRateLimitOption) *gin.Engine {
	r := gin.New()
	r.Use(IPRateLimit(opts))
	r.POST("/leads", func(c *gin.Context) { c.Status(http.StatusCreated) })
	return r
}

func doPost(r *gin.Engine, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/leads", nil)
	req.RemoteAddr = "203.0.113.7:51234"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIPRateLimitBlocksAfterLimit(t *testing.T) {
	r := newIPLimitedRouter(IPRateLimitOption{
		Enabled:       true,
		Requests:      2,
		WindowSeconds: 3600,
		Limiter:       memory.NewLimiter(),
		Logger:        zap.NewNop(),
	})

	for i := 0; i < 2; i++ {
		w := doPost(r, nil)
		require.Equal(t, http.StatusCreated, w.Code, "tentativa %d", i+1)
	}

	w := doPost(r, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestIPRateLimitCountsPerAddress(t *testing.T) {
	r := newIPLimitedRouter(IPRateLimitOption{
		Enabled:       true,
		Requests:      1,
		WindowSeconds: 3600,
		Limiter:       memory.NewLimiter(),
		Logger:        zap.NewNop(),
	})

	require.Equal(t, http.StatusCreated, doPost(r, map[string]string{"X-Forwarded-For": "198.51.100.1"}).Code)
	assert.Equal(t, http.StatusTooManyRequests, doPost(r, map[string]string{"X-Forwarded-For": "198.51.100.1"}).Code)
	assert.Equal(t, http.StatusCreated, doPost(r, map[string]string{"X-Forwarded-For": "198.51.100.2"}).Code)
}

func TestIPRateLimitSkipsPrivateAddresses(t *testing.T) {
	r := newIPLimitedRouter(IPRateLimitOption{
		Enabled:        true,
		Requests:       1,
		WindowSeconds:  3600,
		Limiter:        memory.NewLimiter(),
		Logger:         zap.NewNop(),
		SkipPrivateIPs: true,
	})

	for i := 0; i < 3; i++ {
		w := doPost(r, map[string]string{"X-Forwarded-For": "10.1.2.3"})
		assert.Equal(t, http.StatusCreated, w.Code)
	}
}

func TestIPRateLimitDisabledIsPassthrough(t *testing.T) {
	r := newIPLimitedRouter(IPRateLimitOption{Enabled: false})

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusCreated, doPost(r, nil).Code)
	}
}

func TestClientAddr(t *testing.T) {
	cases := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"cloudflare tem prioridade", map[string]string{
			"CF-Connecting-IP": "198.51.100.9",
			"X-Forwarded-For":  "192.0.2.1",
		}, "198.51.100.9"},
		{"primeiro valido da cadeia xff", map[string]string{
			"X-Forwarded-For": "nonsense, 192.0.2.50, 10.0.0.1",
		}, "192.0.2.50"},
		{"porta descartada", map[string]string{
			"X-Real-IP": "192.0.2.7:8080",
		}, "192.0.2.7"},
		{"ipv6", map[string]string{
			"X-Forwarded-For": "2001:db8::1",
		}, "2001:db8::1"},
		{"sem cabecalhos cai no remote addr", nil, "203.0.113.7"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "203.0.113.7:51234"
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = req
			assert.Equal(t, tc.want, clientAddr(c))
		})
	}
}

func TestIsPrivateAddr(t *testing.T) {
	assert.True(t, isPrivateAddr("10.0.0.1"))
	assert.True(t, isPrivateAddr("172.16.5.5"))
	assert.True(t, isPrivateAddr("192.168.1.10"))
	assert.True(t, isPrivateAddr("127.0.0.1"))
	assert.True(t, isPrivateAddr("::1"))
	assert.False(t, isPrivateAddr("203.0.113.7"))
	assert.False(t, isPrivateAddr("not-an-ip"))
}
