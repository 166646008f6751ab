package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/zapfesta/zapfesta/internal/pkg/ratelimiter"
)

// IPRateLimitOption parametriza o limite por IP das rotas públicas de captação.
type IPRateLimitOption struct {
	Enabled        bool
	Requests       int
	WindowSeconds  int
	Limiter        ratelimiter.Limiter
	Logger         *zap.Logger
	SkipPrivateIPs bool
}

// IPRateLimit protege os endpoints públicos de captação contra abuso por IP.
// Os limites por telefone e por e-mail ficam no handler; aqui o corte é mais
// largo e vale para qualquer payload.
func IPRateLimit(opts IPRateLimitOption) gin.HandlerFunc {
	if !opts.Enabled || opts.Limiter == nil || opts.Requests <= 0 || opts.WindowSeconds <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	window := time.Duration(opts.WindowSeconds) * time.Second

	return func(c *gin.Context) {
		addr := clientAddr(c)
		if opts.SkipPrivateIPs && isPrivateAddr(addr) {
			c.Next()
			return
		}

		res, err := opts.Limiter.Allow(c.Request.Context(), "ratelimit:ip:"+digest(addr), opts.Requests, window)
		if err != nil {
			if opts.Logger != nil {
				opts.Logger.Warn("ip rate limit: erro ao consultar limiter", zap.Error(err))
			}
			c.Next()
			return
		}

		writeLimitHeaders(c, opts.Requests, res)
		if !res.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())))
			if opts.Logger != nil {
				opts.Logger.Warn("ip rate limit: limite excedido", zap.String("ip", addr))
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "muitas tentativas. tente novamente mais tarde",
			})
			return
		}

		c.Next()
	}
}

// Cabeçalhos de proxy consultados em ordem de confiança. O X-Forwarded-For
// pode carregar uma cadeia; vale o primeiro endereço válido.
var proxyHeaders = []string{"CF-Connecting-IP", "X-Forwarded-For", "X-Real-IP"}

func clientAddr(c *gin.Context) string {
	for _, h := range proxyHeaders {
		for _, part := range strings.Split(c.GetHeader(h), ",") {
			if addr := parseAddr(part); addr != "" {
				return addr
			}
		}
	}
	return c.ClientIP()
}

func parseAddr(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(raw); err == nil {
		raw = host
	}
	if net.ParseIP(raw) == nil {
		return ""
	}
	return raw
}

var privateNets = func() []*net.IPNet {
	cidrs := []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"127.0.0.0/8",
		"::1/128",
		"fc00::/7",
	}
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, n, err := net.ParseCIDR(cidr)
		if err == nil {
			nets = append(nets, n)
		}
	}
	return nets
}()

func isPrivateAddr(addr string) bool {
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	for _, n := range privateNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
