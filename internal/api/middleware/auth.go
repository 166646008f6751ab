package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/zapfesta/zapfesta/internal/storage"
)

// AuthOption configura o middleware de autenticação.
type AuthOption struct {
	JWTSecret    string
	InstanceRepo storage.InstanceRepository
}

// Auth aceita JWT de usuário ou, como segunda tentativa, a chave pública de
// uma instância como bearer token (para chamadas do serviço da UI).
func Auth(opts AuthOption) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token ausente"})
			return
		}
		tokenString := strings.TrimPrefix(header, "Bearer ")

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			return []byte(opts.JWTSecret), nil
		})
		if err == nil && token.Valid {
			if claims, ok := token.Claims.(jwt.MapClaims); ok {
				if sub, ok := claims["sub"].(string); ok {
					c.Set("userID", sub)
					if role, ok := claims["role"].(string); ok {
						c.Set("userRole", role)
					}
					c.Set("authType", "user_jwt")
				}
			}
			c.Next()
			return
		}

		if opts.InstanceRepo != nil {
			inst, err := opts.InstanceRepo.GetByPublicKey(c.Request.Context(), tokenString)
			if err == nil && inst.ID != "" {
				c.Set("instanceID", inst.ID)
				c.Set("authType", "instance_token")
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token inválido"})
	}
}
