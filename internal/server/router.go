package server

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/zapfesta/zapfesta/internal/api/handler"
	"github.com/zapfesta/zapfesta/internal/api/middleware"
	"github.com/zapfesta/zapfesta/internal/storage"
)

type Options struct {
	Env        string
	AuthSecret string
	Logger     *zap.Logger

	InstanceRepo storage.InstanceRepository

	HealthHandler       *handler.HealthHandler
	AuthHandler         *handler.AuthHandler
	WebhookHandler      *handler.WebhookHandler
	LeadPublicHandler   *handler.LeadPublicHandler
	MediaHandler        *handler.MediaHandler
	DispatchHandler     *handler.DispatchHandler
	InstanceHandler     *handler.InstanceHandler
	ConversationHandler *handler.ConversationHandler
	LeadHandler         *handler.LeadHandler
	NotificationHandler *handler.NotificationHandler
	BotConfigHandler    *handler.BotConfigHandler
	FollowupHandler     *handler.FollowupHandler

	RateLimit   middleware.RateLimitOption
	IPRateLimit middleware.IPRateLimitOption
}

func NewRouter(opts Options) *gin.Engine {
	if opts.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization", middleware.HeaderRequestID},
		MaxAge:       12 * time.Hour,
	}))

	api := router.Group("/api")

	// Rotas públicas: saúde, login, webhook do provedor, mídia assinada e a
	// captação de leads (esta com limite adicional por IP).
	opts.HealthHandler.Register(api)
	opts.AuthHandler.Register(api)
	opts.WebhookHandler.Register(api)
	opts.MediaHandler.Register(api)

	public := api.Group("")
	public.Use(middleware.IPRateLimit(opts.IPRateLimit))
	opts.LeadPublicHandler.Register(public)

	protected := api.Group("")
	protected.Use(middleware.Auth(middleware.AuthOption{
		JWTSecret:    opts.AuthSecret,
		InstanceRepo: opts.InstanceRepo,
	}))
	if opts.RateLimit.Enabled {
		protected.Use(middleware.RateLimit(opts.RateLimit))
	}

	opts.DispatchHandler.Register(protected)
	opts.InstanceHandler.Register(protected)
	opts.ConversationHandler.Register(protected)
	opts.LeadHandler.Register(protected)
	opts.NotificationHandler.Register(protected)
	opts.BotConfigHandler.Register(protected)
	opts.FollowupHandler.Register(protected)
	opts.AuthHandler.RegisterProtected(protected)

	return router
}
