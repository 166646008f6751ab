package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zapfesta/zapfesta/internal/api/handler"
	"github.com/zapfesta/zapfesta/internal/api/middleware"
	"github.com/zapfesta/zapfesta/internal/bot"
	"github.com/zapfesta/zapfesta/internal/config"
	"github.com/zapfesta/zapfesta/internal/dispatch"
	"github.com/zapfesta/zapfesta/internal/followup"
	"github.com/zapfesta/zapfesta/internal/logger"
	"github.com/zapfesta/zapfesta/internal/media"
	"github.com/zapfesta/zapfesta/internal/notify"
	"github.com/zapfesta/zapfesta/internal/pkg/task"
	"github.com/zapfesta/zapfesta/internal/provider"
	"github.com/zapfesta/zapfesta/internal/server"
	"github.com/zapfesta/zapfesta/internal/service/conversation"
	"github.com/zapfesta/zapfesta/internal/service/instance"
	"github.com/zapfesta/zapfesta/internal/service/user"
	"github.com/zapfesta/zapfesta/internal/storage/factory"
	mediastore "github.com/zapfesta/zapfesta/internal/storage/media"
	"github.com/zapfesta/zapfesta/internal/storage/model"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	logr, err := logger.New(cfg.App.Env, cfg.Log.Level)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logr.Sync()

	logr.Info("iniciando aplicação",
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("db_driver", cfg.Storage.Driver),
		zap.String("data_dir", cfg.Storage.DataDir),
	)

	repos, err := factory.New(cfg, logr)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	mediaTTL := time.Duration(cfg.Media.SignedTTLSeconds) * time.Second
	mediaStorage, err := mediastore.NewStorage(cfg.Storage.DataDir, cfg.App.BaseURL, cfg.Media.SignKey, mediaTTL, logr)
	if err != nil {
		log.Fatalf("media storage: %v", err)
	}

	providerClient := provider.NewClient(cfg.Provider, logr)
	resolver := dispatch.NewResolver(repos.Instance, cfg.Provider.TokenKeyEnc)
	dispatcher := dispatch.New(providerClient, repos.Message, repos.Conversation, logr)
	notifier := notify.NewService(repos.User, repos.Notification, logr)
	pipeline := media.NewPipeline(providerClient, mediaStorage, repos.Message, cfg.Media.StreamThreshold, logr)

	engine := bot.NewEngine(
		bot.Repos{
			Conversations: repos.Conversation,
			Settings:      repos.BotSettings,
			Questions:     repos.BotQuestion,
			Leads:         repos.Lead,
			History:       repos.LeadHistory,
			Vips:          repos.VipNumber,
		},
		dispatcher,
		notifier,
		repos.TaskQueue,
		repos.Locker,
		time.Duration(cfg.Bot.LockTTLSeconds)*time.Second,
		resolver.CredentialsOf,
		logr,
	)

	pool := task.NewPool(repos.TaskQueue, cfg.Bot.Workers, logr)
	pool.Register(task.TypeSendMaterials, engine.MaterialsHandler(repos.Instance))
	pool.Start(context.Background())
	defer pool.Stop()

	scheduler := followup.NewScheduler(
		repos.Instance,
		repos.BotSettings,
		repos.Lead,
		repos.LeadHistory,
		repos.Conversation,
		dispatcher,
		notifier,
		resolver.CredentialsOf,
		logr,
	)

	conversationService := conversation.NewService(repos.Conversation, repos.Message, repos.Lead, logr)
	instanceService := instance.NewService(repos.Instance, cfg.Provider.TokenKeyEnc)
	userService := user.NewService(repos.User, cfg.JWT)

	ensureAdmin(userService, repos, logr)

	router := server.NewRouter(server.Options{
		Env:        cfg.App.Env,
		AuthSecret: cfg.JWT.Secret,
		Logger:     logr,

		InstanceRepo: repos.Instance,

		HealthHandler:       handler.NewHealthHandler(),
		AuthHandler:         handler.NewAuthHandler(userService),
		WebhookHandler:      handler.NewWebhookHandler(repos.Instance, conversationService, engine, logr),
		LeadPublicHandler:   handler.NewLeadPublicHandler(repos.Lead, repos.RateLimiter, cfg.Ingest, nil, logr),
		MediaHandler:        handler.NewMediaHandler(mediaStorage),
		DispatchHandler:     handler.NewDispatchHandler(dispatcher, resolver, pipeline, providerClient, repos.Conversation, repos.Message, logr),
		InstanceHandler:     handler.NewInstanceHandler(instanceService, resolver, providerClient),
		ConversationHandler: handler.NewConversationHandler(repos.Conversation, repos.Message),
		LeadHandler:         handler.NewLeadHandler(repos.Lead, repos.LeadHistory),
		NotificationHandler: handler.NewNotificationHandler(repos.Notification),
		BotConfigHandler:    handler.NewBotConfigHandler(repos.BotSettings, repos.BotQuestion, repos.VipNumber),
		FollowupHandler:     handler.NewFollowupHandler(scheduler),

		RateLimit: middleware.RateLimitOption{
			Enabled:  cfg.RateLimit.Enabled,
			Requests: cfg.RateLimit.Requests,
			Window:   time.Duration(cfg.RateLimit.WindowSeconds) * time.Second,
			Prefix:   cfg.RateLimit.Prefix,
			Limiter:  repos.RateLimiter,
			Logger:   logr,
		},
		IPRateLimit: middleware.IPRateLimitOption{
			Enabled:        true,
			Requests:       cfg.Ingest.IPRequests,
			WindowSeconds:  cfg.Ingest.IPWindowSeconds,
			Limiter:        repos.RateLimiter,
			Logger:         logr,
			SkipPrivateIPs: cfg.Ingest.SkipPrivateIPs,
		},
	})

	srv := &http.Server{
		Addr:    ":" + cfg.App.Port,
		Handler: router,
	}

	go func() {
		logr.Info("servidor HTTP escutando", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Fatal("servidor HTTP", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logr.Info("encerrando...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("shutdown", zap.Error(err))
	}
	if repos.RedisClient != nil {
		_ = repos.RedisClient.Close()
	}
}

// ensureAdmin cria o administrador inicial quando o banco está vazio.
func ensureAdmin(users *user.Service, repos *factory.Repositories, logr *zap.Logger) {
	ctx := context.Background()
	if _, err := repos.User.GetByEmail(ctx, "admin@zapfesta.local"); err == nil {
		return
	}

	created, err := users.Create(ctx, user.CreateInput{
		Name:     "Administrador",
		Email:    "admin@zapfesta.local",
		Password: "trocar-esta-senha",
		Role:     model.RoleAdmin,
	})
	if err != nil {
		logr.Warn("não foi possível criar o admin inicial", zap.Error(err))
		return
	}
	logr.Info("admin inicial criado", zap.String("userId", created.ID))
}
