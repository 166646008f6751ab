package factory

import (
	"go.uber.org/zap"

	"github.com/zapfesta/zapfesta/internal/config"
	"github.com/zapfesta/zapfesta/internal/pkg/lock"
	lock_memory "github.com/zapfesta/zapfesta/internal/pkg/lock/memory"
	lock_redis "github.com/zapfesta/zapfesta/internal/pkg/lock/redis"
	"github.com/zapfesta/zapfesta/internal/pkg/ratelimiter"
	limiter_memory "github.com/zapfesta/zapfesta/internal/pkg/ratelimiter/memory"
	limiter_redis "github.com/zapfesta/zapfesta/internal/pkg/ratelimiter/redis"
	"github.com/zapfesta/zapfesta/internal/pkg/task"
	task_memory "github.com/zapfesta/zapfesta/internal/pkg/task/memory"
	task_redis "github.com/zapfesta/zapfesta/internal/pkg/task/redis"
	"github.com/zapfesta/zapfesta/internal/storage"
	"github.com/zapfesta/zapfesta/internal/storage/postgres"
	storage_redis "github.com/zapfesta/zapfesta/internal/storage/redis"
	"github.com/zapfesta/zapfesta/internal/storage/sqlite"
)

type Repositories struct {
	Instance     storage.InstanceRepository
	Conversation storage.ConversationRepository
	Message      storage.MessageRepository
	BotSettings  storage.BotSettingsRepository
	BotQuestion  storage.BotQuestionRepository
	Lead         storage.LeadRepository
	LeadHistory  storage.LeadHistoryRepository
	Notification storage.NotificationRepository
	VipNumber    storage.VipNumberRepository
	User         storage.UserRepository

	RedisClient *storage_redis.Client // Pode ser nil se Redis estiver desabilitado
	TaskQueue   task.Queue
	RateLimiter ratelimiter.Limiter
	Locker      lock.Locker
}

func New(cfg config.Config, log *zap.Logger) (*Repositories, error) {
	log.Info("inicializando repositórios",
		zap.String("driver", cfg.Storage.Driver),
	)

	var (
		taskQueue   task.Queue
		rateLimiter ratelimiter.Limiter
		locker      lock.Locker
		storeRedis  *storage_redis.Client
		err         error
	)

	// Inicializa Redis apenas se explicitamente habilitado
	if cfg.Redis.Enabled {
		log.Info("inicializando Redis...")
		storeRedis, err = storage_redis.New(cfg.Redis, log)
		if err != nil {
			log.Error("erro ao conectar com Redis", zap.Error(err))
			return nil, err
		}

		taskQueue = task_redis.NewQueue(storeRedis, "zapfesta:tasks")
		rateLimiter = limiter_redis.NewLimiter(storeRedis.RDB())
		locker = lock_redis.NewLocker(storeRedis)
		log.Info("Redis conectado, fila, limiter e locker configurados")
	} else {
		log.Info("usando implementações em memória (Redis desabilitado)")
		taskQueue = task_memory.NewQueue(10000)
		rateLimiter = limiter_memory.NewLimiter()
		locker = lock_memory.NewLocker()
	}

	repos := &Repositories{
		RedisClient: storeRedis,
		TaskQueue:   taskQueue,
		RateLimiter: rateLimiter,
		Locker:      locker,
	}

	switch cfg.Storage.Driver {
	case "sqlite", "":
		db, err := sqlite.New(cfg.Storage.DataDir, log)
		if err != nil {
			log.Error("erro ao conectar com SQLite", zap.Error(err))
			return nil, err
		}

		repos.Instance = sqlite.NewInstanceRepository(db)
		repos.Conversation = sqlite.NewConversationRepository(db)
		repos.Message = sqlite.NewMessageRepository(db)
		repos.BotSettings = sqlite.NewBotSettingsRepository(db)
		repos.BotQuestion = sqlite.NewBotQuestionRepository(db)
		repos.Lead = sqlite.NewLeadRepository(db)
		repos.LeadHistory = sqlite.NewLeadHistoryRepository(db)
		repos.Notification = sqlite.NewNotificationRepository(db)
		repos.VipNumber = sqlite.NewVipNumberRepository(db)
		repos.User = sqlite.NewUserRepository(db)

		log.Info("repositórios SQLite criados com sucesso", zap.String("data_dir", cfg.Storage.DataDir))
		return repos, nil

	case "postgres":
		db, err := postgres.New(cfg.DB, log)
		if err != nil {
			log.Error("erro ao conectar com PostgreSQL", zap.Error(err))
			return nil, err
		}

		repos.Instance = postgres.NewInstanceRepository(db)
		repos.Conversation = postgres.NewConversationRepository(db)
		repos.Message = postgres.NewMessageRepository(db)
		repos.BotSettings = postgres.NewBotSettingsRepository(db)
		repos.BotQuestion = postgres.NewBotQuestionRepository(db)
		repos.Lead = postgres.NewLeadRepository(db)
		repos.LeadHistory = postgres.NewLeadHistoryRepository(db)
		repos.Notification = postgres.NewNotificationRepository(db)
		repos.VipNumber = postgres.NewVipNumberRepository(db)
		repos.User = postgres.NewUserRepository(db)

		log.Info("repositórios PostgreSQL criados com sucesso")
		return repos, nil

	default:
		log.Error("driver de storage desconhecido",
			zap.String("driver", cfg.Storage.Driver),
		)
		return nil, &ErrUnknownDriver{Driver: cfg.Storage.Driver}
	}
}

type ErrUnknownDriver struct {
	Driver string
}

func (e *ErrUnknownDriver) Error() string {
	return "storage: driver desconhecido: " + e.Driver
}
