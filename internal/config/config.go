package config

import (
	"fmt"
	"log"

	"github.com/caarlos0/env/v10"
)

type Config struct {
	App       AppConfig
	DB        DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Log       LogConfig
	Storage   StorageConfig
	RateLimit RateLimitConfig
	Ingest    IngestConfig
	Provider  ProviderConfig
	Bot       BotConfig
	Media     MediaConfig
}

type AppConfig struct {
	Env     string `env:"APP_ENV" envDefault:"development"`
	Port    string `env:"PORT" envDefault:"8080"`
	BaseURL string `env:"APP_BASE_URL" envDefault:"http://localhost:8080"`
}

type DatabaseConfig struct {
	URL      string `env:"DATABASE_URL"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     int    `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
	Name     string `env:"DB_NAME" envDefault:"zapfesta"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
}

// DSN retorna a string de conexão em formato aceito pelo pgxpool.
func (cfg DatabaseConfig) DSN() string {
	if cfg.URL != "" {
		return cfg.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode,
	)
}

type StorageConfig struct {
	Driver  string `env:"DB_DRIVER" envDefault:"sqlite"`
	DataDir string `env:"DATA_DIR" envDefault:"/app/data"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	Enabled  bool   `env:"REDIS_ENABLED" envDefault:"false"`
}

type RateLimitConfig struct {
	Enabled       bool   `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	Requests      int    `env:"RATE_LIMIT_REQUESTS" envDefault:"300"`
	WindowSeconds int    `env:"RATE_LIMIT_WINDOW_SECONDS" envDefault:"60"`
	Prefix        string `env:"RATE_LIMIT_PREFIX" envDefault:"ratelimit:api"`
}

// IngestConfig limita as rotas públicas de captação de leads.
type IngestConfig struct {
	LeadRequests    int  `env:"INGEST_LEAD_REQUESTS" envDefault:"5"`
	B2BRequests     int  `env:"INGEST_B2B_REQUESTS" envDefault:"3"`
	WindowSeconds   int  `env:"INGEST_WINDOW_SECONDS" envDefault:"3600"`
	IPRequests      int  `env:"INGEST_IP_REQUESTS" envDefault:"100"`
	IPWindowSeconds int  `env:"INGEST_IP_WINDOW_SECONDS" envDefault:"900"`
	SkipPrivateIPs  bool `env:"INGEST_SKIP_PRIVATE_IPS" envDefault:"true"`
}

type JWTConfig struct {
	Secret   string `env:"JWT_SECRET,required"`
	ExpHours int    `env:"JWT_EXP_HOURS" envDefault:"24"`
}

type LogConfig struct {
	Level string `env:"LOG_LEVEL" envDefault:"debug"`
}

// ProviderConfig aponta para a API externa de WhatsApp.
type ProviderConfig struct {
	BaseURL        string `env:"PROVIDER_BASE_URL,required"`
	TimeoutSeconds int    `env:"PROVIDER_TIMEOUT_SECONDS" envDefault:"30"`
	TokenKeyEnc    string `env:"PROVIDER_TOKEN_KEY_ENC" envDefault:"zapfesta-token-key-change-in-production"`
}

type BotConfig struct {
	Workers        int `env:"BOT_WORKERS" envDefault:"4"`
	LockTTLSeconds int `env:"BOT_LOCK_TTL_SECONDS" envDefault:"30"`
}

type MediaConfig struct {
	SignKey          string `env:"MEDIA_SIGN_KEY" envDefault:"zapfesta-media-key-change-in-production"`
	SignedTTLSeconds int    `env:"MEDIA_SIGNED_TTL_SECONDS" envDefault:"604800"`
	StreamThreshold  int64  `env:"MEDIA_STREAM_THRESHOLD_BYTES" envDefault:"10485760"`
}

// Load carrega as configurações da aplicação.
func Load() Config {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("config: não foi possível carregar variáveis: %v", err)
	}
	return cfg
}
