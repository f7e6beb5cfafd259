package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the bot.
type Config struct {
	App        AppConfig
	Postgres   PostgresConfig
	Redis      RedisConfig
	Logger     LoggerConfig
	Discord    DiscordConfig
	Lifecycle  LifecycleConfig
	Webhook    WebhookConfig
	Transcript TranscriptConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	CORSOrigins           string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// DiscordConfig holds gateway credentials.
type DiscordConfig struct {
	Token string
}

// LifecycleConfig tunes the ticket lifecycle side effects.
type LifecycleConfig struct {
	ChannelDeleteDelaySeconds int
	ChatTimeoutSeconds        int
	SideTaskTimeoutSeconds    int
	InteractionTimeoutSeconds int
	TranscriptMessageLimit    int
}

// WebhookConfig tunes outbound subscriber deliveries.
type WebhookConfig struct {
	TimeoutSeconds int
	MaxConcurrent  int
	UserAgent      string
}

// TranscriptConfig selects where rendered transcripts are archived.
type TranscriptConfig struct {
	Dir            string
	Compress       bool
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
}

// Load reads configuration from environment variables, applying defaults where possible.
// Values from envFile and configFile never override variables already set.
func Load(envFile, configFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	} else {
		_ = godotenv.Load()
	}
	if configFile != "" {
		if err := applyFileDefaults(configFile); err != nil {
			return nil, err
		}
	}

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ticket-bot"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "3001"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			CORSOrigins:           getEnv("FRONTEND_URL", "http://localhost:3000"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:      os.Getenv("REDIS_ADDR"),
			Password:  os.Getenv("REDIS_PASSWORD"),
			DB:        redisDB,
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "ticketbot:"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Discord: DiscordConfig{
			Token: os.Getenv("DISCORD_TOKEN"),
		},
		Lifecycle: LifecycleConfig{
			ChannelDeleteDelaySeconds: getEnvAsInt("TICKET_CHANNEL_DELETE_DELAY_SECONDS", 5),
			ChatTimeoutSeconds:        getEnvAsInt("TICKET_CHAT_TIMEOUT_SECONDS", 10),
			SideTaskTimeoutSeconds:    getEnvAsInt("TICKET_SIDE_TASK_TIMEOUT_SECONDS", 30),
			TranscriptMessageLimit:    getEnvAsInt("TRANSCRIPT_MESSAGE_LIMIT", 100),
		},
		Webhook: WebhookConfig{
			TimeoutSeconds: getEnvAsInt("WEBHOOK_TIMEOUT_SECONDS", 5),
			MaxConcurrent:  getEnvAsInt("WEBHOOK_MAX_CONCURRENT", 8),
			UserAgent:      getEnv("WEBHOOK_USER_AGENT", "ticket-bot-webhooks/1.0"),
		},
		Transcript: TranscriptConfig{
			Dir:            getEnv("TRANSCRIPT_DIR", "transcripts"),
			Compress:       getEnvAsBool("TRANSCRIPT_COMPRESS", false),
			MinioEndpoint:  os.Getenv("MINIO_ENDPOINT"),
			MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
			MinioBucket:    getEnv("MINIO_BUCKET", "transcripts"),
			MinioUseSSL:    getEnvAsBool("MINIO_USE_SSL", false),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	return seconds(a.RequestTimeoutSeconds)
}

// ChannelDeleteDelay is the grace window before a closed ticket channel is removed.
func (l LifecycleConfig) ChannelDeleteDelay() time.Duration {
	return seconds(l.ChannelDeleteDelaySeconds)
}

// ChatTimeout bounds each chat-platform call.
func (l LifecycleConfig) ChatTimeout() time.Duration {
	return seconds(l.ChatTimeoutSeconds)
}

// SideTaskTimeout bounds each best-effort task started after a transition.
func (l LifecycleConfig) SideTaskTimeout() time.Duration {
	return seconds(l.SideTaskTimeoutSeconds)
}

// InteractionTimeout bounds the handling of one inbound interaction.
func (l LifecycleConfig) InteractionTimeout() time.Duration {
	return seconds(l.InteractionTimeoutSeconds)
}

// Timeout bounds a single webhook delivery.
func (w WebhookConfig) Timeout() time.Duration {
	return seconds(w.TimeoutSeconds)
}

// UseMinio reports whether transcripts go to object storage.
func (t TranscriptConfig) UseMinio() bool {
	return t.MinioEndpoint != ""
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
