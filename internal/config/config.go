package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Commands     CommandsConfig
	Referral     ReferralConfig
	Tracing      TracingConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values. An empty DSN selects the in-memory store.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines service-to-service token parameters.
type AuthConfig struct {
	JWTSecret       string
	Issuer          string
	TokenTTLMinutes int
}

// NotificationConfig controls outbound reputation change webhooks.
type NotificationConfig struct {
	WebhookURL     string
	MaxAttempts    int
	BaseDelayMs    int
	QueueSize      int
	TimeoutSeconds int
}

// CommandsConfig controls the asynchronous fact-command stream consumer.
type CommandsConfig struct {
	Enabled             bool
	Stream              string
	Group               string
	Consumer            string
	BatchSize           int64
	BlockSeconds        int
	ClaimIdleSeconds    int
	IdempotencyTTLHours int
}

// ReferralConfig controls the referral reward trigger.
type ReferralConfig struct {
	ConnectsReward     int
	ConnectsServiceURL string
	TimeoutSeconds     int
	MaxAttempts        int
}

// TracingConfig controls OpenTelemetry export. An empty endpoint disables it.
type TracingConfig struct {
	OTLPEndpoint string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "reputation-1"
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "reputation-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 10),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:       getEnv("AUTH_JWT_SECRET", "dev-secret"),
			Issuer:          getEnv("AUTH_ISSUER", "marketplace"),
			TokenTTLMinutes: getEnvAsInt("AUTH_TOKEN_TTL_MINUTES", 60),
		},
		Notification: NotificationConfig{
			WebhookURL:     getEnv("NOTIFY_WEBHOOK_URL", ""),
			MaxAttempts:    getEnvAsInt("NOTIFY_MAX_ATTEMPTS", 5),
			BaseDelayMs:    getEnvAsInt("NOTIFY_BASE_DELAY_MS", 200),
			QueueSize:      getEnvAsInt("NOTIFY_QUEUE_SIZE", 256),
			TimeoutSeconds: getEnvAsInt("NOTIFY_TIMEOUT_SECONDS", 5),
		},
		Commands: CommandsConfig{
			Enabled:             getEnvAsBool("FACT_COMMANDS_ENABLED", true),
			Stream:              getEnv("FACT_COMMANDS_STREAM", "reputation:fact-commands"),
			Group:               getEnv("FACT_COMMANDS_GROUP", "reputation-service"),
			Consumer:            getEnv("FACT_COMMANDS_CONSUMER", hostname),
			BatchSize:           int64(getEnvAsInt("FACT_COMMANDS_BATCH_SIZE", 16)),
			BlockSeconds:        getEnvAsInt("FACT_COMMANDS_BLOCK_SECONDS", 5),
			ClaimIdleSeconds:    getEnvAsInt("FACT_COMMANDS_CLAIM_IDLE_SECONDS", 60),
			IdempotencyTTLHours: getEnvAsInt("FACT_COMMANDS_IDEMPOTENCY_TTL_HOURS", 72),
		},
		Referral: ReferralConfig{
			ConnectsReward:     getEnvAsInt("REFERRAL_CONNECTS_REWARD", 10),
			ConnectsServiceURL: getEnv("REFERRAL_CONNECTS_SERVICE_URL", ""),
			TimeoutSeconds:     getEnvAsInt("REFERRAL_CONNECTS_TIMEOUT_SECONDS", 5),
			MaxAttempts:        getEnvAsInt("REFERRAL_CONNECTS_MAX_ATTEMPTS", 4),
		},
		Tracing: TracingConfig{
			OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		},
	}

	if cfg.Referral.ConnectsReward < 0 {
		return nil, fmt.Errorf("REFERRAL_CONNECTS_REWARD must not be negative")
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// BaseDelay returns the initial retry backoff for webhook deliveries.
func (n NotificationConfig) BaseDelay() time.Duration {
	return time.Duration(n.BaseDelayMs) * time.Millisecond
}

// Timeout returns the per-attempt webhook timeout.
func (n NotificationConfig) Timeout() time.Duration {
	return time.Duration(n.TimeoutSeconds) * time.Second
}

// Block returns how long XREADGROUP waits for new commands.
func (c CommandsConfig) Block() time.Duration {
	return time.Duration(c.BlockSeconds) * time.Second
}

// ClaimIdle returns the idle time after which pending commands are reclaimed.
func (c CommandsConfig) ClaimIdle() time.Duration {
	return time.Duration(c.ClaimIdleSeconds) * time.Second
}

// IdempotencyTTL returns how long applied command keys are remembered.
func (c CommandsConfig) IdempotencyTTL() time.Duration {
	return time.Duration(c.IdempotencyTTLHours) * time.Hour
}

// Timeout returns the per-attempt connects grant timeout.
func (r ReferralConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
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
