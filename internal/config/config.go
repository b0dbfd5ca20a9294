package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the API service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Storage      StorageConfig
	Kafka        KafkaConfig
	Grievance    GrievanceConfig
	Jobs         JobsConfig
	Bootstrap    BootstrapConfig
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

// PostgresConfig holds DB connection values.
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

// LoggerConfig configures logging behavior. Output is a zap sink path
// such as "stdout", "stderr" or a file.
type LoggerConfig struct {
	Level  string
	Output string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret               string
	AccessTokenTTLMinutes   int
	PasswordResetTTLMinutes int
	BcryptCost              int
	LoginAttempts           int
	LoginWindowMinutes      int
	ResetRequests           int
	ResetWindowMinutes      int
}

// NotificationConfig holds the mail relay and webhook endpoints. A blank
// SMTPHost leaves password reset without a delivery channel.
type NotificationConfig struct {
	EmailFrom    string
	WebhookURL   string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPTimeout  time.Duration
}

// StorageBackend selects where attachments are kept.
type StorageBackend string

const (
	StorageLocal StorageBackend = "local"
	StorageS3    StorageBackend = "s3"
	StorageMinio StorageBackend = "minio"
)

// StorageConfig selects and configures the attachment store.
type StorageConfig struct {
	Backend        StorageBackend
	LocalPath      string
	Bucket         string
	Region         string
	Endpoint       string
	AccessKey      string
	SecretKey      string
	UseSSL         bool
	MaxUploadBytes int64
}

// KafkaConfig configures the event publisher. No brokers disables it.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Enabled reports whether any broker is configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// GrievanceConfig holds lifecycle policy switches.
type GrievanceConfig struct {
	AllowReopen bool
}

// JobsConfig holds cron schedules for background jobs.
type JobsConfig struct {
	ResetCleanupSchedule string
}

// BootstrapConfig seeds the first super admin when set.
type BootstrapConfig struct {
	SuperAdminName     string
	SuperAdminEmail    string
	SuperAdminPassword string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	backend := StorageBackend(strings.ToLower(getEnv("STORAGE_BACKEND", string(StorageLocal))))
	switch backend {
	case StorageLocal, StorageS3, StorageMinio:
	default:
		return nil, fmt.Errorf("invalid STORAGE_BACKEND: %q", backend)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "grievance-portal"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Output: getEnv("LOG_OUTPUT", "stdout"),
		},
		Auth: AuthConfig{
			JWTSecret:               getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes:   getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			PasswordResetTTLMinutes: getEnvAsInt("AUTH_PASSWORD_RESET_TTL_MINUTES", 10),
			BcryptCost:              getEnvAsInt("AUTH_BCRYPT_COST", 12),
			LoginAttempts:           getEnvAsInt("AUTH_LOGIN_ATTEMPTS", 5),
			LoginWindowMinutes:      getEnvAsInt("AUTH_LOGIN_WINDOW_MINUTES", 15),
			ResetRequests:           getEnvAsInt("AUTH_RESET_REQUESTS", 3),
			ResetWindowMinutes:      getEnvAsInt("AUTH_RESET_WINDOW_MINUTES", 60),
		},
		Notification: NotificationConfig{
			EmailFrom:    getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL:   getEnv("NOTIFY_WEBHOOK_URL", ""),
			SMTPHost:     os.Getenv("NOTIFY_SMTP_HOST"),
			SMTPPort:     getEnvAsInt("NOTIFY_SMTP_PORT", 587),
			SMTPUsername: os.Getenv("NOTIFY_SMTP_USERNAME"),
			SMTPPassword: os.Getenv("NOTIFY_SMTP_PASSWORD"),
			SMTPTimeout:  getEnvAsDuration("NOTIFY_SMTP_TIMEOUT", 10*time.Second),
		},
		Storage: StorageConfig{
			Backend:        backend,
			LocalPath:      getEnv("STORAGE_LOCAL_PATH", "./uploads"),
			Bucket:         getEnv("STORAGE_BUCKET", "grievance-attachments"),
			Region:         getEnv("STORAGE_REGION", "us-east-1"),
			Endpoint:       os.Getenv("STORAGE_ENDPOINT"),
			AccessKey:      os.Getenv("STORAGE_ACCESS_KEY"),
			SecretKey:      os.Getenv("STORAGE_SECRET_KEY"),
			UseSSL:         getEnvAsBool("STORAGE_USE_SSL", false),
			MaxUploadBytes: int64(getEnvAsInt("STORAGE_MAX_UPLOAD_MB", 10)) << 20,
		},
		Kafka: KafkaConfig{
			Brokers: getEnvAsList("KAFKA_BROKERS"),
			Topic:   getEnv("KAFKA_TOPIC", "grievance-events"),
		},
		Grievance: GrievanceConfig{
			AllowReopen: getEnvAsBool("GRIEVANCE_ALLOW_REOPEN", true),
		},
		Jobs: JobsConfig{
			ResetCleanupSchedule: getEnv("JOBS_RESET_CLEANUP_SCHEDULE", "@hourly"),
		},
		Bootstrap: BootstrapConfig{
			SuperAdminName:     getEnv("BOOTSTRAP_SUPERADMIN_NAME", "Super Admin"),
			SuperAdminEmail:    os.Getenv("BOOTSTRAP_SUPERADMIN_EMAIL"),
			SuperAdminPassword: os.Getenv("BOOTSTRAP_SUPERADMIN_PASSWORD"),
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
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
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

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
