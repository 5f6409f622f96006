package config

import (
	"errors"
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
	SLA          SLAConfig
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
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr          string
	Password      string
	DB            int
	PolicyChannel string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// NotificationConfig configures breach delivery.
type NotificationConfig struct {
	EmailFrom  string
	WebhookURL string
	QueueKey   string
}

// SLAConfig tunes evaluation and the breach sweep.
type SLAConfig struct {
	WarningPercent   float64
	SweepInterval    time.Duration
	SweepConcurrency int
	SweepBatchSize   int
	NearBreachWindow time.Duration
	SeedDefaults     bool
	PolicyFile       string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "service-desk"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
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
			Addr:          getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:      os.Getenv("REDIS_PASSWORD"),
			DB:            redisDB,
			PolicyChannel: getEnv("REDIS_POLICY_CHANNEL", "sla:policies:changed"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Notification: NotificationConfig{
			EmailFrom:  getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
			QueueKey:   getEnv("NOTIFY_QUEUE_KEY", "sla:notifications"),
		},
		SLA: SLAConfig{
			WarningPercent:   getEnvAsFloat("SLA_WARNING_PERCENT", 80),
			SweepInterval:    getEnvAsDuration("SLA_SWEEP_INTERVAL", 10*time.Minute),
			SweepConcurrency: getEnvAsInt("SLA_SWEEP_CONCURRENCY", 8),
			SweepBatchSize:   getEnvAsInt("SLA_SWEEP_BATCH_SIZE", 200),
			NearBreachWindow: getEnvAsDuration("SLA_NEAR_BREACH_WINDOW", 2*time.Hour),
			SeedDefaults:     getEnvAsBool("SLA_SEED_DEFAULTS", true),
			PolicyFile:       os.Getenv("SLA_POLICY_FILE"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the SLA engine cannot work with.
func (c *Config) Validate() error {
	var errs []error
	if c.SLA.WarningPercent <= 0 || c.SLA.WarningPercent > 100 {
		errs = append(errs, fmt.Errorf("SLA_WARNING_PERCENT must be in (0, 100], got %v", c.SLA.WarningPercent))
	}
	if c.SLA.SweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("SLA_SWEEP_INTERVAL must be positive, got %s", c.SLA.SweepInterval))
	}
	if c.SLA.SweepConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("SLA_SWEEP_CONCURRENCY must be positive, got %d", c.SLA.SweepConcurrency))
	}
	if c.SLA.SweepBatchSize <= 0 {
		errs = append(errs, fmt.Errorf("SLA_SWEEP_BATCH_SIZE must be positive, got %d", c.SLA.SweepBatchSize))
	}
	if c.SLA.NearBreachWindow < 0 {
		errs = append(errs, fmt.Errorf("SLA_NEAR_BREACH_WINDOW must not be negative, got %s", c.SLA.NearBreachWindow))
	}
	return errors.Join(errs...)
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

func getEnvAsFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(val, 64)
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
	if err != nil {
		return fallback
	}
	return parsed
}
