package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"reservation-service/database"
	aws_pkg "reservation-service/pkg/aws"

	"github.com/joho/godotenv"
)

const (
	dbSecretName  = "reservation/DB_CREDENTIALS"
	jwtSecretName = "reservation/JWT_SECRET"
)

// Config holds all configuration for the reservation service.
type Config struct {
	Port     string
	Env      string
	Postgres database.PostgresConfig
	RedisURL string

	JWTSecret string

	// SNS topic for reservation events
	ReservationSNSTopicARN string
	// SQS queue subscribed to the reservation topic, used for promotion retries
	PromotionQueueURL string

	DailyRate         int64
	ConflictRetries   int
	LockTimeout       time.Duration
	DefaultQueueDays  int
	OutboxInterval    time.Duration
	ReminderInterval  time.Duration
	CloudWatchEnabled bool
	// caps cancel refunds at the price paid; off keeps the full-duration refund
	RefundCapAtPrice bool
}

type secretMapSource interface {
	GetSecretMap(ctx context.Context, name string) (map[string]string, error)
	GetSecret(ctx context.Context, name string) (string, error)
}

// LoadConfig reads configuration from the environment (and .env when present) with an
// optional Secrets Manager override.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg, err := configFromEnv()
	if err != nil {
		return nil, err
	}

	if os.Getenv("AWS_USE_SECRETS") == "true" {
		if awsCfg, err := aws_pkg.LoadAWSConfig(context.Background()); err == nil {
			applySecrets(context.Background(), cfg, aws_pkg.NewSecretsClient(awsCfg))
		}
	}

	if cfg.Postgres.User == "" || cfg.Postgres.Password == "" || cfg.Postgres.DBName == "" || cfg.Postgres.Host == "" {
		return nil, fmt.Errorf("database config incomplete")
	}
	return cfg, nil
}

func configFromEnv() (*Config, error) {
	cfg := &Config{
		Port: getEnv("PORT", "8095"),
		Env:  getEnv("APP_ENV", "development"),
		Postgres: database.PostgresConfig{
			Host:     os.Getenv("POSTGRES_HOST"),
			Port:     getEnv("POSTGRES_PORT", "5432"),
			User:     os.Getenv("POSTGRES_USER"),
			Password: os.Getenv("POSTGRES_PASSWORD"),
			DBName:   os.Getenv("POSTGRES_DB"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
			TimeZone: getEnv("POSTGRES_TIMEZONE", "UTC"),
		},
		RedisURL:               getEnv("REDIS_URL", "redis://localhost:6379/0"),
		JWTSecret:              os.Getenv("JWT_SECRET"),
		ReservationSNSTopicARN: os.Getenv("RESERVATION_SNS_TOPIC_ARN"),
		PromotionQueueURL:      os.Getenv("PROMOTION_QUEUE_URL"),
		CloudWatchEnabled:      os.Getenv("CLOUDWATCH_ENABLED") == "true",
		RefundCapAtPrice:       os.Getenv("REFUND_CAP_AT_PRICE") == "true",
	}

	var err error
	if cfg.DailyRate, err = envInt64("DAILY_RATE", 1000); err != nil {
		return nil, err
	}
	if cfg.ConflictRetries, err = envInt("CONFLICT_RETRIES", 1); err != nil {
		return nil, err
	}
	lockMs, err := envInt("LOCK_TIMEOUT_MS", 3000)
	if err != nil {
		return nil, err
	}
	cfg.LockTimeout = time.Duration(lockMs) * time.Millisecond
	if cfg.DefaultQueueDays, err = envInt("DEFAULT_QUEUE_DAYS", 7); err != nil {
		return nil, err
	}
	if cfg.OutboxInterval, err = envDuration("OUTBOX_INTERVAL", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.ReminderInterval, err = envDuration("REMINDER_INTERVAL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.DailyRate <= 0 {
		return nil, fmt.Errorf("DAILY_RATE must be positive, got %d", cfg.DailyRate)
	}
	return cfg, nil
}

// applySecrets overrides DB credentials and the JWT secret. Missing secrets keep the env values.
func applySecrets(ctx context.Context, cfg *Config, sm secretMapSource) {
	if m, err := sm.GetSecretMap(ctx, dbSecretName); err == nil {
		override := func(dst *string, key string) {
			if v, ok := m[key]; ok && v != "" {
				*dst = v
			}
		}
		override(&cfg.Postgres.User, "POSTGRES_USER")
		override(&cfg.Postgres.Password, "POSTGRES_PASSWORD")
		override(&cfg.Postgres.DBName, "POSTGRES_DB")
		override(&cfg.Postgres.Host, "POSTGRES_HOST")
		override(&cfg.Postgres.Port, "POSTGRES_PORT")
	}
	if v, err := sm.GetSecret(ctx, jwtSecretName); err == nil && v != "" {
		cfg.JWTSecret = v
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func envInt64(key string, fallback int64) (int64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
