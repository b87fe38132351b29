package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSecrets struct {
	maps    map[string]map[string]string
	strings map[string]string
}

func (f fakeSecrets) GetSecretMap(_ context.Context, name string) (map[string]string, error) {
	if m, ok := f.maps[name]; ok {
		return m, nil
	}
	return nil, errors.New("secret not found")
}

func (f fakeSecrets) GetSecret(_ context.Context, name string) (string, error) {
	if s, ok := f.strings[name]; ok {
		return s, nil
	}
	return "", errors.New("secret not found")
}

func TestConfigFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "DAILY_RATE", "CONFLICT_RETRIES", "LOCK_TIMEOUT_MS", "DEFAULT_QUEUE_DAYS", "OUTBOX_INTERVAL", "REMINDER_INTERVAL", "CLOUDWATCH_ENABLED", "REFUND_CAP_AT_PRICE"} {
		t.Setenv(k, "")
	}

	cfg, err := configFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "8095", cfg.Port)
	assert.Equal(t, int64(1000), cfg.DailyRate)
	assert.Equal(t, 1, cfg.ConflictRetries)
	assert.Equal(t, 3*time.Second, cfg.LockTimeout)
	assert.Equal(t, 7, cfg.DefaultQueueDays)
	assert.Equal(t, 2*time.Second, cfg.OutboxInterval)
	assert.False(t, cfg.CloudWatchEnabled)
	assert.False(t, cfg.RefundCapAtPrice)
}

func TestConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv("DAILY_RATE", "1500")
	t.Setenv("LOCK_TIMEOUT_MS", "250")
	t.Setenv("REMINDER_INTERVAL", "30s")
	t.Setenv("CLOUDWATCH_ENABLED", "true")
	t.Setenv("REFUND_CAP_AT_PRICE", "true")

	cfg, err := configFromEnv()
	require.NoError(t, err)

	assert.Equal(t, int64(1500), cfg.DailyRate)
	assert.Equal(t, 250*time.Millisecond, cfg.LockTimeout)
	assert.Equal(t, 30*time.Second, cfg.ReminderInterval)
	assert.True(t, cfg.CloudWatchEnabled)
	assert.True(t, cfg.RefundCapAtPrice)
}

func TestConfigFromEnv_RejectsBadValues(t *testing.T) {
	t.Setenv("CONFLICT_RETRIES", "many")
	_, err := configFromEnv()
	assert.ErrorContains(t, err, "CONFLICT_RETRIES")

	t.Setenv("CONFLICT_RETRIES", "")
	t.Setenv("DAILY_RATE", "0")
	_, err = configFromEnv()
	assert.ErrorContains(t, err, "DAILY_RATE")
}

func TestApplySecrets(t *testing.T) {
	cfg := &Config{JWTSecret: "from-env"}
	cfg.Postgres.User = "env-user"
	cfg.Postgres.Host = "env-host"

	applySecrets(context.Background(), cfg, fakeSecrets{
		maps: map[string]map[string]string{
			dbSecretName: {"POSTGRES_USER": "svc", "POSTGRES_PASSWORD": "s3cret", "POSTGRES_HOST": ""},
		},
		strings: map[string]string{jwtSecretName: "from-secrets"},
	})

	assert.Equal(t, "svc", cfg.Postgres.User)
	assert.Equal(t, "s3cret", cfg.Postgres.Password)
	assert.Equal(t, "env-host", cfg.Postgres.Host)
	assert.Equal(t, "from-secrets", cfg.JWTSecret)
}
