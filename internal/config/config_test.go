package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv(t *testing.T) {
	t.Run("RequiresJWTSecret", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "")
		_, err := FromEnv()
		assert.ErrorContains(t, err, "JWT_SECRET")
	})

	t.Run("Defaults", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "s")
		t.Setenv("CORS_ORIGINS", "")
		t.Setenv("HTTP_PORT", "")
		t.Setenv("DB_DRIVER", "")
		t.Setenv("STORAGE_DRIVER", "")
		t.Setenv("ACCESS_TOKEN_EXPIRE_MINUTES", "")
		t.Setenv("LLM_TEMPERATURE", "")

		cfg, err := FromEnv()
		require.NoError(t, err)
		assert.Equal(t, 8000, cfg.Port)
		assert.Equal(t, "sqlite", cfg.DBDriver)
		assert.Equal(t, "local", cfg.StorageDriver)
		assert.Equal(t, 24*time.Hour, cfg.AccessTokenTTL())
		assert.InDelta(t, 0.7, cfg.LLMTemperature, 1e-9)
		assert.Len(t, cfg.CORSOrigins, 2)
	})

	t.Run("Lists", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "s")
		t.Setenv("CORS_ORIGINS", " https://a.example , ,https://b.example")
		t.Setenv("ENCRYPTION_LEGACY_KEYS", "k1,k2")

		cfg, err := FromEnv()
		require.NoError(t, err)
		assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
		assert.Equal(t, []string{"k1", "k2"}, cfg.LegacyEncryptKeys)
	})

	t.Run("RejectsUnknownDriver", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "s")
		t.Setenv("DB_DRIVER", "mysql")
		_, err := FromEnv()
		assert.ErrorContains(t, err, "DB_DRIVER")
	})

	t.Run("CloudinaryNeedsCredentials", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "s")
		t.Setenv("STORAGE_DRIVER", "cloudinary")
		t.Setenv("CLOUDINARY_CLOUD_NAME", "")
		_, err := FromEnv()
		assert.ErrorContains(t, err, "CLOUDINARY")
	})
}

func TestLoadWorker(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("JWT_SECRET", "")

	t.Setenv("REDIS_ADDR", "")
	_, err = LoadWorker()
	assert.ErrorContains(t, err, "REDIS_ADDR")

	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("WORKER_CONCURRENCY", "")
	cfg, err := LoadWorker()
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 5, cfg.WorkerConcurrency)
	assert.Equal(t, 587, cfg.MailPort)
}
