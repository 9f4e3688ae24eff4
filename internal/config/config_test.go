//go:build !integration

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("should read yaml and fill defaults", func(t *testing.T) {
		path := writeConfig(t, `
database:
  url: postgres://localhost/gym
auth:
  jwt_secret: s3cret
paystack:
  secret_key: sk_test_x
cron:
  secret: cron-s3cret
  expiry_interval: 10m
`)
		cfg, err := LoadConfig(path, false)
		require.NoError(t, err)

		assert.Equal(t, "postgres://localhost/gym", cfg.Database.URL)
		assert.Equal(t, 10*time.Minute, cfg.Cron.ExpiryInterval)
		assert.Equal(t, "https://api.paystack.co", cfg.Paystack.BaseURL)
		assert.Equal(t, 15*time.Second, cfg.Paystack.Timeout)
		assert.Equal(t, "admin", cfg.Auth.AdminRole)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, time.Hour, cfg.Redis.TTL)
	})

	t.Run("should let environment override secrets", func(t *testing.T) {
		path := writeConfig(t, `
database:
  url: postgres://file/gym
auth:
  jwt_secret: from-file
`)
		t.Setenv("DATABASE_URL", "postgres://env/gym")
		t.Setenv("PAYSTACK_SECRET_KEY", "sk_env")
		t.Setenv("CRON_SECRET", "cron-env")

		cfg, err := LoadConfig(path, false)
		require.NoError(t, err)

		assert.Equal(t, "postgres://env/gym", cfg.Database.URL)
		assert.Equal(t, "sk_env", cfg.Paystack.SecretKey)
		assert.Equal(t, "from-file", cfg.Auth.JWTSecret)
	})

	t.Run("should require gateway secret outside dev", func(t *testing.T) {
		path := writeConfig(t, `
database:
  url: postgres://localhost/gym
auth:
  jwt_secret: s3cret
`)
		_, err := LoadConfig(path, false)
		assert.ErrorContains(t, err, "paystack.secret_key")

		cfg, err := LoadConfig(path, true)
		require.NoError(t, err)
		assert.True(t, cfg.Runtime.Dev)
	})

	t.Run("should fail without a database url", func(t *testing.T) {
		if os.Getenv("DATABASE_URL") != "" {
			t.Skip("DATABASE_URL set in environment")
		}
		path := writeConfig(t, "auth:\n  jwt_secret: x\n")
		_, err := LoadConfig(path, true)
		assert.ErrorContains(t, err, "database.url")
	})
}
