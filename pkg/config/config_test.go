package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("Should resolve defaults when environment is empty", func(t *testing.T) {
		cfg, err := NewService().Load(t.Context())

		require.NoError(t, err)
		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 5901, cfg.Server.Port)
		assert.Equal(t, "aethermart", cfg.Database.DBName)
		assert.Equal(t, 20, cfg.Database.MaxConns)
		assert.Equal(t, 500, cfg.Ingest.BatchSize)
		assert.Equal(t, 3, cfg.Ingest.MaxAttempts)
		assert.Equal(t, 30*time.Second, cfg.Redis.CacheTTL)
		assert.Equal(t, "info", cfg.Runtime.LogLevel)
		assert.False(t, cfg.Monitoring.Enabled)
	})

	t.Run("Should apply environment overrides over defaults", func(t *testing.T) {
		t.Setenv("SERVER_PORT", "8123")
		t.Setenv("DB_PASSWORD", "hunter2")
		t.Setenv("INGEST_RETRY_DELAY", "5s")
		t.Setenv("RUNTIME_LOG_LEVEL", "debug")

		cfg, err := NewService().Load(t.Context())

		require.NoError(t, err)
		assert.Equal(t, 8123, cfg.Server.Port)
		assert.Equal(t, "hunter2", cfg.Database.Password.Value())
		assert.Equal(t, 5*time.Second, cfg.Ingest.RetryDelay)
		assert.Equal(t, "debug", cfg.Runtime.LogLevel)
	})

	t.Run("Should reject invalid values from the environment", func(t *testing.T) {
		t.Setenv("SERVER_PORT", "99999")

		_, err := NewService().Load(t.Context())

		require.Error(t, err)
		assert.Contains(t, err.Error(), "validation failed")
	})

	t.Run("Should reject unknown log levels", func(t *testing.T) {
		t.Setenv("RUNTIME_LOG_LEVEL", "verbose")

		_, err := NewService().Load(t.Context())

		require.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	t.Run("Should reject nil config", func(t *testing.T) {
		svc := NewService()

		err := svc.Validate(nil)

		require.Error(t, err)
	})

	t.Run("Should accept the default config", func(t *testing.T) {
		svc := NewService()

		err := svc.Validate(Default())

		require.NoError(t, err)
	})
}

func TestGenerateEnvMappings(t *testing.T) {
	t.Run("Should map nested struct tags to dotted paths", func(t *testing.T) {
		m := GenerateEnvToConfigMap()

		assert.Equal(t, "server.port", m["SERVER_PORT"])
		assert.Equal(t, "database.password", m["DB_PASSWORD"])
		assert.Equal(t, "redis.cache_ttl", m["REDIS_CACHE_TTL"])
		assert.Equal(t, "quality.min_customers", m["QUALITY_MIN_CUSTOMERS"])
	})
}

func TestFromContext(t *testing.T) {
	t.Run("Should return the attached config", func(t *testing.T) {
		cfg := Default()
		cfg.Server.Port = 7777
		ctx := ContextWithConfig(t.Context(), cfg)

		got := FromContext(ctx)

		assert.Equal(t, 7777, got.Server.Port)
	})
}

func TestSensitiveString(t *testing.T) {
	t.Run("Should redact non-empty values in String", func(t *testing.T) {
		s := SensitiveString("secret-password-123")
		assert.Equal(t, "[REDACTED]", s.String())
		assert.Equal(t, "", SensitiveString("").String())
	})

	t.Run("Should expose the raw secret through Value", func(t *testing.T) {
		s := SensitiveString("my-secret")
		assert.Equal(t, "my-secret", s.Value())
	})

	t.Run("Should marshal as redacted JSON", func(t *testing.T) {
		payload := struct {
			Password SensitiveString `json:"password"`
		}{Password: "pg-password"}

		data, err := json.Marshal(payload)

		require.NoError(t, err)
		assert.Contains(t, string(data), "[REDACTED]")
		assert.NotContains(t, string(data), "pg-password")
	})
}
