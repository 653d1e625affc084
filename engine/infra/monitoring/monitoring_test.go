package monitoring

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	appconfig "github.com/aethermart/dataplane/pkg/config"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric"
)

func TestNewService(t *testing.T) {
	t.Run("Should create service with default config when nil provided", func(t *testing.T) {
		service, err := NewService(context.Background(), nil)
		require.NoError(t, err)
		assert.NotNil(t, service)
		assert.NotNil(t, service.config)
		assert.False(t, service.config.Enabled)
		assert.Equal(t, "/metrics", service.Path())
		assert.False(t, service.IsInitialized())
	})
	t.Run("Should create service with provided config", func(t *testing.T) {
		cfg := &appconfig.MonitoringConfig{
			Enabled: false,
			Path:    "/custom/metrics",
		}
		service, err := NewService(context.Background(), cfg)
		require.NoError(t, err)
		assert.NotNil(t, service)
		assert.Equal(t, "/custom/metrics", service.Path())
		assert.False(t, service.IsInitialized())
	})
	t.Run("Should fail with invalid config", func(t *testing.T) {
		cfg := &appconfig.MonitoringConfig{
			Enabled: true,
			Path:    "",
		}
		service, err := NewService(context.Background(), cfg)
		assert.Error(t, err)
		assert.Nil(t, service)
		assert.Contains(t, err.Error(), "monitoring path cannot be empty")
	})
	t.Run("Should initialize with Prometheus exporter when enabled", func(t *testing.T) {
		cfg := &appconfig.MonitoringConfig{
			Enabled: true,
			Path:    "/metrics",
		}
		service, err := NewService(context.Background(), cfg)
		require.NoError(t, err)
		assert.NotNil(t, service)
		assert.True(t, service.IsInitialized())
		assert.NotNil(t, service.exporter)
		assert.NotNil(t, service.provider)
		assert.NotNil(t, service.meter)
		assert.Nil(t, service.InitializationError())
	})
	t.Run("Should use no-op meter when disabled", func(t *testing.T) {
		cfg := &appconfig.MonitoringConfig{
			Enabled: false,
			Path:    "/metrics",
		}
		service, err := NewService(context.Background(), cfg)
		require.NoError(t, err)
		assert.NotNil(t, service)
		assert.False(t, service.IsInitialized())
		assert.Nil(t, service.exporter)
		assert.Nil(t, service.provider)
		assert.NotNil(t, service.meter)
	})
}

func TestValidateConfig(t *testing.T) {
	t.Run("Should reject a relative path", func(t *testing.T) {
		err := ValidateConfig(&appconfig.MonitoringConfig{Path: "metrics"})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "must start with '/'")
	})
	t.Run("Should reject a path under the API prefix", func(t *testing.T) {
		err := ValidateConfig(&appconfig.MonitoringConfig{Path: "/api/v0/metrics"})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "cannot be under /api/")
	})
	t.Run("Should reject a path with query parameters", func(t *testing.T) {
		err := ValidateConfig(&appconfig.MonitoringConfig{Path: "/metrics?format=json"})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "query parameters")
	})
	t.Run("Should accept a plain absolute path", func(t *testing.T) {
		assert.NoError(t, ValidateConfig(&appconfig.MonitoringConfig{Path: "/metrics"}))
	})
}

func TestService_Meter(t *testing.T) {
	t.Run("Should return meter instance", func(t *testing.T) {
		cfg := &appconfig.MonitoringConfig{Enabled: true, Path: "/metrics"}
		service, err := NewService(context.Background(), cfg)
		require.NoError(t, err)
		meter := service.Meter()
		assert.NotNil(t, meter)
		assert.Implements(t, (*metric.Meter)(nil), meter)
	})
}

func TestService_GinMiddleware(t *testing.T) {
	t.Run("Should return functional middleware when initialized", func(t *testing.T) {
		cfg := &appconfig.MonitoringConfig{Enabled: true, Path: "/metrics"}
		service, err := NewService(context.Background(), cfg)
		require.NoError(t, err)
		mw := service.GinMiddleware()
		assert.NotNil(t, mw)
		gin.SetMode(gin.TestMode)
		router := gin.New()
		router.Use(mw)
		router.GET("/test", func(c *gin.Context) {
			c.JSON(200, gin.H{"status": "ok"})
		})
		req := httptest.NewRequest("GET", "/test", http.NoBody)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, 200, w.Code)
	})
	t.Run("Should return no-op middleware when not initialized", func(t *testing.T) {
		cfg := &appconfig.MonitoringConfig{Enabled: false, Path: "/metrics"}
		service, err := NewService(context.Background(), cfg)
		require.NoError(t, err)
		mw := service.GinMiddleware()
		assert.NotNil(t, mw)
		gin.SetMode(gin.TestMode)
		router := gin.New()
		router.Use(mw)
		router.GET("/test", func(c *gin.Context) {
			c.JSON(200, gin.H{"status": "ok"})
		})
		req := httptest.NewRequest("GET", "/test", http.NoBody)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, 200, w.Code)
	})
}

func TestService_ExporterHandler(t *testing.T) {
	t.Run("Should return 503 when not initialized", func(t *testing.T) {
		cfg := &appconfig.MonitoringConfig{Enabled: false, Path: "/metrics"}
		service, err := NewService(context.Background(), cfg)
		require.NoError(t, err)
		handler := service.ExporterHandler()
		req := httptest.NewRequest("GET", "/metrics", http.NoBody)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), "Monitoring service not initialized")
	})
	t.Run("Should return metrics when initialized", func(t *testing.T) {
		cfg := &appconfig.MonitoringConfig{Enabled: true, Path: "/metrics"}
		service, err := NewService(context.Background(), cfg)
		require.NoError(t, err)
		handler := service.ExporterHandler()
		req := httptest.NewRequest("GET", "/metrics", http.NoBody)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Logf("Response body: %s", w.Body.String())
		}
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	})
}

func TestService_Shutdown(t *testing.T) {
	t.Run("Should shutdown gracefully when initialized", func(t *testing.T) {
		cfg := &appconfig.MonitoringConfig{Enabled: true, Path: "/metrics"}
		service, err := NewService(context.Background(), cfg)
		require.NoError(t, err)
		err = service.Shutdown(context.Background())
		assert.NoError(t, err)
	})
	t.Run("Should handle shutdown when not initialized", func(t *testing.T) {
		cfg := &appconfig.MonitoringConfig{Enabled: false, Path: "/metrics"}
		service, err := NewService(context.Background(), cfg)
		require.NoError(t, err)
		err = service.Shutdown(context.Background())
		assert.NoError(t, err)
	})
}

func TestNewServiceWithFallback(t *testing.T) {
	t.Run("Should return initialized service when config is valid", func(t *testing.T) {
		cfg := &appconfig.MonitoringConfig{Enabled: true, Path: "/metrics"}
		service := NewServiceWithFallback(context.Background(), cfg)
		assert.NotNil(t, service)
		assert.True(t, service.IsInitialized())
		assert.Nil(t, service.InitializationError())
	})
	t.Run("Should return degraded service when config is invalid", func(t *testing.T) {
		cfg := &appconfig.MonitoringConfig{Enabled: true, Path: "invalid-path"}
		service := NewServiceWithFallback(context.Background(), cfg)
		assert.NotNil(t, service)
		assert.False(t, service.IsInitialized())
		assert.NotNil(t, service.InitializationError())
		assert.NotNil(t, service.Meter())
	})
	t.Run("Should handle nil config gracefully", func(t *testing.T) {
		service := NewServiceWithFallback(context.Background(), nil)
		assert.NotNil(t, service)
		assert.False(t, service.IsInitialized())
		assert.Nil(t, service.InitializationError())
	})
}
