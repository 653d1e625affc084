// Package monitoring wires the OpenTelemetry meter to a Prometheus
// exporter and carries the instruments for the HTTP surface, the
// mutation gateway, and the ingest pipeline.
package monitoring

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/aethermart/dataplane/engine/infra/monitoring/middleware"
	appconfig "github.com/aethermart/dataplane/pkg/config"
	"github.com/aethermart/dataplane/pkg/logger"
	"github.com/gin-gonic/gin"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "aethermart"

// Service encapsulates all monitoring and observability logic.
type Service struct {
	meter             metric.Meter
	exporter          *prometheus.Exporter
	provider          *sdkmetric.MeterProvider
	registry          *prom.Registry
	config            *appconfig.MonitoringConfig
	initialized       bool
	initializationErr error
}

// newDisabledService creates a service instance with no-op instruments.
func newDisabledService(cfg *appconfig.MonitoringConfig, initErr error) *Service {
	return &Service{
		config:            cfg,
		meter:             noop.NewMeterProvider().Meter(meterName),
		initialized:       false,
		initializationErr: initErr,
	}
}

// ValidateConfig checks the metrics endpoint configuration.
func ValidateConfig(cfg *appconfig.MonitoringConfig) error {
	if cfg.Path == "" {
		return fmt.Errorf("monitoring path cannot be empty")
	}
	if cfg.Path[0] != '/' {
		return fmt.Errorf("monitoring path must start with '/': got %s", cfg.Path)
	}
	if strings.HasPrefix(cfg.Path, "/api/") {
		return fmt.Errorf("monitoring path cannot be under /api/")
	}
	if strings.ContainsRune(cfg.Path, '?') {
		return fmt.Errorf("monitoring path cannot contain query parameters")
	}
	return nil
}

// NewService creates a monitoring service with a Prometheus exporter.
func NewService(ctx context.Context, cfg *appconfig.MonitoringConfig) (*Service, error) {
	log := logger.FromContext(ctx)
	if cfg == nil {
		cfg = &appconfig.MonitoringConfig{Path: "/metrics"}
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		log.Debug("Monitoring disabled, using no-op meter")
		return newDisabledService(cfg, nil), nil
	}
	registry := prom.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("initializing Prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter(meterName)
	service := &Service{
		meter:       meter,
		exporter:    exporter,
		provider:    provider,
		registry:    registry,
		config:      cfg,
		initialized: true,
	}
	InitSystemMetrics(ctx, meter)
	log.Info("Monitoring service initialized", "path", cfg.Path)
	return service, nil
}

// NewServiceWithFallback creates a monitoring service that degrades to
// no-op instruments instead of failing startup.
func NewServiceWithFallback(ctx context.Context, cfg *appconfig.MonitoringConfig) *Service {
	service, err := NewService(ctx, cfg)
	if err != nil {
		logger.FromContext(ctx).Error("Failed to initialize monitoring, using no-op instruments", "error", err)
		return newDisabledService(cfg, err)
	}
	return service
}

// Meter returns the OpenTelemetry meter for custom instrumentation.
func (s *Service) Meter() metric.Meter {
	return s.meter
}

// Path returns the configured metrics endpoint path.
func (s *Service) Path() string {
	return s.config.Path
}

// GinMiddleware returns Gin middleware for HTTP metrics.
func (s *Service) GinMiddleware() gin.HandlerFunc {
	if !s.initialized {
		return func(c *gin.Context) {
			c.Next()
		}
	}
	return middleware.HTTPMetrics(s.meter)
}

// ExporterHandler returns an HTTP handler for the metrics endpoint.
func (s *Service) ExporterHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.initialized {
			w.WriteHeader(http.StatusServiceUnavailable)
			if _, err := w.Write([]byte("Monitoring service not initialized")); err != nil {
				logger.FromContext(r.Context()).Error("Failed to write response", "error", err)
			}
			return
		}
		promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}

// Shutdown gracefully shuts down the monitoring service.
func (s *Service) Shutdown(ctx context.Context) error {
	if s.provider != nil {
		return s.provider.Shutdown(ctx)
	}
	return nil
}

// IsInitialized reports whether the exporter pipeline is live.
func (s *Service) IsInitialized() bool {
	return s.initialized
}

// InitializationError returns any error that occurred during
// initialization.
func (s *Service) InitializationError() error {
	return s.initializationErr
}

// SetAsGlobal installs this service's provider as the global
// OpenTelemetry meter provider.
func (s *Service) SetAsGlobal() {
	if s.provider != nil {
		otel.SetMeterProvider(s.provider)
	}
}
