package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aethermart/dataplane/engine/entity"
	"github.com/aethermart/dataplane/engine/gateway"
	"github.com/aethermart/dataplane/engine/infra/monitoring"
	"github.com/aethermart/dataplane/engine/infra/server/routes"
	"github.com/aethermart/dataplane/engine/reporting"
	"github.com/aethermart/dataplane/pkg/config"
	"github.com/aethermart/dataplane/pkg/logger"
	"github.com/aethermart/dataplane/pkg/version"
)

const (
	statusHealthy             = "healthy"
	statusReady               = "ready"
	statusNotReady            = "not_ready"
	readinessPingTimeout      = 2 * time.Second
	monitoringShutdownTimeout = 5 * time.Second
	serverShutdownTimeout     = 5 * time.Second
	httpReadTimeout           = 15 * time.Second
	httpWriteTimeout          = 15 * time.Second
	httpIdleTimeout           = 60 * time.Second
	hostAny                   = "0.0.0.0"
	hostLoopback              = "127.0.0.1"
)

// Pinger reports whether the backing database answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies carries everything the HTTP server serves. Monitoring
// may be nil or uninitialized; the server then runs without metrics.
type Dependencies struct {
	Config     *config.Config
	DB         Pinger
	Gateway    *gateway.Gateway
	Registry   *entity.Registry
	Reporting  *reporting.Service
	Monitoring *monitoring.Service
}

// Server runs the HTTP surface over the mutation gateway and the
// reporting reads.
type Server struct {
	config     *config.Config
	db         Pinger
	gateway    *gateway.Gateway
	registry   *entity.Registry
	reporting  *reporting.Service
	monitoring *monitoring.Service
	httpServer *http.Server
}

// NewServer creates a server from its dependencies.
func NewServer(deps Dependencies) (*Server, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("server requires a configuration")
	}
	if deps.DB == nil {
		return nil, fmt.Errorf("server requires a database handle")
	}
	if deps.Gateway == nil || deps.Registry == nil {
		return nil, fmt.Errorf("server requires the mutation gateway and its registry")
	}
	if deps.Reporting == nil {
		return nil, fmt.Errorf("server requires the reporting service")
	}
	return &Server{
		config:     deps.Config,
		db:         deps.DB,
		gateway:    deps.Gateway,
		registry:   deps.Registry,
		reporting:  deps.Reporting,
		monitoring: deps.Monitoring,
	}, nil
}

// Run serves HTTP until ctx is canceled, then drains in-flight
// requests before returning.
func (s *Server) Run(ctx context.Context) error {
	log := logger.FromContext(ctx)
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port),
		Handler:      s.buildRouter(ctx),
		ReadTimeout:  httpReadTimeout,
		WriteTimeout: httpWriteTimeout,
		IdleTimeout:  httpIdleTimeout,
	}
	s.logStartupBanner(ctx)
	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()
	select {
	case err := <-errChan:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
		log.Info("Shutdown signal received")
		return s.shutdown(ctx)
	}
}

func (s *Server) shutdown(ctx context.Context) error {
	log := logger.FromContext(ctx)
	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout())
	defer cancel()
	if err := s.httpServer.Shutdown(drainCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	if s.monitoring != nil {
		monCtx, monCancel := context.WithTimeout(context.WithoutCancel(ctx), monitoringShutdownTimeout)
		defer monCancel()
		if err := s.monitoring.Shutdown(monCtx); err != nil {
			log.Error("Failed to shut down monitoring", "error", err)
		}
	}
	log.Info("Server stopped")
	return nil
}

func (s *Server) shutdownTimeout() time.Duration {
	if s.config.Server.Timeout > 0 {
		return s.config.Server.Timeout
	}
	return serverShutdownTimeout
}

func (s *Server) logStartupBanner(ctx context.Context) {
	log := logger.FromContext(ctx)
	httpURL := fmt.Sprintf("http://%s:%d", friendlyHost(s.config.Server.Host), s.config.Server.Port)
	lines := []string{
		fmt.Sprintf("AetherMart data plane %s", version.Get().Version),
		fmt.Sprintf("  API     > %s%s", httpURL, routes.Base()),
		fmt.Sprintf("  Healthz > %s/healthz", httpURL),
		fmt.Sprintf("  Readyz  > %s/readyz", httpURL),
	}
	if s.monitoringReady() {
		lines = append(lines, fmt.Sprintf("  Metrics > %s%s", httpURL, s.monitoring.Path()))
	}
	log.Info("\n" + strings.Join(lines, "\n"))
}

func (s *Server) monitoringReady() bool {
	return s.monitoring != nil && s.monitoring.IsInitialized()
}

func friendlyHost(h string) string {
	if h == hostAny || h == "::" || h == "" {
		return hostLoopback
	}
	return h
}
