package server

import (
	"context"
	"net/http"

	gatewayrouter "github.com/aethermart/dataplane/engine/gateway/router"
	"github.com/aethermart/dataplane/engine/infra/monitoring"
	"github.com/aethermart/dataplane/engine/infra/server/routes"
	reportingrouter "github.com/aethermart/dataplane/engine/reporting/router"
	"github.com/aethermart/dataplane/pkg/logger"
	"github.com/aethermart/dataplane/pkg/version"
	"github.com/gin-gonic/gin"
)

func (s *Server) buildRouter(ctx context.Context) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if s.monitoringReady() {
		r.Use(s.monitoring.GinMiddleware())
	}
	r.Use(LoggerMiddleware(logger.FromContext(ctx)))
	if s.monitoringReady() {
		r.GET(s.monitoring.Path(), gin.WrapH(s.monitoring.ExporterHandler()))
	}
	r.GET("/healthz", s.handleHealthz)
	r.GET("/readyz", s.handleReadyz)
	api := r.Group(routes.Base())
	gatewayrouter.RegisterRoutesWithMetrics(api, s.gateway, s.registry, s.buildMutationMetrics(ctx))
	reportingrouter.RegisterRoutes(api, s.reporting)
	return r
}

func (s *Server) buildMutationMetrics(ctx context.Context) *monitoring.MutationMetrics {
	if !s.monitoringReady() {
		return nil
	}
	metrics, err := monitoring.NewMutationMetrics(s.monitoring.Meter())
	if err != nil {
		logger.FromContext(ctx).Error("Failed to initialize mutation metrics", "error", err)
		return nil
	}
	return metrics
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"status":  statusHealthy,
			"version": version.Get().Version,
		},
		"message": "Success",
	})
}

// handleReadyz answers 200 only while the database responds to pings.
func (s *Server) handleReadyz(c *gin.Context) {
	pingCtx, cancel := context.WithTimeout(c.Request.Context(), readinessPingTimeout)
	defer cancel()
	dbReady := true
	if err := s.db.Ping(pingCtx); err != nil {
		logger.FromContext(c.Request.Context()).Warn("Readiness probe failed database ping", "error", err)
		dbReady = false
	}
	status := statusReady
	code := http.StatusOK
	if !dbReady {
		status = statusNotReady
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"data": gin.H{
			"status":   status,
			"database": gin.H{"ready": dbReady},
		},
		"message": "Success",
	})
}
