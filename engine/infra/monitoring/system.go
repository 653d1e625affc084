package monitoring

import (
	"context"
	"sync"
	"time"

	"github.com/aethermart/dataplane/pkg/logger"
	"github.com/aethermart/dataplane/pkg/version"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	buildInfo          metric.Float64Gauge
	uptimeGauge        metric.Float64ObservableGauge
	uptimeRegistration metric.Registration
	startTime          time.Time
	systemInitOnce     sync.Once
	systemResetMutex   sync.Mutex
)

// initSystemMetrics initializes system health metrics.
func initSystemMetrics(meter metric.Meter) {
	systemInitOnce.Do(func() {
		var err error
		buildInfo, err = meter.Float64Gauge(
			"aethermart_build_info",
			metric.WithDescription("Build information (value=1)"),
		)
		if err != nil {
			logger.Error("Failed to create build info gauge", "error", err)
		}
		uptimeGauge, err = meter.Float64ObservableGauge(
			"aethermart_uptime_seconds",
			metric.WithDescription("Service uptime in seconds"),
		)
		if err != nil {
			logger.Error("Failed to create uptime gauge", "error", err)
			return
		}
		startTime = time.Now()
		uptimeRegistration, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
			o.ObserveFloat64(uptimeGauge, time.Since(startTime).Seconds())
			return nil
		}, uptimeGauge)
		if err != nil {
			logger.Error("Failed to register uptime callback", "error", err)
		}
	})
}

// recordBuildInfo records build information as a gauge with labels.
func recordBuildInfo(ctx context.Context) {
	if buildInfo == nil {
		return
	}
	info := version.Get()
	buildInfo.Record(ctx, 1,
		metric.WithAttributes(
			attribute.String("version", info.Version),
			attribute.String("commit_hash", info.CommitHash),
			attribute.String("go_version", info.GoVersion),
		),
	)
	logger.FromContext(ctx).Info("System metrics initialized",
		"version", info.Version,
		"commit", info.CommitHash,
		"go_version", info.GoVersion,
	)
}

// InitSystemMetrics initializes system health metrics and records
// build info.
func InitSystemMetrics(ctx context.Context, meter metric.Meter) {
	initSystemMetrics(meter)
	recordBuildInfo(ctx)
}

// ResetSystemMetricsForTesting resets the system metrics
// initialization state between test runs.
func ResetSystemMetricsForTesting() {
	systemResetMutex.Lock()
	defer systemResetMutex.Unlock()
	if uptimeRegistration != nil {
		if err := uptimeRegistration.Unregister(); err != nil {
			logger.Error("Failed to unregister uptime callback during reset", "error", err)
		}
		uptimeRegistration = nil
	}
	buildInfo = nil
	uptimeGauge = nil
	startTime = time.Time{}
	systemInitOnce = sync.Once{}
}
