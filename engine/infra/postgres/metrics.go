package postgres

import (
	"context"
	"fmt"
	"strings"

	appconfig "github.com/aethermart/dataplane/pkg/config"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	connectionsOpenMetric  = "aethermart_postgres_connections_open"
	connectionsInUseMetric = "aethermart_postgres_connections_in_use"
	connectionsIdleMetric  = "aethermart_postgres_connections_idle"
	maxConnectionsMetric   = "aethermart_postgres_max_open_connections"

	defaultPoolLabel = "default"
)

// InitPoolMetrics registers observable gauges over the pool statistics
// so connection saturation shows up next to the mutation counters. The
// gauges live for the lifetime of the meter provider; register once
// per pool.
func InitPoolMetrics(meter metric.Meter, db *DB, cfg *appconfig.DatabaseConfig) error {
	if meter == nil {
		return fmt.Errorf("meter is required")
	}
	if db == nil || db.pool == nil {
		return fmt.Errorf("database handle is required")
	}
	open, err := createPoolGauge(meter, connectionsOpenMetric, "Open connections in the pool")
	if err != nil {
		return err
	}
	inUse, err := createPoolGauge(meter, connectionsInUseMetric, "Connections currently acquired")
	if err != nil {
		return err
	}
	idle, err := createPoolGauge(meter, connectionsIdleMetric, "Idle connections in the pool")
	if err != nil {
		return err
	}
	maxOpen, err := createPoolGauge(meter, maxConnectionsMetric, "Configured pool size")
	if err != nil {
		return err
	}
	pool := db.pool
	attrs := metric.WithAttributes(attribute.String("pool", poolLabel(cfg)))
	_, err = meter.RegisterCallback(
		func(_ context.Context, observer metric.Observer) error {
			stats := pool.Stat()
			observer.ObserveInt64(open, int64(stats.TotalConns()), attrs)
			observer.ObserveInt64(inUse, int64(stats.AcquiredConns()), attrs)
			observer.ObserveInt64(idle, int64(stats.IdleConns()), attrs)
			observer.ObserveInt64(maxOpen, int64(stats.MaxConns()), attrs)
			return nil
		},
		open, inUse, idle, maxOpen,
	)
	if err != nil {
		return fmt.Errorf("register pool callback: %w", err)
	}
	return nil
}

func createPoolGauge(meter metric.Meter, name, description string) (metric.Int64ObservableGauge, error) {
	gauge, err := meter.Int64ObservableGauge(
		name,
		metric.WithDescription(description),
	)
	if err != nil {
		return nil, fmt.Errorf("create gauge %q: %w", name, err)
	}
	return gauge, nil
}

// poolLabel names the pool after the host, port, and database so the
// gauges stay distinguishable when several processes export to one
// collector.
func poolLabel(cfg *appconfig.DatabaseConfig) string {
	if cfg == nil {
		return defaultPoolLabel
	}
	parts := make([]string, 0, 3)
	for _, component := range []string{cfg.Host, cfg.Port, cfg.DBName} {
		if cleaned := sanitizeLabel(component); cleaned != "" {
			parts = append(parts, cleaned)
		}
	}
	if len(parts) == 0 {
		return defaultPoolLabel
	}
	return strings.Join(parts, "-")
}

func sanitizeLabel(component string) string {
	trimmed := strings.ToLower(strings.TrimSpace(component))
	var label strings.Builder
	for _, r := range trimmed {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '.', r == ':':
			label.WriteRune(r)
		default:
			label.WriteRune('_')
		}
	}
	return strings.Trim(label.String(), "_")
}
