package config

import (
	"context"
	"sync"

	"github.com/aethermart/dataplane/pkg/logger"
)

// ContextKey is an alias used for storing values in context
type ContextKey string

// ConfigCtxKey is the context key used to store the active *Config.
const ConfigCtxKey ContextKey = "config"

// ContextWithConfig stores the configuration in the context.
func ContextWithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, ConfigCtxKey, cfg)
}

var (
	defaultConfig     *Config
	defaultConfigOnce sync.Once
)

// FromContext returns the active configuration for the provided context.
// If none is attached it falls back to a lazily-loaded default resolved
// from built-in defaults and environment variables, mirroring the logger
// package behavior so components always see a usable configuration.
func FromContext(ctx context.Context) *Config {
	if ctx != nil {
		if cfg, ok := ctx.Value(ConfigCtxKey).(*Config); ok && cfg != nil {
			return cfg
		}
	}
	return getDefaultConfig(ctx)
}

func getDefaultConfig(ctx context.Context) *Config {
	defaultConfigOnce.Do(func() {
		cfg, err := NewService().Load(ctx)
		if err != nil {
			log := logger.FromContext(ctx)
			log.Warn("failed to load configuration, using built-in defaults", "error", err)
			cfg = Default()
		}
		defaultConfig = cfg
	})
	return defaultConfig
}
