package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aethermart/dataplane/engine/entity"
	"github.com/aethermart/dataplane/pkg/config"
	"github.com/aethermart/dataplane/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// setupCommandEnvironment loads the env file, initializes logging, and
// resolves configuration into the returned context. Flags named in
// overrides are exported as environment variables first so explicit
// flags win over the env file.
func setupCommandEnvironment(cmd *cobra.Command, overrides map[string]string) (context.Context, *config.Config, error) {
	if err := loadEnvFile(cmd); err != nil {
		return nil, nil, err
	}
	if err := applyFlagOverrides(cmd, overrides); err != nil {
		return nil, nil, err
	}
	logLevel, logJSON, logSource, err := logger.GetLoggerConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	logger.SetupLogger(logLevel, logJSON, logSource)
	ctx := logger.ContextWithLogger(cmd.Context(), logger.GetDefault())
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	ctx = config.ContextWithConfig(ctx, cfg)
	return ctx, cfg, nil
}

// loadEnvFile loads environment variables from the configured dotenv
// file. A missing file is only an error when the caller asked for it
// explicitly.
func loadEnvFile(cmd *cobra.Command) error {
	envFile, err := cmd.Flags().GetString("env-file")
	if err != nil {
		return fmt.Errorf("failed to get env-file flag: %w", err)
	}
	if envFile == "" {
		return nil
	}
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		if cmd.Flags().Changed("env-file") {
			return fmt.Errorf("env file %s does not exist", envFile)
		}
		return nil
	}
	if err := godotenv.Load(envFile); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", envFile, err)
	}
	return nil
}

// applyFlagOverrides exports explicitly-set flags as the environment
// keys the configuration loader reads.
func applyFlagOverrides(cmd *cobra.Command, overrides map[string]string) error {
	for flagName, envKey := range overrides {
		flag := cmd.Flags().Lookup(flagName)
		if flag == nil || !flag.Changed {
			continue
		}
		if err := os.Setenv(envKey, flag.Value.String()); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}
	return nil
}

// resolveTables maps CLI table names onto catalog kinds. Both the
// table name ("customers") and the kind ("customer") are accepted.
func resolveTables(registry *entity.Registry, names []string) ([]entity.Kind, error) {
	var kinds []entity.Kind
	for _, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		kind, err := resolveTable(registry, name)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

func resolveTable(registry *entity.Registry, name string) (entity.Kind, error) {
	for _, kind := range registry.Kinds() {
		def, err := registry.Get(kind)
		if err != nil {
			return "", err
		}
		if string(kind) == name || def.Table == name {
			return kind, nil
		}
	}
	return "", fmt.Errorf("unknown table %q", name)
}
