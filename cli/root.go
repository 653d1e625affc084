package cli

import (
	"github.com/spf13/cobra"
)

const defaultEnvFile = ".env"

// RootCmd assembles the aethermart command tree.
func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "aethermart",
		Short:         "AetherMart data plane CLI",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	root.PersistentFlags().Bool("log-source", false, "Include source file and line in logs")
	root.PersistentFlags().String("env-file", defaultEnvFile, "Path to the environment variables file")

	root.AddCommand(
		ServeCmd(),
		IngestCmd(),
		MigrateCmd(),
		VersionCmd(),
	)
	return root
}
