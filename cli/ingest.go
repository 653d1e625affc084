package cli

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/aethermart/dataplane/engine/entity"
	"github.com/aethermart/dataplane/engine/gateway"
	"github.com/aethermart/dataplane/engine/infra/monitoring"
	"github.com/aethermart/dataplane/engine/infra/postgres"
	"github.com/aethermart/dataplane/engine/ingest"
	"github.com/aethermart/dataplane/pkg/logger"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

// IngestCmd returns the ingest command.
func IngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Run the CSV batch load through staging into production",
		RunE:  handleIngestCmd,
	}
	cmd.Flags().String("dir", "", "Directory holding the CSV feed files (env: INGEST_DIR)")
	cmd.Flags().StringSlice("tables", nil, "Restrict the run to these tables (default: all, in dependency order)")
	cmd.Flags().String("actor", "", "Actor stamped on audit records (default: ingest)")
	return cmd
}

var ingestFlagOverrides = map[string]string{
	"dir": "INGEST_DIR",
}

func handleIngestCmd(cmd *cobra.Command, _ []string) error {
	ctx, cfg, err := setupCommandEnvironment(cmd, ingestFlagOverrides)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	log := logger.FromContext(ctx)

	tablesFlag, err := cmd.Flags().GetStringSlice("tables")
	if err != nil {
		return fmt.Errorf("failed to get tables flag: %w", err)
	}
	actor, err := cmd.Flags().GetString("actor")
	if err != nil {
		return fmt.Errorf("failed to get actor flag: %w", err)
	}

	db, err := postgres.NewDB(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer func() { _ = db.Close(context.WithoutCancel(ctx)) }()
	if cfg.Database.AutoMigrate {
		if err := postgres.ApplyMigrationsWithLock(ctx, postgres.DSN(&cfg.Database)); err != nil {
			return fmt.Errorf("applying migrations: %w", err)
		}
		log.Info("Database migrations applied")
	}

	mon := monitoring.NewServiceWithFallback(ctx, &cfg.Monitoring)
	if initErr := mon.InitializationError(); initErr != nil {
		log.Warn("Monitoring degraded, metrics disabled", "error", initErr)
	}
	defer func() { _ = mon.Shutdown(context.WithoutCancel(ctx)) }()

	registry := entity.Catalog()
	tables, err := resolveTables(registry, tablesFlag)
	if err != nil {
		return err
	}

	entityRepo := postgres.NewEntityRepo(db)
	gw, err := gateway.New(&gateway.Config{
		Registry: registry,
		Repo:     entityRepo,
		Audits:   postgres.NewAuditRepo(db),
		Tx:       db,
	})
	if err != nil {
		return err
	}

	pipeline, err := ingest.New(&ingest.Config{
		Registry:      registry,
		Source:        ingest.NewSource(cfg.Ingest.Dir),
		Staging:       postgres.NewStagingRepo(db),
		RunLog:        postgres.NewRunLogRepo(db),
		Gateway:       gw,
		Sequences:     entityRepo,
		Observer:      buildIngestObserver(ctx, mon),
		Actor:         actor,
		Tables:        tables,
		RetryAttempts: uint64(cfg.Ingest.MaxAttempts),
		RetryDelay:    cfg.Ingest.RetryDelay,
	})
	if err != nil {
		return err
	}

	summary, runErr := pipeline.Run(ctx)
	printRunSummary(cmd.OutOrStdout(), summary)
	if runErr != nil {
		return fmt.Errorf("ingest run %s failed: %w", summary.RunID, runErr)
	}
	log.Info("Ingest run succeeded", "run_id", summary.RunID)
	return nil
}

// buildIngestObserver feeds run entries into the meter when monitoring
// is up. A nil observer is fine; the pipeline skips it.
func buildIngestObserver(ctx context.Context, mon *monitoring.Service) ingest.Observer {
	if mon == nil || !mon.IsInitialized() {
		return nil
	}
	observer, err := monitoring.NewIngestObserver(mon.Meter())
	if err != nil {
		logger.FromContext(ctx).Error("Failed to initialize ingest metrics", "error", err)
		return nil
	}
	return observer
}

var (
	summaryHeaderStyle = lipgloss.NewStyle().Bold(true)
	stagePassStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	stageFailStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// printRunSummary renders the per-stage run entries as a table.
func printRunSummary(w io.Writer, summary *ingest.Summary) {
	if summary == nil || len(summary.Entries) == 0 {
		return
	}
	fmt.Fprintf(w, "\nRun %s\n", summary.RunID)
	fmt.Fprintln(w, summaryHeaderStyle.Render(fmt.Sprintf(
		"%-14s %-14s %10s %8s %8s  %s",
		"STAGE", "TABLE", "PROCESSED", "VALID", "INVALID", "STATUS",
	)))
	for _, entry := range summary.Entries {
		status := stagePassStyle.Render(string(entry.Status))
		if entry.Status != ingest.StatusSuccess {
			status = stageFailStyle.Render(string(entry.Status))
		}
		fmt.Fprintf(w, "%-14s %-14s %10d %8d %8d  %s\n",
			entry.Stage, entry.Table, entry.Processed, entry.Valid, entry.Invalid, status)
		if entry.Detail != nil {
			fmt.Fprintf(w, "    %s\n", *entry.Detail)
		}
	}
}
