package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/aethermart/dataplane/engine/entity"
	"github.com/aethermart/dataplane/engine/gateway"
	"github.com/aethermart/dataplane/engine/infra/monitoring"
	"github.com/aethermart/dataplane/engine/infra/postgres"
	"github.com/aethermart/dataplane/engine/infra/server"
	"github.com/aethermart/dataplane/engine/reporting"
	rediscache "github.com/aethermart/dataplane/engine/reporting/infra/redis"
	"github.com/aethermart/dataplane/pkg/config"
	"github.com/aethermart/dataplane/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command.
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the AetherMart data plane server",
		RunE:  handleServeCmd,
	}
	cmd.Flags().String("host", "", "Host to bind the server to (env: SERVER_HOST)")
	cmd.Flags().Int("port", 0, "Port to run the server on (env: SERVER_PORT)")
	cmd.Flags().String("db-conn-string", "", "Database connection string (env: DB_CONN_STRING)")
	cmd.Flags().Bool("auto-migrate", false, "Apply pending migrations at startup (env: DB_AUTO_MIGRATE)")
	cmd.Flags().String("redis-addr", "", "Redis address for the reporting cache (env: REDIS_ADDR)")
	cmd.Flags().String("quality-schedule", "", "Cron schedule for data-quality checks (env: QUALITY_SCHEDULE)")
	return cmd
}

var serveFlagOverrides = map[string]string{
	"host":             "SERVER_HOST",
	"port":             "SERVER_PORT",
	"db-conn-string":   "DB_CONN_STRING",
	"auto-migrate":     "DB_AUTO_MIGRATE",
	"redis-addr":       "REDIS_ADDR",
	"quality-schedule": "QUALITY_SCHEDULE",
}

func handleServeCmd(cmd *cobra.Command, _ []string) error {
	ctx, cfg, err := setupCommandEnvironment(cmd, serveFlagOverrides)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	gin.SetMode(gin.ReleaseMode)
	log := logger.FromContext(ctx)

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
	if mon.IsInitialized() {
		monitoring.InitSystemMetrics(ctx, mon.Meter())
		if err := postgres.InitPoolMetrics(mon.Meter(), db, &cfg.Database); err != nil {
			log.Warn("Pool metrics not initialized", "error", err)
		}
	}

	registry := entity.Catalog()
	gw, err := gateway.New(&gateway.Config{
		Registry: registry,
		Repo:     postgres.NewEntityRepo(db),
		Audits:   postgres.NewAuditRepo(db),
		Tx:       db,
	})
	if err != nil {
		return err
	}

	reportingRepo, closeCache := buildReportingRepo(ctx, cfg, db, registry)
	defer closeCache()
	reportingSvc, err := reporting.NewService(reportingRepo, registry, reporting.Thresholds{
		MinCustomers: cfg.Quality.MinCustomers,
		MinProducts:  cfg.Quality.MinProducts,
		MinOrders:    cfg.Quality.MinOrders,
	})
	if err != nil {
		return err
	}

	stopScheduler, err := startQualityScheduler(ctx, cfg, reportingSvc)
	if err != nil {
		return err
	}
	defer stopScheduler()

	srv, err := server.NewServer(server.Dependencies{
		Config:     cfg,
		DB:         db,
		Gateway:    gw,
		Registry:   registry,
		Reporting:  reportingSvc,
		Monitoring: mon,
	})
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}

// buildReportingRepo layers the Redis cache over the database reads
// when an address is configured.
func buildReportingRepo(
	ctx context.Context,
	cfg *config.Config,
	db *postgres.DB,
	registry *entity.Registry,
) (reporting.Repository, func()) {
	repo := postgres.NewReportingRepo(db, registry)
	if cfg.Redis.Addr == "" {
		return repo, func() {}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password.Value(),
		DB:       cfg.Redis.DB,
	})
	logger.FromContext(ctx).Info("Reporting cache enabled",
		"addr", cfg.Redis.Addr,
		"ttl", cfg.Redis.CacheTTL,
	)
	cached := rediscache.NewCachedRepository(repo, client, cfg.Redis.CacheTTL)
	return cached, func() { _ = client.Close() }
}

// startQualityScheduler runs the data-quality snapshot on the
// configured cron schedule. An empty schedule disables it.
func startQualityScheduler(
	ctx context.Context,
	cfg *config.Config,
	svc *reporting.Service,
) (func(), error) {
	if cfg.Quality.Schedule == "" {
		return func() {}, nil
	}
	log := logger.FromContext(ctx)
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Quality.Schedule, func() {
		runQualityCheck(ctx, svc)
	}); err != nil {
		return nil, fmt.Errorf("invalid quality schedule %q: %w", cfg.Quality.Schedule, err)
	}
	scheduler.Start()
	log.Info("Quality check scheduler started", "schedule", cfg.Quality.Schedule)
	return func() { <-scheduler.Stop().Done() }, nil
}

func runQualityCheck(ctx context.Context, svc *reporting.Service) {
	log := logger.FromContext(ctx)
	snapshot, err := svc.Quality(ctx)
	if err != nil {
		log.Error("Scheduled quality check failed", "error", err)
		return
	}
	if snapshot.Healthy() {
		log.Info("Quality check passed", "checks", len(snapshot.Checks))
		return
	}
	for _, check := range snapshot.Failed() {
		log.Warn("Quality check below threshold",
			"check", check.Name,
			"count", check.Count,
			"threshold", check.Threshold,
		)
	}
}
