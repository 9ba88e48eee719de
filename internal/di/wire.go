package di

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/alphaview/alphaview/internal/config"
	"github.com/alphaview/alphaview/internal/database"
	"github.com/alphaview/alphaview/internal/modules/auth"
	"github.com/alphaview/alphaview/internal/modules/ledger"
	"github.com/alphaview/alphaview/internal/modules/performance"
	"github.com/alphaview/alphaview/internal/modules/prices"
	"github.com/alphaview/alphaview/internal/modules/trading"
	"github.com/alphaview/alphaview/internal/reliability"
	"github.com/alphaview/alphaview/internal/scheduler"
)

// Wire builds the full dependency graph. The identity resolver and quote
// feed are injected by the caller because both wrap deployment-specific
// providers; everything else is constructed here.
func Wire(
	cfg *config.Config,
	resolver auth.IdentityResolver,
	feed prices.QuoteFeed,
	log zerolog.Logger,
) (*Container, error) {
	container, err := InitializeDatabases(cfg, log)
	if err != nil {
		return nil, err
	}

	// Repositories
	container.PositionRepo = ledger.NewPositionRepository(container.LedgerDB.Conn(), log)
	container.ExecutionLog = ledger.NewExecutionLog(container.LedgerDB.Conn(), log)
	container.PriceRepo = prices.NewPriceRepository(container.HistoryDB.Conn(), log)
	container.PriceRepo.SetStrictDates(!cfg.Prices.CarryForward)

	// Access control
	container.Resolver = resolver
	container.Gate = auth.NewGate(resolver, log)

	// Services
	container.SnapshotCache = performance.NewSnapshotCache(container.CacheDB.Conn(), log)
	container.Performance = performance.NewEngine(
		container.ExecutionLog,
		container.PriceRepo,
		container.SnapshotCache,
		container.Gate,
		cfg.Risk,
		log,
	)

	container.Executor = trading.NewExecutor(
		container.LedgerDB,
		container.PositionRepo,
		container.ExecutionLog,
		container.Gate,
		cfg.Risk.AllowShortSelling,
		log,
	)
	container.Executor.RegisterInvalidator(container.SnapshotCache)

	container.Queries = trading.NewQueryService(
		container.PositionRepo,
		container.ExecutionLog,
		container.Gate,
		log,
	)

	if feed != nil {
		container.PriceRefresh = prices.NewRefreshService(
			container.PriceRepo,
			feed,
			container.PositionRepo,
			cfg.Prices.StaleAfterDays,
			log,
		)
	}

	if cfg.Backup.Enabled {
		store, err := reliability.NewS3Client(context.Background(), cfg.Backup, log)
		if err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to initialize backup storage: %w", err)
		}
		// The cache database is recomputable; only durable state is shipped
		container.Backup = reliability.NewBackupService(
			store,
			[]*database.DB{container.LedgerDB, container.HistoryDB},
			cfg.DataDir,
			cfg.Backup.Retention,
			log,
		)
	}

	if err := wireScheduler(container, cfg, log); err != nil {
		container.Close()
		return nil, err
	}

	return container, nil
}

// wireScheduler registers the background jobs
func wireScheduler(container *Container, cfg *config.Config, log zerolog.Logger) error {
	container.Scheduler = scheduler.New(log)

	if container.PriceRefresh != nil {
		job := scheduler.NewPriceRefreshJob(container.PriceRefresh, log)
		if err := container.Scheduler.AddJob(cfg.Prices.RefreshSchedule, job); err != nil {
			return fmt.Errorf("failed to schedule price refresh: %w", err)
		}
	}

	walJob := scheduler.NewWALCheckpointJob(container.Databases(), log)
	if err := container.Scheduler.AddJob("0 0 4 * * *", walJob); err != nil {
		return fmt.Errorf("failed to schedule WAL checkpoint: %w", err)
	}

	maintenanceJob := scheduler.NewMaintenanceJob(container.Databases(), log)
	if err := container.Scheduler.AddJob("0 0 5 * * SUN", maintenanceJob); err != nil {
		return fmt.Errorf("failed to schedule database maintenance: %w", err)
	}

	if container.Backup != nil {
		job := reliability.NewBackupJob(container.Backup, log)
		if err := container.Scheduler.AddJob(cfg.Backup.Schedule, job); err != nil {
			return fmt.Errorf("failed to schedule backup: %w", err)
		}
	}

	return nil
}
