package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/alphaview/alphaview/internal/database"
)

// maintenanceTimeout bounds one full integrity pass
const maintenanceTimeout = 15 * time.Minute

// MaintenanceJob runs the weekly database upkeep: an integrity check and a
// stats report for every database, plus a VACUUM on databases whose free
// pages exceed the threshold. Scheduled outside market hours; VACUUM can be
// slow on large files.
type MaintenanceJob struct {
	databases []*database.DB
	log       zerolog.Logger

	// vacuumFraction is the freelist share of total pages above which a
	// database gets vacuumed
	vacuumFraction float64
}

// NewMaintenanceJob creates a new database maintenance job
func NewMaintenanceJob(databases []*database.DB, log zerolog.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		databases:      databases,
		log:            log.With().Str("job", "db_maintenance").Logger(),
		vacuumFraction: 0.25,
	}
}

// Name returns the job name
func (j *MaintenanceJob) Name() string {
	return "db_maintenance"
}

// Run checks and compacts every database, continuing past individual
// failures
func (j *MaintenanceJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), maintenanceTimeout)
	defer cancel()

	var firstErr error
	for _, db := range j.databases {
		if err := j.maintain(ctx, db); err != nil {
			j.log.Error().Err(err).Str("database", db.Name()).Msg("Maintenance failed")
			if firstErr == nil {
				firstErr = fmt.Errorf("maintain %s: %w", db.Name(), err)
			}
		}
	}
	return firstErr
}

func (j *MaintenanceJob) maintain(ctx context.Context, db *database.DB) error {
	if err := db.HealthCheck(ctx); err != nil {
		return err
	}

	stats, err := db.GetStats()
	if err != nil {
		return err
	}

	j.log.Info().
		Str("database", db.Name()).
		Int64("size_bytes", stats.SizeBytes).
		Int64("wal_bytes", stats.WALSizeBytes).
		Int64("free_pages", stats.FreelistCount).
		Int64("total_pages", stats.PageCount).
		Msg("Database checked")

	if stats.PageCount > 0 &&
		float64(stats.FreelistCount) >= j.vacuumFraction*float64(stats.PageCount) {
		if err := db.Vacuum(); err != nil {
			return err
		}
		j.log.Info().Str("database", db.Name()).Msg("Database vacuumed")
	}

	return nil
}
