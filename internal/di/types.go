// Package di provides dependency injection for the application.
//
// The Container is the single source of truth for all service instances.
// It is created by Wire() and handed to whatever surface (CLI, scheduler,
// embedding program) drives the core.
package di

import (
	"github.com/alphaview/alphaview/internal/database"
	"github.com/alphaview/alphaview/internal/modules/auth"
	"github.com/alphaview/alphaview/internal/modules/ledger"
	"github.com/alphaview/alphaview/internal/modules/performance"
	"github.com/alphaview/alphaview/internal/modules/prices"
	"github.com/alphaview/alphaview/internal/modules/trading"
	"github.com/alphaview/alphaview/internal/reliability"
	"github.com/alphaview/alphaview/internal/scheduler"
)

// Container holds all dependencies for the application
type Container struct {
	// Databases
	LedgerDB  *database.DB
	HistoryDB *database.DB
	CacheDB   *database.DB

	// Repositories
	PositionRepo *ledger.PositionRepository
	ExecutionLog *ledger.ExecutionLog
	PriceRepo    *prices.PriceRepository

	// Access control
	Resolver auth.IdentityResolver
	Gate     *auth.Gate

	// Services
	Executor      *trading.Executor
	Queries       *trading.QueryService
	Performance   *performance.Engine
	SnapshotCache *performance.SnapshotCache
	PriceRefresh  *prices.RefreshService
	Backup        *reliability.BackupService

	// Background jobs
	Scheduler *scheduler.Scheduler
}

// Close shuts down everything the container owns
func (c *Container) Close() {
	if c.Scheduler != nil {
		c.Scheduler.Stop()
	}
	for _, db := range []*database.DB{c.LedgerDB, c.HistoryDB, c.CacheDB} {
		if db != nil {
			_ = db.Close()
		}
	}
}

// Databases returns every open database handle
func (c *Container) Databases() []*database.DB {
	return []*database.DB{c.LedgerDB, c.HistoryDB, c.CacheDB}
}
