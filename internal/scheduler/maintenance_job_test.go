package scheduler

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphaview/alphaview/internal/database"
	apptesting "github.com/alphaview/alphaview/internal/testing"
)

func TestMaintenanceJob_HealthyDatabasePasses(t *testing.T) {
	db, cleanup := apptesting.NewTestDB(t, "ledger")
	t.Cleanup(cleanup)

	job := NewMaintenanceJob([]*database.DB{db}, zerolog.Nop())
	assert.Equal(t, "db_maintenance", job.Name())
	require.NoError(t, job.Run())
}

func TestMaintenanceJob_VacuumBelowThresholdOnly(t *testing.T) {
	db, cleanup := apptesting.NewTestDB(t, "cache")
	t.Cleanup(cleanup)

	// Leave some free pages behind
	_, err := db.Exec(`INSERT INTO performance_snapshots (cache_key, snapshot, created_at)
		VALUES ('k', zeroblob(65536), 0)`)
	require.NoError(t, err)
	_, err = db.Exec(`DELETE FROM performance_snapshots`)
	require.NoError(t, err)

	job := NewMaintenanceJob([]*database.DB{db}, zerolog.Nop())
	job.vacuumFraction = 0 // always compact
	require.NoError(t, job.Run())

	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.FreelistCount, "vacuum reclaimed the freed pages")
}

func TestMaintenanceJob_ReportsFailure(t *testing.T) {
	db, cleanup := apptesting.NewTestDB(t, "ledger")
	cleanup() // closed database cannot pass its health check

	job := NewMaintenanceJob([]*database.DB{db}, zerolog.Nop())
	assert.Error(t, job.Run())
}
