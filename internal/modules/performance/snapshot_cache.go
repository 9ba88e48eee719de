// Package performance computes portfolio metrics from the execution log and
// the price store.
package performance

import (
	"database/sql"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/alphaview/alphaview/internal/domain"
)

// SnapshotCache memoizes computed snapshots in the cache database. A cache
// key binds the as-of date to the log length at computation time, so any
// applied trade makes old entries unreachable even before Invalidate runs.
type SnapshotCache struct {
	cacheDB *sql.DB
	log     zerolog.Logger
}

// NewSnapshotCache creates a new snapshot cache
func NewSnapshotCache(cacheDB *sql.DB, log zerolog.Logger) *SnapshotCache {
	return &SnapshotCache{
		cacheDB: cacheDB,
		log:     log.With().Str("component", "snapshot_cache").Logger(),
	}
}

// Get returns the cached snapshot for a key, or nil on a miss. Decode
// failures count as misses; the entry is recomputable.
func (c *SnapshotCache) Get(key string) (*domain.PerformanceSnapshot, error) {
	var blob []byte
	err := c.cacheDB.QueryRow(
		"SELECT snapshot FROM performance_snapshots WHERE cache_key = ?", key,
	).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.StorageError("get cached snapshot", err)
	}

	var snapshot domain.PerformanceSnapshot
	if err := msgpack.Unmarshal(blob, &snapshot); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Dropping undecodable snapshot")
		_, _ = c.cacheDB.Exec("DELETE FROM performance_snapshots WHERE cache_key = ?", key)
		return nil, nil
	}

	return &snapshot, nil
}

// Put stores a snapshot under a key
func (c *SnapshotCache) Put(key string, snapshot domain.PerformanceSnapshot) error {
	blob, err := msgpack.Marshal(snapshot)
	if err != nil {
		return domain.StorageError("encode snapshot", err)
	}

	query := `
		INSERT INTO performance_snapshots (cache_key, snapshot, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			snapshot = excluded.snapshot,
			created_at = excluded.created_at
	`
	if _, err := c.cacheDB.Exec(query, key, blob, time.Now().Unix()); err != nil {
		return domain.StorageError("put cached snapshot", err)
	}

	return nil
}

// Invalidate drops every cached snapshot. Called after each applied trade.
func (c *SnapshotCache) Invalidate() error {
	if _, err := c.cacheDB.Exec("DELETE FROM performance_snapshots"); err != nil {
		return domain.StorageError("invalidate snapshot cache", err)
	}
	return nil
}
