package performance

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphaview/alphaview/internal/config"
	"github.com/alphaview/alphaview/internal/domain"
	"github.com/alphaview/alphaview/internal/modules/auth"
	"github.com/alphaview/alphaview/internal/modules/ledger"
	"github.com/alphaview/alphaview/internal/modules/prices"
)

const (
	adminToken  = "admin-token"
	viewerToken = "viewer-token"
)

type engineFixture struct {
	engine  *Engine
	execLog *ledger.ExecutionLog
	prices  *prices.PriceRepository
	cache   *SnapshotCache
	ledger  *sql.DB
	cacheDB *sql.DB
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	open := func(schema string) *sql.DB {
		db, err := sql.Open("sqlite", ":memory:")
		if err != nil {
			t.Fatalf("Failed to open test database: %v", err)
		}
		t.Cleanup(func() { _ = db.Close() })
		if _, err := db.Exec(schema); err != nil {
			t.Fatalf("Failed to create test tables: %v", err)
		}
		return db
	}

	ledgerDB := open(`
		CREATE TABLE executions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ref_id TEXT NOT NULL UNIQUE,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			quantity REAL NOT NULL,
			price REAL NOT NULL,
			actor TEXT NOT NULL,
			actor_role TEXT NOT NULL,
			executed_at INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		)
	`)
	historyDB := open(`
		CREATE TABLE daily_prices (
			symbol TEXT NOT NULL,
			date TEXT NOT NULL,
			close REAL NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (symbol, date)
		)
	`)
	cacheDB := open(`
		CREATE TABLE performance_snapshots (
			cache_key TEXT PRIMARY KEY,
			snapshot BLOB NOT NULL,
			created_at INTEGER NOT NULL
		)
	`)

	log := zerolog.Nop()
	execLog := ledger.NewExecutionLog(ledgerDB, log)
	priceRepo := prices.NewPriceRepository(historyDB, log)
	cache := NewSnapshotCache(cacheDB, log)

	resolver := auth.NewStaticResolver()
	resolver.Register(adminToken, domain.Principal{ID: "alice", Role: domain.RoleAdmin})
	resolver.Register(viewerToken, domain.Principal{ID: "bob", Role: domain.RoleViewer})
	gate := auth.NewGate(resolver, log)

	cfg := config.RiskConfig{
		VaRConfidence:  0.95,
		WindowDays:     252,
		RiskFreeRate:   0.02,
		PeriodsPerYear: 252,
	}

	return &engineFixture{
		engine:  NewEngine(execLog, priceRepo, cache, gate, cfg, log),
		execLog: execLog,
		prices:  priceRepo,
		cache:   cache,
		ledger:  ledgerDB,
		cacheDB: cacheDB,
	}
}

func (f *engineFixture) addExec(t *testing.T, refID, symbol string, side domain.Side, qty, price float64, date string) {
	t.Helper()
	day, err := domain.ParseDate(date)
	require.NoError(t, err)

	tx, err := f.ledger.Begin()
	require.NoError(t, err)
	_, err = f.execLog.AppendTx(tx, domain.Execution{
		RefID:      refID,
		Symbol:     symbol,
		Side:       side,
		Quantity:   qty,
		Price:      price,
		Actor:      "alice",
		ActorRole:  domain.RoleAdmin,
		ExecutedAt: day.Add(15 * time.Hour),
	})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
}

func (f *engineFixture) addPrice(t *testing.T, symbol, date string, close float64) {
	t.Helper()
	require.NoError(t, f.prices.Upsert(domain.PriceQuote{Symbol: symbol, Date: date, Close: close}))
}

func TestEngine_EmptyPortfolioIsZeroSnapshot(t *testing.T) {
	f := newEngineFixture(t)

	snap, err := f.engine.GetSnapshot(context.Background(), viewerToken, "2026-01-10")
	require.NoError(t, err)

	assert.Equal(t, "2026-01-10", snap.AsOf)
	assert.Equal(t, 0.0, snap.TotalValue)
	assert.Equal(t, 0.0, snap.SharpeRatio)
	assert.Equal(t, 0.0, snap.MaxDrawdown)
	assert.Equal(t, 0.0, snap.ValueAtRisk)
}

func TestEngine_ValuesHoldingsAtAsOfCloses(t *testing.T) {
	f := newEngineFixture(t)

	f.addExec(t, "r1", "AAPL", domain.SideBuy, 10, 100, "2026-01-05")
	f.addPrice(t, "AAPL", "2026-01-05", 100)
	f.addPrice(t, "AAPL", "2026-01-06", 110)

	snap, err := f.engine.GetSnapshot(context.Background(), adminToken, "2026-01-06")
	require.NoError(t, err)

	assert.InDelta(t, 1100.0, snap.TotalValue, 1e-9)
	assert.InDelta(t, 0.10, snap.TotalReturn, 1e-9)
	assert.Equal(t, 0.0, snap.MaxDrawdown, "a rising series has no drawdown")
	assert.InDelta(t, 0.10, snap.ValueAtRisk, 1e-9, "one observation is its own tail")
	assert.Greater(t, snap.AnnualizedReturn, 0.0)
}

func TestEngine_DrawdownOverWindow(t *testing.T) {
	f := newEngineFixture(t)

	f.addExec(t, "r1", "AAPL", domain.SideBuy, 1, 100, "2026-01-05")
	f.addPrice(t, "AAPL", "2026-01-05", 100)
	f.addPrice(t, "AAPL", "2026-01-06", 120)
	f.addPrice(t, "AAPL", "2026-01-07", 90)
	f.addPrice(t, "AAPL", "2026-01-08", 100)

	snap, err := f.engine.GetSnapshot(context.Background(), adminToken, "2026-01-08")
	require.NoError(t, err)

	assert.InDelta(t, 0.25, snap.MaxDrawdown, 1e-9, "120 down to 90 is a 25% drawdown")
	assert.Less(t, snap.ValueAtRisk, 0.0, "the worst daily return is a loss")
	assert.LessOrEqual(t, snap.CVaR, snap.ValueAtRisk, "expected shortfall is at least as bad as VaR")
}

func TestEngine_MissingPriceNamesSymbolAndDate(t *testing.T) {
	f := newEngineFixture(t)

	f.addExec(t, "r1", "AAPL", domain.SideBuy, 10, 100, "2026-01-05")

	_, err := f.engine.GetSnapshot(context.Background(), adminToken, "2026-01-06")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMissingPriceData)
	assert.Contains(t, err.Error(), "AAPL")
	assert.Contains(t, err.Error(), "2026-01-06")
}

func TestEngine_ClosedPositionsNeedNoPrice(t *testing.T) {
	f := newEngineFixture(t)

	// MSFT was bought and fully sold; only AAPL needs a close
	f.addExec(t, "r1", "MSFT", domain.SideBuy, 5, 300, "2026-01-05")
	f.addExec(t, "r2", "MSFT", domain.SideSell, 5, 310, "2026-01-05")
	f.addExec(t, "r3", "AAPL", domain.SideBuy, 10, 100, "2026-01-05")
	f.addPrice(t, "AAPL", "2026-01-05", 100)

	snap, err := f.engine.GetSnapshot(context.Background(), adminToken, "2026-01-05")
	require.NoError(t, err)
	assert.InDelta(t, 1000.0, snap.TotalValue, 1e-9)
}

func TestEngine_AuthorizationGatesReads(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.engine.GetSnapshot(context.Background(), "bogus", "2026-01-10")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	_, err = f.engine.GetSnapshot(context.Background(), viewerToken, "2026-01-10")
	assert.NoError(t, err, "viewers may read performance")
}

func TestEngine_RejectsBadDate(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.engine.GetSnapshot(context.Background(), adminToken, "06/01/2026")
	assert.Error(t, err)
}

// While the log is unchanged, the snapshot is served from the cache even if
// the price store moves underneath it. Invalidation forces a recompute.
func TestEngine_CachesUntilInvalidated(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	f.addExec(t, "r1", "AAPL", domain.SideBuy, 10, 100, "2026-01-05")
	f.addPrice(t, "AAPL", "2026-01-05", 100)

	first, err := f.engine.GetSnapshot(ctx, adminToken, "2026-01-05")
	require.NoError(t, err)
	assert.InDelta(t, 1000.0, first.TotalValue, 1e-9)

	var count int
	require.NoError(t, f.cacheDB.QueryRow("SELECT COUNT(*) FROM performance_snapshots").Scan(&count))
	assert.Equal(t, 1, count)

	// Change the underlying close; the cached snapshot still wins
	f.addPrice(t, "AAPL", "2026-01-05", 200)
	cached, err := f.engine.GetSnapshot(ctx, adminToken, "2026-01-05")
	require.NoError(t, err)
	assert.InDelta(t, 1000.0, cached.TotalValue, 1e-9)

	require.NoError(t, f.cache.Invalidate())
	fresh, err := f.engine.GetSnapshot(ctx, adminToken, "2026-01-05")
	require.NoError(t, err)
	assert.InDelta(t, 2000.0, fresh.TotalValue, 1e-9)
}

// A new log entry changes the cache key, so a snapshot computed before a
// trade can never be served after it.
func TestEngine_LogGrowthBypassesOldCache(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	f.addExec(t, "r1", "AAPL", domain.SideBuy, 10, 100, "2026-01-05")
	f.addPrice(t, "AAPL", "2026-01-05", 100)

	first, err := f.engine.GetSnapshot(ctx, adminToken, "2026-01-05")
	require.NoError(t, err)
	assert.InDelta(t, 1000.0, first.TotalValue, 1e-9)

	f.addExec(t, "r2", "AAPL", domain.SideBuy, 10, 100, "2026-01-05")

	second, err := f.engine.GetSnapshot(ctx, adminToken, "2026-01-05")
	require.NoError(t, err)
	assert.InDelta(t, 2000.0, second.TotalValue, 1e-9)
}

func TestSnapshotCache_RoundTrip(t *testing.T) {
	f := newEngineFixture(t)

	snap := domain.PerformanceSnapshot{
		AsOf:        "2026-01-05",
		TotalValue:  1234.5,
		SharpeRatio: 1.1,
		MaxDrawdown: 0.2,
	}
	require.NoError(t, f.cache.Put("2026-01-05:3", snap))

	got, err := f.cache.Get("2026-01-05:3")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, snap, *got)

	miss, err := f.cache.Get("2026-01-06:3")
	require.NoError(t, err)
	assert.Nil(t, miss)

	require.NoError(t, f.cache.Invalidate())
	gone, err := f.cache.Get("2026-01-05:3")
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestSnapshotCache_CorruptEntryIsAMiss(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.cacheDB.Exec(
		"INSERT INTO performance_snapshots (cache_key, snapshot, created_at) VALUES (?, ?, ?)",
		"bad", []byte{0xc1, 0xff}, time.Now().Unix(),
	)
	require.NoError(t, err)

	got, err := f.cache.Get("bad")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestEngine_Weights(t *testing.T) {
	f := newEngineFixture(t)

	f.addExec(t, "r1", "AAPL", domain.SideBuy, 10, 100, "2026-01-05")
	f.addExec(t, "r2", "MSFT", domain.SideBuy, 2, 300, "2026-01-05")
	f.addExec(t, "r3", "TSLA", domain.SideBuy, 5, 200, "2026-01-05")
	f.addExec(t, "r4", "TSLA", domain.SideSell, 5, 210, "2026-01-06")
	f.addPrice(t, "AAPL", "2026-01-06", 150)
	f.addPrice(t, "MSFT", "2026-01-06", 250)

	weights, err := f.engine.GetWeights(context.Background(), viewerToken, "2026-01-06")
	require.NoError(t, err)

	// AAPL 1500, MSFT 500; TSLA is flat and needs no price
	require.Len(t, weights, 2)
	assert.InDelta(t, 0.75, weights["AAPL"], 1e-9)
	assert.InDelta(t, 0.25, weights["MSFT"], 1e-9)
}

func TestEngine_WeightsEmptyPortfolio(t *testing.T) {
	f := newEngineFixture(t)

	weights, err := f.engine.GetWeights(context.Background(), viewerToken, "2026-01-06")
	require.NoError(t, err)
	assert.Empty(t, weights)

	_, err = f.engine.GetWeights(context.Background(), "bogus", "2026-01-06")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}
