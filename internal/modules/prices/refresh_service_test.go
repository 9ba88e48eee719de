package prices

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphaview/alphaview/internal/domain"
	"github.com/alphaview/alphaview/internal/modules/auth"
)

// fakeFeed returns canned quotes per symbol and records the since argument
type fakeFeed struct {
	quotes map[string][]domain.PriceQuote
	errs   map[string]error
	since  map[string]string
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{
		quotes: make(map[string][]domain.PriceQuote),
		errs:   make(map[string]error),
		since:  make(map[string]string),
	}
}

func (f *fakeFeed) FetchDailyCloses(_ context.Context, symbol string, since string) ([]domain.PriceQuote, error) {
	f.since[symbol] = since
	if err := f.errs[symbol]; err != nil {
		return nil, err
	}
	return f.quotes[symbol], nil
}

// fakeHoldings returns a fixed set of open positions
type fakeHoldings struct {
	positions []domain.Position
	err       error
}

func (f *fakeHoldings) GetOpen() ([]domain.Position, error) {
	return f.positions, f.err
}

func TestRefreshService_RefreshAllStoresQuotes(t *testing.T) {
	db := setupHistoryDB(t)
	repo := NewPriceRepository(db, zerolog.Nop())

	feed := newFakeFeed()
	feed.quotes["AAPL"] = []domain.PriceQuote{
		{Symbol: "AAPL", Date: "2026-01-09", Close: 149},
		{Symbol: "AAPL", Date: "2026-01-12", Close: 151},
	}
	feed.quotes["MSFT"] = []domain.PriceQuote{
		{Symbol: "MSFT", Date: "2026-01-12", Close: 305},
	}

	holdings := &fakeHoldings{positions: []domain.Position{
		{Symbol: "AAPL", Quantity: 10},
		{Symbol: "MSFT", Quantity: 5},
	}}

	svc := NewRefreshService(repo, feed, holdings, 5, zerolog.Nop())
	require.NoError(t, svc.RefreshAll(context.Background()))

	close, err := repo.GetClose("AAPL", "2026-01-12")
	require.NoError(t, err)
	assert.Equal(t, 151.0, close)

	close, err = repo.GetClose("MSFT", "2026-01-12")
	require.NoError(t, err)
	assert.Equal(t, 305.0, close)
}

func TestRefreshService_OneFailureDoesNotStopOthers(t *testing.T) {
	db := setupHistoryDB(t)
	repo := NewPriceRepository(db, zerolog.Nop())

	feed := newFakeFeed()
	feed.errs["AAPL"] = errors.New("vendor down")
	feed.quotes["MSFT"] = []domain.PriceQuote{
		{Symbol: "MSFT", Date: "2026-01-12", Close: 305},
	}

	holdings := &fakeHoldings{positions: []domain.Position{
		{Symbol: "AAPL", Quantity: 10},
		{Symbol: "MSFT", Quantity: 5},
	}}

	svc := NewRefreshService(repo, feed, holdings, 5, zerolog.Nop())
	err := svc.RefreshAll(context.Background())
	require.Error(t, err, "the pass reports the failure")

	close, err2 := repo.GetClose("MSFT", "2026-01-12")
	require.NoError(t, err2, "the healthy symbol still refreshed")
	assert.Equal(t, 305.0, close)
}

func TestRefreshService_SinceStartsAtLatestStoredQuote(t *testing.T) {
	db := setupHistoryDB(t)
	repo := NewPriceRepository(db, zerolog.Nop())

	require.NoError(t, repo.Upsert(domain.PriceQuote{Symbol: "AAPL", Date: "2026-01-09", Close: 149}))

	feed := newFakeFeed()
	holdings := &fakeHoldings{positions: []domain.Position{{Symbol: "AAPL", Quantity: 10}}}

	svc := NewRefreshService(repo, feed, holdings, 5, zerolog.Nop())
	require.NoError(t, svc.RefreshSymbol(context.Background(), "AAPL"))

	assert.Equal(t, "2026-01-09", feed.since["AAPL"])
}

func TestRefreshService_BackfillsYearForNewSymbol(t *testing.T) {
	db := setupHistoryDB(t)
	repo := NewPriceRepository(db, zerolog.Nop())

	feed := newFakeFeed()
	holdings := &fakeHoldings{positions: []domain.Position{{Symbol: "AAPL", Quantity: 10}}}

	svc := NewRefreshService(repo, feed, holdings, 5, zerolog.Nop())
	require.NoError(t, svc.RefreshSymbol(context.Background(), "AAPL"))

	since, err := domain.ParseDate(feed.since["AAPL"])
	require.NoError(t, err)
	assert.True(t, time.Since(since) > 360*24*time.Hour, "new symbols backfill about a year")
}

func TestRefreshService_NoHoldingsIsNoOp(t *testing.T) {
	db := setupHistoryDB(t)
	repo := NewPriceRepository(db, zerolog.Nop())

	svc := NewRefreshService(repo, newFakeFeed(), &fakeHoldings{}, 5, zerolog.Nop())
	assert.NoError(t, svc.RefreshAll(context.Background()))
}

func TestRefreshService_CancelledContextStops(t *testing.T) {
	db := setupHistoryDB(t)
	repo := NewPriceRepository(db, zerolog.Nop())

	holdings := &fakeHoldings{positions: []domain.Position{{Symbol: "AAPL", Quantity: 10}}}
	svc := NewRefreshService(repo, newFakeFeed(), holdings, 5, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := svc.RefreshAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRefreshService_RefreshForTokenRequiresCapability(t *testing.T) {
	db := setupHistoryDB(t)
	repo := NewPriceRepository(db, zerolog.Nop())

	feed := newFakeFeed()
	feed.quotes["AAPL"] = []domain.PriceQuote{
		{Symbol: "AAPL", Date: "2026-01-12", Close: 151},
	}
	holdings := &fakeHoldings{positions: []domain.Position{{Symbol: "AAPL", Quantity: 10}}}
	svc := NewRefreshService(repo, feed, holdings, 5, zerolog.Nop())

	resolver := auth.NewStaticResolver()
	resolver.Register("admin-token", domain.Principal{ID: "alice", Role: domain.RoleAdmin})
	resolver.Register("viewer-token", domain.Principal{ID: "bob", Role: domain.RoleViewer})
	gate := auth.NewGate(resolver, zerolog.Nop())

	err := svc.RefreshForToken(context.Background(), gate, "viewer-token")
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	_, err = repo.GetClose("AAPL", "2026-01-12")
	assert.ErrorIs(t, err, domain.ErrMissingPriceData, "denied refresh must not touch the store")

	require.NoError(t, svc.RefreshForToken(context.Background(), gate, "admin-token"))

	close, err := repo.GetClose("AAPL", "2026-01-12")
	require.NoError(t, err)
	assert.Equal(t, 151.0, close)
}
