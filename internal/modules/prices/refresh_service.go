package prices

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/alphaview/alphaview/internal/domain"
)

// QuoteFeed fetches daily closes from an external market data source.
// Implementations wrap whatever vendor the deployment uses.
type QuoteFeed interface {
	FetchDailyCloses(ctx context.Context, symbol string, since string) ([]domain.PriceQuote, error)
}

// HoldingsProvider supplies the symbols worth refreshing. The ledger's
// position repository satisfies this.
type HoldingsProvider interface {
	GetOpen() ([]domain.Position, error)
}

// Authorizer checks a caller's capability. The access gate satisfies this.
type Authorizer interface {
	Authorize(ctx context.Context, token string, op domain.Operation) (*domain.Principal, error)
}

// RefreshService pulls fresh closes for every held symbol into the price
// store
type RefreshService struct {
	repo           *PriceRepository
	feed           QuoteFeed
	holdings       HoldingsProvider
	staleAfterDays int
	log            zerolog.Logger
}

// NewRefreshService creates a new price refresh service
func NewRefreshService(
	repo *PriceRepository,
	feed QuoteFeed,
	holdings HoldingsProvider,
	staleAfterDays int,
	log zerolog.Logger,
) *RefreshService {
	return &RefreshService{
		repo:           repo,
		feed:           feed,
		holdings:       holdings,
		staleAfterDays: staleAfterDays,
		log:            log.With().Str("service", "price_refresh").Logger(),
	}
}

// RefreshForToken runs a full refresh on behalf of a caller. The scheduler
// path calls RefreshAll directly; this is the entry point for on-demand
// refreshes, which require the refresh capability.
func (s *RefreshService) RefreshForToken(ctx context.Context, gate Authorizer, token string) error {
	principal, err := gate.Authorize(ctx, token, domain.OperationRefreshPrices)
	if err != nil {
		return err
	}
	s.log.Info().Str("actor", principal.ID).Msg("On-demand price refresh requested")
	return s.RefreshAll(ctx)
}

// RefreshAll fetches and stores daily closes for every open position.
// A failure on one symbol does not stop the others; the first error is
// returned after the full pass so the scheduler can log it.
func (s *RefreshService) RefreshAll(ctx context.Context) error {
	positions, err := s.holdings.GetOpen()
	if err != nil {
		return fmt.Errorf("failed to list holdings for refresh: %w", err)
	}

	if len(positions) == 0 {
		s.log.Debug().Msg("No open positions, nothing to refresh")
		return nil
	}

	var firstErr error
	refreshed := 0
	for _, pos := range positions {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.RefreshSymbol(ctx, pos.Symbol); err != nil {
			s.log.Error().Err(err).Str("symbol", pos.Symbol).Msg("Price refresh failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		refreshed++
	}

	s.log.Info().
		Int("refreshed", refreshed).
		Int("total", len(positions)).
		Msg("Price refresh pass complete")

	return firstErr
}

// RefreshSymbol fetches closes for one symbol since its latest stored quote
// and upserts them
func (s *RefreshService) RefreshSymbol(ctx context.Context, symbol string) error {
	symbol = domain.NormalizeSymbol(symbol)

	latest, err := s.repo.GetLatestDate(symbol)
	if err != nil {
		return err
	}

	// With no stored history, backfill a year so the risk window has data
	since := time.Now().UTC().AddDate(-1, 0, 0).Format(domain.DateFormat)
	if latest != nil {
		since = *latest
	}

	quotes, err := s.feed.FetchDailyCloses(ctx, symbol, since)
	if err != nil {
		return fmt.Errorf("failed to fetch closes for %s: %w", symbol, err)
	}

	if len(quotes) == 0 {
		s.warnIfStale(symbol, latest)
		return nil
	}

	if err := s.repo.UpsertBatch(quotes); err != nil {
		return err
	}

	s.log.Debug().Str("symbol", symbol).Int("quotes", len(quotes)).Msg("Symbol refreshed")
	return nil
}

func (s *RefreshService) warnIfStale(symbol string, latest *string) {
	if latest == nil {
		s.log.Warn().Str("symbol", symbol).Msg("No price history for held symbol")
		return
	}

	t, err := domain.ParseDate(*latest)
	if err != nil {
		return
	}

	age := int(time.Since(t).Hours() / 24)
	if s.staleAfterDays > 0 && age > s.staleAfterDays {
		s.log.Warn().
			Str("symbol", symbol).
			Str("latest", *latest).
			Int("age_days", age).
			Msg("Price history is stale")
	}
}
