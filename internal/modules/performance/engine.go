package performance

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/alphaview/alphaview/internal/config"
	"github.com/alphaview/alphaview/internal/domain"
	"github.com/alphaview/alphaview/internal/modules/auth"
	"github.com/alphaview/alphaview/internal/modules/ledger"
	"github.com/alphaview/alphaview/internal/modules/prices"
	"github.com/alphaview/alphaview/pkg/formulas"
)

// Engine computes performance snapshots. Every snapshot is derived: the
// engine folds the execution log up to the as-of date and values the result
// against stored closes, so recomputation always agrees with the ledger.
type Engine struct {
	execLog *ledger.ExecutionLog
	prices  *prices.PriceRepository
	cache   *SnapshotCache
	gate    *auth.Gate
	cfg     config.RiskConfig
	log     zerolog.Logger
}

// NewEngine creates a new performance engine
func NewEngine(
	execLog *ledger.ExecutionLog,
	priceRepo *prices.PriceRepository,
	cache *SnapshotCache,
	gate *auth.Gate,
	cfg config.RiskConfig,
	log zerolog.Logger,
) *Engine {
	return &Engine{
		execLog: execLog,
		prices:  priceRepo,
		cache:   cache,
		gate:    gate,
		cfg:     cfg,
		log:     log.With().Str("service", "performance").Logger(),
	}
}

// GetSnapshot returns the performance snapshot as of a date, serving from
// the cache when the log has not moved since it was computed
func (e *Engine) GetSnapshot(ctx context.Context, token, asOf string) (*domain.PerformanceSnapshot, error) {
	if _, err := e.gate.Authorize(ctx, token, domain.OperationRead); err != nil {
		return nil, err
	}

	if asOf == "" {
		asOf = time.Now().UTC().Format(domain.DateFormat)
	}
	if _, err := domain.ParseDate(asOf); err != nil {
		return nil, err
	}

	logLen, err := e.execLog.Count()
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s:%d", asOf, logLen)
	if e.cache != nil {
		if cached, err := e.cache.Get(key); err != nil {
			e.log.Warn().Err(err).Msg("Snapshot cache read failed, recomputing")
		} else if cached != nil {
			return cached, nil
		}
	}

	snapshot, err := e.compute(asOf)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		if err := e.cache.Put(key, *snapshot); err != nil {
			e.log.Warn().Err(err).Msg("Snapshot cache write failed")
		}
	}

	return snapshot, nil
}

// GetWeights returns each open holding's share of portfolio value as of a
// date. An empty portfolio yields an empty map.
func (e *Engine) GetWeights(ctx context.Context, token, asOf string) (map[string]float64, error) {
	if _, err := e.gate.Authorize(ctx, token, domain.OperationRead); err != nil {
		return nil, err
	}

	if asOf == "" {
		asOf = time.Now().UTC().Format(domain.DateFormat)
	}
	if _, err := domain.ParseDate(asOf); err != nil {
		return nil, err
	}

	execs, err := e.execLog.GetAllUpTo(asOf)
	if err != nil {
		return nil, err
	}

	weights := make(map[string]float64)
	if len(execs) == 0 {
		return weights, nil
	}

	holdings, err := ledger.ReplayLog(execs, true)
	if err != nil {
		return nil, err
	}

	values := make(map[string]float64)
	total := 0.0
	for symbol, pos := range holdings {
		if pos.Quantity == 0 {
			continue
		}
		close, err := e.prices.GetClose(symbol, asOf)
		if err != nil {
			return nil, err
		}
		v := pos.MarketValue(close)
		values[symbol] = v
		total += v
	}

	if total == 0 {
		return weights, nil
	}
	for symbol, v := range values {
		weights[symbol] = v / total
	}
	return weights, nil
}

// compute builds the snapshot from scratch
func (e *Engine) compute(asOf string) (*domain.PerformanceSnapshot, error) {
	execs, err := e.execLog.GetAllUpTo(asOf)
	if err != nil {
		return nil, err
	}

	// An empty portfolio has a defined, all-zero snapshot
	if len(execs) == 0 {
		return &domain.PerformanceSnapshot{AsOf: asOf}, nil
	}

	// Value the as-of holdings first so a missing close surfaces as the
	// specific symbol/date error rather than a zero metric
	holdings, err := ledger.ReplayLog(execs, true)
	if err != nil {
		return nil, err
	}

	totalValue := 0.0
	for symbol, pos := range holdings {
		if pos.Quantity == 0 {
			continue
		}
		close, err := e.prices.GetClose(symbol, asOf)
		if err != nil {
			return nil, err
		}
		totalValue += pos.MarketValue(close)
	}

	series, err := e.valueSeries(execs, asOf)
	if err != nil {
		return nil, err
	}

	returns := formulas.Returns(series)

	snapshot := &domain.PerformanceSnapshot{
		AsOf:       asOf,
		TotalValue: totalValue,
	}

	if len(returns) == 0 {
		return snapshot, nil
	}

	annReturn := formulas.AnnualizedReturn(returns, e.cfg.PeriodsPerYear)
	maxDD := formulas.MaxDrawdown(series)

	snapshot.TotalReturn = formulas.TotalReturn(returns)
	snapshot.AnnualizedReturn = annReturn
	snapshot.AnnualizedVolatility = formulas.AnnualizedVolatility(returns, e.cfg.PeriodsPerYear)
	snapshot.SharpeRatio = formulas.SharpeRatio(returns, e.cfg.RiskFreeRate, e.cfg.PeriodsPerYear)
	snapshot.MaxDrawdown = maxDD
	snapshot.ValueAtRisk = formulas.ValueAtRisk(returns, e.cfg.VaRConfidence)
	snapshot.CVaR = formulas.ConditionalValueAtRisk(returns, e.cfg.VaRConfidence)
	snapshot.CalmarRatio = formulas.CalmarRatio(annReturn, maxDD)

	return snapshot, nil
}

// valueSeries builds the daily portfolio value series over the risk window
// ending at asOf. It walks price dates in order, folding executions as their
// dates pass, and values holdings at each date's closes. Dates before the
// first execution are skipped; they belong to an empty portfolio.
func (e *Engine) valueSeries(execs []domain.Execution, asOf string) ([]float64, error) {
	dates, err := e.prices.GetDatesUpTo(asOf, e.cfg.WindowDays)
	if err != nil {
		return nil, err
	}
	if len(dates) == 0 {
		return nil, nil
	}

	// Executions arrive in log order; sort defensively by time then id
	sorted := make([]domain.Execution, len(execs))
	copy(sorted, execs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].ExecutedAt.Equal(sorted[j].ExecutedAt) {
			return sorted[i].ExecutedAt.Before(sorted[j].ExecutedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})

	holdings := make(map[string]domain.Position)
	next := 0
	var series []float64

	for _, date := range dates {
		t, err := domain.ParseDate(date)
		if err != nil {
			return nil, err
		}
		endOfDay := time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, time.UTC)

		for next < len(sorted) && !sorted[next].ExecutedAt.After(endOfDay) {
			exec := sorted[next]
			symbol := domain.NormalizeSymbol(exec.Symbol)
			var current *domain.Position
			if pos, ok := holdings[symbol]; ok {
				current = &pos
			}
			applied, err := ledger.ApplyExecution(current, exec, true)
			if err != nil {
				return nil, err
			}
			holdings[symbol] = applied
			next++
		}

		if next == 0 {
			// Nothing held yet on this date
			continue
		}

		value := 0.0
		for symbol, pos := range holdings {
			if pos.Quantity == 0 {
				continue
			}
			close, err := e.prices.GetClose(symbol, date)
			if err != nil {
				return nil, err
			}
			value += pos.MarketValue(close)
		}
		series = append(series, value)
	}

	return series, nil
}
