package trading

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/alphaview/alphaview/internal/domain"
	"github.com/alphaview/alphaview/internal/modules/auth"
	"github.com/alphaview/alphaview/internal/modules/ledger"
)

// QueryService serves read access to positions and the execution log.
// Every method authorizes the caller for read before touching storage.
type QueryService struct {
	positions *ledger.PositionRepository
	execLog   *ledger.ExecutionLog
	gate      *auth.Gate
	log       zerolog.Logger
}

// NewQueryService creates a new ledger query service
func NewQueryService(
	positions *ledger.PositionRepository,
	execLog *ledger.ExecutionLog,
	gate *auth.Gate,
	log zerolog.Logger,
) *QueryService {
	return &QueryService{
		positions: positions,
		execLog:   execLog,
		gate:      gate,
		log:       log.With().Str("service", "ledger_query").Logger(),
	}
}

// GetPositions returns all open positions
func (s *QueryService) GetPositions(ctx context.Context, token string) ([]domain.Position, error) {
	if _, err := s.gate.Authorize(ctx, token, domain.OperationRead); err != nil {
		return nil, err
	}
	return s.positions.GetOpen()
}

// GetPosition returns the position for one symbol, or nil when none is held
func (s *QueryService) GetPosition(ctx context.Context, token, symbol string) (*domain.Position, error) {
	if _, err := s.gate.Authorize(ctx, token, domain.OperationRead); err != nil {
		return nil, err
	}
	return s.positions.Get(symbol)
}

// GetHistory returns recent executions, most recent first
func (s *QueryService) GetHistory(ctx context.Context, token string, limit int) ([]domain.Execution, error) {
	if _, err := s.gate.Authorize(ctx, token, domain.OperationRead); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	return s.execLog.GetHistory(limit)
}

// GetHistoryRange returns executions in log order, optionally filtered by
// symbol and an inclusive YYYY-MM-DD date range. Empty arguments leave that
// bound open.
func (s *QueryService) GetHistoryRange(ctx context.Context, token, symbol, from, to string) ([]domain.Execution, error) {
	if _, err := s.gate.Authorize(ctx, token, domain.OperationRead); err != nil {
		return nil, err
	}
	return s.execLog.GetRange(symbol, from, to)
}

// GetSymbolHistory returns recent executions for one symbol
func (s *QueryService) GetSymbolHistory(ctx context.Context, token, symbol string, limit int) ([]domain.Execution, error) {
	if _, err := s.gate.Authorize(ctx, token, domain.OperationRead); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	return s.execLog.GetBySymbol(symbol, limit)
}
