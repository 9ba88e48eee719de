// Package trading executes trades against the position ledger.
package trading

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/alphaview/alphaview/internal/database"
	"github.com/alphaview/alphaview/internal/domain"
	"github.com/alphaview/alphaview/internal/modules/auth"
	"github.com/alphaview/alphaview/internal/modules/ledger"
)

// TradeRequest describes one trade to execute. RefID is the caller's
// idempotency key; when empty a fresh one is generated, which means retries
// without a RefID are distinct trades.
type TradeRequest struct {
	Token      string
	RefID      string
	Symbol     string
	Side       domain.Side
	Quantity   float64
	Price      float64
	ExecutedAt time.Time
}

// SnapshotInvalidator drops memoized derived state after the ledger changes.
// The performance module's snapshot cache satisfies this.
type SnapshotInvalidator interface {
	Invalidate() error
}

// Executor validates, authorizes, and applies trades. The position update
// and the log append commit in one transaction: a crash between them can
// never leave the ledger and the log disagreeing.
type Executor struct {
	ledgerDB     *database.DB
	positions    *ledger.PositionRepository
	execLog      *ledger.ExecutionLog
	gate         *auth.Gate
	allowShort   bool
	invalidators []SnapshotInvalidator
	log          zerolog.Logger

	// Per-symbol locks serialize trades on the same symbol while letting
	// different symbols proceed concurrently
	locksMu     sync.Mutex
	symbolLocks map[string]*sync.Mutex
}

// NewExecutor creates a new trade executor
func NewExecutor(
	ledgerDB *database.DB,
	positions *ledger.PositionRepository,
	execLog *ledger.ExecutionLog,
	gate *auth.Gate,
	allowShort bool,
	log zerolog.Logger,
) *Executor {
	return &Executor{
		ledgerDB:    ledgerDB,
		positions:   positions,
		execLog:     execLog,
		gate:        gate,
		allowShort:  allowShort,
		log:         log.With().Str("service", "executor").Logger(),
		symbolLocks: make(map[string]*sync.Mutex),
	}
}

// RegisterInvalidator adds a cache to drop after every applied trade
func (e *Executor) RegisterInvalidator(inv SnapshotInvalidator) {
	e.invalidators = append(e.invalidators, inv)
}

// Execute runs one trade end to end: authorization, validation, ledger
// update, and log append. The access check runs before anything else so a
// viewer probing with garbage input learns nothing about validation rules.
func (e *Executor) Execute(ctx context.Context, req TradeRequest) (*domain.Execution, error) {
	principal, err := e.gate.Authorize(ctx, req.Token, domain.OperationTrade)
	if err != nil {
		return nil, err
	}

	refID := req.RefID
	if refID == "" {
		refID = uuid.NewString()
	}

	exec := domain.Execution{
		RefID:      refID,
		Symbol:     domain.NormalizeSymbol(req.Symbol),
		Side:       req.Side,
		Quantity:   req.Quantity,
		Price:      req.Price,
		Actor:      principal.ID,
		ActorRole:  principal.Role,
		ExecutedAt: req.ExecutedAt,
	}
	if exec.ExecutedAt.IsZero() {
		exec.ExecutedAt = time.Now().UTC()
	}

	if err := exec.Validate(); err != nil {
		return nil, err
	}

	// Idempotency: a retry with a known RefID returns the recorded
	// execution without touching the ledger
	if existing, err := e.execLog.GetByRefID(refID); err != nil {
		return nil, err
	} else if existing != nil {
		e.log.Debug().
			Str("ref_id", refID).
			Msg("Duplicate ref_id, returning recorded execution")
		return existing, nil
	}

	// The lock covers only the ledger transaction; cache invalidation and
	// the final re-read run outside it
	err = func() error {
		unlock := e.lockSymbol(exec.Symbol)
		defer unlock()

		return database.WithTransaction(e.ledgerDB.Conn(), func(tx *sql.Tx) error {
			current, err := e.positions.GetTx(tx, exec.Symbol)
			if err != nil {
				return err
			}

			next, err := ledger.ApplyExecution(current, exec, e.allowShort)
			if err != nil {
				return err
			}

			if err := e.positions.UpsertTx(tx, next); err != nil {
				return err
			}

			id, err := e.execLog.AppendTx(tx, exec)
			if err != nil {
				return err
			}
			exec.ID = id

			return nil
		})
	}()
	if errors.Is(err, domain.ErrDuplicateRefID) {
		// A racing retry lost to the caller that committed this RefID;
		// the trade is applied, so answer with its recorded execution
		e.log.Debug().
			Str("ref_id", refID).
			Msg("Duplicate ref_id raced, returning recorded execution")
		recorded, readErr := e.execLog.GetByRefID(refID)
		if readErr != nil {
			return nil, readErr
		}
		if recorded == nil {
			return nil, err
		}
		return recorded, nil
	}
	if err != nil {
		return nil, err
	}

	e.invalidateSnapshots()

	e.log.Info().
		Str("ref_id", exec.RefID).
		Str("symbol", exec.Symbol).
		Str("side", string(exec.Side)).
		Float64("quantity", exec.Quantity).
		Float64("price", exec.Price).
		Str("actor", exec.Actor).
		Msg("Trade executed")

	recorded, err := e.execLog.GetByRefID(exec.RefID)
	if err != nil {
		return nil, err
	}
	return recorded, nil
}

// lockSymbol acquires the mutex for a symbol, creating it on first use
func (e *Executor) lockSymbol(symbol string) func() {
	e.locksMu.Lock()
	mu, ok := e.symbolLocks[symbol]
	if !ok {
		mu = &sync.Mutex{}
		e.symbolLocks[symbol] = mu
	}
	e.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

func (e *Executor) invalidateSnapshots() {
	for _, inv := range e.invalidators {
		if err := inv.Invalidate(); err != nil {
			e.log.Warn().Err(err).Msg("Snapshot invalidation failed")
		}
	}
}
