package ledger

import (
	"database/sql"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/alphaview/alphaview/internal/domain"
)

// positionsColumns is the list of columns for the positions table.
// Column order must match scanPosition() expectations.
const positionsColumns = `symbol, quantity, avg_cost, realized_pnl, last_updated`

// PositionRepository handles position database operations
type PositionRepository struct {
	ledgerDB *sql.DB
	log      zerolog.Logger
}

// NewPositionRepository creates a new position repository
func NewPositionRepository(ledgerDB *sql.DB, log zerolog.Logger) *PositionRepository {
	return &PositionRepository{
		ledgerDB: ledgerDB,
		log:      log.With().Str("repo", "position").Logger(),
	}
}

// Get retrieves the position for a symbol, or nil when none is held
func (r *PositionRepository) Get(symbol string) (*domain.Position, error) {
	query := "SELECT " + positionsColumns + " FROM positions WHERE symbol = ?"

	var pos domain.Position
	err := r.ledgerDB.QueryRow(query, domain.NormalizeSymbol(symbol)).Scan(
		&pos.Symbol,
		&pos.Quantity,
		&pos.AvgCost,
		&pos.RealizedPnL,
		&pos.LastUpdated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.StorageError("get position", err)
	}

	return &pos, nil
}

// GetTx retrieves the position for a symbol within an existing transaction
func (r *PositionRepository) GetTx(tx *sql.Tx, symbol string) (*domain.Position, error) {
	query := "SELECT " + positionsColumns + " FROM positions WHERE symbol = ?"

	var pos domain.Position
	err := tx.QueryRow(query, domain.NormalizeSymbol(symbol)).Scan(
		&pos.Symbol,
		&pos.Quantity,
		&pos.AvgCost,
		&pos.RealizedPnL,
		&pos.LastUpdated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.StorageError("get position", err)
	}

	return &pos, nil
}

// GetAll retrieves all positions, including closed ones (quantity zero)
func (r *PositionRepository) GetAll() ([]domain.Position, error) {
	query := "SELECT " + positionsColumns + " FROM positions ORDER BY symbol ASC"

	rows, err := r.ledgerDB.Query(query)
	if err != nil {
		return nil, domain.StorageError("get all positions", err)
	}
	defer rows.Close()

	return scanPositions(rows)
}

// GetOpen retrieves positions with a non-zero quantity
func (r *PositionRepository) GetOpen() ([]domain.Position, error) {
	query := "SELECT " + positionsColumns + " FROM positions WHERE quantity != 0 ORDER BY symbol ASC"

	rows, err := r.ledgerDB.Query(query)
	if err != nil {
		return nil, domain.StorageError("get open positions", err)
	}
	defer rows.Close()

	return scanPositions(rows)
}

// UpsertTx writes a position within an existing transaction. The executor
// calls this alongside ExecutionLog.AppendTx so both commit together.
func (r *PositionRepository) UpsertTx(tx *sql.Tx, pos domain.Position) error {
	query := `
		INSERT INTO positions (symbol, quantity, avg_cost, realized_pnl, last_updated)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			quantity = excluded.quantity,
			avg_cost = excluded.avg_cost,
			realized_pnl = excluded.realized_pnl,
			last_updated = excluded.last_updated
	`

	_, err := tx.Exec(query,
		domain.NormalizeSymbol(pos.Symbol),
		pos.Quantity,
		pos.AvgCost,
		pos.RealizedPnL,
		time.Now().Unix(),
	)
	if err != nil {
		return domain.StorageError("upsert position", err)
	}

	return nil
}

func scanPositions(rows *sql.Rows) ([]domain.Position, error) {
	var positions []domain.Position
	for rows.Next() {
		var pos domain.Position
		err := rows.Scan(
			&pos.Symbol,
			&pos.Quantity,
			&pos.AvgCost,
			&pos.RealizedPnL,
			&pos.LastUpdated,
		)
		if err != nil {
			return nil, domain.StorageError("scan position", err)
		}
		positions = append(positions, pos)
	}

	if err := rows.Err(); err != nil {
		return nil, domain.StorageError("iterate positions", err)
	}

	return positions, nil
}
