// Package ledger holds the append-only execution log and the positions
// derived from it. The log is ground truth: positions are a fold of the log
// and both live in the same database so a trade commits atomically.
package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/alphaview/alphaview/internal/domain"
)

// executionsColumns is the list of columns for the executions table.
// Used to avoid SELECT * which can break when schema changes.
// Column order must match scanExecution() expectations.
const executionsColumns = `id, ref_id, symbol, side, quantity, price, actor, actor_role, executed_at, created_at`

// ExecutionLog handles execution log database operations. Entries are only
// ever appended; there is no update or delete path.
type ExecutionLog struct {
	ledgerDB *sql.DB
	log      zerolog.Logger
}

// NewExecutionLog creates a new execution log repository
func NewExecutionLog(ledgerDB *sql.DB, log zerolog.Logger) *ExecutionLog {
	return &ExecutionLog{
		ledgerDB: ledgerDB,
		log:      log.With().Str("repo", "execution_log").Logger(),
	}
}

// AppendTx inserts an execution within an existing transaction. The caller
// owns the transaction; this lets a ledger update and its log entry commit
// together.
func (r *ExecutionLog) AppendTx(tx *sql.Tx, exec domain.Execution) (int64, error) {
	if err := exec.Validate(); err != nil {
		return 0, fmt.Errorf("failed to append execution: %w", err)
	}

	query := `
		INSERT INTO executions
		(ref_id, symbol, side, quantity, price, actor, actor_role, executed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	res, err := tx.Exec(query,
		exec.RefID,
		domain.NormalizeSymbol(exec.Symbol),
		string(exec.Side),
		exec.Quantity,
		exec.Price,
		exec.Actor,
		string(exec.ActorRole),
		exec.ExecutedAt.Unix(),
		time.Now().Unix(),
	)
	if err != nil {
		if isDuplicateRefID(err) {
			return 0, fmt.Errorf("%w: %s", domain.ErrDuplicateRefID, exec.RefID)
		}
		return 0, domain.StorageError("append execution", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, domain.StorageError("append execution id", err)
	}

	return id, nil
}

// isDuplicateRefID reports whether an insert failed on the ref_id UNIQUE
// constraint. SQLite drivers expose constraint failures through the error
// text, so the check works the same against modernc and mattn.
func isDuplicateRefID(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed: executions.ref_id")
}

// Exists checks if an execution with the given ref_id already exists
func (r *ExecutionLog) Exists(refID string) (bool, error) {
	query := "SELECT 1 FROM executions WHERE ref_id = ? LIMIT 1"

	var exists int
	err := r.ledgerDB.QueryRow(query, refID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, domain.StorageError("check execution existence", err)
	}

	return true, nil
}

// GetByRefID retrieves an execution by its reference ID
func (r *ExecutionLog) GetByRefID(refID string) (*domain.Execution, error) {
	query := "SELECT " + executionsColumns + " FROM executions WHERE ref_id = ?"

	row := r.ledgerDB.QueryRow(query, refID)
	exec, err := scanExecutionRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.StorageError("get execution by ref_id", err)
	}

	return &exec, nil
}

// GetHistory retrieves executions, most recent first
func (r *ExecutionLog) GetHistory(limit int) ([]domain.Execution, error) {
	query := `
		SELECT ` + executionsColumns + ` FROM executions
		ORDER BY executed_at DESC, id DESC
		LIMIT ?
	`

	rows, err := r.ledgerDB.Query(query, limit)
	if err != nil {
		return nil, domain.StorageError("get execution history", err)
	}
	defer rows.Close()

	return scanExecutions(rows)
}

// GetAllUpTo retrieves every execution with executed_at on or before the end
// of the given date, in log order. The performance engine folds this slice
// to reconstruct the portfolio as of that date.
func (r *ExecutionLog) GetAllUpTo(asOf string) ([]domain.Execution, error) {
	t, err := domain.ParseDate(asOf)
	if err != nil {
		return nil, err
	}
	// End of day so trades executed on asOf are included
	cutoff := time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, time.UTC).Unix()

	query := `
		SELECT ` + executionsColumns + ` FROM executions
		WHERE executed_at <= ?
		ORDER BY executed_at ASC, id ASC
	`

	rows, err := r.ledgerDB.Query(query, cutoff)
	if err != nil {
		return nil, domain.StorageError("get executions up to date", err)
	}
	defer rows.Close()

	return scanExecutions(rows)
}

// GetBySymbol retrieves executions for a specific symbol, most recent first
func (r *ExecutionLog) GetBySymbol(symbol string, limit int) ([]domain.Execution, error) {
	query := `
		SELECT ` + executionsColumns + ` FROM executions
		WHERE symbol = ?
		ORDER BY executed_at DESC, id DESC
		LIMIT ?
	`

	rows, err := r.ledgerDB.Query(query, domain.NormalizeSymbol(symbol), limit)
	if err != nil {
		return nil, domain.StorageError("get executions by symbol", err)
	}
	defer rows.Close()

	return scanExecutions(rows)
}

// GetRange retrieves executions in log order, optionally filtered by symbol
// and an inclusive date range. Empty arguments leave that bound open.
func (r *ExecutionLog) GetRange(symbol, from, to string) ([]domain.Execution, error) {
	query := "SELECT " + executionsColumns + " FROM executions WHERE 1=1"
	var args []interface{}

	if symbol != "" {
		query += " AND symbol = ?"
		args = append(args, domain.NormalizeSymbol(symbol))
	}
	if from != "" {
		t, err := domain.ParseDate(from)
		if err != nil {
			return nil, err
		}
		query += " AND executed_at >= ?"
		args = append(args, t.Unix())
	}
	if to != "" {
		t, err := domain.ParseDate(to)
		if err != nil {
			return nil, err
		}
		// End of day so trades executed on the bound are included
		query += " AND executed_at <= ?"
		args = append(args, time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, time.UTC).Unix())
	}
	query += " ORDER BY executed_at ASC, id ASC"

	rows, err := r.ledgerDB.Query(query, args...)
	if err != nil {
		return nil, domain.StorageError("get executions in range", err)
	}
	defer rows.Close()

	return scanExecutions(rows)
}

// Count returns the total number of log entries. Paired with an as-of date
// it identifies a log state for snapshot caching.
func (r *ExecutionLog) Count() (int64, error) {
	var count int64
	err := r.ledgerDB.QueryRow("SELECT COUNT(*) FROM executions").Scan(&count)
	if err != nil {
		return 0, domain.StorageError("count executions", err)
	}
	return count, nil
}

// GetFirstExecutionDate returns the date of the earliest execution, or nil
// when the log is empty
func (r *ExecutionLog) GetFirstExecutionDate() (*string, error) {
	var first sql.NullInt64
	err := r.ledgerDB.QueryRow("SELECT MIN(executed_at) FROM executions").Scan(&first)
	if err != nil {
		return nil, domain.StorageError("get first execution date", err)
	}

	if !first.Valid {
		return nil, nil
	}

	dateStr := time.Unix(first.Int64, 0).UTC().Format(domain.DateFormat)
	return &dateStr, nil
}

// Helper methods

func scanExecutions(rows *sql.Rows) ([]domain.Execution, error) {
	var execs []domain.Execution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, domain.StorageError("scan execution", err)
		}
		execs = append(execs, exec)
	}

	if err := rows.Err(); err != nil {
		return nil, domain.StorageError("iterate executions", err)
	}

	return execs, nil
}

func scanExecution(rows *sql.Rows) (domain.Execution, error) {
	var exec domain.Execution
	var side, role string
	var executedAt, createdAt int64

	err := rows.Scan(
		&exec.ID,
		&exec.RefID,
		&exec.Symbol,
		&side,
		&exec.Quantity,
		&exec.Price,
		&exec.Actor,
		&role,
		&executedAt,
		&createdAt,
	)
	if err != nil {
		return exec, err
	}

	exec.Side = domain.Side(side)
	exec.ActorRole = domain.Role(role)
	exec.ExecutedAt = time.Unix(executedAt, 0).UTC()
	exec.CreatedAt = time.Unix(createdAt, 0).UTC()

	return exec, nil
}

func scanExecutionRow(row *sql.Row) (domain.Execution, error) {
	var exec domain.Execution
	var side, role string
	var executedAt, createdAt int64

	err := row.Scan(
		&exec.ID,
		&exec.RefID,
		&exec.Symbol,
		&side,
		&exec.Quantity,
		&exec.Price,
		&exec.Actor,
		&role,
		&executedAt,
		&createdAt,
	)
	if err != nil {
		return exec, err
	}

	exec.Side = domain.Side(side)
	exec.ActorRole = domain.Role(role)
	exec.ExecutedAt = time.Unix(executedAt, 0).UTC()
	exec.CreatedAt = time.Unix(createdAt, 0).UTC()

	return exec, nil
}
