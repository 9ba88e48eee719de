// Package prices stores and serves daily closing prices.
package prices

import (
	"database/sql"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/alphaview/alphaview/internal/domain"
)

// PriceRepository handles daily price database operations
type PriceRepository struct {
	historyDB   *sql.DB
	strictDates bool
	log         zerolog.Logger
}

// NewPriceRepository creates a new price repository. By default GetClose
// carries the latest prior close forward over weekends and holidays.
func NewPriceRepository(historyDB *sql.DB, log zerolog.Logger) *PriceRepository {
	return &PriceRepository{
		historyDB: historyDB,
		log:       log.With().Str("repo", "prices").Logger(),
	}
}

// SetStrictDates disables the carry-forward fallback: GetClose then requires
// a quote stored for the exact requested date.
func (r *PriceRepository) SetStrictDates(strict bool) {
	r.strictDates = strict
}

// GetClose returns the close for a symbol on the given date, falling back to
// the most recent prior close unless strict dates are set. When no quote
// qualifies the error identifies the exact symbol and date that are missing.
func (r *PriceRepository) GetClose(symbol, date string) (float64, error) {
	if _, err := domain.ParseDate(date); err != nil {
		return 0, err
	}

	query := `
		SELECT close FROM daily_prices
		WHERE symbol = ? AND date <= ?
		ORDER BY date DESC
		LIMIT 1
	`
	if r.strictDates {
		query = `
		SELECT close FROM daily_prices
		WHERE symbol = ? AND date = ?
	`
	}

	var close float64
	err := r.historyDB.QueryRow(query, domain.NormalizeSymbol(symbol), date).Scan(&close)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.NewMissingPriceError(domain.NormalizeSymbol(symbol), date)
	}
	if err != nil {
		return 0, domain.StorageError("get close", err)
	}

	return close, nil
}

// GetCloseRange returns all quotes for a symbol within [start, end],
// ascending by date
func (r *PriceRepository) GetCloseRange(symbol, start, end string) ([]domain.PriceQuote, error) {
	if _, err := domain.ParseDate(start); err != nil {
		return nil, err
	}
	if _, err := domain.ParseDate(end); err != nil {
		return nil, err
	}

	query := `
		SELECT symbol, date, close FROM daily_prices
		WHERE symbol = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`

	rows, err := r.historyDB.Query(query, domain.NormalizeSymbol(symbol), start, end)
	if err != nil {
		return nil, domain.StorageError("get close range", err)
	}
	defer rows.Close()

	var quotes []domain.PriceQuote
	for rows.Next() {
		var q domain.PriceQuote
		if err := rows.Scan(&q.Symbol, &q.Date, &q.Close); err != nil {
			return nil, domain.StorageError("scan quote", err)
		}
		quotes = append(quotes, q)
	}

	if err := rows.Err(); err != nil {
		return nil, domain.StorageError("iterate quotes", err)
	}

	return quotes, nil
}

// GetDatesUpTo returns the distinct dates on or before the given date that
// have at least one quote, ascending. The performance engine walks these to
// build its valuation series.
func (r *PriceRepository) GetDatesUpTo(end string, limit int) ([]string, error) {
	if _, err := domain.ParseDate(end); err != nil {
		return nil, err
	}

	// Newest-first with LIMIT, then reversed, so the window ends at `end`
	query := `
		SELECT DISTINCT date FROM daily_prices
		WHERE date <= ?
		ORDER BY date DESC
		LIMIT ?
	`

	rows, err := r.historyDB.Query(query, end, limit)
	if err != nil {
		return nil, domain.StorageError("get price dates", err)
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, domain.StorageError("scan date", err)
		}
		dates = append(dates, d)
	}

	if err := rows.Err(); err != nil {
		return nil, domain.StorageError("iterate dates", err)
	}

	// Reverse into ascending order
	for i, j := 0, len(dates)-1; i < j; i, j = i+1, j-1 {
		dates[i], dates[j] = dates[j], dates[i]
	}

	return dates, nil
}

// GetLatestDate returns the date of the newest quote for a symbol, or nil
// when the symbol has no quotes at all
func (r *PriceRepository) GetLatestDate(symbol string) (*string, error) {
	query := `SELECT MAX(date) FROM daily_prices WHERE symbol = ?`

	var latest sql.NullString
	err := r.historyDB.QueryRow(query, domain.NormalizeSymbol(symbol)).Scan(&latest)
	if err != nil {
		return nil, domain.StorageError("get latest price date", err)
	}

	if !latest.Valid {
		return nil, nil
	}

	return &latest.String, nil
}

// Upsert writes a quote. A quote for an existing (symbol, date) pair is
// superseded by the new row; history is never edited field by field.
func (r *PriceRepository) Upsert(quote domain.PriceQuote) error {
	if quote.Close <= 0 {
		return domain.ErrInvalidPrice
	}
	if _, err := domain.ParseDate(quote.Date); err != nil {
		return err
	}

	query := `
		INSERT INTO daily_prices (symbol, date, close, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(symbol, date) DO UPDATE SET
			close = excluded.close,
			updated_at = excluded.updated_at
	`

	_, err := r.historyDB.Exec(query,
		domain.NormalizeSymbol(quote.Symbol),
		quote.Date,
		quote.Close,
		time.Now().Unix(),
	)
	if err != nil {
		return domain.StorageError("upsert quote", err)
	}

	return nil
}

// UpsertBatch writes a batch of quotes in one transaction
func (r *PriceRepository) UpsertBatch(quotes []domain.PriceQuote) error {
	if len(quotes) == 0 {
		return nil
	}

	tx, err := r.historyDB.Begin()
	if err != nil {
		return domain.StorageError("begin quote batch", err)
	}

	query := `
		INSERT INTO daily_prices (symbol, date, close, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(symbol, date) DO UPDATE SET
			close = excluded.close,
			updated_at = excluded.updated_at
	`

	now := time.Now().Unix()
	for _, quote := range quotes {
		if quote.Close <= 0 {
			_ = tx.Rollback()
			return domain.ErrInvalidPrice
		}
		if _, err := domain.ParseDate(quote.Date); err != nil {
			_ = tx.Rollback()
			return err
		}
		if _, err := tx.Exec(query, domain.NormalizeSymbol(quote.Symbol), quote.Date, quote.Close, now); err != nil {
			_ = tx.Rollback()
			return domain.StorageError("upsert quote batch", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.StorageError("commit quote batch", err)
	}

	r.log.Debug().Int("count", len(quotes)).Msg("Quotes upserted")
	return nil
}
