// Package domain provides core domain models and types.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// Side represents the direction of an execution
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// SideFromString parses a trade side, accepting any casing
func SideFromString(s string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY":
		return SideBuy, nil
	case "SELL":
		return SideSell, nil
	default:
		return "", fmt.Errorf("invalid side: %q", s)
	}
}

// Role represents the access level of an authenticated principal.
// Roles are assigned by the external identity provider and are never stored
// by this core.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleViewer Role = "VIEWER"
)

// RoleFromString parses a role, accepting any casing
func RoleFromString(s string) (Role, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ADMIN":
		return RoleAdmin, nil
	case "VIEWER":
		return RoleViewer, nil
	default:
		return "", fmt.Errorf("invalid role: %q", s)
	}
}

// Operation is a capability gated by the access layer
type Operation string

const (
	OperationRead          Operation = "read"
	OperationTrade         Operation = "trade"
	OperationRefreshPrices Operation = "refresh_prices"
)

// Principal identifies an authenticated caller together with its resolved role
type Principal struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// Position represents current holdings for one symbol.
// Quantity and AvgCost are always the fold of the symbol's executions; the
// row is a cache of the execution log, never an independent source of truth.
type Position struct {
	Symbol      string  `json:"symbol"`
	Quantity    float64 `json:"quantity"`
	AvgCost     float64 `json:"avg_cost"`
	RealizedPnL float64 `json:"realized_pnl"`
	LastUpdated int64   `json:"last_updated"` // Unix timestamp
}

// MarketValue returns the position's value at the given price
func (p Position) MarketValue(price float64) float64 {
	return p.Quantity * price
}

// UnrealizedPnL returns the open profit or loss at the given price
func (p Position) UnrealizedPnL(price float64) float64 {
	return (price - p.AvgCost) * p.Quantity
}

// Execution is one immutable entry of the append-only execution log
type Execution struct {
	ID         int64     `json:"id"`
	RefID      string    `json:"ref_id"` // Idempotency key; retries with the same RefID are no-ops
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	Quantity   float64   `json:"quantity"`
	Price      float64   `json:"price"`
	Actor      string    `json:"actor"`
	ActorRole  Role      `json:"actor_role"`
	ExecutedAt time.Time `json:"executed_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// Validate checks the execution's own fields, independent of ledger state
func (e Execution) Validate() error {
	if strings.TrimSpace(e.Symbol) == "" {
		return fmt.Errorf("symbol must not be empty")
	}
	if e.Side != SideBuy && e.Side != SideSell {
		return fmt.Errorf("invalid side: %q", e.Side)
	}
	if e.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive, got %v", ErrInvalidQuantity, e.Quantity)
	}
	if e.Price <= 0 {
		return fmt.Errorf("%w: price must be positive, got %v", ErrInvalidPrice, e.Price)
	}
	return nil
}

// Value returns quantity x price
func (e Execution) Value() float64 {
	return e.Quantity * e.Price
}

// PriceQuote is one daily closing price for a symbol.
// Quotes are immutable per (symbol, date); a correction is a new quote
// superseding the old one, never an in-place edit.
type PriceQuote struct {
	Symbol string  `json:"symbol"`
	Date   string  `json:"date"` // YYYY-MM-DD
	Close  float64 `json:"close"`
}

// PerformanceSnapshot is a derived, recomputable view of the portfolio as of
// a date. It is never ground truth: any snapshot can be rebuilt from the
// execution log and the price store.
type PerformanceSnapshot struct {
	AsOf                 string  `json:"as_of" msgpack:"as_of"`
	TotalValue           float64 `json:"total_value" msgpack:"total_value"`
	TotalReturn          float64 `json:"total_return" msgpack:"total_return"`
	AnnualizedReturn     float64 `json:"annualized_return" msgpack:"annualized_return"`
	AnnualizedVolatility float64 `json:"annualized_volatility" msgpack:"annualized_volatility"`
	SharpeRatio          float64 `json:"sharpe_ratio" msgpack:"sharpe_ratio"`
	MaxDrawdown          float64 `json:"max_drawdown" msgpack:"max_drawdown"`
	ValueAtRisk          float64 `json:"value_at_risk" msgpack:"value_at_risk"`
	CVaR                 float64 `json:"cvar" msgpack:"cvar"`
	CalmarRatio          float64 `json:"calmar_ratio" msgpack:"calmar_ratio"`
}

// DateFormat is the canonical YYYY-MM-DD layout used for daily data
const DateFormat = "2006-01-02"

// ParseDate parses a YYYY-MM-DD date string
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD): %w", s, err)
	}
	return t, nil
}

// NormalizeSymbol uppercases and trims an instrument symbol
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
