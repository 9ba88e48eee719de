package ledger

import (
	"fmt"
	"math"

	"github.com/alphaview/alphaview/internal/domain"
)

// qtyEpsilon absorbs float drift when comparing quantities
const qtyEpsilon = 1e-9

// ApplyExecution folds one execution into a position and returns the new
// position. The input position is nil when the symbol has never been held.
// This function is the single definition of the ledger transition: replaying
// the log through it always reproduces the stored positions.
//
// Buys move the average cost to the quantity-weighted mean of the old lot
// and the new one. Sells realize P&L against the average cost and leave it
// unchanged while the position stays open.
func ApplyExecution(pos *domain.Position, exec domain.Execution, allowShort bool) (domain.Position, error) {
	if err := exec.Validate(); err != nil {
		return domain.Position{}, err
	}

	next := domain.Position{Symbol: domain.NormalizeSymbol(exec.Symbol)}
	if pos != nil {
		next = *pos
		next.Symbol = domain.NormalizeSymbol(next.Symbol)
	}

	switch exec.Side {
	case domain.SideBuy:
		newQty := next.Quantity + exec.Quantity
		if next.Quantity < 0 {
			// Covering a short: realize against the short's average cost
			covered := math.Min(exec.Quantity, -next.Quantity)
			next.RealizedPnL += (next.AvgCost - exec.Price) * covered
			remainder := exec.Quantity - covered
			if remainder > qtyEpsilon {
				next.AvgCost = exec.Price
			}
		} else {
			next.AvgCost = (next.Quantity*next.AvgCost + exec.Quantity*exec.Price) / newQty
		}
		next.Quantity = newQty

	case domain.SideSell:
		if !allowShort && exec.Quantity > next.Quantity+qtyEpsilon {
			return domain.Position{}, fmt.Errorf(
				"%w: cannot sell %v %s, holding %v",
				domain.ErrInsufficientPosition, exec.Quantity, next.Symbol, next.Quantity,
			)
		}
		closed := math.Min(exec.Quantity, math.Max(next.Quantity, 0))
		next.RealizedPnL += (exec.Price - next.AvgCost) * closed
		remainder := exec.Quantity - closed
		shortQty := math.Max(-next.Quantity, 0)
		next.Quantity -= exec.Quantity
		if remainder > qtyEpsilon {
			if shortQty > qtyEpsilon {
				// Extending a short: weighted mean of the short lots
				next.AvgCost = (shortQty*next.AvgCost + remainder*exec.Price) / (shortQty + remainder)
			} else {
				// Opened a fresh short lot at the sale price
				next.AvgCost = exec.Price
			}
		}

	default:
		return domain.Position{}, fmt.Errorf("invalid side: %q", exec.Side)
	}

	// Snap float drift so a fully closed position reads exactly flat
	if math.Abs(next.Quantity) < qtyEpsilon {
		next.Quantity = 0
		next.AvgCost = 0
	}

	return next, nil
}

// ReplayLog folds a sequence of executions from scratch and returns the
// resulting positions keyed by symbol. Used to verify and rebuild the
// positions table from the log.
func ReplayLog(execs []domain.Execution, allowShort bool) (map[string]domain.Position, error) {
	positions := make(map[string]domain.Position)
	for _, exec := range execs {
		symbol := domain.NormalizeSymbol(exec.Symbol)
		var current *domain.Position
		if pos, ok := positions[symbol]; ok {
			current = &pos
		}
		next, err := ApplyExecution(current, exec, allowShort)
		if err != nil {
			return nil, fmt.Errorf("replay failed at execution %s: %w", exec.RefID, err)
		}
		positions[symbol] = next
	}
	return positions, nil
}
