package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the trade and access paths. Callers match with
// errors.Is so wrapped variants carry context without breaking checks.
var (
	// ErrUnauthenticated means the caller presented no resolvable identity.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrPermissionDenied means the caller is known but its role does not
	// cover the requested operation.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInvalidQuantity means a trade quantity was zero or negative.
	ErrInvalidQuantity = errors.New("invalid quantity")

	// ErrInvalidPrice means a trade price was zero or negative.
	ErrInvalidPrice = errors.New("invalid price")

	// ErrInsufficientPosition means a sell exceeded the held quantity.
	ErrInsufficientPosition = errors.New("insufficient position")

	// ErrStorageFailure means the underlying store could not complete an
	// operation. The original cause is wrapped for logs; callers only need
	// the category.
	ErrStorageFailure = errors.New("storage failure")

	// ErrDuplicateRefID means an execution with the same reference ID was
	// already recorded; the retry is a no-op.
	ErrDuplicateRefID = errors.New("duplicate reference id")
)

// MissingPriceError reports that no closing price exists for a symbol on or
// before the requested date. It carries both fields so callers can tell the
// user exactly which quote is absent.
type MissingPriceError struct {
	Symbol string
	Date   string
}

func (e *MissingPriceError) Error() string {
	return fmt.Sprintf("missing price data for %s as of %s", e.Symbol, e.Date)
}

// Is lets errors.Is(err, ErrMissingPriceData) match any MissingPriceError.
func (e *MissingPriceError) Is(target error) bool {
	return target == ErrMissingPriceData
}

// ErrMissingPriceData is the category sentinel for MissingPriceError values.
var ErrMissingPriceData = errors.New("missing price data")

// NewMissingPriceError builds a MissingPriceError for the given symbol/date.
func NewMissingPriceError(symbol, date string) error {
	return &MissingPriceError{Symbol: symbol, Date: date}
}

// StorageError wraps a low-level store failure under ErrStorageFailure.
func StorageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorageFailure, op, err)
}
