package payouts

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrStaleBalance     = errors.New("paid balance changed since it was read")
	ErrEmployeeNotFound = errors.New("employee not found")
	ErrInvalidPayout    = errors.New("invalid payout")
	// ErrIdempotencyConflict is returned when an idempotency key is reused
	// with a different request body.
	ErrIdempotencyConflict = errors.New("idempotency key was used with a different request")
)

type StaleBalanceError struct {
	Expected decimal.Decimal
	Actual   decimal.Decimal
}

func (e *StaleBalanceError) Error() string {
	return fmt.Sprintf("expected %s already paid, found %s", e.Expected.StringFixed(2), e.Actual.StringFixed(2))
}

func (e *StaleBalanceError) Unwrap() error {
	return ErrStaleBalance
}
