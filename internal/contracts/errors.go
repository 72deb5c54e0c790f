package contracts

import (
	"errors"
	"fmt"
)

// Configuration and input errors are fatal and abort the run immediately.
// Stage-local data issues never surface as errors; they go to Metadata.
var (
	ErrUnknownSymbol    = errors.New("unknown symbol")
	ErrUnknownTimeframe = errors.New("unknown timeframe")
	ErrUnknownTimezone  = errors.New("unknown timezone")
	ErrEmptyInput       = errors.New("empty bar sequence")
	ErrInvalidDateRange = errors.New("start date after end date")
)

// ImputationError is a fatal transformation failure: a field has too little
// signal for the round-robin regression to fit.
type ImputationError struct {
	Field    Field
	Observed int // non-missing observations available for the field
}

func (e *ImputationError) Error() string {
	return fmt.Sprintf("imputation failed for %s: only %d non-missing observations", e.Field, e.Observed)
}
