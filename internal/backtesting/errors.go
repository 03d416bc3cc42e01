package backtesting

import (
	"errors"
	"fmt"

	"github.com/guyghost/backtester/internal/ledger"
	"github.com/guyghost/backtester/internal/market"
)

// Kind classifies a backtesting failure.
type Kind string

const (
	// KindConfigInvariant errors are raised before any tick is simulated.
	KindConfigInvariant Kind = "config_invariant"
	// KindDataInconsistency errors are logged and counted, never fatal.
	KindDataInconsistency Kind = "data_inconsistency"
	// KindSimulationInvariant errors abort the run.
	KindSimulationInvariant Kind = "simulation_invariant"
)

var (
	ErrMissingParameter    = errors.New("missing required parameter")
	ErrParameterRange      = errors.New("parameter out of range")
	ErrStoplossRange       = errors.New("stoploss must be within [-100, 0)")
	ErrMalformedROI        = errors.New("malformed roi table")
	ErrCurrencyMismatch    = errors.New("pair quote currency does not match currency symbol")
	ErrUnknownStoplossType = errors.New("unknown stoploss type")
	ErrMaxOpenTrades       = errors.New("max_open_trades must be at least 1")
	ErrInvalidTimeframe    = market.ErrInvalidTimeframe

	ErrNegativeBudget       = errors.New("free budget went negative")
	ErrDuplicateOpenTrade   = ledger.ErrDuplicateOpenTrade
	ErrNonMonotoneTimestamp = market.ErrNonMonotoneTimestamp
)

// Error carries the kind and location of a backtesting failure.
type Error struct {
	Kind      Kind
	Pair      string
	Timestamp int64
	Err       error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Pair != "" && e.Timestamp != 0:
		return fmt.Sprintf("%s: %s at %d: %v", e.Kind, e.Pair, e.Timestamp, e.Err)
	case e.Pair != "":
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Pair, e.Err)
	case e.Timestamp != 0:
		return fmt.Sprintf("%s: at %d: %v", e.Kind, e.Timestamp, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(kind Kind, pair string, ts int64, err error) error {
	if err == nil {
		return nil
	}
	var be *Error
	if errors.As(err, &be) {
		return err
	}
	return &Error{Kind: kind, Pair: pair, Timestamp: ts, Err: err}
}

func configError(format string, args ...any) error {
	return &Error{Kind: KindConfigInvariant, Err: fmt.Errorf(format, args...)}
}

// IsKind reports whether err is a backtesting error of the given kind.
func IsKind(err error, kind Kind) bool {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind == kind
	}
	return false
}
