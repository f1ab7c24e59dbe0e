package domain

import "errors"

var (
	// ErrInsufficientHistory means the window does not yet hold enough
	// candles for the requested calculation. The current entry attempt
	// must be aborted, not retried.
	ErrInsufficientHistory = errors.New("insufficient candle history")

	// ErrDegenerateATR means ATR collapsed below epsilon; the market data
	// is likely flat or corrupt and stop placement would be meaningless.
	ErrDegenerateATR = errors.New("degenerate ATR")

	// ErrInvalidStops means the computed SL/TP violate the side ordering
	// (long: sl < entry < tp, short: sl > entry > tp).
	ErrInvalidStops = errors.New("invalid stop/take ordering")

	// ErrPositionExists guards the single-position invariant.
	ErrPositionExists = errors.New("position already open")

	// ErrNoPosition is returned when an exit is requested while flat.
	ErrNoPosition = errors.New("no open position")
)
