package simulation

import "errors"

var (
	// ErrEmptyInput is returned when a price series has no points.
	ErrEmptyInput = errors.New("no price data")
	// ErrInsufficientData is returned when fewer than two prices are available to estimate returns.
	ErrInsufficientData = errors.New("need at least 2 prices to estimate returns")
	// ErrInvalidPrice is returned for a non-positive or non-finite price.
	ErrInvalidPrice = errors.New("invalid price")
	// ErrInvalidConfig is returned for out-of-range simulation or investment settings.
	ErrInvalidConfig = errors.New("invalid simulation config")
	// ErrUnorderedSeries is returned when dates are not strictly increasing.
	ErrUnorderedSeries = errors.New("price series dates must be strictly increasing")
)
