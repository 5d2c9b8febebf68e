package types

import "errors"

// Error codes surfaced to callers across the runtime. Names are opaque;
// callers should match on the sentinel, not the string.
var (
	ErrConcurrencyConflict = errors.New("kConcurrencyConflict")
	ErrBackpressure        = errors.New("kBackpressure")
	ErrAlreadyActive       = errors.New("kAlreadyActive")
	ErrNotActive           = errors.New("kNotActive")
	ErrTypeUnknown         = errors.New("kTypeUnknown")
	ErrHandlerFailed       = errors.New("kHandlerFailed")
	ErrCancelled           = errors.New("kCancelled")
	ErrTimeout             = errors.New("kTimeout")
	ErrInvalidArgument     = errors.New("kInvalidArgument")
	ErrNotFound            = errors.New("kNotFound")
)
