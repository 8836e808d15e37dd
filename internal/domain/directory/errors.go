package directory

import "errors"

// Sentinel kinds for aggregation errors.
var (
	ErrMissingDirectory = errors.New("event has no receiverDirectory")
	ErrInvalidEvent     = errors.New("invalid event")
	ErrUnknownPolicy    = errors.New("unknown missing-directory policy")
)
