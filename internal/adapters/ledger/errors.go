package ledger

import "errors"

// Sentinel kinds for ledger errors.
var (
	ErrClosed          = errors.New("ledger closed")
	ErrMalformedRow    = errors.New("malformed ledger row")
	ErrInvalidSnapshot = errors.New("invalid snapshot")
	ErrUnknownDriver   = errors.New("unknown ledger driver")
)
