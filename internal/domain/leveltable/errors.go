package leveltable

import "errors"

// Sentinel kinds for level table errors.
var (
	ErrUnknownLevel = errors.New("unknown level")
	ErrInvalidTable = errors.New("invalid level table")
	ErrInconsistent = errors.New("level table not cumulative")
)
