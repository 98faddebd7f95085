package nexon

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrResolve = errors.New("resolve identifier failed")
	ErrFetch   = errors.New("fetch stats failed")
)
