package collector

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	// ErrUpstreamOutage means no roster name could be resolved in a run.
	ErrUpstreamOutage = errors.New("upstream outage: no names resolved")
)
