package collector

import (
	"time"

	"github.com/okian/expwatch/pkg/logger"
)

// Option applies a configuration option to the Collector.
type Option func(*Collector)

// WithConcurrency caps in-flight calls per stage. Values below 1 are ignored.
func WithConcurrency(k int) Option {
	return func(c *Collector) {
		if k > 0 {
			c.concurrency = k
		}
	}
}

// WithClock replaces the time source used for batch timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Collector) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets a custom logger for the collector.
func WithLogger(l logger.Logger) Option {
	return func(c *Collector) {
		if l != nil {
			c.logger = l
		}
	}
}
