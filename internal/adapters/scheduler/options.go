package scheduler

import "github.com/okian/expwatch/pkg/logger"

// Option applies a configuration option to the Scheduler.
type Option func(*Scheduler)

// WithRunOnStart triggers one run as soon as the scheduler starts.
func WithRunOnStart(enabled bool) Option {
	return func(s *Scheduler) {
		s.runOnStart = enabled
	}
}

// WithLogger sets a custom logger for the scheduler.
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}
